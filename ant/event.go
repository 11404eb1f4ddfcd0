package ant

import (
	"bytes"
	"sync"
	"time"
)

// EventCallback is a subscriber to the event machine's inbound message
// stream. Subscribers are deduplicated by identity: registering the same
// callback twice is a no-op.
type EventCallback interface {
	OnMessage(msg TypedMessage)
}

// readQuantum is how long the reader sleeps after an empty, error-free read
// so it doesn't spin the CPU waiting on a transport with no data ready.
const readQuantum = 2 * time.Millisecond

type waiter struct {
	match  func(TypedMessage) bool
	result chan waiterResult
}

type waiterResult struct {
	msg TypedMessage
	err error
}

// EventMachine owns the inbound pipeline: a single reader goroutine that
// drains the transport, resynchronizes on corrupt frames, dispatches
// decoded messages to subscribers, and resolves callers blocked in
// WaitForAck/WaitForMessage.
type EventMachine struct {
	transport Transport

	mu        sync.Mutex
	callbacks []EventCallback

	waitersMu sync.Mutex
	waiters   []*waiter

	writeMu sync.Mutex

	stateMu sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewEventMachine builds an EventMachine reading from and writing through t.
func NewEventMachine(t Transport) *EventMachine {
	return &EventMachine{transport: t}
}

// Start spawns the reader goroutine. It fails with EventError{ALREADY_STARTED}
// if the machine is already running.
func (em *EventMachine) Start() error {
	em.stateMu.Lock()
	defer em.stateMu.Unlock()

	if em.running {
		return newEventError(EventAlreadyStarted, "event machine already started")
	}

	em.stopCh = make(chan struct{})
	em.doneCh = make(chan struct{})
	em.running = true

	go em.readLoop(em.stopCh, em.doneCh)
	log.Debug().Msg("event machine started")
	return nil
}

// Stop signals the reader to terminate, waits for it to quit, and wakes
// every pending waiter with EventError{SHUTTING_DOWN}. It is idempotent.
func (em *EventMachine) Stop() {
	em.stateMu.Lock()
	if !em.running {
		em.stateMu.Unlock()
		return
	}
	em.running = false
	close(em.stopCh)
	done := em.doneCh
	em.stateMu.Unlock()

	<-done

	em.waitersMu.Lock()
	pending := em.waiters
	em.waiters = nil
	em.waitersMu.Unlock()

	for _, w := range pending {
		w.result <- waiterResult{err: newEventError(EventShuttingDown, "event machine is shutting down")}
	}
	log.Debug().Msg("event machine stopped")
}

// RegisterCallback adds sub to the subscriber set if it is not already
// present.
func (em *EventMachine) RegisterCallback(sub EventCallback) {
	em.mu.Lock()
	defer em.mu.Unlock()

	for _, existing := range em.callbacks {
		if existing == sub {
			return
		}
	}
	em.callbacks = append(em.callbacks, sub)
}

// RemoveCallback removes sub from the subscriber set.
func (em *EventMachine) RemoveCallback(sub EventCallback) {
	em.mu.Lock()
	defer em.mu.Unlock()

	for i, existing := range em.callbacks {
		if existing == sub {
			em.callbacks = append(em.callbacks[:i], em.callbacks[i+1:]...)
			return
		}
	}
}

// Write serializes outbound frames onto the transport so concurrent writers
// never interleave their bytes on the wire.
func (em *EventMachine) Write(raw []byte) error {
	em.writeMu.Lock()
	defer em.writeMu.Unlock()

	if err := em.transport.Write(raw); err != nil {
		return newDriverError("write", err)
	}
	return nil
}

// WaitForAck blocks until a ChannelEventMessage whose MessageID equals
// outMsg's type arrives, then returns its MessageCode (0 = RESPONSE_NO_ERROR).
// A timeout of 0 blocks until a match arrives or Stop is called.
func (em *EventMachine) WaitForAck(outMsg TypedMessage, timeout time.Duration) (byte, error) {
	wantType := outMsg.Type()
	result, err := em.waitFor(func(msg TypedMessage) bool {
		ev, ok := msg.(*ChannelEventMessage)
		return ok && ev.MessageID() == wantType
	}, timeout)
	if err != nil {
		return 0, err
	}
	return result.(*ChannelEventMessage).MessageCode(), nil
}

// WaitForMessage blocks until the next inbound message matching predicate
// arrives, and returns it. A timeout of 0 blocks until a match arrives or
// Stop is called.
func (em *EventMachine) WaitForMessage(predicate func(TypedMessage) bool, timeout time.Duration) (TypedMessage, error) {
	return em.waitFor(predicate, timeout)
}

// WaitForMessage is a type-safe convenience wrapper around
// EventMachine.WaitForMessage: it blocks until the next inbound message of
// type T arrives.
func WaitForMessage[T TypedMessage](em *EventMachine, timeout time.Duration) (T, error) {
	var zero T
	msg, err := em.waitFor(func(m TypedMessage) bool {
		_, ok := m.(T)
		return ok
	}, timeout)
	if err != nil {
		return zero, err
	}
	return msg.(T), nil
}

func (em *EventMachine) waitFor(predicate func(TypedMessage) bool, timeout time.Duration) (TypedMessage, error) {
	w := &waiter{match: predicate, result: make(chan waiterResult, 1)}

	em.waitersMu.Lock()
	em.waiters = append(em.waiters, w)
	em.waitersMu.Unlock()

	if timeout <= 0 {
		r := <-w.result
		return r.msg, r.err
	}

	select {
	case r := <-w.result:
		return r.msg, r.err
	case <-time.After(timeout):
		em.removeWaiter(w)
		return nil, newEventError(EventTimeout, "timed out waiting for message")
	}
}

func (em *EventMachine) removeWaiter(target *waiter) {
	em.waitersMu.Lock()
	defer em.waitersMu.Unlock()

	for i, w := range em.waiters {
		if w == target {
			em.waiters = append(em.waiters[:i], em.waiters[i+1:]...)
			return
		}
	}
}

// dispatch notifies subscribers in registration order, then resolves any
// waiter whose predicate matches msg. A subscriber that panics is recovered
// and swallowed so one bad subscriber cannot halt dispatch to the rest.
func (em *EventMachine) dispatch(msg TypedMessage) {
	em.mu.Lock()
	subs := append([]EventCallback(nil), em.callbacks...)
	em.mu.Unlock()

	for _, sub := range subs {
		em.safeNotify(sub, msg)
	}

	em.waitersMu.Lock()
	var matched *waiter
	for i, w := range em.waiters {
		if w.match(msg) {
			matched = w
			em.waiters = append(em.waiters[:i], em.waiters[i+1:]...)
			break
		}
	}
	em.waitersMu.Unlock()

	if matched != nil {
		matched.result <- waiterResult{msg: msg}
	}
}

func (em *EventMachine) safeNotify(sub EventCallback, msg TypedMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Interface("panic", r).Msg("subscriber callback failed")
		}
	}()
	sub.OnMessage(msg)
}

// readLoop accumulates bytes from the transport, resynchronizes on corrupt
// frames, and dispatches every successfully decoded message.
func (em *EventMachine) readLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	var buf []byte
	chunk := make([]byte, 256)

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := em.transport.Read(chunk)
		if err != nil {
			log.Debug().Err(err).Msg("transport read failed")
			time.Sleep(readQuantum)
			continue
		}
		if n == 0 {
			time.Sleep(readQuantum)
			continue
		}
		buf = append(buf, chunk[:n]...)

		for {
			idx := bytes.IndexByte(buf, MessageTxSync)
			if idx < 0 {
				buf = buf[:0]
				break
			}
			if idx > 0 {
				buf = buf[idx:]
			}
			if len(buf) < 2 {
				break
			}

			length := int(buf[1])
			if length > maxPayloadLen {
				// Not a real frame start; resynchronize past it.
				buf = buf[1:]
				continue
			}
			if len(buf) < length+4 {
				break
			}

			m := &Message{}
			consumed, decErr := m.Decode(buf[:length+4])
			if decErr != nil {
				log.Debug().Err(decErr).Msg("resynchronizing after bad frame")
				buf = buf[1:]
				continue
			}

			typed, typedErr := m.ToTyped(nil)
			buf = buf[consumed:]
			if typedErr != nil {
				log.Debug().Err(typedErr).Msg("dropping message of unknown type")
				continue
			}

			em.dispatch(typed)
		}
	}
}

package ant

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport: writes are recorded, and
// injected frames are handed back on Read in the order they were queued.
type fakeTransport struct {
	mu     sync.Mutex
	open   bool
	writes [][]byte
	feed   chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{feed: make(chan []byte, 64)}
}

func (f *fakeTransport) Open() error  { f.open = true; return nil }
func (f *fakeTransport) Close() error { f.open = false; return nil }
func (f *fakeTransport) IsOpen() bool { return f.open }

func (f *fakeTransport) Write(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), b...)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeTransport) Read(b []byte) (int, error) {
	select {
	case chunk := <-f.feed:
		n := copy(b, chunk)
		return n, nil
	default:
		return 0, nil
	}
}

// inject queues raw bytes to be returned by a future Read call. Splitting
// across multiple injects exercises the reader's ability to reassemble a
// frame spread across reads.
func (f *fakeTransport) inject(b []byte) {
	f.feed <- b
}

type recordingCallback struct {
	mu   sync.Mutex
	seen []TypedMessage
}

func (r *recordingCallback) OnMessage(msg TypedMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, msg)
}

func (r *recordingCallback) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(readQuantum)
	}
	require.FailNow(t, "condition not met before timeout")
}

func TestDispatchFairness(t *testing.T) {
	transport := newFakeTransport()
	em := NewEventMachine(transport)
	require.NoError(t, em.Start())
	defer em.Stop()

	var order []string
	var mu sync.Mutex
	// Each subscriber is a distinct pointer: RegisterCallback deduplicates
	// with ==, which func values do not support.
	record := func(name string) EventCallback {
		f := callbackFunc(func(msg TypedMessage) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		})
		return &f
	}

	a, b, c := record("A"), record("B"), record("C")
	em.RegisterCallback(a)
	em.RegisterCallback(b)
	em.RegisterCallback(c)

	reset := NewSystemResetMessage()
	transport.inject(reset.Encode())

	waitUntil(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	})

	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestResyncRobustness(t *testing.T) {
	transport := newFakeTransport()
	em := NewEventMachine(transport)
	require.NoError(t, em.Start())
	defer em.Stop()

	rec := &recordingCallback{}
	em.RegisterCallback(rec)

	garbage := bytes.Repeat([]byte{0x00, 0xFF, 0xA4, 0x0F}, 4)
	valid := NewChannelAssignMessage(0x00, 0x00, 0x00).Encode()

	transport.inject(append(garbage, valid...))

	waitUntil(t, time.Second, func() bool { return rec.count() >= 1 })
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, rec.count())
	got, ok := rec.seen[0].(*ChannelAssignMessage)
	require.True(t, ok)
	assert.Equal(t, byte(0x00), got.ChannelNumber())
}

func TestWaitForAckCorrelation(t *testing.T) {
	transport := newFakeTransport()
	em := NewEventMachine(transport)
	require.NoError(t, em.Start())
	defer em.Stop()

	msg := NewChannelOpenMessage(0x00)
	require.NoError(t, em.Write(msg.Encode()))

	unrelated := NewChannelEventMessage(0x00, MessageChannelAssign, ResponseNoError)
	transport.inject(unrelated.Encode())
	time.Sleep(20 * time.Millisecond)

	type ackResult struct {
		code byte
		err  error
	}
	resultCh := make(chan ackResult, 1)
	go func() {
		code, err := em.WaitForAck(msg, 2*time.Second)
		resultCh <- ackResult{code, err}
	}()

	time.Sleep(20 * time.Millisecond)
	ack := NewChannelEventMessage(0x00, MessageChannelOpen, ResponseNoError)
	transport.inject(ack.Encode())

	select {
	case r := <-resultCh:
		require.NoError(t, r.err)
		assert.Equal(t, ResponseNoError, r.code)
	case <-time.After(3 * time.Second):
		t.Fatal("WaitForAck did not resolve")
	}
}

func TestWaitForAckTimeout(t *testing.T) {
	transport := newFakeTransport()
	em := NewEventMachine(transport)
	require.NoError(t, em.Start())
	defer em.Stop()

	msg := NewChannelOpenMessage(0x00)
	require.NoError(t, em.Write(msg.Encode()))

	_, err := em.WaitForAck(msg, 20*time.Millisecond)
	require.Error(t, err)
	var evErr *EventError
	require.ErrorAs(t, err, &evErr)
	assert.Equal(t, EventTimeout, evErr.Kind)
}

func TestStopWakesPendingWaiters(t *testing.T) {
	transport := newFakeTransport()
	em := NewEventMachine(transport)
	require.NoError(t, em.Start())

	msg := NewChannelOpenMessage(0x00)
	require.NoError(t, em.Write(msg.Encode()))

	done := make(chan error, 1)
	go func() {
		_, err := em.WaitForAck(msg, 0)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	em.Stop()

	select {
	case err := <-done:
		var evErr *EventError
		require.ErrorAs(t, err, &evErr)
		assert.Equal(t, EventShuttingDown, evErr.Kind)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Stop")
	}
}

// callbackFunc adapts a plain function to EventCallback.
type callbackFunc func(TypedMessage)

func (f callbackFunc) OnMessage(msg TypedMessage) { f(msg) }

package ant

import (
	"sync"

	"github.com/google/uuid"
)

// Channel is one of the node's ANT channel slots, carried through its
// Free -> Assigned -> Open -> Closing lifecycle by sending a configuration
// command and waiting for the stick's acknowledgement.
type Channel struct {
	node   *Node
	number byte
	name   string

	stateMu sync.Mutex
	isFree  bool

	subMu  sync.Mutex
	subs   []EventCallback
}

func newChannel(node *Node, number byte) *Channel {
	return &Channel{
		node:   node,
		number: number,
		name:   uuid.NewString(),
		isFree: true,
	}
}

// Number returns the channel's slot number within the node.
func (c *Channel) Number() byte { return c.number }

// Name returns the channel's display name.
func (c *Channel) Name() string { return c.name }

// SetName changes the channel's display name.
func (c *Channel) SetName(name string) { c.name = name }

// IsFree reports whether the channel is currently unassigned.
func (c *Channel) IsFree() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.isFree
}

func (c *Channel) setFree(free bool) {
	c.stateMu.Lock()
	c.isFree = free
	c.stateMu.Unlock()
}

// ackable is any outbound command message that can both encode itself onto
// the wire and be matched against an inbound acknowledgement.
type ackable interface {
	TypedMessage
	Encode() []byte
}

func (c *Channel) ack(msg ackable, kind ChannelErrorKind, failMsg string) error {
	if err := c.node.evm.Write(msg.Encode()); err != nil {
		return err
	}
	code, err := c.node.evm.WaitForAck(msg, 0)
	if err != nil {
		return err
	}
	if code != ResponseNoError {
		return newChannelError(kind, failMsg, code)
	}
	return nil
}

// Assign moves the channel from Free to Assigned: it looks up networkName's
// key slot and tells the stick to bind this channel to it with channelType.
func (c *Channel) Assign(networkName string, channelType byte) error {
	netKey, err := c.node.GetNetworkKey(networkName)
	if err != nil {
		return err
	}

	msg := NewChannelAssignMessage(c.number, channelType, netKey.Number())
	if err := c.ack(msg, ChannelAssignFailed, "could not assign channel"); err != nil {
		return err
	}
	c.setFree(false)
	return nil
}

// SetID sets the channel's device ID pairing parameters.
func (c *Channel) SetID(deviceNumber uint16, deviceType, transType byte) error {
	msg := NewChannelIDMessage(c.number, deviceNumber, deviceType, transType)
	return c.ack(msg, ChannelParamFailed, "could not set channel ID")
}

// SetSearchTimeout sets how long (in 2.5s units) the channel searches before
// giving up; TimeoutNever disables the timeout.
func (c *Channel) SetSearchTimeout(timeout byte) error {
	msg := NewChannelSearchTimeoutMessage(c.number, timeout)
	return c.ack(msg, ChannelParamFailed, "could not set search timeout")
}

// SetPeriod sets the channel's messaging period in 32768ths of a second.
func (c *Channel) SetPeriod(period uint16) error {
	msg := NewChannelPeriodMessage(c.number, period)
	return c.ack(msg, ChannelParamFailed, "could not set channel period")
}

// SetFrequency sets the channel's RF frequency as an offset from 2400MHz.
func (c *Channel) SetFrequency(frequency byte) error {
	msg := NewChannelFrequencyMessage(c.number, frequency)
	return c.ack(msg, ChannelParamFailed, "could not set channel frequency")
}

// Open moves the channel from Assigned to Open.
func (c *Channel) Open() error {
	msg := NewChannelOpenMessage(c.number)
	return c.ack(msg, ChannelOpenFailed, "could not open channel")
}

// Close moves the channel from Open back to Assigned. It waits for the stick's ack
// of the close command, then separately waits for the asynchronous
// EventChannelClosed notification — two distinct waiters, since the ack and
// the closed event are two distinct inbound messages and must not be
// collapsed into a single wait.
func (c *Channel) Close() error {
	msg := NewChannelCloseMessage(c.number)
	if err := c.ack(msg, ChannelCloseFailed, "could not close channel"); err != nil {
		return err
	}

	_, err := c.node.evm.WaitForMessage(func(m TypedMessage) bool {
		ev, ok := m.(*ChannelEventMessage)
		return ok && ev.ChannelNumber() == c.number && ev.MessageCode() == EventChannelClosed
	}, 0)
	return err
}

// Unassign moves the channel back to Free.
func (c *Channel) Unassign() error {
	msg := NewChannelUnassignMessage(c.number)
	if err := c.ack(msg, ChannelUnassignFailed, "could not unassign channel"); err != nil {
		return err
	}
	c.setFree(true)
	return nil
}

// RegisterCallback adds sub to this channel's subscriber set if it is not
// already present.
func (c *Channel) RegisterCallback(sub EventCallback) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for _, existing := range c.subs {
		if existing == sub {
			return
		}
	}
	c.subs = append(c.subs, sub)
}

// RemoveCallback removes sub from this channel's subscriber set.
func (c *Channel) RemoveCallback(sub EventCallback) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for i, existing := range c.subs {
		if existing == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

// OnMessage implements EventCallback: the channel registers itself with the
// node's event machine at creation time, filters for messages scoped to its
// own channel number, and fans them out to its own subscribers.
func (c *Channel) OnMessage(msg TypedMessage) {
	scoped, ok := msg.(ChannelScoped)
	if !ok || scoped.ChannelNumber() != c.number {
		return
	}

	c.subMu.Lock()
	subs := append([]EventCallback(nil), c.subs...)
	c.subMu.Unlock()

	for _, sub := range subs {
		c.safeNotify(sub, msg)
	}
}

func (c *Channel) safeNotify(sub EventCallback, msg TypedMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Interface("panic", r).Uint8("channel", c.number).Msg("channel subscriber failed")
		}
	}()
	sub.OnMessage(msg)
}

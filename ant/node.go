package ant

import (
	"time"

	"github.com/google/uuid"
)

// resetSettleDelay is the fixed settling time after a SystemReset: some
// firmware does not acknowledge a reset, so callers must simply wait.
const resetSettleDelay = 1 * time.Second

// NetworkKey is a slot in the node's network key table. The default key is
// all zeros; Name defaults to a random identifier, matching the upstream
// ANT host library's behavior of giving every key a unique lookup name
// even when the caller doesn't supply one.
type NetworkKey struct {
	name   string
	key    [8]byte
	number byte
}

// NewNetworkKey builds a NetworkKey. An empty name is replaced with a
// random one.
func NewNetworkKey(name string, key [8]byte) *NetworkKey {
	if name == "" {
		name = uuid.NewString()
	}
	return &NetworkKey{name: name, key: key}
}

func (n *NetworkKey) Name() string     { return n.name }
func (n *NetworkKey) SetName(name string) { n.name = name }
func (n *NetworkKey) Key() [8]byte     { return n.key }
func (n *NetworkKey) Number() byte     { return n.number }

// Options is the (std, adv, adv2) option byte triple the stick reports in
// its Capabilities response.
type Options struct {
	Std, Adv, Adv2 byte
}

// Node is a node in an ANT network: it owns the event machine, the
// network-key table, and the channel pool, and drives the stick through
// its required startup sequence.
type Node struct {
	transport Transport
	evm       *EventMachine

	networks []*NetworkKey
	channels []*Channel
	options  Options
	running  bool
}

// NewNode builds a Node over transport. The node does not open the
// transport or talk to the stick until Start is called.
func NewNode(transport Transport) *Node {
	n := &Node{transport: transport}
	n.evm = NewEventMachine(transport)
	return n
}

// EventMachine returns the node's event machine, e.g. so an application can
// register its own top-level subscriber.
func (n *Node) EventMachine() *EventMachine {
	return n.evm
}

// Start runs the ANT stick bring-up sequence: open the transport, reset the
// stick, start the event machine, request capabilities, and allocate the
// network-key and channel pools those capabilities describe.
func (n *Node) Start() error {
	if n.running {
		return newNodeError(NodeAlreadyStarted, "ANT node already started")
	}

	if !n.transport.IsOpen() {
		if err := n.transport.Open(); err != nil {
			return newDriverError("open", err)
		}
	}

	n.reset()

	if err := n.evm.Start(); err != nil {
		return err
	}
	n.running = true

	if err := n.init(); err != nil {
		return err
	}

	log.Info().Int("channels", len(n.channels)).Int("networks", len(n.networks)).Msg("ANT node started")
	return nil
}

// Stop tears the node down: optionally reset the stick, stop the event
// machine, and close the transport.
func (n *Node) Stop(reset bool) error {
	if !n.running {
		return newNodeError(NodeNotStarted, "ANT node not started")
	}

	if reset {
		n.reset()
	}
	n.evm.Stop()
	n.running = false

	if err := n.transport.Close(); err != nil {
		return newDriverError("close", err)
	}
	log.Info().Msg("ANT node stopped")
	return nil
}

func (n *Node) reset() {
	msg := NewSystemResetMessage()
	if err := n.evm.Write(msg.Encode()); err != nil {
		log.Debug().Err(err).Msg("reset write failed")
	}
	time.Sleep(resetSettleDelay)
}

func (n *Node) init() error {
	req := NewChannelRequestMessage(0x00, MessageCapabilities)
	if err := n.evm.Write(req.Encode()); err != nil {
		return err
	}

	caps, err := WaitForMessage[*CapabilitiesMessage](n.evm, 0)
	if err != nil {
		return err
	}

	n.networks = make([]*NetworkKey, int(caps.MaxNetworks()))
	for i := range n.networks {
		n.networks[i] = NewNetworkKey("", [8]byte{})
		if err := n.SetNetworkKey(i, nil); err != nil {
			return err
		}
	}

	n.channels = make([]*Channel, int(caps.MaxChannels()))
	for i := range n.channels {
		ch := newChannel(n, byte(i))
		n.evm.RegisterCallback(ch)
		n.channels[i] = ch
	}

	n.options = Options{Std: caps.StdOptions(), Adv: caps.AdvOptions(), Adv2: caps.AdvOptions2()}
	return nil
}

// GetCapabilities reflects the snapshot taken during Start.
func (n *Node) GetCapabilities() (numChannels, numNetworks int, options Options) {
	return len(n.channels), len(n.networks), n.options
}

// SetNetworkKey pushes a network key to the stick's slot-th key slot. If key
// is non-nil, it replaces the slot's entry first.
func (n *Node) SetNetworkKey(slot int, key *[8]byte) error {
	if key != nil {
		n.networks[slot].key = *key
	}

	msg := NewNetworkKeyMessage(byte(slot), n.networks[slot].key)
	if err := n.evm.Write(msg.Encode()); err != nil {
		return err
	}
	if _, err := n.evm.WaitForAck(msg, 0); err != nil {
		return err
	}
	n.networks[slot].number = byte(slot)
	return nil
}

// NetworkKeyAt returns the network key occupying the given slot.
func (n *Node) NetworkKeyAt(slot int) (*NetworkKey, error) {
	if slot < 0 || slot >= len(n.networks) {
		return nil, newNodeError(NodeNotFound, "no network key at that slot")
	}
	return n.networks[slot], nil
}

// GetNetworkKey looks up a network key by its name.
func (n *Node) GetNetworkKey(name string) (*NetworkKey, error) {
	for _, key := range n.networks {
		if key.name == name {
			return key, nil
		}
	}
	return nil, newNodeError(NodeNotFound, "no network key with that name")
}

// GetFreeChannel returns the first free channel, or NodeError{NO_FREE_CHANNEL}
// if every channel is in use.
func (n *Node) GetFreeChannel() (*Channel, error) {
	for _, ch := range n.channels {
		if ch.IsFree() {
			return ch, nil
		}
	}
	return nil, newNodeError(NodeNoFreeChannel, "no free channel")
}

// Channels returns the node's channel pool in slot order.
func (n *Node) Channels() []*Channel {
	return append([]*Channel(nil), n.channels...)
}

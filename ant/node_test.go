package ant

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransport acknowledges every outbound command with a
// ChannelEventMessage(msg_id=type, code=0), except a SystemReset, which gets
// no response, and a ChannelRequest, which gets no ack: a Capabilities
// request is answered with a canned CapabilitiesMessage — enough to drive a
// Node through Start() and a channel through its full bring-up sequence
// without a real stick.
type scriptedTransport struct {
	mu   sync.Mutex
	open bool
	feed chan []byte
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{feed: make(chan []byte, 256)}
}

func (s *scriptedTransport) Open() error  { s.open = true; return nil }
func (s *scriptedTransport) Close() error { s.open = false; return nil }
func (s *scriptedTransport) IsOpen() bool { return s.open }

func (s *scriptedTransport) Read(b []byte) (int, error) {
	select {
	case chunk := <-s.feed:
		return copy(b, chunk), nil
	default:
		return 0, nil
	}
}

func (s *scriptedTransport) Write(raw []byte) error {
	m := &Message{}
	if _, err := m.Decode(raw); err != nil {
		return nil
	}
	typed, err := m.ToTyped(nil)
	if err != nil {
		return nil
	}

	switch v := typed.(type) {
	case *SystemResetMessage:
		// no response: real firmware doesn't ack a reset either.
	case *ChannelRequestMessage:
		if v.RequestedMessageID() == MessageCapabilities {
			caps := NewCapabilitiesMessage(8, 3, 0xAB, 0xCD)
			caps.SetAdvOptions2(0xEF)
			s.feed <- caps.Encode()
		}
	default:
		var channel byte
		if scoped, ok := typed.(ChannelScoped); ok {
			channel = scoped.ChannelNumber()
		}
		ack := NewChannelEventMessage(channel, typed.Type(), ResponseNoError)
		s.feed <- ack.Encode()
	}
	return nil
}

func TestNodeStartBootstrapsCapabilities(t *testing.T) {
	transport := newScriptedTransport()
	node := NewNode(transport)

	require.NoError(t, node.Start())
	defer node.Stop(false)

	numChannels, numNetworks, opts := node.GetCapabilities()
	assert.Equal(t, 8, numChannels)
	assert.Equal(t, 3, numNetworks)
	assert.Equal(t, Options{Std: 0xAB, Adv: 0xCD, Adv2: 0xEF}, opts)

	for i, ch := range node.Channels() {
		assert.Equal(t, byte(i), ch.Number())
		assert.True(t, ch.IsFree())
	}
}

func TestHRMStyleChannelBringUp(t *testing.T) {
	transport := newScriptedTransport()
	node := NewNode(transport)
	require.NoError(t, node.Start())
	defer node.Stop(false)

	netKey, err := node.NetworkKeyAt(0)
	require.NoError(t, err)
	netKey.SetName("N:ANT+")
	require.NoError(t, node.SetNetworkKey(0, &[8]byte{0xB9, 0xA5, 0x21, 0xFB, 0xBD, 0x72, 0xC3, 0x45}))

	channel, err := node.GetFreeChannel()
	require.NoError(t, err)

	require.NoError(t, channel.Assign("N:ANT+", ChannelTypeTwowayReceive))
	require.NoError(t, channel.SetID(0, 120, 0))
	require.NoError(t, channel.SetSearchTimeout(TimeoutNever))
	require.NoError(t, channel.SetPeriod(8070))
	require.NoError(t, channel.SetFrequency(57))
	require.NoError(t, channel.Open())

	assert.False(t, channel.IsFree())

	// Registered after bring-up: the acks above are channel-scoped events
	// too, and would otherwise be delivered to this subscriber as well.
	rec := &recordingCallback{}
	channel.RegisterCallback(rec)

	broadcast := NewChannelBroadcastDataMessage(channel.Number(), [7]byte{0, 0, 0, 0, 0, 0, 72})
	transport.feed <- broadcast.Encode()

	waitUntil(t, time.Second, func() bool { return rec.count() == 1 })
	assert.Equal(t, 1, rec.count())
}

func TestFreeChannelAllocationExhausts(t *testing.T) {
	transport := newScriptedTransport()
	node := NewNode(transport)
	require.NoError(t, node.Start())
	defer node.Stop(false)

	netKey, err := node.NetworkKeyAt(0)
	require.NoError(t, err)
	netKey.SetName("N:TEST")
	require.NoError(t, node.SetNetworkKey(0, &[8]byte{1, 2, 3, 4, 5, 6, 7, 8}))

	seen := map[byte]bool{}
	for i := 0; i < 8; i++ {
		ch, err := node.GetFreeChannel()
		require.NoError(t, err)
		require.NoError(t, ch.Assign("N:TEST", ChannelTypeTwowayReceive))
		assert.False(t, seen[ch.Number()], "channel %d handed out twice", ch.Number())
		seen[ch.Number()] = true
	}

	_, err = node.GetFreeChannel()
	require.Error(t, err)
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, NodeNoFreeChannel, nodeErr.Kind)
}

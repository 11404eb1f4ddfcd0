package ant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelCloseConsumesTwoDistinctEvents(t *testing.T) {
	transport := newScriptedTransport()
	node := NewNode(transport)
	require.NoError(t, node.Start())
	defer node.Stop(false)

	netKey, err := node.NetworkKeyAt(0)
	require.NoError(t, err)
	netKey.SetName("N:TEST")
	require.NoError(t, node.SetNetworkKey(0, &[8]byte{1, 2, 3, 4, 5, 6, 7, 8}))

	channel, err := node.GetFreeChannel()
	require.NoError(t, err)
	require.NoError(t, channel.Assign("N:TEST", ChannelTypeTwowayReceive))
	require.NoError(t, channel.Open())

	closeErrCh := make(chan error, 1)
	go func() {
		closeErrCh <- channel.Close()
	}()

	// The scripted transport already answered the close command itself
	// with a ChannelEvent(msg_id=CLOSE, code=0) ack. The channel must still
	// be waiting on a second, distinct EVENT_CHANNEL_CLOSED notification.
	select {
	case err := <-closeErrCh:
		t.Fatalf("Close returned early with %v before EVENT_CHANNEL_CLOSED arrived", err)
	case <-time.After(50 * time.Millisecond):
	}

	closedEvent := NewChannelEventMessage(channel.Number(), MessageChannelEvent, EventChannelClosed)
	transport.feed <- closedEvent.Encode()

	select {
	case err := <-closeErrCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close did not resolve after EVENT_CHANNEL_CLOSED")
	}
}

func TestChannelUnassignFreesSlot(t *testing.T) {
	transport := newScriptedTransport()
	node := NewNode(transport)
	require.NoError(t, node.Start())
	defer node.Stop(false)

	netKey, err := node.NetworkKeyAt(0)
	require.NoError(t, err)
	netKey.SetName("N:TEST")
	require.NoError(t, node.SetNetworkKey(0, &[8]byte{1, 2, 3, 4, 5, 6, 7, 8}))

	channel, err := node.GetFreeChannel()
	require.NoError(t, err)
	require.NoError(t, channel.Assign("N:TEST", ChannelTypeTwowayReceive))
	assert.False(t, channel.IsFree())

	require.NoError(t, channel.Unassign())
	assert.True(t, channel.IsFree())
}

package ant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemResetEncode(t *testing.T) {
	msg := NewSystemResetMessage()
	assert.Equal(t, []byte{0xA4, 0x01, 0x4A, 0x00, 0xEF}, msg.Encode())
}

func TestChannelAssignEncode(t *testing.T) {
	msg := NewChannelAssignMessage(0x00, 0x00, 0x00)
	assert.Equal(t, []byte{0xA4, 0x03, 0x42, 0x00, 0x00, 0x00, 0xE5}, msg.Encode())
}

func TestDecodeRejectBadSync(t *testing.T) {
	m := &Message{}
	_, err := m.Decode([]byte{0xA5, 0x03, 0x42, 0x00, 0x00, 0x00, 0xE5})
	require.Error(t, err)
	var msgErr *MessageError
	require.ErrorAs(t, err, &msgErr)
	assert.Equal(t, BadSync, msgErr.Kind)
}

func TestDecodeRejectBadChecksum(t *testing.T) {
	m := &Message{}
	_, err := m.Decode([]byte{0xA4, 0x03, 0x42, 0x01, 0x02, 0xF3, 0xE5})
	require.Error(t, err)
	var msgErr *MessageError
	require.ErrorAs(t, err, &msgErr)
	assert.Equal(t, BadChecksum, msgErr.Kind)
}

func TestDecodeAccept(t *testing.T) {
	m := &Message{}
	n, err := m.Decode([]byte{0xA4, 0x03, 0x42, 0x00, 0x00, 0x00, 0xE5})
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, byte(0x42), m.Type())
	assert.Equal(t, []byte{0x00, 0x00, 0x00}, m.Payload())
}

func TestDecodePartialStateOnFailure(t *testing.T) {
	m := &Message{}
	require.NoError(t, m.SetType(0x41))
	require.NoError(t, m.SetPayload([]byte{0x07}))

	_, err := m.Decode([]byte{0xA4, 0x03, 0x42, 0x01, 0x02, 0xF3, 0xE5})
	require.Error(t, err)

	assert.Equal(t, byte(0x41), m.Type())
	assert.Equal(t, []byte{0x07}, m.Payload())
}

func TestCodecRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		type_   int
		payload []byte
	}{
		{0x00, nil},
		{0x42, []byte{0x00, 0x00, 0x00}},
		{0xFF, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{0x4A, []byte{0x00}},
	} {
		m, err := NewMessage(tc.type_, tc.payload)
		require.NoError(t, err)

		encoded := m.Encode()
		assert.Equal(t, len(tc.payload)+4, len(encoded))

		decoded := &Message{}
		n, err := decoded.Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, len(tc.payload)+4, n)
		assert.Equal(t, byte(tc.type_), decoded.Type())
		assert.Equal(t, tc.payload, decoded.Payload())
	}
}

func TestChecksumLaw(t *testing.T) {
	m, err := NewMessage(0x42, []byte{0xAB, 0xCD})
	require.NoError(t, err)

	want := byte(MessageTxSync) ^ byte(2) ^ byte(0x42) ^ 0xAB ^ 0xCD
	assert.Equal(t, want, m.Checksum())
}

func TestPayloadBound(t *testing.T) {
	_, err := NewMessage(0x42, make([]byte, 10))
	require.Error(t, err)
	var msgErr *MessageError
	require.ErrorAs(t, err, &msgErr)
	assert.Equal(t, PayloadTooLong, msgErr.Kind)

	_, err = NewMessage(0x100, nil)
	require.Error(t, err)
	require.ErrorAs(t, err, &msgErr)
	assert.Equal(t, TypeOutOfRange, msgErr.Kind)

	_, err = NewMessage(0x42, make([]byte, 9))
	assert.NoError(t, err)
}

func TestCapabilitiesAdvOpts2Defaults(t *testing.T) {
	caps := NewCapabilitiesMessage(8, 3, 0xAB, 0xCD)
	assert.Equal(t, byte(0x00), caps.AdvOptions2())
	assert.Len(t, caps.Payload(), 4)

	caps.SetAdvOptions2(0xEF)
	assert.Equal(t, byte(0xEF), caps.AdvOptions2())
	assert.Len(t, caps.Payload(), 5)
}

func TestBurstDataChannelNumberMasksSequenceBits(t *testing.T) {
	msg := NewChannelBurstDataMessage(0b010_00011, [7]byte{})
	assert.Equal(t, byte(0x03), msg.ChannelNumber())
	assert.Equal(t, byte(0x02), msg.SequenceNumber())
}

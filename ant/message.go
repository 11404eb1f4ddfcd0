package ant

import "fmt"

// Message represents a single ANT message: a one-byte type and a payload of
// at most 9 bytes. The wire checksum is never stored — it is always a pure
// function of (type, payload), computed on demand.
type Message struct {
	type_   byte
	payload []byte
}

// NewMessage builds a Message with the given type and payload.
func NewMessage(type_ int, payload []byte) (*Message, error) {
	m := &Message{}
	if err := m.SetType(type_); err != nil {
		return nil, err
	}
	if err := m.SetPayload(payload); err != nil {
		return nil, err
	}
	return m, nil
}

// Type returns the message's type code.
func (m *Message) Type() byte {
	return m.type_
}

// SetType sets the message's type code. It fails iff t is outside [0,255].
func (m *Message) SetType(t int) error {
	if t < 0 || t > 0xFF {
		return newMessageError(TypeOutOfRange, "type out of range")
	}
	m.type_ = byte(t)
	return nil
}

// Payload returns a copy of the message's payload.
func (m *Message) Payload() []byte {
	out := make([]byte, len(m.payload))
	copy(out, m.payload)
	return out
}

// SetPayload replaces the message's payload. It fails iff len(payload) > 9.
func (m *Message) SetPayload(payload []byte) error {
	if len(payload) > maxPayloadLen {
		return newMessageError(PayloadTooLong, "payload too long")
	}
	m.payload = make([]byte, len(payload))
	copy(m.payload, payload)
	return nil
}

// Checksum computes the wire checksum: the cumulative XOR of the sync byte,
// the payload length, the type, and every payload byte. There is no modulo
// reduction — XOR never leaves [0,255], so a reduction would only risk
// zeroing out 0xFF for no benefit.
func (m *Message) Checksum() byte {
	return checksumOf(m.type_, m.payload)
}

func checksumOf(type_ byte, payload []byte) byte {
	c := MessageTxSync
	c ^= byte(len(payload))
	c ^= type_
	for _, b := range payload {
		c ^= b
	}
	return c
}

// Size returns the total on-wire frame size: len(payload) + 4.
func (m *Message) Size() int {
	return len(m.payload) + 4
}

// Encode renders the message as its on-wire frame:
// SYNC | LEN | TYPE | PAYLOAD | XOR.
func (m *Message) Encode() []byte {
	buf := make([]byte, 0, m.Size())
	buf = append(buf, MessageTxSync, byte(len(m.payload)), m.type_)
	buf = append(buf, m.payload...)
	buf = append(buf, m.Checksum())
	return buf
}

// Decode parses a frame out of raw and, on success, replaces the receiver's
// type and payload and returns the number of bytes consumed (len(payload)+4).
// On failure the receiver is left exactly as it was before the call.
func (m *Message) Decode(raw []byte) (int, error) {
	if len(raw) < 5 {
		return 0, newMessageError(Incomplete, "message is incomplete")
	}

	sync, length, type_ := raw[0], raw[1], raw[2]
	if sync != MessageTxSync {
		return 0, newMessageError(BadSync, "expected TX sync")
	}
	if length > maxPayloadLen {
		return 0, newMessageError(PayloadTooLong, "payload too long")
	}
	if len(raw) < int(length)+4 {
		return 0, newMessageError(Incomplete, "message is incomplete")
	}

	payload := make([]byte, length)
	copy(payload, raw[3:3+int(length)])

	if checksumOf(type_, payload) != raw[3+int(length)] {
		return 0, newMessageError(BadChecksum, "bad checksum")
	}

	m.type_ = type_
	m.payload = payload
	return int(length) + 4, nil
}

// TypedMessage is the tagged-variant view of a Message: every known ANT
// message type implements it, exposing the raw (type, payload) pair plus
// typed accessors specific to that message.
type TypedMessage interface {
	Type() byte
	Payload() []byte
}

// ChannelScoped is implemented by every TypedMessage that carries a channel
// number as its first payload byte.
type ChannelScoped interface {
	TypedMessage
	ChannelNumber() byte
}

// ToTyped decodes raw (if non-nil) into the receiver, then builds the typed
// variant for its current type. It fails with an UnknownType MessageError if
// the type is not one of the known ANT message types.
func (m *Message) ToTyped(raw []byte) (TypedMessage, error) {
	if raw != nil {
		if _, err := m.Decode(raw); err != nil {
			return nil, err
		}
	}

	base := Message{type_: m.type_, payload: m.Payload()}

	switch m.type_ {
	case MessageChannelUnassign:
		return &ChannelUnassignMessage{channelMessage{base}}, nil
	case MessageChannelAssign:
		return &ChannelAssignMessage{channelMessage{base}}, nil
	case MessageChannelID:
		return &ChannelIDMessage{channelMessage{base}}, nil
	case MessageChannelPeriod:
		return &ChannelPeriodMessage{channelMessage{base}}, nil
	case MessageChannelSearchTimeout:
		return &ChannelSearchTimeoutMessage{channelMessage{base}}, nil
	case MessageChannelFrequency:
		return &ChannelFrequencyMessage{channelMessage{base}}, nil
	case MessageChannelTXPower:
		return &ChannelTXPowerMessage{channelMessage{base}}, nil
	case MessageNetworkKey:
		return &NetworkKeyMessage{base}, nil
	case MessageTXPower:
		return &TXPowerMessage{base}, nil
	case MessageStartup:
		return &StartupMessage{base}, nil
	case MessageSystemReset:
		return &SystemResetMessage{base}, nil
	case MessageChannelOpen:
		return &ChannelOpenMessage{channelMessage{base}}, nil
	case MessageChannelClose:
		return &ChannelCloseMessage{channelMessage{base}}, nil
	case MessageChannelRequest:
		return &ChannelRequestMessage{channelMessage{base}}, nil
	case MessageChannelBroadcastData:
		return &ChannelBroadcastDataMessage{channelMessage{base}}, nil
	case MessageChannelAcknowledgedData:
		return &ChannelAcknowledgedDataMessage{channelMessage{base}}, nil
	case MessageChannelBurstData:
		return &ChannelBurstDataMessage{channelMessage{base}}, nil
	case MessageChannelEvent:
		return &ChannelEventMessage{channelMessage{base}}, nil
	case MessageChannelStatus:
		return &ChannelStatusMessage{channelMessage{base}}, nil
	case MessageVersion:
		return &VersionMessage{base}, nil
	case MessageCapabilities:
		return &CapabilitiesMessage{base}, nil
	case MessageSerialNumber:
		return &SerialNumberMessage{base}, nil
	default:
		return nil, newMessageError(UnknownType, fmt.Sprintf("unknown message type 0x%02X", m.type_))
	}
}

// DecodeTyped decodes raw into a fresh Message and returns its typed
// variant plus the number of bytes consumed.
func DecodeTyped(raw []byte) (TypedMessage, int, error) {
	m := &Message{}
	typed, err := m.ToTyped(raw)
	if err != nil {
		return nil, 0, err
	}
	return typed, m.Size(), nil
}

// channelMessage is the shared base of every message whose first payload
// byte is a channel number.
type channelMessage struct {
	Message
}

func newChannelMessage(type_ byte, number byte, extra []byte) channelMessage {
	payload := make([]byte, 1+len(extra))
	payload[0] = number
	copy(payload[1:], extra)
	return channelMessage{Message{type_: type_, payload: payload}}
}

// ChannelNumber returns the channel this message pertains to.
func (c *channelMessage) ChannelNumber() byte {
	return c.payload[0]
}

// SetChannelNumber changes the channel this message pertains to.
func (c *channelMessage) SetChannelNumber(number byte) {
	c.payload[0] = number
}

// ChannelUnassignMessage is Configuration: Unassign Channel (0x41).
type ChannelUnassignMessage struct{ channelMessage }

func NewChannelUnassignMessage(number byte) *ChannelUnassignMessage {
	return &ChannelUnassignMessage{newChannelMessage(MessageChannelUnassign, number, nil)}
}

// ChannelAssignMessage is Configuration: Assign Channel (0x42).
type ChannelAssignMessage struct{ channelMessage }

func NewChannelAssignMessage(number, channelType, network byte) *ChannelAssignMessage {
	return &ChannelAssignMessage{newChannelMessage(MessageChannelAssign, number, []byte{channelType, network})}
}

func (c *ChannelAssignMessage) ChannelType() byte       { return c.payload[1] }
func (c *ChannelAssignMessage) SetChannelType(t byte)   { c.payload[1] = t }
func (c *ChannelAssignMessage) NetworkNumber() byte     { return c.payload[2] }
func (c *ChannelAssignMessage) SetNetworkNumber(n byte) { c.payload[2] = n }

// ChannelIDMessage is Configuration: Set Channel ID (0x51).
type ChannelIDMessage struct{ channelMessage }

func NewChannelIDMessage(number byte, deviceNumber uint16, deviceType, transType byte) *ChannelIDMessage {
	m := &ChannelIDMessage{newChannelMessage(MessageChannelID, number, []byte{0, 0, deviceType, transType})}
	m.SetDeviceNumber(deviceNumber)
	return m
}

func (c *ChannelIDMessage) DeviceNumber() uint16 {
	return uint16(c.payload[1]) | uint16(c.payload[2])<<8
}

func (c *ChannelIDMessage) SetDeviceNumber(n uint16) {
	c.payload[1] = byte(n)
	c.payload[2] = byte(n >> 8)
}

func (c *ChannelIDMessage) DeviceType() byte           { return c.payload[3] }
func (c *ChannelIDMessage) SetDeviceType(t byte)       { c.payload[3] = t }
func (c *ChannelIDMessage) TransmissionType() byte     { return c.payload[4] }
func (c *ChannelIDMessage) SetTransmissionType(t byte) { c.payload[4] = t }

// ChannelPeriodMessage is Configuration: Channel Messaging Period (0x43).
type ChannelPeriodMessage struct{ channelMessage }

func NewChannelPeriodMessage(number byte, period uint16) *ChannelPeriodMessage {
	m := &ChannelPeriodMessage{newChannelMessage(MessageChannelPeriod, number, []byte{0, 0})}
	m.SetChannelPeriod(period)
	return m
}

func (c *ChannelPeriodMessage) ChannelPeriod() uint16 {
	return uint16(c.payload[1]) | uint16(c.payload[2])<<8
}

func (c *ChannelPeriodMessage) SetChannelPeriod(period uint16) {
	c.payload[1] = byte(period)
	c.payload[2] = byte(period >> 8)
}

// ChannelSearchTimeoutMessage is Configuration: Channel Search Timeout (0x44).
type ChannelSearchTimeoutMessage struct{ channelMessage }

func NewChannelSearchTimeoutMessage(number, timeout byte) *ChannelSearchTimeoutMessage {
	m := &ChannelSearchTimeoutMessage{newChannelMessage(MessageChannelSearchTimeout, number, []byte{0})}
	m.SetTimeout(timeout)
	return m
}

func (c *ChannelSearchTimeoutMessage) Timeout() byte     { return c.payload[1] }
func (c *ChannelSearchTimeoutMessage) SetTimeout(t byte) { c.payload[1] = t }

// ChannelFrequencyMessage is Configuration: Channel RF Frequency (0x45).
type ChannelFrequencyMessage struct{ channelMessage }

func NewChannelFrequencyMessage(number, frequency byte) *ChannelFrequencyMessage {
	m := &ChannelFrequencyMessage{newChannelMessage(MessageChannelFrequency, number, []byte{0})}
	m.SetFrequency(frequency)
	return m
}

func (c *ChannelFrequencyMessage) Frequency() byte     { return c.payload[1] }
func (c *ChannelFrequencyMessage) SetFrequency(f byte) { c.payload[1] = f }

// ChannelTXPowerMessage is Configuration: Set Channel Tx Power (0x60).
type ChannelTXPowerMessage struct{ channelMessage }

func NewChannelTXPowerMessage(number, power byte) *ChannelTXPowerMessage {
	m := &ChannelTXPowerMessage{newChannelMessage(MessageChannelTXPower, number, []byte{0})}
	m.SetPower(power)
	return m
}

func (c *ChannelTXPowerMessage) Power() byte     { return c.payload[1] }
func (c *ChannelTXPowerMessage) SetPower(p byte) { c.payload[1] = p }

// NetworkKeyMessage is Configuration: Set Network Key (0x46).
type NetworkKeyMessage struct{ Message }

func NewNetworkKeyMessage(number byte, key [8]byte) *NetworkKeyMessage {
	payload := make([]byte, 9)
	payload[0] = number
	copy(payload[1:], key[:])
	return &NetworkKeyMessage{Message{type_: MessageNetworkKey, payload: payload}}
}

func (n *NetworkKeyMessage) Number() byte      { return n.payload[0] }
func (n *NetworkKeyMessage) SetNumber(b byte)  { n.payload[0] = b }
func (n *NetworkKeyMessage) Key() []byte       { return append([]byte(nil), n.payload[1:]...) }
func (n *NetworkKeyMessage) SetKey(key []byte) { copy(n.payload[1:], key) }

// TXPowerMessage is Configuration: Transmit Power (0x47).
type TXPowerMessage struct{ Message }

func NewTXPowerMessage(power byte) *TXPowerMessage {
	return &TXPowerMessage{Message{type_: MessageTXPower, payload: []byte{0, power}}}
}

func (t *TXPowerMessage) Power() byte     { return t.payload[1] }
func (t *TXPowerMessage) SetPower(p byte) { t.payload[1] = p }

// SystemResetMessage is Control: Reset System (0x4A).
type SystemResetMessage struct{ Message }

func NewSystemResetMessage() *SystemResetMessage {
	return &SystemResetMessage{Message{type_: MessageSystemReset, payload: []byte{0}}}
}

// StartupMessage is Notification: Start-up Message (0x6F).
type StartupMessage struct{ Message }

func NewStartupMessage() *StartupMessage {
	return &StartupMessage{Message{type_: MessageStartup, payload: []byte{0}}}
}

func (s *StartupMessage) StartupReason() byte { return s.payload[0] }

// ChannelOpenMessage is Control: Open Channel (0x4B).
type ChannelOpenMessage struct{ channelMessage }

func NewChannelOpenMessage(number byte) *ChannelOpenMessage {
	return &ChannelOpenMessage{newChannelMessage(MessageChannelOpen, number, nil)}
}

// ChannelCloseMessage is Control: Close Channel (0x4C).
type ChannelCloseMessage struct{ channelMessage }

func NewChannelCloseMessage(number byte) *ChannelCloseMessage {
	return &ChannelCloseMessage{newChannelMessage(MessageChannelClose, number, nil)}
}

// ChannelRequestMessage requests that the stick send back a specific
// message type (0x4D), e.g. Capabilities or Channel Status.
type ChannelRequestMessage struct{ channelMessage }

func NewChannelRequestMessage(number, requestedMessageID byte) *ChannelRequestMessage {
	return &ChannelRequestMessage{newChannelMessage(MessageChannelRequest, number, []byte{requestedMessageID})}
}

func (c *ChannelRequestMessage) RequestedMessageID() byte     { return c.payload[1] }
func (c *ChannelRequestMessage) SetRequestedMessageID(id byte) { c.payload[1] = id }

// RequestMessage is a historical alias for ChannelRequestMessage.
type RequestMessage = ChannelRequestMessage

// ChannelBroadcastDataMessage is Data: Broadcast Data (0x4E).
type ChannelBroadcastDataMessage struct{ channelMessage }

func NewChannelBroadcastDataMessage(number byte, data [7]byte) *ChannelBroadcastDataMessage {
	return &ChannelBroadcastDataMessage{newChannelMessage(MessageChannelBroadcastData, number, data[:])}
}

func (c *ChannelBroadcastDataMessage) Data() []byte { return append([]byte(nil), c.payload[1:]...) }

// ChannelAcknowledgedDataMessage is Data: Acknowledged Data (0x4F).
type ChannelAcknowledgedDataMessage struct{ channelMessage }

func NewChannelAcknowledgedDataMessage(number byte, data [7]byte) *ChannelAcknowledgedDataMessage {
	return &ChannelAcknowledgedDataMessage{newChannelMessage(MessageChannelAcknowledgedData, number, data[:])}
}

func (c *ChannelAcknowledgedDataMessage) Data() []byte { return append([]byte(nil), c.payload[1:]...) }

// ChannelBurstDataMessage is Data: Burst Data (0x50). The first payload
// byte packs the channel number in its low 5 bits and the burst sequence
// number in its high 3 bits.
type ChannelBurstDataMessage struct{ channelMessage }

func NewChannelBurstDataMessage(channelSeq byte, data [7]byte) *ChannelBurstDataMessage {
	return &ChannelBurstDataMessage{newChannelMessage(MessageChannelBurstData, channelSeq, data[:])}
}

// ChannelNumber overrides channelMessage.ChannelNumber to mask out the
// sequence bits packed into the same byte.
func (c *ChannelBurstDataMessage) ChannelNumber() byte {
	return c.payload[0] & 0x1F
}

func (c *ChannelBurstDataMessage) SequenceNumber() byte {
	return c.payload[0] >> 5
}

func (c *ChannelBurstDataMessage) Data() []byte { return append([]byte(nil), c.payload[1:]...) }

// ChannelEventMessage is Channel Response / Event (0x40): carries either an
// asynchronous RF event or the acknowledgement of a prior outbound command.
type ChannelEventMessage struct{ channelMessage }

func NewChannelEventMessage(number, messageID, messageCode byte) *ChannelEventMessage {
	return &ChannelEventMessage{newChannelMessage(MessageChannelEvent, number, []byte{messageID, messageCode})}
}

func (c *ChannelEventMessage) MessageID() byte         { return c.payload[1] }
func (c *ChannelEventMessage) SetMessageID(id byte)     { c.payload[1] = id }
func (c *ChannelEventMessage) MessageCode() byte       { return c.payload[2] }
func (c *ChannelEventMessage) SetMessageCode(code byte) { c.payload[2] = code }

// ChannelStatusMessage is Requested Response: Channel Status (0x52).
type ChannelStatusMessage struct{ channelMessage }

func NewChannelStatusMessage(number, status byte) *ChannelStatusMessage {
	return &ChannelStatusMessage{newChannelMessage(MessageChannelStatus, number, []byte{status})}
}

func (c *ChannelStatusMessage) Status() byte     { return c.payload[1] }
func (c *ChannelStatusMessage) SetStatus(s byte) { c.payload[1] = s }

// VersionMessage is Requested Response: ANT Version (0x3E).
type VersionMessage struct{ Message }

func NewVersionMessage(version [9]byte) *VersionMessage {
	return &VersionMessage{Message{type_: MessageVersion, payload: version[:]}}
}

func (v *VersionMessage) Version() []byte { return v.Payload() }

// CapabilitiesMessage is Requested Response: Capabilities (0x54). AdvOpts2
// is absent on older firmware; reading it then yields 0, and setting it
// grows the payload from 4 to 5 bytes.
type CapabilitiesMessage struct{ Message }

func NewCapabilitiesMessage(maxChannels, maxNetworks, stdOpts, advOpts byte) *CapabilitiesMessage {
	return &CapabilitiesMessage{Message{
		type_:   MessageCapabilities,
		payload: []byte{maxChannels, maxNetworks, stdOpts, advOpts},
	}}
}

func (c *CapabilitiesMessage) MaxChannels() byte { return c.payload[0] }
func (c *CapabilitiesMessage) MaxNetworks() byte { return c.payload[1] }
func (c *CapabilitiesMessage) StdOptions() byte  { return c.payload[2] }
func (c *CapabilitiesMessage) AdvOptions() byte  { return c.payload[3] }

func (c *CapabilitiesMessage) AdvOptions2() byte {
	if len(c.payload) == 5 {
		return c.payload[4]
	}
	return 0x00
}

func (c *CapabilitiesMessage) SetAdvOptions2(v byte) {
	if len(c.payload) == 4 {
		c.payload = append(c.payload, 0)
	}
	c.payload[4] = v
}

// SerialNumberMessage is Requested Response: Device Serial Number (0x61).
type SerialNumberMessage struct{ Message }

func NewSerialNumberMessage(serial [4]byte) *SerialNumberMessage {
	return &SerialNumberMessage{Message{type_: MessageSerialNumber, payload: serial[:]}}
}

func (s *SerialNumberMessage) SerialNumber() []byte { return s.Payload() }

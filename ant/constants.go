// Package ant speaks the ANT wireless protocol to a USB dongle: framing and
// decoding messages on the wire, driving the asynchronous request/response
// exchange with the stick, and exposing a channel/network control plane on
// top of it.
package ant

// MessageTxSync is the fixed frame-start marker ("sync byte") of every ANT
// message on the wire.
const MessageTxSync byte = 0xA4

// Message type codes, as assigned by the ANT Message Protocol
// specification. Payload layouts are documented on each typed message in
// message.go.
const (
	MessageChannelEvent         byte = 0x40
	MessageChannelUnassign      byte = 0x41
	MessageChannelAssign        byte = 0x42
	MessageChannelPeriod        byte = 0x43
	MessageChannelSearchTimeout byte = 0x44
	MessageChannelFrequency     byte = 0x45
	MessageNetworkKey           byte = 0x46
	MessageTXPower              byte = 0x47
	MessageSystemReset          byte = 0x4A
	MessageChannelOpen          byte = 0x4B
	MessageChannelClose         byte = 0x4C
	MessageChannelRequest       byte = 0x4D
	MessageChannelBroadcastData byte = 0x4E
	MessageChannelAcknowledgedData byte = 0x4F
	MessageChannelBurstData     byte = 0x50
	MessageChannelID            byte = 0x51
	MessageChannelStatus        byte = 0x52
	MessageVersion              byte = 0x3E
	MessageCapabilities         byte = 0x54
	MessageSerialNumber         byte = 0x61
	MessageStartup              byte = 0x6F
	MessageChannelTXPower       byte = 0x60
)

// Channel response/event codes, carried in a ChannelEventMessage's message
// code field. RESPONSE_NO_ERROR doubles as the ack for every outbound
// config/control message; the EVENT_* codes are asynchronous RF events.
const (
	ResponseNoError byte = 0x00

	EventRxSearchTimeout      byte = 0x01
	EventRxFail               byte = 0x02
	EventTx                   byte = 0x03
	EventTransferRxFailed     byte = 0x04
	EventTransferTxCompleted  byte = 0x05
	EventTransferTxFailed     byte = 0x06
	EventChannelClosed        byte = 0x07
	EventRxFailGoToSearch     byte = 0x08
	EventChannelCollision     byte = 0x09
	EventTransferTxStart      byte = 0x0A
	EventRxFusion             byte = 0x20
)

// Channel status values, carried in a ChannelStatusMessage.
const (
	StatusUnassigned byte = 0x00
	StatusAssigned   byte = 0x01
	StatusSearching  byte = 0x02
	StatusTracking   byte = 0x03
)

// Channel type flags used with ChannelAssignMessage.
const (
	ChannelTypeTwowayReceive  byte = 0x00
	ChannelTypeTwowayTransmit byte = 0x10
	ChannelTypeSharedReceive  byte = 0x20
	ChannelTypeSharedTransmit byte = 0x30
	ChannelTypeRxOnly         byte = 0x40
	ChannelTypeTxOnly         byte = 0x50

	// TimeoutNever disables the high-priority search timeout for a channel.
	TimeoutNever byte = 0xFF
)

// maxPayloadLen is the largest payload an ANT message frame can carry.
const maxPayloadLen = 9

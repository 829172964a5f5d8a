package engineio

import "encoding/json"

// Protocol version negotiated with the upstream. Only EIO=4 is supported.
const ProtocolVersion = "4"

// Literal frames exchanged during the transport upgrade and heartbeat.
const (
	FrameProbe       = "2probe"
	FrameProbeAck    = "3probe"
	FrameUpgrade     = "5"
	FramePing        = "2"
	FramePong        = "3"
	FrameNoop        = "6"
	FrameConnect     = "40"
	EventFramePrefix = "42"
	OpenPacketPrefix = "0{"
)

// Kind discriminates classified frames.
type Kind int

const (
	KindUnclassified Kind = iota
	KindProbeAck
	KindPing
	KindNoop
	KindEvent
)

func (k Kind) String() string {
	switch k {
	case KindProbeAck:
		return "upgrade-probe-ack"
	case KindPing:
		return "heartbeat-ping"
	case KindNoop:
		return "no-op"
	case KindEvent:
		return "application-event"
	default:
		return "unclassified"
	}
}

// Frame is the result of classifying one inbound text frame.
type Frame struct {
	Kind Kind

	// Raw is the frame exactly as received. Forwarded frames use it verbatim.
	Raw string

	// Reply is the frame that must be written back on the same connection,
	// or the empty string when none is required.
	Reply string

	// Name and Payload are only set for well-formed application events.
	// Payload holds the array elements following the event name.
	Name    string
	Payload []json.RawMessage

	// Err is set when an application-event frame could not be parsed.
	Err error
}

// IsEvent reports whether the frame is a well-formed application event.
func (f Frame) IsEvent() bool {
	return f.Kind == KindEvent && f.Err == nil
}

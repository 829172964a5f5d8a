package engineio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotArray      = errors.New("event payload is not a JSON array")
	ErrMissingName   = errors.New("event array has no name element")
	ErrNameNotString = errors.New("event name is not a string")
)

// ParseError describes an application-event frame that could not be decoded.
// It is local to the frame: the connection it arrived on stays usable.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed event frame: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Classify decodes a single text frame received over the websocket transport.
// Rules are checked in order and the first match wins: probe acknowledgment,
// ping, no-op, application event, and finally unclassified.
func Classify(raw string) Frame {
	switch raw {
	case FrameProbeAck:
		return Frame{Kind: KindProbeAck, Raw: raw, Reply: FrameUpgrade}
	case FramePing:
		return Frame{Kind: KindPing, Raw: raw, Reply: FramePong}
	case FrameNoop:
		return Frame{Kind: KindNoop, Raw: raw}
	}

	if !strings.HasPrefix(raw, EventFramePrefix) {
		return Frame{Kind: KindUnclassified, Raw: raw}
	}

	frame := Frame{Kind: KindEvent, Raw: raw}
	name, payload, err := parseEventArray(raw[len(EventFramePrefix):])
	if err != nil {
		frame.Err = &ParseError{Raw: raw, Err: err}
		return frame
	}

	frame.Name = name
	frame.Payload = payload
	return frame
}

func parseEventArray(data string) (string, []json.RawMessage, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(data), &elements); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrNotArray, err)
	}

	// "null" decodes into a nil slice without error
	if len(elements) == 0 {
		return "", nil, ErrMissingName
	}

	var name string
	if err := json.Unmarshal(elements[0], &name); err != nil {
		return "", nil, ErrNameNotString
	}

	return name, elements[1:], nil
}

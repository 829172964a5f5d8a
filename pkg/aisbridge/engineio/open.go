package engineio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotOpenPacket = errors.New("response is not an open packet")
	ErrMissingSID    = errors.New("open packet has no sid")
)

// OpenPacket is the handshake data returned by the polling transport.
type OpenPacket struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int64    `json:"pingInterval"`
	PingTimeout  int64    `json:"pingTimeout"`
	MaxPayload   int64    `json:"maxPayload"`
}

// HeartbeatWindow is the longest the server may stay silent before the
// session should be considered dead. Zero when the server did not advertise
// its ping settings.
func (p OpenPacket) HeartbeatWindow() time.Duration {
	if p.PingInterval <= 0 || p.PingTimeout <= 0 {
		return 0
	}
	return time.Duration(p.PingInterval+p.PingTimeout) * time.Millisecond
}

// ParseOpen decodes a polling response body of the form 0{"sid":...}.
func ParseOpen(body string) (OpenPacket, error) {
	var packet OpenPacket

	if !strings.HasPrefix(body, OpenPacketPrefix) {
		return packet, fmt.Errorf("%w: %q", ErrNotOpenPacket, truncate(body, 64))
	}

	if err := json.Unmarshal([]byte(body[1:]), &packet); err != nil {
		return packet, fmt.Errorf("%w: %v", ErrNotOpenPacket, err)
	}

	if packet.SID == "" {
		return packet, ErrMissingSID
	}

	return packet, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

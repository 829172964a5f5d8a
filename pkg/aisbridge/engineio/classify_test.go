package engineio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyControlFrames(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		kind  Kind
		reply string
	}{
		{"probe ack", "3probe", KindProbeAck, "5"},
		{"ping", "2", KindPing, "3"},
		{"noop", "6", KindNoop, ""},
		{"pong is not a ping", "3", KindUnclassified, ""},
		{"probe request", "2probe", KindUnclassified, ""},
		{"empty", "", KindUnclassified, ""},
		{"socket.io connect ack", `40{"sid":"abc"}`, KindUnclassified, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := Classify(tt.raw)
			assert.Equal(t, tt.kind, frame.Kind)
			assert.Equal(t, tt.reply, frame.Reply)
			assert.Equal(t, tt.raw, frame.Raw)
			assert.NoError(t, frame.Err)
			assert.False(t, frame.IsEvent())
		})
	}
}

func TestClassifyEvent(t *testing.T) {
	t.Run("name and payload", func(t *testing.T) {
		raw := `42["vesselPositions-update",{"mmsi":123,"lat":1.5},"extra"]`
		frame := Classify(raw)

		require.True(t, frame.IsEvent())
		assert.Equal(t, "vesselPositions-update", frame.Name)
		assert.Equal(t, raw, frame.Raw)
		assert.Empty(t, frame.Reply)
		require.Len(t, frame.Payload, 2)
		assert.JSONEq(t, `{"mmsi":123,"lat":1.5}`, string(frame.Payload[0]))
		assert.JSONEq(t, `"extra"`, string(frame.Payload[1]))
	})

	t.Run("name only", func(t *testing.T) {
		frame := Classify(`42["vesselPositions-init"]`)
		require.True(t, frame.IsEvent())
		assert.Equal(t, "vesselPositions-init", frame.Name)
		assert.Empty(t, frame.Payload)
	})
}

func TestClassifyMalformedEvent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", "42not-json", ErrNotArray},
		{"object instead of array", `42{"a":1}`, ErrNotArray},
		{"empty array", "42[]", ErrMissingName},
		{"null", "42null", ErrMissingName},
		{"numeric name", `42[5,{}]`, ErrNameNotString},
		{"bare prefix", "42", ErrNotArray},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := Classify(tt.raw)
			assert.Equal(t, KindEvent, frame.Kind)
			assert.False(t, frame.IsEvent())
			assert.Empty(t, frame.Name)
			assert.Empty(t, frame.Reply)

			var parseErr *ParseError
			require.True(t, errors.As(frame.Err, &parseErr))
			assert.Equal(t, tt.raw, parseErr.Raw)
			assert.ErrorIs(t, frame.Err, tt.want)
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "upgrade-probe-ack", KindProbeAck.String())
	assert.Equal(t, "heartbeat-ping", KindPing.String())
	assert.Equal(t, "no-op", KindNoop.String())
	assert.Equal(t, "application-event", KindEvent.String())
	assert.Equal(t, "unclassified", KindUnclassified.String())
}

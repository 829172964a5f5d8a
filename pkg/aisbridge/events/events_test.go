package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultForward(t *testing.T) {
	set := NewNameSet(DefaultForward...)

	assert.True(t, set.Contains("vesselPositions-update"))
	assert.True(t, set.Contains("vesselPositions-init"))
	assert.False(t, set.Contains("realtimeStats-counters"))
	assert.False(t, set.Contains("vesselPositions"))
	assert.False(t, set.Contains("vesselPositions-update-extra"))
	assert.False(t, set.Contains(""))
	assert.Equal(t, 2, set.Len())
}

func TestDefaultQuietOverlapsForward(t *testing.T) {
	quiet := NewNameSet(DefaultQuiet...)

	assert.True(t, quiet.Contains("vesselPositions-update"))
	assert.False(t, quiet.Contains("vesselPositions-init"))
	assert.True(t, quiet.Contains("realtimeStats-counters"))
	assert.True(t, quiet.Contains("realtimeStats-vesselTypePie"))
}

func TestPatterns(t *testing.T) {
	set := NewNameSet("realtimeStats-+", "alarms-#", "")

	assert.True(t, set.Contains("realtimeStats-counters"))
	assert.True(t, set.Contains("realtimeStats-vesselTypePie"))
	assert.False(t, set.Contains("realtimeStats"))
	assert.False(t, set.Contains("realtimeStats-counters-daily"))

	assert.True(t, set.Contains("alarms-anchor"))
	assert.True(t, set.Contains("alarms-anchor-drag"))

	assert.False(t, set.Contains("vesselPositions-update"))
	assert.Equal(t, 2, set.Len())
}

func TestNilSet(t *testing.T) {
	var set *NameSet
	assert.False(t, set.Contains("vesselPositions-update"))
	assert.Equal(t, 0, set.Len())
}

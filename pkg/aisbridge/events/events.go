// Package events holds the name lists that decide what happens to an
// application event after classification: whether it is forwarded to local
// subscribers and whether it is logged.
package events

import (
	"strings"

	"github.com/amir-yaghoubi/mqttpattern"
)

// Default event names forwarded to local subscribers.
var DefaultForward = []string{
	"vesselPositions-update",
	"vesselPositions-init",
}

// Default event names exempt from per-message logging. These arrive several
// times a second and would drown everything else.
var DefaultQuiet = []string{
	"vesselPositions-update",
	"realtimeStats-counters",
	"realtimeStats-vesselTypePie",
}

// NameSet matches event names against a fixed list of entries. An entry is
// either an exact event name or an MQTT-style pattern in which '-' separates
// levels, so "realtimeStats-+" matches "realtimeStats-counters" and
// "vesselPositions-#" matches every vesselPositions event.
type NameSet struct {
	exact    map[string]struct{}
	patterns []string
}

// NewNameSet builds a NameSet. Empty entries are ignored.
func NewNameSet(entries ...string) *NameSet {
	s := &NameSet{exact: make(map[string]struct{}, len(entries))}
	for _, entry := range entries {
		if entry == "" {
			continue
		}
		if strings.ContainsAny(entry, "+#") {
			s.patterns = append(s.patterns, toTopic(entry))
		} else {
			s.exact[entry] = struct{}{}
		}
	}
	return s
}

// Contains reports whether name is matched by any entry. Only the name is
// considered; payloads never influence the decision.
func (s *NameSet) Contains(name string) bool {
	if s == nil || name == "" {
		return false
	}

	if _, ok := s.exact[name]; ok {
		return true
	}

	if len(s.patterns) == 0 {
		return false
	}

	topic := toTopic(name)
	for _, pattern := range s.patterns {
		if mqttpattern.Matches(pattern, topic) {
			return true
		}
	}

	return false
}

// Len returns the number of entries.
func (s *NameSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.exact) + len(s.patterns)
}

func toTopic(name string) string {
	return strings.ReplaceAll(name, "-", "/")
}

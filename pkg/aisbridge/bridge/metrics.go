package bridge

import (
	"context"
	"time"

	"github.com/tsarna/aisbridge/pkg/aisbridge/o11y"
)

// BridgeMetrics holds the supervisor's instruments. A nil *BridgeMetrics
// records nothing.
type BridgeMetrics struct {
	attempts       o11y.Counter
	attemptErrors  o11y.Counter
	connects       o11y.Counter
	disconnects    o11y.Counter
	connected      o11y.Gauge
	connectionTime o11y.Histogram

	frames        o11y.Counter
	forwarded     o11y.Counter
	forwardErrors o11y.Counter
	parseErrors   o11y.Counter
}

// NewBridgeMetrics creates the instruments on provider. Returns nil if
// provider is nil.
func NewBridgeMetrics(provider o11y.MetricsProvider) *BridgeMetrics {
	if provider == nil {
		return nil
	}

	return &BridgeMetrics{
		attempts:       provider.Counter("upstream_connect_attempts_total"),
		attemptErrors:  provider.Counter("upstream_connect_errors_total"),
		connects:       provider.Counter("upstream_connects_total"),
		disconnects:    provider.Counter("upstream_disconnects_total"),
		connected:      provider.Gauge("upstream_connected"),
		connectionTime: provider.Histogram("upstream_connection_duration_seconds"),

		frames:        provider.Counter("upstream_frames_total"),
		forwarded:     provider.Counter("upstream_events_forwarded_total"),
		forwardErrors: provider.Counter("upstream_forward_errors_total"),
		parseErrors:   provider.Counter("upstream_parse_errors_total"),
	}
}

func (m *BridgeMetrics) RecordAttempt(ctx context.Context) {
	if m == nil {
		return
	}
	m.attempts.Add(ctx, 1)
}

// RecordAttemptError records a failed attempt; stage is "handshake" or "upgrade".
func (m *BridgeMetrics) RecordAttemptError(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.attemptErrors.Add(ctx, 1, o11y.Label{Key: "stage", Value: stage})
}

func (m *BridgeMetrics) RecordConnected(ctx context.Context) {
	if m == nil {
		return
	}
	m.connects.Add(ctx, 1)
	m.connected.Set(ctx, 1)
}

func (m *BridgeMetrics) RecordDisconnected(ctx context.Context, duration time.Duration) {
	if m == nil {
		return
	}
	m.disconnects.Add(ctx, 1)
	m.connected.Set(ctx, 0)
	m.connectionTime.Record(ctx, duration.Seconds())
}

func (m *BridgeMetrics) RecordFrame(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.frames.Add(ctx, 1, o11y.Label{Key: "kind", Value: kind})
}

func (m *BridgeMetrics) RecordForwarded(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.forwarded.Add(ctx, 1, o11y.Label{Key: "event", Value: event})
}

func (m *BridgeMetrics) RecordForwardError(ctx context.Context) {
	if m == nil {
		return
	}
	m.forwardErrors.Add(ctx, 1)
}

func (m *BridgeMetrics) RecordParseError(ctx context.Context) {
	if m == nil {
		return
	}
	m.parseErrors.Add(ctx, 1)
}

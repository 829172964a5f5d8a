package fanout

import (
	"context"
	"time"

	"github.com/tsarna/aisbridge/pkg/aisbridge/o11y"
)

// SubscriberMetrics holds the instruments recorded by the fan-out server.
// A nil *SubscriberMetrics records nothing.
type SubscriberMetrics struct {
	activeSubscribers  o11y.Gauge
	subscribersTotal   o11y.Counter
	connectionDuration o11y.Histogram
	acceptErrors       o11y.Counter

	framesSent    o11y.Counter
	framesDropped o11y.Counter
	writeErrors   o11y.Counter
	frameSize     o11y.Histogram

	pingsSent o11y.Counter
}

// NewSubscriberMetrics creates the instruments on provider. Returns nil if
// provider is nil.
func NewSubscriberMetrics(provider o11y.MetricsProvider) *SubscriberMetrics {
	if provider == nil {
		return nil
	}

	return &SubscriberMetrics{
		activeSubscribers:  provider.Gauge("fanout_active_subscribers"),
		subscribersTotal:   provider.Counter("fanout_subscribers_total"),
		connectionDuration: provider.Histogram("fanout_subscriber_duration_seconds"),
		acceptErrors:       provider.Counter("fanout_accept_errors_total"),

		framesSent:    provider.Counter("fanout_frames_sent_total"),
		framesDropped: provider.Counter("fanout_frames_dropped_total"),
		writeErrors:   provider.Counter("fanout_write_errors_total"),
		frameSize:     provider.Histogram("fanout_frame_size_bytes"),

		pingsSent: provider.Counter("fanout_pings_sent_total"),
	}
}

func (m *SubscriberMetrics) RecordSubscriberStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.subscribersTotal.Add(ctx, 1)
}

func (m *SubscriberMetrics) RecordSubscriberActive(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.activeSubscribers.Set(ctx, float64(count))
}

func (m *SubscriberMetrics) RecordSubscriberEnd(ctx context.Context, duration time.Duration) {
	if m == nil {
		return
	}
	m.connectionDuration.Record(ctx, duration.Seconds())
}

func (m *SubscriberMetrics) RecordAcceptError(ctx context.Context) {
	if m == nil {
		return
	}
	m.acceptErrors.Add(ctx, 1)
}

// RecordFrameSent records a frame written to one subscriber.
func (m *SubscriberMetrics) RecordFrameSent(ctx context.Context, sizeBytes int) {
	if m == nil {
		return
	}
	m.framesSent.Add(ctx, 1)
	m.frameSize.Record(ctx, float64(sizeBytes))
}

// RecordFrameDropped records a frame discarded because a subscriber's queue
// was full.
func (m *SubscriberMetrics) RecordFrameDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.framesDropped.Add(ctx, 1)
}

func (m *SubscriberMetrics) RecordWriteError(ctx context.Context, errorType string) {
	if m == nil {
		return
	}
	m.writeErrors.Add(ctx, 1, o11y.Label{Key: "error_type", Value: errorType})
}

func (m *SubscriberMetrics) RecordPingSent(ctx context.Context) {
	if m == nil {
		return
	}
	m.pingsSent.Add(ctx, 1)
}

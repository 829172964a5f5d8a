package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/aisbridge/pkg/aisbridge/bridge"
	"github.com/tsarna/aisbridge/pkg/aisbridge/metrics"
	"github.com/tsarna/aisbridge/pkg/aisbridge/o11y"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeUpstream struct {
	state    bridge.State
	attempts int64
}

func (f fakeUpstream) State() bridge.State { return f.state }

func (f fakeUpstream) Attempts() int64 { return f.attempts }

type fakeSubscribers int

func (f fakeSubscribers) SubscriberCount() int { return int(f) }

func TestReportFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	provider := metrics.NewStandaloneProvider()
	ctx := context.Background()
	provider.Counter("upstream_frames_total").Add(ctx, 7, o11y.Label{Key: "kind", Value: "heartbeat-ping"})
	provider.Counter("upstream_frames_total").Add(ctx, 5, o11y.Label{Key: "kind", Value: "application-event"})
	provider.Counter("upstream_events_forwarded_total").Add(ctx, 4, o11y.Label{Key: "event", Value: "vesselPositions-update"})
	provider.Counter("upstream_events_forwarded_total").Add(ctx, 1, o11y.Label{Key: "event", Value: "vesselPositions-init"})
	provider.Counter("fanout_frames_dropped_total").Add(ctx, 2)

	reporter, err := NewReporter().
		WithLogger(zap.New(core)).
		WithUpstream(fakeUpstream{state: bridge.StateConnected, attempts: 3}).
		WithSubscribers(fakeSubscribers(2)).
		WithSnapshots(provider).
		Build()
	require.NoError(t, err)

	reporter.Report()

	entries := logs.FilterMessage("Bridge status").AllUntimed()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "connected", fields["upstream"])
	assert.Equal(t, int64(3), fields["attempts"])
	assert.Equal(t, int64(2), fields["subscribers"])
	assert.Equal(t, int64(12), fields["frames"])
	assert.Equal(t, int64(5), fields["forwarded"])
	assert.Equal(t, int64(0), fields["parse_errors"])
	assert.Equal(t, int64(2), fields["dropped"])
	assert.Equal(t, []interface{}{"vesselPositions-init=1", "vesselPositions-update=4"}, fields["events"])
}

func TestReportWithoutSources(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	reporter, err := NewReporter().WithLogger(zap.New(core)).Build()
	require.NoError(t, err)

	reporter.Run()
	assert.Equal(t, 1, logs.FilterMessage("Bridge status").Len())
}

func TestReporterRunsOnSchedule(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	reporter, err := NewReporter().
		WithLogger(zap.New(core)).
		WithSchedule("@every 1s").
		Build()
	require.NoError(t, err)

	reporter.Start()
	defer reporter.Stop()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("Bridge status").Len() >= 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestInvalidSchedule(t *testing.T) {
	_, err := NewReporter().WithSchedule("every minute please").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status schedule")
}

func TestReporterBuilderFluentInterface(t *testing.T) {
	b := NewReporter()
	assert.Same(t, b, b.WithLogger(zap.NewNop()))
	assert.Same(t, b, b.WithUpstream(fakeUpstream{}))
	assert.Same(t, b, b.WithSubscribers(fakeSubscribers(0)))
	assert.Same(t, b, b.WithSnapshots(metrics.NewStandaloneProvider()))
	assert.Same(t, b, b.WithSchedule("*/10 * * * * *"))
	assert.Same(t, b, b.WithLocation(time.UTC))

	assert.Equal(t, "*/10 * * * * *", b.schedule)
	assert.Equal(t, time.UTC, b.location)

	b.WithSchedule("").WithLocation(nil).WithLogger(nil)
	assert.Equal(t, "*/10 * * * * *", b.schedule)
	assert.Equal(t, time.UTC, b.location)
	assert.NotNil(t, b.logger)
}

func TestZapCronLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapCronLogger(zap.New(core))

	logger.Info("schedule", "now", "noon", "entry", 1, "dangling")
	logger.Error(errors.New("boom"), "job failed", "entry", 2)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, map[string]interface{}{"now": "noon", "entry": int64(1)}, entries[0].ContextMap())

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.Equal(t, int64(2), entries[1].ContextMap()["entry"])
}

package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/aisbridge/pkg/aisbridge/o11y"
)

func TestStandaloneProviderSnapshot(t *testing.T) {
	p := NewStandaloneProvider()
	fixed := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	ctx := context.Background()

	p.Counter("frames_total").Add(ctx, 1, o11y.Label{Key: "kind", Value: "heartbeat-ping"})
	p.Counter("frames_total").Add(ctx, 2, o11y.Label{Key: "kind", Value: "heartbeat-ping"})
	p.Counter("frames_total").Add(ctx, 1, o11y.Label{Key: "kind", Value: "no-op"})
	p.Counter("reconnects_total").Add(ctx, 4)

	p.Gauge("subscribers").Set(ctx, 3)
	p.Gauge("subscribers").Set(ctx, 2)

	p.Histogram("frame_size_bytes").Record(ctx, 10)
	p.Histogram("frame_size_bytes").Record(ctx, 30)
	p.Histogram("frame_size_bytes").Record(ctx, 20)

	snapshot := p.Snapshot()
	assert.Equal(t, fixed, snapshot.Timestamp)
	assert.Equal(t, map[string]int64{
		"frames_total{kind=heartbeat-ping}": 3,
		"frames_total{kind=no-op}":          1,
		"reconnects_total":                  4,
	}, snapshot.Counters)
	assert.Equal(t, map[string]float64{"subscribers": 2}, snapshot.Gauges)

	summary, ok := snapshot.Histograms["frame_size_bytes"]
	require.True(t, ok)
	assert.Equal(t, int64(3), summary.Count)
	assert.Equal(t, 60.0, summary.Sum)
	assert.Equal(t, 10.0, summary.Min)
	assert.Equal(t, 30.0, summary.Max)
	assert.Equal(t, 20.0, summary.Mean())
}

func TestLabelKeyIsOrderIndependent(t *testing.T) {
	a := key("m", []o11y.Label{{Key: "b", Value: "2"}, {Key: "a", Value: "1"}})
	b := key("m", []o11y.Label{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}})
	assert.Equal(t, "m{a=1,b=2}", a)
	assert.Equal(t, a, b)
}

func TestSameInstrumentReturned(t *testing.T) {
	p := NewStandaloneProvider()
	assert.Same(t, p.Counter("c"), p.Counter("c"))
	assert.Same(t, p.Gauge("g"), p.Gauge("g"))
	assert.Same(t, p.Histogram("h"), p.Histogram("h"))
}

func TestConcurrentCounters(t *testing.T) {
	p := NewStandaloneProvider()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.Counter("frames_total").Add(ctx, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), p.Snapshot().Counters["frames_total"])
}

func TestEmptyHistogramMean(t *testing.T) {
	assert.Zero(t, HistogramSummary{}.Mean())
}

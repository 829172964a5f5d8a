// Package metrics provides an in-memory MetricsProvider whose values can be
// read back as a snapshot, used for the periodic status report.
package metrics

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tsarna/aisbridge/pkg/aisbridge/o11y"
)

// Snapshot is a point-in-time copy of every metric recorded so far. Keys are
// the metric name followed by its labels, e.g. frames_total{kind=ping}.
type Snapshot struct {
	Timestamp  time.Time                   `json:"timestamp"`
	Counters   map[string]int64            `json:"counters"`
	Histograms map[string]HistogramSummary `json:"histograms"`
	Gauges     map[string]float64          `json:"gauges"`
}

// HistogramSummary condenses the values recorded on a histogram.
type HistogramSummary struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Mean returns Sum/Count, or zero when nothing was recorded.
func (h HistogramSummary) Mean() float64 {
	if h.Count == 0 {
		return 0
	}
	return h.Sum / float64(h.Count)
}

// StandaloneProvider keeps metrics in memory. It is safe for concurrent use.
type StandaloneProvider struct {
	counters   sync.Map // map[string]*standaloneCounter
	histograms sync.Map // map[string]*standaloneHistogram
	gauges     sync.Map // map[string]*standaloneGauge

	now func() time.Time
}

// NewStandaloneProvider creates an empty provider.
func NewStandaloneProvider() *StandaloneProvider {
	return &StandaloneProvider{now: time.Now}
}

// Snapshot copies the current values of every metric.
func (s *StandaloneProvider) Snapshot() Snapshot {
	snapshot := Snapshot{
		Timestamp:  s.now(),
		Counters:   make(map[string]int64),
		Histograms: make(map[string]HistogramSummary),
		Gauges:     make(map[string]float64),
	}

	s.counters.Range(func(_, value any) bool {
		value.(*standaloneCounter).collect(snapshot.Counters)
		return true
	})

	s.histograms.Range(func(_, value any) bool {
		value.(*standaloneHistogram).collect(snapshot.Histograms)
		return true
	})

	s.gauges.Range(func(_, value any) bool {
		value.(*standaloneGauge).collect(snapshot.Gauges)
		return true
	})

	return snapshot
}

// MetricsProvider interface implementation

func (s *StandaloneProvider) Counter(name string) o11y.Counter {
	actual, _ := s.counters.LoadOrStore(name, &standaloneCounter{name: name})
	return actual.(*standaloneCounter)
}

func (s *StandaloneProvider) Histogram(name string) o11y.Histogram {
	actual, _ := s.histograms.LoadOrStore(name, &standaloneHistogram{name: name})
	return actual.(*standaloneHistogram)
}

func (s *StandaloneProvider) Gauge(name string) o11y.Gauge {
	actual, _ := s.gauges.LoadOrStore(name, &standaloneGauge{name: name})
	return actual.(*standaloneGauge)
}

// Metric implementations

type standaloneCounter struct {
	name   string
	values sync.Map // map[string]*int64, keyed by label string
}

func (c *standaloneCounter) Add(ctx context.Context, value int64, labels ...o11y.Label) {
	actual, _ := c.values.LoadOrStore(key(c.name, labels), new(int64))
	atomic.AddInt64(actual.(*int64), value)
}

func (c *standaloneCounter) collect(into map[string]int64) {
	c.values.Range(func(k, v any) bool {
		into[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})
}

type standaloneHistogram struct {
	name   string
	mu     sync.Mutex
	series map[string]*HistogramSummary
}

func (h *standaloneHistogram) Record(ctx context.Context, value float64, labels ...o11y.Label) {
	k := key(h.name, labels)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.series == nil {
		h.series = make(map[string]*HistogramSummary)
	}

	summary, ok := h.series[k]
	if !ok {
		summary = &HistogramSummary{Min: value, Max: value}
		h.series[k] = summary
	}

	summary.Count++
	summary.Sum += value
	if value < summary.Min {
		summary.Min = value
	}
	if value > summary.Max {
		summary.Max = value
	}
}

func (h *standaloneHistogram) collect(into map[string]HistogramSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, summary := range h.series {
		into[k] = *summary
	}
}

type standaloneGauge struct {
	name   string
	mu     sync.Mutex
	values map[string]float64
}

func (g *standaloneGauge) Set(ctx context.Context, value float64, labels ...o11y.Label) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.values == nil {
		g.values = make(map[string]float64)
	}
	g.values[key(g.name, labels)] = value
}

func (g *standaloneGauge) collect(into map[string]float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, v := range g.values {
		into[k] = v
	}
}

// key renders name{a=1,b=2} with labels sorted by key.
func key(name string, labels []o11y.Label) string {
	if len(labels) == 0 {
		return name
	}

	sorted := make([]o11y.Label, len(labels))
	copy(sorted, labels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, label := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(label.Key)
		b.WriteByte('=')
		b.WriteString(label.Value)
	}
	b.WriteByte('}')
	return b.String()
}

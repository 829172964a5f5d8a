// Package otel provides OpenTelemetry implementations of the bridge's o11y
// interfaces. Instruments are taken from the global meter and tracer
// providers, so nothing is exported until the process installs an SDK.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tsarna/aisbridge/pkg/aisbridge/o11y"
)

// Provider implements both MetricsProvider and TracingProvider using OpenTelemetry
type Provider struct {
	meter  metric.Meter
	tracer trace.Tracer
}

// NewProvider creates a new OpenTelemetry provider
func NewProvider(serviceName, serviceVersion string) *Provider {
	return &Provider{
		meter:  otel.Meter(serviceName, metric.WithInstrumentationVersion(serviceVersion)),
		tracer: otel.Tracer(serviceName, trace.WithInstrumentationVersion(serviceVersion)),
	}
}

// Counter creates an OpenTelemetry counter
func (p *Provider) Counter(name string) o11y.Counter {
	counter, _ := p.meter.Int64Counter(name)
	return &otelCounter{counter: counter}
}

// Histogram creates an OpenTelemetry histogram
func (p *Provider) Histogram(name string) o11y.Histogram {
	histogram, _ := p.meter.Float64Histogram(name)
	return &otelHistogram{histogram: histogram}
}

// Gauge creates a gauge backed by an UpDownCounter. The last value set per
// label set is remembered so Set records the difference.
func (p *Provider) Gauge(name string) o11y.Gauge {
	gauge, _ := p.meter.Float64UpDownCounter(name)
	return &otelGauge{gauge: gauge, last: make(map[attribute.Distinct]float64)}
}

// StartSpan creates an OpenTelemetry span
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, o11y.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

func attributes(labels []o11y.Label) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, len(labels))
	for i, label := range labels {
		attrs[i] = attribute.String(label.Key, label.Value)
	}
	return attrs
}

type otelCounter struct {
	counter metric.Int64Counter
}

func (c *otelCounter) Add(ctx context.Context, value int64, labels ...o11y.Label) {
	c.counter.Add(ctx, value, metric.WithAttributes(attributes(labels)...))
}

type otelHistogram struct {
	histogram metric.Float64Histogram
}

func (h *otelHistogram) Record(ctx context.Context, value float64, labels ...o11y.Label) {
	h.histogram.Record(ctx, value, metric.WithAttributes(attributes(labels)...))
}

type otelGauge struct {
	gauge metric.Float64UpDownCounter

	mu   sync.Mutex
	last map[attribute.Distinct]float64
}

func (g *otelGauge) Set(ctx context.Context, value float64, labels ...o11y.Label) {
	set := attribute.NewSet(attributes(labels)...)

	g.mu.Lock()
	delta := value - g.last[set.Equivalent()]
	g.last[set.Equivalent()] = value
	g.mu.Unlock()

	if delta != 0 {
		g.gauge.Add(ctx, delta, metric.WithAttributeSet(set))
	}
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) SetAttributes(labels ...o11y.Label) {
	s.span.SetAttributes(attributes(labels)...)
}

func (s *otelSpan) SetStatus(code o11y.SpanStatusCode, description string) {
	var otelCode codes.Code
	switch code {
	case o11y.SpanStatusOK:
		otelCode = codes.Ok
	case o11y.SpanStatusError:
		otelCode = codes.Error
	default:
		otelCode = codes.Unset
	}
	s.span.SetStatus(otelCode, description)
}

func (s *otelSpan) End() {
	s.span.End()
}

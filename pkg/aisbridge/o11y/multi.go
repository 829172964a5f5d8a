package o11y

import "context"

// Multi returns a MetricsProvider that records every measurement on all of
// the given providers. Nil providers are skipped; if none remain Multi
// returns nil.
func Multi(providers ...MetricsProvider) MetricsProvider {
	var live []MetricsProvider
	for _, p := range providers {
		if p != nil {
			live = append(live, p)
		}
	}

	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return multiProvider(live)
}

type multiProvider []MetricsProvider

func (m multiProvider) Counter(name string) Counter {
	counters := make(multiCounter, len(m))
	for i, p := range m {
		counters[i] = p.Counter(name)
	}
	return counters
}

func (m multiProvider) Histogram(name string) Histogram {
	histograms := make(multiHistogram, len(m))
	for i, p := range m {
		histograms[i] = p.Histogram(name)
	}
	return histograms
}

func (m multiProvider) Gauge(name string) Gauge {
	gauges := make(multiGauge, len(m))
	for i, p := range m {
		gauges[i] = p.Gauge(name)
	}
	return gauges
}

type multiCounter []Counter

func (m multiCounter) Add(ctx context.Context, value int64, labels ...Label) {
	for _, c := range m {
		c.Add(ctx, value, labels...)
	}
}

type multiHistogram []Histogram

func (m multiHistogram) Record(ctx context.Context, value float64, labels ...Label) {
	for _, h := range m {
		h.Record(ctx, value, labels...)
	}
}

type multiGauge []Gauge

func (m multiGauge) Set(ctx context.Context, value float64, labels ...Label) {
	for _, g := range m {
		g.Set(ctx, value, labels...)
	}
}

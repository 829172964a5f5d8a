// Package status logs a periodic one-line summary of the bridge: upstream
// state, connection attempts, subscriber count and selected counters.
package status

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tsarna/aisbridge/pkg/aisbridge/bridge"
	"github.com/tsarna/aisbridge/pkg/aisbridge/metrics"
	"go.uber.org/zap"
)

// DefaultSchedule reports once a minute.
const DefaultSchedule = "@every 1m"

// UpstreamStatus is satisfied by *bridge.Supervisor.
type UpstreamStatus interface {
	State() bridge.State
	Attempts() int64
}

// SubscriberCounter is satisfied by *fanout.Server.
type SubscriberCounter interface {
	SubscriberCount() int
}

// Snapshotter is satisfied by *metrics.StandaloneProvider.
type Snapshotter interface {
	Snapshot() metrics.Snapshot
}

// Reporter writes status lines on a cron schedule.
type Reporter struct {
	logger      *zap.Logger
	upstream    UpstreamStatus
	subscribers SubscriberCounter
	snapshots   Snapshotter
	cron        *cron.Cron
}

// ReporterBuilder provides a fluent interface for building a Reporter.
type ReporterBuilder struct {
	logger      *zap.Logger
	upstream    UpstreamStatus
	subscribers SubscriberCounter
	snapshots   Snapshotter
	schedule    string
	location    *time.Location
}

// NewReporter creates a new reporter builder.
func NewReporter() *ReporterBuilder {
	return &ReporterBuilder{
		logger:   zap.NewNop(),
		schedule: DefaultSchedule,
		location: time.Local,
	}
}

func (b *ReporterBuilder) WithLogger(logger *zap.Logger) *ReporterBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

func (b *ReporterBuilder) WithUpstream(upstream UpstreamStatus) *ReporterBuilder {
	b.upstream = upstream
	return b
}

func (b *ReporterBuilder) WithSubscribers(subscribers SubscriberCounter) *ReporterBuilder {
	b.subscribers = subscribers
	return b
}

func (b *ReporterBuilder) WithSnapshots(snapshots Snapshotter) *ReporterBuilder {
	b.snapshots = snapshots
	return b
}

// WithSchedule sets a cron spec (seconds optional) or descriptor such as
// "@every 30s".
func (b *ReporterBuilder) WithSchedule(schedule string) *ReporterBuilder {
	if schedule != "" {
		b.schedule = schedule
	}
	return b
}

func (b *ReporterBuilder) WithLocation(location *time.Location) *ReporterBuilder {
	if location != nil {
		b.location = location
	}
	return b
}

// Build parses the schedule and creates the Reporter. Nothing runs until
// Start is called.
func (b *ReporterBuilder) Build() (*Reporter, error) {
	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)

	schedule, err := parser.Parse(b.schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid status schedule %q: %w", b.schedule, err)
	}

	r := &Reporter{
		logger:      b.logger,
		upstream:    b.upstream,
		subscribers: b.subscribers,
		snapshots:   b.snapshots,
	}

	r.cron = cron.New(
		cron.WithLogger(NewZapCronLogger(b.logger)),
		cron.WithParser(parser),
		cron.WithLocation(b.location),
	)
	r.cron.Schedule(schedule, r)

	return r, nil
}

// Start begins reporting on the schedule.
func (r *Reporter) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running report to finish.
func (r *Reporter) Stop() {
	<-r.cron.Stop().Done()
}

// Run implements cron.Job.
func (r *Reporter) Run() {
	r.Report()
}

// Report logs the current status immediately.
func (r *Reporter) Report() {
	var fields []zap.Field

	if r.upstream != nil {
		fields = append(fields,
			zap.Stringer("upstream", r.upstream.State()),
			zap.Int64("attempts", r.upstream.Attempts()),
		)
	}

	if r.subscribers != nil {
		fields = append(fields, zap.Int("subscribers", r.subscribers.SubscriberCount()))
	}

	if r.snapshots != nil {
		snapshot := r.snapshots.Snapshot()
		fields = append(fields,
			zap.Int64("frames", sumCounters(snapshot, "upstream_frames_total")),
			zap.Int64("forwarded", sumCounters(snapshot, "upstream_events_forwarded_total")),
			zap.Int64("parse_errors", sumCounters(snapshot, "upstream_parse_errors_total")),
			zap.Int64("dropped", sumCounters(snapshot, "fanout_frames_dropped_total")),
			zap.Strings("events", forwardedEvents(snapshot)),
		)
	}

	r.logger.Info("Bridge status", fields...)
}

// sumCounters adds up every label set of the named counter.
func sumCounters(snapshot metrics.Snapshot, name string) int64 {
	var total int64
	for key, value := range snapshot.Counters {
		if key == name || strings.HasPrefix(key, name+"{") {
			total += value
		}
	}
	return total
}

// forwardedEvents lists "name=count" for each forwarded event name.
func forwardedEvents(snapshot metrics.Snapshot) []string {
	const prefix = "upstream_events_forwarded_total{event="

	var result []string
	for key, value := range snapshot.Counters {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(key, prefix), "}")
		result = append(result, fmt.Sprintf("%s=%d", name, value))
	}
	sort.Strings(result)
	return result
}

package bridge

import (
	"fmt"
	"time"

	"github.com/tsarna/aisbridge/pkg/aisbridge/events"
	"github.com/tsarna/aisbridge/pkg/aisbridge/o11y"
	"go.uber.org/zap"
)

// DefaultReconnectDelay is the fixed wait between a failure and the next
// connection attempt.
const DefaultReconnectDelay = 5 * time.Second

// SupervisorBuilder provides a fluent interface for building a Supervisor.
type SupervisorBuilder struct {
	sessions        SessionProvider
	dialer          Dialer
	forwarder       Forwarder
	reconnectDelay  time.Duration
	forward         *events.NameSet
	quiet           *events.NameSet
	logger          *zap.Logger
	metricsProvider o11y.MetricsProvider
	tracingProvider o11y.TracingProvider
}

// NewSupervisor creates a new supervisor builder.
//
// Example:
//
//	supervisor, err := bridge.NewSupervisor().
//	    WithSessions(handshakeClient).
//	    WithDialer(bridge.UpstreamDialer(dialer)).
//	    WithForwarder(fanoutServer).
//	    WithLogger(logger).
//	    Build()
func NewSupervisor() *SupervisorBuilder {
	return &SupervisorBuilder{
		reconnectDelay: DefaultReconnectDelay,
		forward:        events.NewNameSet(events.DefaultForward...),
		quiet:          events.NewNameSet(events.DefaultQuiet...),
		logger:         zap.NewNop(),
	}
}

// WithSessions sets the handshake client.
func (b *SupervisorBuilder) WithSessions(sessions SessionProvider) *SupervisorBuilder {
	b.sessions = sessions
	return b
}

// WithDialer sets the upgrade dialer.
func (b *SupervisorBuilder) WithDialer(dialer Dialer) *SupervisorBuilder {
	b.dialer = dialer
	return b
}

// WithForwarder sets the destination for forwarded frames.
func (b *SupervisorBuilder) WithForwarder(forwarder Forwarder) *SupervisorBuilder {
	b.forwarder = forwarder
	return b
}

// WithReconnectDelay sets the delay before each retry. Must be positive.
func (b *SupervisorBuilder) WithReconnectDelay(delay time.Duration) *SupervisorBuilder {
	if delay > 0 {
		b.reconnectDelay = delay
	}
	return b
}

// WithForwardEvents replaces the set of event names forwarded to subscribers.
func (b *SupervisorBuilder) WithForwardEvents(set *events.NameSet) *SupervisorBuilder {
	if set != nil {
		b.forward = set
	}
	return b
}

// WithQuietEvents replaces the set of event names that are not logged.
func (b *SupervisorBuilder) WithQuietEvents(set *events.NameSet) *SupervisorBuilder {
	if set != nil {
		b.quiet = set
	}
	return b
}

// WithLogger sets the logger for the supervisor.
func (b *SupervisorBuilder) WithLogger(logger *zap.Logger) *SupervisorBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithMetricsProvider sets the metrics provider. Nil disables metrics.
func (b *SupervisorBuilder) WithMetricsProvider(provider o11y.MetricsProvider) *SupervisorBuilder {
	b.metricsProvider = provider
	return b
}

// WithTracingProvider sets the tracing provider. Nil disables tracing.
func (b *SupervisorBuilder) WithTracingProvider(provider o11y.TracingProvider) *SupervisorBuilder {
	b.tracingProvider = provider
	return b
}

// IsValid checks if the builder has all required parameters set.
func (b *SupervisorBuilder) IsValid() error {
	var missing []string
	if b.sessions == nil {
		missing = append(missing, "SessionProvider")
	}
	if b.dialer == nil {
		missing = append(missing, "Dialer")
	}
	if b.forwarder == nil {
		missing = append(missing, "Forwarder")
	}

	if len(missing) > 0 {
		return fmt.Errorf("invalid supervisor configuration, missing: %v", missing)
	}

	return nil
}

// Build creates the Supervisor. It does nothing until Run is called.
func (b *SupervisorBuilder) Build() (*Supervisor, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	return &Supervisor{
		sessions:       b.sessions,
		dialer:         b.dialer,
		forwarder:      b.forwarder,
		reconnectDelay: b.reconnectDelay,
		forward:        b.forward,
		quiet:          b.quiet,
		logger:         b.logger,
		metrics:        NewBridgeMetrics(b.metricsProvider),
		tracer:         b.tracingProvider,
		events:         make(chan event),
		stopped:        make(chan struct{}),
	}, nil
}

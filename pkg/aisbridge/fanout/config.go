package fanout

import (
	"fmt"
	"time"

	"github.com/tsarna/aisbridge/pkg/aisbridge/o11y"
	"go.uber.org/zap"
)

const (
	// DefaultAddr is where local subscribers connect unless configured otherwise.
	DefaultAddr = ":8080"

	// DefaultQueueSize is the number of frames buffered per subscriber before
	// further frames are dropped for that subscriber.
	DefaultQueueSize = 256

	// DefaultPingInterval is the interval for sending websocket ping frames
	// to subscribers.
	DefaultPingInterval = 30 * time.Second

	// DefaultWriteTimeout bounds each write to a subscriber.
	DefaultWriteTimeout = 10 * time.Second
)

// ServerConfig holds the configuration for creating a fan-out Server.
// Use NewServerConfig() and chain methods, then call Build().
type ServerConfig struct {
	addr            string
	logger          *zap.Logger
	queueSize       int
	pingInterval    time.Duration
	writeTimeout    time.Duration
	originPatterns  []string
	metricsProvider o11y.MetricsProvider
}

// NewServerConfig creates a ServerConfig with defaults filled in.
//
// Example:
//
//	server, err := fanout.NewServerConfig().
//	    WithAddr(":8080").
//	    WithLogger(logger).
//	    WithQueueSize(512).
//	    Build()
func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		addr:           DefaultAddr,
		logger:         zap.NewNop(),
		queueSize:      DefaultQueueSize,
		pingInterval:   DefaultPingInterval,
		writeTimeout:   DefaultWriteTimeout,
		originPatterns: []string{"*"},
	}
}

// WithAddr sets the TCP address to listen on, e.g. ":8080" or "127.0.0.1:0".
func (c *ServerConfig) WithAddr(addr string) *ServerConfig {
	c.addr = addr
	return c
}

// WithLogger sets the logger for the server and its subscribers.
func (c *ServerConfig) WithLogger(logger *zap.Logger) *ServerConfig {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithQueueSize sets the per-subscriber outbound queue size. Must be positive.
//
// Default: 256 frames per subscriber
func (c *ServerConfig) WithQueueSize(size int) *ServerConfig {
	if size > 0 {
		c.queueSize = size
	}
	return c
}

// WithPingInterval sets the interval for websocket pings to subscribers.
// Set to 0 to disable pings.
//
// Default: 30 seconds
func (c *ServerConfig) WithPingInterval(interval time.Duration) *ServerConfig {
	if interval >= 0 {
		c.pingInterval = interval
	}
	return c
}

// WithWriteTimeout sets the timeout for each write to a subscriber.
//
// Default: 10 seconds
func (c *ServerConfig) WithWriteTimeout(timeout time.Duration) *ServerConfig {
	if timeout > 0 {
		c.writeTimeout = timeout
	}
	return c
}

// WithOriginPatterns sets the host patterns accepted in the Origin header of
// upgrade requests. See websocket.AcceptOptions.
//
// Default: "*" (any origin)
func (c *ServerConfig) WithOriginPatterns(patterns ...string) *ServerConfig {
	if len(patterns) > 0 {
		c.originPatterns = make([]string, len(patterns))
		copy(c.originPatterns, patterns)
	}
	return c
}

// WithMetricsProvider sets the provider for subscriber metrics. Nil disables
// metrics.
func (c *ServerConfig) WithMetricsProvider(provider o11y.MetricsProvider) *ServerConfig {
	c.metricsProvider = provider
	return c
}

// IsValid checks if the configuration has all required parameters set.
func (c *ServerConfig) IsValid() error {
	if c.addr == "" {
		return fmt.Errorf("invalid server configuration, missing: listen address")
	}
	return nil
}

// Build creates a new Server from the configuration. The server does not
// listen until Start is called.
func (c *ServerConfig) Build() (*Server, error) {
	if err := c.IsValid(); err != nil {
		return nil, err
	}

	return newServer(c), nil
}

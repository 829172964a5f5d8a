// Package config holds the bridge's settings. Defaults are compiled in and
// may be overridden by an HCL, JSON or YAML file and then by command-line
// flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tsarna/aisbridge/pkg/aisbridge/bridge"
	"github.com/tsarna/aisbridge/pkg/aisbridge/engineio"
	"github.com/tsarna/aisbridge/pkg/aisbridge/events"
	"github.com/tsarna/aisbridge/pkg/aisbridge/fanout"
	"github.com/tsarna/aisbridge/pkg/aisbridge/handshake"
	"github.com/tsarna/aisbridge/pkg/aisbridge/status"
	"github.com/tsarna/aisbridge/pkg/aisbridge/upstream"
	"go.uber.org/multierr"
)

// DefaultBaseURL is the address of the AIS unit on its usual local network.
const DefaultBaseURL = "http://192.168.1.168"

type Config struct {
	Upstream Upstream
	Local    Local
	Events   Events
	Status   Status
	Log      Log
}

type Upstream struct {
	BaseURL        string
	Path           string
	ReconnectDelay time.Duration
	RequestTimeout time.Duration
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxFrameBytes  int64
	PingWatchdog   bool
	UserAgent      string
}

type Local struct {
	Listen         string
	QueueSize      int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	OriginPatterns []string
}

// Events lists the event names forwarded to subscribers and those excluded
// from per-event logging. Entries may use '+' and '#' wildcards.
type Events struct {
	Forward []string
	Quiet   []string
}

type Status struct {
	Enabled  bool
	Schedule string
	Timezone string
}

// Log configures the process logger. When File is set, output is also
// written to a size-rotated file.
type Log struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Upstream: Upstream{
			BaseURL:        DefaultBaseURL,
			Path:           engineio.DefaultPath,
			ReconnectDelay: bridge.DefaultReconnectDelay,
			DialTimeout:    upstream.DefaultDialTimeout,
			WriteTimeout:   upstream.DefaultWriteTimeout,
			MaxFrameBytes:  upstream.DefaultMaxFrameBytes,
			PingWatchdog:   true,
			UserAgent:      handshake.DefaultUserAgent,
		},
		Local: Local{
			Listen:         fanout.DefaultAddr,
			QueueSize:      fanout.DefaultQueueSize,
			PingInterval:   fanout.DefaultPingInterval,
			WriteTimeout:   fanout.DefaultWriteTimeout,
			OriginPatterns: []string{"*"},
		},
		Events: Events{
			Forward: append([]string(nil), events.DefaultForward...),
			Quiet:   append([]string(nil), events.DefaultQuiet...),
		},
		Status: Status{
			Enabled:  true,
			Schedule: status.DefaultSchedule,
			Timezone: "Local",
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	var err error

	if _, endpointErr := engineio.NewEndpoint(c.Upstream.BaseURL, c.Upstream.Path); endpointErr != nil {
		err = multierr.Append(err, fmt.Errorf("upstream: %w", endpointErr))
	}
	if c.Upstream.ReconnectDelay <= 0 {
		err = multierr.Append(err, fmt.Errorf("upstream: reconnect_delay must be positive"))
	}
	if c.Upstream.RequestTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("upstream: request_timeout must not be negative"))
	}
	if c.Upstream.DialTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("upstream: dial_timeout must be positive"))
	}
	if c.Upstream.WriteTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("upstream: write_timeout must be positive"))
	}
	if c.Upstream.MaxFrameBytes <= 0 {
		err = multierr.Append(err, fmt.Errorf("upstream: max_frame_bytes must be positive"))
	}

	if c.Local.Listen == "" {
		err = multierr.Append(err, fmt.Errorf("local: listen address is required"))
	}
	if c.Local.QueueSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("local: queue_size must be positive"))
	}
	if c.Local.PingInterval < 0 {
		err = multierr.Append(err, fmt.Errorf("local: ping_interval must not be negative"))
	}
	if c.Local.WriteTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("local: write_timeout must be positive"))
	}

	if c.Status.Enabled {
		if _, locErr := time.LoadLocation(c.Status.Timezone); locErr != nil {
			err = multierr.Append(err, fmt.Errorf("status: invalid timezone %q", c.Status.Timezone))
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("log: unknown level %q", c.Log.Level))
	}

	return err
}

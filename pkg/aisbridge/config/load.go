package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.New("unsupported config file format")

// file mirrors Config with every value optional so that only what the file
// sets overrides the defaults. Durations are strings such as "5s".
type file struct {
	Upstream *fileUpstream `hcl:"upstream,block" yaml:"upstream"`
	Local    *fileLocal    `hcl:"local,block" yaml:"local"`
	Events   *fileEvents   `hcl:"events,block" yaml:"events"`
	Status   *fileStatus   `hcl:"status,block" yaml:"status"`
	Log      *fileLog      `hcl:"log,block" yaml:"log"`
}

type fileUpstream struct {
	BaseURL        *string `hcl:"base_url,optional" yaml:"base_url"`
	Path           *string `hcl:"path,optional" yaml:"path"`
	ReconnectDelay *string `hcl:"reconnect_delay,optional" yaml:"reconnect_delay"`
	RequestTimeout *string `hcl:"request_timeout,optional" yaml:"request_timeout"`
	DialTimeout    *string `hcl:"dial_timeout,optional" yaml:"dial_timeout"`
	WriteTimeout   *string `hcl:"write_timeout,optional" yaml:"write_timeout"`
	MaxFrameBytes  *int64  `hcl:"max_frame_bytes,optional" yaml:"max_frame_bytes"`
	PingWatchdog   *bool   `hcl:"ping_watchdog,optional" yaml:"ping_watchdog"`
	UserAgent      *string `hcl:"user_agent,optional" yaml:"user_agent"`
}

type fileLocal struct {
	Listen         *string  `hcl:"listen,optional" yaml:"listen"`
	QueueSize      *int     `hcl:"queue_size,optional" yaml:"queue_size"`
	PingInterval   *string  `hcl:"ping_interval,optional" yaml:"ping_interval"`
	WriteTimeout   *string  `hcl:"write_timeout,optional" yaml:"write_timeout"`
	OriginPatterns []string `hcl:"origin_patterns,optional" yaml:"origin_patterns"`
}

type fileEvents struct {
	Forward []string `hcl:"forward,optional" yaml:"forward"`
	Quiet   []string `hcl:"quiet,optional" yaml:"quiet"`
}

type fileStatus struct {
	Enabled  *bool   `hcl:"enabled,optional" yaml:"enabled"`
	Schedule *string `hcl:"schedule,optional" yaml:"schedule"`
	Timezone *string `hcl:"timezone,optional" yaml:"timezone"`
}

type fileLog struct {
	Level      *string `hcl:"level,optional" yaml:"level"`
	File       *string `hcl:"file,optional" yaml:"file"`
	MaxSizeMB  *int    `hcl:"max_size_mb,optional" yaml:"max_size_mb"`
	MaxBackups *int    `hcl:"max_backups,optional" yaml:"max_backups"`
	MaxAgeDays *int    `hcl:"max_age_days,optional" yaml:"max_age_days"`
	Compress   *bool   `hcl:"compress,optional" yaml:"compress"`
}

// Load reads path over the defaults. The format follows the extension:
// .hcl or .json (HCL's JSON syntax), .yaml or .yml. The result is not
// validated; callers apply flag overrides first and then call Validate.
func Load(path string) (*Config, error) {
	var f file

	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl", ".json":
		if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	cfg := Default()
	if err := f.applyTo(cfg); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return cfg, nil
}

func (f *file) applyTo(cfg *Config) error {
	var err error

	if u := f.Upstream; u != nil {
		setString(&cfg.Upstream.BaseURL, u.BaseURL)
		setString(&cfg.Upstream.Path, u.Path)
		err = multierr.Append(err, setDuration(&cfg.Upstream.ReconnectDelay, "upstream.reconnect_delay", u.ReconnectDelay))
		err = multierr.Append(err, setDuration(&cfg.Upstream.RequestTimeout, "upstream.request_timeout", u.RequestTimeout))
		err = multierr.Append(err, setDuration(&cfg.Upstream.DialTimeout, "upstream.dial_timeout", u.DialTimeout))
		err = multierr.Append(err, setDuration(&cfg.Upstream.WriteTimeout, "upstream.write_timeout", u.WriteTimeout))
		if u.MaxFrameBytes != nil {
			cfg.Upstream.MaxFrameBytes = *u.MaxFrameBytes
		}
		if u.PingWatchdog != nil {
			cfg.Upstream.PingWatchdog = *u.PingWatchdog
		}
		setString(&cfg.Upstream.UserAgent, u.UserAgent)
	}

	if l := f.Local; l != nil {
		setString(&cfg.Local.Listen, l.Listen)
		if l.QueueSize != nil {
			cfg.Local.QueueSize = *l.QueueSize
		}
		err = multierr.Append(err, setDuration(&cfg.Local.PingInterval, "local.ping_interval", l.PingInterval))
		err = multierr.Append(err, setDuration(&cfg.Local.WriteTimeout, "local.write_timeout", l.WriteTimeout))
		if l.OriginPatterns != nil {
			cfg.Local.OriginPatterns = l.OriginPatterns
		}
	}

	if e := f.Events; e != nil {
		if e.Forward != nil {
			cfg.Events.Forward = e.Forward
		}
		if e.Quiet != nil {
			cfg.Events.Quiet = e.Quiet
		}
	}

	if s := f.Status; s != nil {
		if s.Enabled != nil {
			cfg.Status.Enabled = *s.Enabled
		}
		setString(&cfg.Status.Schedule, s.Schedule)
		setString(&cfg.Status.Timezone, s.Timezone)
	}

	if l := f.Log; l != nil {
		setString(&cfg.Log.Level, l.Level)
		setString(&cfg.Log.File, l.File)
		setInt(&cfg.Log.MaxSizeMB, l.MaxSizeMB)
		setInt(&cfg.Log.MaxBackups, l.MaxBackups)
		setInt(&cfg.Log.MaxAgeDays, l.MaxAgeDays)
		if l.Compress != nil {
			cfg.Log.Compress = *l.Compress
		}
	}

	return err
}

func setString(dst *string, value *string) {
	if value != nil {
		*dst = *value
	}
}

func setInt(dst *int, value *int) {
	if value != nil {
		*dst = *value
	}
}

func setDuration(dst *time.Duration, name string, value *string) error {
	if value == nil {
		return nil
	}
	d, err := time.ParseDuration(*value)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

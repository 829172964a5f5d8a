// Package upstream owns the websocket transport to the upstream unit: it
// upgrades a negotiated session, starts the probe exchange and delivers
// inbound frames to a Handler until the connection ends.
package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/tsarna/aisbridge/pkg/aisbridge/engineio"
	"github.com/tsarna/aisbridge/pkg/aisbridge/handshake"
	"go.uber.org/zap"
)

const (
	DefaultDialTimeout   = 30 * time.Second
	DefaultWriteTimeout  = 10 * time.Second
	DefaultMaxFrameBytes = 8 * 1024 * 1024
)

// ConnectError is returned when the websocket could not be opened or the
// probe could not be sent.
type ConnectError struct {
	URL string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("upstream connect %s: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Dialer opens upstream websocket connections.
type Dialer struct {
	endpoint      *engineio.Endpoint
	logger        *zap.Logger
	dialTimeout   time.Duration
	writeTimeout  time.Duration
	maxFrameBytes int64
	pingWatchdog  bool
	headers       map[string][]string
}

// DialerBuilder provides a fluent interface for building a Dialer.
type DialerBuilder struct {
	endpoint      *engineio.Endpoint
	logger        *zap.Logger
	dialTimeout   time.Duration
	writeTimeout  time.Duration
	maxFrameBytes int64
	pingWatchdog  bool
	headers       map[string][]string
}

// NewDialer creates a new Dialer builder.
func NewDialer() *DialerBuilder {
	return &DialerBuilder{
		logger:        zap.NewNop(),
		dialTimeout:   DefaultDialTimeout,
		writeTimeout:  DefaultWriteTimeout,
		maxFrameBytes: DefaultMaxFrameBytes,
		pingWatchdog:  true,
	}
}

// WithEndpoint sets the upstream endpoint.
func (b *DialerBuilder) WithEndpoint(endpoint *engineio.Endpoint) *DialerBuilder {
	b.endpoint = endpoint
	return b
}

// WithLogger sets the logger for dialed connections.
func (b *DialerBuilder) WithLogger(logger *zap.Logger) *DialerBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithDialTimeout sets the timeout for establishing the websocket.
func (b *DialerBuilder) WithDialTimeout(timeout time.Duration) *DialerBuilder {
	if timeout > 0 {
		b.dialTimeout = timeout
	}
	return b
}

// WithWriteTimeout sets the timeout for each outbound frame.
func (b *DialerBuilder) WithWriteTimeout(timeout time.Duration) *DialerBuilder {
	if timeout > 0 {
		b.writeTimeout = timeout
	}
	return b
}

// WithMaxFrameBytes sets the read limit for inbound frames. The limit is
// raised to the session's advertised maxPayload when that is larger.
func (b *DialerBuilder) WithMaxFrameBytes(limit int64) *DialerBuilder {
	if limit > 0 {
		b.maxFrameBytes = limit
	}
	return b
}

// WithPingWatchdog enables or disables failing connections that stay silent
// longer than the session's pingInterval + pingTimeout.
func (b *DialerBuilder) WithPingWatchdog(enabled bool) *DialerBuilder {
	b.pingWatchdog = enabled
	return b
}

// WithHeader sets an HTTP header for the websocket handshake.
func (b *DialerBuilder) WithHeader(key, value string) *DialerBuilder {
	if b.headers == nil {
		b.headers = make(map[string][]string)
	}
	b.headers[key] = []string{value}
	return b
}

// Build creates the Dialer.
func (b *DialerBuilder) Build() (*Dialer, error) {
	if b.endpoint == nil {
		return nil, fmt.Errorf("endpoint is required")
	}

	return &Dialer{
		endpoint:      b.endpoint,
		logger:        b.logger,
		dialTimeout:   b.dialTimeout,
		writeTimeout:  b.writeTimeout,
		maxFrameBytes: b.maxFrameBytes,
		pingWatchdog:  b.pingWatchdog,
		headers:       b.headers,
	}, nil
}

// Open upgrades session to a websocket and sends the upgrade probe. It does
// not wait for the probe acknowledgment; that arrives as an ordinary frame
// once Listen has been called.
func (d *Dialer) Open(ctx context.Context, session handshake.Session) (*Conn, error) {
	wsURL := d.endpoint.WebsocketURL(session.ID())

	dialCtx, dialCancel := context.WithTimeout(ctx, d.dialTimeout)
	defer dialCancel()

	dialOptions := &websocket.DialOptions{}
	if d.headers != nil {
		dialOptions.HTTPHeader = make(map[string][]string)
		for key, values := range d.headers {
			dialOptions.HTTPHeader[key] = values
		}
	}

	ws, _, err := websocket.Dial(dialCtx, wsURL, dialOptions)
	if err != nil {
		return nil, &ConnectError{URL: wsURL, Err: err}
	}

	readLimit := d.maxFrameBytes
	if session.MaxPayload > readLimit {
		readLimit = session.MaxPayload
	}
	ws.SetReadLimit(readLimit)

	var idleTimeout time.Duration
	if d.pingWatchdog {
		idleTimeout = session.HeartbeatWindow()
	}

	conn := newConn(ws, session.ID(), d.logger, d.writeTimeout, idleTimeout)

	d.logger.Info("Upstream websocket connected", zap.String("url", wsURL))

	if err := conn.Send(ctx, engineio.FrameProbe); err != nil {
		conn.Close()
		return nil, &ConnectError{URL: wsURL, Err: fmt.Errorf("failed to send probe: %w", err)}
	}
	d.logger.Debug("Sent upgrade probe", zap.String("sid", session.ID()))

	return conn, nil
}

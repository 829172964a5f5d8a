package handshake

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tsarna/aisbridge/pkg/aisbridge/engineio"
	"go.uber.org/zap"
)

// DefaultUserAgent identifies the bridge to the upstream unit.
const DefaultUserAgent = "aisbridge/1.0"

// ClientBuilder provides a fluent interface for building handshake clients.
type ClientBuilder struct {
	baseURL        string
	path           string
	logger         *zap.Logger
	httpClient     *http.Client
	requestTimeout time.Duration
	userAgent      string
	referer        string
	now            func() time.Time
}

// NewClient creates a new handshake client builder.
func NewClient() *ClientBuilder {
	return &ClientBuilder{
		path:      engineio.DefaultPath,
		logger:    zap.NewNop(),
		userAgent: DefaultUserAgent,
		now:       time.Now,
	}
}

// WithBaseURL sets the upstream base URL, e.g. "http://192.168.1.168".
func (b *ClientBuilder) WithBaseURL(url string) *ClientBuilder {
	b.baseURL = url
	return b
}

// WithPath sets the Socket.IO mount path. Default is "/socket/".
func (b *ClientBuilder) WithPath(path string) *ClientBuilder {
	if path != "" {
		b.path = path
	}
	return b
}

// WithLogger sets the logger for the client.
func (b *ClientBuilder) WithLogger(logger *zap.Logger) *ClientBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithHTTPClient replaces the HTTP client used for both handshake requests.
func (b *ClientBuilder) WithHTTPClient(client *http.Client) *ClientBuilder {
	b.httpClient = client
	return b
}

// WithRequestTimeout bounds each handshake request. Zero leaves requests
// bounded only by the HTTP client and the caller's context.
func (b *ClientBuilder) WithRequestTimeout(timeout time.Duration) *ClientBuilder {
	if timeout >= 0 {
		b.requestTimeout = timeout
	}
	return b
}

// WithUserAgent sets the User-Agent header sent with handshake requests.
func (b *ClientBuilder) WithUserAgent(userAgent string) *ClientBuilder {
	if userAgent != "" {
		b.userAgent = userAgent
	}
	return b
}

// WithReferer overrides the Referer header. By default the unit's admin
// dashboard URL is used.
func (b *ClientBuilder) WithReferer(referer string) *ClientBuilder {
	b.referer = referer
	return b
}

// WithClock overrides the time source used for the cache-busting timestamp.
func (b *ClientBuilder) WithClock(now func() time.Time) *ClientBuilder {
	if now != nil {
		b.now = now
	}
	return b
}

// Build creates and returns a new handshake client with the configured options.
func (b *ClientBuilder) Build() (*Client, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	endpoint, err := engineio.NewEndpoint(b.baseURL, b.path)
	if err != nil {
		return nil, err
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	referer := b.referer
	if referer == "" {
		referer = endpoint.Referer()
	}

	return &Client{
		endpoint:       endpoint,
		logger:         b.logger,
		httpClient:     httpClient,
		requestTimeout: b.requestTimeout,
		userAgent:      b.userAgent,
		referer:        referer,
		now:            b.now,
	}, nil
}

// IsValid checks that all required configuration is present.
func (b *ClientBuilder) IsValid() error {
	if b.baseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	return nil
}

package engineio

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultPath is where the upstream unit mounts its Socket.IO endpoint.
const DefaultPath = "/socket/"

// Endpoint builds the polling and websocket URLs for one upstream server.
type Endpoint struct {
	httpBase string
	wsBase   string
}

// NewEndpoint validates baseURL (http or https) and joins it with path.
func NewEndpoint(baseURL, path string) (*Endpoint, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}

	var wsScheme string
	switch u.Scheme {
	case "http":
		wsScheme = "ws"
	case "https":
		wsScheme = "wss"
	default:
		return nil, fmt.Errorf("invalid upstream URL %q: scheme must be http or https", baseURL)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: missing host", baseURL)
	}

	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	host := u.Host
	return &Endpoint{
		httpBase: u.Scheme + "://" + host + path,
		wsBase:   wsScheme + "://" + host + path,
	}, nil
}

// PollingURL is the handshake URL. The timestamp defeats intermediate caches.
func (e *Endpoint) PollingURL(now time.Time) string {
	return fmt.Sprintf("%s?EIO=%s&transport=polling&t=%d", e.httpBase, ProtocolVersion, now.UnixMilli())
}

// SessionURL is the polling URL bound to an existing session.
func (e *Endpoint) SessionURL(sid string) string {
	return fmt.Sprintf("%s?EIO=%s&transport=polling&sid=%s", e.httpBase, ProtocolVersion, url.QueryEscape(sid))
}

// WebsocketURL is the URL used to upgrade the session to a websocket.
func (e *Endpoint) WebsocketURL(sid string) string {
	return fmt.Sprintf("%s?EIO=%s&transport=websocket&sid=%s", e.wsBase, ProtocolVersion, url.QueryEscape(sid))
}

// Referer mimics the admin dashboard page the unit expects requests from.
func (e *Endpoint) Referer() string {
	u, err := url.Parse(e.httpBase)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/admin/dashboard"
}

// Package handshake performs the long-polling half of the Engine.IO session
// negotiation: obtaining a session id and moving the session into the
// connected state before the websocket upgrade.
package handshake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tsarna/aisbridge/pkg/aisbridge/engineio"
	"go.uber.org/zap"
)

// maxBodySize caps how much of a polling response is read.
const maxBodySize = 64 * 1024

var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// Error is returned for every failed handshake step. Callers retry the whole
// negotiation; a failed step is never resumed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("handshake %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Session is the state handed from the handshake to the websocket upgrade.
// A session is used for a single connection attempt and never reused.
type Session struct {
	engineio.OpenPacket
}

// ID returns the session identifier.
func (s Session) ID() string {
	return s.SID
}

// Client talks to the upstream polling endpoint.
type Client struct {
	endpoint       *engineio.Endpoint
	logger         *zap.Logger
	httpClient     *http.Client
	requestTimeout time.Duration
	userAgent      string
	referer        string
	now            func() time.Time
}

// Endpoint returns the upstream endpoint the client negotiates with.
func (c *Client) Endpoint() *engineio.Endpoint {
	return c.endpoint
}

// ObtainSession requests a new session id over the polling transport.
func (c *Client) ObtainSession(ctx context.Context) (Session, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	pollURL := c.endpoint.PollingURL(c.now())
	c.logger.Debug("Requesting session via polling", zap.String("url", pollURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
	if err != nil {
		return Session{}, &Error{Op: "open", Err: err}
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", c.userAgent)
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Session{}, &Error{Op: "open", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Session{}, &Error{Op: "open", Err: fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Session{}, &Error{Op: "open", Err: fmt.Errorf("failed to read response: %w", err)}
	}

	packet, err := engineio.ParseOpen(string(body))
	if err != nil {
		return Session{}, &Error{Op: "open", Err: err}
	}

	c.logger.Info("Obtained upstream session",
		zap.String("sid", packet.SID),
		zap.Strings("upgrades", packet.Upgrades),
		zap.Int64("ping_interval_ms", packet.PingInterval),
		zap.Int64("ping_timeout_ms", packet.PingTimeout),
	)

	return Session{OpenPacket: packet}, nil
}

// ConfirmSession posts the Socket.IO connect packet ("40") for the session.
// The response body is not inspected; any non-error status is success.
func (c *Client) ConfirmSession(ctx context.Context, session Session) error {
	if session.SID == "" {
		return &Error{Op: "connect", Err: engineio.ErrMissingSID}
	}

	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	postURL := c.endpoint.SessionURL(session.SID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, strings.NewReader(engineio.FrameConnect))
	if err != nil {
		return &Error{Op: "connect", Err: err}
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: "connect", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode >= 400 {
		return &Error{Op: "connect", Err: fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)}
	}

	c.logger.Debug("Sent connect packet", zap.String("sid", session.SID))
	return nil
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout > 0 {
		return context.WithTimeout(ctx, c.requestTimeout)
	}
	return context.WithCancel(ctx)
}

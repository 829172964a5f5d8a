package handshake

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/aisbridge/pkg/aisbridge/engineio"
	"go.uber.org/zap"
)

type recordedRequest struct {
	method      string
	query       map[string]string
	body        string
	contentType string
	userAgent   string
	referer     string
}

type fakeUnit struct {
	mu         sync.Mutex
	requests   []recordedRequest
	openBody   string
	openStatus int
	postStatus int
}

func (u *fakeUnit) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	query := map[string]string{}
	for key := range r.URL.Query() {
		query[key] = r.URL.Query().Get(key)
	}

	u.mu.Lock()
	u.requests = append(u.requests, recordedRequest{
		method:      r.Method,
		query:       query,
		body:        string(body),
		contentType: r.Header.Get("Content-Type"),
		userAgent:   r.Header.Get("User-Agent"),
		referer:     r.Header.Get("Referer"),
	})
	u.mu.Unlock()

	if r.URL.Path != "/socket/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if u.openStatus != 0 {
			w.WriteHeader(u.openStatus)
		}
		io.WriteString(w, u.openBody)
	case http.MethodPost:
		if u.postStatus != 0 {
			w.WriteHeader(u.postStatus)
		}
		io.WriteString(w, "ok")
	}
}

func (u *fakeUnit) recorded() []recordedRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]recordedRequest(nil), u.requests...)
}

func newTestClient(t *testing.T, unit *fakeUnit) *Client {
	t.Helper()
	server := httptest.NewServer(unit)
	t.Cleanup(server.Close)

	client, err := NewClient().
		WithBaseURL(server.URL).
		WithLogger(zap.NewNop()).
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }).
		Build()
	require.NoError(t, err)
	return client
}

func TestObtainSession(t *testing.T) {
	unit := &fakeUnit{openBody: `0{"sid":"lv_VI97HAXpY6yYWAAAC","upgrades":["websocket"],"pingInterval":25000,"pingTimeout":20000}`}
	client := newTestClient(t, unit)

	session, err := client.ObtainSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "lv_VI97HAXpY6yYWAAAC", session.ID())
	assert.Equal(t, 45*time.Second, session.HeartbeatWindow())

	requests := unit.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodGet, requests[0].method)
	assert.Equal(t, "4", requests[0].query["EIO"])
	assert.Equal(t, "polling", requests[0].query["transport"])
	assert.Equal(t, "1700000000000", requests[0].query["t"])
	assert.Equal(t, DefaultUserAgent, requests[0].userAgent)
	assert.Contains(t, requests[0].referer, "/admin/dashboard")
}

func TestObtainSessionReturnsExactSID(t *testing.T) {
	for _, sid := range []string{"x", "AAAAAAAAAAAAAAAAAAAA", "sid-with-dash_and_underscore"} {
		unit := &fakeUnit{openBody: `0{"sid":"` + sid + `","maxPayload":1000000}`}
		client := newTestClient(t, unit)

		session, err := client.ObtainSession(context.Background())
		require.NoError(t, err)
		assert.Equal(t, sid, session.ID())
	}
}

func TestObtainSessionFailures(t *testing.T) {
	tests := []struct {
		name   string
		unit   *fakeUnit
		target error
	}{
		{"wrong packet type", &fakeUnit{openBody: `4{"sid":"abc"}`}, engineio.ErrNotOpenPacket},
		{"plain text", &fakeUnit{openBody: "hello"}, engineio.ErrNotOpenPacket},
		{"missing sid", &fakeUnit{openBody: `0{"upgrades":[]}`}, engineio.ErrMissingSID},
		{"server error", &fakeUnit{openBody: `0{"sid":"abc"}`, openStatus: http.StatusInternalServerError}, ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.unit)

			session, err := client.ObtainSession(context.Background())
			require.Error(t, err)
			assert.Empty(t, session.ID())

			var handshakeErr *Error
			require.True(t, errors.As(err, &handshakeErr))
			assert.Equal(t, "open", handshakeErr.Op)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestObtainSessionUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client, err := NewClient().WithBaseURL(baseURL).Build()
	require.NoError(t, err)

	_, err = client.ObtainSession(context.Background())
	var handshakeErr *Error
	assert.True(t, errors.As(err, &handshakeErr))
}

func TestObtainSessionTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := NewClient().
		WithBaseURL(server.URL).
		WithRequestTimeout(50 * time.Millisecond).
		Build()
	require.NoError(t, err)

	_, err = client.ObtainSession(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfirmSession(t *testing.T) {
	unit := &fakeUnit{}
	client := newTestClient(t, unit)

	err := client.ConfirmSession(context.Background(), Session{OpenPacket: engineio.OpenPacket{SID: "abc"}})
	require.NoError(t, err)

	requests := unit.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodPost, requests[0].method)
	assert.Equal(t, "40", requests[0].body)
	assert.Equal(t, "text/plain", requests[0].contentType)
	assert.Equal(t, "abc", requests[0].query["sid"])
	assert.Equal(t, "polling", requests[0].query["transport"])
}

func TestConfirmSessionFailures(t *testing.T) {
	t.Run("error status", func(t *testing.T) {
		client := newTestClient(t, &fakeUnit{postStatus: http.StatusBadRequest})

		err := client.ConfirmSession(context.Background(), Session{OpenPacket: engineio.OpenPacket{SID: "abc"}})
		assert.ErrorIs(t, err, ErrUnexpectedStatus)
	})

	t.Run("missing sid", func(t *testing.T) {
		unit := &fakeUnit{}
		client := newTestClient(t, unit)

		err := client.ConfirmSession(context.Background(), Session{})
		assert.ErrorIs(t, err, engineio.ErrMissingSID)
		assert.Empty(t, unit.recorded())
	})
}

func TestClientBuilder(t *testing.T) {
	t.Run("missing base URL", func(t *testing.T) {
		_, err := NewClient().Build()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "base URL is required")
	})

	t.Run("invalid base URL", func(t *testing.T) {
		_, err := NewClient().WithBaseURL("ftp://example.com").Build()
		assert.Error(t, err)
	})

	t.Run("fluent interface returns same builder", func(t *testing.T) {
		builder := NewClient()
		assert.Same(t, builder, builder.WithBaseURL("http://localhost"))
		assert.Same(t, builder, builder.WithPath("/socket.io/"))
		assert.Same(t, builder, builder.WithLogger(zap.NewNop()))
		assert.Same(t, builder, builder.WithHTTPClient(http.DefaultClient))
		assert.Same(t, builder, builder.WithRequestTimeout(time.Second))
		assert.Same(t, builder, builder.WithUserAgent("test/1.0"))
		assert.Same(t, builder, builder.WithReferer("http://localhost/"))
		assert.Same(t, builder, builder.WithClock(time.Now))
	})

	t.Run("defaults", func(t *testing.T) {
		client, err := NewClient().WithBaseURL("http://192.168.1.168").WithLogger(nil).Build()
		require.NoError(t, err)
		assert.NotNil(t, client.logger)
		assert.NotNil(t, client.httpClient)
		assert.Equal(t, DefaultUserAgent, client.userAgent)
		assert.Equal(t, "http://192.168.1.168/admin/dashboard", client.referer)
		assert.Zero(t, client.requestTimeout)
	})
}

package bridge

import (
	"context"

	"github.com/tsarna/aisbridge/pkg/aisbridge/handshake"
	"github.com/tsarna/aisbridge/pkg/aisbridge/upstream"
)

// SessionProvider performs the polling half of the handshake.
type SessionProvider interface {
	ObtainSession(ctx context.Context) (handshake.Session, error)
	ConfirmSession(ctx context.Context, session handshake.Session) error
}

// Dialer upgrades a confirmed session to a live upstream connection.
type Dialer interface {
	Open(ctx context.Context, session handshake.Session) (UpstreamConn, error)
}

// UpstreamConn is the part of *upstream.Conn the supervisor drives.
type UpstreamConn interface {
	Listen(h upstream.Handler) error
	Send(ctx context.Context, text string) error
	Close() error
}

// Forwarder receives the frames selected for local subscribers. Start must
// be idempotent; it is called at the beginning of every connection attempt.
type Forwarder interface {
	Start(ctx context.Context) error
	Forward(ctx context.Context, frame string) error
}

// UpstreamDialer adapts *upstream.Dialer to Dialer.
func UpstreamDialer(d *upstream.Dialer) Dialer {
	return upstreamDialer{dialer: d}
}

type upstreamDialer struct {
	dialer *upstream.Dialer
}

func (u upstreamDialer) Open(ctx context.Context, session handshake.Session) (UpstreamConn, error) {
	conn, err := u.dialer.Open(ctx, session)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

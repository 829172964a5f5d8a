// Package bridge ties the upstream session lifecycle to the local fan-out.
//
// The Supervisor is an actor: a single goroutine owns the connection state,
// the current upstream connection and the retry timer. Connection attempts,
// upstream frames, closes and timer expirations all arrive on one channel and
// are handled in order. Every attempt gets a new generation number, and
// events carrying an older generation are dropped, so a late close from a
// previous connection can never schedule a second retry.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tsarna/aisbridge/pkg/aisbridge/engineio"
	"github.com/tsarna/aisbridge/pkg/aisbridge/events"
	"github.com/tsarna/aisbridge/pkg/aisbridge/o11y"
	"go.uber.org/zap"
)

var ErrAlreadyRunning = errors.New("supervisor is already running")

type eventKind int

const (
	evOpened eventKind = iota
	evAttemptFailed
	evFrame
	evClosed
	evRetry
)

type event struct {
	kind  eventKind
	gen   uint64
	conn  UpstreamConn
	frame string
	err   error
}

// Supervisor keeps exactly one upstream connection alive, reconnecting after
// a fixed delay whenever it fails, and forwards selected events.
type Supervisor struct {
	sessions       SessionProvider
	dialer         Dialer
	forwarder      Forwarder
	reconnectDelay time.Duration
	forward        *events.NameSet
	quiet          *events.NameSet
	logger         *zap.Logger
	metrics        *BridgeMetrics
	tracer         o11y.TracingProvider

	events  chan event
	stopped chan struct{}
	running int32

	// mirrored for observers
	state    int32
	attempts int64

	// owned by the Run goroutine
	generation  uint64
	conn        UpstreamConn
	connectedAt time.Time
	retry       *time.Timer
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(atomic.LoadInt32(&s.state))
}

// Attempts returns the number of connection attempts started so far.
func (s *Supervisor) Attempts() int64 {
	return atomic.LoadInt64(&s.attempts)
}

// Run connects and keeps reconnecting until ctx is cancelled. It returns nil
// after a clean stop. Run may only be called once.
func (s *Supervisor) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrAlreadyRunning
	}

	s.logger.Info("Bridge supervisor starting", zap.Duration("reconnect_delay", s.reconnectDelay))
	s.connect(ctx)

	for {
		select {
		case <-ctx.Done():
			close(s.stopped)
			s.stop()
			return nil

		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

func (s *Supervisor) setState(state State) {
	atomic.StoreInt32(&s.state, int32(state))
}

// post delivers ev to the Run goroutine. It reports false once Run has
// returned.
func (s *Supervisor) post(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.stopped:
		return false
	}
}

func (s *Supervisor) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evOpened:
		s.opened(ctx, ev)
	case evAttemptFailed:
		if ev.gen != s.generation || s.State() != StateConnecting {
			return
		}
		s.logger.Warn("Upstream connection attempt failed",
			zap.Error(ev.err),
			zap.Duration("retry_in", s.reconnectDelay),
		)
		s.disconnected()
	case evFrame:
		if ev.gen != s.generation || s.conn == nil {
			return
		}
		s.handleFrame(ctx, ev.frame)
	case evClosed:
		s.closed(ctx, ev)
	case evRetry:
		s.retry = nil
		if s.State() == StateDisconnected {
			s.connect(ctx)
		}
	}
}

// connect begins a new attempt. The handshake and upgrade run on their own
// goroutine; the outcome comes back as evOpened or evAttemptFailed.
func (s *Supervisor) connect(ctx context.Context) {
	s.generation++
	gen := s.generation
	attempt := atomic.AddInt64(&s.attempts, 1)
	s.setState(StateConnecting)
	s.metrics.RecordAttempt(ctx)

	if err := s.forwarder.Start(ctx); err != nil {
		s.logger.Error("Local fan-out server unavailable, will retry on next attempt", zap.Error(err))
	}

	s.logger.Info("Connecting to upstream", zap.Int64("attempt", attempt))

	go func() {
		attemptCtx, span := o11y.StartSpan(ctx, s.tracer, "aisbridge.connect")
		span.SetAttributes(o11y.Label{Key: "attempt", Value: fmt.Sprint(attempt)})

		conn, err := s.attempt(attemptCtx)
		if err != nil {
			span.SetStatus(o11y.SpanStatusError, err.Error())
		} else {
			span.SetStatus(o11y.SpanStatusOK, "")
		}
		span.End()

		if err != nil {
			s.post(event{kind: evAttemptFailed, gen: gen, err: err})
			return
		}

		if !s.post(event{kind: evOpened, gen: gen, conn: conn}) {
			conn.Close()
		}
	}()
}

func (s *Supervisor) attempt(ctx context.Context) (UpstreamConn, error) {
	session, err := s.sessions.ObtainSession(ctx)
	if err != nil {
		s.metrics.RecordAttemptError(ctx, "handshake")
		return nil, err
	}

	s.logger.Debug("Obtained upstream session", zap.String("sid", session.ID()))

	if err := s.sessions.ConfirmSession(ctx, session); err != nil {
		s.metrics.RecordAttemptError(ctx, "handshake")
		return nil, err
	}

	conn, err := s.dialer.Open(ctx, session)
	if err != nil {
		s.metrics.RecordAttemptError(ctx, "upgrade")
		return nil, err
	}

	return conn, nil
}

func (s *Supervisor) opened(ctx context.Context, ev event) {
	if ev.gen != s.generation || s.State() != StateConnecting {
		ev.conn.Close()
		return
	}

	s.conn = ev.conn
	s.connectedAt = time.Now()
	s.setState(StateConnected)
	s.metrics.RecordConnected(ctx)
	s.logger.Info("Upstream connected", zap.Int64("attempt", s.Attempts()))

	if err := s.conn.Listen(&connHandler{supervisor: s, gen: ev.gen}); err != nil {
		s.logger.Warn("Failed to listen on upstream connection", zap.Error(err))
		s.conn.Close()
		s.conn = nil
		s.metrics.RecordDisconnected(ctx, 0)
		s.disconnected()
	}
}

func (s *Supervisor) closed(ctx context.Context, ev event) {
	if ev.gen != s.generation || s.State() != StateConnected {
		return
	}

	if ev.err != nil {
		s.logger.Warn("Upstream connection lost",
			zap.Error(ev.err),
			zap.Duration("retry_in", s.reconnectDelay),
		)
	} else {
		s.logger.Info("Upstream connection closed", zap.Duration("retry_in", s.reconnectDelay))
	}

	s.conn = nil
	s.metrics.RecordDisconnected(ctx, time.Since(s.connectedAt))
	s.disconnected()
}

// disconnected enters Disconnected and arms the retry timer unless one is
// already pending.
func (s *Supervisor) disconnected() {
	s.setState(StateDisconnected)

	if s.retry != nil {
		return
	}
	s.retry = time.AfterFunc(s.reconnectDelay, func() {
		s.post(event{kind: evRetry})
	})
}

func (s *Supervisor) stop() {
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.setState(StateIdle)
	s.logger.Info("Bridge supervisor stopped")
}

func (s *Supervisor) handleFrame(ctx context.Context, raw string) {
	frame := engineio.Classify(raw)
	s.metrics.RecordFrame(ctx, frame.Kind.String())

	switch frame.Kind {
	case engineio.KindProbeAck:
		s.logger.Debug("Upgrade probe acknowledged")
	case engineio.KindPing:
		s.logger.Debug("Heartbeat ping")
	case engineio.KindNoop:
		s.logger.Debug("No-op frame")
	case engineio.KindEvent:
		s.handleEvent(ctx, frame)
	default:
		s.logger.Info("Unclassified upstream frame", zap.String("frame", raw))
	}

	if frame.Reply != "" {
		if err := s.conn.Send(ctx, frame.Reply); err != nil {
			s.logger.Warn("Failed to reply to upstream",
				zap.String("reply", frame.Reply),
				zap.Error(err),
			)
		}
	}
}

func (s *Supervisor) handleEvent(ctx context.Context, frame engineio.Frame) {
	if frame.Err != nil {
		s.metrics.RecordParseError(ctx)
		s.logger.Warn("Discarding malformed event frame", zap.Error(frame.Err))
		return
	}

	if !s.quiet.Contains(frame.Name) {
		s.logger.Info("Upstream event",
			zap.String("event", frame.Name),
			zap.Int("payload_elements", len(frame.Payload)),
		)
	}

	if !s.forward.Contains(frame.Name) {
		return
	}

	if err := s.forwarder.Forward(ctx, frame.Raw); err != nil {
		s.metrics.RecordForwardError(ctx)
		s.logger.Debug("Event not forwarded", zap.String("event", frame.Name), zap.Error(err))
		return
	}
	s.metrics.RecordForwarded(ctx, frame.Name)
}

// connHandler relays one connection's callbacks into the event loop, tagged
// with the generation that opened it.
type connHandler struct {
	supervisor *Supervisor
	gen        uint64
}

func (h *connHandler) OnFrame(text string) {
	h.supervisor.post(event{kind: evFrame, gen: h.gen, frame: text})
}

func (h *connHandler) OnClose(err error) {
	h.supervisor.post(event{kind: evClosed, gen: h.gen, err: err})
}

package fanout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// subscriber is one local websocket client. Frames reach it through
// outbound, which is drained by a single writer goroutine. outbound is never
// closed; done tells the writer to stop.
type subscriber struct {
	id         string
	remoteAddr string
	ws         *websocket.Conn
	logger     *zap.Logger
	metrics    *SubscriberMetrics

	pingInterval time.Duration
	writeTimeout time.Duration

	outbound    chan string
	open        int32
	done        chan struct{}
	cleanupOnce sync.Once
	connectedAt time.Time
}

func newSubscriber(ws *websocket.Conn, config *ServerConfig, metrics *SubscriberMetrics, remoteAddr string) *subscriber {
	id := uuid.NewString()
	return &subscriber{
		id:           id,
		remoteAddr:   remoteAddr,
		ws:           ws,
		logger:       config.logger.With(zap.String("subscriber", id)),
		metrics:      metrics,
		pingInterval: config.pingInterval,
		writeTimeout: config.writeTimeout,
		outbound:     make(chan string, config.queueSize),
		open:         1,
		done:         make(chan struct{}),
		connectedAt:  time.Now(),
	}
}

func (s *subscriber) isOpen() bool {
	return atomic.LoadInt32(&s.open) == 1
}

// enqueue offers frame to the writer without blocking. It reports false if
// the queue is full.
func (s *subscriber) enqueue(frame string) bool {
	select {
	case s.outbound <- frame:
		return true
	default:
		return false
	}
}

// serve runs the writer in its own goroutine and the reader in the calling
// one, returning once the connection has ended.
func (s *subscriber) serve(ctx context.Context) {
	go s.writer(ctx)
	s.reader(ctx)
	s.cleanup(ctx)
}

// reader consumes and discards inbound messages so that control frames
// (pong, close) are processed.
func (s *subscriber) reader(ctx context.Context) {
	for {
		_, _, err := s.ws.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				s.logger.Debug("Subscriber closed connection", zap.Int("close_status", int(status)))
			} else if !errors.Is(err, context.Canceled) {
				s.logger.Debug("Subscriber read failed", zap.Error(err))
			}
			return
		}
	}
}

func (s *subscriber) writer(ctx context.Context) {
	var pingChan <-chan time.Time
	if s.pingInterval > 0 {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		pingChan = ticker.C
	}

	for {
		select {
		case frame := <-s.outbound:
			writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
			err := s.ws.Write(writeCtx, websocket.MessageText, []byte(frame))
			cancel()

			if err != nil {
				s.failed(ctx, "write", err)
				return
			}
			s.metrics.RecordFrameSent(ctx, len(frame))

		case <-pingChan:
			pingCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
			err := s.ws.Ping(pingCtx)
			cancel()

			if err != nil {
				s.failed(ctx, "ping", err)
				return
			}
			s.metrics.RecordPingSent(ctx)

		case <-s.done:
			return

		case <-ctx.Done():
			return
		}
	}
}

// failed marks the subscriber closed after a send error and aborts the
// connection so the reader returns and the normal cleanup path runs.
func (s *subscriber) failed(ctx context.Context, op string, err error) {
	atomic.StoreInt32(&s.open, 0)
	s.metrics.RecordWriteError(ctx, op)
	s.logger.Warn("Failed to send to subscriber", zap.String("op", op), zap.Error(err))
	s.ws.CloseNow()
}

func (s *subscriber) cleanup(ctx context.Context) {
	s.cleanupOnce.Do(func() {
		atomic.StoreInt32(&s.open, 0)
		close(s.done)

		err := s.ws.Close(websocket.StatusNormalClosure, "")
		if err != nil {
			s.logger.Debug("Subscriber close error (may be expected)", zap.Error(err))
		}

		s.metrics.RecordSubscriberEnd(ctx, time.Since(s.connectedAt))
	})
}

// closeWith closes the connection with the given status; the reader then
// returns and cleanup runs on the serving goroutine.
func (s *subscriber) closeWith(code websocket.StatusCode, reason string) {
	atomic.StoreInt32(&s.open, 0)
	if err := s.ws.Close(code, reason); err != nil {
		s.logger.Debug("Error closing subscriber", zap.Error(err))
	}
}

// Package fanout serves the local websocket endpoint that republishes
// upstream frames to every connected subscriber.
//
// The subscriber set is owned by a single hub goroutine. Connection handlers
// register and unregister through channels, and Forward hands frames to the
// hub, which enqueues them on each open subscriber without blocking.
package fanout

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

var (
	ErrNotStarted   = errors.New("fan-out server not started")
	ErrServerClosed = errors.New("fan-out server closed")
)

const (
	shutdownReason   = "server shutting down"
	shutdownPollRate = 100 * time.Millisecond
)

// Server accepts local websocket subscribers and forwards frames to them.
type Server struct {
	config  *ServerConfig
	logger  *zap.Logger
	metrics *SubscriberMetrics

	mu         sync.Mutex
	started    bool
	closed     bool
	listener   net.Listener
	httpServer *http.Server

	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan string
	quit       chan struct{}
	hubDone    chan struct{}

	running     int32 // 1 while the hub accepts frames
	subscribers int64 // mirrored by the hub
	handlers    int64 // ServeHTTP calls in flight
}

func newServer(config *ServerConfig) *Server {
	return &Server{
		config:     config,
		logger:     config.logger,
		metrics:    NewSubscriberMetrics(config.metricsProvider),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan string),
		quit:       make(chan struct{}),
		hubDone:    make(chan struct{}),
	}
}

// Start binds the listen address and begins accepting subscribers. Only the
// first successful call does anything; later calls return nil. If binding
// fails the server stays unstarted and Start may be called again.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.started {
		return nil
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.config.addr)
	if err != nil {
		s.logger.Error("Failed to bind fan-out listener",
			zap.String("addr", s.config.addr),
			zap.Error(err),
		)
		return err
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:  s,
		ErrorLog: zap.NewStdLog(s.logger),
	}
	s.started = true

	go s.run()
	atomic.StoreInt32(&s.running, 1)

	go func() {
		err := s.httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Fan-out server stopped", zap.Error(err))
		}
	}()

	s.logger.Info("Fan-out server listening", zap.String("addr", listener.Addr().String()))

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SubscriberCount returns the number of registered subscribers.
func (s *Server) SubscriberCount() int {
	return int(atomic.LoadInt64(&s.subscribers))
}

// Forward queues frame, unchanged, for every open subscriber. It never waits
// on a slow subscriber; frames that do not fit in a subscriber's queue are
// dropped for that subscriber.
func (s *Server) Forward(ctx context.Context, frame string) error {
	if atomic.LoadInt32(&s.running) == 0 {
		select {
		case <-s.quit:
			return ErrServerClosed
		default:
			return ErrNotStarted
		}
	}

	select {
	case s.broadcast <- frame:
		return nil
	case <-s.quit:
		return ErrServerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeHTTP upgrades any request to a websocket subscriber and blocks until
// that subscriber goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&s.handlers, 1)
	defer atomic.AddInt64(&s.handlers, -1)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.config.originPatterns,
	})
	if err != nil {
		s.metrics.RecordAcceptError(r.Context())
		s.logger.Warn("Failed to accept subscriber",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("user_agent", r.UserAgent()),
		)
		return
	}

	sub := newSubscriber(ws, s.config, s.metrics, r.RemoteAddr)

	select {
	case s.register <- sub:
	case <-s.quit:
		ws.Close(websocket.StatusGoingAway, shutdownReason)
		return
	}

	sub.serve(r.Context())

	select {
	case s.unregister <- sub:
	case <-s.hubDone:
	}
}

// Shutdown stops accepting subscribers, closes the existing ones with
// StatusGoingAway and waits for them to finish or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	httpServer := s.httpServer
	s.mu.Unlock()

	atomic.StoreInt32(&s.running, 0)
	close(s.quit)

	if !started {
		return nil
	}

	s.logger.Info("Shutting down fan-out server",
		zap.Int("subscribers", s.SubscriberCount()),
	)

	if err := httpServer.Shutdown(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(shutdownPollRate)
	defer ticker.Stop()

	for {
		remaining := atomic.LoadInt64(&s.handlers)
		if remaining == 0 {
			<-s.hubDone
			s.logger.Info("All subscribers closed")
			return nil
		}

		select {
		case <-ctx.Done():
			s.logger.Warn("Shutdown timeout reached with active subscribers",
				zap.Int64("remaining", remaining),
			)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// run is the hub. It is the only goroutine that touches the subscriber set.
func (s *Server) run() {
	defer close(s.hubDone)

	ctx := context.Background()
	subscribers := make(map[*subscriber]struct{})

	updateCount := func() {
		atomic.StoreInt64(&s.subscribers, int64(len(subscribers)))
		s.metrics.RecordSubscriberActive(ctx, len(subscribers))
	}

	for {
		select {
		case sub := <-s.register:
			subscribers[sub] = struct{}{}
			updateCount()
			s.metrics.RecordSubscriberStart(ctx)
			s.logger.Info("Subscriber connected",
				zap.String("subscriber", sub.id),
				zap.String("remote_addr", sub.remoteAddr),
				zap.Int("subscribers", len(subscribers)),
			)

		case sub := <-s.unregister:
			if _, ok := subscribers[sub]; !ok {
				continue
			}
			delete(subscribers, sub)
			updateCount()
			s.logger.Info("Subscriber disconnected",
				zap.String("subscriber", sub.id),
				zap.Int("subscribers", len(subscribers)),
			)

		case frame := <-s.broadcast:
			for sub := range subscribers {
				if !sub.isOpen() {
					continue
				}
				if !sub.enqueue(frame) {
					s.metrics.RecordFrameDropped(ctx)
					s.logger.Warn("Subscriber queue full, dropping frame",
						zap.String("subscriber", sub.id),
					)
				}
			}

		case <-s.quit:
			for sub := range subscribers {
				go sub.closeWith(websocket.StatusGoingAway, shutdownReason)
			}
			atomic.StoreInt64(&s.subscribers, 0)
			return
		}
	}
}

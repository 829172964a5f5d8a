package upstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

var (
	ErrAlreadyListening = errors.New("connection is already listening")
	ErrHeartbeatTimeout = errors.New("no frame received within heartbeat window")
)

// Handler receives the traffic of one upstream connection. OnFrame is called
// from the connection's read goroutine, one frame at a time and in order.
// OnClose is called exactly once, after the last OnFrame.
type Handler interface {
	OnFrame(text string)
	OnClose(err error)
}

// Conn is a single upstream websocket. It is created by Dialer.Open and is
// not reused after it closes.
type Conn struct {
	ws           *websocket.Conn
	sid          string
	logger       *zap.Logger
	writeTimeout time.Duration
	idleTimeout  time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	listening int32
	closing   int32
	closeOnce sync.Once
	done      chan struct{}
}

func newConn(ws *websocket.Conn, sid string, logger *zap.Logger, writeTimeout, idleTimeout time.Duration) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		ws:           ws,
		sid:          sid,
		logger:       logger.With(zap.String("sid", sid)),
		writeTimeout: writeTimeout,
		idleTimeout:  idleTimeout,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// SessionID returns the Engine.IO session this connection belongs to.
func (c *Conn) SessionID() string {
	return c.sid
}

// Listen starts delivering inbound frames to h. It may be called once.
func (c *Conn) Listen(h Handler) error {
	if !atomic.CompareAndSwapInt32(&c.listening, 0, 1) {
		return ErrAlreadyListening
	}

	go c.readLoop(h)
	return nil
}

// Done is closed once the read loop has exited and OnClose has returned.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Send writes a single text frame.
func (c *Conn) Send(ctx context.Context, text string) error {
	writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	return c.ws.Write(writeCtx, websocket.MessageText, []byte(text))
}

// Close closes the connection with a normal closure. A listening handler
// receives OnClose(nil).
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		atomic.StoreInt32(&c.closing, 1)
		err = c.ws.Close(websocket.StatusNormalClosure, "client disconnect")
		c.cancel()
	})
	return err
}

// abort tears the connection down without a close handshake. Used when the
// transport has already failed so only a single close is ever reported.
func (c *Conn) abort() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.ws.CloseNow()
	})
}

func (c *Conn) readLoop(h Handler) {
	defer close(c.done)

	var err error
	for {
		var data []byte
		var msgType websocket.MessageType

		msgType, data, err = c.read()
		if err != nil {
			break
		}

		if msgType != websocket.MessageText {
			c.logger.Debug("Ignoring binary upstream frame", zap.Int("size", len(data)))
			continue
		}

		h.OnFrame(string(data))
	}

	if atomic.LoadInt32(&c.closing) == 1 {
		// Closed locally
		c.logger.Debug("Upstream read loop stopped")
		h.OnClose(nil)
		return
	}

	if status := websocket.CloseStatus(err); status != -1 {
		c.logger.Debug("Upstream closed the connection", zap.Int("close_status", int(status)))
	} else {
		c.logger.Debug("Upstream read failed", zap.Error(err))
	}

	c.abort()
	h.OnClose(err)
}

func (c *Conn) read() (websocket.MessageType, []byte, error) {
	if c.idleTimeout <= 0 {
		return c.ws.Read(c.ctx)
	}

	readCtx, cancel := context.WithTimeout(c.ctx, c.idleTimeout)
	defer cancel()

	msgType, data, err := c.ws.Read(readCtx)
	if err != nil && c.ctx.Err() == nil && errors.Is(readCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w (%s)", ErrHeartbeatTimeout, c.idleTimeout)
	}
	return msgType, data, err
}

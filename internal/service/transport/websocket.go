package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotOpen     = errors.New("transport not open")
	ErrClosed      = errors.New("transport closed")
	ErrAlreadyOpen = errors.New("transport already opened")
)

// Callbacks are the lifecycle observers of one connection. OnClose fires exactly once,
// whether the dial failed, the peer went away or Close was called. err is nil for a
// normal closure.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(payload string)
	OnClose   func(err error)
}

// Options tunes the underlying socket. Zero timeouts disable the deadline.
type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Header           http.Header
}

// DefaultOptions mirrors the defaults of the config package.
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// WebSocket is a single-use text transport over one gorilla/websocket connection.
type WebSocket struct {
	dialer *websocket.Dialer
	opts   Options

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	cb      Callbacks
	started bool
	closed  bool

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewWebSocket creates an unopened transport.
func NewWebSocket(opts Options) *WebSocket {
	return &WebSocket{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		opts: opts,
	}
}

// Open starts dialing url in the background and returns immediately. Callbacks are
// invoked from the transport's reader goroutine, in delivery order.
func (t *WebSocket) Open(ctx context.Context, url string, cb Callbacks) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyOpen
	}
	dialCtx, cancel := context.WithCancel(ctx)
	t.started = true
	t.cancel = cancel
	t.cb = cb
	t.mu.Unlock()

	go t.run(dialCtx, url)
	return nil
}

func (t *WebSocket) run(ctx context.Context, url string) {
	conn, _, err := t.dialer.DialContext(ctx, url, t.opts.Header)
	if err != nil {
		if t.isClosed() {
			t.finish(nil)
			return
		}
		log.Warn().Err(err).Str("url", url).Msg("[transport] dial failed")
		t.finish(errors.Wrap(err, "websocket dial failed"))
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close()
		t.finish(nil)
		return
	}
	t.conn = conn
	t.mu.Unlock()

	log.Debug().Str("url", url).Msg("[transport] connection open")
	if t.cb.OnOpen != nil {
		t.cb.OnOpen()
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			t.finish(t.classify(err))
			return
		}
		if t.cb.OnMessage != nil {
			t.cb.OnMessage(string(data))
		}
	}
}

func (t *WebSocket) classify(err error) error {
	if t.isClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Warn().Err(err).Msg("[transport] unexpected close")
	}
	return errors.Wrap(err, "websocket read failed")
}

func (t *WebSocket) finish(err error) {
	t.closeOnce.Do(func() {
		log.Debug().AnErr("cause", err).Msg("[transport] connection closed")
		if t.cb.OnClose != nil {
			t.cb.OnClose(err)
		}
	})
}

func (t *WebSocket) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Send writes text as a single text frame.
func (t *WebSocket) Send(text string) error {
	t.mu.Lock()
	conn, closed := t.conn, t.closed
	t.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotOpen
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.opts.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return errors.Wrap(err, "websocket write failed")
	}
	return nil
}

// Close sends a normal closure frame and releases the socket. It does not wait for the
// peer's reply. Calling Close more than once is a no-op.
func (t *WebSocket) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn, cancel := t.conn, t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(time.Second)
	if t.opts.WriteTimeout > 0 {
		deadline = time.Now().Add(t.opts.WriteTimeout)
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		log.Debug().Err(err).Msg("[transport] close frame not sent")
	}
	_ = conn.Close()
	return nil
}

// Package push maintains the WebSocket push channel and turns its frames
// into events.
package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxFrameBytes = 1 << 20

// Handler receives every event. It is called from the client's goroutine
// and must not block for long.
type Handler func(Event)

// Client connects to the push endpoint and reconnects with backoff until
// stopped.
type Client struct {
	url     string
	handler Handler
	logger  *zap.Logger

	minBackoff   time.Duration
	maxBackoff   time.Duration
	pingInterval time.Duration
	header       http.Header

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithBackoff sets the reconnect delay bounds.
func WithBackoff(lo, hi time.Duration) Option {
	return func(c *Client) {
		c.minBackoff, c.maxBackoff = lo, hi
	}
}

// WithPingInterval sets the keepalive period. Zero disables pings.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) { c.pingInterval = d }
}

// WithHeader adds headers to the handshake request.
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h.Clone() }
}

// New creates a push client for url.
func New(url string, h Handler, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		url:          url,
		handler:      h,
		logger:       logger,
		minBackoff:   500 * time.Millisecond,
		maxBackoff:   30 * time.Second,
		pingInterval: 20 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start runs the connection loop in the background.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.Run(ctx)
	}()
}

// Stop ends the connection loop and waits for it to exit.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run connects and reconnects until ctx is done.
func (c *Client) Run(ctx context.Context) {
	backoff := c.minBackoff
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = c.minBackoff
		}
		c.logger.Warn("push channel closed, reconnecting",
			zap.Error(err), zap.Duration("backoff", backoff))

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

// session runs one socket connection. It reports whether the handshake
// succeeded.
func (c *Client) session(ctx context.Context) (bool, error) {
	conn, resp, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{HTTPHeader: c.header})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.url, err)
	}
	conn.SetReadLimit(maxFrameBytes)
	defer func() { _ = conn.CloseNow() }()

	c.logger.Info("push channel connected", zap.String("url", c.url))
	c.emit(Event{Kind: KindConnected})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(gctx, conn) })
	if c.pingInterval > 0 {
		g.Go(func() error { return c.pingLoop(gctx, conn) })
	}
	err = g.Wait()

	if ctx.Err() != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
	c.emit(Event{Kind: KindDisconnected, Err: err})
	return true, err
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		mt, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if mt != websocket.MessageText && mt != websocket.MessageBinary {
			continue
		}
		evt, err := Decode(data)
		if err != nil {
			if errors.Is(err, ErrUnknownEvent) {
				c.logger.Debug("ignoring push event", zap.String("event", string(evt.Kind)))
			} else {
				c.logger.Warn("malformed push frame", zap.Error(err))
			}
			continue
		}
		c.emit(evt)
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, c.pingInterval)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (c *Client) emit(evt Event) {
	if c.handler != nil {
		c.handler(evt)
	}
}

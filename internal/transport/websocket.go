// Package transport provides a small reusable websocket client: it keeps one
// connection to the chatbot service alive, delivers inbound frames to a
// handler in arrival order, and reconnects with capped exponential backoff
// when the connection drops.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// ErrNotConnected is returned by Send while no connection is established.
var ErrNotConnected = errors.New("websocket is not connected")

// Client is a websocket client for one endpoint. Frames are read on a single
// goroutine inside Run, so the handler sees them strictly in arrival order.
type Client struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger

	onFrame  func([]byte)
	onStatus func(connected bool)

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewClient creates a client for url. Nothing is dialed until Run.
func NewClient(url string, logger *slog.Logger) *Client {
	return &Client{
		url:    url,
		dialer: websocket.DefaultDialer,
		logger: logger.With(slog.String("module", "transport")),
	}
}

// OnFrame registers the handler for inbound frames. It must be set before
// Run; the handler is invoked synchronously from the read loop.
func (c *Client) OnFrame(f func([]byte)) {
	c.onFrame = f
}

// OnStatus registers a callback invoked with true after each successful
// dial and false after each disconnect.
func (c *Client) OnStatus(f func(connected bool)) {
	c.onStatus = f
}

// Run dials the endpoint and reads frames until ctx is canceled. Dropped
// connections are redialed with exponential backoff, reset after every
// successful dial.
func (c *Client) Run(ctx context.Context) {
	backoff := initialBackoff

	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Failed to dial service",
				slog.String("url", c.url),
				slog.String("err", err.Error()))

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = initialBackoff
		c.setConn(conn)
		c.logger.Info("Connected to service", slog.String("url", c.url))
		if c.onStatus != nil {
			c.onStatus(true)
		}

		c.readLoop(ctx, conn)

		c.setConn(nil)
		_ = conn.Close()
		if c.onStatus != nil {
			c.onStatus(false)
		}
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("Disconnected from service, reconnecting")
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Unblock ReadMessage when the context is canceled.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Error("Failed to read frame", slog.String("err", err.Error()))
			}
			return
		}
		if c.onFrame != nil {
			c.onFrame(data)
		}
	}
}

// Send writes v as a JSON frame on the current connection.
func (c *Client) Send(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	// gorilla connections allow only one concurrent writer.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

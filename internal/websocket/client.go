package websocket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 32
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one feed connection on the server side.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	logger *slog.Logger
}

func NewClient(hub *Hub, conn *ws.Conn, logger *slog.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: logger,
	}
}

// Run registers the client and serves it until the connection closes or ctx
// is cancelled.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.feed(ctx) }()

	// The feed is one-way; reading only notices the peer going away.
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			cancel()
			break
		}
	}

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Debug("feed client ended", "error", err)
	}
}

// feed writes queued messages and keeps the connection alive with pings.
func (c *Client) feed(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(ws.StatusGoingAway, "feed closed")
				return nil
			}
			if err := c.write(ctx, msg); err != nil {
				return err
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}

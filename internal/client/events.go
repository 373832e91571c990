package client

import (
	"context"
	"strings"

	"github.com/dukerupert/chorewheel/internal/tracker"
	"github.com/dukerupert/chorewheel/internal/websocket"
)

// FeedURL is the websocket URL of the server's change feed.
func (c *Client) FeedURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/ws"
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/ws"
	default:
		return c.baseURL + "/ws"
	}
}

// Subscribe opens the change feed. Events arrive at least once and in no
// guaranteed order; the channel closes when the connection drops.
func (c *Client) Subscribe(ctx context.Context) (<-chan tracker.Event, error) {
	msgs, err := websocket.Subscribe(ctx, c.FeedURL(), c.logger)
	if err != nil {
		return nil, err
	}

	events := make(chan tracker.Event)
	go func() {
		defer close(events)
		for msg := range msgs {
			ev := tracker.Event{Entity: msg.Entity, Action: msg.Action, ID: msg.ID, Week: msg.Week}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

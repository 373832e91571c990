// Package websocket carries the chore change feed: a hub that fans store
// change notifications out to connected clients, and a subscriber that reads
// them on the other end.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Message is one change notification. Week is the affected week key for
// completion changes.
type Message struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     int64  `json:"id,omitempty"`
	Week   string `json:"week,omitempty"`
}

// NewMessage builds a Message whose Type is "<entity>_<action>".
func NewMessage(entity, action string, id int64, week string) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Week:   week,
	}
}

// Hub holds the connected feed clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
	dropped atomic.Int64
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client connected", "clients", n)
}

// Unregister removes c and closes its send channel. Calling it twice is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast queues msg for every client. A client whose buffer is full misses
// the message; its poll fallback picks the change up.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped counts messages skipped because a client buffer was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

package notifications

import (
	"context"
	"fmt"
	"sync"

	"newsdesk/internal/middleware"
	"newsdesk/internal/observability"
)

const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000
)

// Hub maintains the set of active websocket clients per user and pushes
// notification payloads to them.
type Hub struct {
	mu sync.RWMutex

	// clients maps userID -> set of connections for that user.
	clients map[uint]map[*Client]bool

	total int
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[uint]map[*Client]bool),
	}
}

// Name identifies this hub in logs and metrics.
func (h *Hub) Name() string { return "notifications" }

// RegisterClient adds a client connection. Returns an error when the user or
// the process has hit its connection limit.
func (h *Hub) RegisterClient(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.total >= maxTotalConns {
		return fmt.Errorf("connection limit reached")
	}
	conns := h.clients[c.UserID]
	if len(conns) >= maxConnsPerUser {
		return fmt.Errorf("too many connections for user %d", c.UserID)
	}
	if conns == nil {
		conns = make(map[*Client]bool)
		h.clients[c.UserID] = conns
	}
	conns[c] = true
	h.total++
	observability.WebSocketConnectionsTotal.Inc()
	return nil
}

// UnregisterClient removes a client connection and closes its send channel.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.UserID)
	}
	h.total--
	observability.WebSocketConnectionsTotal.Dec()
	close(c.Send)
}

// Broadcast pushes a payload to every connection of one user.
func (h *Hub) Broadcast(userID uint, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		c.TrySend(message)
	}
}

// BroadcastAll pushes a payload to every connected user.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conns := range h.clients {
		for c := range conns {
			c.TrySend(message)
		}
	}
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// StartWiring subscribes the hub to the notifier's Redis channels so payloads
// published by any instance reach the clients connected to this one.
func (h *Hub) StartWiring(ctx context.Context, notifier *Notifier) error {
	return notifier.StartPatternSubscriber(ctx, func(channel, payload string) {
		if channel == "notifications:broadcast" {
			h.BroadcastAll([]byte(payload))
			return
		}
		var userID uint
		if _, err := fmt.Sscanf(channel, "notifications:user:%d", &userID); err != nil {
			middleware.Logger.Warn("unparseable notification channel",
				"channel", channel, "error", err)
			return
		}
		h.Broadcast(userID, []byte(payload))
	})
}

// Shutdown closes every client connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.clients {
		for c := range conns {
			close(c.Send)
			_ = c.Conn.Close()
		}
	}
	h.clients = make(map[uint]map[*Client]bool)
	h.total = 0
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

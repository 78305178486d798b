// Package live pushes alerts to connected websocket clients.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// Message types sent to clients.
const (
	MessageAlert      = "alert"
	MessageSubscribed = "subscribed"
	MessageHeartbeat  = "heartbeat"
	MessageError      = "error"
)

// ServerMessage is the envelope for everything written to a client.
type ServerMessage struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub tracks connected clients and fans alerts out to them. It implements
// the notifier's Sender interface and http.Handler for the upgrade.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool

	upgrader websocket.Upgrader
	logger   *slog.Logger
	now      func() time.Time
}

// NewHub creates a hub. origins restricts the websocket Origin header; an
// empty list accepts any origin.
func NewHub(origins []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
		now:     time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(origins),
	}
	return h
}

func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

func (h *Hub) Name() string { return "websocket" }

// Send broadcasts a to every client subscribed to its kind. Clients whose
// buffer is full are disconnected. It never blocks on a client.
func (h *Hub) Send(_ context.Context, a types.Alert) error {
	msg, err := json.Marshal(ServerMessage{Type: MessageAlert, Payload: a, Timestamp: h.now()})
	if err != nil {
		return err
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		if !c.wants(a.Kind) {
			continue
		}
		if !c.trySend(msg) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("live: client too slow, disconnecting", "client", c.ID)
		h.unregister(c)
	}
	return nil
}

// ServeHTTP upgrades the request and starts the client's pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Warn("live: upgrade failed", "error", err)
		return
	}

	c := newClient(uuid.NewString(), conn, h)
	if !h.register(c) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	return nil
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Info("live: client connected", "client", c.ID, "total", len(h.clients))
	return true
}

// unregister is idempotent. It is the only place a client's send channel
// is closed, always under the write lock.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.logger.Info("live: client disconnected", "client", c.ID, "total", len(h.clients))
}

// reply queues msg for c if it is still connected.
func (h *Hub) reply(c *Client, msg ServerMessage) {
	msg.Timestamp = h.now()
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		c.trySend(b)
	}
}

package live

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ibeckermayer/sharpwatch/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 512
	sendBufferSize = 64
)

// ClientMessage is what a client may send. Subscribe with an empty Kinds
// list receives every alert.
type ClientMessage struct {
	Type  string            `json:"type"` // "subscribe" or "heartbeat"
	Kinds []types.AlertKind `json:"kinds,omitempty"`
}

// Client is one websocket connection.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu          sync.RWMutex
	kinds       map[types.AlertKind]bool
	connectedAt time.Time
	sent        int64
}

func newClient(id string, conn *websocket.Conn, h *Hub) *Client {
	return &Client{
		ID:          id,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		hub:         h,
		connectedAt: time.Now(),
	}
}

func (c *Client) wants(kind types.AlertKind) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.kinds) == 0 || c.kinds[kind]
}

func (c *Client) trySend(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("live: unexpected close", "client", c.ID, "error", err)
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		kinds := make(map[types.AlertKind]bool, len(msg.Kinds))
		for _, k := range msg.Kinds {
			kinds[k] = true
		}
		c.mu.Lock()
		c.kinds = kinds
		c.mu.Unlock()
		c.hub.reply(c, ServerMessage{Type: MessageSubscribed, Payload: msg.Kinds})
	case "heartbeat":
		c.mu.RLock()
		stats := map[string]any{"client_id": c.ID, "connected_at": c.connectedAt, "messages_sent": c.sent}
		c.mu.RUnlock()
		c.hub.reply(c, ServerMessage{Type: MessageHeartbeat, Payload: stats})
	default:
		c.hub.reply(c, ServerMessage{Type: MessageError, Payload: "unknown message type: " + msg.Type})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			c.mu.Lock()
			c.sent++
			c.mu.Unlock()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// writeTimeout bounds a single websocket write.
const writeTimeout = 5 * time.Second

// sendBuffer is how many events a client may fall behind before new ones
// are dropped for it.
const sendBuffer = 32

// client is one websocket subscriber. Only its writer goroutine writes to
// conn; gorilla connections allow a single concurrent writer.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writeLoop() {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Warn("failed to send event to websocket client", "error", err, "client_id", c.id)
		}
	}
}

// Hub broadcasts events to connected websocket clients. Handle never
// blocks on a client.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*client)}
}

// Add registers a connection, starts its writer and returns its client id.
func (h *Hub) Add(conn *websocket.Conn) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}
	h.clients[conn] = c
	go c.writeLoop()
	return c.id
}

// Remove unregisters a connection and stops its writer.
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[conn]; ok {
		close(c.send)
		delete(h.clients, conn)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handle is a Handler that queues e for every connected client. A client
// whose queue is full misses the event.
func (h *Hub) Handle(ctx context.Context, e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	data, err := json.Marshal(redact(e))
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal event", "error", err, "event", e.Type)
		return
	}

	// Sends happen under the read lock so Remove cannot close a queue mid-send.
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			slog.WarnContext(ctx, "websocket client too slow, dropping event",
				"client_id", c.id,
				"event", e.Type,
			)
		}
	}
}

// redact masks license keys before they leave the process.
func redact(e Event) Event {
	key, ok := e.Data["license_key"].(string)
	if !ok {
		return e
	}
	data := make(map[string]any, len(e.Data))
	for k, v := range e.Data {
		data[k] = v
	}
	if len(key) > 4 {
		data["license_key"] = "****" + key[len(key)-4:]
	} else {
		data["license_key"] = "****"
	}
	e.Data = data
	return e
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/agent-world/internal/engine"
)

const (
	wsWriteWait  = 5 * time.Second
	wsSendBuffer = 8
	maxWSClients = 64
)

// Hub fans the per-tick snapshot out to connected websocket clients.
// A client that cannot keep up is dropped rather than backing up the
// tick loop.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty broadcast hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// Broadcast encodes the snapshot once and queues it to every client.
func (h *Hub) Broadcast(snap engine.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		slog.Error("snapshot encode", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow consumer: close and forget.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ClientCount returns the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler upgrades the request and streams snapshots until the client
// disconnects.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		full := len(h.clients) >= maxWSClients
		h.mu.Unlock()
		if full {
			http.Error(w, "too many observers", http.StatusServiceUnavailable)
			return
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
		h.mu.Lock()
		h.clients[c] = struct{}{}
		h.mu.Unlock()

		go h.writeLoop(c)
		h.readLoop(c)
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))
}

// readLoop discards inbound messages; the stream is one-way. It exists
// to notice disconnects and process control frames.
func (h *Hub) readLoop(c *wsClient) {
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

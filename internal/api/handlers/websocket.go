package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tsijukebox/jukebox-backend/internal/apierr"
	"github.com/tsijukebox/jukebox-backend/internal/logger"
	"github.com/tsijukebox/jukebox-backend/internal/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512

	defaultPushInterval = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamMessage is the envelope sent to stats stream clients.
type StreamMessage struct {
	Type    string      `json:"type"` // "stats"
	Payload interface{} `json:"payload"`
}

// SnapshotFunc produces the payload pushed on every tick.
type SnapshotFunc func() CacheSnapshot

// Client is one stats stream connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks stats stream clients and pushes cache snapshots to them.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	snapshot SnapshotFunc
	interval time.Duration
	done     chan struct{}

	mu sync.RWMutex
}

// NewHub creates a hub pushing snapshot() every interval.
func NewHub(snapshot SnapshotFunc, interval time.Duration) *Hub {
	if interval <= 0 {
		interval = defaultPushInterval
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		snapshot:   snapshot,
		interval:   interval,
		done:       make(chan struct{}),
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) encodeSnapshot() ([]byte, error) {
	return json.Marshal(StreamMessage{Type: "stats", Payload: h.snapshot()})
}

// Run owns the client set until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
				metrics.WebSocketConnections.Dec()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketConnections.Inc()
			logger.Info("stats stream client connected", "total_clients", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.WebSocketConnections.Dec()
			}
			n := len(h.clients)
			h.mu.Unlock()
			logger.Info("stats stream client disconnected", "total_clients", n)

		case <-ticker.C:
			if h.ClientCount() == 0 {
				continue
			}
			data, err := h.encodeSnapshot()
			if err != nil {
				logger.Error("failed to marshal stats snapshot", "error", err)
				continue
			}
			h.fanOut(data)

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// fanOut must only be called from Run.
func (h *Hub) fanOut(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	for client := range h.clients {
		select {
		case client.send <- message:
			sent++
		default:
			// slow consumer
			close(client.send)
			delete(h.clients, client)
			metrics.WebSocketConnections.Dec()
		}
	}
	metrics.WebSocketMessagesSent.Add(float64(sent))
}

// Publish pushes a fresh snapshot to every client immediately, for example
// after a cache was cleared.
func (h *Hub) Publish() {
	data, err := h.encodeSnapshot()
	if err != nil {
		logger.Error("failed to marshal stats snapshot", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logger.Warn("stats broadcast queue full, dropping update")
	}
}

// readPump discards client messages and detects disconnects.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("stats stream unexpected close", "error", err)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS upgrades the connection, sends an initial snapshot and registers
// the client for periodic pushes.
// GET /api/cache/stream
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		apierr.WriteErrorWithContext(w, r, apierr.SystemUnavailable("Stats stream is shutting down"))
		return
	default:
	}

	// Upgrade replies with an HTTP error itself on failure.
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, 16)}
	if data, err := h.encodeSnapshot(); err == nil {
		client.send <- data
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

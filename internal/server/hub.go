package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Protocol-Lattice/saathi/internal/metrics"
	"github.com/Protocol-Lattice/saathi/pkg/conversation"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 20 * time.Second
	pongWait     = 2 * pingInterval
	sendBuffer   = 32
)

// Event is one websocket frame.
type Event struct {
	Type         string                     `json:"type"` // snapshot, notification
	Snapshot     *conversation.Snapshot     `json:"snapshot,omitempty"`
	Notification *conversation.Notification `json:"notification,omitempty"`
}

// Hub fans session snapshots and notifications out to websocket clients.
// Publish and Notify match conversation.Options.OnChange and
// conversation.Notifier.
type Hub struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates an empty hub. m may be nil.
func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger, metrics: m, clients: make(map[*client]struct{})}
}

// Publish broadcasts a snapshot and keeps it for clients that join later.
func (h *Hub) Publish(snap conversation.Snapshot) {
	frame, err := json.Marshal(Event{Type: "snapshot", Snapshot: &snap})
	if err != nil {
		h.logger.Error("marshal snapshot", zap.Error(err))
		return
	}
	h.mu.Lock()
	h.last = frame
	h.mu.Unlock()
	h.broadcast(frame)
}

// Notify broadcasts a notification.
func (h *Hub) Notify(n conversation.Notification) {
	frame, err := json.Marshal(Event{Type: "notification", Notification: &n})
	if err != nil {
		h.logger.Error("marshal notification", zap.Error(err))
		return
	}
	h.broadcast(frame)
}

func (h *Hub) broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			// Slow reader; it reconnects and receives the latest snapshot.
			h.logger.Warn("dropping slow websocket client")
			h.removeLocked(c)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.close()
	if h.metrics != nil {
		h.metrics.WSClients.Dec()
	}
}

// serve runs one connection until the peer leaves or the hub closes.
func (h *Hub) serve(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSClients.Inc()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.write(c)
	}()
	h.read(c)

	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
	<-done
}

// read drains client frames; clients only listen, so anything sent is ignored.
func (h *Hub) read(c *client) {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) write(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"throughput-tester/pkg/models"
)

const (
	hubQueueSize    = 64
	hubWriteTimeout = 2 * time.Second
	statsEventName  = "stats"
)

type envelope struct {
	Event string          `json:"event"`
	Data  models.Snapshot `json:"data"`
}

// Hub pushes snapshots to every connected websocket client.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	queue    chan models.Snapshot

	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		queue:    make(chan models.Snapshot, hubQueueSize),
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

// Notify queues s for broadcast. When the queue is full the snapshot is dropped.
func (h *Hub) Notify(s models.Snapshot) {
	select {
	case h.queue <- s:
	default:
		h.logger.Debug("Stats queue full, dropping snapshot")
	}
}

// Run writes queued snapshots to the clients until ctx is done, then closes
// every connection. It is the only writer of the client connections.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case s := <-h.queue:
			h.broadcast(s)
		}
	}
}

// HandleWS upgrades the request and keeps the client registered until it disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Websocket upgrade failed", "error", err)
		return
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("Stats subscriber connected", "remote", r.RemoteAddr)

	// keepalive reads to detect client close
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
	h.logger.Debug("Stats subscriber disconnected", "remote", r.RemoteAddr)
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(s models.Snapshot) {
	data, err := json.Marshal(envelope{Event: statsEventName, Data: s})
	if err != nil {
		h.logger.Error("Failed to encode snapshot", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		_ = c.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("Dropping stats subscriber", "error", err)
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.Close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()
	for c := range clients {
		_ = c.Close()
	}
}

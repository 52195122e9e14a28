package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lurewatch/lurewatch/internal/db"
	"github.com/lurewatch/lurewatch/internal/sse"
)

const (
	writeWait    = 5 * time.Second
	hydrateLimit = 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// History is the subset of the scan store used to hydrate new sockets.
type History interface {
	Stats(ctx context.Context) (*db.Stats, error)
	RecentScans(ctx context.Context, limit int) ([]db.Scan, error)
}

// Message is the envelope every socket frame uses.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type client struct {
	mu   sync.Mutex // gorilla allows one concurrent writer
	conn *websocket.Conn
}

func (c *client) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Manager tracks active WebSocket connections and relays hub events to them.
type Manager struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	hub     *sse.Hub
	history History
	logger  *slog.Logger
}

// NewManager creates a new WebSocket manager. history may be nil.
func NewManager(hub *sse.Hub, history History, logger *slog.Logger) *Manager {
	return &Manager{
		clients: make(map[*client]struct{}),
		hub:     hub,
		history: history,
		logger:  logger,
	}
}

// HandleWS upgrades an HTTP connection to WebSocket and registers it.
func (m *Manager) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn}

	// Register before hydrating so scans published meanwhile are relayed.
	m.mu.Lock()
	m.clients[c] = struct{}{}
	m.mu.Unlock()

	defer m.remove(c)

	m.hydrate(r.Context(), c)

	// Keep connection alive, read messages (we ignore them)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Run relays scan events from the hub until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	events, cancel := m.hub.Subscribe(sse.TopicScans)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg, err := json.Marshal(Message{Type: ev.Type, Data: ev.Data})
			if err != nil {
				m.logger.Warn("ws: encode event failed", "err", err)
				continue
			}
			m.Broadcast(msg)
		}
	}
}

// Broadcast sends msg to all connected clients and drops the ones that fail.
func (m *Manager) Broadcast(msg []byte) {
	m.mu.RLock()
	clients := make([]*client, 0, len(m.clients))
	for c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(msg); err != nil {
			m.remove(c)
		}
	}
}

// ConnectionCount returns the number of registered sockets.
func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) remove(c *client) {
	m.mu.Lock()
	_, ok := m.clients[c]
	delete(m.clients, c)
	m.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// hydrate sends current stats and the latest scans, oldest first.
func (m *Manager) hydrate(ctx context.Context, c *client) {
	if m.history == nil {
		return
	}
	if stats, err := m.history.Stats(ctx); err == nil {
		m.send(c, "stats", stats)
	}
	scans, err := m.history.RecentScans(ctx, hydrateLimit)
	if err != nil {
		m.logger.Warn("ws: hydrate failed", "err", err)
		return
	}
	for i := len(scans) - 1; i >= 0; i-- {
		m.send(c, "scan", scans[i])
	}
}

func (m *Manager) send(c *client, typ string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	msg, err := json.Marshal(Message{Type: typ, Data: data})
	if err != nil {
		return
	}
	c.write(msg)
}

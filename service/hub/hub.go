package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
	"github.com/JustinTDCT/onlineTracker/pkg/websocketx"
)

const (
	sendBuffer   = 32
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// StatusUpdate is pushed to dashboards whenever a check result is stored.
type StatusUpdate struct {
	MonitorID      uint64            `json:"monitor_id"`
	Name           string            `json:"name"`
	Kind           model.MonitorKind `json:"type"`
	AgentID        *string           `json:"agent_id,omitempty"`
	Status         model.Status      `json:"status"`
	ResponseTimeMs *int              `json:"response_time_ms,omitempty"`
	Details        string            `json:"details,omitempty"`
	TLSExpiryDays  *int              `json:"tls_expiry_days,omitempty"`
	CheckedAt      time.Time         `json:"checked_at"`
}

func NewStatusUpdate(m *model.Monitor, r *model.StatusRecord) (*StatusUpdate, error) {
	u := &StatusUpdate{}
	if err := copier.Copy(u, r); err != nil {
		return nil, err
	}
	u.MonitorID = m.ID
	u.Name = m.Name
	u.Kind = m.Kind
	u.AgentID = m.AgentID
	return u, nil
}

type client struct {
	conn *websocketx.Conn
	send chan []byte
}

// Hub fans status updates out to every connected websocket.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     *zap.Logger
}

func New(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     log.With(zap.String("component", "hub")),
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish never blocks; a client whose buffer is full is disconnected.
func (h *Hub) Publish(m *model.Monitor, r *model.StatusRecord) {
	u, err := NewStatusUpdate(m, r)
	if err != nil {
		h.log.Warn("build status update", zap.Uint64("monitor_id", m.ID), zap.Error(err))
		return
	}
	data, err := utils.Json.Marshal(u)
	if err != nil {
		h.log.Warn("encode status update", zap.Uint64("monitor_id", m.ID), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Debug("dropping slow websocket client")
			h.remove(c)
		}
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Serve registers conn and blocks until the peer disconnects.
func (h *Hub) Serve(ws *websocket.Conn) {
	c := &client{conn: websocketx.NewConn(ws, writeTimeout), send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("websocket client connected", zap.String("remote", ws.RemoteAddr().String()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		// inbound frames are ignored; reading surfaces the close
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		h.mu.Lock()
		h.remove(c)
		h.mu.Unlock()
		_ = ws.Close()
		h.log.Debug("websocket client disconnected")
	}()
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

package notification

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"propertyhub/internal/domain"
)

// Hub tracks connected staff sessions and pushes audit events to them.
// One live connection per user; a new connection replaces the old one.
type Hub struct {
	mu          sync.RWMutex
	connections map[int64]*websocket.Conn
	roles       map[int64]domain.Role
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[int64]*websocket.Conn),
		roles:       make(map[int64]domain.Role),
	}
}

func (h *Hub) Register(userID int64, role domain.Role, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.connections[userID]; ok && old != nil {
		_ = old.Close()
	}
	h.connections[userID] = conn
	h.roles[userID] = role
}

func (h *Hub) Unregister(userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, ok := h.connections[userID]; ok && conn != nil {
		_ = conn.Close()
	}
	delete(h.connections, userID)
	delete(h.roles, userID)
}

func (h *Hub) SendToUser(userID int64, message interface{}) bool {
	h.mu.RLock()
	conn, ok := h.connections[userID]
	h.mu.RUnlock()

	if !ok || conn == nil {
		return false
	}
	if err := conn.WriteJSON(message); err != nil {
		h.Unregister(userID)
		return false
	}
	return true
}

// PushAudit fans an urgent audit event out to every connected admin and
// manager. Implements the ledger's Notifier.
func (h *Hub) PushAudit(event *domain.AuditEvent) {
	h.mu.RLock()
	targets := make([]int64, 0, len(h.connections))
	for userID, role := range h.roles {
		if role == domain.RoleAdmin || role == domain.RoleManager {
			targets = append(targets, userID)
		}
	}
	h.mu.RUnlock()

	for _, userID := range targets {
		if !h.SendToUser(userID, map[string]interface{}{
			"type":  "audit",
			"event": event,
		}) {
			logrus.WithField("user_id", userID).Debug("dropped audit push to stale session")
		}
	}
}

func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conn := range h.connections {
		if conn != nil {
			_ = conn.Close()
		}
		delete(h.connections, userID)
		delete(h.roles, userID)
	}
}

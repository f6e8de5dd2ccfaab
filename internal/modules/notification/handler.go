package notification

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"propertyhub/internal/domain"
	"propertyhub/internal/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	hub *Hub
	db  *gorm.DB
}

func NewHandler(hub *Hub, db *gorm.DB) *Handler {
	return &Handler{hub: hub, db: db}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/notifications/ws", h.Connect)
	rg.GET("/audit-events", h.ListAuditEvents)
}

// Connect upgrades the request and parks the connection in the hub. The
// server only pushes; inbound frames are drained and dropped.
func (h *Handler) Connect(c *gin.Context) {
	userID := c.GetInt64("user_id")
	role := domain.Role(c.GetString("role"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.hub.Register(userID, role, conn)
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"online":  h.hub.OnlineCount(),
	}).Info("websocket session opened")
	go func() {
		defer h.hub.Unregister(userID)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Handler) ListAuditEvents(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	q := h.db.WithContext(c.Request.Context()).
		Order("created_at desc").
		Limit(limit)
	if p := c.Query("priority"); p != "" {
		q = q.Where("priority = ?", p)
	}
	if e := c.Query("entity"); e != "" {
		q = q.Where("entity = ?", e)
	}

	var events []domain.AuditEvent
	if err := q.Find(&events).Error; err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to list audit events")
		return
	}
	response.Success(c, http.StatusOK, events)
}

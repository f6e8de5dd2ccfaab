package registry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"propertyhub/internal/domain"
	"propertyhub/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts room management. staff can list; mutations are
// admin/manager only and guarded by the caller-supplied middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, adminOnly gin.HandlerFunc) {
	g := rg.Group("/properties/:property_id/rooms")
	{
		g.GET("", h.List)
		g.POST("", adminOnly, h.Add)
		g.PUT("/:room_id/status", adminOnly, h.SetStatus)
	}
}

func (h *Handler) List(c *gin.Context) {
	propertyID, err := strconv.ParseInt(c.Param("property_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid property id")
		return
	}
	rooms, err := h.svc.ListRooms(c.Request.Context(), propertyID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to list rooms")
		return
	}
	bookable := 0
	for i := range rooms {
		if rooms[i].IsBookable() {
			bookable++
		}
	}
	response.Success(c, http.StatusOK, gin.H{"rooms": rooms, "bookable_count": bookable})
}

func (h *Handler) Add(c *gin.Context) {
	propertyID, err := strconv.ParseInt(c.Param("property_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid property id")
		return
	}

	var req AddRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}
	req.PropertyID = propertyID

	room, err := h.svc.AddRoom(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, room)
}

type setStatusRequest struct {
	Status domain.RoomStatus `json:"status" binding:"required"`
}

func (h *Handler) SetStatus(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid room id")
		return
	}

	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}
	switch req.Status {
	case domain.RoomAvailable, domain.RoomMaintenance, domain.RoomOutOfOrder:
	default:
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "status must be available, maintenance or out_of_order")
		return
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	room, err := h.svc.SetRoomStatus(c.Request.Context(), roomID, req.Status, today)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, room)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrDuplicateRoom):
		response.Error(c, http.StatusConflict, response.CodeDuplicateRoom, err.Error())
	case errors.Is(err, ErrInvalidRate), errors.Is(err, ErrInvalidCapacity), errors.Is(err, ErrPropertyKind):
		response.Error(c, http.StatusBadRequest, response.CodeInvalidRate, err.Error())
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "room operation failed")
	}
}

package availability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"propertyhub/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/availability")
	{
		g.GET("/:property_id", h.Query)
		g.GET("/:property_id/next-date", h.NextDate)
	}
}

// Query answers GET /availability/:property_id?start=YYYY-MM-DD&end=YYYY-MM-DD[&room_number=101]
func (h *Handler) Query(c *gin.Context) {
	propertyID, err := strconv.ParseInt(c.Param("property_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid property id")
		return
	}

	start, err1 := time.Parse("2006-01-02", c.Query("start"))
	end, err2 := time.Parse("2006-01-02", c.Query("end"))
	if err1 != nil || err2 != nil {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidInterval, "start and end must be YYYY-MM-DD")
		return
	}

	var available bool
	if room := c.Query("room_number"); room != "" {
		available, err = h.svc.IsRoomAvailable(c.Request.Context(), propertyID, room, start, end)
	} else {
		available, err = h.svc.IsAvailable(c.Request.Context(), propertyID, start, end)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"property_id": propertyID,
		"start":       start.Format("2006-01-02"),
		"end":         end.Format("2006-01-02"),
		"available":   available,
	})
}

func (h *Handler) NextDate(c *gin.Context) {
	propertyID, err := strconv.ParseInt(c.Param("property_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid property id")
		return
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	d, err := h.svc.NextAvailableDate(c.Request.Context(), propertyID, today)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"property_id":         propertyID,
		"next_available_date": d.Format("2006-01-02"),
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInterval):
		response.Error(c, http.StatusBadRequest, response.CodeInvalidInterval, err.Error())
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "availability query failed")
	}
}

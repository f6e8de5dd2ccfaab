package booking

import (
	"context"
	"errors"
	"net/http"
	"strconv"

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

// RegisterRoutes mounts the booking surface. Creation and reads are open to
// any authenticated user (self-service bookings); lifecycle transitions are
// staff work, totals and archival admin work.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, staffOnly, adminOnly gin.HandlerFunc) {
	g := rg.Group("/bookings")
	{
		g.POST("", h.Create)
		g.GET("", h.List)
		g.GET("/:id", h.Get)
		g.POST("/:id/confirm", staffOnly, h.Confirm)
		g.POST("/:id/cancel", h.Cancel)
		g.POST("/:id/check-in", staffOnly, h.CheckIn)
		g.POST("/:id/check-out", staffOnly, h.CheckOut)
		g.PUT("/:id/total", adminOnly, h.UpdateTotal)
		g.DELETE("/:id", adminOnly, h.SoftDelete)
		g.POST("/:id/restore", adminOnly, h.Restore)
	}
	rg.GET("/properties/:property_id/timeline", staffOnly, h.Timeline)
	rg.GET("/booking-references/:reference", h.GetByReference)
	rg.GET("/customers", staffOnly, h.ListCustomers)
	rg.GET("/customers/:id", staffOnly, h.GetCustomer)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}
	req.CreatedByID = c.GetInt64("user_id")

	b, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, b)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid booking id")
		return
	}
	includeDeleted := c.Query("include_deleted") == "true" && c.GetString("role") == string(domain.RoleAdmin)

	b, err := h.svc.GetByID(c.Request.Context(), id, includeDeleted)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

func (h *Handler) GetByReference(c *gin.Context) {
	b, err := h.svc.GetByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

func (h *Handler) List(c *gin.Context) {
	f := ListFilter{
		Status:       c.Query("status"),
		PropertyType: c.Query("property_type"),
	}
	if v := c.Query("property_id"); v != "" {
		f.PropertyID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := c.Query("customer_id"); v != "" {
		f.CustomerID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := c.Query("limit"); v != "" {
		f.Limit, _ = strconv.Atoi(v)
	}
	if v := c.Query("offset"); v != "" {
		f.Offset, _ = strconv.Atoi(v)
	}
	f.IncludeDeleted = c.Query("include_deleted") == "true" && c.GetString("role") == string(domain.RoleAdmin)

	bookings, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to list bookings")
		return
	}
	response.Success(c, http.StatusOK, bookings)
}

func (h *Handler) Confirm(c *gin.Context)  { h.doTransition(c, h.svc.Confirm) }
func (h *Handler) Cancel(c *gin.Context)   { h.doTransition(c, h.svc.Cancel) }
func (h *Handler) CheckIn(c *gin.Context)  { h.doTransition(c, h.svc.CheckIn) }
func (h *Handler) CheckOut(c *gin.Context) { h.doTransition(c, h.svc.CheckOut) }

type updateTotalRequest struct {
	TotalAmount float64 `json:"total_amount" binding:"gte=0"`
}

func (h *Handler) UpdateTotal(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid booking id")
		return
	}
	var req updateTotalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}

	b, err := h.svc.UpdateTotalAmount(c.Request.Context(), id, req.TotalAmount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

func (h *Handler) SoftDelete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid booking id")
		return
	}
	b, err := h.svc.SoftDelete(c.Request.Context(), id, c.GetInt64("user_id"), domain.Role(c.GetString("role")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

func (h *Handler) Restore(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid booking id")
		return
	}
	b, err := h.svc.Restore(c.Request.Context(), id, domain.Role(c.GetString("role")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

func (h *Handler) Timeline(c *gin.Context) {
	propertyID, err := strconv.ParseInt(c.Param("property_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid property id")
		return
	}
	entries, err := h.svc.Timeline(c.Request.Context(), propertyID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to build timeline")
		return
	}
	response.Success(c, http.StatusOK, entries)
}

func (h *Handler) ListCustomers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	customers, err := h.svc.ListCustomers(c.Request.Context(), c.Query("search"), limit, offset)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to list customers")
		return
	}
	response.Success(c, http.StatusOK, customers)
}

func (h *Handler) GetCustomer(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid customer id")
		return
	}
	customer, bookings, err := h.svc.GetCustomer(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"customer": customer, "bookings": bookings})
}

func (h *Handler) doTransition(c *gin.Context, fn func(ctx context.Context, id int64) (*domain.Booking, error)) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid booking id")
		return
	}
	b, err := fn(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotAvailable):
		response.Error(c, http.StatusConflict, response.CodeNotAvailable, err.Error())
	case errors.Is(err, ErrInvalidInterval):
		response.Error(c, http.StatusBadRequest, response.CodeInvalidInterval, err.Error())
	case errors.Is(err, ErrRoomRequired), errors.Is(err, ErrValidation), errors.Is(err, ErrTotalBelowPaid):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, ErrIllegalTransition):
		response.Error(c, http.StatusConflict, response.CodeIllegalTransition, err.Error())
	case errors.Is(err, ErrUnauthorised):
		response.Error(c, http.StatusForbidden, response.CodeUnauthorised, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "booking operation failed")
	}
}

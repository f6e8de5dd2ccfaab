package visit

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"propertyhub/internal/domain"
	"propertyhub/internal/modules/gateway"
	"propertyhub/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/properties/:property_id/visit-access")
	{
		g.GET("", h.Status)
		g.POST("/initiate", h.Initiate)
		g.POST("/verify", h.Verify)
	}
}

func (h *Handler) Status(c *gin.Context) {
	propertyID, ok := h.propertyID(c)
	if !ok {
		return
	}
	view, err := h.svc.Status(c.Request.Context(), propertyID, c.GetInt64("user_id"), domain.Role(c.GetString("role")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

type initiateRequest struct {
	Phone    string               `json:"phone" binding:"required"`
	Provider string               `json:"provider"`
	Method   domain.PaymentMethod `json:"payment_method"`
}

func (h *Handler) Initiate(c *gin.Context) {
	propertyID, ok := h.propertyID(c)
	if !ok {
		return
	}
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}
	if req.Method == "" {
		req.Method = domain.MethodMobileMoney
	}

	result, err := h.svc.Initiate(c.Request.Context(), propertyID, c.GetInt64("user_id"), req.Phone, req.Provider, req.Method)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, result)
}

func (h *Handler) Verify(c *gin.Context) {
	propertyID, ok := h.propertyID(c)
	if !ok {
		return
	}
	view, err := h.svc.Verify(c.Request.Context(), propertyID, c.GetInt64("user_id"), domain.Role(c.GetString("role")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

func (h *Handler) propertyID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("property_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid property id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, ErrNotGated), errors.Is(err, ErrAlreadyActive):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
	case errors.Is(err, gateway.ErrGatewayFailure):
		response.Error(c, http.StatusBadGateway, response.CodeGatewayFailure, err.Error())
	case errors.Is(err, ErrUnauthorised):
		response.Error(c, http.StatusForbidden, response.CodeUnauthorised, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "visit access operation failed")
	}
}

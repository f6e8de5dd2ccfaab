package gateway

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"propertyhub/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the authenticated gateway surface. The webhook is
// mounted separately on the public router.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/payments/gateway")
	{
		g.POST("/initiate", h.Initiate)
		g.POST("/verify/:reference", h.Verify)
	}
}

// RegisterWebhook mounts the provider callback, unauthenticated: the HMAC
// signature is the auth.
func (h *Handler) RegisterWebhook(r gin.IRouter) {
	r.POST("/webhooks/azampay", h.Webhook)
}

func (h *Handler) Initiate(c *gin.Context) {
	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}
	req.ActorID = c.GetInt64("user_id")

	result, err := h.svc.Initiate(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, result)
}

func (h *Handler) Verify(c *gin.Context) {
	txn, err := h.svc.Verify(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, txn)
}

func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "unreadable body")
		return
	}
	signature := c.GetHeader("X-Signature")
	if signature == "" {
		signature = c.GetHeader("X-Azampay-Signature")
	}

	if err := h.svc.HandleWebhook(c.Request.Context(), body, signature); err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorised, "invalid signature")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "webhook processing failed")
		return
	}
	// Always 2xx once persisted so the provider stops retrying.
	response.Success(c, http.StatusOK, gin.H{"received": true})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrGatewayFailure):
		response.Error(c, http.StatusBadGateway, response.CodeGatewayFailure, err.Error())
	case errors.Is(err, ErrPhoneRequired), errors.Is(err, ErrUnsupportedMethod):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	default:
		// Ledger errors (overpayment etc.) bubble through Initiate.
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
	}
}

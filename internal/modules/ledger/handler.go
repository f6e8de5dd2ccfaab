package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"propertyhub/internal/domain"
	"propertyhub/internal/pkg/receipt"
	"propertyhub/internal/pkg/response"
)

type Handler struct {
	svc      *Service
	receipts *receipt.Store
}

func NewHandler(svc *Service, receipts *receipt.Store) *Handler {
	return &Handler{svc: svc, receipts: receipts}
}

// RegisterRoutes mounts the ledger. Recording and refunds are manager+,
// edits and deletes admin only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, managerOnly, adminOnly gin.HandlerFunc) {
	g := rg.Group("/payments")
	{
		g.POST("", managerOnly, h.Record)
		g.POST("/refunds", managerOnly, h.Refund)
		g.PUT("/:id", adminOnly, h.Edit)
		g.DELETE("/:id", adminOnly, h.Delete)
		g.GET("/:id/receipt", managerOnly, h.Receipt)
	}
	rg.GET("/bookings/:id/payments", h.ListForBooking)
	rg.GET("/bookings/:id/ledger", h.Summary)
}

// Record accepts JSON for card/bank payments and multipart (with a receipt
// file) for cash.
func (h *Handler) Record(c *gin.Context) {
	var req RecordPaymentRequest

	if isMultipart(c) {
		if err := h.bindMultipart(c, &req); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}
	req.RecordedByID = c.GetInt64("user_id")

	p, err := h.svc.RecordPayment(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, p)
}

func (h *Handler) Refund(c *gin.Context) {
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}
	req.RecordedByID = c.GetInt64("user_id")

	p, err := h.svc.RecordRefund(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, p)
}

func (h *Handler) Edit(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid payment id")
		return
	}
	var req EditPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}
	req.ActorID = c.GetInt64("user_id")

	p, err := h.svc.EditPayment(c.Request.Context(), id, req, domain.Role(c.GetString("role")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid payment id")
		return
	}

	err = h.svc.DeletePayment(c.Request.Context(), id, c.GetInt64("user_id"), domain.Role(c.GetString("role")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Receipt serves the stored receipt file of a payment.
func (h *Handler) Receipt(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid payment id")
		return
	}
	p, err := h.svc.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if p.ReceiptPath == "" {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "payment has no receipt")
		return
	}
	c.File(h.receipts.AbsolutePath(p.ReceiptPath))
}

func (h *Handler) ListForBooking(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid booking id")
		return
	}
	payments, err := h.svc.ListPayments(c.Request.Context(), id)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to list payments")
		return
	}
	response.Success(c, http.StatusOK, payments)
}

func (h *Handler) Summary(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid booking id")
		return
	}
	summary, err := h.svc.GetSummary(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

func isMultipart(c *gin.Context) bool {
	ct := c.ContentType()
	return ct == "multipart/form-data"
}

func (h *Handler) bindMultipart(c *gin.Context, req *RecordPaymentRequest) error {
	bookingID, err := strconv.ParseInt(c.PostForm("booking_id"), 10, 64)
	if err != nil {
		return errors.New("invalid booking_id")
	}
	amount, err := strconv.ParseFloat(c.PostForm("amount"), 64)
	if err != nil {
		return errors.New("invalid amount")
	}
	req.BookingID = bookingID
	req.Amount = amount
	req.Method = domain.PaymentMethod(c.PostForm("payment_method"))
	req.Type = domain.PaymentType(c.PostForm("payment_type"))
	req.Notes = c.PostForm("notes")
	req.MobileMoneyProvider = c.PostForm("mobile_money_provider")

	file, err := c.FormFile("receipt")
	if err == nil {
		rel, err := h.receipts.Save(c, file, "booking-"+c.PostForm("booking_id"))
		if err != nil {
			return errors.New("failed to store receipt")
		}
		req.ReceiptPath = rel
	}
	return nil
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrOverpayment):
		response.Error(c, http.StatusBadRequest, response.CodeOverpayment, err.Error())
	case errors.Is(err, ErrInsufficientPaid):
		response.Error(c, http.StatusBadRequest, response.CodeInsufficientPaid, err.Error())
	case errors.Is(err, ErrReceiptRequired):
		response.Error(c, http.StatusBadRequest, response.CodeReceiptRequired, err.Error())
	case errors.Is(err, ErrProviderRequired), errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrBookingClosed):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, ErrUnauthorised):
		response.Error(c, http.StatusForbidden, response.CodeUnauthorised, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "payment operation failed")
	}
}

package ledger

import (
	"time"

	"propertyhub/internal/domain"
)

type RecordPaymentRequest struct {
	BookingID int64                `json:"booking_id" binding:"required"`
	Amount    float64              `json:"amount" binding:"required,gt=0"`
	Method    domain.PaymentMethod `json:"payment_method" binding:"required"`
	Type      domain.PaymentType   `json:"payment_type"`
	Notes     string               `json:"notes"`

	// Required when Method is mobile_money.
	MobileMoneyProvider string `json:"mobile_money_provider"`

	// Set by the handler after storing the uploaded file; required for cash.
	ReceiptPath string `json:"-"`

	RecordedByID int64 `json:"-"`
}

type RefundRequest struct {
	BookingID    int64   `json:"booking_id" binding:"required"`
	Amount       float64 `json:"amount" binding:"required,gt=0"`
	Reason       string  `json:"reason" binding:"required"`
	RecordedByID int64   `json:"-"`
}

type EditPaymentRequest struct {
	Amount  *float64              `json:"amount"`
	Notes   *string               `json:"notes"`
	Method  *domain.PaymentMethod `json:"payment_method"`
	ActorID int64                 `json:"-"`
}

// Summary is the ledger view of one booking.
type Summary struct {
	BookingID        int64                       `json:"booking_id"`
	BookingReference string                      `json:"booking_reference"`
	TotalAmount      float64                     `json:"total_amount"`
	PaidAmount       float64                     `json:"paid_amount"`
	RefundedAmount   float64                     `json:"refunded_amount"`
	RemainingAmount  float64                     `json:"remaining_amount"`
	PaymentStatus    domain.BookingPaymentStatus `json:"payment_status"`

	PaymentCount      int                  `json:"payment_count"`
	LastPaymentDate   *time.Time           `json:"last_payment_date,omitempty"`
	LastPaymentMethod domain.PaymentMethod `json:"last_payment_method,omitempty"`

	Payments []domain.Payment `json:"payments"`
}

package domain

import "time"

type PaymentMethod string

const (
	MethodCash        PaymentMethod = "cash"
	MethodCard        PaymentMethod = "card"
	MethodMobileMoney PaymentMethod = "mobile_money"
	MethodBank        PaymentMethod = "bank"
	MethodOnline      PaymentMethod = "online"
)

type PaymentType string

const (
	PaymentDeposit PaymentType = "deposit"
	PaymentPartial PaymentType = "partial"
	PaymentFull    PaymentType = "full"
	PaymentRefund  PaymentType = "refund"
)

type PaymentState string

const (
	// PaymentActive: manual entry (cash/card), settled immediately.
	PaymentActive PaymentState = "active"
	// PaymentPending: created by the gateway orchestrator, awaiting
	// confirmation. Promoted to PaymentCompleted on verified webhook.
	PaymentPending   PaymentState = "pending"
	PaymentCompleted PaymentState = "completed"
	PaymentFailed    PaymentState = "failed"
	PaymentRefunded  PaymentState = "refunded"
)

// Payment is a ledger entry attached to exactly one booking (or one visit
// payment). Refunds are payments with Type=refund; they never mutate earlier
// rows.
type Payment struct {
	ID        int64  `json:"id" gorm:"primaryKey"`
	BookingID *int64 `json:"booking_id,omitempty" gorm:"index"`

	Amount float64       `json:"amount" validate:"required,gt=0"`
	Method PaymentMethod `json:"payment_method" gorm:"type:varchar(20);not null"`
	Type   PaymentType   `json:"payment_type" gorm:"type:varchar(20);not null"`
	State  PaymentState  `json:"status" gorm:"column:status;type:varchar(20);index;default:'active'"`

	// TransactionReference is unique within a booking (PAY-<ref>-NNN for
	// charges, REF-NNN for refunds).
	TransactionReference string    `json:"transaction_reference" gorm:"index"`
	PaymentDate          time.Time `json:"payment_date"`
	Notes                string    `json:"notes,omitempty" gorm:"type:text"`

	// MobileMoneyProvider is required for mobile_money payments
	// (AIRTEL, TIGO, MPESA, HALOPESA).
	MobileMoneyProvider string `json:"mobile_money_provider,omitempty" gorm:"type:varchar(20)"`

	// ReceiptPath stores the uploaded proof of payment, mandatory for cash.
	ReceiptPath string `json:"receipt_path,omitempty"`

	RecordedByID int64 `json:"recorded_by_id"`

	RefundReason string `json:"refund_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Transactions []GatewayTransaction `json:"transactions,omitempty" gorm:"foreignKey:PaymentID"`
}

func (Payment) TableName() string { return "payments" }

// Settled reports whether the payment counts toward the booking's paid
// amount.
func (p *Payment) Settled() bool {
	return p.State == PaymentActive || p.State == PaymentCompleted
}

func (p *Payment) IsRefund() bool { return p.Type == PaymentRefund }

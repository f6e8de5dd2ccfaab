package domain

import "time"

type VisitPaymentStatus string

const (
	VisitPaymentPending   VisitPaymentStatus = "pending"
	VisitPaymentCompleted VisitPaymentStatus = "completed"
	VisitPaymentFailed    VisitPaymentStatus = "failed"
)

// PropertyVisitPayment gates disclosure of a house owner's contact details.
// One row per (property, user); an expired row is reset to pending and
// re-used on the next initiation.
type PropertyVisitPayment struct {
	ID         int64 `json:"id" gorm:"primaryKey"`
	PropertyID int64 `json:"property_id" gorm:"uniqueIndex:idx_visit_property_user;not null"`
	UserID     int64 `json:"user_id" gorm:"uniqueIndex:idx_visit_property_user;not null"`

	Amount float64            `json:"amount"`
	Status VisitPaymentStatus `json:"status" gorm:"type:varchar(20);default:'pending'"`

	PaymentID *int64 `json:"payment_id,omitempty" gorm:"index"`

	TransactionID    string `json:"transaction_id,omitempty"`
	GatewayReference string `json:"gateway_reference,omitempty"`

	PaidAt    *time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Payment *Payment `json:"payment,omitempty" gorm:"foreignKey:PaymentID"`
}

func (PropertyVisitPayment) TableName() string { return "property_visit_payments" }

// ActiveAt reports whether paid access is still valid at t for the given TTL.
func (v *PropertyVisitPayment) ActiveAt(t time.Time, ttl time.Duration) bool {
	if v.Status != VisitPaymentCompleted || v.PaidAt == nil {
		return false
	}
	return t.Sub(*v.PaidAt) < ttl
}

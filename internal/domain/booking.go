package domain

import "time"

type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingCheckedIn  BookingStatus = "checked_in"
	BookingCheckedOut BookingStatus = "checked_out"
	BookingCancelled  BookingStatus = "cancelled"
)

type BookingPaymentStatus string

const (
	BookingPaymentPending BookingPaymentStatus = "pending"
	BookingPaymentPartial BookingPaymentStatus = "partial"
	BookingPaymentPaid    BookingPaymentStatus = "paid"
)

// Booking occupies a property (or a specific room of a hotel/lodge) over the
// half-open interval [CheckInDate, CheckOutDate). PaidAmount and
// PaymentStatus are derived fields owned by the payment ledger; every write
// path funnels through it.
type Booking struct {
	ID               int64  `json:"id" gorm:"primaryKey"`
	BookingReference string `json:"booking_reference" gorm:"uniqueIndex;not null"`

	PropertyID int64   `json:"property_id" gorm:"index;not null" validate:"required"`
	CustomerID int64   `json:"customer_id" gorm:"index;not null" validate:"required"`
	RoomNumber *string `json:"room_number,omitempty" gorm:"index"`

	CheckInDate    time.Time `json:"check_in_date" validate:"required"`
	CheckOutDate   time.Time `json:"check_out_date" validate:"required"`
	NumberOfGuests int       `json:"number_of_guests" gorm:"default:1" validate:"gte=1"`

	TotalAmount float64 `json:"total_amount" validate:"gte=0"`
	PaidAmount  float64 `json:"paid_amount"`

	BookingStatus BookingStatus        `json:"booking_status" gorm:"type:varchar(20);index;default:'pending'"`
	PaymentStatus BookingPaymentStatus `json:"payment_status" gorm:"type:varchar(20);default:'pending'"`

	SpecialRequests string `json:"special_requests,omitempty" gorm:"type:text"`

	CreatedByID int64 `json:"created_by_id"`

	// Soft delete: admin archival of terminal bookings only. Archived rows
	// stay queryable behind an explicit flag.
	IsDeleted bool       `json:"is_deleted" gorm:"index;default:false"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *int64     `json:"deleted_by,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	CheckedOutAt *time.Time `json:"checked_out_at,omitempty"`

	Property *Property `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
	Customer *Customer `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Payments []Payment `json:"payments,omitempty" gorm:"foreignKey:BookingID"`
}

func (Booking) TableName() string { return "bookings" }

func (b *Booking) RemainingAmount() float64 {
	if rem := b.TotalAmount - b.PaidAmount; rem > 0 {
		return rem
	}
	return 0
}

func (b *Booking) DurationDays() int {
	return int(b.CheckOutDate.Sub(b.CheckInDate).Hours() / 24)
}

// IsTerminal reports whether the booking reached a final state; only
// terminal bookings may be archived.
func (b *Booking) IsTerminal() bool {
	return b.BookingStatus == BookingCancelled || b.BookingStatus == BookingCheckedOut
}

// Blocks reports whether the booking counts against availability.
func (b *Booking) Blocks() bool {
	if b.IsDeleted {
		return false
	}
	switch b.BookingStatus {
	case BookingPending, BookingConfirmed, BookingCheckedIn:
		return true
	}
	return false
}

// Covers reports whether the interval [CheckInDate, CheckOutDate) contains d.
func (b *Booking) Covers(d time.Time) bool {
	return !d.Before(b.CheckInDate) && d.Before(b.CheckOutDate)
}

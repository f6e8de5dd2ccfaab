package domain

import "time"

type LeaseStatus string

const (
	LeaseActive     LeaseStatus = "active"
	LeaseTerminated LeaseStatus = "terminated"
	LeaseExpired    LeaseStatus = "expired"
)

// Lease is written by the external leasing collaborator; the core only reads
// it. An active lease blocks property availability the same way a booking
// does.
type Lease struct {
	ID         int64 `json:"id" gorm:"primaryKey"`
	PropertyID int64 `json:"property_id" gorm:"index;not null"`
	TenantID   int64 `json:"tenant_id" gorm:"index;not null"`

	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	RentAmount float64     `json:"rent_amount"`
	Status     LeaseStatus `json:"status" gorm:"type:varchar(20);default:'active'"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Lease) TableName() string { return "leases" }

// BlocksInterval reports whether the lease overlaps [start, end).
func (l *Lease) BlocksInterval(start, end time.Time) bool {
	if l.Status != LeaseActive {
		return false
	}
	if l.EndDate == nil {
		return l.StartDate.Before(end)
	}
	return l.StartDate.Before(end) && start.Before(*l.EndDate)
}

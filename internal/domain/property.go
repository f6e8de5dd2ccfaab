package domain

import "time"

type PropertyType string

const (
	PropertyHouse PropertyType = "house"
	PropertyHotel PropertyType = "hotel"
	PropertyLodge PropertyType = "lodge"
	PropertyVenue PropertyType = "venue"
)

type RentPeriod string

const (
	RentPerHour  RentPeriod = "hour"
	RentPerDay   RentPeriod = "day"
	RentPerWeek  RentPeriod = "week"
	RentPerMonth RentPeriod = "month"
	RentPerYear  RentPeriod = "year"
)

type PropertyStatus string

const (
	PropertyAvailable PropertyStatus = "available"
	PropertyRented    PropertyStatus = "rented"
)

type Property struct {
	ID      int64        `json:"id" gorm:"primaryKey"`
	OwnerID int64        `json:"owner_id" gorm:"index;not null"`
	Title   string       `json:"title" gorm:"not null"`
	Type    PropertyType `json:"type" gorm:"type:varchar(10);index;not null"`
	Address string       `json:"address,omitempty"`
	City    string       `json:"city,omitempty"`

	RentAmount float64    `json:"rent_amount" validate:"gte=0"`
	RentPeriod RentPeriod `json:"rent_period" gorm:"type:varchar(10);default:'day'"`

	// VisitCost only applies to houses: the one-time fee a user pays to see
	// the owner's contact details and exact location.
	VisitCost float64 `json:"visit_cost,omitempty" validate:"gte=0"`

	Status PropertyStatus `json:"status" gorm:"type:varchar(20);default:'available'"`

	// 0 disables auto-cancellation of unpaid pending bookings.
	BookingExpirationHours int `json:"booking_expiration_hours" gorm:"default:0"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Rooms []Room `json:"rooms,omitempty" gorm:"foreignKey:PropertyID"`
}

func (Property) TableName() string { return "properties" }

func (p *Property) IsHouse() bool { return p.Type == PropertyHouse }
func (p *Property) IsHotel() bool { return p.Type == PropertyHotel }
func (p *Property) IsLodge() bool { return p.Type == PropertyLodge }
func (p *Property) IsVenue() bool { return p.Type == PropertyVenue }

// HasRooms reports whether bookings of this property are room-scoped.
func (p *Property) HasRooms() bool { return p.Type == PropertyHotel || p.Type == PropertyLodge }

// ReferencePrefix is used when generating booking references.
func (p *Property) ReferencePrefix() string {
	switch p.Type {
	case PropertyHotel:
		return "HTL"
	case PropertyLodge:
		return "LDG"
	case PropertyVenue:
		return "VEN"
	default:
		return "HSE"
	}
}

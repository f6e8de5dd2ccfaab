package domain

import "time"

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomOccupied    RoomStatus = "occupied"
	RoomMaintenance RoomStatus = "maintenance"
	RoomOutOfOrder  RoomStatus = "out_of_order"
)

// Room belongs to exactly one hotel or lodge property. (PropertyID,
// RoomNumber) is unique. BaseRate is mandatory: room bookings never fall back
// to the property rent amount.
type Room struct {
	ID          int64  `json:"id" gorm:"primaryKey"`
	PropertyID  int64  `json:"property_id" gorm:"uniqueIndex:idx_property_room;not null"`
	RoomNumber  string `json:"room_number" gorm:"uniqueIndex:idx_property_room;not null" validate:"required"`
	RoomType    string `json:"room_type,omitempty"`
	FloorNumber *int   `json:"floor_number,omitempty"`

	Capacity int     `json:"capacity" gorm:"default:1" validate:"gte=1"`
	BedType  string  `json:"bed_type,omitempty"`
	BaseRate float64 `json:"base_rate" validate:"required,gt=0"`

	Status   RoomStatus `json:"status" gorm:"type:varchar(20);default:'available'"`
	IsActive bool       `json:"is_active" gorm:"default:true"`

	// CurrentBookingID references the booking occupying the room today,
	// null while the room is free.
	CurrentBookingID *int64 `json:"current_booking_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CurrentBooking *Booking `json:"current_booking,omitempty" gorm:"foreignKey:CurrentBookingID"`
}

func (Room) TableName() string { return "rooms" }

func (r *Room) IsBookable() bool {
	return r.IsActive && r.Status == RoomAvailable && r.CurrentBookingID == nil
}

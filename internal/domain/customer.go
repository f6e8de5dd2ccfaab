package domain

import "time"

// Customer is the person a booking is made for. Customers are distinct from
// platform users, though staff often link them 1:1.
type Customer struct {
	ID        int64  `json:"id" gorm:"primaryKey"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" gorm:"uniqueIndex;not null" validate:"required,email"`
	Phone     string `json:"phone" gorm:"uniqueIndex;not null" validate:"required"`

	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
	Country  string `json:"country,omitempty"`
	IDType   string `json:"id_type,omitempty"`
	IDNumber string `json:"id_number,omitempty"`

	Notes    string `json:"notes,omitempty" gorm:"type:text"`
	IsActive bool   `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

func (c *Customer) FullName() string { return c.FirstName + " " + c.LastName }

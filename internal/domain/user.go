package domain

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

// User is a platform account (staff or self-service customer). Account
// management lives outside the core; this is the minimal surface the core
// needs for authorisation and payer phone resolution.
type User struct {
	ID           int64  `json:"id" gorm:"primaryKey"`
	Email        string `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"not null"`
	FullName     string `json:"full_name"`
	Phone        string `json:"phone" gorm:"index"`
	Role         Role   `json:"role" gorm:"type:varchar(20);default:'staff'"`
	IsActive     bool   `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff, RoleCustomer:
		return true
	}
	return false
}

func (User) TableName() string { return "users" }

func (u *User) CanManagePayments() bool {
	return u.Role == RoleAdmin || u.Role == RoleManager
}

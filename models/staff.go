package models

import (
	"time"

	"gorm.io/gorm"
)

// Role is the capability level of an authenticated principal
type Role string

const (
	RoleSuperAdmin   Role = "super_admin"
	RoleManager      Role = "manager"
	RoleReceptionist Role = "receptionist"
	RoleMechanic     Role = "mechanic"
	RoleCustomer     Role = "customer"
)

// IsStaff reports whether the role belongs to shop personnel
func (r Role) IsStaff() bool {
	switch r {
	case RoleSuperAdmin, RoleManager, RoleReceptionist, RoleMechanic:
		return true
	}
	return false
}

// IsFrontDesk reports whether the role may handle customers, invoices and
// work orders outside of the mechanic's own bay.
func (r Role) IsFrontDesk() bool {
	return r == RoleSuperAdmin || r == RoleManager || r == RoleReceptionist
}

// Staff is a shop employee. AuthSubject is the `sub` claim issued for them.
type Staff struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ShopID      uint           `gorm:"not null;index" json:"shop_id"`
	AuthSubject string         `gorm:"uniqueIndex;not null" json:"auth_subject"`
	FirstName   string         `gorm:"not null" json:"first_name"`
	LastName    string         `gorm:"not null" json:"last_name"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone"`
	Role        Role           `gorm:"not null" json:"role"`
	Specialty   string         `json:"specialty,omitempty"`
	IsActive    bool           `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Staff model
func (Staff) TableName() string {
	return "staff"
}

// FullName joins first and last name
func (s Staff) FullName() string {
	return s.FirstName + " " + s.LastName
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// Customer is a vehicle owner registered with a shop. Phone is stored in
// E.164 and is unique within the shop; it doubles as the login name.
type Customer struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ShopID          uint           `gorm:"not null;uniqueIndex:idx_customers_shop_phone" json:"shop_id"`
	Phone           string         `gorm:"not null;size:20;uniqueIndex:idx_customers_shop_phone" json:"phone"`
	Email           string         `json:"email"`
	PasswordHash    string         `gorm:"not null" json:"-"`
	FirstName       string         `gorm:"not null" json:"first_name"`
	LastName        string         `gorm:"not null" json:"last_name"`
	GDPRConsent     bool           `gorm:"not null;default:false" json:"gdpr_consent"`
	GDPRConsentDate *time.Time     `json:"gdpr_consent_date"`
	IsActive        bool           `gorm:"not null" json:"is_active"`
	Cars            []Car          `gorm:"foreignKey:OwnerID" json:"cars,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Customer model
func (Customer) TableName() string {
	return "customers"
}

// FullName joins first and last name
func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

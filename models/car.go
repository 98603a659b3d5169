package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DefaultServiceIntervalKm applies when a car is registered without one
const DefaultServiceIntervalKm = 10000

// Car is a vehicle. It has exactly one current owner; ownership changes are
// recorded in CarOwnershipHistory.
type Car struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	ShopID            uint           `gorm:"not null;uniqueIndex:idx_cars_shop_plate" json:"shop_id"`
	OwnerID           uint           `gorm:"not null;index" json:"owner_id"`
	Owner             *Customer      `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Make              string         `gorm:"not null" json:"make"`
	Model             string         `gorm:"not null" json:"model"`
	Year              int            `json:"year,omitempty"`
	VIN               string         `gorm:"size:17" json:"vin,omitempty"`
	LicensePlate      string         `gorm:"not null;size:20;uniqueIndex:idx_cars_shop_plate" json:"license_plate"`
	Color             string         `json:"color,omitempty"`
	CurrentMileage    int            `gorm:"not null;default:0" json:"current_mileage"`
	ServiceIntervalKm int            `gorm:"not null" json:"service_interval_km"`
	Notes             string         `gorm:"type:text" json:"notes,omitempty"`
	IsActive          bool           `gorm:"not null" json:"is_active"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Car model
func (Car) TableName() string {
	return "cars"
}

// Label is the short human description used in messages and documents
func (c Car) Label() string {
	return fmt.Sprintf("%s %s (%s)", c.Make, c.Model, c.LicensePlate)
}

// CarOwnershipHistory is an append-only record of owner changes
type CarOwnershipHistory struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	ShopID               uint      `gorm:"not null;index" json:"shop_id"`
	CarID                uint      `gorm:"not null;index" json:"car_id"`
	PreviousOwnerID      *uint     `json:"previous_owner_id"`
	NewOwnerID           uint      `gorm:"not null" json:"new_owner_id"`
	TransferredByStaffID *uint     `json:"transferred_by_staff_id"`
	Notes                string    `gorm:"type:text" json:"notes,omitempty"`
	TransferredAt        time.Time `gorm:"not null" json:"transferred_at"`
}

// TableName specifies the table name for the CarOwnershipHistory model
func (CarOwnershipHistory) TableName() string {
	return "car_ownership_history"
}

// CarPhoto is an image of a car kept in the object store
type CarPhoto struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	ShopID           uint           `gorm:"not null;index" json:"shop_id"`
	CarID            uint           `gorm:"not null;index" json:"car_id"`
	StorageKey       string         `gorm:"not null" json:"storage_key"`
	URL              string         `gorm:"-" json:"url,omitempty"`
	UploadedByStaff  *uint          `json:"uploaded_by_staff_id,omitempty"`
	OriginalFilename string         `json:"original_filename"`
	CreatedAt        time.Time      `json:"created_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the CarPhoto model
func (CarPhoto) TableName() string {
	return "car_photos"
}

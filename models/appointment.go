package models

import (
	"time"

	"gorm.io/gorm"
)

// AppointmentStatus is a step in the booking lifecycle
type AppointmentStatus string

const (
	AppointmentRequested AppointmentStatus = "requested"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentRejected  AppointmentStatus = "rejected"
	AppointmentArrived   AppointmentStatus = "arrived"
)

// Appointment is a customer's service request. CarID is nil when the
// vehicle is not registered yet; VehicleDescription then says what it is.
type Appointment struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	ShopID             uint              `gorm:"not null;index" json:"shop_id"`
	CustomerID         uint              `gorm:"not null;index" json:"customer_id"`
	Customer           *Customer         `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	CarID              *uint             `gorm:"index" json:"car_id"`
	Car                *Car              `gorm:"foreignKey:CarID" json:"car,omitempty"`
	VehicleDescription string            `gorm:"type:text" json:"vehicle_description,omitempty"`
	IssueDescription   string            `gorm:"type:text;not null" json:"issue_description"`
	PreferredDate      time.Time         `gorm:"not null" json:"preferred_date"`
	PreferredTime      string            `json:"preferred_time,omitempty"`
	Status             AppointmentStatus `gorm:"not null;default:'requested';index" json:"status"`
	ConfirmedDate      *time.Time        `json:"confirmed_date"`
	ConfirmedByStaffID *uint             `json:"confirmed_by_staff_id,omitempty"`
	RejectionReason    string            `gorm:"type:text" json:"rejection_reason,omitempty"`
	WorkOrderID        *uint             `json:"work_order_id,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	DeletedAt          gorm.DeletedAt    `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Appointment model
func (Appointment) TableName() string {
	return "appointments"
}

package models

import "time"

// MessageType names the notification template
type MessageType string

const (
	MessageWelcome              MessageType = "welcome"
	MessageAppointmentConfirmed MessageType = "appointment_confirmed"
	MessageCarReady             MessageType = "car_ready"
	MessageServiceReminder      MessageType = "service_reminder"
)

// SMS log statuses
const (
	SMSStatusQueued  = "queued"
	SMSStatusFailed  = "failed"
	SMSStatusSkipped = "skipped"
)

// SMSLog is an append-only record of every outbound message request.
type SMSLog struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	ShopID         uint        `gorm:"not null;index" json:"shop_id"`
	CustomerID     *uint       `gorm:"index" json:"customer_id,omitempty"`
	RecipientPhone string      `gorm:"not null;size:20;index" json:"recipient_phone"`
	MessageType    MessageType `gorm:"not null;size:50;index" json:"message_type"`
	MessageBody    string      `gorm:"type:text;not null" json:"message_body"`
	Status         string      `gorm:"not null;size:20;index" json:"status"`
	ErrorMessage   string      `gorm:"type:text" json:"error_message,omitempty"`
	SentAt         time.Time   `gorm:"not null;index" json:"sent_at"`
}

// TableName specifies the table name for the SMSLog model
func (SMSLog) TableName() string {
	return "sms_logs"
}

// ServiceReminder marks that a car was flagged on a given day.
// (CarID, ReminderDate) is unique: at most one reminder per car per day.
type ServiceReminder struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ShopID            uint      `gorm:"not null;index" json:"shop_id"`
	CarID             uint      `gorm:"not null;uniqueIndex:idx_reminders_car_day" json:"car_id"`
	CustomerID        uint      `gorm:"not null;index" json:"customer_id"`
	ReminderDate      string    `gorm:"not null;size:10;uniqueIndex:idx_reminders_car_day" json:"reminder_date"`
	PredictedDate     time.Time `gorm:"not null" json:"predicted_date"`
	ServiceDueMileage int       `gorm:"not null" json:"service_due_mileage"`
	AvgKmPerDay       float64   `gorm:"not null" json:"avg_km_per_day"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName specifies the table name for the ServiceReminder model
func (ServiceReminder) TableName() string {
	return "service_reminders"
}

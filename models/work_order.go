package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WorkOrderStatus is a step in the repair lifecycle
type WorkOrderStatus string

const (
	WorkOrderCreated    WorkOrderStatus = "created"
	WorkOrderDiagnosing WorkOrderStatus = "diagnosing"
	WorkOrderInProgress WorkOrderStatus = "in_progress"
	WorkOrderDone       WorkOrderStatus = "done"
)

// WorkOrder tracks one repair job for one car
type WorkOrder struct {
	ID                 uint                `gorm:"primaryKey" json:"id"`
	ShopID             uint                `gorm:"not null;index" json:"shop_id"`
	CustomerID         uint                `gorm:"not null;index" json:"customer_id"`
	Customer           *Customer           `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	CarID              uint                `gorm:"not null;index" json:"car_id"`
	Car                *Car                `gorm:"foreignKey:CarID" json:"car,omitempty"`
	AssignedMechanicID *uint               `gorm:"index" json:"assigned_mechanic_id"`
	AssignedMechanic   *Staff              `gorm:"foreignKey:AssignedMechanicID" json:"assigned_mechanic,omitempty"`
	AppointmentID      *uint               `gorm:"uniqueIndex" json:"appointment_id,omitempty"`
	Status             WorkOrderStatus     `gorm:"not null;default:'created';index" json:"status"`
	ReportedIssues     string              `gorm:"type:text;not null" json:"reported_issues"`
	MileageAtIntake    int                 `gorm:"not null;default:0" json:"mileage_at_intake"`
	DiagnosticNotes    string              `gorm:"type:text" json:"diagnostic_notes,omitempty"`
	MechanicNotes      string              `gorm:"type:text" json:"mechanic_notes,omitempty"`
	StartedAt          *time.Time          `json:"started_at"`
	CompletedAt        *time.Time          `json:"completed_at"`
	ReadyNotifiedAt    *time.Time          `json:"-"`
	LineItems          []WorkOrderLineItem `gorm:"foreignKey:WorkOrderID" json:"line_items,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	DeletedAt          gorm.DeletedAt      `gorm:"index" json:"-"`
}

// TableName specifies the table name for the WorkOrder model
func (WorkOrder) TableName() string {
	return "work_orders"
}

// LineItemType distinguishes parts from labor
type LineItemType string

const (
	LineItemPart  LineItemType = "part"
	LineItemLabor LineItemType = "labor"
)

// Valid reports whether the type is part or labor
func (t LineItemType) Valid() bool {
	return t == LineItemPart || t == LineItemLabor
}

// WorkOrderLineItem is a billable part or labor entry.
// TotalPrice is always Quantity x UnitPrice rounded to the shop precision.
type WorkOrderLineItem struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ShopID         uint            `gorm:"not null;index" json:"shop_id"`
	WorkOrderID    uint            `gorm:"not null;index" json:"work_order_id"`
	ItemType       LineItemType    `gorm:"not null;size:20" json:"item_type"`
	Description    string          `gorm:"not null" json:"description"`
	Quantity       decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"unit_price"`
	TotalPrice     decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"total_price"`
	Notes          string          `gorm:"type:text" json:"notes,omitempty"`
	AddedByStaffID *uint           `json:"added_by_staff_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TableName specifies the table name for the WorkOrderLineItem model
func (WorkOrderLineItem) TableName() string {
	return "work_order_line_items"
}

// AssignmentHistory is an append-only record of mechanic reassignments
type AssignmentHistory struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	ShopID              uint      `gorm:"not null;index" json:"shop_id"`
	WorkOrderID         uint      `gorm:"not null;index" json:"work_order_id"`
	PreviousMechanicID  *uint     `json:"previous_mechanic_id"`
	NewMechanicID       uint      `gorm:"not null" json:"new_mechanic_id"`
	ReassignedByStaffID *uint     `json:"reassigned_by_staff_id"`
	Reason              string    `gorm:"type:text" json:"reason,omitempty"`
	ReassignedAt        time.Time `gorm:"not null" json:"reassigned_at"`
}

// TableName specifies the table name for the AssignmentHistory model
func (AssignmentHistory) TableName() string {
	return "work_order_assignment_history"
}

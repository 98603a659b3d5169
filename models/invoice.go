package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus is a step in the billing lifecycle
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceFinalized InvoiceStatus = "finalized"
	InvoicePaid      InvoiceStatus = "paid"
)

// Invoice bills a single Done work order. Number is unique within the shop
// and never reused.
type Invoice struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	ShopID             uint            `gorm:"not null;uniqueIndex:idx_invoices_shop_number" json:"shop_id"`
	Number             uint            `gorm:"not null;uniqueIndex:idx_invoices_shop_number" json:"number"`
	DisplayNumber      string          `gorm:"not null" json:"display_number"`
	WorkOrderID        uint            `gorm:"not null;uniqueIndex" json:"work_order_id"`
	WorkOrder          *WorkOrder      `gorm:"foreignKey:WorkOrderID" json:"work_order,omitempty"`
	CustomerID         uint            `gorm:"not null;index" json:"customer_id"`
	Status             InvoiceStatus   `gorm:"not null;default:'draft';index" json:"status"`
	Subtotal           decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"subtotal"`
	TaxRate            decimal.Decimal `gorm:"type:decimal(5,4);not null" json:"tax_rate"`
	TaxAmount          decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"tax_amount"`
	Total              decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"total"`
	Currency           string          `gorm:"size:3;not null" json:"currency"`
	Notes              string          `gorm:"type:text" json:"notes,omitempty"`
	PaymentMethod      string          `json:"payment_method,omitempty"`
	PaidAt             *time.Time      `json:"paid_at"`
	FinalizedAt        *time.Time      `json:"finalized_at"`
	FinalizedByStaffID *uint           `json:"finalized_by_staff_id,omitempty"`
	PDFKey             string          `json:"-"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	DeletedAt          gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Invoice model
func (Invoice) TableName() string {
	return "invoices"
}

// FormatInvoiceNumber renders a sequence value the way it is printed.
func FormatInvoiceNumber(year int, number uint) string {
	return fmt.Sprintf("INV-%d-%05d", year, number)
}

// InvoiceSequence holds the last invoice number handed out per shop.
type InvoiceSequence struct {
	ShopID     uint `gorm:"primaryKey;autoIncrement:false"`
	LastNumber uint `gorm:"not null;default:0"`
}

// TableName specifies the table name for the InvoiceSequence model
func (InvoiceSequence) TableName() string {
	return "invoice_sequences"
}

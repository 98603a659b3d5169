package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SubscriptionTier is the billing plan a shop is on
type SubscriptionTier string

const (
	TierBasic      SubscriptionTier = "basic"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

// Valid reports whether the tier is one of the known plans
func (t SubscriptionTier) Valid() bool {
	switch t {
	case TierBasic, TierPro, TierEnterprise:
		return true
	}
	return false
}

// Shop is the tenant. Every other record carries a ShopID pointing here.
type Shop struct {
	ID                             uint             `gorm:"primaryKey" json:"id"`
	Name                           string           `gorm:"not null" json:"name"`
	Address                        string           `json:"address"`
	Phone                          string           `json:"phone"`
	Email                          string           `json:"email"`
	Website                        string           `json:"website"`
	IsActive                       bool             `gorm:"not null" json:"is_active"`
	SubscriptionTier               SubscriptionTier `gorm:"not null;default:'basic'" json:"subscription_tier"`
	SMSEnabled                     bool             `gorm:"not null;default:false" json:"sms_enabled"`
	MechanicsSeePricing            bool             `gorm:"not null" json:"mechanics_see_pricing"`
	MechanicsCanAddLineItems       bool             `gorm:"not null" json:"mechanics_can_add_line_items"`
	BlockTransferWithOpenWorkOrder bool             `gorm:"not null;default:false" json:"block_transfer_with_open_work_order"`
	TaxRate                        decimal.Decimal  `gorm:"type:decimal(5,4);not null" json:"tax_rate"`
	Currency                       string           `gorm:"size:3;not null;default:'BGN'" json:"currency"`
	CurrencyPrecision              int32            `gorm:"not null" json:"currency_precision"`
	SMSUsageCount                  int              `gorm:"not null;default:0" json:"sms_usage_count"`
	CreatedAt                      time.Time        `json:"created_at"`
	UpdatedAt                      time.Time        `json:"updated_at"`
	DeletedAt                      gorm.DeletedAt   `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Shop model
func (Shop) TableName() string {
	return "shops"
}

// RoundMoney rounds an amount to the shop's currency precision.
func (s Shop) RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(s.CurrencyPrecision)
}

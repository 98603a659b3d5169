package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter int64

// NewTestDB opens a private in-memory SQLite database with every model
// migrated. A single connection keeps the database alive and serializes
// writers the way row locks would on Postgres.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_busy_timeout=5000", atomic.AddInt64(&dbCounter, 1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...))

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// ShopOption tweaks a seeded shop
type ShopOption func(*models.Shop)

// WithSMS enables messaging for the shop
func WithSMS() ShopOption {
	return func(s *models.Shop) { s.SMSEnabled = true }
}

// WithTaxRate overrides the default 20% rate
func WithTaxRate(rate string) ShopOption {
	return func(s *models.Shop) { s.TaxRate = decimal.RequireFromString(rate) }
}

// WithMechanicLineItems lets mechanics add line items
func WithMechanicLineItems() ShopOption {
	return func(s *models.Shop) { s.MechanicsCanAddLineItems = true }
}

// Inactive suspends the shop
func Inactive() ShopOption {
	return func(s *models.Shop) { s.IsActive = false }
}

// CreateShop seeds an active shop with a 20% tax rate
func CreateShop(t *testing.T, db *gorm.DB, name string, opts ...ShopOption) *models.Shop {
	t.Helper()
	shop := &models.Shop{
		Name:              name,
		Phone:             "+35928001122",
		IsActive:          true,
		SubscriptionTier:  models.TierBasic,
		TaxRate:           decimal.RequireFromString("0.20"),
		Currency:          "BGN",
		CurrencyPrecision: 2,
	}
	for _, opt := range opts {
		opt(shop)
	}
	require.NoError(t, db.Create(shop).Error)
	return shop
}

// CreateStaff seeds an active employee
func CreateStaff(t *testing.T, db *gorm.DB, shopID uint, role models.Role, subject string) *models.Staff {
	t.Helper()
	staff := &models.Staff{
		ShopID:      shopID,
		AuthSubject: subject,
		FirstName:   string(role),
		LastName:    "Tester",
		Email:       subject + "@example.com",
		Role:        role,
		IsActive:    true,
	}
	require.NoError(t, db.Create(staff).Error)
	return staff
}

// CreateCustomer seeds an active customer. phone must already be E.164.
func CreateCustomer(t *testing.T, db *gorm.DB, shopID uint, phone string) *models.Customer {
	t.Helper()
	customer := &models.Customer{
		ShopID:    shopID,
		Phone:     phone,
		FirstName: "Ivan",
		LastName:  "Petrov",
		IsActive:  true,
	}
	require.NoError(t, db.Create(customer).Error)
	return customer
}

// CreateCar seeds an active car with the default service interval
func CreateCar(t *testing.T, db *gorm.DB, shopID, ownerID uint, plate string, mileage int) *models.Car {
	t.Helper()
	car := &models.Car{
		ShopID:            shopID,
		OwnerID:           ownerID,
		Make:              "Skoda",
		Model:             "Octavia",
		Year:              2018,
		LicensePlate:      plate,
		CurrentMileage:    mileage,
		ServiceIntervalKm: models.DefaultServiceIntervalKm,
		IsActive:          true,
	}
	require.NoError(t, db.Create(car).Error)
	return car
}

// CreateWorkOrder seeds a work order in the given status
func CreateWorkOrder(t *testing.T, db *gorm.DB, car *models.Car, status models.WorkOrderStatus, mileage int, createdAt time.Time) *models.WorkOrder {
	t.Helper()
	wo := &models.WorkOrder{
		ShopID:          car.ShopID,
		CustomerID:      car.OwnerID,
		CarID:           car.ID,
		Status:          status,
		ReportedIssues:  "Routine service",
		MileageAtIntake: mileage,
		CreatedAt:       createdAt,
	}
	if status == models.WorkOrderDone {
		wo.CompletedAt = &createdAt
	}
	require.NoError(t, db.Create(wo).Error)
	return wo
}

// AddLineItem seeds a line item with total = quantity x unit price
func AddLineItem(t *testing.T, db *gorm.DB, wo *models.WorkOrder, description, quantity, unitPrice string) *models.WorkOrderLineItem {
	t.Helper()
	qty := decimal.RequireFromString(quantity)
	price := decimal.RequireFromString(unitPrice)
	item := &models.WorkOrderLineItem{
		ShopID:      wo.ShopID,
		WorkOrderID: wo.ID,
		ItemType:    models.LineItemPart,
		Description: description,
		Quantity:    qty,
		UnitPrice:   price,
		TotalPrice:  qty.Mul(price).Round(2),
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

// Day returns midnight UTC of the given date
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

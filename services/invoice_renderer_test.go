package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFPDFRendererProducesPDF(t *testing.T) {
	paid := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	doc := &InvoiceDocument{
		Number:    "INV-2026-00042",
		Status:    models.InvoicePaid,
		IssuedAt:  paid.Add(-time.Hour),
		PaidAt:    &paid,
		Currency:  "BGN",
		Precision: 2,
		Shop:      DocumentParty{Name: "Автосервиз Иванов", Address: "ул. Витоша 1, София", Phone: "+35928001122"},
		Customer:  DocumentParty{Name: "Мария Иванова", Phone: "+359888123456"},
		Vehicle:   "Skoda Octavia (CA1234AB)",
		VIN:       "TMBJJ7NE8J0123456",
		Mileage:   50000,
		Lines: []DocumentLine{
			{Type: models.LineItemPart, Description: "Brake pads", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("25"), Total: decimal.RequireFromString("50")},
			{Type: models.LineItemLabor, Description: strings.Repeat("Very long labor description ", 5), Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("100"), Total: decimal.RequireFromString("100")},
		},
		Subtotal:  decimal.RequireFromString("150"),
		TaxRate:   decimal.RequireFromString("0.20"),
		TaxAmount: decimal.RequireFromString("30"),
		Total:     decimal.RequireFromString("180"),
		Notes:     "Thank you for your business",
	}

	out, err := FPDFRenderer{}.Render(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.True(t, bytes.Contains(out[len(out)-32:], []byte("%%EOF")))
}

func TestInvoiceDocumentMoney(t *testing.T) {
	doc := &InvoiceDocument{Currency: "EUR", Precision: 2}
	assert.Equal(t, "180.00 EUR", doc.Money(decimal.NewFromInt(180)))
	doc.Precision = 0
	assert.Equal(t, "1235 EUR", doc.Money(decimal.RequireFromString("1234.5")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "жълт…", truncate("жълтозелен", 5))
}

func TestBuildDocument(t *testing.T) {
	db := testutil.NewTestDB(t)
	shop := testutil.CreateShop(t, db, "Sofia Motors")
	owner := testutil.CreateCustomer(t, db, shop.ID, "+359888123456")
	car := testutil.CreateCar(t, db, shop.ID, owner.ID, "CA1234AB", 50000)
	order := testutil.CreateWorkOrder(t, db, car, models.WorkOrderDone, 50000, time.Now())
	testutil.AddLineItem(t, db, order, "Brake pads", "2", "25")
	service := NewInvoiceService(db, nil, nil, nil)

	invoice, err := service.CreateFromWorkOrder(context.Background(), shop.ID, order.ID, "Paid in cash")
	require.NoError(t, err)

	doc, _, err := service.BuildDocument(context.Background(), shop.ID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.DisplayNumber, doc.Number)
	assert.Equal(t, "Ivan Petrov", doc.Customer.Name)
	assert.Equal(t, car.Label(), doc.Vehicle)
	assert.Equal(t, 50000, doc.Mileage)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "Brake pads", doc.Lines[0].Description)
	assert.Equal(t, "Paid in cash", doc.Notes)

	_, _, err = service.BuildDocument(context.Background(), shop.ID+1, invoice.ID)
	assert.True(t, IsNotFound(err))
}

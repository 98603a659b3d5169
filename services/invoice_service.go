package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/utils"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentMethods accepted by MarkPaid
var PaymentMethods = []string{"cash", "card", "bank_transfer", "online"}

// InvoiceService derives invoices from finished work orders and moves them
// through Draft, Finalized and Paid.
type InvoiceService struct {
	db       *gorm.DB
	store    ObjectStore
	renderer InvoiceRenderer
	events   Broadcaster
}

// NewInvoiceService creates an invoice service. store may be nil, in which
// case rendered PDFs are not archived.
func NewInvoiceService(db *gorm.DB, store ObjectStore, renderer InvoiceRenderer, events Broadcaster) *InvoiceService {
	if renderer == nil {
		renderer = FPDFRenderer{}
	}
	if events == nil {
		events = noopBroadcaster{}
	}
	return &InvoiceService{db: db, store: store, renderer: renderer, events: events}
}

// InvoiceFilter narrows an invoice listing
type InvoiceFilter struct {
	Status     models.InvoiceStatus
	CustomerID *uint
	// IssuedOnly hides drafts
	IssuedOnly bool
	Page       utils.Page
}

// nextInvoiceNumber increments the shop's counter and returns the new value.
// It must run inside the transaction that inserts the invoice: the UPDATE
// holds the counter row until commit, so concurrent callers queue behind it.
func nextInvoiceNumber(tx *gorm.DB, shopID uint) (uint, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.InvoiceSequence{ShopID: shopID}).Error; err != nil {
		return 0, fmt.Errorf("failed to initialise invoice sequence: %w", err)
	}

	res := tx.Model(&models.InvoiceSequence{}).
		Where("shop_id = ?", shopID).
		UpdateColumn("last_number", gorm.Expr("last_number + ?", 1))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to advance invoice sequence: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return 0, fmt.Errorf("invoice sequence for shop %d not found", shopID)
	}

	var seq models.InvoiceSequence
	if err := tx.Where("shop_id = ?", shopID).First(&seq).Error; err != nil {
		return 0, fmt.Errorf("failed to read invoice sequence: %w", err)
	}
	return seq.LastNumber, nil
}

func lineItemSubtotal(tx *gorm.DB, shop *models.Shop, workOrderID uint) (decimal.Decimal, error) {
	var items []models.WorkOrderLineItem
	if err := tx.Where("work_order_id = ?", workOrderID).Find(&items).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to load line items: %w", err)
	}
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.TotalPrice)
	}
	return shop.RoundMoney(subtotal), nil
}

// retotalDraftInvoice brings a Draft invoice back in line with its work
// order's line items. The tax rate captured at creation is kept, and any
// archived PDF is dropped so the next render reflects the new lines.
func retotalDraftInvoice(tx *gorm.DB, shop *models.Shop, workOrderID uint) error {
	var invoice models.Invoice
	err := tx.Where("work_order_id = ? AND status = ?", workOrderID, models.InvoiceDraft).First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load draft invoice: %w", err)
	}

	subtotal, err := lineItemSubtotal(tx, shop, workOrderID)
	if err != nil {
		return err
	}
	tax := shop.RoundMoney(subtotal.Mul(invoice.TaxRate))
	err = tx.Model(&invoice).Updates(map[string]interface{}{
		"subtotal":   subtotal,
		"tax_amount": tax,
		"total":      subtotal.Add(tax),
		"pdf_key":    "",
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update invoice %s totals: %w", invoice.DisplayNumber, err)
	}
	return nil
}

// CreateFromWorkOrder bills a Done work order. Subtotal is the sum of the
// line item totals, tax uses the shop's rate, the number comes from the
// shop's sequence.
func (s *InvoiceService) CreateFromWorkOrder(ctx context.Context, shopID, workOrderID uint, notes string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.WorkOrder
		if err := findInShop(forUpdate(tx), &order, shopID, workOrderID, "work order"); err != nil {
			return err
		}
		if order.Status != models.WorkOrderDone {
			return invalid("work_order_id", "work order %d is %s; only done work orders can be invoiced", order.ID, order.Status)
		}

		var existing models.Invoice
		err := tx.Where("work_order_id = ?", order.ID).First(&existing).Error
		if err == nil {
			return conflict("work order %d already has invoice %s", order.ID, existing.DisplayNumber)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check existing invoice: %w", err)
		}

		shop, err := loadShop(tx, shopID)
		if err != nil {
			return err
		}

		subtotal, err := lineItemSubtotal(tx, shop, order.ID)
		if err != nil {
			return err
		}
		tax := shop.RoundMoney(subtotal.Mul(shop.TaxRate))

		number, err := nextInvoiceNumber(tx, shopID)
		if err != nil {
			return err
		}

		invoice = models.Invoice{
			ShopID:        shopID,
			Number:        number,
			DisplayNumber: models.FormatInvoiceNumber(time.Now().UTC().Year(), number),
			WorkOrderID:   order.ID,
			CustomerID:    order.CustomerID,
			Status:        models.InvoiceDraft,
			Subtotal:      subtotal,
			TaxRate:       shop.TaxRate,
			TaxAmount:     tax,
			Total:         subtotal.Add(tax),
			Currency:      shop.Currency,
			Notes:         strings.TrimSpace(notes),
		}
		if err := tx.Create(&invoice).Error; err != nil {
			if isUniqueViolation(err) {
				return conflict("work order %d already has an invoice", order.ID)
			}
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"shop_id":        shopID,
		"work_order_id":  workOrderID,
		"invoice_number": invoice.DisplayNumber,
		"total":          invoice.Total.String(),
	}).Info("Invoice created")
	s.events.Broadcast(shopID, EventInvoiceCreated, eventPayload{
		"invoice_id":     invoice.ID,
		"work_order_id":  workOrderID,
		"display_number": invoice.DisplayNumber,
	})
	return &invoice, nil
}

// Get returns an invoice with its work order, car and line items
func (s *InvoiceService) Get(ctx context.Context, shopID, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	q := s.db.WithContext(ctx).
		Preload("WorkOrder").
		Preload("WorkOrder.Car").
		Preload("WorkOrder.Customer").
		Preload("WorkOrder.LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
	if err := findInShop(q, &invoice, shopID, id, "invoice"); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// List returns a page of invoices, newest number first
func (s *InvoiceService) List(ctx context.Context, shopID uint, f InvoiceFilter) ([]models.Invoice, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("shop_id = ?", shopID)
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, 0, invalid("status", "unknown status %q", f.Status)
		}
		q = q.Where("status = ?", f.Status)
	}
	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if f.IssuedOnly {
		q = q.Where("status <> ?", models.InvoiceDraft)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	page := f.Page
	if page.Size == 0 {
		page = utils.ParsePage("", "")
	}
	var invoices []models.Invoice
	if err := q.Order("number DESC").Offset(page.Offset()).Limit(page.Size).Find(&invoices).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, total, nil
}

func (s *InvoiceService) move(ctx context.Context, shopID, id uint, to models.InvoiceStatus, apply func(inv *models.Invoice, updates map[string]interface{}) error) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findInShop(forUpdate(tx), &invoice, shopID, id, "invoice"); err != nil {
			return err
		}
		if !invoice.Status.CanTransitionTo(to) {
			return invalid("status", "invoice %s is %s and cannot become %s", invoice.DisplayNumber, invoice.Status, to)
		}
		// the archived PDF shows the old status
		updates := map[string]interface{}{"status": to, "pdf_key": ""}
		if err := apply(&invoice, updates); err != nil {
			return err
		}
		if err := tx.Model(&invoice).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"shop_id":        shopID,
		"invoice_number": invoice.DisplayNumber,
		"status":         to,
	}).Info("Invoice status changed")
	return s.Get(ctx, shopID, id)
}

// Finalize locks a Draft invoice and its work order's line items
func (s *InvoiceService) Finalize(ctx context.Context, shopID, id uint, byStaffID *uint) (*models.Invoice, error) {
	return s.move(ctx, shopID, id, models.InvoiceFinalized, func(_ *models.Invoice, updates map[string]interface{}) error {
		updates["finalized_at"] = time.Now().UTC()
		updates["finalized_by_staff_id"] = byStaffID
		return nil
	})
}

// MarkPaid records payment of a Finalized invoice
func (s *InvoiceService) MarkPaid(ctx context.Context, shopID, id uint, method string) (*models.Invoice, error) {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		method = "cash"
	}
	known := false
	for _, m := range PaymentMethods {
		if m == method {
			known = true
			break
		}
	}
	if !known {
		return nil, invalid("payment_method", "must be one of %s", strings.Join(PaymentMethods, ", "))
	}

	return s.move(ctx, shopID, id, models.InvoicePaid, func(_ *models.Invoice, updates map[string]interface{}) error {
		updates["paid_at"] = time.Now().UTC()
		updates["payment_method"] = method
		return nil
	})
}

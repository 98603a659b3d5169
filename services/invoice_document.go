package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// DocumentParty is a name-and-contact block printed on an invoice
type DocumentParty struct {
	Name    string
	Address string
	Phone   string
	Email   string
}

// DocumentLine is one printed line item
type DocumentLine struct {
	Type        models.LineItemType
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

// InvoiceDocument is everything a renderer needs to print an invoice.
type InvoiceDocument struct {
	Number         string
	Status         models.InvoiceStatus
	IssuedAt       time.Time
	PaidAt         *time.Time
	Currency       string
	Precision      int32
	Shop           DocumentParty
	Customer       DocumentParty
	Vehicle        string
	VIN            string
	Mileage        int
	WorkOrderID    uint
	ReportedIssues string
	Lines          []DocumentLine
	Subtotal       decimal.Decimal
	TaxRate        decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
	Notes          string
}

// Money formats an amount with the document's precision
func (d *InvoiceDocument) Money(amount decimal.Decimal) string {
	return fmt.Sprintf("%s %s", amount.StringFixed(d.Precision), d.Currency)
}

// BuildDocument assembles the printable view of an invoice
func (s *InvoiceService) BuildDocument(ctx context.Context, shopID, id uint) (*InvoiceDocument, *models.Invoice, error) {
	invoice, err := s.Get(ctx, shopID, id)
	if err != nil {
		return nil, nil, err
	}
	shop, err := loadShop(s.db.WithContext(ctx), shopID)
	if err != nil {
		return nil, nil, err
	}

	doc := &InvoiceDocument{
		Number:    invoice.DisplayNumber,
		Status:    invoice.Status,
		IssuedAt:  invoice.CreatedAt,
		PaidAt:    invoice.PaidAt,
		Currency:  invoice.Currency,
		Precision: shop.CurrencyPrecision,
		Shop: DocumentParty{
			Name:    shop.Name,
			Address: shop.Address,
			Phone:   shop.Phone,
			Email:   shop.Email,
		},
		Subtotal:  invoice.Subtotal,
		TaxRate:   invoice.TaxRate,
		TaxAmount: invoice.TaxAmount,
		Total:     invoice.Total,
		Notes:     invoice.Notes,
	}

	if wo := invoice.WorkOrder; wo != nil {
		doc.WorkOrderID = wo.ID
		doc.ReportedIssues = wo.ReportedIssues
		doc.Mileage = wo.MileageAtIntake
		if wo.Customer != nil {
			doc.Customer = DocumentParty{
				Name:  wo.Customer.FullName(),
				Phone: wo.Customer.Phone,
				Email: wo.Customer.Email,
			}
		}
		if wo.Car != nil {
			doc.Vehicle = wo.Car.Label()
			doc.VIN = wo.Car.VIN
		}
		for _, item := range wo.LineItems {
			doc.Lines = append(doc.Lines, DocumentLine{
				Type:        item.ItemType,
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Total:       item.TotalPrice,
			})
		}
	}
	return doc, invoice, nil
}

// RenderPDF produces the invoice PDF. The rendering is archived in the object
// store until the invoice changes status or lines; archive failures are
// logged and do not fail the request.
func (s *InvoiceService) RenderPDF(ctx context.Context, shopID, id uint) ([]byte, *models.Invoice, error) {
	doc, invoice, err := s.BuildDocument(ctx, shopID, id)
	if err != nil {
		return nil, nil, err
	}

	pdf, err := s.renderer.Render(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render invoice %s: %w", invoice.DisplayNumber, err)
	}

	if s.store != nil && invoice.PDFKey == "" {
		key := objectKey(fmt.Sprintf("shops/%d/invoices", shopID), invoice.DisplayNumber+".pdf")
		logger := log.WithFields(log.Fields{"shop_id": shopID, "invoice_number": invoice.DisplayNumber})
		if err := s.store.PutObject(ctx, key, "application/pdf", pdf); err != nil {
			logger.WithError(err).Warn("Failed to archive invoice PDF")
		} else if err := s.db.WithContext(ctx).Model(invoice).Update("pdf_key", key).Error; err != nil {
			logger.WithError(err).Warn("Failed to record invoice PDF key")
		} else {
			invoice.PDFKey = key
		}
	}
	return pdf, invoice, nil
}

// PDFURL returns a link to the archived PDF, rendering it first if needed
func (s *InvoiceService) PDFURL(ctx context.Context, shopID, id uint) (string, error) {
	if s.store == nil {
		return "", fmt.Errorf("no object store configured")
	}
	_, invoice, err := s.RenderPDF(ctx, shopID, id)
	if err != nil {
		return "", err
	}
	if invoice.PDFKey == "" {
		return "", fmt.Errorf("invoice %s could not be archived", invoice.DisplayNumber)
	}
	return s.store.GetPresignedURL(ctx, invoice.PDFKey)
}

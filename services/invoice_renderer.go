package services

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/go-pdf/fpdf"
)

// InvoiceRenderer turns an InvoiceDocument into a printable file
type InvoiceRenderer interface {
	Render(doc *InvoiceDocument) ([]byte, error)
}

var (
	invoiceRenderer   InvoiceRenderer = FPDFRenderer{}
	invoiceRendererMu sync.RWMutex
)

// GetInvoiceRenderer returns the renderer used by request handlers
func GetInvoiceRenderer() InvoiceRenderer {
	invoiceRendererMu.RLock()
	defer invoiceRendererMu.RUnlock()
	return invoiceRenderer
}

// SetInvoiceRenderer replaces the global renderer (used in tests)
func SetInvoiceRenderer(r InvoiceRenderer) {
	invoiceRendererMu.Lock()
	defer invoiceRendererMu.Unlock()
	invoiceRenderer = r
}

// FPDFRenderer lays out an A4 invoice with the core PDF fonts.
type FPDFRenderer struct{}

var lineColumns = []struct {
	title string
	width float64
	align string
}{
	{"Description", 80, "L"},
	{"Type", 20, "L"},
	{"Qty", 20, "R"},
	{"Unit price", 35, "R"},
	{"Total", 35, "R"},
}

// Render implements InvoiceRenderer
func (FPDFRenderer) Render(doc *InvoiceDocument) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(doc.Number, true)
	pdf.SetCreator(doc.Shop.Name, true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(110, 8, tr(doc.Shop.Name), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 8, "INVOICE", "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, line := range partyLines(DocumentParty{Address: doc.Shop.Address, Phone: doc.Shop.Phone, Email: doc.Shop.Email}) {
		pdf.CellFormat(110, 5, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(110, 6, "Bill to", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr(doc.Number), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	meta := []string{
		"Issued " + doc.IssuedAt.Format("2006-01-02"),
		"Status: " + string(doc.Status),
	}
	if doc.PaidAt != nil {
		meta = append(meta, "Paid "+doc.PaidAt.Format("2006-01-02"))
	}
	customer := partyLines(doc.Customer)
	for i := 0; i < len(customer) || i < len(meta); i++ {
		left, right := "", ""
		if i < len(customer) {
			left = customer[i]
		}
		if i < len(meta) {
			right = meta[i]
		}
		pdf.CellFormat(110, 5, tr(left), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, tr(right), "", 1, "R", false, 0, "")
	}
	pdf.Ln(3)

	if doc.Vehicle != "" {
		vehicle := doc.Vehicle
		if doc.VIN != "" {
			vehicle += "  VIN " + doc.VIN
		}
		if doc.Mileage > 0 {
			vehicle += fmt.Sprintf("  %d km", doc.Mileage)
		}
		pdf.CellFormat(0, 5, tr(vehicle), "", 1, "L", false, 0, "")
	}
	if doc.ReportedIssues != "" {
		pdf.MultiCell(0, 5, tr("Work order #"+fmt.Sprint(doc.WorkOrderID)+": "+doc.ReportedIssues), "", "L", false)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range lineColumns {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, line := range doc.Lines {
		cells := []string{
			line.Description,
			string(line.Type),
			line.Quantity.String(),
			line.UnitPrice.StringFixed(doc.Precision),
			line.Total.StringFixed(doc.Precision),
		}
		for i, col := range lineColumns {
			pdf.CellFormat(col.width, 6, tr(truncate(cells[i], 48)), "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(3)

	totals := [][2]string{
		{"Subtotal", doc.Money(doc.Subtotal)},
		{"Tax " + doc.TaxRate.Shift(2).String() + "%", doc.Money(doc.TaxAmount)},
		{"Total", doc.Money(doc.Total)},
	}
	for i, row := range totals {
		if i == len(totals)-1 {
			pdf.SetFont("Helvetica", "B", 10)
		}
		pdf.CellFormat(155, 6, row[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, tr(row[1]), "", 1, "R", false, 0, "")
	}

	if doc.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, tr(doc.Notes), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func partyLines(p DocumentParty) []string {
	var lines []string
	for _, v := range []string{p.Name, p.Address, p.Phone, p.Email} {
		if strings.TrimSpace(v) != "" {
			lines = append(lines, v)
		}
	}
	return lines
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

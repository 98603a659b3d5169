package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/middleware"
	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/services"
)

// CreateInvoiceRequest bills a finished work order
type CreateInvoiceRequest struct {
	WorkOrderID uint   `json:"work_order_id" binding:"required"`
	Notes       string `json:"notes"`
}

// PayInvoiceRequest records the payment method
type PayInvoiceRequest struct {
	PaymentMethod string `json:"payment_method"`
}

func loadInvoiceFor(c *gin.Context, shopID, id uint) (*models.Invoice, bool) {
	invoice, err := invoiceService().Get(c.Request.Context(), shopID, id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if isCustomer(c) {
		customerID := middleware.GetCustomerID(c)
		// drafts are internal until finalized
		if customerID == nil || invoice.CustomerID != *customerID || invoice.Status == models.InvoiceDraft {
			respondError(c, &services.NotFoundError{Resource: "invoice", ID: id})
			return nil, false
		}
	}
	return invoice, true
}

// CreateInvoice handles POST /api/v1/invoices/from-work-order
func CreateInvoice(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	var req CreateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := invoiceService().CreateFromWorkOrder(c.Request.Context(), shopID, req.WorkOrderID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, invoice)
}

// ListInvoices handles GET /api/v1/invoices
func ListInvoices(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	filter := services.InvoiceFilter{
		Status: models.InvoiceStatus(c.Query("status")),
		Page:   pageFromQuery(c),
	}
	if filter.CustomerID, ok = queryUint(c, "customer_id"); !ok {
		return
	}
	if isCustomer(c) {
		filter.CustomerID = middleware.GetCustomerID(c)
		filter.IssuedOnly = true
	}

	invoices, total, err := invoiceService().List(c.Request.Context(), shopID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, invoices, total, filter.Page)
}

// GetInvoice handles GET /api/v1/invoices/:id
func GetInvoice(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	invoice, ok := loadInvoiceFor(c, shopID, id)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, invoice)
}

// FinalizeInvoice handles POST /api/v1/invoices/:id/finalize
func FinalizeInvoice(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	invoice, err := invoiceService().Finalize(c.Request.Context(), shopID, id, middleware.GetStaffID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, invoice)
}

// PayInvoice handles POST /api/v1/invoices/:id/pay
func PayInvoice(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req PayInvoiceRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	invoice, err := invoiceService().MarkPaid(c.Request.Context(), shopID, id, req.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, invoice)
}

// DownloadInvoicePDF handles GET /api/v1/invoices/:id/pdf
func DownloadInvoicePDF(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, ok := loadInvoiceFor(c, shopID, id); !ok {
		return
	}

	pdf, invoice, err := invoiceService().RenderPDF(c.Request.Context(), shopID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+invoice.DisplayNumber+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// GetInvoicePDFURL handles GET /api/v1/invoices/:id/pdf-url
func GetInvoicePDFURL(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, ok := loadInvoiceFor(c, shopID, id); !ok {
		return
	}

	url, err := invoiceService().PDFURL(c.Request.Context(), shopID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"url": url})
}

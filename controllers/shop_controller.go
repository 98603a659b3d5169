package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/middleware"
	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/services"
	"github.com/shopspring/decimal"
)

// CreateShopRequest represents the request body for opening a shop
type CreateShopRequest struct {
	Name             string                  `json:"name" binding:"required"`
	Address          string                  `json:"address"`
	Phone            string                  `json:"phone"`
	Email            string                  `json:"email"`
	Website          string                  `json:"website"`
	SubscriptionTier models.SubscriptionTier `json:"subscription_tier"`
	Currency         string                  `json:"currency"`
	TaxRate          *decimal.Decimal        `json:"tax_rate"`
}

// UpdateShopRequest represents the shop settings a manager may change
type UpdateShopRequest struct {
	Name                           *string                  `json:"name"`
	Address                        *string                  `json:"address"`
	Phone                          *string                  `json:"phone"`
	Email                          *string                  `json:"email"`
	Website                        *string                  `json:"website"`
	SMSEnabled                     *bool                    `json:"sms_enabled"`
	MechanicsSeePricing            *bool                    `json:"mechanics_see_pricing"`
	MechanicsCanAddLineItems       *bool                    `json:"mechanics_can_add_line_items"`
	BlockTransferWithOpenWorkOrder *bool                    `json:"block_transfer_with_open_work_order"`
	TaxRate                        *decimal.Decimal         `json:"tax_rate"`
	Currency                       *string                  `json:"currency"`
	CurrencyPrecision              *int32                   `json:"currency_precision"`
	SubscriptionTier               *models.SubscriptionTier `json:"subscription_tier"`
}

// SetActiveRequest toggles a shop or staff member
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// CreateStaffRequest represents the request body for adding an employee
type CreateStaffRequest struct {
	AuthSubject string      `json:"auth_subject" binding:"required"`
	FirstName   string      `json:"first_name" binding:"required"`
	LastName    string      `json:"last_name" binding:"required"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone"`
	Role        models.Role `json:"role" binding:"required"`
	Specialty   string      `json:"specialty"`
}

// CreateShop handles POST /api/v1/admin/shops (super admin)
func CreateShop(c *gin.Context) {
	var req CreateShopRequest
	if !bindJSON(c, &req) {
		return
	}

	shop, err := shopService().CreateShop(c.Request.Context(), services.CreateShopInput{
		Name:             req.Name,
		Address:          req.Address,
		Phone:            req.Phone,
		Email:            req.Email,
		Website:          req.Website,
		SubscriptionTier: req.SubscriptionTier,
		Currency:         req.Currency,
		TaxRate:          req.TaxRate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, shop)
}

// ListShops handles GET /api/v1/admin/shops (super admin)
func ListShops(c *gin.Context) {
	page := pageFromQuery(c)
	shops, total, err := shopService().ListShops(c.Request.Context(), page)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, shops, total, page)
}

// SetShopActive handles PATCH /api/v1/admin/shops/:id/active (super admin)
func SetShopActive(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req SetActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	shop, err := shopService().SetShopActive(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, shop)
}

// GetMyShop handles GET /api/v1/shop
func GetMyShop(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	shop, err := shopService().GetShop(c.Request.Context(), shopID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, shop)
}

// UpdateMyShop handles PATCH /api/v1/shop (manager)
func UpdateMyShop(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	var req UpdateShopRequest
	if !bindJSON(c, &req) {
		return
	}

	shop, err := shopService().UpdateSettings(c.Request.Context(), shopID, services.ShopSettingsInput{
		Name:                           req.Name,
		Address:                        req.Address,
		Phone:                          req.Phone,
		Email:                          req.Email,
		Website:                        req.Website,
		SMSEnabled:                     req.SMSEnabled,
		MechanicsSeePricing:            req.MechanicsSeePricing,
		MechanicsCanAddLineItems:       req.MechanicsCanAddLineItems,
		BlockTransferWithOpenWorkOrder: req.BlockTransferWithOpenWorkOrder,
		TaxRate:                        req.TaxRate,
		Currency:                       req.Currency,
		CurrencyPrecision:              req.CurrencyPrecision,
		SubscriptionTier:               req.SubscriptionTier,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, shop)
}

// CreateStaff handles POST /api/v1/staff (manager)
func CreateStaff(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	var req CreateStaffRequest
	if !bindJSON(c, &req) {
		return
	}

	staff, err := shopService().CreateStaff(c.Request.Context(), shopID, services.CreateStaffInput{
		AuthSubject: req.AuthSubject,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		Role:        req.Role,
		Specialty:   req.Specialty,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, staff)
}

// ListStaff handles GET /api/v1/staff
func ListStaff(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	staff, err := shopService().ListStaff(c.Request.Context(), shopID, services.StaffFilter{
		Role:            models.Role(c.Query("role")),
		IncludeInactive: c.Query("include_inactive") == "true",
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, staff)
}

// SetStaffActive handles PATCH /api/v1/staff/:id/active (manager)
func SetStaffActive(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req SetActiveRequest
	if !bindJSON(c, &req) {
		return
	}

	var actorID uint
	if staffID := middleware.GetStaffID(c); staffID != nil {
		actorID = *staffID
	}
	staff, err := shopService().SetStaffActive(c.Request.Context(), shopID, id, actorID, *req.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, staff)
}

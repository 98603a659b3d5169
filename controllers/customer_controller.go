package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/middleware"
	"github.com/kendall-kelly/autoshop-crm-api/services"
)

// RegisterCustomerRequest represents the request body for registering a customer
type RegisterCustomerRequest struct {
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
	Phone       string `json:"phone" binding:"required"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	GDPRConsent bool   `json:"gdpr_consent"`
}

// UpdateCustomerRequest represents a partial profile update
type UpdateCustomerRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
}

// ConsentRequest records data-processing consent
type ConsentRequest struct {
	GDPRConsent *bool `json:"gdpr_consent" binding:"required"`
}

// ChangePasswordRequest represents a password change by the customer
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// RegisterCustomer handles POST /api/v1/customers (front desk).
// The generated password is returned once so it can be handed over.
func RegisterCustomer(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	var req RegisterCustomerRequest
	if !bindJSON(c, &req) {
		return
	}

	customer, password, err := registryService().RegisterCustomer(c.Request.Context(), shopID, services.RegisterCustomerInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		Email:       req.Email,
		Password:    req.Password,
		GDPRConsent: req.GDPRConsent,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	data := gin.H{"customer": customer}
	if req.Password == "" {
		data["generated_password"] = password
	}
	respondOK(c, http.StatusCreated, data)
}

// ListCustomers handles GET /api/v1/customers (front desk)
func ListCustomers(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	page := pageFromQuery(c)
	customers, total, err := registryService().ListCustomers(c.Request.Context(), shopID, services.CustomerFilter{
		Search:          c.Query("search"),
		IncludeInactive: c.Query("include_inactive") == "true",
		Page:            page,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, customers, total, page)
}

// GetCustomer handles GET /api/v1/customers/:id (front desk)
func GetCustomer(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	customer, err := registryService().GetCustomer(c.Request.Context(), shopID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, customer)
}

// UpdateCustomer handles PATCH /api/v1/customers/:id (front desk)
func UpdateCustomer(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	updateCustomer(c, shopID, id)
}

func updateCustomer(c *gin.Context, shopID, id uint) {
	var req UpdateCustomerRequest
	if !bindJSON(c, &req) {
		return
	}
	customer, err := registryService().UpdateCustomer(c.Request.Context(), shopID, id, services.UpdateCustomerInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Email:     req.Email,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, customer)
}

// DeactivateCustomer handles DELETE /api/v1/customers/:id (manager)
func DeactivateCustomer(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := registryService().DeactivateCustomer(c.Request.Context(), shopID, id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id, "is_active": false})
}

func currentCustomerID(c *gin.Context) (uint, bool) {
	id := middleware.GetCustomerID(c)
	if id == nil {
		forbidden(c, "Only customers can use this endpoint")
		return 0, false
	}
	return *id, true
}

// GetMyProfile handles GET /api/v1/customers/me
func GetMyProfile(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := currentCustomerID(c)
	if !ok {
		return
	}
	customer, err := registryService().GetCustomer(c.Request.Context(), shopID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, customer)
}

// UpdateMyProfile handles PATCH /api/v1/customers/me
func UpdateMyProfile(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := currentCustomerID(c)
	if !ok {
		return
	}
	updateCustomer(c, shopID, id)
}

// SetMyConsent handles PUT /api/v1/customers/me/consent
func SetMyConsent(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := currentCustomerID(c)
	if !ok {
		return
	}
	var req ConsentRequest
	if !bindJSON(c, &req) {
		return
	}
	customer, err := registryService().SetConsent(c.Request.Context(), shopID, id, *req.GDPRConsent)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, customer)
}

// ChangeMyPassword handles PUT /api/v1/customers/me/password
func ChangeMyPassword(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	id, ok := currentCustomerID(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := registryService().ChangePassword(c.Request.Context(), shopID, id, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"password_changed": true})
}

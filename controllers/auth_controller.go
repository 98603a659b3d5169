package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/config"
	"github.com/kendall-kelly/autoshop-crm-api/middleware"
	"github.com/kendall-kelly/autoshop-crm-api/services"
)

// CustomerLoginRequest represents the request body for a customer login
type CustomerLoginRequest struct {
	ShopID   uint   `json:"shop_id" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// CustomerLogin handles POST /api/v1/auth/customer/login
func CustomerLogin(c *gin.Context) {
	cfg := appConfig()
	if !cfg.UsesSharedSecret() {
		errorJSON(c, http.StatusNotImplemented, "LOGIN_DISABLED", "Customer login requires JWT_SECRET to be configured")
		return
	}

	var req CustomerLoginRequest
	if !bindJSON(c, &req) {
		return
	}
	phone, err := services.NormalizePhone(req.Phone, cfg.DefaultPhoneRegion)
	if err != nil {
		respondError(c, err)
		return
	}

	issuer := services.NewTokenIssuer(config.GetDB(), cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, 0)
	token, customer, err := issuer.CustomerLogin(c.Request.Context(), req.ShopID, phone, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		errorJSON(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error())
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"access_token": token.AccessToken,
		"token_type":   token.TokenType,
		"expires_at":   token.ExpiresAt,
		"customer":     customer,
	})
}

// WhoAmI handles GET /api/v1/auth/me and returns the resolved principal
func WhoAmI(c *gin.Context) {
	shopID, ok := tenant(c)
	if !ok {
		return
	}
	subject, _ := middleware.GetSubject(c)
	body := gin.H{
		"shop_id": shopID,
		"role":    middleware.GetRole(c),
		"subject": subject,
	}
	if id := middleware.GetStaffID(c); id != nil {
		body["staff_id"] = *id
	}
	if id := middleware.GetCustomerID(c); id != nil {
		body["customer_id"] = *id
	}
	respondOK(c, http.StatusOK, body)
}

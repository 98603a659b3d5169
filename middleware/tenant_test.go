package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/config"
	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTenantDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Shop{}, &models.Staff{}, &models.Customer{}))
	config.SetDB(db)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func seedShop(t *testing.T, db *gorm.DB, name string, active bool) *models.Shop {
	t.Helper()
	shop := &models.Shop{Name: name, IsActive: active, TaxRate: decimal.RequireFromString("0.2"), Currency: "BGN", CurrencyPrecision: 2}
	require.NoError(t, db.Create(shop).Error)
	return shop
}

func withClaims(subject, role string, shopID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextSubject, subject)
		c.Set(ContextClaims, &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{Subject: subject},
			CustomClaims:     &CustomClaims{Role: role, ShopID: shopID},
		})
		c.Next()
	}
}

func TestResolveTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupTenantDB(t)

	shop := seedShop(t, db, "Active Garage", true)
	closed := seedShop(t, db, "Closed Garage", false)

	manager := &models.Staff{ShopID: shop.ID, AuthSubject: "staff|manager", FirstName: "Mia", LastName: "Ivanova", Role: models.RoleManager, IsActive: true}
	retired := &models.Staff{ShopID: shop.ID, AuthSubject: "staff|retired", FirstName: "Old", LastName: "Hand", Role: models.RoleMechanic, IsActive: false}
	admin := &models.Staff{ShopID: closed.ID, AuthSubject: "staff|admin", FirstName: "Root", LastName: "Admin", Role: models.RoleSuperAdmin, IsActive: true}
	closedMechanic := &models.Staff{ShopID: closed.ID, AuthSubject: "staff|closed", FirstName: "Nik", LastName: "Nikolov", Role: models.RoleMechanic, IsActive: true}
	for _, s := range []*models.Staff{manager, retired, admin, closedMechanic} {
		require.NoError(t, db.Create(s).Error)
	}
	customer := &models.Customer{ShopID: shop.ID, Phone: "+359888111222", FirstName: "Ivan", LastName: "Petrov", IsActive: true}
	require.NoError(t, db.Create(customer).Error)

	tests := []struct {
		name       string
		subject    string
		role       string
		shopID     uint
		wantStatus int
		wantCode   string
		wantRole   models.Role
		wantShop   uint
	}{
		{name: "active manager", subject: "staff|manager", wantStatus: http.StatusOK, wantRole: models.RoleManager, wantShop: shop.ID},
		{name: "customer by phone", subject: "+359888111222", role: "customer", shopID: shop.ID, wantStatus: http.StatusOK, wantRole: models.RoleCustomer, wantShop: shop.ID},
		{name: "customer phone in another shop", subject: "+359888111222", role: "customer", shopID: closed.ID, wantStatus: http.StatusNotFound, wantCode: "PRINCIPAL_NOT_FOUND"},
		{name: "unknown staff", subject: "staff|ghost", wantStatus: http.StatusNotFound, wantCode: "PRINCIPAL_NOT_FOUND"},
		{name: "inactive staff", subject: "staff|retired", wantStatus: http.StatusForbidden, wantCode: "ACCOUNT_INACTIVE"},
		{name: "staff of inactive shop", subject: "staff|closed", wantStatus: http.StatusForbidden, wantCode: "SHOP_INACTIVE"},
		{name: "super admin of inactive shop", subject: "staff|admin", wantStatus: http.StatusOK, wantRole: models.RoleSuperAdmin, wantShop: closed.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			var gotRole models.Role
			var gotShop uint
			router.GET("/me", withClaims(tt.subject, tt.role, tt.shopID), ResolveTenant(), func(c *gin.Context) {
				gotRole = GetRole(c)
				gotShop, _ = GetShopID(c)
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Contains(t, w.Body.String(), tt.wantCode)
				return
			}
			assert.Equal(t, tt.wantRole, gotRole)
			assert.Equal(t, tt.wantShop, gotShop)
		})
	}
}

func TestResolveTenant_SetsPrincipalIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupTenantDB(t)
	shop := seedShop(t, db, "Garage", true)
	customer := &models.Customer{ShopID: shop.ID, Phone: "+359888000111", FirstName: "Ana", LastName: "Koleva", IsActive: true}
	require.NoError(t, db.Create(customer).Error)

	router := gin.New()
	var staffID, customerID *uint
	router.GET("/me", withClaims(customer.Phone, "customer", shop.ID), ResolveTenant(), func(c *gin.Context) {
		staffID = GetStaffID(c)
		customerID = GetCustomerID(c)
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, staffID)
	require.NotNil(t, customerID)
	assert.Equal(t, customer.ID, *customerID)
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		role        interface{}
		allowed     []models.Role
		wantAborted bool
	}{
		{name: "allowed role", role: models.RoleManager, allowed: []models.Role{models.RoleManager, models.RoleSuperAdmin}},
		{name: "role not allowed", role: models.RoleMechanic, allowed: []models.Role{models.RoleManager}, wantAborted: true},
		{name: "no role in context", role: nil, allowed: []models.Role{models.RoleManager}, wantAborted: true},
		{name: "role of wrong type", role: "manager", allowed: []models.Role{models.RoleManager}, wantAborted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.role != nil {
				c.Set(ContextRole, tt.role)
			}

			RequireRoles(tt.allowed...)(c)

			assert.Equal(t, tt.wantAborted, c.IsAborted())
			if tt.wantAborted {
				assert.Equal(t, http.StatusForbidden, w.Code)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), RequestLogger())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

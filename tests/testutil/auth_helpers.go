package testutil

import (
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/kendall-kelly/autoshop-crm-api/middleware"
	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/stretchr/testify/require"
)

// Values used by MintToken and the test configuration
const (
	TestJWTSecret   = "test-secret-for-hs256-tokens"
	TestJWTIssuer   = "autoshop-crm"
	TestJWTAudience = "autoshop-crm-api"
)

// tokenClaims mirrors middleware.CustomClaims on the issuing side
type tokenClaims struct {
	Role   string `json:"role,omitempty"`
	ShopID uint   `json:"shop_id,omitempty"`
	jwt.RegisteredClaims
}

// MintToken signs an HS256 token the shared-secret validator accepts.
// Staff tokens pass an empty role; customer tokens pass RoleCustomer, the
// shop id and the E.164 phone as subject.
func MintToken(t *testing.T, subject string, role models.Role, shopID uint) string {
	t.Helper()
	return MintTokenWith(t, TestJWTSecret, subject, role, shopID, time.Hour)
}

// MintTokenWith signs a token with an explicit secret and lifetime
func MintTokenWith(t *testing.T, secret, subject string, role models.Role, shopID uint, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := tokenClaims{
		Role:   string(role),
		ShopID: shopID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TestJWTIssuer,
			Audience:  jwt.ClaimStrings{TestJWTAudience},
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject string, role models.Role, shopID uint) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  TestJWTIssuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Role:   string(role),
			ShopID: shopID,
		},
	}
}

// SetMockAuthContext sets up a mock authenticated context for testing
func SetMockAuthContext(c *gin.Context, subject string, role models.Role, shopID uint) {
	c.Set(middleware.ContextSubject, subject)
	c.Set(middleware.ContextClaims, MockValidatedClaims(subject, role, shopID))
}

// SetStaffContext simulates a request that already passed ResolveTenant
// for an employee
func SetStaffContext(c *gin.Context, staff *models.Staff) {
	SetMockAuthContext(c, staff.AuthSubject, "", staff.ShopID)
	c.Set(middleware.ContextShopID, staff.ShopID)
	c.Set(middleware.ContextRole, staff.Role)
	c.Set(middleware.ContextStaffID, staff.ID)
}

// SetCustomerContext simulates a request that already passed ResolveTenant
// for a customer
func SetCustomerContext(c *gin.Context, customer *models.Customer) {
	SetMockAuthContext(c, customer.Phone, models.RoleCustomer, customer.ShopID)
	c.Set(middleware.ContextShopID, customer.ShopID)
	c.Set(middleware.ContextRole, models.RoleCustomer)
	c.Set(middleware.ContextCustomerID, customer.ID)
}

// StaffAuth is a middleware standing in for the JWT and tenant middleware
func StaffAuth(staff *models.Staff) gin.HandlerFunc {
	return func(c *gin.Context) {
		SetStaffContext(c, staff)
		c.Next()
	}
}

// CustomerAuth is the customer counterpart of StaffAuth
func CustomerAuth(customer *models.Customer) gin.HandlerFunc {
	return func(c *gin.Context) {
		SetCustomerContext(c, customer)
		c.Next()
	}
}

// CreateTestContext creates a test Gin context
func CreateTestContext() (*gin.Context, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	c, engine := gin.CreateTestContext(nil)
	return c, engine
}

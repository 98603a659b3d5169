package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/config"
	"github.com/kendall-kelly/autoshop-crm-api/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Gin context keys set by the auth and tenant middleware
const (
	ContextSubject    = "auth_subject"
	ContextClaims     = "validated_claims"
	ContextShopID     = "shop_id"
	ContextRole       = "role"
	ContextStaffID    = "staff_id"
	ContextCustomerID = "customer_id"
)

// ResolveTenant maps the token subject to a staff member or customer and
// stores the shop, role and principal id in the context. Every handler
// behind it is scoped to that shop.
func ResolveTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := GetSubject(c)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "MISSING_SUBJECT", err.Error())
			return
		}
		claims, err := GetCustomClaims(c)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "INVALID_CLAIMS", err.Error())
			return
		}

		db := config.GetDB()
		var shopID uint
		var role models.Role

		if claims.IsCustomer() {
			var customer models.Customer
			err := db.Where("shop_id = ? AND phone = ?", claims.ShopID, subject).First(&customer).Error
			if !principalFound(c, err) {
				return
			}
			if !customer.IsActive {
				abortWithError(c, http.StatusForbidden, "ACCOUNT_INACTIVE", "Your account has been deactivated")
				return
			}
			shopID, role = customer.ShopID, models.RoleCustomer
			c.Set(ContextCustomerID, customer.ID)
		} else {
			var staff models.Staff
			err := db.Where("auth_subject = ?", subject).First(&staff).Error
			if !principalFound(c, err) {
				return
			}
			if !staff.IsActive {
				abortWithError(c, http.StatusForbidden, "ACCOUNT_INACTIVE", "Your account has been deactivated")
				return
			}
			shopID, role = staff.ShopID, staff.Role
			c.Set(ContextStaffID, staff.ID)
		}

		var shop models.Shop
		if err := db.First(&shop, shopID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				abortWithError(c, http.StatusNotFound, "SHOP_NOT_FOUND", "Shop not found")
				return
			}
			log.WithError(err).Error("Failed to load shop for tenant")
			abortWithError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to resolve tenant")
			return
		}
		// super admins can still reach a suspended shop to reinstate it
		if !shop.IsActive && role != models.RoleSuperAdmin {
			abortWithError(c, http.StatusForbidden, "SHOP_INACTIVE", "This shop is not active")
			return
		}

		c.Set(ContextShopID, shopID)
		c.Set(ContextRole, role)
		c.Next()
	}
}

func principalFound(c *gin.Context, err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		abortWithError(c, http.StatusNotFound, "PRINCIPAL_NOT_FOUND", "No account is registered for this token")
		return false
	}
	log.WithError(err).Error("Failed to resolve principal")
	abortWithError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to resolve principal")
	return false
}

// RequireRoles ensures the authenticated principal has one of the allowed roles.
func RequireRoles(allowed ...models.Role) gin.HandlerFunc {
	roleSet := make(map[models.Role]struct{}, len(allowed))
	for _, r := range allowed {
		roleSet[r] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := roleSet[GetRole(c)]; !ok {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Insufficient role for this resource")
			return
		}
		c.Next()
	}
}

// GetShopID returns the resolved tenant
func GetShopID(c *gin.Context) (uint, error) {
	v, ok := c.Get(ContextShopID)
	if !ok {
		return 0, &AuthError{Code: "MISSING_TENANT", Message: "Shop not resolved for this request"}
	}
	id, ok := v.(uint)
	if !ok {
		return 0, &AuthError{Code: "INVALID_TENANT", Message: "Shop id has an unexpected type"}
	}
	return id, nil
}

// GetRole returns the principal's role, or "" if none was resolved
func GetRole(c *gin.Context) models.Role {
	v, _ := c.Get(ContextRole)
	role, _ := v.(models.Role)
	return role
}

// GetStaffID returns the staff id when the principal is an employee
func GetStaffID(c *gin.Context) *uint {
	return uintFromContext(c, ContextStaffID)
}

// GetCustomerID returns the customer id when the principal is a customer
func GetCustomerID(c *gin.Context) *uint {
	return uintFromContext(c, ContextCustomerID)
}

func uintFromContext(c *gin.Context, key string) *uint {
	v, ok := c.Get(key)
	if !ok {
		return nil
	}
	id, ok := v.(uint)
	if !ok {
		return nil
	}
	return &id
}

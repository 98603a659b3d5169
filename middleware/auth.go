package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/autoshop-crm-api/config"
	"github.com/kendall-kelly/autoshop-crm-api/models"
	log "github.com/sirupsen/logrus"
)

// CustomClaims contains the tenant data carried by our tokens.
// Staff tokens only need a subject; customer tokens name the shop and use
// the customer's E.164 phone number as subject.
type CustomClaims struct {
	Role   string `json:"role"`
	ShopID uint   `json:"shop_id"`
}

// Validate rejects customer tokens that do not name a shop
func (c CustomClaims) Validate(ctx context.Context) error {
	if c.Role == string(models.RoleCustomer) && c.ShopID == 0 {
		return errors.New("customer token without shop_id")
	}
	return nil
}

// IsCustomer reports whether the token was issued to a customer
func (c CustomClaims) IsCustomer() bool {
	return c.Role == string(models.RoleCustomer)
}

// newValidator builds the token validator. A shared secret selects HS256
// tokens issued by this service; otherwise Auth0 RS256 keys are fetched
// from the tenant's JWKS endpoint.
func newValidator(cfg *config.Config) (*validator.Validator, error) {
	customClaims := validator.WithCustomClaims(func() validator.CustomClaims {
		return &CustomClaims{}
	})
	skew := validator.WithAllowedClockSkew(time.Minute)

	if cfg.UsesSharedSecret() {
		secret := []byte(cfg.JWTSecret)
		keyFunc := func(context.Context) (interface{}, error) {
			return secret, nil
		}
		return validator.New(keyFunc, validator.HS256, cfg.JWTIssuer, []string{cfg.JWTAudience}, customClaims, skew)
	}

	issuerURL, err := url.Parse("https://" + cfg.Auth0Domain + "/")
	if err != nil {
		return nil, err
	}
	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)
	return validator.New(provider.KeyFunc, validator.RS256, issuerURL.String(), []string{cfg.Auth0Audience}, customClaims, skew)
}

// EnsureValidToken is a middleware that will check the validity of our JWT.
func EnsureValidToken(cfg *config.Config) gin.HandlerFunc {
	jwtValidator, err := newValidator(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to set up the jwt validator")
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		log.WithError(err).WithField("path", r.URL.Path).Warn("Encountered error while validating JWT")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		if _, writeErr := w.Write([]byte(`{"success":false,"error":{"code":"INVALID_TOKEN","message":"Failed to validate JWT."}}`)); writeErr != nil {
			log.WithError(writeErr).Error("Failed to write error response")
		}
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
		// browsers cannot set headers on a websocket handshake
		jwtmiddleware.WithTokenExtractor(jwtmiddleware.MultiTokenExtractor(
			jwtmiddleware.AuthHeaderTokenExtractor,
			jwtmiddleware.ParameterTokenExtractor("access_token"),
		)),
	)

	return func(c *gin.Context) {
		passed := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			passed = true
			token := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)

			c.Set(ContextSubject, token.RegisteredClaims.Subject)
			c.Set(ContextClaims, token)
			c.Request = r

			c.Next()
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		// the error handler has already written the response
		if !passed {
			c.Abort()
		}
	}
}

// GetSubject extracts the token subject from the Gin context
func GetSubject(c *gin.Context) (string, error) {
	subject, exists := c.Get(ContextSubject)
	if !exists {
		return "", &AuthError{Code: "MISSING_SUBJECT", Message: "Token subject not found in context"}
	}

	subjectStr, ok := subject.(string)
	if !ok {
		return "", &AuthError{Code: "INVALID_SUBJECT", Message: "Token subject is not a string"}
	}

	return subjectStr, nil
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get(ContextClaims)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// GetCustomClaims returns the tenant claims of the validated token
func GetCustomClaims(c *gin.Context) (*CustomClaims, error) {
	claims, err := GetClaims(c)
	if err != nil {
		return nil, err
	}
	custom, ok := claims.CustomClaims.(*CustomClaims)
	if !ok || custom == nil {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Custom claims are missing"}
	}
	return custom, nil
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

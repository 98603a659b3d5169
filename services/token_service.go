package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kendall-kelly/autoshop-crm-api/models"
	"gorm.io/gorm"
)

// ErrInvalidCredentials is returned for any failed customer login so the
// response does not reveal which part was wrong.
var ErrInvalidCredentials = errors.New("invalid phone or password")

// customerClaims is the token body for a customer session. The subject is
// the customer's E.164 phone number.
type customerClaims struct {
	Role   string `json:"role"`
	ShopID uint   `json:"shop_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 session tokens for customers
type TokenIssuer struct {
	db       *gorm.DB
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewTokenIssuer creates an issuer. A zero ttl means 24 hours.
func NewTokenIssuer(db *gorm.DB, secret, issuer, audience string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{db: db, secret: []byte(secret), issuer: issuer, audience: audience, ttl: ttl}
}

// IssuedToken is a signed token and its expiry
type IssuedToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Sign creates a token for the customer
func (t *TokenIssuer) Sign(customer *models.Customer) (*IssuedToken, error) {
	now := time.Now().UTC()
	expires := now.Add(t.ttl)
	claims := customerClaims{
		Role:   string(models.RoleCustomer),
		ShopID: customer.ShopID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{t.audience},
			Subject:   customer.Phone,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &IssuedToken{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expires}, nil
}

// CustomerLogin checks a phone and password against the shop's customers
func (t *TokenIssuer) CustomerLogin(ctx context.Context, shopID uint, phone, password string) (*IssuedToken, *models.Customer, error) {
	var customer models.Customer
	err := t.db.WithContext(ctx).Where("shop_id = ? AND phone = ?", shopID, phone).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load customer: %w", err)
	}
	if !customer.IsActive || !CheckPassword(customer.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}
	token, err := t.Sign(&customer)
	if err != nil {
		return nil, nil, err
	}
	return token, &customer, nil
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kendall-kelly/autoshop-crm-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignCustomerToken(t *testing.T) {
	db := testutil.NewTestDB(t)
	shop := testutil.CreateShop(t, db, "Sofia Motors")
	customer := testutil.CreateCustomer(t, db, shop.ID, "+359888123456")
	issuer := NewTokenIssuer(db, testutil.TestJWTSecret, testutil.TestJWTIssuer, testutil.TestJWTAudience, time.Hour)

	issued, err := issuer.Sign(customer)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", issued.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), issued.ExpiresAt, time.Minute)

	claims := &customerClaims{}
	parsed, err := jwt.ParseWithClaims(issued.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testutil.TestJWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(testutil.TestJWTIssuer), jwt.WithAudience(testutil.TestJWTAudience))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "+359888123456", claims.Subject)
	assert.Equal(t, "customer", claims.Role)
	assert.Equal(t, shop.ID, claims.ShopID)
}

func TestTokenIssuerDefaultTTL(t *testing.T) {
	issuer := NewTokenIssuer(nil, "secret", "iss", "aud", 0)
	assert.Equal(t, 24*time.Hour, issuer.ttl)
}

func TestCustomerLogin(t *testing.T) {
	db := testutil.NewTestDB(t)
	shop := testutil.CreateShop(t, db, "Sofia Motors")
	other := testutil.CreateShop(t, db, "Plovdiv Auto")
	customer := testutil.CreateCustomer(t, db, shop.ID, "+359888123456")
	hash, err := HashPassword("correct-horse")
	require.NoError(t, err)
	require.NoError(t, db.Model(customer).Update("password_hash", hash).Error)

	dormant := testutil.CreateCustomer(t, db, shop.ID, "+359888000111")
	require.NoError(t, db.Model(dormant).Updates(map[string]interface{}{"password_hash": hash, "is_active": false}).Error)

	issuer := NewTokenIssuer(db, testutil.TestJWTSecret, testutil.TestJWTIssuer, testutil.TestJWTAudience, 0)
	ctx := context.Background()

	token, got, err := issuer.CustomerLogin(ctx, shop.ID, "+359888123456", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)
	assert.Equal(t, customer.ID, got.ID)

	tests := []struct {
		name     string
		shopID   uint
		phone    string
		password string
	}{
		{"wrong password", shop.ID, "+359888123456", "wrong"},
		{"unknown phone", shop.ID, "+359888777666", "correct-horse"},
		{"other shop", other.ID, "+359888123456", "correct-horse"},
		{"inactive customer", shop.ID, "+359888000111", "correct-horse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := issuer.CustomerLogin(ctx, tt.shopID, tt.phone, tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

package services

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/crypto/bcrypt"
)

const (
	generatedPasswordLength = 8
	minPasswordLength       = 6
	passwordAlphabet        = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GeneratePassword returns a random alphanumeric password of length n
func GeneratePassword(n int) (string, error) {
	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		out[i] = passwordAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// HashPassword hashes a password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the bcrypt hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NormalizePhone parses a phone number in the given default region and
// returns it in E.164 form.
func NormalizePhone(raw, region string) (string, error) {
	if raw == "" {
		return "", invalid("phone", "is required")
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", invalid("phone", "%q is not a phone number", raw)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", invalid("phone", "%q is not a valid number", raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

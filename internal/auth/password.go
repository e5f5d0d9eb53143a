package auth

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/desertthunder/manhwatrack/internal/shared"
)

// MinPasswordLength is the shortest accepted password, in characters.
const MinPasswordLength = 8

// bcryptCost is lowered in tests.
var bcryptCost = bcrypt.DefaultCost

// ValidatePassword checks length and confirmation before any store call.
func ValidatePassword(password, confirm string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return shared.ErrPasswordTooShort
	}
	if password != confirm {
		return shared.ErrPasswordMismatch
	}
	return nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

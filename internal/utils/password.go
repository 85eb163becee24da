package utils

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHashCost defines the cost for bcrypt password hashing
const PasswordHashCost = 12

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 8

// HashPassword creates a bcrypt hash of the password
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), PasswordHashCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ValidatePassword checks that a password is long enough and mixes letters and numbers
func ValidatePassword(password, email string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}

	var hasLetter, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsLetter(char):
			hasLetter = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}
	if !hasLetter || !hasNumber {
		return errors.New("password must contain letters and numbers")
	}

	if local, _, ok := strings.Cut(email, "@"); ok && local != "" &&
		strings.Contains(strings.ToLower(password), strings.ToLower(local)) {
		return errors.New("password should not contain your email address")
	}

	return nil
}

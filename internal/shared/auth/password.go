package auth

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 12

// bcrypt ignores input beyond 72 bytes; truncate explicitly so validation and
// hashing agree on what was used.
const bcryptInputLimit = 72

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	raw := []byte(password)
	if len(raw) > bcryptInputLimit {
		raw = raw[:bcryptInputLimit]
	}
	hashed, err := bcrypt.GenerateFromPassword(raw, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword reports whether the plaintext password matches the hash.
func CheckPassword(password, hash string) bool {
	raw := []byte(password)
	if len(raw) > bcryptInputLimit {
		raw = raw[:bcryptInputLimit]
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), raw) == nil
}

// ValidatePasswordStrength checks the password policy and returns every
// violation so clients can show all of them at once.
func ValidatePasswordStrength(password string) []string {
	var problems []string

	if len(password) < minPasswordLength {
		problems = append(problems, "password must be at least 12 characters long")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(`!@#$%^&*(),.?":{}|<>`, r):
			hasSpecial = true
		}
	}
	if !hasUpper {
		problems = append(problems, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		problems = append(problems, "password must contain at least one lowercase letter")
	}
	if !hasDigit {
		problems = append(problems, "password must contain at least one digit")
	}
	if !hasSpecial {
		problems = append(problems, `password must contain at least one special character (!@#$%^&*(),.?":{}|<>)`)
	}

	return problems
}

package auth

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Strength reasons, returned in a fixed evaluation order so the error
// message for a given password is deterministic.
const (
	reasonTooShort = "password must be at least 8 characters"
	reasonNoUpper  = "password must contain at least one uppercase letter"
	reasonNoLower  = "password must contain at least one lowercase letter"
	reasonNoDigit  = "password must contain at least one digit"
)

const (
	minPasswordLen = 8
	bcryptMaxInput = 72
	bcryptHashCost = 12
)

// ValidateStrength checks the password against the registration policy.
// Checks run in a fixed order (length, uppercase, lowercase, digit) and
// the first violated rule is reported.
func ValidateStrength(password string) (bool, string) {
	if len([]rune(password)) < minPasswordLen {
		return false, reasonTooShort
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		return false, reasonNoUpper
	}
	if !hasLower {
		return false, reasonNoLower
	}
	if !hasDigit {
		return false, reasonNoDigit
	}
	return true, ""
}

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implements PasswordHasher with bcrypt.
type BcryptHasher struct{ Cost int }

// Hash produces a salted bcrypt hash. Input beyond 72 bytes is truncated
// rather than rejected, matching bcrypt's own limit.
func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcryptHashCost
	}
	raw := []byte(pw)
	if len(raw) > bcryptMaxInput {
		raw = raw[:bcryptMaxInput]
	}
	h, err := bcrypt.GenerateFromPassword(raw, cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether pw matches hash. A malformed hash or any
// internal bcrypt error yields false; callers cannot tell a broken hash
// apart from a wrong password, and that is the point.
func (b BcryptHasher) Verify(hash, pw string) bool {
	raw := []byte(pw)
	if len(raw) > bcryptMaxInput {
		raw = raw[:bcryptMaxInput]
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), raw) == nil
}

// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for stored passwords.
const DefaultCost = 12

var (
	// ErrHashing indicates the primitive rejected the input (e.g. longer than 72 bytes).
	ErrHashing = errors.New("password hashing failed")

	// ErrVerification indicates the stored hash is malformed, not that the password is wrong.
	ErrVerification = errors.New("malformed password hash")
)

// HashPassword returns a salted bcrypt hash of password.
// A cost below bcrypt.MinCost is raised to bcrypt.DefaultCost; a cost above bcrypt.MaxCost
// fails with ErrHashing.
func HashPassword(password string, cost int) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashing, err)
	}
	return string(h), nil
}

// VerifyPassword checks password against a stored bcrypt hash using the salt embedded in it.
// A mismatch returns (false, nil); a corrupted stored value returns ErrVerification.
func VerifyPassword(password, stored string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrVerification, err)
	}
}

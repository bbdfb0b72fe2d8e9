// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"golang.org/x/crypto/bcrypt"
)

// passwordCost is the fixed bcrypt work factor for stored passwords.
const passwordCost = bcrypt.DefaultCost

// HashPassword returns a bcrypt hash of password with a fresh random salt embedded.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
// A malformed hash never matches.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CheckHash returns an error when hash is not a well-formed bcrypt hash.
func CheckHash(hash string) error {
	_, err := bcrypt.Cost([]byte(hash))
	return err
}

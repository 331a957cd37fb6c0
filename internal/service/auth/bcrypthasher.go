package auth

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// Hasher used when none is configured
var DefaultHasher PasswordHasher = BcryptHasher{}

// Bcrypt password hasher
// Password is pre-hashed with sha256: bcrypt ignores input past 72 bytes
type BcryptHasher struct {
	// bcrypt cost, bcrypt.DefaultCost if zero
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	sum := sha256.Sum256([]byte(password))
	hash, err := bcrypt.GenerateFromPassword(sum[:], cost)
	return string(hash), err
}

func (h BcryptHasher) Compare(hashedPassword string, password string) error {
	sum := sha256.Sum256([]byte(password))
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), sum[:])
}

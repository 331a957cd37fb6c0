package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Email          string
	Username       string
	HashedPassword string
}

// Changes requested by the user, nil keeps the current value
// Password is plain text here, it is hashed before reaching the repository
type UserChanges struct {
	Email    *string
	Username *string
	Password *string
}

func (c UserChanges) Empty() bool {
	return c.Email == nil && c.Username == nil && c.Password == nil
}

// Fields of the user to change, nil keeps the current value
type UserUpdate struct {
	Email          *string
	Username       *string
	HashedPassword *string
}

// Emails are compared case insensitive, so they are stored normalized
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authsession/internal/models"
)

const (
	// Session record key is prefix + token digest
	SessionKeyPrefix = "session:"

	// Subject index key is prefix + subject, members are token digests
	SubjectKeyPrefix = "subject:"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, email string, username string, hashedPassword string) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Update set fields of the user and return the result
	// If user not found must return apperrors.ErrUserNotFound
	// If new email is taken by other user must return apperrors.ErrUserAlreadyExists
	UpdateUser(ctx context.Context, userID uuid.UUID, upd models.UserUpdate) (models.User, error)

	// Delete user
	// If user not found must return apperrors.ErrUserNotFound
	DeleteUser(ctx context.Context, userID uuid.UUID) error

	// Check the storage is reachable
	Ping(ctx context.Context) error
}

// Session store interface
// A record is present if and only if the token is usable. Absence is authoritative
// Every error not related to the record itself has to wrap apperrors.ErrStoreUnavailable
type SessionStore interface {
	// Store token bound to subject for ttl. Overwrites existing record for the same token
	// ttl <= 0 stores nothing
	Put(ctx context.Context, token string, subject string, ttl time.Duration) error

	// Check token record exists and not expired
	Exists(ctx context.Context, token string) (bool, error)

	// Remove record and report whether it existed, in one atomic step
	// For the same token only one of concurrent callers gets existed=true
	Consume(ctx context.Context, token string) (existed bool, err error)

	// Remove record. Missing record is not an error
	Delete(ctx context.Context, token string) error

	// Remove every record of subject, returns the number of removed records
	DeleteAllForSubject(ctx context.Context, subject string) (removed int, err error)

	// Check the store is reachable
	Ping(ctx context.Context) error

	Close() error
}

// Digest of the token used as record key
// Tokens are bearer secrets so they are never kept verbatim
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func SessionKey(digest string) string {
	return SessionKeyPrefix + digest
}

func SubjectKey(subject string) string {
	return SubjectKeyPrefix + subject
}

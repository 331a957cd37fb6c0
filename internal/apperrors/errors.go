package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// Login failed. Never tells whether the identifier or the password was wrong
	ErrCredentialInvalid = errors.New("incorrect credentials")

	// The only token error callers should match on.
	// Wraps one of the causes below, so logs may still distinguish them
	ErrTokenInvalid = errors.New("token is invalid")

	ErrTokenMalformed        = errors.New("token is malformed")
	ErrSignatureInvalid      = errors.New("token signature is invalid")
	ErrTokenExpired          = errors.New("token is expired")
	ErrTokenKindMismatch     = errors.New("token kind mismatch")
	ErrTokenRevokedOrUnknown = errors.New("token is revoked or unknown")

	// Session store could not be reached. Fatal to the current call, surfaced as 5xx
	ErrStoreUnavailable = errors.New("session store unavailable")
)

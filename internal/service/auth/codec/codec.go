// Package codec signs and decodes self-contained tokens carrying subject, kind and expiry.
//
// Codecs are stateless. The secret and the algorithm are fixed when the codec is built
// and never taken from the token being decoded.
package codec

import (
	"errors"
	"fmt"
	"time"

	"github.com/nkiryanov/authsession/internal/models"
)

const (
	FormatJWT    = "jwt"
	FormatPaseto = "paseto"

	defaultFormat    = FormatJWT
	defaultAlgorithm = "HS256"
)

type Codec interface {
	// Sign token for subject. Expiry is now + ttl, so ttl <= 0 gives already expired token
	Sign(subject string, kind models.TokenKind, ttl time.Duration) (models.IssuedToken, error)

	// Decode and verify token
	// Has to return error wrapping one of apperrors.ErrTokenMalformed, apperrors.ErrSignatureInvalid, apperrors.ErrTokenExpired
	Decode(token string) (models.Claims, error)
}

type Config struct {
	// Secret shared by the whole process
	// Required to be set
	SecretKey string

	// Token format: "jwt" or "paseto"
	// If not set than default is used
	Format string

	// JWT MAC algorithm. Ignored by paseto (v4.local has no algorithm choice)
	// If not set than default is used
	Algorithm string
}

func New(cfg Config) (Codec, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Format == "" {
		cfg.Format = defaultFormat
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = defaultAlgorithm
	}

	switch cfg.Format {
	case FormatJWT:
		return NewJWT(cfg.SecretKey, cfg.Algorithm)
	case FormatPaseto:
		return NewPaseto(cfg.SecretKey)
	default:
		return nil, fmt.Errorf("unknown token format %q", cfg.Format)
	}
}

// Expiry is truncated to seconds: both formats carry seconds only
func expiresAt(now time.Time, ttl time.Duration) (issuedAt time.Time, exp time.Time) {
	issuedAt = now.Truncate(time.Second)
	return issuedAt, issuedAt.Add(ttl)
}

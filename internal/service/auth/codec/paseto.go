package codec

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/google/uuid"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/models"
)

const (
	pasetoHeader    = "v4.local."
	pasetoKindClaim = "knd"
)

// Paseto codec issues v4.local tokens (symmetric authenticated encryption)
// Version and purpose are fixed, so there is nothing to negotiate
type Paseto struct {
	key paseto.V4SymmetricKey
	now func() time.Time
}

func NewPaseto(secretKey string) (*Paseto, error) {
	if secretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	// v4.local requires exactly 32 bytes key, derive it from secret of any length
	sum := sha256.Sum256([]byte(secretKey))
	key, err := paseto.V4SymmetricKeyFromBytes(sum[:])
	if err != nil {
		return nil, fmt.Errorf("error while deriving paseto key. Err: %w", err)
	}

	return &Paseto{key: key, now: time.Now}, nil
}

func (c *Paseto) Sign(subject string, kind models.TokenKind, ttl time.Duration) (models.IssuedToken, error) {
	if subject == "" {
		return models.IssuedToken{}, errors.New("subject must not be empty")
	}
	if !kind.Valid() {
		return models.IssuedToken{}, fmt.Errorf("unknown token kind %q", kind)
	}

	issuedAt, exp := expiresAt(c.now(), ttl)

	token := paseto.NewToken()
	token.SetJti(uuid.NewString())
	token.SetSubject(subject)
	token.SetIssuedAt(issuedAt)
	token.SetExpiration(exp)
	token.SetString(pasetoKindClaim, string(kind))

	return models.IssuedToken{
		Value:     token.V4Encrypt(c.key, nil),
		Kind:      kind,
		ExpiresAt: exp,
	}, nil
}

func (c *Paseto) Decode(token string) (models.Claims, error) {
	if !strings.HasPrefix(token, pasetoHeader) {
		return models.Claims{}, fmt.Errorf("%w: not a %s token", apperrors.ErrTokenMalformed, strings.TrimSuffix(pasetoHeader, "."))
	}

	// Expiry checked below to tell expired tokens from forged ones
	parser := paseto.NewParserWithoutExpiryCheck()
	parsed, err := parser.ParseV4Local(c.key, token, nil)
	if err != nil {
		return models.Claims{}, fmt.Errorf("%w: %w", apperrors.ErrSignatureInvalid, err)
	}

	exp, err := parsed.GetExpiration()
	if err != nil {
		return models.Claims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	}
	if !c.now().Before(exp) {
		return models.Claims{}, fmt.Errorf("%w: expired at %s", apperrors.ErrTokenExpired, exp.Format(time.RFC3339))
	}

	subject, err := parsed.GetSubject()
	if err != nil || subject == "" {
		return models.Claims{}, fmt.Errorf("%w: subject claim missing", apperrors.ErrTokenMalformed)
	}

	kind, err := parsed.GetString(pasetoKindClaim)
	if err != nil || !models.TokenKind(kind).Valid() {
		return models.Claims{}, fmt.Errorf("%w: kind claim missing", apperrors.ErrTokenMalformed)
	}

	// Optional claims
	jti, _ := parsed.GetJti()
	issuedAt, _ := parsed.GetIssuedAt()

	return models.Claims{
		ID:        jti,
		Subject:   subject,
		Kind:      models.TokenKind(kind),
		IssuedAt:  issuedAt,
		ExpiresAt: exp,
	}, nil
}

package codec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/models"
)

type jwtClaims struct {
	jwt.RegisteredClaims
	Kind models.TokenKind `json:"knd"`
}

// JWT codec signs tokens with a MAC (HMAC) algorithm
type JWT struct {
	// Secret key to sign tokens
	key []byte

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	now func() time.Time
}

func NewJWT(secretKey string, alg string) (*JWT, error) {
	if secretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	// Only symmetric MAC methods: 'none' and asymmetric ones are never accepted
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}

	return &JWT{
		key: []byte(secretKey),
		alg: method,
		now: time.Now,
	}, nil
}

func (c *JWT) Sign(subject string, kind models.TokenKind, ttl time.Duration) (models.IssuedToken, error) {
	if subject == "" {
		return models.IssuedToken{}, errors.New("subject must not be empty")
	}
	if !kind.Valid() {
		return models.IssuedToken{}, fmt.Errorf("unknown token kind %q", kind)
	}

	issuedAt, exp := expiresAt(c.now(), ttl)

	token := jwt.NewWithClaims(
		c.alg,
		jwtClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   subject,
				IssuedAt:  jwt.NewNumericDate(issuedAt),
				ExpiresAt: jwt.NewNumericDate(exp),
			},
			Kind: kind,
		},
	)

	value, err := token.SignedString(c.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing %s token. Err: %w", kind, err)
	}

	return models.IssuedToken{Value: value, Kind: kind, ExpiresAt: exp}, nil
}

func (c *JWT) Decode(token string) (models.Claims, error) {
	claims := &jwtClaims{}

	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{c.alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return models.Claims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return models.Claims{}, fmt.Errorf("%w: %w", apperrors.ErrSignatureInvalid, err)
	default:
		return models.Claims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	}

	if claims.Subject == "" || !claims.Kind.Valid() {
		return models.Claims{}, fmt.Errorf("%w: subject or kind claim missing", apperrors.ErrTokenMalformed)
	}

	decoded := models.Claims{
		ID:        claims.ID,
		Subject:   claims.Subject,
		Kind:      claims.Kind,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		decoded.IssuedAt = claims.IssuedAt.Time
	}

	return decoded, nil
}

// Package tokenmanager owns token lifecycle: issue, validate, refresh (rotate) and revoke.
//
// Tokens are signed by a codec and their liveness is tracked by a session store.
// A token is usable only while both agree: signature and expiry are valid and the record exists.
// The store is the only point of coordination between concurrent requests.
package tokenmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/logger"
	"github.com/nkiryanov/authsession/internal/metrics"
	"github.com/nkiryanov/authsession/internal/models"
	"github.com/nkiryanov/authsession/internal/repository"
	"github.com/nkiryanov/authsession/internal/service/auth/codec"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 24 * time.Hour

	TokenTypeBearer = "bearer"
)

// Token manager with sensible default
type Config struct {
	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// If not set than noop is used
	Logger  logger.Logger
	Metrics metrics.Recorder
}

type TokenManager struct {
	codec codec.Codec
	store repository.SessionStore

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	logger  logger.Logger
	metrics metrics.Recorder
}

func New(cfg Config, c codec.Codec, store repository.SessionStore) (*TokenManager, error) {
	if c == nil || store == nil {
		return nil, errors.New("codec and session store are required")
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must be longer than access token ttl (%s)", cfg.RefreshTTL, cfg.AccessTTL)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}

	return &TokenManager{
		codec:      c,
		store:      store,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		logger:     cfg.Logger.With("component", "tokenmanager"),
		metrics:    cfg.Metrics,
	}, nil
}

// Issue new token pair for subject and register both tokens in the store
// Access token is stored first: if storing refresh fails the caller gets an error
// and the orphan access token just expires
func (m *TokenManager) Issue(ctx context.Context, subject string) (models.TokenPair, error) {
	var pair models.TokenPair

	access, err := m.codec.Sign(subject, models.TokenKindAccess, m.accessTTL)
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}
	refresh, err := m.codec.Sign(subject, models.TokenKindRefresh, m.refreshTTL)
	if err != nil {
		return pair, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	for _, token := range []models.IssuedToken{access, refresh} {
		err = m.store.Put(ctx, token.Value, subject, time.Until(token.ExpiresAt))
		if err != nil {
			return pair, fmt.Errorf("error while storing %s token. Err: %w", token.Kind, err)
		}
		m.metrics.TokenIssued(string(token.Kind))
	}

	m.logger.Debug("Token pair issued", "subject", subject, "access_exp", access.ExpiresAt, "refresh_exp", refresh.ExpiresAt)

	return models.TokenPair{
		Subject:   subject,
		Access:    access,
		Refresh:   refresh,
		TokenType: TokenTypeBearer,
	}, nil
}

// Validate token of expected kind and return its subject
// Every reason to reject the token wraps apperrors.ErrTokenInvalid
// Store failures wrap apperrors.ErrStoreUnavailable instead
func (m *TokenManager) Validate(ctx context.Context, token string, kind models.TokenKind) (string, error) {
	claims, err := m.decode(token, kind)
	if err != nil {
		return "", err
	}

	exists, err := m.store.Exists(ctx, token)
	if err != nil {
		return "", fmt.Errorf("error while checking %s token. Err: %w", kind, err)
	}
	if !exists {
		return "", m.reject(apperrors.ErrTokenRevokedOrUnknown)
	}

	return claims.Subject, nil
}

// Exchange refresh token for a new pair. The refresh token is consumed and can't be used again
// Of concurrent calls with the same token exactly one succeeds: the store consume is atomic
// Access tokens issued along with the consumed refresh token stay valid until they expire
func (m *TokenManager) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	claims, err := m.decode(refresh, models.TokenKindRefresh)
	if err != nil {
		m.metrics.Refresh(metrics.RefreshRejected)
		return models.TokenPair{}, err
	}

	existed, err := m.store.Consume(ctx, refresh)
	if err != nil {
		m.metrics.Refresh(metrics.RefreshError)
		return models.TokenPair{}, fmt.Errorf("error while consuming refresh token. Err: %w", err)
	}
	if !existed {
		m.metrics.Refresh(metrics.RefreshRejected)
		return models.TokenPair{}, m.reject(apperrors.ErrTokenRevokedOrUnknown)
	}

	pair, err := m.Issue(ctx, claims.Subject)
	if err != nil {
		// Refresh token is gone already, client has to login again
		m.metrics.Refresh(metrics.RefreshError)
		m.logger.Warn("Refresh token consumed but new pair not issued", "subject", claims.Subject, "error", err)
		return models.TokenPair{}, err
	}

	m.metrics.Refresh(metrics.RefreshOK)
	return pair, nil
}

// Revoke token of any kind. Revoking unknown, expired or even malformed token is not an error
func (m *TokenManager) Revoke(ctx context.Context, token string) error {
	err := m.store.Delete(ctx, token)
	if err != nil {
		return fmt.Errorf("error while revoking token. Err: %w", err)
	}

	m.metrics.Revoked(metrics.ScopeToken, 1)
	return nil
}

// Revoke every token of subject, returns number of revoked tokens
func (m *TokenManager) RevokeAll(ctx context.Context, subject string) (int, error) {
	removed, err := m.store.DeleteAllForSubject(ctx, subject)
	if err != nil {
		return 0, fmt.Errorf("error while revoking subject tokens. Err: %w", err)
	}

	m.metrics.Revoked(metrics.ScopeSubject, removed)
	m.logger.Debug("Subject tokens revoked", "subject", subject, "count", removed)

	return removed, nil
}

// Check the session store is reachable
func (m *TokenManager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}

// Decode token and check its kind
func (m *TokenManager) decode(token string, kind models.TokenKind) (models.Claims, error) {
	claims, err := m.codec.Decode(token)
	if err != nil {
		return claims, m.reject(err)
	}

	if claims.Kind != kind {
		return claims, m.reject(fmt.Errorf("%w: expected %s, got %s", apperrors.ErrTokenKindMismatch, kind, claims.Kind))
	}

	return claims, nil
}

// Wrap the internal cause with public error
// The cause is kept for logs and metrics, callers should match apperrors.ErrTokenInvalid only
func (m *TokenManager) reject(cause error) error {
	reason := rejectReason(cause)

	m.metrics.ValidateFailure(reason)
	m.logger.Debug("Token rejected", "reason", reason, "error", cause)

	return fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, cause)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrTokenExpired):
		return "expired"
	case errors.Is(err, apperrors.ErrSignatureInvalid):
		return "signature"
	case errors.Is(err, apperrors.ErrTokenKindMismatch):
		return "kind_mismatch"
	case errors.Is(err, apperrors.ErrTokenRevokedOrUnknown):
		return "revoked"
	default:
		return "malformed"
	}
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/logger"
	"github.com/nkiryanov/authsession/internal/models"
	"github.com/nkiryanov/authsession/internal/repository"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

// Token lifecycle operations the gateway relies on
type TokenManager interface {
	Issue(ctx context.Context, subject string) (models.TokenPair, error)
	Validate(ctx context.Context, token string, kind models.TokenKind) (string, error)
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)
	Revoke(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, subject string) (int, error)
}

type Config struct {
	// Hasher to compare user passwords on login
	// If not set than DefaultHasher is used
	Hasher PasswordHasher

	// If not set than noop is used
	Logger logger.Logger
}

// Auth service: verifies credentials and manages the user sessions
type AuthService struct {
	// Manager to issue, validate and revoke tokens
	tokens TokenManager

	// hasher to compare user passwords
	hasher PasswordHasher

	// Credential store
	userRepo repository.UserRepo

	logger logger.Logger

	// Hash compared against when user is not found, so both failures take the same time
	dummyOnce sync.Once
	dummyHash string
}

func NewService(cfg Config, tokens TokenManager, userRepo repository.UserRepo) (*AuthService, error) {
	if tokens == nil || userRepo == nil {
		return nil, errors.New("token manager and user repo must not be nil")
	}

	if cfg.Hasher == nil {
		cfg.Hasher = DefaultHasher
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}

	return &AuthService{
		tokens:   tokens,
		hasher:   cfg.Hasher,
		userRepo: userRepo,
		logger:   cfg.Logger.With("component", "auth"),
	}, nil
}

// Login with email and password and get fresh token pair
// Unknown email and wrong password both return apperrors.ErrCredentialInvalid
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.TokenPair, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, models.NormalizeEmail(email))

	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(s.dummy(), password)
		s.logger.Debug("Login failed", "reason", "user not found")
		return models.TokenPair{}, apperrors.ErrCredentialInvalid
	case err != nil:
		return models.TokenPair{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		s.logger.Debug("Login failed", "reason", "wrong password", "user_id", user.ID)
		return models.TokenPair{}, apperrors.ErrCredentialInvalid
	}

	pair, err := s.tokens.Issue(ctx, user.ID.String())
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be issued. Err: %w", err)
	}

	s.logger.Info("User logged in", "user_id", user.ID)
	return pair, nil
}

// Exchange refresh token for a new pair
// Refresh token of a deleted user is invalid: the new pair is revoked right away
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	pair, err := s.tokens.Refresh(ctx, refresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	userID, err := uuid.Parse(pair.Subject)
	if err != nil {
		s.revokePair(ctx, pair)
		return models.TokenPair{}, fmt.Errorf("%w: %w: subject is not user id", apperrors.ErrTokenInvalid, apperrors.ErrTokenMalformed)
	}

	_, err = s.userRepo.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		s.revokePair(ctx, pair)
		s.logger.Debug("Refresh rejected", "reason", "user not found", "user_id", userID)
		return models.TokenPair{}, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, apperrors.ErrTokenRevokedOrUnknown)
	case err != nil:
		s.revokePair(ctx, pair)
		return models.TokenPair{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	return pair, nil
}

// Revoke the token. Always succeeds unless the session store is down
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// Revoke every session of the user
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.tokens.RevokeAll(ctx, userID.String())
	if err != nil {
		return 0, err
	}

	s.logger.Info("User logged out everywhere", "user_id", userID, "sessions", n)
	return n, nil
}

// Resolve access token to its user
// Token of a deleted user is invalid as well
func (s *AuthService) Authenticate(ctx context.Context, access string) (models.User, error) {
	subject, err := s.tokens.Validate(ctx, access, models.TokenKindAccess)
	if err != nil {
		return models.User{}, err
	}

	userID, err := uuid.Parse(subject)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %w: subject is not user id", apperrors.ErrTokenInvalid, apperrors.ErrTokenMalformed)
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.User{}, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, apperrors.ErrTokenRevokedOrUnknown)
	case err != nil:
		return models.User{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	return user, nil
}

// Revoke freshly issued pair that must not reach the client
// Failure is only logged: both tokens expire anyway
func (s *AuthService) revokePair(ctx context.Context, pair models.TokenPair) {
	for _, token := range []models.IssuedToken{pair.Access, pair.Refresh} {
		if err := s.tokens.Revoke(ctx, token.Value); err != nil {
			s.logger.Warn("Can't revoke token pair", "kind", token.Kind, "subject", pair.Subject, "error", err)
		}
	}
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("dummy-password")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

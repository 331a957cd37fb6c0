package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/authsession/internal/models"
	"github.com/nkiryanov/authsession/internal/repository"
	"github.com/nkiryanov/authsession/internal/service/auth"
)

// Revokes every session of the subject
type sessionRevoker interface {
	RevokeAll(ctx context.Context, subject string) (int, error)
}

type UserService struct {
	hasher   auth.PasswordHasher
	userRepo repository.UserRepo
	sessions sessionRevoker
}

func NewService(hasher auth.PasswordHasher, userRepo repository.UserRepo, sessions sessionRevoker) *UserService {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}

	return &UserService{
		hasher:   hasher,
		userRepo: userRepo,
		sessions: sessions,
	}
}

// Register new user
// If email is taken returns apperrors.ErrUserAlreadyExists
func (s *UserService) CreateUser(ctx context.Context, email string, username string, password string) (models.User, error) {
	var user models.User
	if password == "" {
		return user, errors.New("password must not be empty")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err = s.userRepo.CreateUser(ctx, models.NormalizeEmail(email), username, hash)
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.userRepo.GetUserByID(ctx, userID)
}

// Update user fields
// New password is hashed and every session of the user is revoked: tokens issued
// with the old password must not outlive it
func (s *UserService) UpdateUser(ctx context.Context, userID uuid.UUID, changes models.UserChanges) (models.User, error) {
	var upd models.UserUpdate

	if changes.Email != nil {
		email := models.NormalizeEmail(*changes.Email)
		upd.Email = &email
	}
	upd.Username = changes.Username

	if changes.Password != nil {
		if *changes.Password == "" {
			return models.User{}, errors.New("password must not be empty")
		}
		hash, err := s.hasher.Hash(*changes.Password)
		if err != nil {
			return models.User{}, fmt.Errorf("can't use this as password, Err: %w", err)
		}
		upd.HashedPassword = &hash
	}

	user, err := s.userRepo.UpdateUser(ctx, userID, upd)
	if err != nil {
		return user, fmt.Errorf("can't update user. Err: %w", err)
	}

	if upd.HashedPassword != nil {
		_, err = s.sessions.RevokeAll(ctx, userID.String())
		if err != nil {
			return user, fmt.Errorf("password changed, but sessions are not revoked. Err: %w", err)
		}
	}

	return user, nil
}

// Revoke all user sessions and delete the user
// Sessions go first: if revocation fails the user stays and may retry
func (s *UserService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.sessions.RevokeAll(ctx, userID.String())
	if err != nil {
		return fmt.Errorf("can't revoke user sessions. Err: %w", err)
	}

	err = s.userRepo.DeleteUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("can't delete user. Err: %w", err)
	}

	return nil
}

package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/models"
	"github.com/nkiryanov/authsession/internal/repository"
)

// UserRepo is a dev-only fallback when no database is configured
type UserRepo struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]models.User
	byEmail map[string]uuid.UUID
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		users:   make(map[uuid.UUID]models.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

var _ repository.UserRepo = (*UserRepo)(nil)

func (r *UserRepo) CreateUser(ctx context.Context, email string, username string, hashedPassword string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}

	key := strings.ToLower(email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[key]; ok {
		return models.User{}, apperrors.ErrUserAlreadyExists
	}

	user := models.User{
		ID:             uuid.New(),
		CreatedAt:      time.Now().UTC(),
		Email:          email,
		Username:       username,
		HashedPassword: hashedPassword,
	}
	r.users[user.ID] = user
	r.byEmail[key] = user.ID

	return user, nil
}

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return user, nil
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return r.users[id], nil
}

func (r *UserRepo) UpdateUser(ctx context.Context, userID uuid.UUID, upd models.UserUpdate) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}

	if upd.Email != nil {
		key := strings.ToLower(*upd.Email)
		if id, taken := r.byEmail[key]; taken && id != userID {
			return models.User{}, apperrors.ErrUserAlreadyExists
		}
		delete(r.byEmail, strings.ToLower(user.Email))
		r.byEmail[key] = userID
		user.Email = *upd.Email
	}
	if upd.Username != nil {
		user.Username = *upd.Username
	}
	if upd.HashedPassword != nil {
		user.HashedPassword = *upd.HashedPassword
	}

	r.users[userID] = user
	return user, nil
}

func (r *UserRepo) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	delete(r.users, userID)
	delete(r.byEmail, strings.ToLower(user.Email))

	return nil
}

func (r *UserRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}

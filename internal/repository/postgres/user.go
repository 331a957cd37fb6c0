package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/models"
	"github.com/nkiryanov/authsession/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

var _ repository.UserRepo = (*UserRepo)(nil)

const createUser = `-- name: CreateUser
INSERT INTO users (id, email, username, password_hash)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, email, username, password_hash
`

func (r *UserRepo) CreateUser(ctx context.Context, email string, username string, hashedPassword string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser, uuid.New(), email, username, hashedPassword)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user, apperrors.ErrUserAlreadyExists
		}

		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: getUserByID
SELECT id, created_at, email, username, password_hash FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows)
}

const getUserByEmail = `-- name: getUserByEmail
SELECT id, created_at, email, username, password_hash FROM users
WHERE email = $1
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	return collectUser(rows)
}

const updateUser = `-- name: updateUser
UPDATE users SET
    email = COALESCE($2, email),
    username = COALESCE($3, username),
    password_hash = COALESCE($4, password_hash)
WHERE id = $1
RETURNING id, created_at, email, username, password_hash
`

func (r *UserRepo) UpdateUser(ctx context.Context, id uuid.UUID, upd models.UserUpdate) (models.User, error) {
	rows, _ := r.DB.Query(ctx, updateUser, id, upd.Email, upd.Username, upd.HashedPassword)
	user, err := collectUser(rows)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return user, apperrors.ErrUserAlreadyExists
	}

	return user, err
}

const deleteUser = `-- name: deleteUser
DELETE FROM users
WHERE id = $1
`

func (r *UserRepo) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteUser, id)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

func (r *UserRepo) Ping(ctx context.Context) error {
	_, err := r.DB.Exec(ctx, "SELECT 1")
	return err
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Email, &u.Username, &u.HashedPassword)
	return u, err
}

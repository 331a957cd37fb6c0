package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/repository"
)

// SessionStore keeps sessions in postgres
// Used when redis is not deployed. Expired rows are pruned on Put for the same subject
type SessionStore struct {
	DB  DBTX
	now func() time.Time
}

func NewSessionStore(db DBTX) *SessionStore {
	return &SessionStore{DB: db, now: time.Now}
}

var _ repository.SessionStore = (*SessionStore)(nil)

const putSession = `-- name: Put session and prune expired sessions of subject
WITH pruned AS (
	DELETE FROM sessions
	WHERE subject = $2 AND expires_at <= $4 AND digest <> $1
)
INSERT INTO sessions (digest, subject, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (digest) DO UPDATE
SET subject = EXCLUDED.subject, expires_at = EXCLUDED.expires_at
`

func (s *SessionStore) Put(ctx context.Context, token string, subject string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	now := s.now()
	_, err := s.DB.Exec(ctx, putSession, repository.TokenDigest(token), subject, now.Add(ttl), now)
	if err != nil {
		return storeError(err)
	}

	return nil
}

const sessionExists = `-- name: Check live session exists
SELECT EXISTS (
	SELECT 1 FROM sessions
	WHERE digest = $1 AND expires_at > $2
)
`

func (s *SessionStore) Exists(ctx context.Context, token string) (bool, error) {
	rows, _ := s.DB.Query(ctx, sessionExists, repository.TokenDigest(token), s.now())
	exists, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, storeError(err)
	}

	return exists, nil
}

const consumeSession = `-- name: Delete session and tell if it was live
DELETE FROM sessions
WHERE digest = $1
RETURNING expires_at > $2
`

// Consume deletes the row in one statement
// Concurrent deletes of the same row are serialized by the row lock, the loser sees no rows
func (s *SessionStore) Consume(ctx context.Context, token string) (bool, error) {
	rows, _ := s.DB.Query(ctx, consumeSession, repository.TokenDigest(token), s.now())
	live, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])

	switch {
	case err == nil:
		return live, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	default:
		return false, storeError(err)
	}
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	_, err := s.Consume(ctx, token)
	return err
}

const deleteSubjectSessions = `-- name: Delete all sessions of subject
WITH deleted AS (
	DELETE FROM sessions
	WHERE subject = $1
	RETURNING expires_at
)
SELECT count(*) FILTER (WHERE expires_at > $2) FROM deleted
`

func (s *SessionStore) DeleteAllForSubject(ctx context.Context, subject string) (int, error) {
	rows, _ := s.DB.Query(ctx, deleteSubjectSessions, subject, s.now())
	removed, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, storeError(err)
	}

	return int(removed), nil
}

func (s *SessionStore) Ping(ctx context.Context) error {
	if _, err := s.DB.Exec(ctx, "SELECT 1"); err != nil {
		return storeError(err)
	}
	return nil
}

// Close is noop: the pool is owned by the caller
func (s *SessionStore) Close() error { return nil }

func storeError(err error) error {
	return fmt.Errorf("%w: db error: %w", apperrors.ErrStoreUnavailable, err)
}

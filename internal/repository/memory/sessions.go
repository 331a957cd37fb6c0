package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/repository"
)

type session struct {
	subject   string
	expiresAt time.Time
}

// SessionStore keeps sessions in process memory
// Dev-only: records are lost on restart and not shared between instances
// Expired records are removed lazily when touched and on every Put for the same subject
type SessionStore struct {
	mu        sync.Mutex
	sessions  map[string]session             // digest -> session
	bySubject map[string]map[string]struct{} // subject -> set of digests

	now func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:  make(map[string]session),
		bySubject: make(map[string]map[string]struct{}),
		now:       time.Now,
	}
}

var _ repository.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) Put(ctx context.Context, token string, subject string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return storeError(err)
	}
	if ttl <= 0 {
		return nil
	}

	digest := repository.TokenDigest(token)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Same token rebound to other subject, drop it from the old index
	if old, ok := s.sessions[digest]; ok && old.subject != subject {
		s.unindex(old.subject, digest)
	}

	s.sessions[digest] = session{subject: subject, expiresAt: now.Add(ttl)}

	index := s.bySubject[subject]
	if index == nil {
		index = make(map[string]struct{})
		s.bySubject[subject] = index
	}
	index[digest] = struct{}{}

	// Prune expired siblings
	for d := range index {
		if sess, ok := s.sessions[d]; !ok || !now.Before(sess.expiresAt) {
			delete(s.sessions, d)
			delete(index, d)
		}
	}

	return nil
}

func (s *SessionStore) Exists(ctx context.Context, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storeError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.get(repository.TokenDigest(token))
	return ok, nil
}

func (s *SessionStore) Consume(ctx context.Context, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storeError(err)
	}

	digest := repository.TokenDigest(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.get(digest)
	if !ok {
		return false, nil
	}

	delete(s.sessions, digest)
	s.unindex(sess.subject, digest)
	return true, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	_, err := s.Consume(ctx, token)
	return err
}

func (s *SessionStore) DeleteAllForSubject(ctx context.Context, subject string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeError(err)
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for digest := range s.bySubject[subject] {
		if sess, ok := s.sessions[digest]; ok {
			if now.Before(sess.expiresAt) {
				removed++
			}
			delete(s.sessions, digest)
		}
	}
	delete(s.bySubject, subject)

	return removed, nil
}

func (s *SessionStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return storeError(err)
	}
	return nil
}

// Close is noop for in-memory store
func (s *SessionStore) Close() error { return nil }

// get returns live session and removes it if expired
// Must be called with mu held
func (s *SessionStore) get(digest string) (session, bool) {
	sess, ok := s.sessions[digest]
	if !ok {
		return session{}, false
	}

	if !s.now().Before(sess.expiresAt) {
		delete(s.sessions, digest)
		s.unindex(sess.subject, digest)
		return session{}, false
	}

	return sess, true
}

// Must be called with mu held
func (s *SessionStore) unindex(subject string, digest string) {
	index := s.bySubject[subject]
	delete(index, digest)
	if len(index) == 0 {
		delete(s.bySubject, subject)
	}
}

// Context errors are the only failures of in-memory store
func storeError(err error) error {
	return fmt.Errorf("%w: %w", apperrors.ErrStoreUnavailable, err)
}

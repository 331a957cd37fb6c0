package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/logger"
	"github.com/nkiryanov/authsession/internal/metrics"
	"github.com/nkiryanov/authsession/internal/repository/memory"
	"github.com/nkiryanov/authsession/internal/service/auth"
	"github.com/nkiryanov/authsession/internal/service/auth/codec"
	"github.com/nkiryanov/authsession/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authsession/internal/service/user"
)

// Session store that may be switched off
type switchableStore struct {
	*memory.SessionStore
	down atomic.Bool
}

func (s *switchableStore) Put(ctx context.Context, token string, subject string, ttl time.Duration) error {
	if s.down.Load() {
		return apperrors.ErrStoreUnavailable
	}
	return s.SessionStore.Put(ctx, token, subject, ttl)
}

func (s *switchableStore) Exists(ctx context.Context, token string) (bool, error) {
	if s.down.Load() {
		return false, apperrors.ErrStoreUnavailable
	}
	return s.SessionStore.Exists(ctx, token)
}

func (s *switchableStore) Consume(ctx context.Context, token string) (bool, error) {
	if s.down.Load() {
		return false, apperrors.ErrStoreUnavailable
	}
	return s.SessionStore.Consume(ctx, token)
}

func (s *switchableStore) Delete(ctx context.Context, token string) error {
	if s.down.Load() {
		return apperrors.ErrStoreUnavailable
	}
	return s.SessionStore.Delete(ctx, token)
}

func (s *switchableStore) DeleteAllForSubject(ctx context.Context, subject string) (int, error) {
	if s.down.Load() {
		return 0, apperrors.ErrStoreUnavailable
	}
	return s.SessionStore.DeleteAllForSubject(ctx, subject)
}

func (s *switchableStore) Ping(ctx context.Context) error {
	if s.down.Load() {
		return apperrors.ErrStoreUnavailable
	}
	return s.SessionStore.Ping(ctx)
}

type testServer struct {
	URL     string
	store   *switchableStore
	users   *user.UserService
	metrics *metrics.Prometheus
}

// Run http server with production services over in-memory stores
func newTestServer(t *testing.T) *testServer {
	c, err := codec.New(codec.Config{SecretKey: "test-secret-key"})
	require.NoError(t, err)

	rec := metrics.NewPrometheus()
	store := &switchableStore{SessionStore: memory.NewSessionStore()}
	tokens, err := tokenmanager.New(tokenmanager.Config{Metrics: rec}, c, store)
	require.NoError(t, err, "token manager should be created without errors")

	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}
	userRepo := memory.NewUserRepo()

	authService, err := auth.NewService(auth.Config{Hasher: hasher}, tokens, userRepo)
	require.NoError(t, err, "auth service starting error")
	userService := user.NewService(hasher, userRepo, tokens)

	srv := httptest.NewServer(NewRouter(authService, userService, rec, logger.NewNoOpLogger(), tokens, userRepo))
	t.Cleanup(srv.Close)

	return &testServer{URL: srv.URL, store: store, users: userService, metrics: rec}
}

// Send request and return status code and body
func (s *testServer) do(t *testing.T, method string, path string, access string, body string) (int, string) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(respBody)
}

func Test_chain(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { order = append(order, "handler") })

	chain(h, mw("first"), mw("second")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"first", "second", "handler"}, order)
}

func Test_Router(t *testing.T) {
	t.Parallel()

	t.Run("method not allowed", func(t *testing.T) {
		srv := newTestServer(t)

		code, _ := srv.do(t, http.MethodGet, "/auth/login", "", "")

		require.Equal(t, http.StatusMethodNotAllowed, code)
	})

	t.Run("unknown path", func(t *testing.T) {
		srv := newTestServer(t)

		code, _ := srv.do(t, http.MethodGet, "/api/user/orders", "", "")

		require.Equal(t, http.StatusNotFound, code)
	})

	t.Run("healthz ok", func(t *testing.T) {
		srv := newTestServer(t)

		code, body := srv.do(t, http.MethodGet, "/healthz", "", "")

		require.Equal(t, http.StatusOK, code)
		require.JSONEq(t, `{"status": "ok"}`, body)
	})

	t.Run("healthz store down", func(t *testing.T) {
		srv := newTestServer(t)
		srv.store.down.Store(true)

		code, body := srv.do(t, http.MethodGet, "/healthz", "", "")

		require.Equal(t, http.StatusServiceUnavailable, code)
		require.JSONEq(t, `{"error": "service_error", "message": "Service unavailable"}`, body)
	})

	t.Run("metrics exposed", func(t *testing.T) {
		srv := newTestServer(t)
		code, _ := srv.do(t, http.MethodGet, "/healthz", "", "")
		require.Equal(t, http.StatusOK, code)

		code, body := srv.do(t, http.MethodGet, "/metrics", "", "")

		require.Equal(t, http.StatusOK, code)
		require.Contains(t, body, `authsession_http_request_duration_seconds_count{method="GET",route="GET /healthz",status="200"} 1`)
	})
}

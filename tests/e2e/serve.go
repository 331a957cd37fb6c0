package e2e

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/authsession/internal/handlers"
	"github.com/nkiryanov/authsession/internal/logger"
	"github.com/nkiryanov/authsession/internal/metrics"
	"github.com/nkiryanov/authsession/internal/repository"
	"github.com/nkiryanov/authsession/internal/service/auth"
	"github.com/nkiryanov/authsession/internal/service/auth/codec"
	"github.com/nkiryanov/authsession/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authsession/internal/service/user"
)

type Server struct {
	URL     string
	Metrics *metrics.Prometheus
}

// Run http server with production services over the given stores
func Serve(t *testing.T, sessions repository.SessionStore, users repository.UserRepo, codecCfg codec.Config) Server {
	if codecCfg.SecretKey == "" {
		codecCfg.SecretKey = "test-secret"
	}
	c, err := codec.New(codecCfg)
	require.NoError(t, err)

	rec := metrics.NewPrometheus()
	tokenManager, err := tokenmanager.New(tokenmanager.Config{Metrics: rec}, c, sessions)
	require.NoError(t, err, "token manager should be created without errors")

	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}
	as, err := auth.NewService(auth.Config{Hasher: hasher}, tokenManager, users)
	require.NoError(t, err, "auth service starting error")
	us := user.NewService(hasher, users, tokenManager)

	router := handlers.NewRouter(as, us, rec, logger.NewNoOpLogger(), tokenManager, users)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return Server{URL: srv.URL, Metrics: rec}
}

// Send request and return status code and body
func (s Server) Do(t *testing.T, method string, path string, access string, body string) (int, string) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(respBody)
}

package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_UserHandler(t *testing.T) {
	t.Parallel()

	t.Run("me ok", func(t *testing.T) {
		srv := newTestServer(t)
		pair := srv.login(t)

		code, body := srv.do(t, http.MethodGet, "/users/me", pair.AccessToken, "")

		require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
		var me map[string]any
		require.NoError(t, json.Unmarshal([]byte(body), &me))
		require.Equal(t, "nk@example.com", me["email"])
		require.Equal(t, "nk", me["username"])
		require.NotEmpty(t, me["id"])
		require.NotEmpty(t, me["created_at"])
	})

	t.Run("me with refresh token fail", func(t *testing.T) {
		srv := newTestServer(t)
		pair := srv.login(t)

		code, _ := srv.do(t, http.MethodGet, "/users/me", pair.RefreshToken, "")

		require.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("me store down", func(t *testing.T) {
		srv := newTestServer(t)
		pair := srv.login(t)
		srv.store.down.Store(true)

		code, _ := srv.do(t, http.MethodGet, "/users/me", pair.AccessToken, "")

		require.Equal(t, http.StatusInternalServerError, code, "store failure must not look like bad credentials")
	})

	t.Run("update me", func(t *testing.T) {
		srv := newTestServer(t)
		pair := srv.login(t)

		code, body := srv.do(t, http.MethodPatch, "/users/me", pair.AccessToken, `{"username": "renamed", "email": "New@Example.com"}`)

		require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
		var me map[string]any
		require.NoError(t, json.Unmarshal([]byte(body), &me))
		require.Equal(t, "new@example.com", me["email"])
		require.Equal(t, "renamed", me["username"])

		code, _ = srv.do(t, http.MethodGet, "/users/me", pair.AccessToken, "")
		require.Equal(t, http.StatusOK, code, "profile change keeps the session")
	})

	t.Run("update me password", func(t *testing.T) {
		srv := newTestServer(t)
		pair := srv.login(t)

		code, body := srv.do(t, http.MethodPatch, "/users/me", pair.AccessToken, `{"password": "AnotherStrongPassword"}`)
		require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
		require.NotContains(t, body, "password")

		code, _ = srv.do(t, http.MethodGet, "/users/me", pair.AccessToken, "")
		require.Equal(t, http.StatusUnauthorized, code, "password change revokes sessions")
		code, _ = srv.do(t, http.MethodPost, "/auth/refresh", "", `{"refresh_token": "`+pair.RefreshToken+`"}`)
		require.Equal(t, http.StatusUnauthorized, code)

		code, _ = srv.do(t, http.MethodPost, "/auth/login", "", `{"email": "nk@example.com", "password": "StrongEnoughPassword"}`)
		require.Equal(t, http.StatusUnauthorized, code, "old password does not work")
		code, _ = srv.do(t, http.MethodPost, "/auth/login", "", `{"email": "nk@example.com", "password": "AnotherStrongPassword"}`)
		require.Equal(t, http.StatusOK, code)
	})

	t.Run("update me taken email", func(t *testing.T) {
		srv := newTestServer(t)
		pair := srv.login(t)
		code, _ := srv.do(t, http.MethodPost, "/auth/register", "", `{"email": "other@example.com", "username": "other", "password": "StrongEnoughPassword"}`)
		require.Equal(t, http.StatusCreated, code)

		code, body := srv.do(t, http.MethodPatch, "/users/me", pair.AccessToken, `{"email": "other@example.com"}`)

		require.Equal(t, http.StatusConflict, code)
		require.JSONEq(t, `{"error": "service_error", "message": "User already exists"}`, body)
	})

	t.Run("update me invalid", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"nothing to update", `{}`},
			{"blank username", `{"username": "  "}`},
			{"invalid email", `{"email": "not-email"}`},
			{"short password", `{"password": "short"}`},
		}

		srv := newTestServer(t)
		pair := srv.login(t)

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				code, body := srv.do(t, http.MethodPatch, "/users/me", pair.AccessToken, tt.body)

				require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
			})
		}
	})

	t.Run("update me without auth", func(t *testing.T) {
		srv := newTestServer(t)

		code, _ := srv.do(t, http.MethodPatch, "/users/me", "", `{"username": "renamed"}`)

		require.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("delete me", func(t *testing.T) {
		srv := newTestServer(t)
		pair := srv.login(t)

		code, body := srv.do(t, http.MethodDelete, "/users/me", pair.AccessToken, "")
		require.Equal(t, http.StatusNoContent, code)
		require.Empty(t, body)

		code, _ = srv.do(t, http.MethodGet, "/users/me", pair.AccessToken, "")
		require.Equal(t, http.StatusUnauthorized, code)
		code, _ = srv.do(t, http.MethodPost, "/auth/refresh", "", `{"refresh_token": "`+pair.RefreshToken+`"}`)
		require.Equal(t, http.StatusUnauthorized, code)
		code, _ = srv.do(t, http.MethodPost, "/auth/login", "", `{"email": "nk@example.com", "password": "StrongEnoughPassword"}`)
		require.Equal(t, http.StatusUnauthorized, code)
	})
}

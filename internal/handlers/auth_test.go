package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type pairBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func decodePair(t *testing.T, body string) pairBody {
	var pair pairBody
	require.NoError(t, json.Unmarshal([]byte(body), &pair), "not a token pair: %s", body)
	return pair
}

// Register user and login, return issued pair
func (s *testServer) login(t *testing.T) pairBody {
	_, err := s.users.CreateUser(t.Context(), "nk@example.com", "nk", "StrongEnoughPassword")
	require.NoError(t, err)

	code, body := s.do(t, http.MethodPost, "/auth/login", "", `{"email": "nk@example.com", "password": "StrongEnoughPassword"}`)
	require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)

	return decodePair(t, body)
}

func Test_AuthHandler(t *testing.T) {
	t.Parallel()

	t.Run("login ok", func(t *testing.T) {
		srv := newTestServer(t)

		pair := srv.login(t)

		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
		require.NotEqual(t, pair.AccessToken, pair.RefreshToken)
		require.Equal(t, "bearer", pair.TokenType)
	})

	t.Run("login failed", func(t *testing.T) {
		tests := []struct {
			name string
			data string
		}{
			{"wrong password", `{"email": "nk@example.com", "password": "WrongPassword"}`},
			{"unknown user", `{"email": "who@example.com", "password": "StrongEnoughPassword"}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				srv := newTestServer(t)
				_, err := srv.users.CreateUser(t.Context(), "nk@example.com", "nk", "StrongEnoughPassword")
				require.NoError(t, err)

				code, body := srv.do(t, http.MethodPost, "/auth/login", "", tt.data)

				require.Equalf(t, http.StatusUnauthorized, code, "not expected code. Body: %s", body)
				require.JSONEq(t, `
					{
						"error": "service_error",
						"message": "Incorrect email or password"
					}`, body)
			})
		}
	})

	t.Run("login validation failed", func(t *testing.T) {
		srv := newTestServer(t)

		code, body := srv.do(t, http.MethodPost, "/auth/login", "", `{"email": "nk@example.com"}`)

		require.Equal(t, http.StatusBadRequest, code)
		require.JSONEq(t, `
			{
				"error": "validation_failed",
				"message": "Request validation failed",
				"fields": {"password": "This field is required"}
			}`, body)
	})

	t.Run("login store down", func(t *testing.T) {
		srv := newTestServer(t)
		_, err := srv.users.CreateUser(t.Context(), "nk@example.com", "nk", "StrongEnoughPassword")
		require.NoError(t, err)
		srv.store.down.Store(true)

		code, _ := srv.do(t, http.MethodPost, "/auth/login", "", `{"email": "nk@example.com", "password": "StrongEnoughPassword"}`)

		require.Equal(t, http.StatusInternalServerError, code)
	})

	t.Run("register ok", func(t *testing.T) {
		srv := newTestServer(t)

		code, body := srv.do(t, http.MethodPost, "/auth/register", "", `{"email": "NK@example.com", "username": "nk", "password": "StrongEnoughPassword"}`)

		require.Equalf(t, http.StatusCreated, code, "not expected code. Body: %s", body)
		var user struct {
			ID       string `json:"id"`
			Email    string `json:"email"`
			Username string `json:"username"`
			Password string `json:"password"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &user))
		require.NotEmpty(t, user.ID)
		require.Equal(t, "nk@example.com", user.Email)
		require.Equal(t, "nk", user.Username)
		require.NotContains(t, body, "password", "password hash must not be returned")
	})

	t.Run("register existed user fails", func(t *testing.T) {
		srv := newTestServer(t)
		_, err := srv.users.CreateUser(t.Context(), "nk@example.com", "nk", "StrongEnoughPassword")
		require.NoError(t, err)

		code, body := srv.do(t, http.MethodPost, "/auth/register", "", `{"email": "nk@example.com", "username": "other", "password": "StrongEnoughPassword"}`)

		require.Equalf(t, http.StatusConflict, code, "not expected code. Body: %s", body)
		require.JSONEq(t, `
			{
				"error": "service_error",
				"message": "User already exists"
			}`, body)
	})

	t.Run("register validation failed", func(t *testing.T) {
		srv := newTestServer(t)

		code, body := srv.do(t, http.MethodPost, "/auth/register", "", `{"email": "not-an-email", "username": "  ", "password": "short"}`)

		require.Equal(t, http.StatusBadRequest, code)
		require.JSONEq(t, `
			{
				"error": "validation_failed",
				"message": "Request validation failed",
				"fields": {
					"email": "Invalid email address",
					"username": "Value must not be blank",
					"password": "Value is too short (minimum 8)"
				}
			}`, body)
	})

	t.Run("refresh token ok", func(t *testing.T) {
		srv := newTestServer(t)
		first := srv.login(t)

		code, body := srv.do(t, http.MethodPost, "/auth/refresh", "", `{"refresh_token": "`+first.RefreshToken+`"}`)

		require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
		second := decodePair(t, body)
		require.NotEqual(t, first.RefreshToken, second.RefreshToken, "refresh token should be changed after refresh")
		require.NotEqual(t, first.AccessToken, second.AccessToken, "access token should be changed after refresh")
	})

	t.Run("refresh twice fail", func(t *testing.T) {
		srv := newTestServer(t)
		pair := srv.login(t)
		data := `{"refresh_token": "` + pair.RefreshToken + `"}`

		code, body := srv.do(t, http.MethodPost, "/auth/refresh", "", data)
		require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)

		code, body = srv.do(t, http.MethodPost, "/auth/refresh", "", data)
		require.Equalf(t, http.StatusUnauthorized, code, "not expected code. Body: %s", body)
		require.JSONEq(t, `
			{
				"error": "service_error",
				"message": "Invalid or expired refresh token"
			}`, body)
	})

	t.Run("refresh with access token fail", func(t *testing.T) {
		srv := newTestServer(t)
		pair := srv.login(t)

		code, _ := srv.do(t, http.MethodPost, "/auth/refresh", "", `{"refresh_token": "`+pair.AccessToken+`"}`)

		require.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("refresh store down is not unauthorized", func(t *testing.T) {
		srv := newTestServer(t)
		pair := srv.login(t)
		srv.store.down.Store(true)

		code, body := srv.do(t, http.MethodPost, "/auth/refresh", "", `{"refresh_token": "`+pair.RefreshToken+`"}`)

		require.Equal(t, http.StatusInternalServerError, code)
		require.JSONEq(t, `{"error": "service_error", "message": "Internal server error"}`, body)
	})

	t.Run("logout", func(t *testing.T) {
		srv := newTestServer(t)
		pair := srv.login(t)

		code, body := srv.do(t, http.MethodPost, "/auth/logout", "", `{"token": "`+pair.AccessToken+`"}`)
		require.Equal(t, http.StatusOK, code)
		require.JSONEq(t, `{"message": "Successfully logged out"}`, body)

		code, _ = srv.do(t, http.MethodGet, "/users/me", pair.AccessToken, "")
		require.Equal(t, http.StatusUnauthorized, code, "access token should be revoked")
	})

	t.Run("logout with garbage ok", func(t *testing.T) {
		srv := newTestServer(t)

		code, body := srv.do(t, http.MethodPost, "/auth/logout", "", `{"token": "garbage"}`)

		require.Equal(t, http.StatusOK, code)
		require.JSONEq(t, `{"message": "Successfully logged out"}`, body)
	})

	t.Run("logout all", func(t *testing.T) {
		srv := newTestServer(t)
		first := srv.login(t)
		code, body := srv.do(t, http.MethodPost, "/auth/login", "", `{"email": "nk@example.com", "password": "StrongEnoughPassword"}`)
		require.Equal(t, http.StatusOK, code)
		second := decodePair(t, body)

		code, body = srv.do(t, http.MethodPost, "/auth/logout-all", second.AccessToken, "")
		require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
		require.JSONEq(t, `{"message": "Successfully logged out from all sessions", "revoked": 4}`, body)

		for _, pair := range []pairBody{first, second} {
			code, _ = srv.do(t, http.MethodGet, "/users/me", pair.AccessToken, "")
			require.Equal(t, http.StatusUnauthorized, code)
			code, _ = srv.do(t, http.MethodPost, "/auth/refresh", "", `{"refresh_token": "`+pair.RefreshToken+`"}`)
			require.Equal(t, http.StatusUnauthorized, code)
		}
	})

	t.Run("logout all requires auth", func(t *testing.T) {
		srv := newTestServer(t)

		code, body := srv.do(t, http.MethodPost, "/auth/logout-all", "", "")

		require.Equal(t, http.StatusUnauthorized, code)
		require.JSONEq(t, `{"error": "service_error", "message": "Unauthorized"}`, body)
	})
}

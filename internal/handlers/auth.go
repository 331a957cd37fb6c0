package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/handlers/render"
	"github.com/nkiryanov/authsession/internal/handlers/userctx"
	"github.com/nkiryanov/authsession/internal/logger"
	"github.com/nkiryanov/authsession/internal/models"
)

type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func newTokenPairResponse(pair models.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      pair.Access.Value,
		RefreshToken:     pair.Refresh.Value,
		TokenType:        pair.TokenType,
		AccessExpiresAt:  pair.Access.ExpiresAt,
		RefreshExpiresAt: pair.Refresh.ExpiresAt,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func handleLogin(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Login(r.Context(), data.Email, data.Password)
		switch {
		case err == nil:
			render.JSON(w, newTokenPairResponse(pair))
		case errors.Is(err, apperrors.ErrCredentialInvalid):
			render.ServiceError(w, "Incorrect email or password", http.StatusUnauthorized)
		default:
			l.Error("Failed to login", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleRegister(userService userService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email,max=254"`
		Username string `json:"username" validate:"required,notblank,max=50"`
		Password string `json:"password" validate:"required,min=8,max=256"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, err := userService.CreateUser(r.Context(), data.Email, data.Username, data.Password)
		switch {
		case err == nil:
			render.JSONWithStatus(w, newUserResponse(user), http.StatusCreated)
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
		default:
			l.Error("Failed to register user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleTokenRefresh(authService authService, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Refresh(r.Context(), data.RefreshToken)
		switch {
		case err == nil:
			render.JSON(w, newTokenPairResponse(pair))
		case errors.Is(err, apperrors.ErrTokenInvalid):
			render.ServiceError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		default:
			l.Error("Failed to refresh tokens", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// Revoke the token from body. Invalid token is not an error
func handleLogout(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Token string `json:"token" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = authService.Logout(r.Context(), data.Token)
		if err != nil {
			l.Error("Failed to logout", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, messageResponse{Message: "Successfully logged out"})
	})
}

func handleLogoutAll(authService authService, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
		Revoked int    `json:"revoked"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		n, err := authService.LogoutAll(r.Context(), user.ID)
		if err != nil {
			l.Error("Failed to logout everywhere", "error", err, "user_id", user.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{Message: "Successfully logged out from all sessions", Revoked: n})
	})
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/handlers/render"
	"github.com/nkiryanov/authsession/internal/handlers/userctx"
	"github.com/nkiryanov/authsession/internal/models"
)

type authService interface {
	Authenticate(ctx context.Context, access string) (models.User, error)
}

// Extract token from 'Authorization: Bearer <token>' header
// Scheme is case insensitive
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := as.Authenticate(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, apperrors.ErrTokenInvalid):
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			default:
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authsession/internal/handlers/middleware"
	"github.com/nkiryanov/authsession/internal/logger"
	"github.com/nkiryanov/authsession/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	userService userService,
	metrics metricsExporter,
	logger logger.Logger,
	checks ...pinger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService)

	mux := http.NewServeMux()

	mux.Handle("POST /auth/login", handleLogin(authService, logger))
	mux.Handle("POST /auth/register", handleRegister(userService, logger))
	mux.Handle("POST /auth/refresh", handleTokenRefresh(authService, logger))
	mux.Handle("POST /auth/logout", handleLogout(authService, logger))
	mux.Handle("POST /auth/logout-all", withAuth(handleLogoutAll(authService, logger)))

	mux.Handle("GET /users/me", withAuth(handleUserMe()))
	mux.Handle("PATCH /users/me", withAuth(handleUserUpdate(userService, logger)))
	mux.Handle("DELETE /users/me", withAuth(handleUserDelete(userService, logger)))

	mux.Handle("GET /healthz", handleHealth(logger, checks...))
	mux.Handle("GET /metrics", metrics.Handler())

	handler := chain(mux,
		middleware.LoggerMiddleware(logger),
		middleware.MetricsMiddleware(metrics),
	)

	return handler
}

type authService interface {
	// Login user with email and password
	// Has to return apperrors.ErrCredentialInvalid whatever was wrong
	Login(ctx context.Context, email string, password string) (models.TokenPair, error)

	// Exchange refresh token for a new pair
	// Has to return apperrors.ErrTokenInvalid if token can't be used
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, userID uuid.UUID) (int, error)

	// Resolve access token to its user
	Authenticate(ctx context.Context, access string) (models.User, error)
}

type userService interface {
	// Has to return apperrors.ErrUserAlreadyExists if email is taken
	CreateUser(ctx context.Context, email string, username string, password string) (models.User, error)

	// Has to return apperrors.ErrUserAlreadyExists if new email is taken
	UpdateUser(ctx context.Context, userID uuid.UUID, changes models.UserChanges) (models.User, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

type metricsExporter interface {
	ObserveHTTP(method string, route string, status int, took time.Duration)
	Handler() http.Handler
}

type pinger interface {
	Ping(ctx context.Context) error
}

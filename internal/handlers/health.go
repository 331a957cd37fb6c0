package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nkiryanov/authsession/internal/handlers/render"
	"github.com/nkiryanov/authsession/internal/logger"
)

const healthTimeout = 2 * time.Second

// Healthy only if every dependency answers
func handleHealth(l logger.Logger, checks ...pinger) http.Handler {
	type response struct {
		Status string `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		for _, check := range checks {
			if err := check.Ping(ctx); err != nil {
				l.Warn("Health check failed", "error", err)
				render.ServiceError(w, "Service unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		render.JSON(w, response{Status: "ok"})
	})
}

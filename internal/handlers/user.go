package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authsession/internal/apperrors"
	"github.com/nkiryanov/authsession/internal/handlers/render"
	"github.com/nkiryanov/authsession/internal/handlers/userctx"
	"github.com/nkiryanov/authsession/internal/logger"
	"github.com/nkiryanov/authsession/internal/models"
)

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Username: u.Username, CreatedAt: u.CreatedAt}
}

func handleUserMe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())
		render.JSON(w, newUserResponse(user))
	})
}

// Change profile of the caller
// Password change revokes every session, the client has to login again
func handleUserUpdate(userService userService, l logger.Logger) http.Handler {
	type request struct {
		Email    *string `json:"email" validate:"omitnil,email,max=254"`
		Username *string `json:"username" validate:"omitnil,notblank,max=50"`
		Password *string `json:"password" validate:"omitnil,min=8,max=256"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		changes := models.UserChanges{Email: req.Email, Username: req.Username, Password: req.Password}
		if changes.Empty() {
			render.ServiceError(w, "Nothing to update", http.StatusBadRequest)
			return
		}

		updated, err := userService.UpdateUser(r.Context(), user.ID, changes)
		switch {
		case err == nil:
			render.JSON(w, newUserResponse(updated))
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("Failed to update user", "error", err, "user_id", user.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// Delete the caller and revoke every session of it
func handleUserDelete(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		err := userService.DeleteUser(r.Context(), user.ID)
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("Failed to delete user", "error", err, "user_id", user.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

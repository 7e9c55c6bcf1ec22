// Package resetpassword implements the HTTP handler that completes a
// password reset.
package resetpassword

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/byonco/webgate/internal/http/response"
	"github.com/byonco/webgate/internal/lib/sl"
	"github.com/byonco/webgate/internal/services/auth"
)

// Request is the reset-completion payload.
type Request struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// Service is the authentication surface the handler needs.
type Service interface {
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Handler handles POST /api/auth/reset-password.
type Handler struct {
	log      *slog.Logger
	auth     Service
	validate *validator.Validate
}

// New creates a reset-password Handler.
func New(log *slog.Logger, auth Service) *Handler {
	return &Handler{
		log:      log,
		auth:     auth,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Complete a password reset
// @Description Consumes an unexpired reset token and replaces the password.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Reset token and new password"
// @Success 200 {object} response.Response "Password replaced"
// @Failure 400 {object} response.ErrorResponse "Malformed JSON"
// @Failure 410 {object} response.ErrorResponse "Invalid or expired token"
// @Failure 422 {object} response.ErrorResponse "Validation failed"
// @Router /api/auth/reset-password [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.resetpassword"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidResetToken) {
			log.Info("reset token rejected")
			w.WriteHeader(http.StatusGone)
			render.JSON(w, r, response.Error("invalid or expired reset token"))
			return
		}
		log.Error("failed to reset password", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("password reset completed")
	render.JSON(w, r, response.OK())
}

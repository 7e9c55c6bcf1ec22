// Package forgotpassword implements the HTTP handler that starts a
// password reset.
//
// The response is identical whether or not the email exists, so the
// endpoint cannot be used to enumerate accounts.
package forgotpassword

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/byonco/webgate/internal/http/response"
	"github.com/byonco/webgate/internal/lib/sl"
)

// Request is the reset-start payload.
type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// Service is the authentication surface the handler needs.
type Service interface {
	ForgotPassword(ctx context.Context, email string) error
}

// Handler handles POST /api/auth/forgot-password.
type Handler struct {
	log      *slog.Logger
	auth     Service
	validate *validator.Validate
}

// New creates a forgot-password Handler.
func New(log *slog.Logger, auth Service) *Handler {
	return &Handler{
		log:      log,
		auth:     auth,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Request a password reset
// @Description Issues a reset token and publishes the reset notification. Always answers OK so addresses cannot be probed.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Account email"
// @Success 200 {object} response.Response "Reset requested"
// @Failure 400 {object} response.ErrorResponse "Malformed JSON"
// @Failure 422 {object} response.ErrorResponse "Validation failed"
// @Router /api/auth/forgot-password [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.forgotpassword"

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

	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		log.Error("failed to start password reset", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("password reset requested")
	render.JSON(w, r, response.OK())
}

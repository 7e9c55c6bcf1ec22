// Package register implements the HTTP handler for account creation.
package register

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/byonco/webgate/internal/http/middlewarectx"
	"github.com/byonco/webgate/internal/http/response"
	"github.com/byonco/webgate/internal/lib/sl"
	"github.com/byonco/webgate/internal/models"
	"github.com/byonco/webgate/internal/services/auth"
)

// Request is the account-creation payload. DisplayName is optional;
// the profile step collects it later when absent.
type Request struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	DisplayName string `json:"display_name" validate:"omitempty,max=100"`
}

// Service is the authentication surface the handler needs.
type Service interface {
	Register(ctx context.Context, email, displayName, password string) (string, *models.Session, error)
}

// Handler handles POST /api/auth/register.
type Handler struct {
	log      *slog.Logger
	auth     Service
	validate *validator.Validate
}

// New creates a register Handler.
func New(log *slog.Logger, auth Service) *Handler {
	return &Handler{
		log:      log,
		auth:     auth,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Create an account
// @Description Registers a new user, signs them in and sets the session cookie. The profile remains incomplete until the profile step is submitted.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "New account"
// @Success 201 {object} response.Response "Account created"
// @Failure 400 {object} response.ErrorResponse "Malformed JSON"
// @Failure 409 {object} response.ErrorResponse "Email already registered"
// @Failure 422 {object} response.ErrorResponse "Validation failed"
// @Router /api/auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

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

	token, sess, err := h.auth.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			log.Info("email already registered", slog.String("email", req.Email))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("email already registered"))
			return
		}
		log.Error("registration failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	middlewarectx.SetSessionCookie(w, token)

	log.Info("user registered", slog.String("user_uid", sess.UserUID))
	w.WriteHeader(http.StatusCreated)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token":             token,
		"user_uid":          sess.UserUID,
		"profile_completed": sess.ProfileCompleted,
	}))
}

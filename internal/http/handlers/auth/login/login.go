// Package login implements the HTTP handler for user sign-in.
//
// On success it issues the session cookie and echoes the validated
// post-login destination so the browser can resume the page it was
// bounced from.
package login

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
	"github.com/byonco/webgate/internal/lib/redirectpath"
	"github.com/byonco/webgate/internal/lib/sl"
	"github.com/byonco/webgate/internal/models"
	"github.com/byonco/webgate/internal/services/auth"
)

// Request is the sign-in payload.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Service is the authentication surface the handler needs.
type Service interface {
	Login(ctx context.Context, email, password string) (string, *models.Session, error)
}

// Handler handles POST /api/auth/login.
type Handler struct {
	log              *slog.Logger
	auth             Service
	validate         *validator.Validate
	allowedRedirects []string
	defaultLanding   string
}

// New creates a login Handler. allowedRedirects and defaultLanding drive
// the post-login destination check.
func New(log *slog.Logger, auth Service, allowedRedirects []string, defaultLanding string) *Handler {
	return &Handler{
		log:              log,
		auth:             auth,
		validate:         validator.New(),
		allowedRedirects: allowedRedirects,
		defaultLanding:   defaultLanding,
	}
}

// ServeHTTP godoc
// @Summary Sign in
// @Description Authenticates a user by email and password, sets the session cookie and returns the post-login destination.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Credentials"
// @Param redirect query string false "Requested post-login path"
// @Success 200 {object} response.Response "Signed in"
// @Failure 400 {object} response.ErrorResponse "Malformed JSON"
// @Failure 401 {object} response.ErrorResponse "Invalid credentials"
// @Failure 422 {object} response.ErrorResponse "Validation failed"
// @Router /api/auth/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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

	token, sess, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			log.Info("invalid credentials", slog.String("email", req.Email))
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid credentials"))
			return
		}
		log.Error("login failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	// the redirect parameter comes from the guard and is attacker
	// controllable, so it only survives if it names a known page
	redirectTo, ok := redirectpath.Validate(r.URL.Query().Get("redirect"), h.allowedRedirects)
	if !ok {
		redirectTo = h.defaultLanding
	}

	middlewarectx.SetSessionCookie(w, token)

	log.Info("login success", slog.String("user_uid", sess.UserUID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token":             token,
		"user_uid":          sess.UserUID,
		"display_name":      sess.DisplayName,
		"role":              sess.Role,
		"profile_completed": sess.ProfileCompleted,
		"redirect_to":       redirectTo,
	}))
}

// Package profile implements the HTTP handlers for reading and
// completing the user profile.
//
// Completing the profile reissues the session token: guards derive the
// profile-completed flag from the token, so the old one must stop
// gating the user out of member pages.
package profile

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/byonco/webgate/internal/http/middlewarectx"
	"github.com/byonco/webgate/internal/http/response"
	"github.com/byonco/webgate/internal/lib/sl"
	"github.com/byonco/webgate/internal/models"
)

// UpdateRequest is the profile completion payload.
type UpdateRequest struct {
	DisplayName string `json:"display_name" validate:"required,min=2,max=100"`
}

// Service is the authentication surface the handlers need.
type Service interface {
	Profile(ctx context.Context, sess *models.Session) (*models.User, error)
	UpdateProfile(ctx context.Context, sess *models.Session, displayName string) (string, *models.Session, error)
}

// Handler handles GET and PUT /api/auth/profile.
type Handler struct {
	log      *slog.Logger
	auth     Service
	validate *validator.Validate
}

// New creates a profile Handler.
func New(log *slog.Logger, auth Service) *Handler {
	return &Handler{
		log:      log,
		auth:     auth,
		validate: validator.New(),
	}
}

// Show godoc
// @Summary Get profile
// @Description Returns the account behind the current session.
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response "Profile"
// @Failure 401 {object} response.ErrorResponse "Not signed in"
// @Router /api/auth/profile [get]
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.profile.show"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	sess := middlewarectx.SessionFromContext(r.Context())

	user, err := h.auth.Profile(r.Context(), sess)
	if err != nil {
		log.Error("failed to load profile", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"user_uid":          user.UID,
		"email":             user.Email,
		"display_name":      user.DisplayName,
		"role":              user.Role,
		"profile_completed": user.ProfileCompleted,
		"created_at":        user.CreatedAt,
	}))
}

// Update godoc
// @Summary Complete profile
// @Description Stores the profile fields, marks the profile completed and rotates the session cookie.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body UpdateRequest true "Profile fields"
// @Success 200 {object} response.Response "Profile completed"
// @Failure 400 {object} response.ErrorResponse "Malformed JSON"
// @Failure 422 {object} response.ErrorResponse "Validation failed"
// @Router /api/auth/profile [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.profile.update"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	sess := middlewarectx.SessionFromContext(r.Context())

	var req UpdateRequest
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

	token, updated, err := h.auth.UpdateProfile(r.Context(), sess, req.DisplayName)
	if err != nil {
		log.Error("failed to update profile", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	middlewarectx.SetSessionCookie(w, token)

	log.Info("profile completed", slog.String("user_uid", updated.UserUID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token":             token,
		"display_name":      updated.DisplayName,
		"profile_completed": updated.ProfileCompleted,
	}))
}

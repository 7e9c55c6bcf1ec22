// Package logout implements the HTTP handler for ending a session.
//
// Sessions are stateless JWTs, so sign-out amounts to expiring the
// session cookie; clients holding a legacy bearer token drop it on
// their side.
package logout

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/byonco/webgate/internal/http/middlewarectx"
	"github.com/byonco/webgate/internal/http/response"
)

// Handler handles POST /api/auth/logout.
type Handler struct {
	log *slog.Logger
}

// New creates a logout Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// ServeHTTP godoc
// @Summary Sign out
// @Description Expires the session cookie.
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response "Signed out"
// @Router /api/auth/logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	middlewarectx.ClearSessionCookie(w)

	if sess := middlewarectx.SessionFromContext(r.Context()); sess != nil {
		log.Info("user signed out", slog.String("user_uid", sess.UserUID))
	}
	render.JSON(w, r, response.OK())
}

// Package status implements the subscription status endpoint the
// front-end polls after page load.
package status

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/byonco/webgate/internal/http/middlewarectx"
	"github.com/byonco/webgate/internal/http/response"
	"github.com/byonco/webgate/internal/models"
)

// Resolver is the subscription surface the handler needs.
type Resolver interface {
	Status(ctx context.Context, sess *models.Session) (status string, isActive bool, expiresAt time.Time)
}

// Handler handles GET /api/payments/subscription/status.
type Handler struct {
	log      *slog.Logger
	resolver Resolver
}

// New creates a status Handler.
func New(log *slog.Logger, resolver Resolver) *Handler {
	return &Handler{log: log, resolver: resolver}
}

// ServeHTTP godoc
// @Summary Subscription status
// @Description Returns the caller's subscription state. Resolution never fails: lookup problems degrade to an inactive status.
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Response "Subscription state"
// @Failure 401 {object} response.ErrorResponse "Not signed in"
// @Router /api/payments/subscription/status [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.status"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	sess := middlewarectx.SessionFromContext(r.Context())

	status, isActive, expiresAt := h.resolver.Status(r.Context(), sess)

	sub := map[string]any{
		"status":    status,
		"is_active": isActive,
	}
	if !expiresAt.IsZero() {
		sub["expires_at"] = expiresAt
	}

	log.Debug("subscription status served",
		slog.String("user_uid", sess.UserUID),
		slog.String("status", status))
	render.JSON(w, r, response.OKWithData(map[string]any{"subscription": sub}))
}

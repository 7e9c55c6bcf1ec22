// Package secondopinion implements the HTTP handlers for the
// second-opinion entitlement: reading the remaining quota and consuming
// one use when a request is submitted.
package secondopinion

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/byonco/webgate/internal/http/middlewarectx"
	"github.com/byonco/webgate/internal/http/response"
	"github.com/byonco/webgate/internal/lib/sl"
	"github.com/byonco/webgate/internal/models"
	"github.com/byonco/webgate/internal/services/entitlement"
)

// Service is the entitlement surface the handlers need.
type Service interface {
	Status(ctx context.Context, userUID string) (models.Entitlement, models.SecondOpinionUsage)
	Consume(ctx context.Context, userUID string) (models.SecondOpinionUsage, error)
}

// Handler handles GET and POST /api/second-opinion.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New creates a second-opinion Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// Show godoc
// @Summary Second-opinion entitlement
// @Description Returns whether the caller holds the entitlement and how many uses remain.
// @Tags SecondOpinion
// @Produce json
// @Success 200 {object} response.Response "Entitlement state"
// @Failure 401 {object} response.ErrorResponse "Not signed in"
// @Router /api/second-opinion [get]
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.secondopinion.show"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	sess := middlewarectx.SessionFromContext(r.Context())

	ent, usage := h.service.Status(r.Context(), sess.UserUID)

	log.Debug("entitlement status served", slog.String("user_uid", sess.UserUID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"active":    ent.Active,
		"source":    ent.Source,
		"used":      usage.Used,
		"limit":     usage.Limit,
		"remaining": usage.Remaining(),
	}))
}

// Consume godoc
// @Summary Use one second opinion
// @Description Consumes one second-opinion use. Fails closed when the quota is exhausted or unreadable.
// @Tags SecondOpinion
// @Produce json
// @Success 200 {object} response.Response "Remaining quota"
// @Failure 401 {object} response.ErrorResponse "Not signed in"
// @Failure 403 {object} response.ErrorResponse "No uses left"
// @Router /api/second-opinion/consume [post]
func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.secondopinion.consume"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	sess := middlewarectx.SessionFromContext(r.Context())

	usage, err := h.service.Consume(r.Context(), sess.UserUID)
	if err != nil {
		if errors.Is(err, entitlement.ErrNoUsesLeft) {
			log.Info("second-opinion quota exhausted", slog.String("user_uid", sess.UserUID))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("no second-opinion uses left"))
			return
		}
		log.Error("failed to consume second opinion", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("second opinion consumed",
		slog.String("user_uid", sess.UserUID),
		slog.Int("used", usage.Used))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"used":      usage.Used,
		"limit":     usage.Limit,
		"remaining": usage.Remaining(),
	}))
}

// Package cancel implements the HTTP handler for a dismissed checkout
// modal.
//
// Cancellation must always unblock the user: whatever state the order
// is in, the in-flight flag is cleared so the next attempt is not
// rejected as a duplicate.
package cancel

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/byonco/webgate/internal/http/middlewarectx"
	"github.com/byonco/webgate/internal/http/response"
	"github.com/byonco/webgate/internal/lib/sl"
	"github.com/byonco/webgate/internal/models"
)

// Request identifies the abandoned order. OrderID may be empty when the
// modal never got far enough to create one.
type Request struct {
	OrderID string `json:"order_id"`
}

// Service is the payment surface the handler needs.
type Service interface {
	Cancel(ctx context.Context, sess *models.Session, orderID string)
}

// Handler handles POST /api/payments/cancel.
type Handler struct {
	log      *slog.Logger
	payments Service
}

// New creates a cancel Handler.
func New(log *slog.Logger, payments Service) *Handler {
	return &Handler{
		log:      log,
		payments: payments,
	}
}

// ServeHTTP godoc
// @Summary Abandon a checkout
// @Description Clears the in-flight payment flag and marks the order cancelled so the user can retry immediately.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body Request true "Abandoned order"
// @Success 200 {object} response.Response "Checkout abandoned"
// @Failure 400 {object} response.ErrorResponse "Malformed JSON"
// @Router /api/payments/cancel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.cancel"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	sess := middlewarectx.SessionFromContext(r.Context())

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	h.payments.Cancel(r.Context(), sess, req.OrderID)

	log.Info("checkout abandoned",
		slog.String("user_uid", sess.UserUID),
		slog.String("order_id", req.OrderID))
	render.JSON(w, r, response.OK())
}

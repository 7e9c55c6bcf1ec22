// Package createorder implements the HTTP handler that starts a
// checkout.
//
// The response carries everything the browser needs to open the
// provider modal synchronously in the click handler that triggered the
// request, so popup blockers never see a detached open.
package createorder

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
	"github.com/byonco/webgate/internal/services/payment"
)

// Request is the checkout start payload. Amount is in rupees as a
// decimal string.
type Request struct {
	Amount      string            `json:"amount" validate:"required"`
	Currency    string            `json:"currency" validate:"omitempty,len=3"`
	Description string            `json:"description" validate:"omitempty,max=255"`
	ServiceType string            `json:"service_type" validate:"omitempty,oneof=subscription second_opinion"`
	Metadata    map[string]string `json:"metadata"`
}

// Service is the payment surface the handler needs.
type Service interface {
	Initiate(ctx context.Context, sess *models.Session, req payment.InitiateRequest) (*payment.CheckoutSession, error)
}

// Handler handles POST /api/payments/create-order.
type Handler struct {
	log      *slog.Logger
	payments Service
	validate *validator.Validate
}

// New creates a create-order Handler.
func New(log *slog.Logger, payments Service) *Handler {
	return &Handler{
		log:      log,
		payments: payments,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Start a checkout
// @Description Warms up the payment provider, creates an order and returns the checkout session for the browser modal.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body Request true "Checkout parameters"
// @Success 200 {object} response.Response "Checkout session"
// @Failure 400 {object} response.ErrorResponse "Malformed JSON"
// @Failure 409 {object} response.ErrorResponse "A payment is already in progress"
// @Failure 422 {object} response.ErrorResponse "Validation failed or bad amount"
// @Failure 502 {object} response.ErrorResponse "Provider returned an unusable order"
// @Failure 503 {object} response.ErrorResponse "Provider unavailable"
// @Router /api/payments/create-order [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.createorder"

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

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	session, err := h.payments.Initiate(r.Context(), sess, payment.InitiateRequest{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		ServiceType: req.ServiceType,
		Metadata:    req.Metadata,
	})
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrPaymentInProgress):
			log.Info("duplicate checkout rejected", slog.String("user_uid", sess.UserUID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("a payment is already in progress"))
		case errors.Is(err, payment.ErrInvalidAmount):
			log.Info("bad amount", slog.String("amount", req.Amount))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("invalid amount"))
		case errors.Is(err, payment.ErrProviderUnavailable):
			log.Error("provider unavailable", sl.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("payment provider unavailable, try again shortly"))
		case errors.Is(err, payment.ErrInvalidOrderResponse):
			log.Error("provider returned an unusable order", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error("payment provider returned an invalid order"))
		default:
			log.Error("failed to start checkout", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}

	log.Info("checkout started",
		slog.String("user_uid", sess.UserUID),
		slog.String("order_id", session.OrderID))
	render.JSON(w, r, response.OKWithData(session))
}

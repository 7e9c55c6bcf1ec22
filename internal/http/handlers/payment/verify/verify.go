// Package verify implements the HTTP handler that settles a completed
// checkout.
//
// The provider triple from the checkout success callback is forwarded
// verbatim; the signature is recomputed server-side, so a forged or
// replayed callback never grants access.
package verify

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

// Request mirrors the field names the provider hands to the success
// callback.
type Request struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
	Amount            int64  `json:"amount" validate:"required,gt=0"`
}

// Service is the payment surface the handler needs.
type Service interface {
	Confirm(ctx context.Context, sess *models.Session, req payment.VerifyRequest) (*models.Subscription, error)
}

// Handler handles POST /api/payments/verify.
type Handler struct {
	log      *slog.Logger
	payments Service
	validate *validator.Validate
}

// New creates a verify Handler.
func New(log *slog.Logger, payments Service) *Handler {
	return &Handler{
		log:      log,
		payments: payments,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Settle a checkout
// @Description Verifies the provider signature, grants the purchased access and marks the order paid.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body Request true "Provider callback fields"
// @Success 200 {object} response.Response "Access granted"
// @Failure 400 {object} response.ErrorResponse "Malformed JSON, signature mismatch or amount mismatch"
// @Failure 404 {object} response.ErrorResponse "Unknown order"
// @Failure 422 {object} response.ErrorResponse "Validation failed"
// @Router /api/payments/verify [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.verify"

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

	sub, err := h.payments.Confirm(r.Context(), sess, payment.VerifyRequest{
		OrderID:     req.RazorpayOrderID,
		PaymentID:   req.RazorpayPaymentID,
		Signature:   req.RazorpaySignature,
		AmountPaise: req.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrSignatureMismatch):
			log.Error("signature mismatch",
				slog.String("user_uid", sess.UserUID),
				slog.String("order_id", req.RazorpayOrderID))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("payment verification failed"))
		case errors.Is(err, payment.ErrUnknownOrder):
			log.Error("unknown order",
				slog.String("user_uid", sess.UserUID),
				slog.String("order_id", req.RazorpayOrderID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("unknown order"))
		case errors.Is(err, payment.ErrAmountMismatch):
			log.Error("amount mismatch", slog.String("order_id", req.RazorpayOrderID))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("payment verification failed"))
		default:
			log.Error("failed to settle payment", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}

	log.Info("payment settled",
		slog.String("user_uid", sess.UserUID),
		slog.String("order_id", req.RazorpayOrderID))

	data := map[string]any{"order_id": req.RazorpayOrderID}
	if sub != nil {
		data["subscription"] = sub
	}
	render.JSON(w, r, response.OKWithData(data))
}

// Package payment drives the checkout flow: provider warm-up, order
// creation, signature verification and entitlement grant.
//
// The browser side stays synchronous with the user gesture: Initiate
// returns everything the checkout modal needs, so the client opens it in
// the same call stack as the triggering click. Settlement arrives later
// through Confirm (handler callback), Cancel (modal dismissed) or not at
// all (TTL on the in-flight flag).
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/byonco/webgate/internal/clientstate"
	"github.com/byonco/webgate/internal/lib/sl"
	"github.com/byonco/webgate/internal/models"
	"github.com/byonco/webgate/internal/paymentprovider"
	"github.com/byonco/webgate/internal/services/notifier"
)

// Payment errors surfaced to handlers.
var (
	ErrPaymentInProgress    = errors.New("a payment is already in progress")
	ErrProviderUnavailable  = errors.New("payment provider unavailable")
	ErrInvalidOrderResponse = errors.New("invalid order response from provider")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrSignatureMismatch    = errors.New("payment signature verification failed")
	ErrUnknownOrder         = errors.New("unknown order")
	ErrAmountMismatch       = errors.New("amount does not match order")
)

// ProviderClient is the provider surface the initiator needs.
type ProviderClient interface {
	KeyID() string
	CreateOrder(ctx context.Context, req paymentprovider.CreateOrderRequest) (*paymentprovider.OrderResponse, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// Ready is the provider warm-up step.
type Ready interface {
	Ensure(ctx context.Context) error
}

// OrderRepository is the persistence contract for checkout attempts and
// their outcomes.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order models.PaymentOrder) error
	GetOrder(ctx context.Context, orderID string) (*models.PaymentOrder, error)
	MarkOrderStatus(ctx context.Context, orderID, status, paymentID string) error
	UpsertSubscription(ctx context.Context, userUID string, sub models.Subscription) error
	UpsertEntitlement(ctx context.Context, userUID string, ent models.Entitlement) error
}

// Notifier publishes the payment receipt event.
type Notifier interface {
	PublishReceipt(receipt notifier.PaymentReceipt)
}

// Config holds the plan parameters applied on confirmation.
type Config struct {
	PlanID            string
	SubscriptionTTL   time.Duration
	SecondOpinionUses int
	InflightTTL       time.Duration
	CheckoutScriptURL string
}

// InitiateRequest is a checkout start request. Amount is in rupees as a
// decimal string ("99" or "99.00").
type InitiateRequest struct {
	Amount      string
	Currency    string
	Description string
	ServiceType string
	Metadata    map[string]string
}

// CheckoutSession is everything the browser needs to open the provider
// modal synchronously within the originating gesture.
type CheckoutSession struct {
	Key               string `json:"key"`
	OrderID           string `json:"order_id"`
	AmountPaise       int64  `json:"amount"`
	Currency          string `json:"currency"`
	Description       string `json:"description"`
	CheckoutScriptURL string `json:"checkout_script_url"`
	PrefillEmail      string `json:"prefill_email"`
}

// VerifyRequest carries the provider triple forwarded verbatim from the
// checkout completion handler, plus the original amount in paise.
type VerifyRequest struct {
	OrderID     string
	PaymentID   string
	Signature   string
	AmountPaise int64
}

// Initiator implements the checkout flow.
type Initiator struct {
	log      *slog.Logger
	provider ProviderClient
	loader   Ready
	store    clientstate.Store
	repo     OrderRepository
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

// NewInitiator creates an Initiator.
func NewInitiator(log *slog.Logger, provider ProviderClient, loader Ready, store clientstate.Store, repo OrderRepository, n Notifier, cfg Config) *Initiator {
	return &Initiator{
		log:      log,
		provider: provider,
		loader:   loader,
		store:    store,
		repo:     repo,
		notifier: n,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Initiate starts a checkout: refuses re-entrant attempts, warms up the
// provider, creates the order and returns the checkout session. On every
// error path the in-flight flag is cleared so the user can retry.
func (i *Initiator) Initiate(ctx context.Context, sess *models.Session, req InitiateRequest) (cs *CheckoutSession, err error) {
	const op = "payment.Initiate"
	log := i.log.With(slog.String("op", op), slog.String("user_uid", sess.UserUID))

	flagKey := clientstate.InflightPaymentKey(sess.UserUID)
	var inflight bool
	found, ferr := i.store.Get(ctx, flagKey, &inflight)
	if ferr != nil {
		log.Warn("in-flight flag unreadable, proceeding without the double-submission guard", sl.Err(ferr))
	}
	if found && inflight {
		return nil, ErrPaymentInProgress
	}
	if serr := i.store.Set(ctx, flagKey, true, i.cfg.InflightTTL); serr != nil {
		return nil, fmt.Errorf("%s: %w", op, serr)
	}
	defer func() {
		if err != nil {
			i.clearFlag(ctx, sess.UserUID)
			settledTotal.WithLabelValues(outcomeFailed).Inc()
		}
	}()

	amountPaise, err := toPaise(req.Amount)
	if err != nil {
		return nil, err
	}
	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}
	serviceType := req.ServiceType
	if serviceType == "" {
		serviceType = models.ServiceTypeSubscription
	}

	if err = i.loader.Ensure(ctx); err != nil {
		log.Error("provider warm-up failed", sl.Err(err))
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
	}

	receipt := "rcpt_" + uuid.NewString()
	notes := map[string]string{"user_uid": sess.UserUID, "service_type": serviceType}
	for k, v := range req.Metadata {
		notes[k] = v
	}

	orderResp, err := i.provider.CreateOrder(ctx, paymentprovider.CreateOrderRequest{
		Amount:   amountPaise,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		log.Error("order creation failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if orderResp.ID == "" {
		log.Error("order response missing order id")
		return nil, ErrInvalidOrderResponse
	}

	order := models.PaymentOrder{
		OrderID:     orderResp.ID,
		UserUID:     sess.UserUID,
		AmountPaise: orderResp.Amount,
		Currency:    orderResp.Currency,
		Description: req.Description,
		ServiceType: serviceType,
		Receipt:     receipt,
		Status:      models.OrderStatusCreated,
	}
	if err = i.repo.CreateOrder(ctx, order); err != nil {
		log.Error("failed to persist order", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("checkout session created", slog.String("order_id", orderResp.ID))
	return &CheckoutSession{
		Key:               i.provider.KeyID(),
		OrderID:           orderResp.ID,
		AmountPaise:       orderResp.Amount,
		Currency:          orderResp.Currency,
		Description:       req.Description,
		CheckoutScriptURL: i.cfg.CheckoutScriptURL,
		PrefillEmail:      sess.Email,
	}, nil
}

// Confirm settles a completed checkout: verifies the signature, grants
// the matching entitlement, publishes the receipt and clears the
// in-flight flag on every path.
func (i *Initiator) Confirm(ctx context.Context, sess *models.Session, req VerifyRequest) (sub *models.Subscription, err error) {
	const op = "payment.Confirm"
	log := i.log.With(slog.String("op", op), slog.String("user_uid", sess.UserUID), slog.String("order_id", req.OrderID))

	defer i.clearFlag(ctx, sess.UserUID)
	defer func() {
		if err != nil {
			settledTotal.WithLabelValues(outcomeFailed).Inc()
			i.markOrder(ctx, req.OrderID, models.OrderStatusFailed, req.PaymentID)
		}
	}()

	if !i.provider.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		log.Error("signature verification failed")
		return nil, ErrSignatureMismatch
	}

	order, err := i.repo.GetOrder(ctx, req.OrderID)
	if err != nil {
		log.Error("order lookup failed", sl.Err(err))
		return nil, ErrUnknownOrder
	}
	if order.UserUID != sess.UserUID {
		log.Error("order belongs to another user")
		return nil, ErrUnknownOrder
	}
	if order.AmountPaise != req.AmountPaise {
		log.Error("amount mismatch",
			slog.Int64("order_amount", order.AmountPaise),
			slog.Int64("claimed_amount", req.AmountPaise))
		return nil, ErrAmountMismatch
	}

	now := i.now()
	if order.ServiceType == models.ServiceTypeSecondOpinion {
		if err = i.grantSecondOpinion(ctx, sess.UserUID, req, now); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		sub, err = i.grantSubscription(ctx, sess.UserUID, req, now)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if merr := i.repo.MarkOrderStatus(ctx, req.OrderID, models.OrderStatusPaid, req.PaymentID); merr != nil {
		log.Warn("failed to mark order paid", sl.Err(merr))
	}
	i.notifier.PublishReceipt(notifier.PaymentReceipt{
		Email:       sess.Email,
		DisplayName: sess.DisplayName,
		OrderID:     req.OrderID,
		PaymentID:   req.PaymentID,
		AmountPaise: order.AmountPaise,
		Currency:    order.Currency,
		ServiceType: order.ServiceType,
	})
	settledTotal.WithLabelValues(outcomeSuccess).Inc()
	log.Info("payment confirmed", slog.String("payment_id", req.PaymentID))
	return sub, nil
}

// Cancel settles a dismissed checkout: no entitlement changes, in-flight
// flag cleared so a retry is permitted.
func (i *Initiator) Cancel(ctx context.Context, sess *models.Session, orderID string) {
	const op = "payment.Cancel"
	log := i.log.With(slog.String("op", op), slog.String("user_uid", sess.UserUID))

	i.clearFlag(ctx, sess.UserUID)
	if orderID != "" {
		if order, err := i.repo.GetOrder(ctx, orderID); err == nil && order.UserUID == sess.UserUID {
			i.markOrder(ctx, orderID, models.OrderStatusCancelled, "")
		}
	}
	settledTotal.WithLabelValues(outcomeCancelled).Inc()
	log.Info("checkout dismissed", slog.String("order_id", orderID))
}

func (i *Initiator) grantSubscription(ctx context.Context, userUID string, req VerifyRequest, now time.Time) (*models.Subscription, error) {
	sub := models.Subscription{
		PlanID:       i.cfg.PlanID,
		SubscribedAt: now,
		ExpiresAt:    now.Add(i.cfg.SubscriptionTTL),
		PaymentID:    req.PaymentID,
		OrderID:      req.OrderID,
		Active:       true,
	}
	if err := i.repo.UpsertSubscription(ctx, userUID, sub); err != nil {
		return nil, err
	}
	if err := i.store.Set(ctx, clientstate.SubscriptionKey(userUID), sub, 0); err != nil {
		i.log.Warn("failed to cache subscription", sl.Err(err))
	}
	return &sub, nil
}

func (i *Initiator) grantSecondOpinion(ctx context.Context, userUID string, req VerifyRequest, now time.Time) error {
	ent := models.Entitlement{
		Active:        true,
		ActivatedAt:   now,
		Source:        "purchase",
		EntitlementID: req.PaymentID,
	}
	if err := i.repo.UpsertEntitlement(ctx, userUID, ent); err != nil {
		return err
	}
	if err := i.store.Set(ctx, clientstate.EntitlementKey(userUID), ent, 0); err != nil {
		i.log.Warn("failed to cache entitlement", sl.Err(err))
	}
	usage := models.SecondOpinionUsage{Used: 0, Limit: i.cfg.SecondOpinionUses}
	if err := i.store.Set(ctx, clientstate.UsageKey(userUID), usage, 0); err != nil {
		i.log.Warn("failed to cache usage", sl.Err(err))
	}
	return nil
}

func (i *Initiator) clearFlag(ctx context.Context, userUID string) {
	if err := i.store.Clear(ctx, clientstate.InflightPaymentKey(userUID)); err != nil {
		i.log.Warn("failed to clear in-flight payment flag",
			slog.String("user_uid", userUID), sl.Err(err))
	}
}

func (i *Initiator) markOrder(ctx context.Context, orderID, status, paymentID string) {
	if err := i.repo.MarkOrderStatus(ctx, orderID, status, paymentID); err != nil {
		i.log.Warn("failed to mark order", slog.String("order_id", orderID),
			slog.String("status", status), sl.Err(err))
	}
}

// toPaise converts a rupee decimal string to minor units.
func toPaise(amount string) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if d.IsNegative() || d.IsZero() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	paise := d.Mul(decimal.NewFromInt(100))
	if !paise.Equal(paise.Truncate(0)) {
		return 0, fmt.Errorf("%w: sub-paise precision: %s", ErrInvalidAmount, amount)
	}
	return paise.IntPart(), nil
}

package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byonco/webgate/internal/clientstate"
	"github.com/byonco/webgate/internal/models"
	"github.com/byonco/webgate/internal/paymentprovider"
	"github.com/byonco/webgate/internal/services/notifier"
	"github.com/byonco/webgate/internal/storage"
)

const testSecret = "test-key-secret"

type fakeProvider struct {
	orderID    string
	createErr  error
	emptyOrder bool
	calls      int
}

func (f *fakeProvider) KeyID() string { return "rzp_test_key" }

func (f *fakeProvider) CreateOrder(_ context.Context, req paymentprovider.CreateOrderRequest) (*paymentprovider.OrderResponse, error) {
	f.calls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	id := f.orderID
	if f.emptyOrder {
		id = ""
	}
	return &paymentprovider.OrderResponse{
		ID:       id,
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (f *fakeProvider) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil)) == signature
}

func signFor(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

type readyStub struct{ err error }

func (r *readyStub) Ensure(_ context.Context) error { return r.err }

type fakeOrderRepo struct {
	orders        map[string]*models.PaymentOrder
	subscriptions map[string]models.Subscription
	entitlements  map[string]models.Entitlement
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:        map[string]*models.PaymentOrder{},
		subscriptions: map[string]models.Subscription{},
		entitlements:  map[string]models.Entitlement{},
	}
}

func (f *fakeOrderRepo) CreateOrder(_ context.Context, order models.PaymentOrder) error {
	o := order
	f.orders[o.OrderID] = &o
	return nil
}

func (f *fakeOrderRepo) GetOrder(_ context.Context, orderID string) (*models.PaymentOrder, error) {
	if o, ok := f.orders[orderID]; ok {
		return o, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeOrderRepo) MarkOrderStatus(_ context.Context, orderID, status, paymentID string) error {
	o, ok := f.orders[orderID]
	if !ok {
		return storage.ErrNotFound
	}
	o.Status = status
	o.PaymentID = paymentID
	return nil
}

func (f *fakeOrderRepo) UpsertSubscription(_ context.Context, userUID string, sub models.Subscription) error {
	f.subscriptions[userUID] = sub
	return nil
}

func (f *fakeOrderRepo) UpsertEntitlement(_ context.Context, userUID string, ent models.Entitlement) error {
	f.entitlements[userUID] = ent
	return nil
}

type captureNotifier struct {
	receipts []notifier.PaymentReceipt
}

func (c *captureNotifier) PublishReceipt(r notifier.PaymentReceipt) {
	c.receipts = append(c.receipts, r)
}

func testConfig() Config {
	return Config{
		PlanID:            "byonco-plus",
		SubscriptionTTL:   30 * 24 * time.Hour,
		SecondOpinionUses: 1,
		InflightTTL:       15 * time.Minute,
		CheckoutScriptURL: "https://checkout.razorpay.com/v1/checkout.js",
	}
}

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func testSession() *models.Session {
	return &models.Session{
		UserUID:          "uid-1",
		Email:            "patient@example.com",
		DisplayName:      "Patient",
		Role:             "user",
		ProfileCompleted: true,
	}
}

func inflight(t *testing.T, store clientstate.Store, uid string) bool {
	t.Helper()
	var flag bool
	found, err := store.Get(context.Background(), clientstate.InflightPaymentKey(uid), &flag)
	require.NoError(t, err)
	return found && flag
}

func TestInitiate_Success(t *testing.T) {
	store := clientstate.NewMemoryStore()
	repo := newFakeOrderRepo()
	provider := &fakeProvider{orderID: "order_abc"}
	init := NewInitiator(noopLogger(), provider, &readyStub{}, store, repo, &captureNotifier{}, testConfig())

	cs, err := init.Initiate(context.Background(), testSession(), InitiateRequest{
		Amount:      "99",
		Currency:    "INR",
		Description: "ByOnco Plus",
	})
	require.NoError(t, err)
	assert.Equal(t, "order_abc", cs.OrderID)
	assert.Equal(t, int64(9900), cs.AmountPaise)
	assert.Equal(t, "rzp_test_key", cs.Key)
	assert.Equal(t, "patient@example.com", cs.PrefillEmail)

	// flag stays set for the life of the checkout
	assert.True(t, inflight(t, store, "uid-1"))
	assert.Equal(t, models.OrderStatusCreated, repo.orders["order_abc"].Status)
}

func TestInitiate_MissingOrderIDSettlesFailed(t *testing.T) {
	store := clientstate.NewMemoryStore()
	repo := newFakeOrderRepo()
	provider := &fakeProvider{emptyOrder: true}
	init := NewInitiator(noopLogger(), provider, &readyStub{}, store, repo, &captureNotifier{}, testConfig())

	_, err := init.Initiate(context.Background(), testSession(), InitiateRequest{Amount: "99", Currency: "INR"})
	require.ErrorIs(t, err, ErrInvalidOrderResponse)

	// processing flag must be false afterwards
	assert.False(t, inflight(t, store, "uid-1"))
}

func TestInitiate_DoubleSubmissionRefused(t *testing.T) {
	store := clientstate.NewMemoryStore()
	repo := newFakeOrderRepo()
	provider := &fakeProvider{orderID: "order_abc"}
	init := NewInitiator(noopLogger(), provider, &readyStub{}, store, repo, &captureNotifier{}, testConfig())

	_, err := init.Initiate(context.Background(), testSession(), InitiateRequest{Amount: "99"})
	require.NoError(t, err)

	_, err = init.Initiate(context.Background(), testSession(), InitiateRequest{Amount: "99"})
	assert.ErrorIs(t, err, ErrPaymentInProgress)
	assert.Equal(t, 1, provider.calls)
}

func TestInitiate_ProviderUnavailable(t *testing.T) {
	store := clientstate.NewMemoryStore()
	init := NewInitiator(noopLogger(), &fakeProvider{}, &readyStub{err: errors.New("timeout")},
		store, newFakeOrderRepo(), &captureNotifier{}, testConfig())

	_, err := init.Initiate(context.Background(), testSession(), InitiateRequest{Amount: "99"})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.False(t, inflight(t, store, "uid-1"))
}

func TestInitiate_BadAmount(t *testing.T) {
	store := clientstate.NewMemoryStore()
	init := NewInitiator(noopLogger(), &fakeProvider{orderID: "o"}, &readyStub{},
		store, newFakeOrderRepo(), &captureNotifier{}, testConfig())

	for _, amount := range []string{"", "abc", "0", "-5", "99.999"} {
		_, err := init.Initiate(context.Background(), testSession(), InitiateRequest{Amount: amount})
		assert.ErrorIs(t, err, ErrInvalidAmount, amount)
		assert.False(t, inflight(t, store, "uid-1"), amount)
	}
}

func TestConfirm_GrantsSubscription(t *testing.T) {
	store := clientstate.NewMemoryStore()
	repo := newFakeOrderRepo()
	n := &captureNotifier{}
	init := NewInitiator(noopLogger(), &fakeProvider{orderID: "order_abc"}, &readyStub{}, store, repo, n, testConfig())
	sess := testSession()

	_, err := init.Initiate(context.Background(), sess, InitiateRequest{Amount: "99", Description: "ByOnco Plus"})
	require.NoError(t, err)

	sub, err := init.Confirm(context.Background(), sess, VerifyRequest{
		OrderID:     "order_abc",
		PaymentID:   "pay_1",
		Signature:   signFor("order_abc", "pay_1"),
		AmountPaise: 9900,
	})
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "byonco-plus", sub.PlanID)
	assert.True(t, sub.ActiveAt(time.Now()))

	assert.False(t, inflight(t, store, "uid-1"))
	assert.Equal(t, models.OrderStatusPaid, repo.orders["order_abc"].Status)
	require.Len(t, n.receipts, 1)
	assert.Equal(t, "pay_1", n.receipts[0].PaymentID)

	var cached models.Subscription
	found, err := store.Get(context.Background(), clientstate.SubscriptionKey("uid-1"), &cached)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "order_abc", cached.OrderID)
}

func TestConfirm_SecondOpinionGrantsEntitlement(t *testing.T) {
	store := clientstate.NewMemoryStore()
	repo := newFakeOrderRepo()
	init := NewInitiator(noopLogger(), &fakeProvider{orderID: "order_so"}, &readyStub{}, store, repo, &captureNotifier{}, testConfig())
	sess := testSession()

	_, err := init.Initiate(context.Background(), sess, InitiateRequest{
		Amount:      "499",
		ServiceType: models.ServiceTypeSecondOpinion,
	})
	require.NoError(t, err)

	sub, err := init.Confirm(context.Background(), sess, VerifyRequest{
		OrderID:     "order_so",
		PaymentID:   "pay_so",
		Signature:   signFor("order_so", "pay_so"),
		AmountPaise: 49900,
	})
	require.NoError(t, err)
	assert.Nil(t, sub)

	ent, ok := repo.entitlements["uid-1"]
	require.True(t, ok)
	assert.True(t, ent.Active)

	var usage models.SecondOpinionUsage
	found, err := store.Get(context.Background(), clientstate.UsageKey("uid-1"), &usage)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, usage.Remaining())
}

func TestConfirm_BadSignature(t *testing.T) {
	store := clientstate.NewMemoryStore()
	repo := newFakeOrderRepo()
	n := &captureNotifier{}
	init := NewInitiator(noopLogger(), &fakeProvider{orderID: "order_abc"}, &readyStub{}, store, repo, n, testConfig())
	sess := testSession()

	_, err := init.Initiate(context.Background(), sess, InitiateRequest{Amount: "99"})
	require.NoError(t, err)

	_, err = init.Confirm(context.Background(), sess, VerifyRequest{
		OrderID:     "order_abc",
		PaymentID:   "pay_1",
		Signature:   "forged",
		AmountPaise: 9900,
	})
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	assert.False(t, inflight(t, store, "uid-1"))
	assert.Empty(t, n.receipts)
	assert.Empty(t, repo.subscriptions)
}

func TestConfirm_AmountMismatch(t *testing.T) {
	store := clientstate.NewMemoryStore()
	repo := newFakeOrderRepo()
	init := NewInitiator(noopLogger(), &fakeProvider{orderID: "order_abc"}, &readyStub{}, store, repo, &captureNotifier{}, testConfig())
	sess := testSession()

	_, err := init.Initiate(context.Background(), sess, InitiateRequest{Amount: "99"})
	require.NoError(t, err)

	_, err = init.Confirm(context.Background(), sess, VerifyRequest{
		OrderID:     "order_abc",
		PaymentID:   "pay_1",
		Signature:   signFor("order_abc", "pay_1"),
		AmountPaise: 100,
	})
	assert.ErrorIs(t, err, ErrAmountMismatch)
	assert.Empty(t, repo.subscriptions)
}

func TestCancel_BeforeConfirmAllowsRetry(t *testing.T) {
	store := clientstate.NewMemoryStore()
	repo := newFakeOrderRepo()
	n := &captureNotifier{}
	provider := &fakeProvider{orderID: "order_abc"}
	init := NewInitiator(noopLogger(), provider, &readyStub{}, store, repo, n, testConfig())
	sess := testSession()

	_, err := init.Initiate(context.Background(), sess, InitiateRequest{Amount: "99"})
	require.NoError(t, err)

	// dismiss fires before any completion handler
	init.Cancel(context.Background(), sess, "order_abc")

	assert.False(t, inflight(t, store, "uid-1"))
	assert.Equal(t, models.OrderStatusCancelled, repo.orders["order_abc"].Status)
	assert.Empty(t, n.receipts)
	assert.Empty(t, repo.subscriptions)

	// a subsequent attempt is permitted
	provider.orderID = "order_next"
	cs, err := init.Initiate(context.Background(), sess, InitiateRequest{Amount: "99"})
	require.NoError(t, err)
	assert.Equal(t, "order_next", cs.OrderID)
}

type unreadableFlagStore struct {
	*clientstate.MemoryStore
}

func (s *unreadableFlagStore) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, errors.New("store down")
}

func TestInitiate_FlagReadFailureStillCreatesOrder(t *testing.T) {
	store := &unreadableFlagStore{MemoryStore: clientstate.NewMemoryStore()}
	repo := newFakeOrderRepo()
	provider := &fakeProvider{orderID: "order_abc"}
	init := NewInitiator(noopLogger(), provider, &readyStub{}, store, repo, &captureNotifier{}, testConfig())

	cs, err := init.Initiate(context.Background(), testSession(), InitiateRequest{Amount: "99", Currency: "INR"})
	require.NoError(t, err)
	assert.Equal(t, "order_abc", cs.OrderID)
	assert.Equal(t, models.OrderStatusCreated, repo.orders["order_abc"].Status)
}

package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/byonco/webgate/internal/http/middlewarectx"
	"github.com/byonco/webgate/internal/models"
	"github.com/byonco/webgate/internal/services/payment"
)

type PaymentServiceMock struct {
	mock.Mock
}

func (m *PaymentServiceMock) Confirm(ctx context.Context, sess *models.Session, req payment.VerifyRequest) (*models.Subscription, error) {
	args := m.Called(ctx, sess, req)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestVerifyHandler_ServeHTTP(t *testing.T) {
	paymentsMock := new(PaymentServiceMock)
	logger := newNoopLogger()

	handler := New(logger, paymentsMock)

	sess := &models.Session{UserUID: "uid-1", Email: "patient@example.com", Role: "user", ProfileCompleted: true}

	validReq := Request{
		RazorpayOrderID:   "order_123",
		RazorpayPaymentID: "pay_456",
		RazorpaySignature: "deadbeef",
		Amount:            9900,
	}
	grantedSub := &models.Subscription{
		PlanID:    "byonco-plus",
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
		Active:    true,
	}

	tests := []struct {
		name           string
		requestBody    interface{}
		mockSub        *models.Subscription
		mockErr        error
		wantStatusCode int
		wantError      string
		wantStatus     string
	}{
		{
			name:           "payment settled",
			requestBody:    validReq,
			mockSub:        grantedSub,
			wantStatusCode: http.StatusOK,
			wantStatus:     "OK",
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
			wantStatus:     "Error",
		},
		{
			name: "validation error - missing signature",
			requestBody: Request{
				RazorpayOrderID:   "order_123",
				RazorpayPaymentID: "pay_456",
				Amount:            9900,
			},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field RazorpaySignature is a required field",
			wantStatus:     "Error",
		},
		{
			name:           "signature mismatch",
			requestBody:    validReq,
			mockErr:        payment.ErrSignatureMismatch,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "payment verification failed",
			wantStatus:     "Error",
		},
		{
			name:           "amount mismatch",
			requestBody:    validReq,
			mockErr:        payment.ErrAmountMismatch,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "payment verification failed",
			wantStatus:     "Error",
		},
		{
			name:           "unknown order",
			requestBody:    validReq,
			mockErr:        payment.ErrUnknownOrder,
			wantStatusCode: http.StatusNotFound,
			wantError:      "unknown order",
			wantStatus:     "Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paymentsMock.ExpectedCalls = nil
			paymentsMock.Calls = nil

			if tt.mockSub != nil || tt.mockErr != nil {
				paymentsMock.On("Confirm", mock.Anything, sess, payment.VerifyRequest{
					OrderID:     validReq.RazorpayOrderID,
					PaymentID:   validReq.RazorpayPaymentID,
					Signature:   validReq.RazorpaySignature,
					AmountPaise: validReq.Amount,
				}).Return(tt.mockSub, tt.mockErr).Once()
			}

			var bodyBytes []byte
			var err error
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				bodyBytes, err = json.Marshal(tt.requestBody)
				if err != nil {
					t.Fatal(err)
				}
			}

			req := httptest.NewRequest(http.MethodPost, "/api/payments/verify", bytes.NewReader(bodyBytes))
			ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123")
			ctx = context.WithValue(ctx, middlewarectx.SessionKey, sess)
			req = req.WithContext(ctx)

			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var got map[string]any
			err = json.NewDecoder(rec.Body).Decode(&got)
			assert.NoError(t, err)

			assert.Equal(t, tt.wantStatus, got["status"])

			if tt.wantError != "" {
				errStr, ok := got["error"].(string)
				assert.True(t, ok)
				assert.Equal(t, tt.wantError, errStr)
			}

			if tt.mockSub != nil {
				data, ok := got["data"].(map[string]any)
				assert.True(t, ok)
				assert.Equal(t, validReq.RazorpayOrderID, data["order_id"])
				subPayload, ok := data["subscription"].(map[string]any)
				assert.True(t, ok)
				assert.Equal(t, grantedSub.PlanID, subPayload["plan_id"])
			}

			if tt.mockSub != nil || tt.mockErr != nil {
				paymentsMock.AssertExpectations(t)
			}
		})
	}
}

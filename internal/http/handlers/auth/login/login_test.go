package login

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/byonco/webgate/internal/http/middlewarectx"
	"github.com/byonco/webgate/internal/models"
	"github.com/byonco/webgate/internal/services/auth"
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) Login(ctx context.Context, email, password string) (string, *models.Session, error) {
	args := m.Called(ctx, email, password)
	sess, _ := args.Get(1).(*models.Session)
	return args.String(0), sess, args.Error(2)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLoginHandler_ServeHTTP(t *testing.T) {
	authMock := new(AuthServiceMock)
	logger := newNoopLogger()

	handler := New(logger, authMock, []string{"/find-hospitals", "/cost-calculator"}, "/find-hospitals")

	sess := &models.Session{
		UserUID:          "uid-1",
		Email:            "patient@example.com",
		DisplayName:      "Patient",
		Role:             "user",
		ProfileCompleted: true,
	}

	tests := []struct {
		name           string
		target         string
		requestBody    interface{}
		mockToken      string
		mockSess       *models.Session
		mockErr        error
		wantStatusCode int
		wantData       map[string]any
		wantError      string
		wantStatus     string
		wantCookie     bool
	}{
		{
			name:           "valid login",
			target:         "/api/auth/login",
			requestBody:    Request{Email: "patient@example.com", Password: "password123"},
			mockToken:      "tok",
			mockSess:       sess,
			wantStatusCode: http.StatusOK,
			wantData: map[string]any{
				"token":       "tok",
				"user_uid":    "uid-1",
				"role":        "user",
				"redirect_to": "/find-hospitals",
			},
			wantStatus: "OK",
			wantCookie: true,
		},
		{
			name:           "valid login with allowed redirect",
			target:         "/api/auth/login?redirect=%2Fcost-calculator",
			requestBody:    Request{Email: "patient@example.com", Password: "password123"},
			mockToken:      "tok",
			mockSess:       sess,
			wantStatusCode: http.StatusOK,
			wantData: map[string]any{
				"redirect_to": "/cost-calculator",
			},
			wantStatus: "OK",
			wantCookie: true,
		},
		{
			name:           "absolute redirect falls back to landing",
			target:         "/api/auth/login?redirect=https%3A%2F%2Fevil.example%2Fphish",
			requestBody:    Request{Email: "patient@example.com", Password: "password123"},
			mockToken:      "tok",
			mockSess:       sess,
			wantStatusCode: http.StatusOK,
			wantData: map[string]any{
				"redirect_to": "/find-hospitals",
			},
			wantStatus: "OK",
			wantCookie: true,
		},
		{
			name:           "invalid json body",
			target:         "/api/auth/login",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
			wantStatus:     "Error",
		},
		{
			name:           "validation error - missing password",
			target:         "/api/auth/login",
			requestBody:    Request{Email: "patient@example.com"},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field Password is a required field",
			wantStatus:     "Error",
		},
		{
			name:           "invalid credentials",
			target:         "/api/auth/login",
			requestBody:    Request{Email: "patient@example.com", Password: "wrongpass"},
			mockErr:        auth.ErrInvalidCredentials,
			wantStatusCode: http.StatusUnauthorized,
			wantError:      "invalid credentials",
			wantStatus:     "Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authMock.ExpectedCalls = nil
			authMock.Calls = nil

			if tt.mockSess != nil || tt.mockErr != nil {
				authMock.On("Login", mock.Anything, tt.requestBody.(Request).Email, tt.requestBody.(Request).Password).
					Return(tt.mockToken, tt.mockSess, tt.mockErr).Once()
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

			req := httptest.NewRequest(http.MethodPost, tt.target, bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))

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

			if tt.wantData != nil {
				data, ok := got["data"].(map[string]any)
				assert.True(t, ok)
				for k, v := range tt.wantData {
					assert.Equal(t, v, data[k])
				}
			}

			var sessionCookie *http.Cookie
			for _, c := range rec.Result().Cookies() {
				if c.Name == middlewarectx.SessionCookie {
					sessionCookie = c
				}
			}
			if tt.wantCookie {
				if assert.NotNil(t, sessionCookie) {
					assert.Equal(t, tt.mockToken, sessionCookie.Value)
					assert.True(t, sessionCookie.HttpOnly)
				}
			} else {
				assert.Nil(t, sessionCookie)
			}

			if tt.mockSess != nil || tt.mockErr != nil {
				authMock.AssertExpectations(t)
			}
		})
	}
}

// Package middlewarectx contains the HTTP middleware for session
// resolution, access guarding and rate limiting.
//
// SessionMiddleware resolves the caller's session from the session
// cookie, falling back to a bearer Authorization header for clients
// still holding a legacy token. Guards downstream read the session from
// the request context; an absent or invalid token simply leaves the
// context without a session.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/byonco/webgate/internal/http/response"
	"github.com/byonco/webgate/internal/models"
)

// Key is the context key type for request-scoped values.
type Key string

// SessionKey holds the *models.Session for authenticated requests.
const SessionKey Key = "session"

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "byonco_session"

// TokenParser validates a session token.
type TokenParser interface {
	ValidateToken(ctx context.Context, token string) (*models.Session, error)
}

// SessionFromContext returns the session attached to the request, or nil.
func SessionFromContext(ctx context.Context) *models.Session {
	sess, _ := ctx.Value(SessionKey).(*models.Session)
	return sess
}

// SessionMiddleware attaches the caller's session to the request context
// when a valid token is present. Invalid tokens are ignored, not
// rejected: pages fall through to the guard's redirect and API routes to
// RequireSession.
func SessionMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			sess, err := parser.ValidateToken(r.Context(), token)
			if err != nil {
				log.Debug("ignoring invalid session token", slog.String("path", r.URL.Path))
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), SessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects unauthenticated API requests with 401 JSON.
func RequireSession(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if SessionFromContext(r.Context()) == nil {
				log.Error("unauthenticated API request", slog.String("path", r.URL.Path))
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetSessionCookie attaches the session token to the response. The
// cookie is host-only and HttpOnly; its lifetime follows the token, so
// no Max-Age is set here.
func SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	// legacy token fallback
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

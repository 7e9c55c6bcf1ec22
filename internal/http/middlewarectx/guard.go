package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/middleware"

	"github.com/byonco/webgate/internal/models"
	"github.com/byonco/webgate/internal/services/access"
	"github.com/byonco/webgate/internal/services/subscription"
)

// Resolver is the subscription source the guard consults.
type Resolver interface {
	Resolve(ctx context.Context, sess *models.Session) subscription.Resolution
}

// PageGuard wraps guarded pages: it resolves the caller's subscription
// state, asks the access policy for a decision and either renders the
// page or redirects to the right funnel step, carrying the current
// path+query so the user returns after completing it.
//
// A panicking resolver counts as not-active. The guard never fails open.
func PageGuard(policy access.Policy, resolver Resolver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.PageGuard"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			sess := SessionFromContext(r.Context())
			res := safeResolve(resolver, r.Context(), sess, log)

			decision := policy.Decide(sess, res, r.URL.Path)
			if decision.Allow {
				next.ServeHTTP(w, r)
				return
			}
			redirectToFunnel(w, r, policy, decision, string(res.Reason), log)
		})
	}
}

// Entitlements is the feature-entitlement source EntitlementGuard consults.
type Entitlements interface {
	Status(ctx context.Context, userUID string) (models.Entitlement, models.SecondOpinionUsage)
}

// EntitlementGuard wraps pages that a purchased feature entitlement
// unlocks without a subscription. The decision is PageGuard's, except an
// active entitlement also opens the page. A panicking status source
// counts as not entitled.
func EntitlementGuard(policy access.Policy, resolver Resolver, entitlements Entitlements, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.EntitlementGuard"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			sess := SessionFromContext(r.Context())
			res := safeResolve(resolver, r.Context(), sess, log)
			entitled := false
			if sess != nil {
				entitled = safeEntitled(entitlements, r.Context(), sess.UserUID, log)
			}

			decision := policy.DecideEntitled(sess, res, entitled, r.URL.Path)
			if decision.Allow {
				next.ServeHTTP(w, r)
				return
			}
			redirectToFunnel(w, r, policy, decision, string(res.Reason), log)
		})
	}
}

func redirectToFunnel(w http.ResponseWriter, r *http.Request, policy access.Policy, decision access.Decision, reason string, log *slog.Logger) {
	target := decision.RedirectTo + "?" + returnParam(policy, decision.RedirectTo) + "=" + url.QueryEscape(currentLocation(r))
	log.Info("guard redirect",
		slog.String("from", r.URL.Path),
		slog.String("to", decision.RedirectTo),
		slog.String("reason", reason))
	http.Redirect(w, r, target, http.StatusFound)
}

// safeResolve converts a resolver panic into a fail-closed resolution.
func safeResolve(resolver Resolver, ctx context.Context, sess *models.Session, log *slog.Logger) (res subscription.Resolution) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("resolver panicked", slog.Any("panic", rec))
			res = subscription.Resolution{Active: false, Reason: subscription.ReasonError}
		}
	}()
	return resolver.Resolve(ctx, sess)
}

// safeEntitled converts a status-source panic into not-entitled.
func safeEntitled(entitlements Entitlements, ctx context.Context, userUID string, log *slog.Logger) (active bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("entitlement status panicked", slog.Any("panic", rec))
			active = false
		}
	}()
	ent, _ := entitlements.Status(ctx, userUID)
	return ent.Active
}

// returnParam names the query parameter carrying the return path. The
// paywall historically uses returnUrl; the auth and profile steps use
// redirect.
func returnParam(policy access.Policy, route string) string {
	if route == policy.PaywallRoute {
		return "returnUrl"
	}
	return "redirect"
}

func currentLocation(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}

package webgate

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/byonco/webgate/internal/config"
	"github.com/byonco/webgate/internal/http/handlers/auth/forgotpassword"
	"github.com/byonco/webgate/internal/http/handlers/auth/login"
	"github.com/byonco/webgate/internal/http/handlers/auth/logout"
	"github.com/byonco/webgate/internal/http/handlers/auth/profile"
	"github.com/byonco/webgate/internal/http/handlers/auth/register"
	"github.com/byonco/webgate/internal/http/handlers/auth/resetpassword"
	"github.com/byonco/webgate/internal/http/handlers/entitlement/secondopinion"
	"github.com/byonco/webgate/internal/http/handlers/pages"
	"github.com/byonco/webgate/internal/http/handlers/payment/cancel"
	"github.com/byonco/webgate/internal/http/handlers/payment/createorder"
	"github.com/byonco/webgate/internal/http/handlers/payment/status"
	"github.com/byonco/webgate/internal/http/handlers/payment/verify"
	"github.com/byonco/webgate/internal/http/middlewarectx"
	"github.com/byonco/webgate/internal/services/access"
	authservice "github.com/byonco/webgate/internal/services/auth"
	entitlementservice "github.com/byonco/webgate/internal/services/entitlement"
	paymentservice "github.com/byonco/webgate/internal/services/payment"
	"github.com/byonco/webgate/internal/services/subscription"
)

// RegisterRoutes registers all routes of the gateway.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config,
	authService *authservice.Service,
	resolver *subscription.Resolver,
	paymentService *paymentservice.Initiator,
	entitlementService *entitlementservice.Service,
) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)
	r.Use(middlewarectx.SessionMiddleware(authService, logger))

	policy := access.Policy{
		LoginRoute:   cfg.LoginRoute,
		ProfileRoute: cfg.ProfileRoute,
		PaywallRoute: cfg.PaywallRoute,
	}
	limiter := rate.NewLimiter(rate.Limit(10), 30)

	r.Route("/api", func(r chi.Router) {
		// open endpoints
		r.Post("/auth/register", register.New(logger, authService).ServeHTTP)
		r.Post("/auth/login", login.New(logger, authService, cfg.AllowedRedirects, cfg.DefaultLanding).ServeHTTP)
		r.Post("/auth/logout", logout.New(logger).ServeHTTP)
		r.Post("/auth/forgot-password", forgotpassword.New(logger, authService).ServeHTTP)
		r.Post("/auth/reset-password", resetpassword.New(logger, authService).ServeHTTP)

		// session-bound endpoints
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RequireSession(logger))
			r.Use(middlewarectx.RateLimitMiddleware(limiter, logger))

			profileHandler := profile.New(logger, authService)
			r.Get("/auth/profile", profileHandler.Show)
			r.Put("/auth/profile", profileHandler.Update)

			r.Post("/payments/create-order", createorder.New(logger, paymentService).ServeHTTP)
			r.Post("/payments/verify", verify.New(logger, paymentService).ServeHTTP)
			r.Post("/payments/cancel", cancel.New(logger, paymentService).ServeHTTP)
			r.Get("/payments/subscription/status", status.New(logger, resolver).ServeHTTP)

			soHandler := secondopinion.New(logger, entitlementService)
			r.Get("/second-opinion", soHandler.Show)
			r.Post("/second-opinion/consume", soHandler.Consume)
		})
	})

	shell := pages.New(logger)

	// funnel pages stay open so the guard's redirects have somewhere to land
	r.Get("/", shell.ServeHTTP)
	r.Get(cfg.LoginRoute, shell.ServeHTTP)
	r.Get(cfg.ProfileRoute, shell.ServeHTTP)
	r.Get(cfg.PaywallRoute, shell.ServeHTTP)

	// member pages
	r.Group(func(r chi.Router) {
		r.Use(middlewarectx.PageGuard(policy, resolver, logger))
		r.Get("/find-hospitals", shell.ServeHTTP)
		r.Get("/cost-calculator", shell.ServeHTTP)
	})

	// a purchased second-opinion entitlement opens this page without a
	// subscription
	r.Group(func(r chi.Router) {
		r.Use(middlewarectx.EntitlementGuard(policy, resolver, entitlementService, logger))
		r.Get("/second-opinion", shell.ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

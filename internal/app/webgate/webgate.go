// Package webgate assembles the gateway: storage, client-state store,
// payment provider, services, HTTP server and the subscription sweeper.
package webgate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/byonco/webgate/internal/clientstate"
	"github.com/byonco/webgate/internal/config"
	"github.com/byonco/webgate/internal/lib/jwt"
	"github.com/byonco/webgate/internal/lib/rabbitmq"
	"github.com/byonco/webgate/internal/lib/sl"
	"github.com/byonco/webgate/internal/migrations"
	"github.com/byonco/webgate/internal/paymentprovider"
	"github.com/byonco/webgate/internal/services/auth"
	"github.com/byonco/webgate/internal/services/entitlement"
	"github.com/byonco/webgate/internal/services/notifier"
	"github.com/byonco/webgate/internal/services/payment"
	"github.com/byonco/webgate/internal/services/subscription"
	"github.com/byonco/webgate/internal/services/sweeper"
	"github.com/byonco/webgate/internal/storage"
)

// App is the assembled gateway.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *storage.Storage
	sweeper  *sweeper.Sweeper
	amqpConn *amqp.Connection
}

// New wires the gateway from configuration. The AMQP broker is
// optional: when it cannot be reached, notification events are dropped
// and everything else keeps working.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	store, err := clientstate.NewRedisStore(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	amqpConn, amqpCh := connectBroker(cfg.AMQPAddress, logger)
	notifierService := notifier.New(amqpCh, logger)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	authService := auth.New(db, jwtMaker, notifierService)

	resolver := subscription.NewResolver(cfg.AdminEmails, db, store, cfg.SubscriptionCacheTTL, logger)

	providerClient := paymentprovider.NewClient(cfg.KeyID, cfg.KeySecret, cfg.APIURL)
	loader := paymentprovider.NewLoader(providerClient, cfg.ReadyTimeout)
	paymentService := payment.NewInitiator(logger, providerClient, loader, store, db, notifierService, payment.Config{
		PlanID:            cfg.PlanID,
		SubscriptionTTL:   cfg.SubscriptionTTL,
		SecondOpinionUses: cfg.SecondOpinionUses,
		InflightTTL:       cfg.InflightPaymentTTL,
		CheckoutScriptURL: cfg.CheckoutScriptURL,
	})

	entitlementService := entitlement.New(store, db, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, authService, resolver, paymentService, entitlementService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:   srv,
		logger:   logger,
		db:       db,
		sweeper:  sweeper.New(db, logger),
		amqpConn: amqpConn,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.sweeper.Start(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.sweeper.Stop()
		if a.amqpConn != nil {
			_ = a.amqpConn.Close()
		}
		_ = a.db.DB.Close()
		return err
	}
}

func connectBroker(address string, logger *slog.Logger) (*amqp.Connection, *amqp.Channel) {
	if address == "" {
		logger.Info("AMQP address not configured, notifications disabled")
		return nil, nil
	}
	conn, err := amqp.Dial(address)
	if err != nil {
		logger.Warn("AMQP broker unreachable, notifications disabled", sl.Err(err))
		return nil, nil
	}
	ch, err := conn.Channel()
	if err != nil {
		logger.Warn("failed to open AMQP channel, notifications disabled", sl.Err(err))
		_ = conn.Close()
		return nil, nil
	}
	if err := rabbitmq.SetupQueues(ch, notifier.Exchange); err != nil {
		logger.Warn("failed to declare notification queues, notifications disabled", sl.Err(err))
		_ = conn.Close()
		return nil, nil
	}
	return conn, ch
}

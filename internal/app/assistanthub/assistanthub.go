// Package assistanthub собирает приложение: хранилище, кеш, брокер,
// клиентов внешних сервисов, HTTP-маршруты и жизненный цикл сервера.
package assistanthub

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/assistant-hub/internal/billingprovider"
	"github.com/magabrotheeeer/assistant-hub/internal/cache"
	"github.com/magabrotheeeer/assistant-hub/internal/config"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/jwt"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/ratelimit"
	"github.com/magabrotheeeer/assistant-hub/internal/migrations"
	accountservice "github.com/magabrotheeeer/assistant-hub/internal/services/account"
	billingservice "github.com/magabrotheeeer/assistant-hub/internal/services/billing"
	"github.com/magabrotheeeer/assistant-hub/internal/services/completion"
	usageservice "github.com/magabrotheeeer/assistant-hub/internal/services/usage"
	"github.com/magabrotheeeer/assistant-hub/internal/storage"
)

// App держит HTTP-сервер и подключения, которые нужно закрыть при остановке.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	amqp   *amqp.Connection
}

// New собирает приложение из конфигурации.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	amqpConn, err := rabbitmq.Connect(cfg.RabbitURL, 5, 2*time.Second)
	if err != nil {
		return nil, err
	}
	amqpCh, err := rabbitmq.SetupChannel(amqpConn, rabbitmq.GetBillingQueues())
	if err != nil {
		return nil, err
	}

	maker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	providerClient := billingprovider.NewClient(cfg.Billing.SecretKey, cfg.Billing.APIURL)
	completionClient := completion.NewClient(cfg.Completion.BaseURL, cfg.Completion.APIKey, cfg.Completion.Timeout)
	limiter := ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.TTL)

	accountSvc := accountservice.New(db, maker, cfg.Quota.FreeLimit)
	usageSvc := usageservice.New(db, cacheRedis, logger)
	billingSvc := billingservice.New(providerClient, db, cfg.Billing.ProPriceRef)
	notifier := billingservice.NewRabbitNotifier(amqpCh)
	reconciler := billingservice.NewReconciler(db, notifier, cacheRedis, logger,
		cfg.Quota.FreeLimit, cfg.Quota.ProLimit)

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:          logger,
		Maker:           maker,
		Limiter:         limiter,
		AccountService:  accountSvc,
		UsageService:    usageSvc,
		BillingService:  billingSvc,
		Reconciler:      reconciler,
		Completion:      completionClient,
		WebhookSecret:   cfg.Billing.WebhookSecret,
		PortalReturnURL: cfg.Billing.PortalReturnURL,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		amqp:   amqpConn,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене контекста.
func (a *App) Run(ctx context.Context) error {
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
		a.db.DB.Close()
		a.amqp.Close()
		return err
	}
}

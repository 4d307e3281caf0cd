// Package designhub собирает HTTP-приложение сервиса: хранилище, кэш сессий,
// брокер уведомлений, Stripe и маршруты.
package designhub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/magabrotheeeer/designhub/internal/cache"
	"github.com/magabrotheeeer/designhub/internal/config"
	"github.com/magabrotheeeer/designhub/internal/http/handlers/health"
	"github.com/magabrotheeeer/designhub/internal/lib/jwt"
	"github.com/magabrotheeeer/designhub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/migrations"
	"github.com/magabrotheeeer/designhub/internal/models"
	"github.com/magabrotheeeer/designhub/internal/services/auth"
	"github.com/magabrotheeeer/designhub/internal/services/billing"
	"github.com/magabrotheeeer/designhub/internal/services/content"
	"github.com/magabrotheeeer/designhub/internal/services/files"
	"github.com/magabrotheeeer/designhub/internal/services/packages"
	"github.com/magabrotheeeer/designhub/internal/services/payments"
	"github.com/magabrotheeeer/designhub/internal/services/requests"
	"github.com/magabrotheeeer/designhub/internal/services/subscription"
	"github.com/magabrotheeeer/designhub/internal/services/users"
	"github.com/magabrotheeeer/designhub/internal/storage/memory"
	"github.com/magabrotheeeer/designhub/internal/storage/repository"
)

// Store хранилище, которое обслуживает все сервисы приложения.
// Реализуется repository.Storage (PostgreSQL) и memory.Storage.
type Store interface {
	auth.UserRepository
	billing.Repository
	content.Repository
	files.Repository
	packages.Repository
	payments.Repository
	requests.Repository
	subscription.Repository
	users.Repository
	SessionSnapshot(ctx context.Context, userID string) (*models.SessionSnapshot, error)
	Ping(ctx context.Context) error
	Close() error
}

// Services набор доменных сервисов, из которых строятся обработчики.
type Services struct {
	Auth         *auth.Service
	Sessions     *auth.SessionService
	Users        *users.Service
	Subscription *subscription.Service
	Billing      *billing.Service
	Payments     *payments.Service
	Packages     *packages.Service
	Requests     *requests.Service
	Files        *files.Service
	Content      *content.Service
}

// App HTTP-приложение с зависимостями, которые нужно закрыть при остановке.
type App struct {
	server  *http.Server
	handler http.Handler
	logger  *slog.Logger
	closers []func() error
}

// New поднимает зависимости по конфигу и собирает роутер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.designhub.New"

	app := &App{logger: logger}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	app.closers = append(app.closers, store.Close)

	checks := map[string]health.Pinger{"storage": store}

	var snapshots auth.SnapshotReader = store
	var invalidator subscription.SessionInvalidator
	if cfg.AddressRedis != "" && cfg.SnapshotTTL > 0 {
		cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.closers = append(app.closers, cacheRedis.Close)
		checks["redis"] = cacheRedis
		snapshotCache := cache.NewSnapshotCache(store, cacheRedis, cfg.SnapshotTTL, logger)
		snapshots = snapshotCache
		invalidator = snapshotCache
		logger.Info("session snapshot cache enabled", slog.Duration("ttl", cfg.SnapshotTTL))
	}

	var publisher requests.EventPublisher = rabbitmq.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.closers = append(app.closers, conn.Close)
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		publisher = rabbitmq.NewPublisher(ch)
		logger.Info("notification events enabled")
	}

	svc := buildServices(cfg, logger, store, snapshots, invalidator, publisher)

	if err := svc.Users.EnsureAdmin(ctx, cfg.BootstrapAdmin); err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app.handler = NewRouter(logger, cfg, svc, registry, checks)
	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      app.handler,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	if cfg.Storage.Driver == "memory" {
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	}
	db, err := repository.New(ctx, cfg.ConnectionString)
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}
	if version, dirty, err := migrations.Version(db.DB, cfg.MigrationsPath); err == nil {
		logger.Info("database schema is up to date", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	}
	return db, nil
}

func buildServices(
	cfg *config.Config,
	logger *slog.Logger,
	store Store,
	snapshots auth.SnapshotReader,
	invalidator subscription.SessionInvalidator,
	publisher requests.EventPublisher,
) *Services {
	maker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL, cfg.Issuer)
	subs := subscription.NewService(store, invalidator, publisher, logger)

	var provider billing.Provider
	var refunder payments.Refunder
	if cfg.StripeSecretKey != "" {
		stripeProvider := billing.NewStripeProvider(cfg.StripeSecretKey)
		provider = stripeProvider
		refunder = stripeProvider
	} else {
		logger.Warn("stripe secret key is empty, billing is disabled")
	}

	usersService := users.NewService(store, subs, invalidator, logger)

	return &Services{
		Auth:         auth.NewService(store, publisher, logger),
		Sessions:     auth.NewSessionService(snapshots, usersService, maker, logger),
		Users:        usersService,
		Subscription: subs,
		Billing:      billing.NewService(store, subs, provider, cfg.Billing, cfg.PublicURL, logger),
		Payments:     payments.NewService(store, refunder, subs, logger),
		Packages:     packages.NewService(store, logger),
		Requests:     requests.NewService(store, publisher, logger),
		Files:        files.NewService(store, logger),
		Content:      content.NewService(store, logger),
	}
}

// Handler возвращает корневой обработчик приложения.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run запускает HTTP-сервер и останавливает его при отмене ctx.
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
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

// close закрывает зависимости в обратном порядке.
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to close dependency", sl.Err(err))
		}
	}
	a.closers = nil
}

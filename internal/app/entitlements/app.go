// Package entitlements собирает сервис управления подписками и правами:
// хранилище, миграции, кеш, брокер событий, бизнес-сервисы, планировщик
// и HTTP-сервер.
package entitlements

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/subscription-entitlements/internal/cache"
	"github.com/magabrotheeeer/subscription-entitlements/internal/config"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-entitlements/internal/migrations"
	"github.com/magabrotheeeer/subscription-entitlements/internal/scheduler"
	authservice "github.com/magabrotheeeer/subscription-entitlements/internal/services/auth"
	planservice "github.com/magabrotheeeer/subscription-entitlements/internal/services/plan"
	subservice "github.com/magabrotheeeer/subscription-entitlements/internal/services/subscription"
	"github.com/magabrotheeeer/subscription-entitlements/internal/storage/repository"
)

// App объединяет HTTP-сервер и фоновые компоненты сервиса.
type App struct {
	server    *http.Server
	logger    *slog.Logger
	storage   *repository.Storage
	scheduler *scheduler.Scheduler
}

// New инициализирует все зависимости приложения.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	storage, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(storage.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	// Брокер опционален: без него события жизненного цикла не публикуются,
	// но сервис продолжает работать.
	var publisher subservice.Publisher
	if cfg.RabbitMQConnection != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQConnection, 5, 3*time.Second)
		if err != nil {
			return nil, err
		}
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetEventQueues())
		if err != nil {
			return nil, err
		}
		publisher = rabbitmq.NewEventPublisher(ch)
	} else {
		logger.Warn("rabbitmq connection is not configured, events will not be published")
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL, cfg.RefreshTTL)

	subscriptionService := subservice.NewSubscriptionService(storage, publisher, logger, nil)
	planService := planservice.NewPlanService(storage, cacheRedis, logger)
	authService := authservice.NewAuthService(storage, subscriptionService, jwtMaker)

	sched, err := scheduler.New(subscriptionService, logger)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, storage, authService, planService, subscriptionService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:    srv,
		logger:    logger,
		storage:   storage,
		scheduler: sched,
	}, nil
}

// Run запускает HTTP-сервер и планировщик, блокируясь до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	a.scheduler.Start()

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
		a.scheduler.Stop()
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.storage.DB.Close(); closeErr != nil {
			a.logger.Error("failed to close database", sl.Err(closeErr))
		}
		return err
	}
}

// Package accountservice собирает приложение: подключение к хранилищу,
// миграции, кеш, клиент платёжного провайдера, сервисы и HTTP-сервер.
package accountservice

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/account-service/internal/cache"
	"github.com/magabrotheeeer/account-service/internal/config"
	"github.com/magabrotheeeer/account-service/internal/lib/jwt"
	"github.com/magabrotheeeer/account-service/internal/migrations"
	"github.com/magabrotheeeer/account-service/internal/paymentprovider"
	accountservice "github.com/magabrotheeeer/account-service/internal/services/account"
	authservice "github.com/magabrotheeeer/account-service/internal/services/auth"
	planservice "github.com/magabrotheeeer/account-service/internal/services/plan"
	subservice "github.com/magabrotheeeer/account-service/internal/services/subscription"
	"github.com/magabrotheeeer/account-service/internal/storage/repository"
)

// App инкапсулирует HTTP-сервер и ресурсы приложения.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
}

// New собирает приложение из конфигурации: хранилище, миграции, кеш,
// клиент провайдера, сервисы, маршруты и HTTP-сервер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	providerClient := paymentprovider.NewClient(
		cfg.APIURL, cfg.ShopID, cfg.PaymentKey, cfg.TimeoutPayment)

	jwtMaker := jwt.NewMaker(cfg.JWTSecretKey, cfg.TokenTTL, logger)

	authSvc := authservice.NewAuthService(db, jwtMaker, logger)
	accountSvc := accountservice.NewAccountService(db, jwtMaker, logger)
	subscriptionSvc := subservice.NewSubscriptionService(db, providerClient, cacheRedis, logger)
	planSvc := planservice.NewPlanService(db, cacheRedis, logger)

	router := chi.NewRouter()

	RegisterRoutes(router, logger, cfg, db, authSvc, accountSvc, subscriptionSvc, planSvc)

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
		cache:  cacheRedis,
	}, nil
}

// Run запускает HTTP-сервер и ждёт сигнала завершения из контекста.
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
		_ = a.db.DB.Close()
		return err
	}
}

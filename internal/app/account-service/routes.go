// Package accountservice предоставляет маршруты для основного приложения.
package accountservice

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/account-service/internal/config"
	"github.com/magabrotheeeer/account-service/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/account-service/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/account-service/internal/http/handlers/health"
	"github.com/magabrotheeeer/account-service/internal/http/handlers/payment/webhook"
	planlist "github.com/magabrotheeeer/account-service/internal/http/handlers/plan/list"
	subcancel "github.com/magabrotheeeer/account-service/internal/http/handlers/subscription/cancel"
	subcreate "github.com/magabrotheeeer/account-service/internal/http/handlers/subscription/create"
	sublist "github.com/magabrotheeeer/account-service/internal/http/handlers/subscription/list"
	subread "github.com/magabrotheeeer/account-service/internal/http/handlers/subscription/read"
	subupdate "github.com/magabrotheeeer/account-service/internal/http/handlers/subscription/update"
	"github.com/magabrotheeeer/account-service/internal/http/handlers/user/changepassword"
	"github.com/magabrotheeeer/account-service/internal/http/handlers/user/deactivate"
	userlist "github.com/magabrotheeeer/account-service/internal/http/handlers/user/list"
	"github.com/magabrotheeeer/account-service/internal/http/handlers/user/profile"
	userupdate "github.com/magabrotheeeer/account-service/internal/http/handlers/user/update"
	"github.com/magabrotheeeer/account-service/internal/http/middlewarectx"
	accountservice "github.com/magabrotheeeer/account-service/internal/services/account"
	authservice "github.com/magabrotheeeer/account-service/internal/services/auth"
	planservice "github.com/magabrotheeeer/account-service/internal/services/plan"
	subservice "github.com/magabrotheeeer/account-service/internal/services/subscription"
	"github.com/magabrotheeeer/account-service/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config,
	db *repository.Storage,
	authSvc *authservice.AuthService,
	accountSvc *accountservice.AccountService,
	subscriptionSvc *subservice.SubscriptionService,
	planSvc *planservice.PlanService,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/auth/register", register.New(logger, authSvc).ServeHTTP)
		r.Post("/auth/login", login.New(logger, authSvc).ServeHTTP)
		r.Get("/plans", planlist.New(logger, planSvc).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(authSvc, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, cfg.RateLimit, cfg.RateLimit*2))

			r.Get("/user/me", profile.New(logger, accountSvc).ServeHTTP)
			r.Patch("/user/me", userupdate.New(logger, accountSvc).ServeHTTP)
			r.Patch("/user/password", changepassword.New(logger, accountSvc).ServeHTTP)
			r.Delete("/user/me", deactivate.New(logger, accountSvc).ServeHTTP)

			r.Post("/subscriptions", subcreate.New(logger, subscriptionSvc).ServeHTTP)
			r.Get("/subscriptions", sublist.New(logger, subscriptionSvc).ServeHTTP)
			r.Get("/subscriptions/{id}", subread.New(logger, subscriptionSvc).ServeHTTP)
			r.Put("/subscriptions/{id}", subupdate.New(logger, subscriptionSvc).ServeHTTP)
			r.Delete("/subscriptions/{id}", subcancel.New(logger, subscriptionSvc).ServeHTTP)

			// Только для администраторов
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminOnlyMiddleware(logger))
				r.Get("/users", userlist.New(logger, accountSvc).ServeHTTP)
			})
		})

		// Webhook endpoint (подпись вместо аутентификации)
		r.Post("/payments/webhook", webhook.New(logger, subscriptionSvc, cfg.WebhookSecret).ServeHTTP)
	})

	r.Get("/health", health.New(logger, db).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

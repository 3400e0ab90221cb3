// Package entitlements предоставляет маршруты для основного приложения.
package entitlements

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/feature/featurecheck"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/feature/featurelist"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/health"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/plan/plancreate"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/plan/planlist"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/plan/planread"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/plan/planremove"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/plan/plantoggle"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/plan/planupdate"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/subscription/mysubscription"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/subscription/subscancel"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/subscription/subscreate"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/subscription/subsexpire"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/subscription/subslist"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/handlers/subscription/subsrenew"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/middlewarectx"
	authservice "github.com/magabrotheeeer/subscription-entitlements/internal/services/auth"
	planservice "github.com/magabrotheeeer/subscription-entitlements/internal/services/plan"
	subservice "github.com/magabrotheeeer/subscription-entitlements/internal/services/subscription"
	"github.com/magabrotheeeer/subscription-entitlements/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, storage *repository.Storage,
	authService *authservice.AuthService, planService *planservice.PlanService,
	subscriptionService *subservice.SubscriptionService) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, authService).ServeHTTP)
		r.Post("/login", login.New(logger, authService).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(authService, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			r.Get("/plans", planlist.New(logger, planService).ServeHTTP)
			r.Get("/plans/{id}", planread.New(logger, planService).ServeHTTP)

			r.Get("/subscriptions", subslist.New(logger, subscriptionService).ServeHTTP)
			r.Get("/subscriptions/my", mysubscription.New(logger, subscriptionService).ServeHTTP)

			r.Get("/features", featurelist.New(logger, subscriptionService).ServeHTTP)
			r.Get("/features/{name}", featurecheck.New(logger, subscriptionService).ServeHTTP)

			// Группа только для администраторов
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminOnlyMiddleware(logger))

				r.Post("/plans", plancreate.New(logger, planService).ServeHTTP)
				r.Put("/plans/{id}", planupdate.New(logger, planService).ServeHTTP)
				r.Patch("/plans/{id}/toggle", plantoggle.New(logger, planService).ServeHTTP)
				r.Delete("/plans/{id}", planremove.New(logger, planService).ServeHTTP)

				r.Post("/subscriptions", subscreate.New(logger, subscriptionService).ServeHTTP)
				r.Post("/subscriptions/{id}/cancel", subscancel.New(logger, subscriptionService).ServeHTTP)
				r.Post("/subscriptions/{id}/renew", subsrenew.New(logger, subscriptionService).ServeHTTP)
				r.Post("/subscriptions/{id}/expire", subsexpire.New(logger, subscriptionService).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(logger, storage).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

// Package assistanthub предоставляет маршруты для основного приложения.
package assistanthub

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/assistant-hub/internal/http/handlers/assist"
	"github.com/magabrotheeeer/assistant-hub/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/assistant-hub/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/assistant-hub/internal/http/handlers/billing/cancel"
	"github.com/magabrotheeeer/assistant-hub/internal/http/handlers/billing/checkout"
	"github.com/magabrotheeeer/assistant-hub/internal/http/handlers/billing/portal"
	"github.com/magabrotheeeer/assistant-hub/internal/http/handlers/billing/reactivate"
	"github.com/magabrotheeeer/assistant-hub/internal/http/handlers/billing/subscriptionread"
	"github.com/magabrotheeeer/assistant-hub/internal/http/handlers/billing/usageread"
	"github.com/magabrotheeeer/assistant-hub/internal/http/handlers/billing/webhook"
	"github.com/magabrotheeeer/assistant-hub/internal/http/handlers/health"
	"github.com/magabrotheeeer/assistant-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/jwt"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/ratelimit"
	accountservice "github.com/magabrotheeeer/assistant-hub/internal/services/account"
	billingservice "github.com/magabrotheeeer/assistant-hub/internal/services/billing"
	"github.com/magabrotheeeer/assistant-hub/internal/services/completion"
	usageservice "github.com/magabrotheeeer/assistant-hub/internal/services/usage"
)

// Deps — зависимости HTTP-слоя.
type Deps struct {
	Logger          *slog.Logger
	Maker           jwt.Maker
	Limiter         *ratelimit.Limiter
	AccountService  *accountservice.Service
	UsageService    *usageservice.Service
	BillingService  *billingservice.Service
	Reconciler      *billingservice.Reconciler
	Completion      completion.Provider
	WebhookSecret   string
	PortalReturnURL string
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/auth/register", register.New(d.Logger, d.AccountService).ServeHTTP)
		r.Post("/auth/login", login.New(d.Logger, d.AccountService).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Maker, d.Logger))
			r.Use(middlewarectx.RateLimitMiddleware(d.Limiter, d.Logger))

			r.Get("/billing/subscription", subscriptionread.New(d.Logger, d.UsageService).ServeHTTP)
			r.Get("/billing/usage", usageread.New(d.Logger, d.UsageService).ServeHTTP)
			r.Post("/billing/checkout", checkout.New(d.Logger, d.BillingService).ServeHTTP)
			r.Post("/billing/portal", portal.New(d.Logger, d.BillingService, d.PortalReturnURL).ServeHTTP)
			r.Post("/billing/cancel", cancel.New(d.Logger, d.BillingService).ServeHTTP)
			r.Post("/billing/reactivate", reactivate.New(d.Logger, d.BillingService).ServeHTTP)

			// Задачи ассистента проходят через проверку квоты
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.QuotaGateMiddleware(d.UsageService, d.Logger))
				for _, task := range []string{
					completion.TaskSummarize,
					completion.TaskFillField,
					completion.TaskGenerate,
					completion.TaskAnalyze,
				} {
					r.Post("/assist/"+task, assist.New(d.Logger, d.Completion, d.UsageService, task).ServeHTTP)
				}
			})
		})

		// Webhook endpoint (без аутентификации, проверяется подписью)
		r.Post("/billing/webhook", webhook.New(d.Logger, d.Reconciler, d.WebhookSecret).ServeHTTP)
	})

	r.Get("/health", health.New(d.Logger).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

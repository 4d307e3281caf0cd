package designhub

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/designhub/internal/config"
	"github.com/magabrotheeeer/designhub/internal/http/handlers/admin"
	"github.com/magabrotheeeer/designhub/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/designhub/internal/http/handlers/auth/password"
	"github.com/magabrotheeeer/designhub/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/designhub/internal/http/handlers/auth/session"
	"github.com/magabrotheeeer/designhub/internal/http/handlers/auth/signout"
	billinghandler "github.com/magabrotheeeer/designhub/internal/http/handlers/billing"
	contenthandler "github.com/magabrotheeeer/designhub/internal/http/handlers/content"
	fileshandler "github.com/magabrotheeeer/designhub/internal/http/handlers/files"
	"github.com/magabrotheeeer/designhub/internal/http/handlers/health"
	packageshandler "github.com/magabrotheeeer/designhub/internal/http/handlers/packages"
	"github.com/magabrotheeeer/designhub/internal/http/handlers/pages"
	paymentshandler "github.com/magabrotheeeer/designhub/internal/http/handlers/payments"
	"github.com/magabrotheeeer/designhub/internal/http/handlers/profile"
	requestshandler "github.com/magabrotheeeer/designhub/internal/http/handlers/requests"
	"github.com/magabrotheeeer/designhub/internal/http/handlers/uploads"
	"github.com/magabrotheeeer/designhub/internal/http/middlewarectx"
)

// NewRouter регистрирует все маршруты приложения.
func NewRouter(logger *slog.Logger, cfg *config.Config, svc *Services, registry *prometheus.Registry, checks map[string]health.Pinger) http.Handler {
	cookies := middlewarectx.Cookies{
		Name:   cfg.CookieName,
		Secure: cfg.CookieSecure,
		TTL:    cfg.TokenTTL,
	}
	metrics := middlewarectx.NewMetrics(registry)
	guard := middlewarectx.NewGuard(cfg.Guard, metrics)
	limiter := middlewarectx.NewIPRateLimiter(cfg.RPS, cfg.Burst)

	pagesHandler := pages.New(logger, pages.Deps{
		Profiles:      svc.Users,
		Subscriptions: svc.Subscription,
		Requests:      svc.Requests,
		Packages:      svc.Packages,
		Payments:      svc.Payments,
	}, cfg.Guard)
	sessionHandler := session.New(logger, svc.Sessions, cookies)
	profileHandler := profile.New(logger, svc.Users, svc.Sessions, cookies)
	packagesHandler := packageshandler.New(logger, svc.Packages)
	requestsHandler := requestshandler.New(logger, svc.Requests, svc.Files)
	filesHandler := fileshandler.New(logger, svc.Files)
	paymentsHandler := paymentshandler.New(logger, svc.Payments)
	contentHandler := contenthandler.New(logger, svc.Content)
	adminHandler := admin.New(logger, svc.Users, svc.Subscription)
	billingHandler := billinghandler.New(logger, svc.Billing, svc.Subscription)

	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		metrics.Middleware,
		middlewarectx.SessionMiddleware(logger, svc.Sessions, cookies),
		guard.Middleware(logger),
	)

	// Страницы, доступ к которым решает guard
	r.Get(cfg.DashboardPath, pagesHandler.Dashboard)
	r.Get(cfg.BillingPath, pagesHandler.Billing)
	r.Get("/dashboard/requests/new", pagesHandler.NewRequest)
	r.Get(cfg.CheckoutPath, pagesHandler.Checkout)
	r.Get(cfg.SignInPath, pagesHandler.SignIn)
	r.Get(cfg.SignUpPath, pagesHandler.SignUp)
	r.With(middlewarectx.RequireAuth).Get("/subscribe/test", pagesHandler.SubscribeTest)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, limiter))
			r.Post("/register", register.New(logger, svc.Auth, svc.Sessions, cookies).ServeHTTP)
			r.Post("/signin", login.New(logger, svc.Auth, svc.Sessions, cookies).ServeHTTP)
			r.Post("/signout", signout.New(logger, cookies).ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireAuth)
				r.Get("/session", sessionHandler.Get)
				r.Patch("/session", sessionHandler.Update)
				r.Post("/password", password.New(logger, svc.Auth).ServeHTTP)
			})
		})

		// Открытые конечные точки
		r.Get("/packages", packagesHandler.List)
		r.Get("/packages/{id}", packagesHandler.Get)
		r.Get("/services", contentHandler.ListServices)
		r.Get("/services/{id}", contentHandler.GetService)
		r.Get("/case-studies", contentHandler.ListCaseStudies)
		r.Get("/case-studies/{id}", contentHandler.GetCaseStudy)
		r.Get("/testimonials", contentHandler.ListTestimonials)
		r.Get("/testimonials/{id}", contentHandler.GetTestimonial)
		r.Get("/subscription/check", pagesHandler.CheckSubscription)

		// Колбэки внешних провайдеров проверяют подпись сами
		r.Post("/uploads/callback", uploads.New(logger, svc.Files, cfg.CallbackSecret).ServeHTTP)
		r.Post("/billing/webhook", billingHandler.Webhook)

		// Группа с обязательной сессией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RequireAuth)

			r.Get("/profile", profileHandler.Get)
			r.Patch("/profile", profileHandler.Update)
			r.Patch("/onboarding", profileHandler.Onboarding)

			r.Get("/requests", requestsHandler.List)
			r.Post("/requests", requestsHandler.Create)
			r.Get("/requests/{id}", requestsHandler.Get)
			r.Put("/requests/{id}", requestsHandler.Update)
			r.Delete("/requests/{id}", requestsHandler.Delete)
			r.Patch("/requests/{id}/status", requestsHandler.ChangeStatus)
			r.Get("/requests/{id}/files", requestsHandler.Files)

			r.Get("/files", filesHandler.List)
			r.Delete("/files/{id}", filesHandler.Delete)

			r.Get("/payments", paymentsHandler.List)
			r.Get("/payments/{id}", paymentsHandler.Get)

			// Кейсы редактирует автор или администратор, проверка в сервисе
			r.Post("/case-studies", contentHandler.CreateCaseStudy)
			r.Put("/case-studies/{id}", contentHandler.UpdateCaseStudy)
			r.Delete("/case-studies/{id}", contentHandler.DeleteCaseStudy)

			r.Get("/billing/subscription", billingHandler.Subscription)
			r.Post("/billing/checkout", billingHandler.Checkout)
			r.Post("/billing/portal", billingHandler.Portal)
			r.Post("/billing/sync", billingHandler.Sync)
		})

		// Группа администратора
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RequireAdmin)

			r.Post("/packages", packagesHandler.Create)
			r.Put("/packages/{id}", packagesHandler.Update)
			r.Delete("/packages/{id}", packagesHandler.Archive)

			r.Post("/services", contentHandler.CreateService)
			r.Put("/services/{id}", contentHandler.UpdateService)
			r.Delete("/services/{id}", contentHandler.DeleteService)
			r.Post("/testimonials", contentHandler.CreateTestimonial)
			r.Put("/testimonials/{id}", contentHandler.UpdateTestimonial)
			r.Delete("/testimonials/{id}", contentHandler.DeleteTestimonial)

			r.Post("/payments/{id}/refund", paymentsHandler.Refund)

			r.Get("/admin/users", adminHandler.ListUsers)
			r.Get("/admin/users/{id}", adminHandler.GetUser)
			r.Patch("/admin/users/{id}", adminHandler.UpdateUser)
			r.Post("/admin/subscriptions", adminHandler.GrantSubscription)
		})
	})

	r.Handle("/health", health.New(logger, checks))
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)

	return r
}

package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/notelay/notelay-backend/api/controllers"
	webhookcontrollers "github.com/notelay/notelay-backend/api/controllers/webhooks"
	"github.com/notelay/notelay-backend/api/middleware"
	checkoutsvc "github.com/notelay/notelay-backend/internal/checkout"
	"github.com/notelay/notelay-backend/internal/reconcile"
	"github.com/notelay/notelay-backend/internal/users"
	"github.com/notelay/notelay-backend/internal/webhooks"
	"github.com/notelay/notelay-backend/pkg/config"
	"github.com/notelay/notelay-backend/pkg/db"
	"github.com/notelay/notelay-backend/pkg/logger"
	"github.com/notelay/notelay-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	coordinator *reconcile.Coordinator,
	checkoutService *checkoutsvc.Service,
	handoffs *reconcile.HandoffStore,
	usersRepo *users.Repository,
	webhookGuard *webhooks.IdempotencyGuard,
	promRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(coordinator, webhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/checkout", controllers.StartCheckout(checkoutService, usersRepo, logg))
		r.Get("/checkout/result", controllers.CheckoutResult(coordinator, handoffs, checkoutService, logg))
		r.Get("/payment-links/{linkID}/verify", controllers.VerifyPaymentLink(coordinator, logg))
		r.Post("/upgrade/optimistic", controllers.OptimisticUpgrade(coordinator, logg))
	})

	return r
}

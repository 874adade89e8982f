package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spewite/score-to-midi-backend/api/controllers"
	webhookcontrollers "github.com/spewite/score-to-midi-backend/api/controllers/webhooks"
	"github.com/spewite/score-to-midi-backend/api/middleware"
	checkoutsvc "github.com/spewite/score-to-midi-backend/internal/checkout"
	"github.com/spewite/score-to-midi-backend/internal/confirm"
	"github.com/spewite/score-to-midi-backend/internal/cron"
	"github.com/spewite/score-to-midi-backend/internal/entitlements"
	"github.com/spewite/score-to-midi-backend/internal/midifiles"
	"github.com/spewite/score-to-midi-backend/internal/payments"
	stripewebhook "github.com/spewite/score-to-midi-backend/internal/webhooks/stripe"
	"github.com/spewite/score-to-midi-backend/pkg/config"
	"github.com/spewite/score-to-midi-backend/pkg/db"
	"github.com/spewite/score-to-midi-backend/pkg/logger"
	"github.com/spewite/score-to-midi-backend/pkg/metrics"
	"github.com/spewite/score-to-midi-backend/pkg/redis"
	"github.com/spewite/score-to-midi-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	checkoutService checkoutsvc.Service,
	midiService midifiles.Service,
	paymentsService payments.Service,
	confirmPoller *confirm.Poller,
	entitlementsRepo entitlements.Repository,
	expireJob cron.Job,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
	webhookMetrics *metrics.WebhookMetrics,
) http.Handler {
	var redisP redis.Pinger
	if redisClient != nil {
		redisP = redisClient
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, webhookMetrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Post("/checkout/session", controllers.CreateCheckoutSession(checkoutService, logg))
			r.Post("/midi-files", controllers.RegisterMidiFile(midiService, logg))
		})

		r.Get("/payments/session-status", controllers.PaymentSessionStatus(paymentsService, logg))
		r.Get("/payments/confirm", controllers.PaymentConfirm(confirmPoller, logg))
		r.Get("/purchases/status", controllers.PurchaseStatus(entitlementsRepo, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Get("/midi-files", controllers.ListMidiFiles(midiService, logg))
			r.Post("/subscriptions/activate", controllers.ActivateSubscription(paymentsService, logg))
		})

		r.Get("/cron/expire-subscriptions", controllers.RunExpireSubscriptions(cfg.Cron, expireJob, logg))
	})

	return r
}

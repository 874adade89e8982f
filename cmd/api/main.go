package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spewite/score-to-midi-backend/api/routes"
	"github.com/spewite/score-to-midi-backend/internal/checkout"
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
	"github.com/spewite/score-to-midi-backend/pkg/migrate"
	"github.com/spewite/score-to-midi-backend/pkg/redis"
	"github.com/spewite/score-to-midi-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}
	sessionClient := checkout.NewSessionClient(stripeClient)

	entitlementsRepo := entitlements.NewRepository(dbClient.DB(), cfg.Billing.SubscriptionConflictKey)
	midiRepo := midifiles.NewRepository(dbClient.DB())

	midiService, err := midifiles.NewService(midifiles.ServiceParams{Repo: midiRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create midi files service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Client:  sessionClient,
		Files:   midiRepo,
		Stripe:  cfg.Stripe,
		BaseURL: cfg.App.BaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Entitlements:      entitlementsRepo,
		StripeClient:      sessionClient,
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	confirmPoller, err := confirm.NewPoller(paymentsService, cfg.Confirm)
	if err != nil {
		logg.Error(context.Background(), "failed to create confirmation poller", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Entitlements:      entitlementsRepo,
		Files:             midiRepo,
		StripeClient:      sessionClient,
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.IdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)

	expireJob, err := cron.NewExpireSubscriptionsJob(cron.ExpireSubscriptionsJobParams{
		Logger:       logg,
		DB:           dbClient,
		Entitlements: entitlementsRepo,
		Metrics:      cronMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry job", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			checkoutService,
			midiService,
			paymentsService,
			confirmPoller,
			entitlementsRepo,
			expireJob,
			stripeClient,
			webhookService,
			webhookGuard,
			webhookMetrics,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

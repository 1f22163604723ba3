package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/notelay/notelay-backend/api/routes"
	"github.com/notelay/notelay-backend/internal/audit"
	"github.com/notelay/notelay-backend/internal/checkout"
	"github.com/notelay/notelay-backend/internal/reconcile"
	"github.com/notelay/notelay-backend/internal/users"
	"github.com/notelay/notelay-backend/internal/webhooks"
	"github.com/notelay/notelay-backend/pkg/config"
	"github.com/notelay/notelay-backend/pkg/db"
	"github.com/notelay/notelay-backend/pkg/enums"
	"github.com/notelay/notelay-backend/pkg/logger"
	"github.com/notelay/notelay-backend/pkg/metrics"
	"github.com/notelay/notelay-backend/pkg/migrate"
	"github.com/notelay/notelay-backend/pkg/mollie"
	"github.com/notelay/notelay-backend/pkg/redis"
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

	gateway, err := mollie.NewClient(context.Background(), cfg.Mollie, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment client", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	auditRepo := audit.NewRepository(dbClient.DB())

	ledger, err := reconcile.NewLedger(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger", err)
		os.Exit(1)
	}

	resolver, err := reconcile.NewResolver(gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create resolver", err)
		os.Exit(1)
	}

	identity, err := reconcile.NewStrategy(usersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create identity strategy", err)
		os.Exit(1)
	}

	upgradedTier, err := enums.ParseEntitlementTier(cfg.Reconcile.UpgradedTierName)
	if err != nil {
		logg.Error(context.Background(), "invalid upgraded tier config", err)
		os.Exit(1)
	}

	applier, err := reconcile.NewApplier(usersRepo, auditRepo, upgradedTier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create applier", err)
		os.Exit(1)
	}

	handoffs, err := reconcile.NewHandoffStore(redisClient, cfg.Reconcile.HandoffTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create handoff store", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reconcileMetrics := metrics.NewReconcileMetrics(promRegistry)

	coordinator, err := reconcile.NewCoordinator(reconcile.CoordinatorParams{
		Ledger:   ledger,
		Resolver: resolver,
		Identity: identity,
		Applier:  applier,
		Gateway:  gateway,
		Handoffs: handoffs,
		Metrics:  reconcileMetrics,
		Config:   cfg.Reconcile,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create coordinator", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Gateway:  gateway,
		Handoffs: handoffs,
		Mollie:   cfg.Mollie,
		Product:  cfg.Checkout,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookGuard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Reconcile.WebhookGuardTTL, "payments")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			coordinator,
			checkoutService,
			handoffs,
			usersRepo,
			webhookGuard,
			promRegistry,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

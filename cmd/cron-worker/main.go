package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lokabekas/lokabekas-backend/internal/cron"
	"github.com/lokabekas/lokabekas-backend/internal/invoices"
	"github.com/lokabekas/lokabekas-backend/internal/ledger"
	"github.com/lokabekas/lokabekas-backend/internal/offers"
	"github.com/lokabekas/lokabekas-backend/internal/products"
	"github.com/lokabekas/lokabekas-backend/internal/purchases"
	"github.com/lokabekas/lokabekas-backend/internal/stores"
	"github.com/lokabekas/lokabekas-backend/pkg/config"
	"github.com/lokabekas/lokabekas-backend/pkg/db"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
	"github.com/lokabekas/lokabekas-backend/pkg/metrics"
	"github.com/lokabekas/lokabekas-backend/pkg/migrate"
	"github.com/lokabekas/lokabekas-backend/pkg/outbox"
	"github.com/lokabekas/lokabekas-backend/pkg/payment"
	"github.com/lokabekas/lokabekas-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	invoiceSvc, outboxRepo, err := buildJobDeps(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire cron dependencies", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	expiryJob, err := cron.NewInvoiceExpiryJob(logg, invoiceSvc, cfg.Cron.InvoiceSweepBatch)
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice expiry job", err)
		os.Exit(1)
	}
	registry.Register(expiryJob)

	retentionJob, err := cron.NewOutboxRetentionJob(logg, outboxRepo, cfg.Cron.OutboxRetentionDays, cfg.Cron.OutboxRetentionBatch)
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	registry.Register(retentionJob)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobDeps(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (invoices.Service, *outbox.Repository, error) {
	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outboxRepo, logg)

	ledgerSvc, err := ledger.NewService(dbClient, ledger.NewRepository(gormDB))
	if err != nil {
		return nil, nil, err
	}

	productSvc, err := products.NewService(products.NewRepository(gormDB))
	if err != nil {
		return nil, nil, err
	}

	purchaseSvc, err := purchases.NewService(
		dbClient,
		purchases.NewRepository(gormDB),
		products.NewRepository(gormDB),
		productSvc,
		offers.NewRepository(gormDB),
		stores.NewRepository(gormDB),
		ledgerSvc,
		invoices.NewRepository(gormDB),
		outboxSvc,
		logg,
	)
	if err != nil {
		return nil, nil, err
	}

	paymentClient, err := payment.NewClient(cfg.Payment, logg)
	if err != nil {
		return nil, nil, err
	}
	invoiceSvc, err := invoices.NewService(dbClient, invoices.NewRepository(gormDB), purchaseSvc, paymentClient, outboxSvc, logg, cfg.Payment)
	if err != nil {
		return nil, nil, err
	}
	return invoiceSvc, outboxRepo, nil
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("cron-worker:%s", env)
}

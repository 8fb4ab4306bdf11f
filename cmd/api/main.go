package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/lokabekas/lokabekas-backend/api/routes"
	"github.com/lokabekas/lokabekas-backend/internal/addresses"
	"github.com/lokabekas/lokabekas-backend/internal/checkout"
	"github.com/lokabekas/lokabekas-backend/internal/complaints"
	"github.com/lokabekas/lokabekas-backend/internal/invoices"
	"github.com/lokabekas/lokabekas-backend/internal/ledger"
	"github.com/lokabekas/lokabekas-backend/internal/offers"
	"github.com/lokabekas/lokabekas-backend/internal/products"
	"github.com/lokabekas/lokabekas-backend/internal/purchases"
	"github.com/lokabekas/lokabekas-backend/internal/stores"
	"github.com/lokabekas/lokabekas-backend/internal/users"
	"github.com/lokabekas/lokabekas-backend/internal/withdrawals"
	"github.com/lokabekas/lokabekas-backend/pkg/config"
	"github.com/lokabekas/lokabekas-backend/pkg/db"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
	"github.com/lokabekas/lokabekas-backend/pkg/migrate"
	"github.com/lokabekas/lokabekas-backend/pkg/outbox"
	"github.com/lokabekas/lokabekas-backend/pkg/payment"
	"github.com/lokabekas/lokabekas-backend/pkg/redis"
	"github.com/lokabekas/lokabekas-backend/pkg/shipping"
	"github.com/lokabekas/lokabekas-backend/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

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

	gcsClient, err := gcs.New(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap object storage", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing object storage", err)
		}
	}()

	deps, err := buildServices(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	deps.Cfg = cfg
	deps.Logg = logg
	deps.DB = dbClient
	deps.Redis = redisClient
	deps.GCS = gcsClient

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(deps),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shut down gracefully")
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (routes.Deps, error) {
	gormDB := dbClient.DB()

	userSvc, err := users.NewService(dbClient, users.NewRepository(gormDB), logg, cfg.JWT, cfg.Password)
	if err != nil {
		return routes.Deps{}, err
	}

	ledgerSvc, err := ledger.NewService(dbClient, ledger.NewRepository(gormDB))
	if err != nil {
		return routes.Deps{}, err
	}

	productSvc, err := products.NewService(products.NewRepository(gormDB))
	if err != nil {
		return routes.Deps{}, err
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)
	addressRepo := addresses.NewRepository(gormDB)
	storeRepo := stores.NewRepository(gormDB)
	offerRepo := offers.NewRepository(gormDB)
	invoiceRepo := invoices.NewRepository(gormDB)

	purchaseSvc, err := purchases.NewService(
		dbClient,
		purchases.NewRepository(gormDB),
		products.NewRepository(gormDB),
		productSvc,
		offerRepo,
		storeRepo,
		ledgerSvc,
		invoiceRepo,
		outboxSvc,
		logg,
	)
	if err != nil {
		return routes.Deps{}, err
	}

	paymentClient, err := payment.NewClient(cfg.Payment, logg)
	if err != nil {
		return routes.Deps{}, err
	}
	invoiceSvc, err := invoices.NewService(dbClient, invoiceRepo, purchaseSvc, paymentClient, outboxSvc, logg, cfg.Payment)
	if err != nil {
		return routes.Deps{}, err
	}

	shippingClient, err := shipping.NewClient(cfg.Shipping, logg)
	if err != nil {
		return routes.Deps{}, err
	}
	checkoutSvc, err := checkout.NewService(
		dbClient,
		checkout.NewRepository(gormDB),
		products.NewRepository(gormDB),
		addressRepo,
		storeRepo,
		shippingClient,
		purchaseSvc,
		invoiceSvc,
		outboxSvc,
		logg,
		cfg.Payment,
	)
	if err != nil {
		return routes.Deps{}, err
	}

	withdrawalSvc, err := withdrawals.NewService(dbClient, withdrawals.NewRepository(gormDB), ledgerSvc, outboxSvc, logg, cfg.Withdrawal)
	if err != nil {
		return routes.Deps{}, err
	}

	complaintSvc, err := complaints.NewService(dbClient, complaints.NewRepository(gormDB), purchaseSvc, outboxSvc, logg)
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		Users:       userSvc,
		Addresses:   addressRepo,
		Stores:      storeRepo,
		Checkout:    checkoutSvc,
		Purchases:   purchaseSvc,
		Invoices:    invoiceSvc,
		Ledger:      ledgerSvc,
		Withdrawals: withdrawalSvc,
		Complaints:  complaintSvc,
	}, nil
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/gstledger/gstledger/internal/app"
	"github.com/gstledger/gstledger/internal/billing"
	"github.com/gstledger/gstledger/internal/platform/cache"
	"github.com/gstledger/gstledger/internal/platform/db"
	"github.com/gstledger/gstledger/internal/shared"
	"github.com/gstledger/gstledger/internal/users"
	"github.com/gstledger/gstledger/internal/vendors"
	"github.com/gstledger/gstledger/internal/wallet"
	"github.com/gstledger/gstledger/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	idempotencyStore := shared.NewIdempotencyStore(pool)

	vendorRepo := vendors.NewRepository(pool)
	vendorService := vendors.NewService(vendorRepo)
	vendorHandler := vendors.NewHandler(logger, vendorService)

	walletRepo := wallet.NewRepository(pool)
	walletService := wallet.NewService(walletRepo)
	walletHandler := wallet.NewHandler(logger, walletService)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, vendorService, logger)
	billingHandler := billing.NewHandler(logger, billingService, idempotencyStore)

	userRepo := users.NewRepository(pool)
	userService := users.NewService(userRepo)
	authHandler := users.NewHandler(logger, userService)

	var jobHandler *jobs.Handler
	var syncClient *jobs.Client
	if cfg.SheetSyncEnabled {
		if _, err := cache.New(ctx, cfg.RedisAddr); err != nil {
			logger.Warn("redis ping", slog.Any("error", err))
		}
		syncClient, err = jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			logger.Error("init asynq client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := syncClient.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}()
		billingService.SetSyncNotifier(jobs.NewNotifier(syncClient))

		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthHandler:    authHandler,
		VendorHandler:  vendorHandler,
		BillingHandler: billingHandler,
		WalletHandler:  walletHandler,
		JobHandler:     jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := idempotencyStore.Cleanup(gctx, cfg.IdempotencyTTL); err != nil {
					logger.Warn("idempotency cleanup", slog.Any("error", err))
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("shutdown", slog.Any("error", err))
		os.Exit(1)
	}
}

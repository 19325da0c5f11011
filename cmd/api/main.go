package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/commercekit/paygate/internal/application/checkout"
	"github.com/commercekit/paygate/internal/bootstrap"
	"github.com/commercekit/paygate/internal/controller"
	"github.com/commercekit/paygate/internal/domain/transaction"
	infraRedis "github.com/commercekit/paygate/internal/infrastructure/redis"
	"github.com/commercekit/paygate/internal/repository/postgres"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "paygate-api", "paygate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Gateways ---
	registry, err := bootstrap.BuildRegistry(&app.Config.Providers, app.Metrics)
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to build gateway registry")
	}
	app.Logger.Info().Int("providers", len(registry.Kinds())).Msg("Gateways registered")

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go bootstrap.WatchBreakers(watchCtx, registry, app.Metrics, 15*time.Second)

	// --- Repositories ---
	transactionRepo := postgres.NewTransactionRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)
	stepLocks := infraRedis.NewStepLockManager(app.Redis, app.Config.Payment.LockTTL)
	stepLocks.OnContention(func(step transaction.Type) {
		app.Metrics.StepLockContention.WithLabelValues(string(step)).Inc()
	})

	// --- Application services ---
	initializeUC := checkout.NewInitializePaymentUseCase(registry, transactionRepo, outboxRepo, txManager, stepLocks)
	authorizeUC := checkout.NewAuthorizePaymentUseCase(registry, transactionRepo, outboxRepo, txManager, stepLocks)
	chargeUC := checkout.NewChargePaymentUseCase(registry, transactionRepo, outboxRepo, txManager, stepLocks)
	captureUC := checkout.NewCapturePaymentUseCase(registry, transactionRepo, outboxRepo, txManager, stepLocks)
	refundUC := checkout.NewRefundPaymentUseCase(registry, transactionRepo, outboxRepo, txManager, stepLocks)
	listUC := checkout.NewListTransactionsUseCase(transactionRepo)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:            app.Pool,
		RedisClient:     app.Redis,
		Initialize:      initializeUC,
		Authorize:       authorizeUC,
		Charge:          chargeUC,
		Capture:         captureUC,
		Refund:          refundUC,
		List:            listUC,
		IdempotencyRepo: idempotencyRepo,
		Metrics:         app.Metrics,
		ServerConfig:    app.Config.Server,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}

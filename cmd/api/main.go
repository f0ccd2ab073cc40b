package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"flowpay/internal/api"
	"flowpay/internal/config"
	"flowpay/internal/fx"
	"flowpay/internal/ledger"
	"flowpay/internal/payments"
	"flowpay/internal/repository/memory"
	"flowpay/internal/service"
	"flowpay/pkg/crypto"
	"flowpay/pkg/metrics"
)

const (
	appName = "flowpay"
)

func main() {
	_ = godotenv.Load()

	logger := setupLogger()
	logger.Info("Starting application",
		slog.String("name", appName))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	collector := metrics.NewCollector(logger)
	signer := crypto.NewSigner(cfg.Webhooks.SigningSecret, logger)

	collectRepo := memory.NewCollectRepository()
	poolRepo := memory.NewPoolRepository()
	corridorRepo := memory.NewCorridorRepository()
	fxPoolRepo := memory.NewFXPoolRepository()
	rateLockRepo := memory.NewRateLockRepository()
	recurringRepo := memory.NewRecurringRepository()
	webhookRepo := memory.NewWebhookRepository()

	gateway := setupGateway(cfg, logger)
	oracle := setupOracle(cfg)
	fxService := fx.NewService(oracle, rateLockRepo, logger)

	dispatcher := service.NewDispatcher(webhookRepo, signer, collector, service.DispatcherConfig{
		Workers:     cfg.Webhooks.Workers,
		QueueSize:   cfg.Webhooks.QueueSize,
		MaxAttempts: cfg.Webhooks.MaxAttempts,
		RetryDelay:  time.Duration(cfg.Webhooks.RetryDelayMS) * time.Millisecond,
	}, logger)

	assumeBalance := cfg.Ledger.AssumeSufficientOnBalanceErr
	collects := payments.NewCollectService(collectRepo, gateway, dispatcher, assumeBalance, logger)
	pools := payments.NewPoolService(poolRepo, gateway, dispatcher, assumeBalance, logger)
	corridors := payments.NewCorridorService(corridorRepo, gateway, fxService, dispatcher,
		time.Duration(cfg.FX.LockDurationMinutes)*time.Minute, cfg.FX.MaxDriftPct, assumeBalance, logger)
	fxpools := payments.NewFXPoolService(fxPoolRepo, gateway, fxService, dispatcher, logger)
	recurring := payments.NewRecurringService(recurringRepo, gateway, dispatcher, assumeBalance, logger)
	analytics := payments.NewAnalyticsService(collectRepo, poolRepo, corridorRepo, fxPoolRepo, recurringRepo)

	var sweeper *service.Sweeper
	if cfg.Sweep.Enabled {
		sweeper = service.NewSweeper(collects, pools, fxpools, recurring, fxService,
			time.Duration(cfg.Sweep.IntervalSeconds)*time.Second, logger)
		sweeper.Start()
	}

	handler := api.NewHandler(collects, pools, corridors, fxpools, recurring, analytics, fxService, dispatcher, collector, logger)

	metricsServer := collector.StartMetricsServer(cfg.Metrics.Addr)
	httpServer := startHTTPServer(cfg.Server.Addr, handler, logger)

	waitForShutdown(logger, httpServer, metricsServer, dispatcher, sweeper)
	logger.Info("Application shutdown complete")
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

func setupGateway(cfg *config.Config, logger *slog.Logger) ledger.Gateway {
	if cfg.Ledger.Mode == "http" {
		return ledger.NewHTTPGateway(cfg.Ledger.BaseURL, cfg.Ledger.APIKey, logger)
	}
	return ledger.NewSandbox(cfg.Ledger.SandboxOpeningBalance)
}

func setupOracle(cfg *config.Config) fx.Oracle {
	if cfg.FX.OracleURL != "" {
		return fx.NewHTTPOracle(cfg.FX.OracleURL)
	}
	return fx.NewStaticOracle()
}

func startHTTPServer(addr string, handler *api.Handler, logger *slog.Logger) *http.Server {
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	return server
}

func waitForShutdown(
	logger *slog.Logger,
	httpServer *http.Server,
	metricsServer *http.Server,
	dispatcher *service.Dispatcher,
	sweeper *service.Sweeper,
) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}

	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
	}

	if sweeper != nil {
		sweeper.Stop()
	}

	if err := dispatcher.Shutdown(ctx); err != nil {
		logger.Error("Webhook dispatcher shutdown failed", slog.String("error", err.Error()))
	}
}

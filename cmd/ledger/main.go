package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corebank/ledger-go/internal/config"
	"github.com/corebank/ledger-go/internal/handler"
	"github.com/corebank/ledger-go/internal/infra/memstore"
	"github.com/corebank/ledger-go/internal/infra/notify"
	"github.com/corebank/ledger-go/internal/infra/observability"
	"github.com/corebank/ledger-go/internal/infra/resilience"
	"github.com/corebank/ledger-go/internal/port"
	"github.com/corebank/ledger-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("default_currency", cfg.DefaultCurrency),
		zap.Duration("lock_timeout", cfg.LockTimeout),
		zap.Bool("webhook_enabled", cfg.WebhookURL != ""),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)

	// --- Tracing ---
	if cfg.TracingEnable {
		shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "corebank-ledger")
		if err != nil {
			logger.Fatal("failed to init tracer", zap.Error(err))
		}
		defer shutdown(context.Background())
	}

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Stores ---
	accountStore := memstore.NewAccountStore(cfg.LockTimeout, logger)
	txStore := memstore.NewTransactionStore()

	// --- Notifier ---
	var notifier port.TransactionNotifier = notify.NopNotifier{}
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(
			cfg.WebhookURL,
			&http.Client{Timeout: cfg.WebhookTimeout},
			resilience.Config{
				MaxRetries:     cfg.MaxRetries,
				InitialBackoff: cfg.InitialBackoff,
				MaxConcurrency: cfg.MaxConcurrency,
			},
			metrics,
			logger,
		)
		logger.Info("transaction webhook enabled", zap.String("url", cfg.WebhookURL))
	}

	// --- Services ---
	acctSvc := service.NewAccounts(accountStore, metrics, logger)
	ledgerSvc := service.NewLedger(accountStore, txStore, notifier, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(acctSvc, ledgerSvc, metrics, logger, cfg.MaxConcurrency)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

package handler

import (
	"net/http"

	"github.com/corebank/ledger-go/internal/infra/observability"
	"github.com/corebank/ledger-go/internal/infra/resilience"
	"github.com/corebank/ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware. The
// handlers here are a thin translation layer: decode, call the service, map
// the domain error to a status code.
func NewRouter(acctSvc *service.Accounts, ledgerSvc *service.Ledger, metrics *observability.Metrics, logger *zap.Logger, maxInFlight int) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(inFlightLimiter(maxInFlight))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Accounts
		r.Post("/accounts", createAccountHandler(acctSvc, logger))
		r.Get("/accounts", listAllAccountsHandler(acctSvc, logger))
		r.Get("/accounts/{accountId}", getAccountHandler(acctSvc, logger))
		r.Get("/accounts/{accountId}/balance", getBalanceHandler(acctSvc, logger))
		r.Post("/accounts/{accountId}/deactivate", deactivateAccountHandler(acctSvc, logger))
		r.Get("/customers/{customerId}/accounts", listCustomerAccountsHandler(acctSvc, logger))
		r.Get("/customers/{customerId}/summary", customerSummaryHandler(ledgerSvc, logger))

		// Transactions
		r.Post("/transactions/deposit", depositHandler(ledgerSvc, logger))
		r.Post("/transactions/withdraw", withdrawHandler(ledgerSvc, logger))
		r.Post("/transactions/transfer", transferHandler(ledgerSvc, logger))
		r.Get("/transactions/{transactionId}", getTransactionHandler(ledgerSvc, logger))
		r.Get("/accounts/{accountId}/transactions", listAccountTransactionsHandler(ledgerSvc, logger))

		// Metrics snapshot
		r.Get("/metrics/ledger", ledgerMetricsHandler(metrics))
	})

	return r
}

// inFlightLimiter rejects requests beyond maxInFlight with 503 instead of
// queueing without bound when the service is saturated.
func inFlightLimiter(maxInFlight int) func(http.Handler) http.Handler {
	if maxInFlight <= 0 {
		maxInFlight = 64
	}
	bh := resilience.NewBulkhead(maxInFlight)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !bh.TryAcquire() {
				writeError(w, http.StatusServiceUnavailable, "server busy")
				return
			}
			defer bh.Release()
			next.ServeHTTP(w, r)
		})
	}
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func ledgerMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetLedgerSnapshot())
	}
}

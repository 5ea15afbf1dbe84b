package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the ledger.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	transactionsTotal *prometheus.CounterVec
	operationFailures *prometheus.CounterVec
	accountsCreated   prometheus.Counter
	lockWait          *prometheus.HistogramVec
	notifierDelivery  *prometheus.CounterVec
}

// LedgerSnapshot is the aggregate view served by GET /v1/metrics/ledger.
type LedgerSnapshot struct {
	AccountsCreated   int64            `json:"accounts_created"`
	TransactionsTotal map[string]int64 `json:"transactions_total"`
	FailuresTotal     map[string]int64 `json:"failures_total"`
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		transactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transactions_total",
				Help: "Total transactions recorded, by type.",
			},
			[]string{"type"},
		),
		operationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_operation_failures_total",
				Help: "Total failed ledger operations, by reason.",
			},
			[]string{"reason"},
		),
		accountsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_accounts_created_total",
				Help: "Total accounts created.",
			},
		),
		lockWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_lock_wait_seconds",
				Help:    "Time spent waiting for account locks, by operation.",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"operation"},
		),
		notifierDelivery: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_notifier_deliveries_total",
				Help: "Webhook delivery attempts, by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

// RecordOperationDuration records the duration of a ledger operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrTransaction counts a recorded transaction by type.
func (m *Metrics) IncrTransaction(txType string) {
	m.transactionsTotal.WithLabelValues(txType).Inc()
}

// IncrFailure counts a failed operation by reason.
func (m *Metrics) IncrFailure(reason string) {
	m.operationFailures.WithLabelValues(reason).Inc()
}

// IncrAccountCreated counts a created account.
func (m *Metrics) IncrAccountCreated() {
	m.accountsCreated.Inc()
}

// RecordLockWait records how long an operation waited on account locks.
func (m *Metrics) RecordLockWait(operation string, d time.Duration) {
	m.lockWait.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrNotifierDelivery counts a webhook delivery attempt outcome.
func (m *Metrics) IncrNotifierDelivery(outcome string) {
	m.notifierDelivery.WithLabelValues(outcome).Inc()
}

// GetLedgerSnapshot returns a snapshot of ledger counters suitable for the
// GET /v1/metrics/ledger endpoint.
func (m *Metrics) GetLedgerSnapshot() *LedgerSnapshot {
	snap := &LedgerSnapshot{
		AccountsCreated:   int64(getCounterValue(m.accountsCreated)),
		TransactionsTotal: make(map[string]int64),
		FailuresTotal:     make(map[string]int64),
	}
	for _, txType := range []string{"DEPOSIT", "WITHDRAWAL", "TRANSFER_IN", "TRANSFER_OUT"} {
		snap.TransactionsTotal[txType] = int64(getCounterValue(m.transactionsTotal.WithLabelValues(txType)))
	}
	for _, reason := range []string{
		"not_found", "validation", "currency_mismatch", "insufficient_funds",
		"inactive_account", "same_account", "lock_timeout", "canceled",
	} {
		snap.FailuresTotal[reason] = int64(getCounterValue(m.operationFailures.WithLabelValues(reason)))
	}
	return snap
}

// getCounterValue extracts the current float64 value from a Counter.
func getCounterValue(c prometheus.Counter) float64 {
	msg := &dto.Metric{}
	if err := c.Write(msg); err != nil {
		return 0
	}
	if msg.Counter != nil && msg.Counter.Value != nil {
		return *msg.Counter.Value
	}
	return 0
}

// Package notify delivers committed transactions to an external webhook
// consumer. Delivery is strictly post-commit and best-effort: a failed or
// slow consumer never blocks or fails a ledger operation, and no account
// lock is ever held while a delivery is in flight.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/corebank/ledger-go/internal/domain"
	"github.com/corebank/ledger-go/internal/infra/observability"
	"github.com/corebank/ledger-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// WebhookNotifier POSTs each committed transaction as JSON to a configured
// URL, with retry/backoff and a circuit breaker so a dead consumer stops
// costing us attempts.
type WebhookNotifier struct {
	url      string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker
	cfg      resilience.Config
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewWebhookNotifier creates a notifier targeting url.
func NewWebhookNotifier(
	url string,
	client *http.Client,
	cfg resilience.Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *WebhookNotifier {
	return &WebhookNotifier{
		url:      url,
		client:   client,
		cb:       resilience.NewCircuitBreaker("transaction-webhook"),
		cfg:      cfg,
		bulkhead: resilience.NewBulkhead(cfg.MaxConcurrency),
		metrics:  metrics,
		logger:   logger,
	}
}

// slotWait bounds how long Notify waits for a free delivery slot before
// dropping the event.
const slotWait = 250 * time.Millisecond

// Notify delivers the transaction asynchronously. When all delivery slots
// are busy it waits briefly for one to free up, then drops the event and
// counts the drop rather than queueing without bound.
func (n *WebhookNotifier) Notify(ctx context.Context, tx domain.Transaction) {
	slotCtx, cancel := context.WithTimeout(ctx, slotWait)
	defer cancel()
	if err := n.bulkhead.Acquire(slotCtx); err != nil {
		n.metrics.IncrNotifierDelivery("dropped")
		n.logger.Warn("webhook delivery dropped: all slots busy",
			zap.String("transaction_id", tx.TransactionID),
			zap.Error(err),
		)
		return
	}

	go func() {
		defer n.bulkhead.Release()

		// Detach from the request context: the caller's HTTP request
		// finishes independently of delivery.
		dctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := resilience.RetryWithBackoff(dctx, n.cfg, func() error {
			_, err := n.cb.Execute(func() (any, error) {
				return nil, n.post(dctx, tx)
			})
			return err
		})
		if err != nil {
			n.metrics.IncrNotifierDelivery("failed")
			n.logger.Error("webhook delivery failed",
				zap.String("transaction_id", tx.TransactionID),
				zap.String("url", n.url),
				zap.Error(err),
			)
			return
		}
		n.metrics.IncrNotifierDelivery("delivered")
	}()
}

func (n *WebhookNotifier) post(ctx context.Context, tx domain.Transaction) error {
	body, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "corebank-ledger-webhook/1.0")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook consumer returned status %d", resp.StatusCode)
}

// NopNotifier discards all notifications. Used when no webhook URL is
// configured.
type NopNotifier struct{}

// Notify does nothing.
func (NopNotifier) Notify(ctx context.Context, tx domain.Transaction) {}

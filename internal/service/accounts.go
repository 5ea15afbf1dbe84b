package service

import (
	"context"
	"time"

	"github.com/corebank/ledger-go/internal/domain"
	"github.com/corebank/ledger-go/internal/infra/observability"
	"github.com/corebank/ledger-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var accountsTracer = otel.Tracer("service/accounts")

// Accounts handles account lifecycle and read-only lookups.
type Accounts struct {
	store   port.AccountStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewAccounts creates the accounts service.
func NewAccounts(store port.AccountStore, metrics *observability.Metrics, logger *zap.Logger) *Accounts {
	return &Accounts{store: store, metrics: metrics, logger: logger}
}

// CreateAccount opens a new account for the customer with the given initial
// balance. The account id is always generated server-side.
func (s *Accounts) CreateAccount(ctx context.Context, customerID string, accountType domain.AccountType, initialBalance domain.Money) (domain.Account, error) {
	ctx, span := accountsTracer.Start(ctx, "Accounts.CreateAccount")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	start := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration("create_account", time.Since(start))
	}()

	acct, err := s.store.Create(ctx, customerID, accountType, initialBalance)
	if err != nil {
		s.metrics.IncrFailure(failureReason(err))
		return domain.Account{}, err
	}
	s.metrics.IncrAccountCreated()
	return acct, nil
}

// GetAccount returns a snapshot of the account's current state.
func (s *Accounts) GetAccount(ctx context.Context, accountID string) (domain.Account, error) {
	ctx, span := accountsTracer.Start(ctx, "Accounts.GetAccount")
	defer span.End()

	return s.store.Get(ctx, accountID)
}

// GetBalance returns the account's current balance and version.
func (s *Accounts) GetBalance(ctx context.Context, accountID string) (domain.Money, int64, error) {
	ctx, span := accountsTracer.Start(ctx, "Accounts.GetBalance")
	defer span.End()

	acct, err := s.store.Get(ctx, accountID)
	if err != nil {
		return domain.Money{}, 0, err
	}
	return acct.Balance, acct.Version, nil
}

// ListByCustomer returns the customer's accounts in creation order.
func (s *Accounts) ListByCustomer(ctx context.Context, customerID string) ([]domain.Account, error) {
	ctx, span := accountsTracer.Start(ctx, "Accounts.ListByCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	return s.store.ListByCustomer(ctx, customerID)
}

// ListAll returns every account in creation order.
func (s *Accounts) ListAll(ctx context.Context) ([]domain.Account, error) {
	ctx, span := accountsTracer.Start(ctx, "Accounts.ListAll")
	defer span.End()

	return s.store.ListAll(ctx)
}

// Deactivate marks the account inactive. An inactive account rejects all
// further mutations but stays readable; its history is never deleted.
// Deactivating an already-inactive account is a no-op.
func (s *Accounts) Deactivate(ctx context.Context, accountID string) (domain.Account, error) {
	ctx, span := accountsTracer.Start(ctx, "Accounts.Deactivate")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	err := s.store.WithLock(ctx, accountID, func(acct domain.Account) (*domain.Account, error) {
		if !acct.Active {
			return nil, nil
		}
		acct.Active = false
		return &acct, nil
	})
	if err != nil {
		s.metrics.IncrFailure(failureReason(err))
		return domain.Account{}, err
	}

	s.logger.Info("account deactivated", zap.String("account_id", accountID))
	return s.store.Get(ctx, accountID)
}

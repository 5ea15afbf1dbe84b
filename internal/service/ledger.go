// Package service provides the business logic layer (use cases).
// Ledger applies all money-moving operations against the account store,
// producing the immutable transaction records that form the audit trail.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/corebank/ledger-go/internal/domain"
	"github.com/corebank/ledger-go/internal/infra/observability"
	"github.com/corebank/ledger-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/ledger")

// Ledger orchestrates deposits, withdrawals and transfers. Every mutation is
// a single read-validate-mutate-append critical section under the account
// lock(s), so two concurrent withdrawals can never both spend the same
// balance.
type Ledger struct {
	accounts port.AccountStore
	txlog    port.TransactionStore
	notifier port.TransactionNotifier
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewLedger creates the ledger service with all dependencies injected.
func NewLedger(
	accounts port.AccountStore,
	txlog port.TransactionStore,
	notifier port.TransactionNotifier,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Ledger {
	return &Ledger{
		accounts: accounts,
		txlog:    txlog,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// failureReason maps a domain error to a metrics label.
func failureReason(err error) string {
	var (
		notFound     *domain.ErrNotFound
		validation   *domain.ErrValidation
		mismatch     *domain.ErrCurrencyMismatch
		insufficient *domain.ErrInsufficientFunds
		inactive     *domain.ErrInactiveAccount
		same         *domain.ErrSameAccount
		lockTimeout  *domain.ErrLockTimeout
	)
	switch {
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &mismatch):
		return "currency_mismatch"
	case errors.As(err, &insufficient):
		return "insufficient_funds"
	case errors.As(err, &inactive):
		return "inactive_account"
	case errors.As(err, &same):
		return "same_account"
	case errors.As(err, &lockTimeout):
		return "lock_timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "internal"
}

func (s *Ledger) fail(op string, err error) error {
	s.metrics.IncrFailure(failureReason(err))
	s.logger.Debug("ledger operation rejected",
		zap.String("operation", op),
		zap.Error(err),
	)
	return err
}

// Deposit credits amount to the account and records a DEPOSIT transaction.
func (s *Ledger) Deposit(ctx context.Context, accountID string, amount domain.Money, description string) (domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Deposit")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	start := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration("deposit", time.Since(start))
	}()

	if !amount.IsPositive() {
		return domain.Transaction{}, s.fail("deposit", &domain.ErrValidation{Field: "amount", Message: "must be greater than zero"})
	}

	var tx domain.Transaction
	lockStart := time.Now()
	err := s.accounts.WithLock(ctx, accountID, func(acct domain.Account) (*domain.Account, error) {
		s.metrics.RecordLockWait("deposit", time.Since(lockStart))

		if !acct.Active {
			return nil, &domain.ErrInactiveAccount{AccountID: acct.AccountID}
		}
		newBalance, err := acct.Balance.Add(amount)
		if err != nil {
			return nil, err
		}
		acct.Balance = newBalance

		tx = s.txlog.Append(ctx, domain.Transaction{
			AccountID:   acct.AccountID,
			Type:        domain.TransactionDeposit,
			Amount:      amount,
			Description: description,
		})
		return &acct, nil
	})
	if err != nil {
		return domain.Transaction{}, s.fail("deposit", err)
	}

	s.metrics.IncrTransaction(string(domain.TransactionDeposit))
	s.logger.Info("deposit applied",
		zap.String("account_id", accountID),
		zap.String("transaction_id", tx.TransactionID),
		zap.String("amount", amount.String()),
	)
	s.notifier.Notify(ctx, tx)
	return tx, nil
}

// Withdraw debits amount from the account and records a WITHDRAWAL
// transaction. Balances never go negative: a withdrawal exceeding the
// current balance fails with ErrInsufficientFunds.
func (s *Ledger) Withdraw(ctx context.Context, accountID string, amount domain.Money, description string) (domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Withdraw")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	start := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration("withdraw", time.Since(start))
	}()

	if !amount.IsPositive() {
		return domain.Transaction{}, s.fail("withdraw", &domain.ErrValidation{Field: "amount", Message: "must be greater than zero"})
	}

	var tx domain.Transaction
	lockStart := time.Now()
	err := s.accounts.WithLock(ctx, accountID, func(acct domain.Account) (*domain.Account, error) {
		s.metrics.RecordLockWait("withdraw", time.Since(lockStart))

		if !acct.Active {
			return nil, &domain.ErrInactiveAccount{AccountID: acct.AccountID}
		}
		cmp, err := acct.Balance.Cmp(amount)
		if err != nil {
			return nil, err
		}
		if cmp < 0 {
			return nil, &domain.ErrInsufficientFunds{
				AccountID: acct.AccountID,
				Available: acct.Balance.Amount.String(),
				Required:  amount.Amount.String(),
			}
		}
		newBalance, err := acct.Balance.Subtract(amount)
		if err != nil {
			return nil, err
		}
		acct.Balance = newBalance

		tx = s.txlog.Append(ctx, domain.Transaction{
			AccountID:   acct.AccountID,
			Type:        domain.TransactionWithdrawal,
			Amount:      amount,
			Description: description,
		})
		return &acct, nil
	})
	if err != nil {
		return domain.Transaction{}, s.fail("withdraw", err)
	}

	s.metrics.IncrTransaction(string(domain.TransactionWithdrawal))
	s.logger.Info("withdrawal applied",
		zap.String("account_id", accountID),
		zap.String("transaction_id", tx.TransactionID),
		zap.String("amount", amount.String()),
	)
	s.notifier.Notify(ctx, tx)
	return tx, nil
}

// Transfer moves amount between two accounts as one atomic operation under
// both account locks: debit, credit and the two linked transaction records
// (TRANSFER_OUT on the source, TRANSFER_IN on the destination) all commit
// together or not at all. The store commits the credited account before the
// debited one, so a lock-free reader never observes the moved amount missing
// from both balances. Returns the outbound leg. Self-transfers are rejected.
func (s *Ledger) Transfer(ctx context.Context, fromID, toID string, amount domain.Money, description string) (domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Transfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.from", fromID),
		attribute.String("account.to", toID),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration("transfer", time.Since(start))
	}()

	if fromID == toID {
		return domain.Transaction{}, s.fail("transfer", &domain.ErrSameAccount{AccountID: fromID})
	}
	if !amount.IsPositive() {
		return domain.Transaction{}, s.fail("transfer", &domain.ErrValidation{Field: "amount", Message: "must be greater than zero"})
	}

	var outTx, inTx domain.Transaction
	lockStart := time.Now()
	err := s.accounts.WithLocks(ctx, fromID, toID, func(from, to domain.Account) (*domain.Account, *domain.Account, error) {
		s.metrics.RecordLockWait("transfer", time.Since(lockStart))

		if !from.Active {
			return nil, nil, &domain.ErrInactiveAccount{AccountID: from.AccountID}
		}
		if !to.Active {
			return nil, nil, &domain.ErrInactiveAccount{AccountID: to.AccountID}
		}

		cmp, err := from.Balance.Cmp(amount)
		if err != nil {
			return nil, nil, err
		}
		if cmp < 0 {
			return nil, nil, &domain.ErrInsufficientFunds{
				AccountID: from.AccountID,
				Available: from.Balance.Amount.String(),
				Required:  amount.Amount.String(),
			}
		}

		debited, err := from.Balance.Subtract(amount)
		if err != nil {
			return nil, nil, err
		}
		credited, err := to.Balance.Add(amount)
		if err != nil {
			return nil, nil, err
		}
		from.Balance = debited
		to.Balance = credited

		outTx = s.txlog.Append(ctx, domain.Transaction{
			AccountID:        from.AccountID,
			Type:             domain.TransactionTransferOut,
			Amount:           amount,
			Description:      description,
			RelatedAccountID: to.AccountID,
		})
		inTx = s.txlog.Append(ctx, domain.Transaction{
			AccountID:        to.AccountID,
			Type:             domain.TransactionTransferIn,
			Amount:           amount,
			Description:      description,
			RelatedAccountID: from.AccountID,
		})
		return &from, &to, nil
	})
	if err != nil {
		return domain.Transaction{}, s.fail("transfer", err)
	}

	s.metrics.IncrTransaction(string(domain.TransactionTransferOut))
	s.metrics.IncrTransaction(string(domain.TransactionTransferIn))
	s.logger.Info("transfer applied",
		zap.String("from_account_id", fromID),
		zap.String("to_account_id", toID),
		zap.String("transaction_id", outTx.TransactionID),
		zap.String("amount", amount.String()),
	)
	s.notifier.Notify(ctx, outTx)
	s.notifier.Notify(ctx, inTx)
	return outTx, nil
}

// GetTransaction returns a single transaction by id.
func (s *Ledger) GetTransaction(ctx context.Context, transactionID string) (domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.GetTransaction")
	defer span.End()

	return s.txlog.Get(ctx, transactionID)
}

// ListTransactionsByAccount returns the account's transaction history in
// insertion order. The account must exist.
func (s *Ledger) ListTransactionsByAccount(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.ListTransactionsByAccount")
	defer span.End()

	if _, err := s.accounts.Get(ctx, accountID); err != nil {
		return nil, err
	}
	return s.txlog.ListByAccount(ctx, accountID), nil
}

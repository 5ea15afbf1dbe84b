// Package port defines the interfaces (ports) for the ledger's dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from concrete implementations: the in-memory stores shipped here, or a
// disk-backed store added later as a drop-in.
package port

import (
	"context"

	"github.com/corebank/ledger-go/internal/domain"
)

// AccountStore owns account lifetime, identity allocation and per-account
// locking. Get/List return snapshots; the only sanctioned way to mutate a
// balance is through WithLock/WithLocks.
type AccountStore interface {
	Create(ctx context.Context, customerID string, accountType domain.AccountType, initialBalance domain.Money) (domain.Account, error)
	Get(ctx context.Context, accountID string) (domain.Account, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Account, error)
	ListAll(ctx context.Context) ([]domain.Account, error)

	// WithLock runs fn while holding accountID's mutation lock, passing the
	// current account state. If fn returns a non-nil account and no error,
	// that state is persisted and the version counter bumped. The lock is
	// released on every exit path.
	WithLock(ctx context.Context, accountID string, fn func(acct domain.Account) (*domain.Account, error)) error

	// WithLocks is the two-account variant used by transfers. Locks are
	// acquired in a canonical order independent of argument order; a
	// self-pair acquires once. idB's new state is committed before idA's,
	// so callers moving value pass (source, destination) and the credit
	// becomes visible no later than the debit.
	WithLocks(ctx context.Context, idA, idB string, fn func(a, b domain.Account) (*domain.Account, *domain.Account, error)) error
}

// TransactionStore is the append-only audit log, indexed by transaction id
// and by account id in insertion order. The store owns transaction identity:
// Append assigns the id and timestamp and returns the stored record.
type TransactionStore interface {
	Append(ctx context.Context, tx domain.Transaction) domain.Transaction
	Get(ctx context.Context, transactionID string) (domain.Transaction, error)
	ListByAccount(ctx context.Context, accountID string) []domain.Transaction
}

// TransactionNotifier delivers committed transactions to an external
// consumer. Implementations must never be invoked while account locks are
// held.
type TransactionNotifier interface {
	Notify(ctx context.Context, tx domain.Transaction)
}

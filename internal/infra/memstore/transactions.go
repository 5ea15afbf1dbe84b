package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/corebank/ledger-go/internal/domain"

	"github.com/google/uuid"
)

// TransactionStore is the append-only in-memory audit log. Entries are
// write-once: nothing in the store ever mutates or removes a record after
// Append returns.
type TransactionStore struct {
	mu        sync.RWMutex
	byID      map[string]domain.Transaction
	byAccount map[string][]string
}

// NewTransactionStore creates an empty transaction log.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		byID:      make(map[string]domain.Transaction),
		byAccount: make(map[string][]string),
	}
}

func newTransactionID() string {
	return "TXN-" + uuid.NewString()
}

// Append assigns the transaction its identity and timestamp (when unset) and
// stores it. Append does not fail: the log is in-memory and out-of-memory is
// fatal, not recovered.
func (s *TransactionStore) Append(ctx context.Context, tx domain.Transaction) domain.Transaction {
	if tx.TransactionID == "" {
		tx.TransactionID = newTransactionID()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[tx.TransactionID] = tx
	s.byAccount[tx.AccountID] = append(s.byAccount[tx.AccountID], tx.TransactionID)
	return tx
}

// Get returns the transaction with the given id.
func (s *TransactionStore) Get(ctx context.Context, transactionID string) (domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.byID[transactionID]
	if !ok {
		return domain.Transaction{}, &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
	}
	return tx, nil
}

// ListByAccount returns the account's transactions in insertion order.
func (s *TransactionStore) ListByAccount(ctx context.Context, accountID string) []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byAccount[accountID]
	out := make([]domain.Transaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id])
	}
	return out
}

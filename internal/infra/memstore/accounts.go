// Package memstore provides the in-memory account registry and transaction
// log. Contention scales with distinct accounts: each account carries its own
// mutation lock, there is no global write lock around balance updates.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corebank/ledger-go/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// accountEntry pairs the per-account operation lock with the latest committed
// snapshot. The semaphore channel (capacity 1) is the mutation lock; it
// supports bounded waits. The snapshot pointer is swapped atomically on
// commit, so lock-free readers always observe a fully committed state.
type accountEntry struct {
	sem chan struct{}
	cur atomic.Pointer[domain.Account]
}

func newAccountEntry(acct domain.Account) *accountEntry {
	e := &accountEntry{sem: make(chan struct{}, 1)}
	e.cur.Store(&acct)
	return e
}

// AccountStore is the concurrent in-memory account registry. It exclusively
// owns account lifetime and identity allocation.
type AccountStore struct {
	mu         sync.RWMutex
	accounts   map[string]*accountEntry
	byCustomer map[string][]string
	order      []string

	lockWait time.Duration
	logger   *zap.Logger
}

// NewAccountStore creates an empty registry. lockWait bounds how long a
// caller blocks waiting for an account's mutation lock before failing with
// ErrLockTimeout.
func NewAccountStore(lockWait time.Duration, logger *zap.Logger) *AccountStore {
	return &AccountStore{
		accounts:   make(map[string]*accountEntry),
		byCustomer: make(map[string][]string),
		lockWait:   lockWait,
		logger:     logger,
	}
}

func newAccountID() string {
	return "ACC-" + uuid.NewString()
}

// Create allocates a fresh account id, validates the initial balance and
// inserts the account. Returns a snapshot of the created account.
func (s *AccountStore) Create(ctx context.Context, customerID string, accountType domain.AccountType, initialBalance domain.Money) (domain.Account, error) {
	if customerID == "" {
		return domain.Account{}, &domain.ErrValidation{Field: "customer_id", Message: "required"}
	}
	if !domain.ValidAccountType(accountType) {
		return domain.Account{}, &domain.ErrValidation{Field: "account_type", Message: "unknown account type: " + string(accountType)}
	}
	if initialBalance.IsNegative() {
		return domain.Account{}, &domain.ErrValidation{Field: "initial_balance", Message: "must not be negative"}
	}

	acct := domain.Account{
		AccountID:  newAccountID(),
		CustomerID: customerID,
		Type:       accountType,
		Balance:    initialBalance,
		Active:     true,
		Version:    1,
		CreatedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[acct.AccountID]; exists {
		// UUID collision. Retry once; a second collision is not a
		// recoverable condition.
		acct.AccountID = newAccountID()
		if _, exists := s.accounts[acct.AccountID]; exists {
			panic("memstore: account id space exhausted")
		}
	}
	s.accounts[acct.AccountID] = newAccountEntry(acct)
	s.byCustomer[customerID] = append(s.byCustomer[customerID], acct.AccountID)
	s.order = append(s.order, acct.AccountID)

	s.logger.Info("account created",
		zap.String("account_id", acct.AccountID),
		zap.String("customer_id", customerID),
		zap.String("account_type", string(accountType)),
	)
	return acct, nil
}

func (s *AccountStore) entry(accountID string) (*accountEntry, error) {
	s.mu.RLock()
	e, ok := s.accounts[accountID]
	s.mu.RUnlock()
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return e, nil
}

// Get returns a snapshot of the account's latest committed state.
func (s *AccountStore) Get(ctx context.Context, accountID string) (domain.Account, error) {
	e, err := s.entry(accountID)
	if err != nil {
		return domain.Account{}, err
	}
	return *e.cur.Load(), nil
}

// ListByCustomer returns snapshots of the customer's accounts in insertion
// order. A customer with no accounts yields an empty slice, not an error.
func (s *AccountStore) ListByCustomer(ctx context.Context, customerID string) ([]domain.Account, error) {
	s.mu.RLock()
	ids := append([]string(nil), s.byCustomer[customerID]...)
	s.mu.RUnlock()

	out := make([]domain.Account, 0, len(ids))
	for _, id := range ids {
		if e, err := s.entry(id); err == nil {
			out = append(out, *e.cur.Load())
		}
	}
	return out, nil
}

// ListAll returns snapshots of every account in insertion order.
func (s *AccountStore) ListAll(ctx context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	ids := append([]string(nil), s.order...)
	s.mu.RUnlock()

	out := make([]domain.Account, 0, len(ids))
	for _, id := range ids {
		if e, err := s.entry(id); err == nil {
			out = append(out, *e.cur.Load())
		}
	}
	return out, nil
}

// acquire takes the entry's mutation lock, waiting at most the remaining
// budget on the deadline. It respects context cancellation.
func (s *AccountStore) acquire(ctx context.Context, e *accountEntry, accountID string, deadline time.Time) error {
	wait := time.Until(deadline)
	if wait <= 0 {
		return &domain.ErrLockTimeout{AccountID: accountID}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("interrupted waiting for account lock on %s: %w", accountID, ctx.Err())
	case <-timer.C:
		s.logger.Warn("account lock wait exceeded", zap.String("account_id", accountID))
		return &domain.ErrLockTimeout{AccountID: accountID}
	}
}

func (s *AccountStore) release(e *accountEntry) {
	<-e.sem
}

// commit persists the mutated state under the held lock, bumping the version
// counter. The swap is atomic so concurrent snapshot readers never see a
// partially written account.
func (s *AccountStore) commit(e *accountEntry, prev domain.Account, next domain.Account) {
	next.Version = prev.Version + 1
	e.cur.Store(&next)
}

// WithLock runs fn while holding accountID's mutation lock. fn receives the
// latest committed state; returning a non-nil account persists it with the
// version bumped. Any error from fn aborts without touching stored state.
func (s *AccountStore) WithLock(ctx context.Context, accountID string, fn func(acct domain.Account) (*domain.Account, error)) error {
	e, err := s.entry(accountID)
	if err != nil {
		return err
	}
	if err := s.acquire(ctx, e, accountID, time.Now().Add(s.lockWait)); err != nil {
		return err
	}
	defer s.release(e)

	cur := *e.cur.Load()
	next, err := fn(cur)
	if err != nil {
		return err
	}
	if next != nil {
		s.commit(e, cur, *next)
	}
	return nil
}

// WithLocks runs fn while holding both accounts' mutation locks. Locks are
// always acquired in lexicographic id order regardless of argument order, so
// opposing concurrent transfers cannot deadlock. A self-pair acquires once.
func (s *AccountStore) WithLocks(ctx context.Context, idA, idB string, fn func(a, b domain.Account) (*domain.Account, *domain.Account, error)) error {
	if idA == idB {
		return s.WithLock(ctx, idA, func(acct domain.Account) (*domain.Account, error) {
			next, _, err := fn(acct, acct)
			return next, err
		})
	}

	eA, err := s.entry(idA)
	if err != nil {
		return err
	}
	eB, err := s.entry(idB)
	if err != nil {
		return err
	}

	ordered := []struct {
		id string
		e  *accountEntry
	}{{idA, eA}, {idB, eB}}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].id < ordered[j].id })

	deadline := time.Now().Add(s.lockWait)
	if err := s.acquire(ctx, ordered[0].e, ordered[0].id, deadline); err != nil {
		return err
	}
	defer s.release(ordered[0].e)

	if err := s.acquire(ctx, ordered[1].e, ordered[1].id, deadline); err != nil {
		return err
	}
	defer s.release(ordered[1].e)

	curA := *eA.cur.Load()
	curB := *eB.cur.Load()
	nextA, nextB, err := fn(curA, curB)
	if err != nil {
		return err
	}

	// Commit the second account first. A transfer passes (source,
	// destination), so the credit becomes visible before the debit:
	// lock-free readers may briefly see the amount in both accounts, but
	// never a committed pair of states with it missing from both.
	if nextB != nil {
		s.commit(eB, curB, *nextB)
	}
	if nextA != nil {
		s.commit(eA, curA, *nextA)
	}
	return nil
}

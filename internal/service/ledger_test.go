package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/corebank/ledger-go/internal/domain"
	"github.com/corebank/ledger-go/internal/infra/memstore"
	"github.com/corebank/ledger-go/internal/infra/notify"
	"github.com/corebank/ledger-go/internal/infra/observability"
	"github.com/corebank/ledger-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fixture struct {
	accounts *memstore.AccountStore
	txlog    *memstore.TransactionStore
	metrics  *observability.Metrics
	acctSvc  *service.Accounts
	ledger   *service.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	accounts := memstore.NewAccountStore(2*time.Second, logger)
	txlog := memstore.NewTransactionStore()
	return &fixture{
		accounts: accounts,
		txlog:    txlog,
		metrics:  metrics,
		acctSvc:  service.NewAccounts(accounts, metrics, logger),
		ledger:   service.NewLedger(accounts, txlog, notify.NopNotifier{}, metrics, logger),
	}
}

func usd(t *testing.T, amount string) domain.Money {
	t.Helper()
	m, err := domain.MoneyFromString(amount, "USD")
	if err != nil {
		t.Fatalf("money: %v", err)
	}
	return m
}

func (f *fixture) open(t *testing.T, customerID, balance string) domain.Account {
	t.Helper()
	acct, err := f.acctSvc.CreateAccount(context.Background(), customerID, domain.AccountTypeChecking, usd(t, balance))
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return acct
}

// balanceFromHistory recomputes an account's balance from its initial
// balance plus the signed sum of its recorded transactions.
func balanceFromHistory(t *testing.T, f *fixture, accountID string, initial domain.Money) decimal.Decimal {
	t.Helper()
	sum := initial.Amount
	for _, tx := range f.txlog.ListByAccount(context.Background(), accountID) {
		sum = sum.Add(tx.SignedAmount().Amount)
	}
	return sum
}

func TestDeposit_AppliesBalanceAndRecords(t *testing.T) {
	f := newFixture(t)
	acct := f.open(t, "CUST001", "100")

	tx, err := f.ledger.Deposit(context.Background(), acct.AccountID, usd(t, "50.25"), "payday")
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if tx.Type != domain.TransactionDeposit {
		t.Errorf("expected DEPOSIT, got %s", tx.Type)
	}
	if tx.AccountID != acct.AccountID {
		t.Errorf("expected account %s, got %s", acct.AccountID, tx.AccountID)
	}

	cur, _ := f.accounts.Get(context.Background(), acct.AccountID)
	if cur.Balance.Amount.String() != "150.25" {
		t.Errorf("expected balance 150.25, got %s", cur.Balance.Amount)
	}
	if cur.Version != acct.Version+1 {
		t.Errorf("expected version bump, got %d", cur.Version)
	}

	stored, err := f.ledger.GetTransaction(context.Background(), tx.TransactionID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if stored.Description != "payday" {
		t.Errorf("expected description to round-trip, got %q", stored.Description)
	}
}

func TestDeposit_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	var notFound *domain.ErrNotFound
	_, err := f.ledger.Deposit(context.Background(), "NON_EXISTENT", usd(t, "10"), "")
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeposit_CurrencyMismatchLeavesBalance(t *testing.T) {
	f := newFixture(t)
	acct := f.open(t, "CUST001", "100")

	eur, err := domain.MoneyFromString("10", "EUR")
	if err != nil {
		t.Fatalf("money: %v", err)
	}

	var mismatch *domain.ErrCurrencyMismatch
	_, err = f.ledger.Deposit(context.Background(), acct.AccountID, eur, "")
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}

	cur, _ := f.accounts.Get(context.Background(), acct.AccountID)
	if cur.Balance.Amount.String() != "100" {
		t.Errorf("balance changed after rejected deposit: %s", cur.Balance.Amount)
	}
	if len(f.txlog.ListByAccount(context.Background(), acct.AccountID)) != 0 {
		t.Error("rejected deposit left a transaction record")
	}
}

func TestWithdraw_ZeroAmountRejected(t *testing.T) {
	f := newFixture(t)
	acct := f.open(t, "CUST001", "100")

	var validation *domain.ErrValidation
	_, err := f.ledger.Withdraw(context.Background(), acct.AccountID, usd(t, "0"), "")
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	cur, _ := f.accounts.Get(context.Background(), acct.AccountID)
	if cur.Balance.Amount.String() != "100" {
		t.Errorf("balance changed after rejected withdrawal: %s", cur.Balance.Amount)
	}
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	acct := f.open(t, "CUST001", "40")

	var insufficient *domain.ErrInsufficientFunds
	_, err := f.ledger.Withdraw(context.Background(), acct.AccountID, usd(t, "40.01"), "")
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	cur, _ := f.accounts.Get(context.Background(), acct.AccountID)
	if cur.Balance.Amount.String() != "40" {
		t.Errorf("balance changed after rejected withdrawal: %s", cur.Balance.Amount)
	}
}

func TestWithdraw_ExactBalanceAllowed(t *testing.T) {
	f := newFixture(t)
	acct := f.open(t, "CUST001", "40")

	if _, err := f.ledger.Withdraw(context.Background(), acct.AccountID, usd(t, "40"), ""); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	cur, _ := f.accounts.Get(context.Background(), acct.AccountID)
	if !cur.Balance.IsZero() {
		t.Errorf("expected zero balance, got %s", cur.Balance.Amount)
	}
}

func TestWithdraw_ConcurrentOnlyOneSucceeds(t *testing.T) {
	f := newFixture(t)
	acct := f.open(t, "CUST001", "100")

	amount := usd(t, "60")
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Withdraw(context.Background(), acct.AccountID, amount, "concurrent")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, insufficientCount int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var insufficient *domain.ErrInsufficientFunds
		if errors.As(err, &insufficient) {
			insufficientCount++
		} else {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 || insufficientCount != 1 {
		t.Fatalf("expected exactly one success and one InsufficientFunds, got %d/%d", successes, insufficientCount)
	}

	cur, _ := f.accounts.Get(context.Background(), acct.AccountID)
	if cur.Balance.Amount.String() != "40" {
		t.Errorf("expected final balance 40, got %s", cur.Balance.Amount)
	}
	txs := f.txlog.ListByAccount(context.Background(), acct.AccountID)
	if len(txs) != 1 || txs[0].Type != domain.TransactionWithdrawal {
		t.Errorf("expected exactly one WITHDRAWAL record, got %d", len(txs))
	}
}

func TestTransfer_RecordsBothLinkedLegs(t *testing.T) {
	f := newFixture(t)
	src := f.open(t, "CUST001", "100")
	dst := f.open(t, "CUST002", "10")

	out, err := f.ledger.Transfer(context.Background(), src.AccountID, dst.AccountID, usd(t, "50"), "rent")
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if out.Type != domain.TransactionTransferOut {
		t.Errorf("expected outbound leg, got %s", out.Type)
	}
	if out.RelatedAccountID != dst.AccountID {
		t.Errorf("expected related account %s, got %s", dst.AccountID, out.RelatedAccountID)
	}

	srcCur, _ := f.accounts.Get(context.Background(), src.AccountID)
	dstCur, _ := f.accounts.Get(context.Background(), dst.AccountID)
	if srcCur.Balance.Amount.String() != "50" {
		t.Errorf("expected source balance 50, got %s", srcCur.Balance.Amount)
	}
	if dstCur.Balance.Amount.String() != "60" {
		t.Errorf("expected destination balance 60, got %s", dstCur.Balance.Amount)
	}

	inLegs := f.txlog.ListByAccount(context.Background(), dst.AccountID)
	if len(inLegs) != 1 || inLegs[0].Type != domain.TransactionTransferIn {
		t.Fatalf("expected exactly one TRANSFER_IN on destination, got %d", len(inLegs))
	}
	if inLegs[0].RelatedAccountID != src.AccountID {
		t.Errorf("inbound leg not linked to source: %s", inLegs[0].RelatedAccountID)
	}
}

func TestTransfer_SelfTransferRejected(t *testing.T) {
	f := newFixture(t)
	acct := f.open(t, "CUST001", "100")

	var same *domain.ErrSameAccount
	_, err := f.ledger.Transfer(context.Background(), acct.AccountID, acct.AccountID, usd(t, "10"), "")
	if !errors.As(err, &same) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}
}

func TestTransfer_InsufficientFundsLeavesBothUntouched(t *testing.T) {
	f := newFixture(t)
	src := f.open(t, "CUST001", "30")
	dst := f.open(t, "CUST002", "5")

	var insufficient *domain.ErrInsufficientFunds
	_, err := f.ledger.Transfer(context.Background(), src.AccountID, dst.AccountID, usd(t, "31"), "")
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	srcCur, _ := f.accounts.Get(context.Background(), src.AccountID)
	dstCur, _ := f.accounts.Get(context.Background(), dst.AccountID)
	if srcCur.Balance.Amount.String() != "30" || dstCur.Balance.Amount.String() != "5" {
		t.Error("rejected transfer changed a balance")
	}
	if len(f.txlog.ListByAccount(context.Background(), src.AccountID)) != 0 ||
		len(f.txlog.ListByAccount(context.Background(), dst.AccountID)) != 0 {
		t.Error("rejected transfer left transaction records")
	}
}

func TestTransfer_InactiveDestinationRejected(t *testing.T) {
	f := newFixture(t)
	src := f.open(t, "CUST001", "100")
	dst := f.open(t, "CUST002", "10")

	if _, err := f.acctSvc.Deactivate(context.Background(), dst.AccountID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	var inactive *domain.ErrInactiveAccount
	_, err := f.ledger.Transfer(context.Background(), src.AccountID, dst.AccountID, usd(t, "10"), "")
	if !errors.As(err, &inactive) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}
}

func TestInactiveAccount_RejectsAllMutations(t *testing.T) {
	f := newFixture(t)
	acct := f.open(t, "CUST001", "100")

	if _, err := f.acctSvc.Deactivate(context.Background(), acct.AccountID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	var inactive *domain.ErrInactiveAccount
	if _, err := f.ledger.Deposit(context.Background(), acct.AccountID, usd(t, "10"), ""); !errors.As(err, &inactive) {
		t.Errorf("Deposit on inactive: expected ErrInactiveAccount, got %v", err)
	}
	if _, err := f.ledger.Withdraw(context.Background(), acct.AccountID, usd(t, "10"), ""); !errors.As(err, &inactive) {
		t.Errorf("Withdraw on inactive: expected ErrInactiveAccount, got %v", err)
	}

	// Still readable.
	cur, err := f.accounts.Get(context.Background(), acct.AccountID)
	if err != nil {
		t.Fatalf("Get after deactivation: %v", err)
	}
	if cur.Active {
		t.Error("expected account to be inactive")
	}
}

func TestTransfer_OpposingConcurrentTransfersComplete(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "CUST001", "500")
	b := f.open(t, "CUST002", "500")

	const rounds = 100
	amount := usd(t, "1")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, _ = f.ledger.Transfer(context.Background(), a.AccountID, b.AccountID, amount, "a-to-b")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, _ = f.ledger.Transfer(context.Background(), b.AccountID, a.AccountID, amount, "b-to-a")
		}
	}()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("opposing transfers deadlocked")
	}

	curA, _ := f.accounts.Get(context.Background(), a.AccountID)
	curB, _ := f.accounts.Get(context.Background(), b.AccountID)
	total := curA.Balance.Amount.Add(curB.Balance.Amount)
	if !total.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("money not conserved: total=%s", total)
	}
}

func TestBalanceEqualsHistorySum_UnderConcurrentMixedLoad(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "CUST001", "1000")
	b := f.open(t, "CUST001", "1000")

	const workers = 8
	const opsPerWorker = 30
	amount := usd(t, "3")

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				switch (seed + i) % 4 {
				case 0:
					_, _ = f.ledger.Deposit(context.Background(), a.AccountID, amount, "load")
				case 1:
					_, _ = f.ledger.Withdraw(context.Background(), b.AccountID, amount, "load")
				case 2:
					_, _ = f.ledger.Transfer(context.Background(), a.AccountID, b.AccountID, amount, "load")
				case 3:
					_, _ = f.ledger.Transfer(context.Background(), b.AccountID, a.AccountID, amount, "load")
				}
			}
		}(w)
	}
	wg.Wait()

	initial := usd(t, "1000")
	for _, id := range []string{a.AccountID, b.AccountID} {
		cur, _ := f.accounts.Get(context.Background(), id)
		derived := balanceFromHistory(t, f, id, initial)
		if !cur.Balance.Amount.Equal(derived) {
			t.Errorf("account %s: balance %s != history sum %s", id, cur.Balance.Amount, derived)
		}
	}
}

func TestDeposit_AbandonedRequestCountedAsCanceled(t *testing.T) {
	f := newFixture(t)
	acct := f.open(t, "CUST001", "100")

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = f.accounts.WithLock(context.Background(), acct.AccountID, func(a domain.Account) (*domain.Account, error) {
			close(holding)
			<-release
			return nil, nil
		})
	}()
	<-holding
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ledger.Deposit(ctx, acct.AccountID, usd(t, "10"), "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	snap := f.metrics.GetLedgerSnapshot()
	if snap.FailuresTotal["canceled"] != 1 {
		t.Errorf("expected 1 canceled failure, got %v", snap.FailuresTotal)
	}
	if snap.FailuresTotal["lock_timeout"] != 0 {
		t.Errorf("cancellation miscounted as lock timeout: %v", snap.FailuresTotal)
	}
}

func TestGetTransaction_Unknown(t *testing.T) {
	f := newFixture(t)
	var notFound *domain.ErrNotFound
	_, err := f.ledger.GetTransaction(context.Background(), "TXN-missing")
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTransactionsByAccount_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	var notFound *domain.ErrNotFound
	_, err := f.ledger.ListTransactionsByAccount(context.Background(), "NON_EXISTENT")
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCustomerSummary_AggregatesAllAccounts(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "CUST001", "100")
	b := f.open(t, "CUST001", "50")
	f.open(t, "CUST002", "999")

	ctx := context.Background()
	if _, err := f.ledger.Deposit(ctx, a.AccountID, usd(t, "20"), ""); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if _, err := f.ledger.Withdraw(ctx, a.AccountID, usd(t, "5"), ""); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if _, err := f.ledger.Transfer(ctx, a.AccountID, b.AccountID, usd(t, "10"), ""); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	summary, err := f.ledger.CustomerSummary(ctx, "CUST001")
	if err != nil {
		t.Fatalf("CustomerSummary: %v", err)
	}
	if len(summary.Accounts) != 2 {
		t.Fatalf("expected 2 account summaries, got %d", len(summary.Accounts))
	}

	first := summary.Accounts[0]
	if first.AccountID != a.AccountID {
		t.Fatalf("expected first summary for %s, got %s", a.AccountID, first.AccountID)
	}
	if first.TotalCredits.Amount.String() != "20" {
		t.Errorf("expected credits 20, got %s", first.TotalCredits.Amount)
	}
	if first.TotalDebits.Amount.String() != "15" {
		t.Errorf("expected debits 15, got %s", first.TotalDebits.Amount)
	}
	if first.TransactionCount != 3 {
		t.Errorf("expected 3 transactions, got %d", first.TransactionCount)
	}
	if first.Balance.Amount.String() != "105" {
		t.Errorf("expected balance 105, got %s", first.Balance.Amount)
	}

	second := summary.Accounts[1]
	if second.TotalCredits.Amount.String() != "10" || second.TransactionCount != 1 {
		t.Errorf("unexpected second summary: %+v", second)
	}
}

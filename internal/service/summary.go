package service

import (
	"context"

	"github.com/corebank/ledger-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// CustomerSummary aggregates per-account totals (credits, debits, entry
// count) across all of the customer's accounts. Account histories are
// aggregated concurrently since each one is read independently.
func (s *Ledger) CustomerSummary(ctx context.Context, customerID string) (domain.CustomerSummary, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.CustomerSummary")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	accounts, err := s.accounts.ListByCustomer(ctx, customerID)
	if err != nil {
		return domain.CustomerSummary{}, err
	}

	summaries := make([]domain.AccountSummary, len(accounts))
	g, gCtx := errgroup.WithContext(ctx)

	for i, acct := range accounts {
		i, acct := i, acct
		g.Go(func() error {
			txs := s.txlog.ListByAccount(gCtx, acct.AccountID)

			credits := domain.Money{Amount: decimal.Zero, Currency: acct.Balance.Currency}
			debits := domain.Money{Amount: decimal.Zero, Currency: acct.Balance.Currency}
			for _, tx := range txs {
				switch tx.Type {
				case domain.TransactionDeposit, domain.TransactionTransferIn:
					next, err := credits.Add(tx.Amount)
					if err != nil {
						return err
					}
					credits = next
				case domain.TransactionWithdrawal, domain.TransactionTransferOut:
					next, err := debits.Add(tx.Amount)
					if err != nil {
						return err
					}
					debits = next
				}
			}

			summaries[i] = domain.AccountSummary{
				AccountID:        acct.AccountID,
				Currency:         acct.Balance.Currency,
				Balance:          acct.Balance,
				TotalCredits:     credits,
				TotalDebits:      debits,
				TransactionCount: len(txs),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return domain.CustomerSummary{}, err
	}
	return domain.CustomerSummary{CustomerID: customerID, Accounts: summaries}, nil
}

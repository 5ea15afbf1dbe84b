package domain

import "time"

// TransactionType is the closed set of ledger entry kinds.
type TransactionType string

const (
	TransactionDeposit     TransactionType = "DEPOSIT"
	TransactionWithdrawal  TransactionType = "WITHDRAWAL"
	TransactionTransferIn  TransactionType = "TRANSFER_IN"
	TransactionTransferOut TransactionType = "TRANSFER_OUT"
)

// Transaction is one immutable audit entry: a single signed balance delta
// against one account. A transfer is recorded as two linked entries, a
// TRANSFER_OUT on the source and a TRANSFER_IN on the destination, joined
// through RelatedAccountID.
type Transaction struct {
	TransactionID    string          `json:"transaction_id"`
	AccountID        string          `json:"account_id"`
	Type             TransactionType `json:"type"`
	Amount           Money           `json:"amount"`
	Timestamp        time.Time       `json:"timestamp"`
	Description      string          `json:"description"`
	RelatedAccountID string          `json:"related_account_id,omitempty"`
}

// SignedAmount returns the delta this entry applied to its account's balance:
// positive for DEPOSIT and TRANSFER_IN, negative for WITHDRAWAL and
// TRANSFER_OUT.
func (t Transaction) SignedAmount() Money {
	switch t.Type {
	case TransactionWithdrawal, TransactionTransferOut:
		return Money{Amount: t.Amount.Amount.Neg(), Currency: t.Amount.Currency}
	}
	return t.Amount
}

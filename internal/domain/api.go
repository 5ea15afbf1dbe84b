package domain

import "github.com/shopspring/decimal"

// Request shapes for the HTTP layer. Amounts travel as decimal strings or
// JSON numbers; either way they are parsed exactly, never through float64.

// CreateAccountRequest opens an account for a customer.
type CreateAccountRequest struct {
	CustomerID     string          `json:"customer_id"`
	AccountType    string          `json:"account_type"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Currency       string          `json:"currency"`
}

// TransactionRequest covers deposit, withdraw and transfer submissions.
// AccountID is used by deposit/withdraw; FromAccountID/ToAccountID by
// transfer.
type TransactionRequest struct {
	AccountID     string          `json:"account_id,omitempty"`
	FromAccountID string          `json:"from_account_id,omitempty"`
	ToAccountID   string          `json:"to_account_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Description   string          `json:"description"`
}

// BalanceResponse is the GET .../balance payload.
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   Money  `json:"balance"`
	Version   int64  `json:"version"`
}

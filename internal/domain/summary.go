package domain

// AccountSummary aggregates one account's recorded activity.
type AccountSummary struct {
	AccountID        string `json:"account_id"`
	Currency         string `json:"currency"`
	Balance          Money  `json:"balance"`
	TotalCredits     Money  `json:"total_credits"`
	TotalDebits      Money  `json:"total_debits"`
	TransactionCount int    `json:"transaction_count"`
}

// CustomerSummary aggregates activity across all of a customer's accounts.
type CustomerSummary struct {
	CustomerID string           `json:"customer_id"`
	Accounts   []AccountSummary `json:"accounts"`
}

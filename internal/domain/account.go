package domain

import "time"

// AccountType is the closed set of account categories.
type AccountType string

const (
	AccountTypeSavings  AccountType = "SAVINGS"
	AccountTypeChecking AccountType = "CHECKING"
)

// ValidAccountType reports whether t is a known account type.
func ValidAccountType(t AccountType) bool {
	switch t {
	case AccountTypeSavings, AccountTypeChecking:
		return true
	}
	return false
}

// Account is a customer account record. Balance is mutated only through the
// account store's lock-guarded mutation path; everything handed to callers is
// a snapshot. Version increments on every committed mutation so optimistic
// read-then-act callers can detect concurrent modification.
type Account struct {
	AccountID  string      `json:"account_id"`
	CustomerID string      `json:"customer_id"`
	Type       AccountType `json:"account_type"`
	Balance    Money       `json:"balance"`
	Active     bool        `json:"active"`
	Version    int64       `json:"version"`
	CreatedAt  time.Time   `json:"created_at"`
}

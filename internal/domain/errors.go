package domain

import "fmt"

// Error types for consistent error handling across the ledger. All of these
// are recoverable-by-caller conditions: a failed operation leaves both the
// account store and the transaction log exactly as they were.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input), including
// non-positive or malformed amounts.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrCurrencyMismatch indicates an operation combined two currencies.
type ErrCurrencyMismatch struct {
	Have string
	Want string
}

func (e *ErrCurrencyMismatch) Error() string {
	return fmt.Sprintf("currency mismatch: have %s, want %s", e.Have, e.Want)
}

// ErrInsufficientFunds indicates not enough balance for the operation.
type ErrInsufficientFunds struct {
	AccountID string
	Available string
	Required  string
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds on %s: available=%s required=%s", e.AccountID, e.Available, e.Required)
}

// ErrInactiveAccount indicates the account has been deactivated and rejects
// all further mutations.
type ErrInactiveAccount struct {
	AccountID string
}

func (e *ErrInactiveAccount) Error() string {
	return fmt.Sprintf("account is inactive: %s", e.AccountID)
}

// ErrSameAccount indicates a transfer where source and destination are the
// same account.
type ErrSameAccount struct {
	AccountID string
}

func (e *ErrSameAccount) Error() string {
	return fmt.Sprintf("transfer source and destination are the same account: %s", e.AccountID)
}

// ErrLockTimeout indicates an account lock could not be acquired within the
// configured wait bound.
type ErrLockTimeout struct {
	AccountID string
}

func (e *ErrLockTimeout) Error() string {
	return fmt.Sprintf("timed out waiting for account lock: %s", e.AccountID)
}

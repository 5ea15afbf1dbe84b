package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an immutable amount in a single currency. Amounts are exact
// decimals; balances and repeated deposits/withdrawals round-trip without
// drift. Arithmetic never mutates the receiver.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney builds a Money value from a decimal amount and a 3-letter
// currency code. The code is normalized to uppercase.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if len(cur) != 3 {
		return Money{}, &ErrValidation{Field: "currency", Message: fmt.Sprintf("invalid currency code %q", currency)}
	}
	for _, r := range cur {
		if r < 'A' || r > 'Z' {
			return Money{}, &ErrValidation{Field: "currency", Message: fmt.Sprintf("invalid currency code %q", currency)}
		}
	}
	return Money{Amount: amount, Currency: cur}, nil
}

// MoneyFromString parses a decimal string ("10.50") into a Money value.
func MoneyFromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, &ErrValidation{Field: "amount", Message: fmt.Sprintf("invalid amount %q", amount)}
	}
	return NewMoney(d, currency)
}

// Add returns m + other. Both operands must share a currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, &ErrCurrencyMismatch{Have: other.Currency, Want: m.Currency}
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Subtract returns m - other. Both operands must share a currency.
func (m Money) Subtract(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, &ErrCurrencyMismatch{Have: other.Currency, Want: m.Currency}
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// Cmp compares m against other: -1 if m < other, 0 if equal, +1 if m > other.
func (m Money) Cmp(other Money) (int, error) {
	if m.Currency != other.Currency {
		return 0, &ErrCurrencyMismatch{Have: other.Currency, Want: m.Currency}
	}
	return m.Amount.Cmp(other.Amount), nil
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m.Amount.IsPositive() }

// IsNegative reports whether the amount is strictly less than zero.
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.Amount.IsZero() }

func (m Money) String() string {
	return m.Amount.String() + " " + m.Currency
}

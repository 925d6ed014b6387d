package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrInvalidRate      = errors.New("rate must be between 0 and 10000 basis points")
)

// BasisPointDenominator is the denominator for basis-point rates (10000 = 100%).
const BasisPointDenominator = 10000

// Money is an amount in integer minor units of a currency.
// All ledger arithmetic happens on this type; floats never touch money.
type Money struct {
	amount   int64
	currency string
}

// NewMoney creates a Money value. Negative amounts are rejected; balance
// movements are modeled as explicit debits and credits instead.
func NewMoney(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, ErrNegativeAmount
	}
	if currency == "" {
		return Money{}, errors.New("currency is required")
	}
	return Money{amount: amount, currency: currency}, nil
}

// MustMoney creates a Money value and panics on invalid input.
// Intended for constants and tests.
func MustMoney(amount int64, currency string) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{amount: 0, currency: currency}
}

func (m Money) Amount() int64    { return m.amount }
func (m Money) Currency() string { return m.currency }
func (m Money) IsZero() bool     { return m.amount == 0 }

// Add returns the sum of two amounts in the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{amount: m.amount + other.amount, currency: m.currency}, nil
}

// Sub returns the difference of two amounts in the same currency.
// The result must not be negative.
func (m Money) Sub(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, ErrCurrencyMismatch
	}
	if other.amount > m.amount {
		return Money{}, ErrNegativeAmount
	}
	return Money{amount: m.amount - other.amount, currency: m.currency}, nil
}

// Percent returns the given whole-number percentage of the amount,
// rounded down. Used for stage splits (e.g. a 30% deposit).
func (m Money) Percent(pct int) Money {
	return Money{amount: m.amount * int64(pct) / 100, currency: m.currency}
}

// FeeAt computes a platform fee at the given basis-point rate with floor
// rounding. The payee share is amount - fee, so any rounding loss is
// absorbed by the platform, never the payee.
func (m Money) FeeAt(rateBps int) (fee, remainder Money, err error) {
	if rateBps < 0 || rateBps > BasisPointDenominator {
		return Money{}, Money{}, ErrInvalidRate
	}
	f := m.amount * int64(rateBps) / BasisPointDenominator
	return Money{amount: f, currency: m.currency},
		Money{amount: m.amount - f, currency: m.currency}, nil
}

// Min returns the smaller of two amounts in the same currency.
func (m Money) Min(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, ErrCurrencyMismatch
	}
	if other.amount < m.amount {
		return other, nil
	}
	return m, nil
}

// LessThan reports whether m is strictly smaller than other.
// Comparing across currencies always reports false.
func (m Money) LessThan(other Money) bool {
	return m.currency == other.currency && m.amount < other.amount
}

// Equals checks value equality with another Money.
func (m Money) Equals(other ValueObject) bool {
	if o, ok := other.(Money); ok {
		return m.amount == o.amount && m.currency == o.currency
	}
	return false
}

// String renders the amount for logs, e.g. "30000 KRW".
func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.amount, m.currency)
}

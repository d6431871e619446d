package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an immutable fixed-point amount in a single currency.
// All price arithmetic in the engine goes through this type; float64
// is never used on the pricing path.
type Money struct {
	amount   decimal.Decimal
	currency string
}

func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if currency == "" {
		return Money{}, ErrInvalidCurrency
	}
	return Money{amount: amount, currency: currency}, nil
}

func NewMoneyFromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return NewMoney(d, currency)
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() string        { return m.currency }

func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Scale multiplies the amount by a dimensionless factor.
func (m Money) Scale(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

func (m Money) IsPositive() bool { return m.amount.IsPositive() }
func (m Money) IsZero() bool     { return m.amount.IsZero() }

// Cmp returns -1, 0 or 1. Comparing mixed currencies is a programming
// error and reported via the error return.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c > 0, err
}

func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c < 0, err
}

func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

func (m Money) String() string {
	return m.amount.StringFixed(2) + " " + m.currency
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount.String(), Currency: m.currency})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, raw.Amount)
	}
	m.amount = d
	m.currency = raw.Currency
	return nil
}

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}

package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type DropType string

const (
	DropAbsolute   DropType = "absolute"
	DropPercentage DropType = "percentage"
)

var percentCap = decimal.NewFromInt(100)

// PriceDropRate describes how the price falls over time: a fixed amount
// or a percentage of the start price per whole interval. Immutable.
type PriceDropRate struct {
	Type            DropType        `json:"type"`
	Value           decimal.Decimal `json:"value"`
	IntervalSeconds int64           `json:"interval_seconds"`
}

func NewPriceDropRate(dropType DropType, value decimal.Decimal, intervalSeconds int64) (PriceDropRate, error) {
	switch dropType {
	case DropAbsolute, DropPercentage:
	default:
		return PriceDropRate{}, fmt.Errorf("%w: unknown drop type %q", ErrInvalidDropRate, dropType)
	}

	if !value.IsPositive() {
		return PriceDropRate{}, fmt.Errorf("%w: drop value must be positive, got %s", ErrInvalidDropRate, value)
	}

	if dropType == DropPercentage && value.GreaterThan(percentCap) {
		return PriceDropRate{}, fmt.Errorf("%w: percentage drop cannot exceed 100, got %s", ErrInvalidDropRate, value)
	}

	if intervalSeconds < 1 {
		return PriceDropRate{}, fmt.Errorf("%w: interval must be at least 1 second, got %d", ErrInvalidDropRate, intervalSeconds)
	}

	return PriceDropRate{
		Type:            dropType,
		Value:           value,
		IntervalSeconds: intervalSeconds,
	}, nil
}

// amountPerInterval resolves the drop to a concrete money amount for
// one interval against the given start price. Percentage drops are
// linear against the start price, not compounding.
func (r PriceDropRate) amountPerInterval(startPrice Money) Money {
	if r.Type == DropPercentage {
		return startPrice.Scale(r.Value.Div(percentCap))
	}
	return Money{amount: r.Value, currency: startPrice.currency}
}

package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceSchedule is the pure time-to-price mapping of a reverse auction.
// It holds no mutable state and performs no I/O; PriceAt is safe to call
// from any goroutine.
type PriceSchedule struct {
	StartPrice Money         `json:"start_price"`
	EndPrice   Money         `json:"end_price"`
	DropRate   PriceDropRate `json:"drop_rate"`
	Duration   time.Duration `json:"duration"`
}

func NewPriceSchedule(startPrice, endPrice Money, dropRate PriceDropRate, duration time.Duration) (PriceSchedule, error) {
	if startPrice.currency != endPrice.currency {
		return PriceSchedule{}, fmt.Errorf("%w: start and end price currencies differ", ErrInvalidSchedule)
	}

	if !startPrice.amount.GreaterThan(endPrice.amount) {
		return PriceSchedule{}, fmt.Errorf("%w: start price %s must exceed end price %s",
			ErrInvalidSchedule, startPrice, endPrice)
	}

	if duration <= 0 {
		return PriceSchedule{}, fmt.Errorf("%w: duration must be positive", ErrInvalidSchedule)
	}

	return PriceSchedule{
		StartPrice: startPrice,
		EndPrice:   endPrice,
		DropRate:   dropRate,
		Duration:   duration,
	}, nil
}

// PriceAt returns the price in force at `now` for a slot activated at
// `activatedAt`. Both instants must be in the same time reference (UTC);
// clock synchronization is the caller's problem. The function is total:
// skewed or out-of-range inputs clamp to the start or end price.
func (s PriceSchedule) PriceAt(activatedAt, now time.Time) Money {
	elapsed := now.Sub(activatedAt)
	if elapsed < 0 {
		return s.StartPrice
	}
	if elapsed >= s.Duration {
		return s.EndPrice
	}

	intervals := int64(elapsed/time.Second) / s.DropRate.IntervalSeconds
	if intervals == 0 {
		return s.StartPrice
	}

	perInterval := s.DropRate.amountPerInterval(s.StartPrice)
	drop := perInterval.Scale(decimal.NewFromInt(intervals))

	candidate := Money{
		amount:   s.StartPrice.amount.Sub(drop.amount),
		currency: s.StartPrice.currency,
	}
	if candidate.amount.LessThan(s.EndPrice.amount) {
		return s.EndPrice
	}
	return candidate
}

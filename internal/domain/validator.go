package domain

import "time"

// DefaultBidTolerance absorbs one round-trip of network latency plus
// reasonable clock drift between the bidder's view of the price and the
// engine's. A bid priced against a snapshot up to this much older (or
// newer) than placedAt is still acceptable.
const DefaultBidTolerance = 2 * time.Second

// BidValidator decides whether a bid is acceptable against the current
// slot, the time window and the tolerance band around the computed
// price. It is pure; the first failing check wins.
type BidValidator struct {
	Tolerance time.Duration
}

func NewBidValidator(tolerance time.Duration) BidValidator {
	if tolerance < 0 {
		tolerance = DefaultBidTolerance
	}
	return BidValidator{Tolerance: tolerance}
}

// Validate returns nil when the bid may be accepted, or the
// RejectionReason otherwise. Check order is fixed: status, slot
// availability, time window, price band.
func (v BidValidator) Validate(a *Auction, bidPrice Money, placedAt time.Time) error {
	if a.Status != AuctionPublished && a.Status != AuctionActive {
		return ReasonAuctionNotActive
	}

	slot := a.Sequencer.CurrentSlot()
	if slot == nil || slot.Status != SlotAvailable || slot.ActivatedAt == nil {
		return ReasonNoItemsAvailable
	}

	activatedAt := *slot.ActivatedAt
	if placedAt.Before(activatedAt) || placedAt.After(a.EndAt) {
		return ReasonOutOfTimeWindow
	}

	// The price keeps dropping while the bid is in flight, so accept any
	// price the client could legitimately have observed within the
	// tolerance window around placedAt.
	low := a.Schedule.PriceAt(activatedAt, placedAt.Add(v.Tolerance))
	high := a.Schedule.PriceAt(activatedAt, placedAt.Add(-v.Tolerance))
	if low.amount.GreaterThan(high.amount) {
		low, high = high, low
	}

	if bidPrice.currency != low.currency {
		return ReasonPriceOutOfRange
	}
	if bidPrice.amount.LessThan(low.amount) || bidPrice.amount.GreaterThan(high.amount) {
		return ReasonPriceOutOfRange
	}

	return nil
}

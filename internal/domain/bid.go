package domain

import "time"

// Bid is the transient input to AcceptBid. The bid id is supplied by the
// caller and used for idempotent resubmission; bids themselves are not
// persisted by this engine.
type Bid struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	BidderRef string    `json:"bidder_ref"`
	Price     Money     `json:"price"`
	PlacedAt  time.Time `json:"placed_at"`
}

// AcceptedBid is the successful outcome of AcceptBid. ReservationHint is
// the sold slot's item reference, so checkout can reserve the inventory
// item without another lookup.
type AcceptedBid struct {
	BidID           string `json:"bid_id"`
	SlotID          string `json:"slot_id"`
	WinnerRef       string `json:"winner_ref"`
	WinningPrice    Money  `json:"winning_price"`
	ReservationHint string `json:"reservation_hint"`
}

// BidOutcome is the remembered result of a processed bid id. Resubmitting
// the same id returns the stored outcome without mutating the aggregate
// or emitting new events.
type BidOutcome struct {
	BidID    string          `json:"bid_id"`
	Accepted bool            `json:"accepted"`
	Reason   RejectionReason `json:"reason,omitempty"`
	Result   *AcceptedBid    `json:"result,omitempty"`
}

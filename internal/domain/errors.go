package domain

import "errors"

// Construction errors. These fail fast, before any aggregate state is touched.
var (
	ErrInvalidCurrency  = errors.New("currency code required")
	ErrInvalidAmount    = errors.New("invalid money amount")
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrInvalidDropRate  = errors.New("invalid price drop rate")
	ErrInvalidSchedule  = errors.New("invalid price schedule")
	ErrInvalidAuction   = errors.New("invalid auction definition")
)

// Command errors outside the bid-rejection taxonomy.
var (
	ErrAuctionNotFound     = errors.New("auction not found")
	ErrAlreadyPublished    = errors.New("auction already published")
	ErrNoSlots             = errors.New("auction has no item slots")
	ErrNotActive           = errors.New("no item slot is currently purchasable")
	ErrSlotNotFound        = errors.New("item slot not found")
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
)

// RejectionReason is the taxonomy of domain rejections for a bid. A
// rejection is a normal outcome, not a failure: it is returned as an
// error so callers can branch with errors.As, and it is always paired
// with a BidRejected event on the aggregate (except when the auction
// is already terminal).
type RejectionReason string

const (
	ReasonAuctionNotActive  RejectionReason = "auction_not_active"
	ReasonNoItemsAvailable  RejectionReason = "no_items_available"
	ReasonOutOfTimeWindow   RejectionReason = "out_of_time_window"
	ReasonPriceOutOfRange   RejectionReason = "price_out_of_range"
	ReasonAuctionTerminated RejectionReason = "auction_terminated"
)

func (r RejectionReason) Error() string { return string(r) }

// RejectionOf extracts a RejectionReason from an error chain, if any.
func RejectionOf(err error) (RejectionReason, bool) {
	var reason RejectionReason
	if errors.As(err, &reason) {
		return reason, true
	}
	return "", false
}

package domain

import (
	"time"
)

type EventType string

const (
	EventAuctionPublished EventType = "auction_published"
	EventBidAccepted      EventType = "bid_accepted"
	EventBidRejected      EventType = "bid_rejected"
	EventItemSoldInSlot   EventType = "item_sold_in_slot"
	EventAuctionEnded     EventType = "auction_ended"
	EventAuctionCancelled EventType = "auction_cancelled"
	EventItemWithdrawn    EventType = "item_withdrawn"
	EventPriceSnapshot    EventType = "price_snapshot"
)

// Event is a domain event produced by one aggregate command. Events are
// accumulated on the aggregate and published later by the outbox
// dispatcher; their order within a single command is significant and
// must be preserved end to end.
type Event interface {
	EventID() string
	EventType() EventType
	EventTenant() string
	EventAuction() string
	EventTime() time.Time
}

// EventMeta carries the fields common to every event: id for outbox
// deduplication, tenant for routing, occurrence time for ordering.
type EventMeta struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	AuctionID  string    `json:"auction_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (m EventMeta) EventID() string      { return m.ID }
func (m EventMeta) EventTenant() string  { return m.TenantID }
func (m EventMeta) EventAuction() string { return m.AuctionID }
func (m EventMeta) EventTime() time.Time { return m.OccurredAt }

type AuctionPublishedEvent struct {
	EventMeta
	PublishedOn time.Time `json:"published_on"`
	EndAt       time.Time `json:"end_at"`
	StartPrice  string    `json:"start_price"`
	Currency    string    `json:"currency"`
	TotalItems  int       `json:"total_items"`
}

func (AuctionPublishedEvent) EventType() EventType { return EventAuctionPublished }

type BidAcceptedEvent struct {
	EventMeta
	BidID        string `json:"bid_id"`
	SlotID       string `json:"slot_id"`
	BidderRef    string `json:"bidder_ref"`
	WinningPrice string `json:"winning_price"`
	Currency     string `json:"currency"`
}

func (BidAcceptedEvent) EventType() EventType { return EventBidAccepted }

type BidRejectedEvent struct {
	EventMeta
	BidID     string          `json:"bid_id"`
	BidderRef string          `json:"bidder_ref"`
	BidPrice  string          `json:"bid_price"`
	Currency  string          `json:"currency"`
	Reason    RejectionReason `json:"reason"`
}

func (BidRejectedEvent) EventType() EventType { return EventBidRejected }

type ItemSoldInSlotEvent struct {
	EventMeta
	SlotID       string `json:"slot_id"`
	ItemRef      string `json:"item_ref"`
	DisplayOrder int    `json:"display_order"`
	WinnerRef    string `json:"winner_ref"`
	WinningPrice string `json:"winning_price"`
	Currency     string `json:"currency"`
	WinningBidID string `json:"winning_bid_id"`
}

func (ItemSoldInSlotEvent) EventType() EventType { return EventItemSoldInSlot }

type EndReason string

const (
	EndReasonAllItemsSold EndReason = "all_items_sold"
	EndReasonTimeElapsed  EndReason = "end_time_reached"
	EndReasonNoItems      EndReason = "no_items_remaining"
	EndReasonManual       EndReason = "manual"
)

type AuctionEndedEvent struct {
	EventMeta
	Reason EndReason `json:"reason"`
	// Item references of slots withdrawn at end time, so the inventory
	// collaborator can release their reservations.
	ReleasedItems []string `json:"released_items,omitempty"`
	SoldItems     int      `json:"sold_items"`
}

func (AuctionEndedEvent) EventType() EventType { return EventAuctionEnded }

type AuctionCancelledEvent struct {
	EventMeta
	Reason        string   `json:"reason"`
	ReleasedItems []string `json:"released_items,omitempty"`
}

func (AuctionCancelledEvent) EventType() EventType { return EventAuctionCancelled }

// ItemWithdrawnEvent marks a single slot pulled from sale outside of a
// full end/cancel, e.g. on reservation timeout.
type ItemWithdrawnEvent struct {
	EventMeta
	SlotID  string `json:"slot_id"`
	ItemRef string `json:"item_ref"`
}

func (ItemWithdrawnEvent) EventType() EventType { return EventItemWithdrawn }

// PriceSnapshotEvent is produced by a host-side timer calling the pure
// CurrentPrice query, never by the aggregate itself.
type PriceSnapshotEvent struct {
	EventMeta
	SlotID       string `json:"slot_id"`
	CurrentPrice string `json:"current_price"`
	Currency     string `json:"currency"`
}

func (PriceSnapshotEvent) EventType() EventType { return EventPriceSnapshot }

// EventRecorder accumulates the events of a single command execution.
// The host drains it with PullEvents after the command returns and hands
// the batch, in order, to the outbox.
type EventRecorder struct {
	events []Event
}

func (r *EventRecorder) Record(e Event) {
	r.events = append(r.events, e)
}

// PullEvents returns the recorded events in recording order and resets
// the recorder.
func (r *EventRecorder) PullEvents() []Event {
	out := r.events
	r.events = nil
	return out
}

func (r *EventRecorder) Pending() int { return len(r.events) }

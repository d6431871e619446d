package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AuctionStatus int

const (
	AuctionDraft AuctionStatus = iota
	AuctionScheduled
	AuctionPublished
	AuctionActive
	AuctionEnded
	AuctionCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionDraft:
		return "draft"
	case AuctionScheduled:
		return "scheduled"
	case AuctionPublished:
		return "published"
	case AuctionActive:
		return "active"
	case AuctionEnded:
		return "ended"
	case AuctionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s AuctionStatus) Terminal() bool {
	return s == AuctionEnded || s == AuctionCancelled
}

// SlotSpec describes one item slot at auction creation time. The
// inventory collaborator has already confirmed the item's availability
// before the draft reaches this engine.
type SlotSpec struct {
	SlotID  string
	ItemRef string
}

// Auction is the aggregate root and the sole unit of concurrency
// control. Every mutating command runs in memory against a loaded
// version; the host persists the result with a compare-and-swap on
// Version. The aggregate is never mutated from outside its command
// methods.
type Auction struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenant_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      AuctionStatus `json:"status"`

	PublishAt   *time.Time `json:"publish_at,omitempty"`
	PublishedOn *time.Time `json:"published_on,omitempty"`
	EndAt       time.Time  `json:"end_at"`

	Schedule     PriceSchedule     `json:"schedule"`
	Sequencer    ItemSlotSequencer `json:"sequencer"`
	BidTolerance time.Duration     `json:"bid_tolerance"`

	// BidOutcomes remembers the result of every processed bid id so a
	// resubmitted bid returns its original outcome.
	BidOutcomes map[string]*BidOutcome `json:"bid_outcomes"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	recorder EventRecorder
}

func NewAuction(id, tenantID, title, description string, schedule PriceSchedule,
	slots []SlotSpec, publishAt *time.Time, endAt time.Time, now time.Time) (*Auction, error) {

	if id == "" || tenantID == "" {
		return nil, fmt.Errorf("%w: id and tenant are required", ErrInvalidAuction)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidAuction)
	}
	if !endAt.After(now) {
		return nil, fmt.Errorf("%w: end time must be in the future", ErrInvalidAuction)
	}
	if publishAt != nil && !endAt.After(*publishAt) {
		return nil, fmt.Errorf("%w: end time must be after publish time", ErrInvalidAuction)
	}

	seen := make(map[string]bool, len(slots))
	slotList := make([]*AuctionItemSlot, 0, len(slots))
	for i, spec := range slots {
		if spec.SlotID == "" || spec.ItemRef == "" {
			return nil, fmt.Errorf("%w: slot %d is missing id or item reference", ErrInvalidAuction, i+1)
		}
		if seen[spec.SlotID] {
			return nil, fmt.Errorf("%w: duplicate slot id %s", ErrInvalidAuction, spec.SlotID)
		}
		seen[spec.SlotID] = true
		slotList = append(slotList, &AuctionItemSlot{
			ID:           spec.SlotID,
			ItemRef:      spec.ItemRef,
			DisplayOrder: i + 1,
			Status:       SlotPending,
		})
	}

	return &Auction{
		ID:           id,
		TenantID:     tenantID,
		Title:        title,
		Description:  description,
		Status:       AuctionDraft,
		PublishAt:    publishAt,
		EndAt:        endAt,
		Schedule:     schedule,
		Sequencer:    ItemSlotSequencer{Slots: slotList},
		BidTolerance: DefaultBidTolerance,
		BidOutcomes:  make(map[string]*BidOutcome),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (a *Auction) TotalItems() int     { return a.Sequencer.TotalCount() }
func (a *Auction) SoldItems() int      { return a.Sequencer.SoldCount() }
func (a *Auction) RemainingItems() int { return a.Sequencer.RemainingCount() }

// PullEvents drains the events recorded by commands since the last
// drain, in recording order.
func (a *Auction) PullEvents() []Event { return a.recorder.PullEvents() }

// Publish moves a Draft (or due Scheduled) auction on sale. Called
// before publishAt it only parks the auction in Scheduled; the
// scheduler re-invokes it when publishAt elapses. Invoked late, the
// scheduled publishAt is used as the effective publication instant so
// downtime never grants a "free" price reset.
func (a *Auction) Publish(now time.Time) error {
	if a.Status.Terminal() {
		return ReasonAuctionTerminated
	}
	if a.Status == AuctionPublished || a.Status == AuctionActive {
		return ErrAlreadyPublished
	}
	if a.Sequencer.RemainingCount() == 0 {
		return ErrNoSlots
	}

	if a.PublishAt != nil && now.Before(*a.PublishAt) {
		a.Status = AuctionScheduled
		a.touch(now)
		return nil
	}

	effective := now
	if a.PublishAt != nil && a.PublishAt.Before(now) {
		effective = *a.PublishAt
	}

	a.PublishedOn = &effective
	a.Status = AuctionPublished
	a.Sequencer.Activate(effective)

	a.recorder.Record(AuctionPublishedEvent{
		EventMeta:   a.eventMeta(now),
		PublishedOn: effective,
		EndAt:       a.EndAt,
		StartPrice:  a.Schedule.StartPrice.Amount().String(),
		Currency:    a.Schedule.StartPrice.Currency(),
		TotalItems:  a.TotalItems(),
	})
	a.touch(now)
	return nil
}

// AcceptBid arbitrates one bid against the current slot. A rejection is
// returned as a RejectionReason error and recorded as a BidRejected
// event; only a terminal auction rejects without recording anything.
// The whole outcome, including a possible auction end when the last
// item sells, happens within this single command.
func (a *Auction) AcceptBid(bidID, bidderRef string, bidPrice Money, placedAt time.Time) (*AcceptedBid, error) {
	if prior, ok := a.BidOutcomes[bidID]; ok {
		if prior.Accepted {
			return prior.Result, nil
		}
		return nil, prior.Reason
	}

	if a.Status.Terminal() {
		return nil, ReasonAuctionTerminated
	}

	if err := a.validator().Validate(a, bidPrice, placedAt); err != nil {
		reason, _ := RejectionOf(err)
		a.recorder.Record(BidRejectedEvent{
			EventMeta: a.eventMeta(placedAt),
			BidID:     bidID,
			BidderRef: bidderRef,
			BidPrice:  bidPrice.Amount().String(),
			Currency:  bidPrice.Currency(),
			Reason:    reason,
		})
		a.BidOutcomes[bidID] = &BidOutcome{BidID: bidID, Reason: reason}
		a.touch(placedAt)
		return nil, reason
	}

	slot := a.Sequencer.CurrentSlot()
	a.Sequencer.Advance(bidderRef, bidPrice, bidID, placedAt)

	if a.Status == AuctionPublished {
		a.Status = AuctionActive
	}

	accepted := &AcceptedBid{
		BidID:           bidID,
		SlotID:          slot.ID,
		WinnerRef:       bidderRef,
		WinningPrice:    bidPrice,
		ReservationHint: slot.ItemRef,
	}

	a.recorder.Record(BidAcceptedEvent{
		EventMeta:    a.eventMeta(placedAt),
		BidID:        bidID,
		SlotID:       slot.ID,
		BidderRef:    bidderRef,
		WinningPrice: bidPrice.Amount().String(),
		Currency:     bidPrice.Currency(),
	})
	a.recorder.Record(ItemSoldInSlotEvent{
		EventMeta:    a.eventMeta(placedAt),
		SlotID:       slot.ID,
		ItemRef:      slot.ItemRef,
		DisplayOrder: slot.DisplayOrder,
		WinnerRef:    bidderRef,
		WinningPrice: bidPrice.Amount().String(),
		Currency:     bidPrice.Currency(),
		WinningBidID: bidID,
	})

	if a.Sequencer.Exhausted() {
		a.Status = AuctionEnded
		a.recorder.Record(AuctionEndedEvent{
			EventMeta: a.eventMeta(placedAt),
			Reason:    EndReasonAllItemsSold,
			SoldItems: a.SoldItems(),
		})
	}

	a.BidOutcomes[bidID] = &BidOutcome{BidID: bidID, Accepted: true, Result: accepted}
	a.touch(placedAt)
	return accepted, nil
}

// End closes the auction. Idempotent: ending an already terminal
// auction is a no-op and records nothing.
func (a *Auction) End(now time.Time, reason EndReason) error {
	if a.Status.Terminal() {
		return nil
	}

	released := a.Sequencer.WithdrawRemaining()
	a.Status = AuctionEnded
	a.recorder.Record(AuctionEndedEvent{
		EventMeta:     a.eventMeta(now),
		Reason:        reason,
		ReleasedItems: released,
		SoldItems:     a.SoldItems(),
	})
	a.touch(now)
	return nil
}

// Cancel aborts the auction, releasing all unsold slots. Idempotent on
// terminal auctions.
func (a *Auction) Cancel(now time.Time, reason string) error {
	if a.Status.Terminal() {
		return nil
	}

	released := a.Sequencer.WithdrawRemaining()
	a.Status = AuctionCancelled
	a.recorder.Record(AuctionCancelledEvent{
		EventMeta:     a.eventMeta(now),
		Reason:        reason,
		ReleasedItems: released,
	})
	a.touch(now)
	return nil
}

// WithdrawSlot pulls one slot from sale, typically when a reservation
// times out or the item becomes unavailable. Withdrawing the last
// sellable slot ends the auction.
func (a *Auction) WithdrawSlot(slotID string, now time.Time) error {
	if a.Status.Terminal() {
		return ReasonAuctionTerminated
	}

	// Before publication nothing is on sale yet, so the successor slot
	// must not start its price clock; Publish stamps it later.
	selling := a.Status == AuctionPublished || a.Status == AuctionActive
	slot, err := a.Sequencer.Withdraw(slotID, now, selling)
	if err != nil {
		return err
	}

	a.recorder.Record(ItemWithdrawnEvent{
		EventMeta: a.eventMeta(now),
		SlotID:    slot.ID,
		ItemRef:   slot.ItemRef,
	})

	if a.Sequencer.Exhausted() && selling {
		a.Status = AuctionEnded
		a.recorder.Record(AuctionEndedEvent{
			EventMeta: a.eventMeta(now),
			Reason:    EndReasonNoItems,
			SoldItems: a.SoldItems(),
		})
	}

	a.touch(now)
	return nil
}

// CurrentPrice is the pure pricing query: the price of the slot
// currently on sale, measured from that slot's own activation instant.
func (a *Auction) CurrentPrice(now time.Time) (Money, error) {
	if a.Status != AuctionPublished && a.Status != AuctionActive {
		return Money{}, ErrNotActive
	}
	slot := a.Sequencer.CurrentSlot()
	if slot == nil || slot.Status != SlotAvailable || slot.ActivatedAt == nil {
		return Money{}, ErrNotActive
	}
	return a.Schedule.PriceAt(*slot.ActivatedAt, now), nil
}

func (a *Auction) validator() BidValidator {
	tol := a.BidTolerance
	if tol <= 0 {
		tol = DefaultBidTolerance
	}
	return BidValidator{Tolerance: tol}
}

func (a *Auction) eventMeta(at time.Time) EventMeta {
	return EventMeta{
		ID:         uuid.NewString(),
		TenantID:   a.TenantID,
		AuctionID:  a.ID,
		OccurredAt: at,
	}
}

func (a *Auction) touch(now time.Time) {
	a.Version++
	a.UpdatedAt = now
}

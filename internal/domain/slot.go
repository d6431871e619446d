package domain

import (
	"fmt"
	"time"
)

type SlotStatus int

const (
	SlotPending SlotStatus = iota
	SlotAvailable
	SlotSold
	SlotWithdrawn
)

func (s SlotStatus) String() string {
	switch s {
	case SlotPending:
		return "pending"
	case SlotAvailable:
		return "available"
	case SlotSold:
		return "sold"
	case SlotWithdrawn:
		return "withdrawn"
	default:
		return "unknown"
	}
}

// AuctionItemSlot is one sellable position in a multi-item auction,
// tied to exactly one external inventory item. Its lifecycle is owned
// by the Auction aggregate; nothing outside the aggregate mutates it.
type AuctionItemSlot struct {
	ID           string     `json:"id"`
	ItemRef      string     `json:"item_ref"`
	DisplayOrder int        `json:"display_order"`
	Status       SlotStatus `json:"status"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`
	WinnerRef    string     `json:"winner_ref,omitempty"`
	WinningPrice *Money     `json:"winning_price,omitempty"`
	WinningBidID string     `json:"winning_bid_id,omitempty"`
	SoldAt       *time.Time `json:"sold_at,omitempty"`
}

// ItemSlotSequencer walks an auction's slots strictly in display order.
// Only one slot is purchasable at a time; each newly activated slot
// restarts the price schedule from its own activation instant.
type ItemSlotSequencer struct {
	Slots        []*AuctionItemSlot `json:"slots"`
	CurrentIndex int                `json:"current_index"`
}

// CurrentSlot returns the slot currently up for sale, or nil when the
// sequence is exhausted.
func (s *ItemSlotSequencer) CurrentSlot() *AuctionItemSlot {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Slots) {
		return nil
	}
	return s.Slots[s.CurrentIndex]
}

// Activate marks the current slot Available and stamps its activation
// time. No-op if the sequence is exhausted or the slot is not Pending.
func (s *ItemSlotSequencer) Activate(at time.Time) *AuctionItemSlot {
	slot := s.CurrentSlot()
	if slot == nil || slot.Status != SlotPending {
		return slot
	}
	slot.Status = SlotAvailable
	t := at
	slot.ActivatedAt = &t
	return slot
}

// Advance marks the current slot Sold with the winning bid details and
// moves on, activating the next Pending slot at the sale instant.
func (s *ItemSlotSequencer) Advance(winnerRef string, price Money, bidID string, at time.Time) *AuctionItemSlot {
	slot := s.CurrentSlot()
	if slot == nil {
		return nil
	}

	slot.Status = SlotSold
	slot.WinnerRef = winnerRef
	p := price
	slot.WinningPrice = &p
	slot.WinningBidID = bidID
	t := at
	slot.SoldAt = &t

	s.moveToNextPending(at, true)
	return slot
}

// Withdraw marks the given slot Withdrawn. It does not have to be the
// current slot; if it is, the sequencer advances past it. activateNext
// controls whether the successor goes on sale immediately: before
// publication the auction is not selling, so the successor must stay
// Pending and get its activation stamp from Publish instead.
func (s *ItemSlotSequencer) Withdraw(slotID string, at time.Time, activateNext bool) (*AuctionItemSlot, error) {
	for i, slot := range s.Slots {
		if slot.ID != slotID {
			continue
		}
		if slot.Status == SlotSold {
			return nil, fmt.Errorf("%w: slot %s already sold", ErrSlotNotFound, slotID)
		}
		slot.Status = SlotWithdrawn
		if i == s.CurrentIndex {
			s.moveToNextPending(at, activateNext)
		}
		return slot, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSlotNotFound, slotID)
}

// WithdrawRemaining withdraws every slot that has not been sold yet and
// returns their item references, so inventory reservations can be
// released downstream.
func (s *ItemSlotSequencer) WithdrawRemaining() []string {
	var released []string
	for _, slot := range s.Slots {
		if slot.Status == SlotPending || slot.Status == SlotAvailable {
			slot.Status = SlotWithdrawn
			released = append(released, slot.ItemRef)
		}
	}
	s.CurrentIndex = len(s.Slots)
	return released
}

func (s *ItemSlotSequencer) TotalCount() int { return len(s.Slots) }

func (s *ItemSlotSequencer) SoldCount() int {
	n := 0
	for _, slot := range s.Slots {
		if slot.Status == SlotSold {
			n++
		}
	}
	return n
}

// RemainingCount counts slots still sellable (Pending or Available).
func (s *ItemSlotSequencer) RemainingCount() int {
	n := 0
	for _, slot := range s.Slots {
		if slot.Status == SlotPending || slot.Status == SlotAvailable {
			n++
		}
	}
	return n
}

func (s *ItemSlotSequencer) Exhausted() bool {
	return s.RemainingCount() == 0
}

func (s *ItemSlotSequencer) moveToNextPending(at time.Time, activate bool) {
	for i := s.CurrentIndex + 1; i < len(s.Slots); i++ {
		if s.Slots[i].Status == SlotPending {
			s.CurrentIndex = i
			if activate {
				s.Activate(at)
			}
			return
		}
	}
	s.CurrentIndex = len(s.Slots)
}

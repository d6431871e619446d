package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestAuction(t *testing.T, itemRefs ...string) *Auction {
	t.Helper()

	if len(itemRefs) == 0 {
		itemRefs = []string{"item-1"}
	}
	slots := make([]SlotSpec, len(itemRefs))
	for i, ref := range itemRefs {
		slots[i] = SlotSpec{SlotID: "slot-" + ref, ItemRef: ref}
	}

	auction, err := NewAuction("auction-1", "tenant-1", "Vinyl sale", "",
		testSchedule(t), slots, nil, baseTime.Add(2*time.Hour), baseTime)
	require.NoError(t, err)
	return auction
}

func publishedAuction(t *testing.T, itemRefs ...string) *Auction {
	t.Helper()
	auction := newTestAuction(t, itemRefs...)
	require.NoError(t, auction.Publish(baseTime))
	auction.PullEvents()
	return auction
}

func TestNewAuctionValidation(t *testing.T) {
	schedule := testSchedule(t)
	slots := []SlotSpec{{SlotID: "slot-1", ItemRef: "item-1"}}

	tests := []struct {
		name string
		fn   func() (*Auction, error)
	}{
		{"missing id", func() (*Auction, error) {
			return NewAuction("", "tenant-1", "x", "", schedule, slots, nil, baseTime.Add(time.Hour), baseTime)
		}},
		{"missing tenant", func() (*Auction, error) {
			return NewAuction("a-1", "", "x", "", schedule, slots, nil, baseTime.Add(time.Hour), baseTime)
		}},
		{"missing title", func() (*Auction, error) {
			return NewAuction("a-1", "tenant-1", "", "", schedule, slots, nil, baseTime.Add(time.Hour), baseTime)
		}},
		{"end time in the past", func() (*Auction, error) {
			return NewAuction("a-1", "tenant-1", "x", "", schedule, slots, nil, baseTime.Add(-time.Hour), baseTime)
		}},
		{"publish after end", func() (*Auction, error) {
			publishAt := baseTime.Add(2 * time.Hour)
			return NewAuction("a-1", "tenant-1", "x", "", schedule, slots, &publishAt, baseTime.Add(time.Hour), baseTime)
		}},
		{"duplicate slot id", func() (*Auction, error) {
			dup := []SlotSpec{{SlotID: "s", ItemRef: "i-1"}, {SlotID: "s", ItemRef: "i-2"}}
			return NewAuction("a-1", "tenant-1", "x", "", schedule, dup, nil, baseTime.Add(time.Hour), baseTime)
		}},
		{"slot without item reference", func() (*Auction, error) {
			bad := []SlotSpec{{SlotID: "s", ItemRef: ""}}
			return NewAuction("a-1", "tenant-1", "x", "", schedule, bad, nil, baseTime.Add(time.Hour), baseTime)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			assert.ErrorIs(t, err, ErrInvalidAuction)
		})
	}
}

func TestPublish(t *testing.T) {
	t.Run("activates the first slot and records the event", func(t *testing.T) {
		auction := newTestAuction(t, "item-1", "item-2")

		require.NoError(t, auction.Publish(baseTime))

		assert.Equal(t, AuctionPublished, auction.Status)
		require.NotNil(t, auction.PublishedOn)
		assert.Equal(t, baseTime, *auction.PublishedOn)

		slot := auction.Sequencer.CurrentSlot()
		require.NotNil(t, slot)
		assert.Equal(t, SlotAvailable, slot.Status)
		assert.Equal(t, "item-1", slot.ItemRef)
		require.NotNil(t, slot.ActivatedAt)
		assert.Equal(t, baseTime, *slot.ActivatedAt)

		events := auction.PullEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventAuctionPublished, events[0].EventType())
	})

	t.Run("before publish time only schedules", func(t *testing.T) {
		schedule := testSchedule(t)
		publishAt := baseTime.Add(time.Hour)
		auction, err := NewAuction("a-1", "tenant-1", "x", "", schedule,
			[]SlotSpec{{SlotID: "s-1", ItemRef: "i-1"}}, &publishAt, baseTime.Add(2*time.Hour), baseTime)
		require.NoError(t, err)

		require.NoError(t, auction.Publish(baseTime))

		assert.Equal(t, AuctionScheduled, auction.Status)
		assert.Nil(t, auction.PublishedOn)
		assert.Empty(t, auction.PullEvents())
	})

	t.Run("late publish backdates to the scheduled instant", func(t *testing.T) {
		schedule := testSchedule(t)
		publishAt := baseTime
		auction, err := NewAuction("a-1", "tenant-1", "x", "", schedule,
			[]SlotSpec{{SlotID: "s-1", ItemRef: "i-1"}}, &publishAt, baseTime.Add(2*time.Hour), baseTime.Add(-time.Minute))
		require.NoError(t, err)

		// The scheduler was down for two minutes; the price must reflect
		// the scheduled start, not the recovery instant.
		require.NoError(t, auction.Publish(baseTime.Add(2*time.Minute)))

		require.NotNil(t, auction.PublishedOn)
		assert.Equal(t, publishAt, *auction.PublishedOn)

		price, err := auction.CurrentPrice(baseTime.Add(2 * time.Minute))
		require.NoError(t, err)
		assert.True(t, price.Equal(pln(t, "960")), "got %s", price)
	})

	t.Run("rejects publish when every slot was withdrawn", func(t *testing.T) {
		auction := newTestAuction(t, "item-1")
		require.NoError(t, auction.WithdrawSlot("slot-item-1", baseTime))

		assert.ErrorIs(t, auction.Publish(baseTime.Add(time.Minute)), ErrNoSlots)
	})

	t.Run("rejects double publish", func(t *testing.T) {
		auction := publishedAuction(t)
		assert.ErrorIs(t, auction.Publish(baseTime.Add(time.Second)), ErrAlreadyPublished)
	})

	t.Run("rejects terminal auction", func(t *testing.T) {
		auction := publishedAuction(t)
		require.NoError(t, auction.Cancel(baseTime.Add(time.Minute), "rollback"))

		err := auction.Publish(baseTime.Add(2 * time.Minute))
		reason, ok := RejectionOf(err)
		require.True(t, ok)
		assert.Equal(t, ReasonAuctionTerminated, reason)
	})
}

func TestAcceptBid(t *testing.T) {
	t.Run("accepts the exact current price", func(t *testing.T) {
		auction := publishedAuction(t, "item-1", "item-2")

		placedAt := baseTime.Add(60 * time.Second)
		accepted, err := auction.AcceptBid("bid-1", "alice", pln(t, "980"), placedAt)
		require.NoError(t, err)

		assert.Equal(t, "bid-1", accepted.BidID)
		assert.Equal(t, "alice", accepted.WinnerRef)
		assert.Equal(t, "item-1", accepted.ReservationHint)
		assert.True(t, accepted.WinningPrice.Equal(pln(t, "980")))
		assert.Equal(t, AuctionActive, auction.Status)

		events := auction.PullEvents()
		require.Len(t, events, 2)
		assert.Equal(t, EventBidAccepted, events[0].EventType())
		assert.Equal(t, EventItemSoldInSlot, events[1].EventType())
	})

	t.Run("winning price is what the bidder offered", func(t *testing.T) {
		auction := publishedAuction(t)

		// Bid priced against the snapshot from just before the drop at
		// t+30s, placed just after it. Current price is 990 but the
		// bidder pays the 1000 they agreed to.
		placedAt := baseTime.Add(31 * time.Second)
		accepted, err := auction.AcceptBid("bid-1", "alice", pln(t, "1000"), placedAt)
		require.NoError(t, err)
		assert.True(t, accepted.WinningPrice.Equal(pln(t, "1000")))
	})

	t.Run("tolerance band around a price drop", func(t *testing.T) {
		tests := []struct {
			name     string
			price    string
			placedAt time.Duration
			accepted bool
		}{
			// The drop from 1000 to 990 happens at t+30s.
			{"future price just inside tolerance", "990", 28 * time.Second, true},
			{"future price outside tolerance", "990", 27 * time.Second, false},
			{"stale price just inside tolerance", "1000", 31 * time.Second, true},
			{"stale price outside tolerance", "1000", 32 * time.Second, false},
			{"price below the whole band", "985", 31 * time.Second, false},
			{"price above the whole band", "1010", 31 * time.Second, false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				auction := publishedAuction(t)
				_, err := auction.AcceptBid("bid-1", "alice", pln(t, tt.price), baseTime.Add(tt.placedAt))
				if tt.accepted {
					assert.NoError(t, err)
				} else {
					reason, ok := RejectionOf(err)
					require.True(t, ok, "expected rejection, got %v", err)
					assert.Equal(t, ReasonPriceOutOfRange, reason)
				}
			})
		}
	})

	t.Run("rejects mismatched currency as out of range", func(t *testing.T) {
		auction := publishedAuction(t)
		eur, err := NewMoneyFromString("1000", "EUR")
		require.NoError(t, err)

		_, err = auction.AcceptBid("bid-1", "alice", eur, baseTime.Add(time.Second))
		reason, ok := RejectionOf(err)
		require.True(t, ok)
		assert.Equal(t, ReasonPriceOutOfRange, reason)
	})

	t.Run("rejects bids after the end time", func(t *testing.T) {
		auction := publishedAuction(t)

		_, err := auction.AcceptBid("bid-1", "alice", pln(t, "500"), baseTime.Add(3*time.Hour))
		reason, ok := RejectionOf(err)
		require.True(t, ok)
		assert.Equal(t, ReasonOutOfTimeWindow, reason)
	})

	t.Run("rejects bids on a draft auction", func(t *testing.T) {
		auction := newTestAuction(t)

		_, err := auction.AcceptBid("bid-1", "alice", pln(t, "1000"), baseTime)
		reason, ok := RejectionOf(err)
		require.True(t, ok)
		assert.Equal(t, ReasonAuctionNotActive, reason)
	})

	t.Run("rejection is recorded and versioned", func(t *testing.T) {
		auction := publishedAuction(t)
		before := auction.Version

		_, err := auction.AcceptBid("bid-1", "alice", pln(t, "1"), baseTime.Add(time.Second))
		require.Error(t, err)

		events := auction.PullEvents()
		require.Len(t, events, 1)
		rejected, ok := events[0].(BidRejectedEvent)
		require.True(t, ok)
		assert.Equal(t, "bid-1", rejected.BidID)
		assert.Equal(t, ReasonPriceOutOfRange, rejected.Reason)
		assert.Equal(t, before+1, auction.Version)
	})

	t.Run("terminal auction rejects without recording", func(t *testing.T) {
		auction := publishedAuction(t)
		require.NoError(t, auction.End(baseTime.Add(time.Minute), EndReasonManual))
		auction.PullEvents()
		before := auction.Version

		_, err := auction.AcceptBid("bid-1", "alice", pln(t, "1000"), baseTime.Add(2*time.Minute))
		reason, ok := RejectionOf(err)
		require.True(t, ok)
		assert.Equal(t, ReasonAuctionTerminated, reason)
		assert.Empty(t, auction.PullEvents())
		assert.Equal(t, before, auction.Version)
	})
}

func TestAcceptBidIdempotency(t *testing.T) {
	t.Run("resubmitted accepted bid returns the original outcome", func(t *testing.T) {
		auction := publishedAuction(t, "item-1", "item-2")

		first, err := auction.AcceptBid("bid-1", "alice", pln(t, "1000"), baseTime.Add(time.Second))
		require.NoError(t, err)
		auction.PullEvents()
		version := auction.Version

		second, err := auction.AcceptBid("bid-1", "alice", pln(t, "1000"), baseTime.Add(time.Minute))
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Empty(t, auction.PullEvents())
		assert.Equal(t, version, auction.Version)
	})

	t.Run("resubmitted rejected bid returns the original reason", func(t *testing.T) {
		auction := publishedAuction(t)

		_, err := auction.AcceptBid("bid-1", "alice", pln(t, "1"), baseTime.Add(time.Second))
		require.Error(t, err)
		auction.PullEvents()
		version := auction.Version

		// Same id resubmitted at a moment where 1 PLN would still fail,
		// but the point is the ledger answers before validation runs.
		_, err = auction.AcceptBid("bid-1", "alice", pln(t, "1"), baseTime.Add(2*time.Second))
		reason, ok := RejectionOf(err)
		require.True(t, ok)
		assert.Equal(t, ReasonPriceOutOfRange, reason)
		assert.Empty(t, auction.PullEvents())
		assert.Equal(t, version, auction.Version)
	})
}

func TestSequentialSlotProgression(t *testing.T) {
	auction := publishedAuction(t, "item-1", "item-2", "item-3")

	// First sale two minutes in, at 960.
	firstSale := baseTime.Add(2 * time.Minute)
	accepted, err := auction.AcceptBid("bid-1", "alice", pln(t, "960"), firstSale)
	require.NoError(t, err)
	assert.Equal(t, "item-1", accepted.ReservationHint)
	auction.PullEvents()

	// The next slot restarts pricing from the sale instant: back to 1000.
	price, err := auction.CurrentPrice(firstSale)
	require.NoError(t, err)
	assert.True(t, price.Equal(pln(t, "1000")), "got %s", price)

	// A bid priced against the previous slot's curve is now out of range.
	_, err = auction.AcceptBid("bid-2", "bob", pln(t, "960"), firstSale.Add(time.Second))
	reason, ok := RejectionOf(err)
	require.True(t, ok)
	assert.Equal(t, ReasonPriceOutOfRange, reason)
	auction.PullEvents()

	// Second slot sells one minute into its own curve, at 980.
	secondSale := firstSale.Add(time.Minute)
	accepted, err = auction.AcceptBid("bid-3", "bob", pln(t, "980"), secondSale)
	require.NoError(t, err)
	assert.Equal(t, "item-2", accepted.ReservationHint)

	assert.Equal(t, 2, auction.SoldItems())
	assert.Equal(t, 1, auction.RemainingItems())
	assert.Equal(t, "item-3", auction.Sequencer.CurrentSlot().ItemRef)
}

func TestLastItemSoldEndsAuction(t *testing.T) {
	auction := publishedAuction(t, "item-1")

	_, err := auction.AcceptBid("bid-1", "alice", pln(t, "1000"), baseTime.Add(time.Second))
	require.NoError(t, err)

	assert.Equal(t, AuctionEnded, auction.Status)

	events := auction.PullEvents()
	require.Len(t, events, 3)
	assert.Equal(t, EventBidAccepted, events[0].EventType())
	assert.Equal(t, EventItemSoldInSlot, events[1].EventType())
	assert.Equal(t, EventAuctionEnded, events[2].EventType())

	ended, ok := events[2].(AuctionEndedEvent)
	require.True(t, ok)
	assert.Equal(t, EndReasonAllItemsSold, ended.Reason)
	assert.Equal(t, 1, ended.SoldItems)
	assert.Empty(t, ended.ReleasedItems)
}

func TestEnd(t *testing.T) {
	t.Run("releases unsold items", func(t *testing.T) {
		auction := publishedAuction(t, "item-1", "item-2", "item-3")

		_, err := auction.AcceptBid("bid-1", "alice", pln(t, "1000"), baseTime.Add(time.Second))
		require.NoError(t, err)
		auction.PullEvents()

		require.NoError(t, auction.End(baseTime.Add(time.Hour), EndReasonTimeElapsed))

		assert.Equal(t, AuctionEnded, auction.Status)
		events := auction.PullEvents()
		require.Len(t, events, 1)
		ended, ok := events[0].(AuctionEndedEvent)
		require.True(t, ok)
		assert.Equal(t, EndReasonTimeElapsed, ended.Reason)
		assert.ElementsMatch(t, []string{"item-2", "item-3"}, ended.ReleasedItems)
		assert.Equal(t, 1, ended.SoldItems)
	})

	t.Run("is idempotent on terminal auctions", func(t *testing.T) {
		auction := publishedAuction(t)
		require.NoError(t, auction.End(baseTime.Add(time.Minute), EndReasonManual))
		auction.PullEvents()
		version := auction.Version

		require.NoError(t, auction.End(baseTime.Add(2*time.Minute), EndReasonManual))
		assert.Empty(t, auction.PullEvents())
		assert.Equal(t, version, auction.Version)
	})
}

func TestCancel(t *testing.T) {
	auction := publishedAuction(t, "item-1", "item-2")

	require.NoError(t, auction.Cancel(baseTime.Add(time.Minute), "inventory recalled"))

	assert.Equal(t, AuctionCancelled, auction.Status)
	events := auction.PullEvents()
	require.Len(t, events, 1)
	cancelled, ok := events[0].(AuctionCancelledEvent)
	require.True(t, ok)
	assert.Equal(t, "inventory recalled", cancelled.Reason)
	assert.ElementsMatch(t, []string{"item-1", "item-2"}, cancelled.ReleasedItems)

	// Idempotent second cancel.
	version := auction.Version
	require.NoError(t, auction.Cancel(baseTime.Add(2*time.Minute), "again"))
	assert.Empty(t, auction.PullEvents())
	assert.Equal(t, version, auction.Version)
}

func TestWithdrawSlot(t *testing.T) {
	t.Run("withdrawing the current slot advances the sequence", func(t *testing.T) {
		auction := publishedAuction(t, "item-1", "item-2")
		at := baseTime.Add(time.Minute)

		require.NoError(t, auction.WithdrawSlot("slot-item-1", at))

		slot := auction.Sequencer.CurrentSlot()
		require.NotNil(t, slot)
		assert.Equal(t, "item-2", slot.ItemRef)
		require.NotNil(t, slot.ActivatedAt)
		assert.Equal(t, at, *slot.ActivatedAt)

		events := auction.PullEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventItemWithdrawn, events[0].EventType())
	})

	t.Run("withdrawing the last slot ends the auction", func(t *testing.T) {
		auction := publishedAuction(t, "item-1")

		require.NoError(t, auction.WithdrawSlot("slot-item-1", baseTime.Add(time.Minute)))

		assert.Equal(t, AuctionEnded, auction.Status)
		events := auction.PullEvents()
		require.Len(t, events, 2)
		assert.Equal(t, EventItemWithdrawn, events[0].EventType())
		ended, ok := events[1].(AuctionEndedEvent)
		require.True(t, ok)
		assert.Equal(t, EndReasonNoItems, ended.Reason)
	})

	t.Run("withdrawal before publication does not start the price clock", func(t *testing.T) {
		auction := newTestAuction(t, "item-1", "item-2")

		require.NoError(t, auction.WithdrawSlot("slot-item-1", baseTime))

		// The successor waits for publication; no activation stamp yet.
		slot := auction.Sequencer.CurrentSlot()
		require.NotNil(t, slot)
		assert.Equal(t, SlotPending, slot.Status)
		assert.Nil(t, slot.ActivatedAt)

		publishAt := baseTime.Add(10 * time.Minute)
		require.NoError(t, auction.Publish(publishAt))

		require.NotNil(t, slot.ActivatedAt)
		assert.Equal(t, publishAt, *slot.ActivatedAt)

		price, err := auction.CurrentPrice(publishAt)
		require.NoError(t, err)
		assert.True(t, price.Equal(pln(t, "1000")), "got %s", price)
	})

	t.Run("sold slots cannot be withdrawn", func(t *testing.T) {
		auction := publishedAuction(t, "item-1", "item-2")
		_, err := auction.AcceptBid("bid-1", "alice", pln(t, "1000"), baseTime.Add(time.Second))
		require.NoError(t, err)

		err = auction.WithdrawSlot("slot-item-1", baseTime.Add(time.Minute))
		assert.ErrorIs(t, err, ErrSlotNotFound)
	})

	t.Run("unknown slot", func(t *testing.T) {
		auction := publishedAuction(t)
		err := auction.WithdrawSlot("slot-nope", baseTime.Add(time.Minute))
		assert.ErrorIs(t, err, ErrSlotNotFound)
	})
}

func TestCurrentPrice(t *testing.T) {
	t.Run("draft auction has no price", func(t *testing.T) {
		auction := newTestAuction(t)
		_, err := auction.CurrentPrice(baseTime)
		assert.ErrorIs(t, err, ErrNotActive)
	})

	t.Run("ended auction has no price", func(t *testing.T) {
		auction := publishedAuction(t)
		require.NoError(t, auction.End(baseTime.Add(time.Minute), EndReasonManual))
		_, err := auction.CurrentPrice(baseTime.Add(2 * time.Minute))
		assert.ErrorIs(t, err, ErrNotActive)
	})

	t.Run("tracks the schedule of the active slot", func(t *testing.T) {
		auction := publishedAuction(t)
		price, err := auction.CurrentPrice(baseTime.Add(90 * time.Second))
		require.NoError(t, err)
		assert.True(t, price.Equal(pln(t, "970")), "got %s", price)
	})
}

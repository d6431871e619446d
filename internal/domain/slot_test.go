package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSequencer(refs ...string) ItemSlotSequencer {
	slots := make([]*AuctionItemSlot, len(refs))
	for i, ref := range refs {
		slots[i] = &AuctionItemSlot{
			ID:           "slot-" + ref,
			ItemRef:      ref,
			DisplayOrder: i + 1,
			Status:       SlotPending,
		}
	}
	return ItemSlotSequencer{Slots: slots}
}

func TestSequencerAdvance(t *testing.T) {
	seq := newSequencer("a", "b")
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seq.Activate(t0)

	t1 := t0.Add(time.Minute)
	sold := seq.Advance("alice", pln(t, "980"), "bid-1", t1)
	require.NotNil(t, sold)
	assert.Equal(t, SlotSold, sold.Status)
	assert.Equal(t, "alice", sold.WinnerRef)
	assert.Equal(t, "bid-1", sold.WinningBidID)
	require.NotNil(t, sold.SoldAt)
	assert.Equal(t, t1, *sold.SoldAt)

	next := seq.CurrentSlot()
	require.NotNil(t, next)
	assert.Equal(t, "b", next.ItemRef)
	assert.Equal(t, SlotAvailable, next.Status)
	require.NotNil(t, next.ActivatedAt)
	assert.Equal(t, t1, *next.ActivatedAt)
}

func TestSequencerWithdrawSkipsToNextPending(t *testing.T) {
	seq := newSequencer("a", "b", "c")
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seq.Activate(t0)

	// Withdraw a future slot: the current one stays on sale.
	_, err := seq.Withdraw("slot-b", t0.Add(time.Minute), true)
	require.NoError(t, err)
	assert.Equal(t, "a", seq.CurrentSlot().ItemRef)

	// Selling the current slot must skip the withdrawn one.
	seq.Advance("alice", pln(t, "980"), "bid-1", t0.Add(2*time.Minute))
	assert.Equal(t, "c", seq.CurrentSlot().ItemRef)
}

func TestSequencerExhaustion(t *testing.T) {
	seq := newSequencer("a")
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seq.Activate(t0)

	assert.False(t, seq.Exhausted())
	seq.Advance("alice", pln(t, "980"), "bid-1", t0.Add(time.Minute))

	assert.True(t, seq.Exhausted())
	assert.Nil(t, seq.CurrentSlot())
	assert.Equal(t, 1, seq.SoldCount())
	assert.Equal(t, 0, seq.RemainingCount())
}

func TestSequencerWithdrawRemaining(t *testing.T) {
	seq := newSequencer("a", "b", "c")
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seq.Activate(t0)
	seq.Advance("alice", pln(t, "980"), "bid-1", t0.Add(time.Minute))

	released := seq.WithdrawRemaining()

	assert.ElementsMatch(t, []string{"b", "c"}, released)
	assert.True(t, seq.Exhausted())
	assert.Equal(t, 1, seq.SoldCount())
	// Sold slots are untouched by the sweep.
	assert.Equal(t, SlotSold, seq.Slots[0].Status)
}

func TestSequencerWithdrawWithoutActivation(t *testing.T) {
	seq := newSequencer("a", "b")
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Withdrawing the current slot of a not-yet-selling sequence moves
	// the cursor but leaves the successor Pending and unstamped.
	_, err := seq.Withdraw("slot-a", t0, false)
	require.NoError(t, err)

	next := seq.CurrentSlot()
	require.NotNil(t, next)
	assert.Equal(t, "b", next.ItemRef)
	assert.Equal(t, SlotPending, next.Status)
	assert.Nil(t, next.ActivatedAt)

	// Activation later starts the price clock fresh.
	t1 := t0.Add(10 * time.Minute)
	seq.Activate(t1)
	assert.Equal(t, SlotAvailable, next.Status)
	require.NotNil(t, next.ActivatedAt)
	assert.Equal(t, t1, *next.ActivatedAt)
}

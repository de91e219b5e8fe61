package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lootledger/lootledger/internal/classify"
	"github.com/lootledger/lootledger/internal/model"
)

var ts = time.Date(2026, 8, 31, 21, 14, 3, 0, time.Local)

func mutation(page, slot, item, count int, init bool) classify.BagMutation {
	return classify.BagMutation{Time: ts, Page: page, Slot: slot, Item: item, Count: count, Init: init}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	return New(DefaultConfig(), nil)
}

func TestNewSlotEmitsFullQuantity(t *testing.T) {
	e := newEngine(t)

	deltas := e.OnBagMutation(mutation(1, 3, 4023, 7, false), 100, "line")
	require.Len(t, deltas, 1)
	assert.Equal(t, 7, deltas[0].Delta)
	assert.Equal(t, 4023, deltas[0].Item)
	assert.Equal(t, model.ContextOther, deltas[0].Context)
	assert.Equal(t, int64(100), deltas[0].Offset)

	state, ok := e.SlotState(model.SlotKey{Page: 1, Slot: 3})
	require.True(t, ok)
	assert.Equal(t, model.SlotState{Item: 4023, Count: 7}, state)
}

func TestSameItemEmitsDifference(t *testing.T) {
	e := newEngine(t)

	e.OnBagMutation(mutation(1, 3, 4023, 7, false), 0, "")
	deltas := e.OnBagMutation(mutation(1, 3, 4023, 12, false), 0, "")
	require.Len(t, deltas, 1)
	assert.Equal(t, 5, deltas[0].Delta)

	deltas = e.OnBagMutation(mutation(1, 3, 4023, 2, false), 0, "")
	require.Len(t, deltas, 1)
	assert.Equal(t, -10, deltas[0].Delta)
}

func TestInitNeverEmitsDelta(t *testing.T) {
	e := newEngine(t)

	// No prior state.
	deltas := e.OnBagMutation(mutation(1, 3, 4023, 7, true), 0, "")
	assert.Empty(t, deltas)

	// With prior state and a different quantity.
	deltas = e.OnBagMutation(mutation(1, 3, 4023, 999, true), 0, "")
	assert.Empty(t, deltas)

	// With prior state and a different item.
	deltas = e.OnBagMutation(mutation(1, 3, 5000, 1, true), 0, "")
	assert.Empty(t, deltas)

	state, _ := e.SlotState(model.SlotKey{Page: 1, Slot: 3})
	assert.Equal(t, model.SlotState{Item: 5000, Count: 1}, state)
}

func TestSlotReuseEmitsTwoDeltas(t *testing.T) {
	e := newEngine(t)

	e.OnBagMutation(mutation(1, 3, 4023, 7, false), 0, "")
	deltas := e.OnBagMutation(mutation(1, 3, 5000, 4, false), 0, "")
	require.Len(t, deltas, 2)

	assert.Equal(t, 4023, deltas[0].Item)
	assert.Equal(t, -7, deltas[0].Delta)
	assert.Equal(t, 5000, deltas[1].Item)
	assert.Equal(t, 4, deltas[1].Delta)
	assert.Equal(t, deltas[0].Timestamp, deltas[1].Timestamp)
	assert.Equal(t, deltas[0].Context, deltas[1].Context)
}

func TestPickupContextTagging(t *testing.T) {
	e := newEngine(t)

	e.OnContextMark(classify.ContextMark{Time: ts, Start: true, Proto: "pickup-items"})
	deltas := e.OnBagMutation(mutation(1, 3, 4023, 7, false), 0, "")
	require.Len(t, deltas, 1)
	assert.Equal(t, model.ContextPickup, deltas[0].Context)

	e.OnContextMark(classify.ContextMark{Time: ts, Start: false, Proto: "pickup-items"})
	deltas = e.OnBagMutation(mutation(1, 3, 4023, 8, false), 0, "")
	require.Len(t, deltas, 1)
	assert.Equal(t, model.ContextOther, deltas[0].Context)
}

func TestNonPickupContextIsOther(t *testing.T) {
	e := newEngine(t)

	e.OnContextMark(classify.ContextMark{Time: ts, Start: true, Proto: "sell-items"})
	deltas := e.OnBagMutation(mutation(1, 3, 4023, 7, false), 0, "")
	require.Len(t, deltas, 1)
	assert.Equal(t, model.ContextOther, deltas[0].Context)
}

func TestUnbalancedContextEndClamps(t *testing.T) {
	e := newEngine(t)

	e.OnContextMark(classify.ContextMark{Time: ts, Start: false, Proto: "pickup-items"})
	e.OnContextMark(classify.ContextMark{Time: ts, Start: false, Proto: "pickup-items"})
	assert.False(t, e.InPickup())

	// A later begin still opens normally.
	e.OnContextMark(classify.ContextMark{Time: ts, Start: true, Proto: "pickup-items"})
	assert.True(t, e.InPickup())
}

func TestExcludedPageDropped(t *testing.T) {
	e := newEngine(t)

	deltas := e.OnBagMutation(mutation(0, 3, 4023, 7, false), 0, "")
	assert.Empty(t, deltas)

	_, ok := e.SlotState(model.SlotKey{Page: 0, Slot: 3})
	assert.False(t, ok, "excluded page must not create slot state")
	assert.Equal(t, int64(1), e.Stats().ExcludedDrops)
}

func TestZeroDeltaPolicy(t *testing.T) {
	t.Run("dropped by default", func(t *testing.T) {
		e := newEngine(t)
		e.OnBagMutation(mutation(1, 3, 4023, 7, false), 0, "")
		deltas := e.OnBagMutation(mutation(1, 3, 4023, 7, false), 0, "")
		assert.Empty(t, deltas)
		assert.Equal(t, int64(1), e.Stats().ZeroDeltaDrops)
	})

	t.Run("emitted when configured", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EmitZeroDeltas = true
		e := New(cfg, nil)
		e.OnBagMutation(mutation(1, 3, 4023, 7, false), 0, "")
		deltas := e.OnBagMutation(mutation(1, 3, 4023, 7, false), 0, "")
		require.Len(t, deltas, 1)
		assert.Equal(t, 0, deltas[0].Delta)
	})

	t.Run("unseen slot with empty stack", func(t *testing.T) {
		e := newEngine(t)
		deltas := e.OnBagMutation(mutation(1, 3, 4023, 0, false), 0, "")
		assert.Empty(t, deltas)
		assert.Equal(t, int64(1), e.Stats().ZeroDeltaDrops)

		// The slot is tracked even though nothing was emitted.
		state, ok := e.SlotState(model.SlotKey{Page: 1, Slot: 3})
		require.True(t, ok)
		assert.Equal(t, 0, state.Count)
	})

	t.Run("unseen slot emits when configured", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EmitZeroDeltas = true
		e := New(cfg, nil)
		deltas := e.OnBagMutation(mutation(1, 3, 4023, 0, false), 0, "")
		require.Len(t, deltas, 1)
		assert.Equal(t, 0, deltas[0].Delta)
	})

	t.Run("swap out of empty stack", func(t *testing.T) {
		e := newEngine(t)
		e.OnBagMutation(mutation(1, 3, 4023, 0, true), 0, "")
		deltas := e.OnBagMutation(mutation(1, 3, 512, 5, false), 0, "")
		require.Len(t, deltas, 1)
		assert.Equal(t, 512, deltas[0].Item)
		assert.Equal(t, 5, deltas[0].Delta)
		assert.Equal(t, int64(1), e.Stats().ZeroDeltaDrops)
		assert.Equal(t, int64(1), e.Stats().Swaps)
	})
}

func TestSeedExcludesConfiguredPages(t *testing.T) {
	e := newEngine(t)
	e.Seed(map[model.SlotKey]model.SlotState{
		{Page: 0, Slot: 1}: {Item: 1, Count: 1},
		{Page: 1, Slot: 1}: {Item: 2, Count: 5},
	})
	assert.Equal(t, 1, e.SlotCount())
}

// Sum of modify deltas for a key equals lastCount - firstCount while the
// item never changes.
func TestDeltaSumInvariant(t *testing.T) {
	e := newEngine(t)

	counts := []int{3, 9, 4, 20, 1}
	sum := 0
	for _, c := range counts {
		for _, d := range e.OnBagMutation(mutation(1, 3, 4023, c, false), 0, "") {
			sum += d.Delta
		}
	}

	first := counts[0]
	last := counts[len(counts)-1]
	assert.Equal(t, last, sum, "deltas must sum to last quantity for a fresh slot")
	assert.Equal(t, last-first, sum-first)

	state, _ := e.SlotState(model.SlotKey{Page: 1, Slot: 3})
	assert.Equal(t, model.SlotState{Item: 4023, Count: last}, state)
}

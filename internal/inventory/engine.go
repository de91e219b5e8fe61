package inventory

import (
	"log/slog"

	"github.com/lootledger/lootledger/internal/classify"
	"github.com/lootledger/lootledger/internal/model"
)

// Config holds delta engine settings.
type Config struct {
	ExcludedPages  []int  // bag pages dropped before delta computation
	EmitZeroDeltas bool   // record no-op mutations as zero-delta facts
	PickupProto    string // proto name whose open block marks pickups
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ExcludedPages: []int{0},
		PickupProto:   "pickup-items",
	}
}

// Stats contains engine counters.
type Stats struct {
	Mutations      int64
	InitSyncs      int64
	DeltasEmitted  int64
	Swaps          int64
	ExcludedDrops  int64
	ZeroDeltaDrops int64
}

// Engine derives item deltas from bag mutations.
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	excluded map[int]bool

	slots map[model.SlotKey]model.SlotState

	// Open context block. Nesting is not expected in the log, but an
	// unbalanced end is clamped rather than driven negative.
	contextDepth int
	contextProto string

	stats Stats
}

// New creates a delta engine with an empty slot map.
func New(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	excluded := make(map[int]bool, len(cfg.ExcludedPages))
	for _, p := range cfg.ExcludedPages {
		excluded[p] = true
	}
	return &Engine{
		cfg:      cfg,
		logger:   logger,
		excluded: excluded,
		slots:    make(map[model.SlotKey]model.SlotState),
	}
}

// Seed loads persisted slot states. Called once before the pipeline starts.
func (e *Engine) Seed(states map[model.SlotKey]model.SlotState) {
	for k, s := range states {
		if e.excluded[k.Page] {
			continue
		}
		e.slots[k] = s
	}
}

// OnContextMark opens or closes the current context block.
func (e *Engine) OnContextMark(ev classify.ContextMark) {
	if ev.Start {
		e.contextDepth++
		e.contextProto = ev.Proto
		return
	}
	// Unbalanced ends are tolerated: clamp at zero, never negative.
	if e.contextDepth > 0 {
		e.contextDepth--
	}
	if e.contextDepth == 0 {
		e.contextProto = ""
	}
}

// InPickup reports whether a pickup block is currently open.
func (e *Engine) InPickup() bool {
	return e.contextDepth > 0 && e.contextProto == e.cfg.PickupProto
}

// OnBagMutation applies one bag mutation and returns the derived deltas:
// none for init events and excluded pages, one for a plain quantity
// change, two for a slot reuse (old item out, new item in). Returned
// deltas have RunID zero; the segmenter tags them afterwards.
func (e *Engine) OnBagMutation(ev classify.BagMutation, offset int64, line string) []model.ItemDelta {
	if e.excluded[ev.Page] {
		e.stats.ExcludedDrops++
		return nil
	}

	key := model.SlotKey{Page: ev.Page, Slot: ev.Slot}
	next := model.SlotState{Item: ev.Item, Count: ev.Count}

	if ev.Init {
		// Inventory resync: overwrite unconditionally, emit nothing.
		e.slots[key] = next
		e.stats.InitSyncs++
		return nil
	}

	e.stats.Mutations++
	prior, seen := e.slots[key]
	e.slots[key] = next

	ctx := model.ContextOther
	if e.InPickup() {
		ctx = model.ContextPickup
	}

	mk := func(item, delta int) model.ItemDelta {
		return model.ItemDelta{
			Timestamp:  ev.Time,
			Page:       ev.Page,
			Slot:       ev.Slot,
			Item:       item,
			Delta:      delta,
			Context:    ctx,
			SourceLine: line,
			Offset:     offset,
		}
	}

	var out []model.ItemDelta
	switch {
	case !seen:
		out = []model.ItemDelta{mk(ev.Item, ev.Count)}

	case prior.Item == ev.Item:
		out = []model.ItemDelta{mk(ev.Item, ev.Count-prior.Count)}

	default:
		// Slot reused for a different item: the old stack leaves and the
		// new stack arrives, both at the same timestamp and context.
		e.stats.Swaps++
		out = []model.ItemDelta{
			mk(prior.Item, -prior.Count),
			mk(ev.Item, ev.Count),
		}
	}

	// The zero-delta policy applies to every branch, including empty
	// stacks in a first-seen or reused slot.
	if !e.cfg.EmitZeroDeltas {
		kept := out[:0]
		for _, d := range out {
			if d.Delta == 0 {
				e.stats.ZeroDeltaDrops++
				continue
			}
			kept = append(kept, d)
		}
		out = kept
	}
	if len(out) == 0 {
		return nil
	}
	e.stats.DeltasEmitted += int64(len(out))
	return out
}

// SlotState returns the current state for a key.
func (e *Engine) SlotState(key model.SlotKey) (model.SlotState, bool) {
	s, ok := e.slots[key]
	return s, ok
}

// SlotCount returns the number of tracked slots.
func (e *Engine) SlotCount() int { return len(e.slots) }

// Stats returns current counters.
func (e *Engine) Stats() Stats { return e.stats }

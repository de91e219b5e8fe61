package model

import "time"

// -----------------------------------------------------------------------------
// Inventory Types
// -----------------------------------------------------------------------------

// SlotKey identifies one inventory slot. Stable for the life of a character.
type SlotKey struct {
	Page int
	Slot int
}

// SlotState is the last-observed absolute contents of a slot.
// It is always an absolute quantity, never a delta; deltas are derived
// from consecutive SlotState observations and are not stored as state.
type SlotState struct {
	Item  int
	Count int
}

// DeltaContext classifies how an inventory change came about.
type DeltaContext string

const (
	// ContextPickup marks a change observed inside an open pickup block.
	ContextPickup DeltaContext = "pickup"
	// ContextOther marks any change outside a pickup block
	// (trades, crafting, stash moves, map device consumption).
	ContextOther DeltaContext = "other"
)

// ItemDelta is an immutable fact: one signed quantity change for one item
// in one slot. Created once by the delta engine, never mutated.
type ItemDelta struct {
	RunID      int64 // 0 = no active run
	Timestamp  time.Time
	Page       int
	Slot       int
	Item       int
	Delta      int // signed quantity change
	Context    DeltaContext
	SourceLine string
	Offset     int64 // byte offset just past the producing log line
}

// -----------------------------------------------------------------------------
// Run Types
// -----------------------------------------------------------------------------

// Run is one continuous excursion into a non-hub zone.
// The segmenter is the sole mutator while the run is open; once EndedAt
// is set the run is immutable. A zero EndedAt means the run is still open.
type Run struct {
	ID        int64
	UID       string // uuid, survives store re-numbering
	Character string
	StartedAt time.Time
	EndedAt   time.Time
	ZoneSig   string // raw zone path token, e.g. "f2_dunes"
	ZoneName  string // resolved display name
	LevelID   int64  // structured level id when the triple was seen, else 0
}

// Open reports whether the run has not been closed yet.
func (r Run) Open() bool { return r.EndedAt.IsZero() }

// -----------------------------------------------------------------------------
// Price Types
// -----------------------------------------------------------------------------

// ExchangeQuote is one completed price search: the listing prices observed
// for a single item, in the reference currency. Discarded after the
// reference price has been extracted.
type ExchangeQuote struct {
	Item        int
	Prices      []float64
	RequestedAt time.Time
}

// PriceSource identifies where a price record came from.
type PriceSource string

const (
	// SourceLearned is a price derived locally from an in-game price search.
	SourceLearned PriceSource = "learned"
	// SourceRemote is a crowd-aggregated price from the remote service.
	SourceRemote PriceSource = "remote"
	// SourceSeed is the static fallback baseline shipped with the tracker.
	SourceSeed PriceSource = "seed"
)

// PriceRecord is one source's opinion of an item's value in the reference
// currency. Multiple records per item may coexist, one per source; the
// resolver picks one as effective, it never merges them.
type PriceRecord struct {
	Item         int
	Price        float64
	Source       PriceSource
	UpdatedAt    time.Time
	Contributors int // distinct submitters behind a remote aggregate, 0 otherwise
}

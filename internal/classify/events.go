package classify

import "time"

// Event is the closed set of things a log line can mean.
// Downstream consumers type-switch over the concrete variants; the
// marker method keeps the set closed to this package.
type Event interface {
	event()
}

// BagMutation reports the new absolute contents of one inventory slot.
// Init mutations resync state without delta semantics; only modify
// mutations may later produce item deltas.
type BagMutation struct {
	Time  time.Time
	Page  int
	Slot  int
	Item  int
	Count int
	Init  bool
}

// ContextMark opens or closes a named operation block. Mutations inside
// an open block are attributable to that operation.
type ContextMark struct {
	Time  time.Time
	Start bool
	Proto string
}

// ZoneEnter reports entry into a zone identified by its raw path token.
type ZoneEnter struct {
	Time time.Time
	Path string
}

// LevelInfo is the structured level triple that may accompany a zone
// transition. It arrives on its own line, separate from ZoneEnter.
type LevelInfo struct {
	Time time.Time
	UID  int64
	Type int
	ID   int64
}

// ExchangeQuery reports an in-game price search for one item.
type ExchangeQuery struct {
	Time time.Time
	Item int
}

// ExchangeListing is one observed listing price for a previously
// queried item, in the reference currency.
type ExchangeListing struct {
	Time  time.Time
	Item  int
	Price float64
}

// Identity is a player-identity key/value line (character, league).
type Identity struct {
	Time  time.Time
	Key   string
	Value string
}

// Unrecognized is every line the classifier has no pattern for.
// It is a real variant rather than nil so exhaustiveness checks catch
// new event kinds.
type Unrecognized struct{}

func (BagMutation) event()     {}
func (ContextMark) event()     {}
func (ZoneEnter) event()       {}
func (LevelInfo) event()       {}
func (ExchangeQuery) event()   {}
func (ExchangeListing) event() {}
func (Identity) event()        {}
func (Unrecognized) event()    {}

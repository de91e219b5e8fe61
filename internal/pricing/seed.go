package pricing

// SeedPrices is the static baseline for common currency items, in the
// reference currency. It only matters until a learned or remote record
// exists for the item; the resolver never prefers it over either.
var SeedPrices = map[int]float64{
	101: 1.0,   // reference currency itself
	102: 0.5,   // lesser transmute stone
	103: 2.0,   // greater transmute stone
	110: 12.0,  // ascent sigil
	111: 45.0,  // radiant sigil
	120: 0.1,   // whetstone
	121: 0.1,   // armor scrap
	130: 150.0, // mirror shard
}

// Package inventory implements the Inventory Delta Engine.
//
// The engine:
//   - Owns the (page, slot) → (item, count) slot map
//   - Derives signed quantity deltas from consecutive absolute observations
//   - Tags each delta pickup/other from the currently open context block
//   - Drops mutations on excluded pages before any state change
//
// It has no goroutines of its own; the collector drives it from the
// single ingestion pipeline, which is the slot map's only writer.
package inventory

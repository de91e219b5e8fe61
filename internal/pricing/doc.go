// Package pricing implements the Price Resolution Engine.
//
// Two pure computations live here:
//   - ReferencePrice: IQR outlier filtering plus bucketed-mode/median
//     fallback over one quote's listing prices
//   - Resolve: picks the effective price for an item from the competing
//     learned / remote-aggregate / seed records, or reports it unpriced
//
// Both are deterministic and side-effect-free; they never fabricate a
// record and never surface zero for an unpriced item.
package pricing

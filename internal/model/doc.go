// Package model defines shared data types used across the tracker.
//
// Conventions:
//   - Prices: float64 in the reference currency
//   - Timestamps: time.Time taken from the log line that produced the value
//   - Facts (ItemDelta) are immutable once created; state types
//     (SlotState, Run) have exactly one designated mutator
package model

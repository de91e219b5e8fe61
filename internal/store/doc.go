// Package store implements the tracker's embedded persistence layer.
//
// One sqlite database holds:
//   - positions: resume byte offset per source
//   - slot_states: last-known absolute slot contents
//   - runs: run boundaries, at most one open per character
//   - deltas: append-only item delta facts
//   - learned/remote price records and the pending submission queue
//
// Delta appends are idempotent on a natural key and committed in the
// same transaction as the position watermark, so a crash-restart
// reprocesses at most the last unflushed batch without duplicating
// facts (at-least-once delivery).
package store

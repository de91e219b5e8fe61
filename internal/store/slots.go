package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lootledger/lootledger/internal/model"
)

// LoadSlotStates returns all persisted slot states. The delta engine
// seeds its map from this at startup.
func (s *Store) LoadSlotStates(ctx context.Context) (map[model.SlotKey]model.SlotState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT page, slot, item, count FROM slot_states`)
	if err != nil {
		return nil, fmt.Errorf("load slot states: %w", err)
	}
	defer rows.Close()

	out := make(map[model.SlotKey]model.SlotState)
	for rows.Next() {
		var key model.SlotKey
		var state model.SlotState
		if err := rows.Scan(&key.Page, &key.Slot, &state.Item, &state.Count); err != nil {
			return nil, fmt.Errorf("scan slot state: %w", err)
		}
		out[key] = state
	}
	return out, rows.Err()
}

// UpsertSlotState persists the last-observed absolute contents of a slot.
func (s *Store) UpsertSlotState(ctx context.Context, key model.SlotKey, state model.SlotState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO slot_states (page, slot, item, count, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (page, slot) DO UPDATE SET
			item = excluded.item,
			count = excluded.count,
			updated_at = excluded.updated_at
	`, key.Page, key.Slot, state.Item, state.Count, time.Now().UnixMicro())
	if err != nil {
		return fmt.Errorf("upsert slot state (%d,%d): %w", key.Page, key.Slot, err)
	}
	return nil
}

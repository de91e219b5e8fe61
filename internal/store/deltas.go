package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lootledger/lootledger/internal/model"
)

// AppendResult reports the outcome of one delta batch.
type AppendResult struct {
	Inserted   int
	Duplicates int
}

// AppendDeltas writes a batch of item deltas and advances the source
// position watermark in the same transaction. Replayed deltas hit the
// natural-key constraint and are counted as duplicates instead of
// failing the batch, so the source can resume from any offset at or
// before the watermark.
func (s *Store) AppendDeltas(ctx context.Context, source string, offset int64, deltas []model.ItemDelta) (AppendResult, error) {
	var res AppendResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin delta batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO deltas (run_id, ts, page, slot, item, delta, context, line, offset)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ts, offset, page, slot, item, delta) DO NOTHING
	`)
	if err != nil {
		return res, fmt.Errorf("prepare delta insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range deltas {
		var runID any
		if d.RunID != 0 {
			runID = d.RunID
		}
		r, err := stmt.ExecContext(ctx, runID, d.Timestamp.UnixMicro(),
			d.Page, d.Slot, d.Item, d.Delta, string(d.Context), d.SourceLine, d.Offset)
		if err != nil {
			return res, fmt.Errorf("insert delta: %w", err)
		}
		n, err := r.RowsAffected()
		if err != nil {
			return res, fmt.Errorf("delta rows affected: %w", err)
		}
		if n > 0 {
			res.Inserted++
		} else {
			res.Duplicates++
		}
	}

	if err := savePositionTx(ctx, tx, source, offset); err != nil {
		return res, err
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit delta batch: %w", err)
	}
	return res, nil
}

// RecentItems returns the distinct item ids that appear in deltas
// recorded at or after the given time, for price refresh scheduling.
func (s *Store) RecentItems(ctx context.Context, since time.Time) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT item FROM deltas WHERE ts >= ? ORDER BY item
	`, since.UnixMicro())
	if err != nil {
		return nil, fmt.Errorf("query recent items: %w", err)
	}
	defer rows.Close()

	var items []int
	for rows.Next() {
		var item int
		if err := rows.Scan(&item); err != nil {
			return nil, fmt.Errorf("scan recent item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RunDeltas returns all deltas tagged with the given run, in log order.
func (s *Store) RunDeltas(ctx context.Context, runID int64) ([]model.ItemDelta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, ts, page, slot, item, delta, context, line, offset
		FROM deltas WHERE run_id = ? ORDER BY offset
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run deltas: %w", err)
	}
	defer rows.Close()

	var deltas []model.ItemDelta
	for rows.Next() {
		d, err := scanDelta(rows)
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, d)
	}
	return deltas, rows.Err()
}

func scanDelta(rows *sql.Rows) (model.ItemDelta, error) {
	var d model.ItemDelta
	var runID sql.NullInt64
	var ts int64
	var deltaCtx string
	if err := rows.Scan(&runID, &ts, &d.Page, &d.Slot, &d.Item, &d.Delta,
		&deltaCtx, &d.SourceLine, &d.Offset); err != nil {
		return model.ItemDelta{}, fmt.Errorf("scan delta: %w", err)
	}
	if runID.Valid {
		d.RunID = runID.Int64
	}
	d.Timestamp = time.UnixMicro(ts)
	d.Context = model.DeltaContext(deltaCtx)
	return d, nil
}

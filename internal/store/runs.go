package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lootledger/lootledger/internal/model"
)

// CreateRun persists a run start and returns its id. Creation is
// idempotent on (zone_sig, started_at, character) so a crash-restart
// replay of the same transition does not duplicate the run.
func (s *Store) CreateRun(ctx context.Context, run model.Run) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO runs (uid, character, started_at, zone_sig, zone_name, level_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.UID, run.Character, run.StartedAt.UnixMicro(), run.ZoneSig, run.ZoneName, run.LevelID)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM runs
		WHERE zone_sig = ? AND started_at = ? AND character = ?
	`, run.ZoneSig, run.StartedAt.UnixMicro(), run.Character).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("look up created run: %w", err)
	}
	return id, nil
}

// CloseRun sets a run's end time. The end time is set at most once;
// closing an already-closed run is a no-op.
func (s *Store) CloseRun(ctx context.Context, id int64, endedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET ended_at = ?
		WHERE id = ? AND ended_at IS NULL
	`, endedAt.UnixMicro(), id)
	if err != nil {
		return fmt.Errorf("close run %d: %w", id, err)
	}
	return nil
}

// GetOpenRun returns the most recent run without an end time, if any.
// The previous process may have left one behind on shutdown.
func (s *Store) GetOpenRun(ctx context.Context) (model.Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, uid, character, started_at, ended_at, zone_sig, zone_name, level_id
		FROM runs
		WHERE ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return model.Run{}, false, nil
	}
	if err != nil {
		return model.Run{}, false, fmt.Errorf("load open run: %w", err)
	}
	return run, true, nil
}

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, id int64) (model.Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, uid, character, started_at, ended_at, zone_sig, zone_name, level_id
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return model.Run{}, false, nil
	}
	if err != nil {
		return model.Run{}, false, fmt.Errorf("load run %d: %w", id, err)
	}
	return run, true, nil
}

func scanRun(row *sql.Row) (model.Run, error) {
	var run model.Run
	var startedAt int64
	var endedAt sql.NullInt64
	if err := row.Scan(&run.ID, &run.UID, &run.Character, &startedAt, &endedAt,
		&run.ZoneSig, &run.ZoneName, &run.LevelID); err != nil {
		return model.Run{}, err
	}
	run.StartedAt = time.UnixMicro(startedAt)
	if endedAt.Valid {
		run.EndedAt = time.UnixMicro(endedAt.Int64)
	}
	return run, nil
}

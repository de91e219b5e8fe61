package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LoadPosition returns the persisted resume offset for a source.
// An unknown source resumes from zero.
func (s *Store) LoadPosition(ctx context.Context, sourceID string) (int64, error) {
	var offset int64
	err := s.db.QueryRowContext(ctx,
		`SELECT offset FROM positions WHERE source_id = ?`, sourceID).Scan(&offset)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load position for %s: %w", sourceID, err)
	}
	return offset, nil
}

// SavePosition persists the resume offset for a source.
func (s *Store) SavePosition(ctx context.Context, sourceID string, offset int64) error {
	return savePositionTx(ctx, s.db, sourceID, offset)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func savePositionTx(ctx context.Context, ex execer, sourceID string, offset int64) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO positions (source_id, offset, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (source_id) DO UPDATE SET
			offset = excluded.offset,
			updated_at = excluded.updated_at
	`, sourceID, offset, time.Now().UnixMicro())
	if err != nil {
		return fmt.Errorf("save position for %s: %w", sourceID, err)
	}
	return nil
}

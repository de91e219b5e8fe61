package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lootledger/lootledger/internal/model"
)

// UpsertLearnedPrice stores a locally derived price for an item,
// replacing any older learned value.
func (s *Store) UpsertLearnedPrice(ctx context.Context, item int, price float64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learned_prices (item, price, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (item) DO UPDATE SET
			price = excluded.price,
			updated_at = excluded.updated_at
	`, item, price, at.UnixMicro())
	if err != nil {
		return fmt.Errorf("upsert learned price for item %d: %w", item, err)
	}
	return nil
}

// UpsertRemotePrice stores an aggregate price fetched from the price
// service, replacing any older remote value.
func (s *Store) UpsertRemotePrice(ctx context.Context, item int, price float64, contributors int, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO remote_prices (item, price, updated_at, contributors)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (item) DO UPDATE SET
			price = excluded.price,
			updated_at = excluded.updated_at,
			contributors = excluded.contributors
	`, item, price, at.UnixMicro(), contributors)
	if err != nil {
		return fmt.Errorf("upsert remote price for item %d: %w", item, err)
	}
	return nil
}

// GetPriceRecords returns the stored learned and remote prices for an
// item. A missing source is reported with ok=false, not a zero record.
func (s *Store) GetPriceRecords(ctx context.Context, item int) (learned model.PriceRecord, learnedOK bool, remote model.PriceRecord, remoteOK bool, err error) {
	var price float64
	var updatedAt int64
	row := s.db.QueryRowContext(ctx,
		`SELECT price, updated_at FROM learned_prices WHERE item = ?`, item)
	switch e := row.Scan(&price, &updatedAt); e {
	case nil:
		learned = model.PriceRecord{
			Item:      item,
			Price:     price,
			Source:    model.SourceLearned,
			UpdatedAt: time.UnixMicro(updatedAt),
		}
		learnedOK = true
	case sql.ErrNoRows:
	default:
		return learned, false, remote, false, fmt.Errorf("load learned price for item %d: %w", item, e)
	}

	var contributors int
	row = s.db.QueryRowContext(ctx,
		`SELECT price, updated_at, contributors FROM remote_prices WHERE item = ?`, item)
	switch e := row.Scan(&price, &updatedAt, &contributors); e {
	case nil:
		remote = model.PriceRecord{
			Item:         item,
			Price:        price,
			Source:       model.SourceRemote,
			UpdatedAt:    time.UnixMicro(updatedAt),
			Contributors: contributors,
		}
		remoteOK = true
	case sql.ErrNoRows:
	default:
		return learned, learnedOK, remote, false, fmt.Errorf("load remote price for item %d: %w", item, e)
	}

	return learned, learnedOK, remote, remoteOK, nil
}

// PendingSubmission is a learned price queued for upload.
type PendingSubmission struct {
	ID         int64
	Item       int
	Price      float64
	ObservedAt time.Time
}

// EnqueueSubmission queues a learned price for upload to the price
// service. Submissions survive restarts until marked submitted.
func (s *Store) EnqueueSubmission(ctx context.Context, item int, price float64, observedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_submissions (item, price, observed_at)
		VALUES (?, ?, ?)
	`, item, price, observedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("enqueue submission for item %d: %w", item, err)
	}
	return nil
}

// PendingSubmissions returns up to limit unsent submissions, oldest first.
func (s *Store) PendingSubmissions(ctx context.Context, limit int) ([]PendingSubmission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item, price, observed_at
		FROM pending_submissions
		WHERE submitted_at IS NULL
		ORDER BY id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending submissions: %w", err)
	}
	defer rows.Close()

	var pending []PendingSubmission
	for rows.Next() {
		var p PendingSubmission
		var observedAt int64
		if err := rows.Scan(&p.ID, &p.Item, &p.Price, &observedAt); err != nil {
			return nil, fmt.Errorf("scan pending submission: %w", err)
		}
		p.ObservedAt = time.UnixMicro(observedAt)
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// MarkSubmitted records that a queued submission was accepted.
func (s *Store) MarkSubmitted(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pending_submissions SET submitted_at = ? WHERE id = ?
	`, at.UnixMicro(), id)
	if err != nil {
		return fmt.Errorf("mark submission %d: %w", id, err)
	}
	return nil
}

// PruneSubmitted deletes submissions marked as sent before the cutoff.
func (s *Store) PruneSubmitted(ctx context.Context, before time.Time) (int64, error) {
	r, err := s.db.ExecContext(ctx, `
		DELETE FROM pending_submissions
		WHERE submitted_at IS NOT NULL AND submitted_at < ?
	`, before.UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("prune submissions: %w", err)
	}
	return r.RowsAffected()
}

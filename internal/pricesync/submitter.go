package pricesync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lootledger/lootledger/internal/priceapi"
	"github.com/lootledger/lootledger/internal/store"
)

// SubmitClient is the remote write surface the submitter uses.
type SubmitClient interface {
	SubmitPrice(ctx context.Context, sub priceapi.Submission) error
}

// SubmissionStore is the durable upload queue.
type SubmissionStore interface {
	PendingSubmissions(ctx context.Context, limit int) ([]store.PendingSubmission, error)
	MarkSubmitted(ctx context.Context, id int64, at time.Time) error
	PruneSubmitted(ctx context.Context, before time.Time) (int64, error)
}

// SubmitterConfig holds learned-price upload settings.
type SubmitterConfig struct {
	Interval  time.Duration // drain cycle period
	BatchSize int           // max submissions per cycle
	Timeout   time.Duration // per-submission timeout
	KeepFor   time.Duration // sent rows older than this are pruned
}

// DefaultSubmitterConfig returns sensible defaults.
func DefaultSubmitterConfig() SubmitterConfig {
	return SubmitterConfig{
		Interval:  time.Minute,
		BatchSize: 32,
		Timeout:   10 * time.Second,
		KeepFor:   24 * time.Hour,
	}
}

// SubmitterStats contains submitter counters.
type SubmitterStats struct {
	Cycles    int64
	Submitted int64
	Errors    int64
	Pruned    int64
}

// Submitter drains the pending-submission queue into the remote
// service under the tracker's persistent anonymous client id. A failed
// upload stays queued and is retried next cycle.
type Submitter struct {
	cfg      SubmitterConfig
	clientID string
	client   SubmitClient
	store    SubmissionStore
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cycles    atomic.Int64
	submitted atomic.Int64
	errors    atomic.Int64
	pruned    atomic.Int64
}

// NewSubmitter creates a submitter.
func NewSubmitter(cfg SubmitterConfig, clientID string, client SubmitClient, st SubmissionStore, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		cfg:      cfg,
		clientID: clientID,
		client:   client,
		store:    st,
		logger:   logger,
	}
}

// Start begins the upload loop.
func (s *Submitter) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("price submitter started",
		"interval", s.cfg.Interval,
		"batch_size", s.cfg.BatchSize,
	)
	return nil
}

// Stop shuts the submitter down. Unsent submissions stay queued.
func (s *Submitter) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("price submitter stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (s *Submitter) Stats() SubmitterStats {
	return SubmitterStats{
		Cycles:    s.cycles.Load(),
		Submitted: s.submitted.Load(),
		Errors:    s.errors.Load(),
		Pruned:    s.pruned.Load(),
	}
}

func (s *Submitter) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.drain()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.drain()
		}
	}
}

// drain uploads one batch of queued submissions in order. The first
// failure ends the cycle; everything after it waits for the next one.
func (s *Submitter) drain() {
	s.cycles.Add(1)

	pending, err := s.store.PendingSubmissions(s.ctx, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("failed to load pending submissions", "error", err)
		s.errors.Add(1)
		return
	}
	if len(pending) == 0 {
		s.prune()
		return
	}

	sent := 0
	for _, p := range pending {
		if err := s.submit(p); err != nil {
			s.logger.Warn("price submission failed",
				"item", p.Item,
				"error", err,
			)
			s.errors.Add(1)
			break
		}
		sent++
	}

	s.logger.Info("submission cycle complete",
		"pending", len(pending),
		"sent", sent,
	)
	s.prune()
}

func (s *Submitter) submit(p store.PendingSubmission) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeout)
	defer cancel()

	err := s.client.SubmitPrice(ctx, priceapi.Submission{
		ClientID:   s.clientID,
		Item:       p.Item,
		Price:      p.Price,
		ObservedAt: p.ObservedAt,
	})
	if err != nil {
		return err
	}

	if err := s.store.MarkSubmitted(ctx, p.ID, time.Now()); err != nil {
		// The service has the price; worst case the next cycle submits
		// it again and the service deduplicates by client and item.
		return err
	}
	s.submitted.Add(1)
	return nil
}

func (s *Submitter) prune() {
	if s.cfg.KeepFor <= 0 {
		return
	}
	n, err := s.store.PruneSubmitted(s.ctx, time.Now().Add(-s.cfg.KeepFor))
	if err != nil {
		s.logger.Error("failed to prune submissions", "error", err)
		return
	}
	if n > 0 {
		s.pruned.Add(n)
		s.logger.Debug("pruned sent submissions", "count", n)
	}
}

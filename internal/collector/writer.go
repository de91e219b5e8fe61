package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lootledger/lootledger/internal/config"
	"github.com/lootledger/lootledger/internal/model"
	"github.com/lootledger/lootledger/internal/store"
)

// DeltaStore is the durable sink for item deltas.
type DeltaStore interface {
	AppendDeltas(ctx context.Context, source string, offset int64, deltas []model.ItemDelta) (store.AppendResult, error)
}

// WriterStats contains delta writer counters.
type WriterStats struct {
	Inserts    int64
	Duplicates int64
	Flushes    int64
	Errors     int64
}

// DeltaWriter consumes item deltas from the pipeline buffer and writes
// them in batches. Each flush commits the batch and the source position
// watermark in one transaction, so a crash replays at most the last
// unflushed batch and the replay lands on the natural-key constraint.
type DeltaWriter struct {
	cfg    config.WriterConfig
	source string
	logger *slog.Logger

	input *GrowableBuffer[model.ItemDelta]
	db    DeltaStore

	batch       []model.ItemDelta
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats WriterStats
}

// NewDeltaWriter creates a writer draining input into db under the
// given source id.
func NewDeltaWriter(cfg config.WriterConfig, source string, input *GrowableBuffer[model.ItemDelta], db DeltaStore, logger *slog.Logger) *DeltaWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeltaWriter{
		cfg:    cfg,
		source: source,
		logger: logger,
		input:  input,
		db:     db,
		batch:  make([]model.ItemDelta, 0, cfg.BatchSize),
	}
}

// Start begins consuming deltas and flushing batches.
func (w *DeltaWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("delta writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains the input buffer and performs a final flush.
func (w *DeltaWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping delta writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("delta writer stop timed out")
	}

	// Whatever the consume loop did not pick up yet.
	for _, d := range w.input.DrainTo(0) {
		w.append(d)
	}
	w.flush()

	w.logger.Info("delta writer stopped")
	return nil
}

// Pending returns the number of deltas not yet durable.
func (w *DeltaWriter) Pending() int {
	w.batchMu.Lock()
	n := len(w.batch)
	w.batchMu.Unlock()
	return n + w.input.Len()
}

// Stats returns current counters.
func (w *DeltaWriter) Stats() WriterStats {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

func (w *DeltaWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			d, ok := w.input.TryReceive()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}
			w.append(d)
		}
	}
}

func (w *DeltaWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

func (w *DeltaWriter) append(d model.ItemDelta) {
	w.batchMu.Lock()
	w.batch = append(w.batch, d)
	full := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if full {
		w.flush()
	}
}

func (w *DeltaWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]model.ItemDelta, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	watermark := batch[0].Offset
	for _, d := range batch[1:] {
		if d.Offset > watermark {
			watermark = d.Offset
		}
	}

	start := time.Now()
	// Background context: the final flush runs after cancel and must
	// still commit.
	res, err := w.db.AppendDeltas(context.Background(), w.source, watermark, batch)
	if err != nil {
		w.logger.Error("delta batch flush failed", "count", len(batch), "error", err)
		w.batchMu.Lock()
		w.stats.Errors++
		// Put the batch back so the next flush retries it.
		w.batch = append(batch, w.batch...)
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.stats.Inserts += int64(res.Inserted)
	w.stats.Duplicates += int64(res.Duplicates)
	w.stats.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed deltas",
		"count", len(batch),
		"duplicates", res.Duplicates,
		"watermark", watermark,
		"duration", time.Since(start),
	)
}

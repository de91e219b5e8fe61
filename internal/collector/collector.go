package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lootledger/lootledger/internal/classify"
	"github.com/lootledger/lootledger/internal/config"
	"github.com/lootledger/lootledger/internal/exchange"
	"github.com/lootledger/lootledger/internal/inventory"
	"github.com/lootledger/lootledger/internal/logsource"
	"github.com/lootledger/lootledger/internal/model"
	"github.com/lootledger/lootledger/internal/pricing"
	"github.com/lootledger/lootledger/internal/segment"
	"github.com/lootledger/lootledger/internal/store"
)

// Collector owns the ingestion pipeline: one goroutine pulls lines from
// the tailer, classifies them and drives the engines. Durable output
// flows through the delta writer; observable output through notices.
type Collector struct {
	cfg    config.TrackerConfig
	store  *store.Store
	logger *slog.Logger

	tailer     *logsource.Tailer
	engine     *inventory.Engine
	segmenter  *segment.Segmenter
	correlator *exchange.Correlator
	resolver   *pricing.Resolver
	pricingCfg pricing.Config

	deltas  *GrowableBuffer[model.ItemDelta]
	writer  *DeltaWriter
	notices *NoticeBuffer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Pipeline-goroutine state.
	lineNo       int64
	lastOffset   int64
	checkpointed int64
	dirtySlots   map[model.SlotKey]struct{}
	league       string

	// Snapshots published by the pipeline goroutine, read by Stats.
	statsMu      sync.Mutex
	linesSeen    int64
	unrecognized int64
	invStats     inventory.Stats
	exchStats    exchange.Stats
	segStats     segment.Stats
	openRun      *model.Run
}

// runStoreAdapter gives the segmenter a context-free view of the store.
// Run persistence must outlive pipeline cancellation, hence Background.
type runStoreAdapter struct {
	store *store.Store
}

func (a runStoreAdapter) CreateRun(run model.Run) (int64, error) {
	return a.store.CreateRun(context.Background(), run)
}

func (a runStoreAdapter) CloseRun(id int64, endedAt time.Time) error {
	return a.store.CloseRun(context.Background(), id, endedAt)
}

// runNotifier forwards run boundaries to the notice buffer.
type runNotifier struct {
	notices *NoticeBuffer
}

func (n runNotifier) RunStarted(run model.Run) {
	n.notices.Publish(Notice{Kind: NoticeRunStarted, Time: run.StartedAt, Run: run})
}

func (n runNotifier) RunEnded(run model.Run) {
	n.notices.Publish(Notice{Kind: NoticeRunEnded, Time: run.EndedAt, Run: run})
}

// New assembles a collector from the configuration. Open the store
// first; the collector does not own its lifecycle.
func New(cfg config.TrackerConfig, st *store.Store, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Collector{
		cfg:        cfg,
		store:      st,
		logger:     logger,
		deltas:     NewGrowableBuffer[model.ItemDelta](cfg.Writer.BufferSize),
		notices:    NewNoticeBuffer(1024),
		dirtySlots: make(map[model.SlotKey]struct{}),
		resolver:   pricing.NewResolver(pricing.SeedPrices),
		pricingCfg: pricing.Config{
			MinSamples:  cfg.Pricing.MinSamples,
			BucketWidth: cfg.Pricing.BucketWidth,
			ModeShare:   cfg.Pricing.ModeShare,
		},
	}

	c.engine = inventory.New(inventory.Config{
		ExcludedPages:  cfg.Pipeline.ExcludedPages,
		EmitZeroDeltas: cfg.Pipeline.EmitZeroDeltas,
		PickupProto:    cfg.Pipeline.PickupProto,
	}, logger)

	segCfg := segment.DefaultConfig()
	segCfg.CostWindow = cfg.Pipeline.CostWindow
	c.segmenter = segment.New(segCfg, runStoreAdapter{store: st}, runNotifier{notices: c.notices}, logger)

	c.correlator = exchange.New(exchange.Config{
		MaxPending: cfg.Exchange.MaxPending,
		MaxAge:     cfg.Exchange.MaxAge,
		MaxLineGap: cfg.Exchange.MaxLineGap,
	}, logger)

	c.writer = NewDeltaWriter(cfg.Writer, cfg.Source.Path, c.deltas, st, logger)

	return c
}

// Notices returns the observable event buffer.
func (c *Collector) Notices() *NoticeBuffer { return c.notices }

// Start restores persisted state and begins ingesting.
func (c *Collector) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	offset, err := c.store.LoadPosition(ctx, c.cfg.Source.Path)
	if err != nil {
		return err
	}
	c.lastOffset = offset
	c.checkpointed = offset

	states, err := c.store.LoadSlotStates(ctx)
	if err != nil {
		return err
	}
	c.engine.Seed(states)

	if run, ok, err := c.store.GetOpenRun(ctx); err != nil {
		return err
	} else if ok {
		// The previous process stopped mid-run. Keep it open; the next
		// hub transition closes it with a real end time.
		c.segmenter.AdoptOpenRun(run)
	}
	c.refreshStats()

	tailCfg := logsource.Config{
		Path:             c.cfg.Source.Path,
		PollInterval:     c.cfg.Source.PollInterval,
		RetryBaseDelay:   c.cfg.Source.RetryBaseDelay,
		RetryMaxDelay:    c.cfg.Source.RetryMaxDelay,
		UnavailableAfter: c.cfg.Source.UnavailableAfter,
		ReadChunkSize:    c.cfg.Source.ReadChunkSize,
	}
	c.tailer = logsource.New(tailCfg, offset, c.onSourceStatus, c.logger)

	if err := c.writer.Start(c.ctx); err != nil {
		return err
	}
	if err := c.tailer.Start(c.ctx); err != nil {
		return err
	}

	c.wg.Add(1)
	go c.loop()

	c.logger.Info("collector started",
		"source", c.cfg.Source.Path,
		"resume_offset", offset,
		"seeded_slots", len(states),
	)
	return nil
}

// Stop shuts the pipeline down in dependency order: tailer first, then
// the pipeline drain, then the writer's final flush. An open run is
// deliberately left open; the next start adopts it.
func (c *Collector) Stop(ctx context.Context) error {
	c.logger.Info("stopping collector")

	if c.tailer != nil {
		c.tailer.Stop(ctx)
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warn("collector pipeline stop timed out")
		if c.cancel != nil {
			c.cancel()
		}
		<-done
	}

	// The pipeline goroutine is gone; engine state is safe to touch.
	c.handleQuotes(c.correlator.Flush())
	c.emit(c.segmenter.Flush())
	c.refreshStats()

	if err := c.writer.Stop(ctx); err != nil {
		return err
	}
	c.flushDirtySlots()
	c.checkpoint()

	if c.cancel != nil {
		c.cancel()
	}
	c.notices.Close()

	c.logger.Info("collector stopped")
	return nil
}

// ItemPrice resolves the effective price for an item from stored
// learned and remote records plus the seed table.
func (c *Collector) ItemPrice(ctx context.Context, item int) (model.PriceRecord, bool, error) {
	learned, learnedOK, remote, remoteOK, err := c.store.GetPriceRecords(ctx, item)
	if err != nil {
		return model.PriceRecord{}, false, err
	}
	var records []model.PriceRecord
	if learnedOK {
		records = append(records, learned)
	}
	if remoteOK {
		records = append(records, remote)
	}
	rec, ok := c.resolver.Resolve(item, records)
	return rec, ok, nil
}

// RunValue totals the net value of a run's deltas at current effective
// prices. Items without any price are skipped and reported separately.
func (c *Collector) RunValue(ctx context.Context, runID int64) (value float64, unpriced int, err error) {
	deltas, err := c.store.RunDeltas(ctx, runID)
	if err != nil {
		return 0, 0, err
	}

	priced := make(map[int]float64)
	for _, d := range deltas {
		price, ok := priced[d.Item]
		if !ok {
			rec, resolved, err := c.ItemPrice(ctx, d.Item)
			if err != nil {
				return 0, 0, err
			}
			if !resolved {
				unpriced++
				priced[d.Item] = -1
				continue
			}
			price = rec.Price
			priced[d.Item] = price
		}
		if price < 0 {
			continue
		}
		value += float64(d.Delta) * price
	}
	return value, unpriced, nil
}

// CollectorStats is a snapshot of the whole pipeline for the health
// endpoint.
type CollectorStats struct {
	LinesSeen    int64
	Unrecognized int64
	Tailer       logsource.Stats
	Buffer       BufferStats
	Writer       WriterStats
	Inventory    inventory.Stats
	Exchange     exchange.Stats
	Segmenter    segment.Stats
	OpenRun      *model.Run
}

// Stats returns a point-in-time snapshot. Engine counters come from
// the snapshot the pipeline goroutine publishes; buffer, writer and
// tailer stats carry their own locks.
func (c *Collector) Stats() CollectorStats {
	c.statsMu.Lock()
	s := CollectorStats{
		LinesSeen:    c.linesSeen,
		Unrecognized: c.unrecognized,
		Inventory:    c.invStats,
		Exchange:     c.exchStats,
		Segmenter:    c.segStats,
	}
	if c.openRun != nil {
		run := *c.openRun
		s.OpenRun = &run
	}
	c.statsMu.Unlock()

	s.Buffer = c.deltas.Stats()
	s.Writer = c.writer.Stats()
	if c.tailer != nil {
		s.Tailer = c.tailer.Stats()
	}
	return s
}

// refreshStats copies engine counters into the published snapshot.
// Only the goroutine that currently owns the engines may call it.
func (c *Collector) refreshStats() {
	inv := c.engine.Stats()
	exch := c.correlator.Stats()
	seg := c.segmenter.Stats()
	var open *model.Run
	if run, ok := c.segmenter.CurrentRun(); ok {
		open = &run
	}

	c.statsMu.Lock()
	c.invStats = inv
	c.exchStats = exch
	c.segStats = seg
	c.openRun = open
	c.statsMu.Unlock()
}

func (c *Collector) loop() {
	defer c.wg.Done()

	housekeeping := time.NewTicker(time.Second)
	defer housekeeping.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case line, ok := <-c.tailer.Lines():
			if !ok {
				return
			}
			c.handleLine(line)
		case <-housekeeping.C:
			c.handleQuotes(c.correlator.Sweep(c.lineNo, time.Now()))
			c.flushDirtySlots()
			c.checkpoint()
			c.refreshStats()
		}
	}
}

func (c *Collector) handleLine(line logsource.Line) {
	c.lineNo++
	if line.Offset < c.lastOffset {
		// Offsets restarted: the source rotated. The watermark must
		// follow, or the next checkpoint would skip the new file.
		c.checkpointed = 0
	}
	c.lastOffset = line.Offset

	c.statsMu.Lock()
	c.linesSeen++
	c.statsMu.Unlock()

	switch ev := classify.Classify(line.Text).(type) {
	case classify.BagMutation:
		deltas := c.engine.OnBagMutation(ev, line.Offset, line.Text)
		c.dirtySlots[model.SlotKey{Page: ev.Page, Slot: ev.Slot}] = struct{}{}
		c.emit(c.segmenter.TagDeltas(deltas))

	case classify.ContextMark:
		c.engine.OnContextMark(ev)

	case classify.ZoneEnter:
		c.emit(c.segmenter.OnZoneEnter(ev))

	case classify.LevelInfo:
		c.segmenter.OnLevelInfo(ev)

	case classify.ExchangeQuery:
		c.handleQuotes(c.correlator.OnQuery(ev, c.lineNo))

	case classify.ExchangeListing:
		c.handleQuotes(c.correlator.OnListing(ev, c.lineNo))

	case classify.Identity:
		switch ev.Key {
		case "character":
			c.segmenter.SetCharacter(ev.Value)
		case "league":
			c.league = ev.Value
		}

	case classify.Unrecognized:
		c.statsMu.Lock()
		c.unrecognized++
		c.statsMu.Unlock()
	}

	c.refreshStats()
}

// emit hands finished deltas to the writer and publishes notices.
func (c *Collector) emit(deltas []model.ItemDelta) {
	for _, d := range deltas {
		c.deltas.Send(d)
		c.notices.Publish(Notice{Kind: NoticeDeltaRecorded, Time: d.Timestamp, Delta: d})
	}
}

// handleQuotes reduces completed price searches to learned prices.
func (c *Collector) handleQuotes(quotes []model.ExchangeQuote) {
	for _, q := range quotes {
		price, ok := pricing.ReferencePrice(q.Prices, c.pricingCfg)
		if !ok {
			continue
		}
		ctx := context.Background()
		if err := c.store.UpsertLearnedPrice(ctx, q.Item, price, q.RequestedAt); err != nil {
			c.logger.Error("failed to store learned price", "item", q.Item, "error", err)
			continue
		}
		if err := c.store.EnqueueSubmission(ctx, q.Item, price, q.RequestedAt); err != nil {
			c.logger.Error("failed to queue price submission", "item", q.Item, "error", err)
		}
		c.notices.Publish(Notice{Kind: NoticePriceLearned, Time: q.RequestedAt, Item: q.Item, Price: price})
		c.logger.Info("price learned",
			"item", q.Item,
			"price", price,
			"samples", len(q.Prices),
		)
	}
}

// flushDirtySlots persists slot states touched since the last pass.
func (c *Collector) flushDirtySlots() {
	for key := range c.dirtySlots {
		state, ok := c.engine.SlotState(key)
		if !ok {
			continue
		}
		if err := c.store.UpsertSlotState(context.Background(), key, state); err != nil {
			c.logger.Error("failed to persist slot state",
				"page", key.Page, "slot", key.Slot, "error", err)
			continue
		}
		delete(c.dirtySlots, key)
	}
}

// checkpoint advances the position watermark through delta-less
// stretches of the log. Only safe when no delta is in flight: the
// writer otherwise owns the watermark.
func (c *Collector) checkpoint() {
	if c.lastOffset == c.checkpointed || c.writer.Pending() != 0 {
		return
	}
	if err := c.store.SavePosition(context.Background(), c.cfg.Source.Path, c.lastOffset); err != nil {
		c.logger.Error("failed to checkpoint position", "error", err)
		return
	}
	c.checkpointed = c.lastOffset
}

// onSourceStatus publishes availability flips from the tailer.
func (c *Collector) onSourceStatus(available bool) {
	c.notices.Publish(Notice{
		Kind:      NoticeSourceUnavailable,
		Time:      time.Now(),
		Available: available,
	})
	if available {
		c.logger.Info("log source available")
	} else {
		c.logger.Warn("log source unavailable", "path", c.cfg.Source.Path)
	}
}

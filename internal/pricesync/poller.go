package pricesync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lootledger/lootledger/internal/priceapi"
)

// AggregateClient is the remote read surface the poller uses.
type AggregateClient interface {
	GetAggregate(ctx context.Context, item int) (*priceapi.Aggregate, error)
}

// PollerStore supplies items worth refreshing and stores the results.
type PollerStore interface {
	RecentItems(ctx context.Context, since time.Time) ([]int, error)
	UpsertRemotePrice(ctx context.Context, item int, price float64, contributors int, at time.Time) error
}

// PollerConfig holds remote aggregate refresh settings.
type PollerConfig struct {
	Interval        time.Duration // refresh cycle period
	Concurrency     int           // max concurrent fetches
	Timeout         time.Duration // per-fetch timeout
	MinContributors int           // aggregate trust floor
	LookbackWindow  time.Duration // items seen this recently get refreshed
}

// DefaultPollerConfig returns sensible defaults.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:        10 * time.Minute,
		Concurrency:     4,
		Timeout:         10 * time.Second,
		MinContributors: 3,
		LookbackWindow:  24 * time.Hour,
	}
}

// PollerStats contains poller counters.
type PollerStats struct {
	Cycles    int64
	Fetched   int64
	Missing   int64
	Untrusted int64
	Errors    int64
}

// Poller periodically refreshes remote aggregates for items the
// tracker has recently seen. Aggregates below the contributor floor
// are never stored; a poisoned or thin crowd price must not displace
// local knowledge.
type Poller struct {
	cfg    PollerConfig
	client AggregateClient
	store  PollerStore
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cycles    atomic.Int64
	fetched   atomic.Int64
	missing   atomic.Int64
	untrusted atomic.Int64
	errors    atomic.Int64
}

// NewPoller creates a poller.
func NewPoller(cfg PollerConfig, client AggregateClient, store PollerStore, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:    cfg,
		client: client,
		store:  store,
		logger: logger,
	}
}

// Start begins the refresh loop. The first cycle runs immediately.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("price poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
		"min_contributors", p.cfg.MinContributors,
	)
	return nil
}

// Stop shuts the poller down.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("price poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (p *Poller) Stats() PollerStats {
	return PollerStats{
		Cycles:    p.cycles.Load(),
		Fetched:   p.fetched.Load(),
		Missing:   p.missing.Load(),
		Untrusted: p.untrusted.Load(),
		Errors:    p.errors.Load(),
	}
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.pollAll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

func (p *Poller) pollAll() {
	start := time.Now()
	p.cycles.Add(1)

	items, err := p.store.RecentItems(p.ctx, start.Add(-p.cfg.LookbackWindow))
	if err != nil {
		p.logger.Error("failed to list items for refresh", "error", err)
		p.errors.Add(1)
		return
	}
	if len(items) == 0 {
		p.logger.Debug("no items to refresh")
		return
	}

	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, item := range items {
		wg.Add(1)
		go func(item int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			if err := p.pollItem(item); err != nil {
				p.logger.Warn("aggregate fetch failed", "item", item, "error", err)
				p.errors.Add(1)
			}
		}(item)
	}

	wg.Wait()

	p.logger.Info("price refresh cycle complete",
		"items", len(items),
		"fetched", p.fetched.Load(),
		"duration", time.Since(start),
	)
}

func (p *Poller) pollItem(item int) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	agg, err := p.client.GetAggregate(ctx, item)
	if err != nil {
		return err
	}
	if agg == nil {
		p.missing.Add(1)
		return nil
	}
	if agg.Contributors < p.cfg.MinContributors {
		p.untrusted.Add(1)
		p.logger.Debug("aggregate below trust floor",
			"item", item,
			"contributors", agg.Contributors,
		)
		return nil
	}

	if err := p.store.UpsertRemotePrice(ctx, item, agg.Price, agg.Contributors, agg.UpdatedAt); err != nil {
		return err
	}
	p.fetched.Add(1)
	return nil
}

package exchange

import (
	"log/slog"
	"time"

	"github.com/lootledger/lootledger/internal/classify"
	"github.com/lootledger/lootledger/internal/model"
)

// Config holds correlator settings.
type Config struct {
	MaxPending int           // outstanding uncorrelated queries
	MaxAge     time.Duration // a query older than this is finished or dropped
	MaxLineGap int           // listings further than this from the query are not paired
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxPending: 8,
		MaxAge:     30 * time.Second,
		MaxLineGap: 64,
	}
}

// Stats contains correlator counters.
type Stats struct {
	Queries        int64
	Listings       int64
	QuotesEmitted  int64
	DroppedQueries int64
	OrphanListings int64
}

type pendingQuery struct {
	item        int
	requestedAt time.Time
	queryLine   int64
	prices      []float64
}

// Correlator pairs price-search queries with their response listings.
// Memory is bounded: stale or surplus queries are finished or dropped,
// never queued indefinitely.
type Correlator struct {
	cfg    Config
	logger *slog.Logger

	// Insertion-ordered pending queries, keyed by item. The slice stays
	// tiny (MaxPending), so linear scans are fine.
	pending []*pendingQuery

	stats Stats
}

// New creates an empty correlator.
func New(cfg Config, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{cfg: cfg, logger: logger}
}

// OnQuery registers a new price search. A previous group for the same
// item is finished immediately; surplus pending queries are evicted
// oldest-first. Returns any quotes completed by this event.
func (c *Correlator) OnQuery(ev classify.ExchangeQuery, lineNo int64) []model.ExchangeQuote {
	c.stats.Queries++

	var out []model.ExchangeQuote
	if q := c.remove(ev.Item); q != nil {
		out = c.finish(out, q)
	}

	if len(c.pending) >= c.cfg.MaxPending {
		oldest := c.pending[0]
		c.pending = c.pending[1:]
		out = c.finish(out, oldest)
	}

	c.pending = append(c.pending, &pendingQuery{
		item:        ev.Item,
		requestedAt: ev.Time,
		queryLine:   lineNo,
	})
	return out
}

// OnListing attaches one listing price to its pending query. Listings
// with no matching query in range are counted and dropped.
func (c *Correlator) OnListing(ev classify.ExchangeListing, lineNo int64) []model.ExchangeQuote {
	c.stats.Listings++

	for _, q := range c.pending {
		if q.item != ev.Item {
			continue
		}
		if lineNo-q.queryLine > int64(c.cfg.MaxLineGap) {
			break
		}
		q.prices = append(q.prices, ev.Price)
		return nil
	}

	c.stats.OrphanListings++
	return nil
}

// Sweep finishes groups that have drifted out of range and drops
// unanswered ones. The collector calls it as lines are processed.
func (c *Correlator) Sweep(lineNo int64, now time.Time) []model.ExchangeQuote {
	if len(c.pending) == 0 {
		return nil
	}

	var out []model.ExchangeQuote
	kept := c.pending[:0]
	for _, q := range c.pending {
		expired := lineNo-q.queryLine > int64(c.cfg.MaxLineGap) ||
			(!now.IsZero() && now.Sub(q.requestedAt) > c.cfg.MaxAge)
		if expired {
			out = c.finish(out, q)
			continue
		}
		kept = append(kept, q)
	}
	c.pending = kept
	return out
}

// Flush finishes every group that collected at least one price and
// drops the rest. Called on shutdown.
func (c *Correlator) Flush() []model.ExchangeQuote {
	var out []model.ExchangeQuote
	for _, q := range c.pending {
		out = c.finish(out, q)
	}
	c.pending = nil
	return out
}

// PendingCount returns the number of outstanding queries.
func (c *Correlator) PendingCount() int { return len(c.pending) }

// Stats returns current counters.
func (c *Correlator) Stats() Stats { return c.stats }

// finish turns a pending query into a quote if it gathered any prices;
// unanswered queries are discarded.
func (c *Correlator) finish(out []model.ExchangeQuote, q *pendingQuery) []model.ExchangeQuote {
	if len(q.prices) == 0 {
		c.stats.DroppedQueries++
		return out
	}
	c.stats.QuotesEmitted++
	return append(out, model.ExchangeQuote{
		Item:        q.item,
		Prices:      q.prices,
		RequestedAt: q.requestedAt,
	})
}

// remove detaches and returns the pending query for an item, if any.
func (c *Correlator) remove(item int) *pendingQuery {
	for i, q := range c.pending {
		if q.item == item {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return q
		}
	}
	return nil
}

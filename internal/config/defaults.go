package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPollInterval     = 500 * time.Millisecond
	DefaultRetryBaseDelay   = 1 * time.Second
	DefaultRetryMaxDelay    = 30 * time.Second
	DefaultUnavailableAfter = 2 * time.Minute
	DefaultReadChunkSize    = 64 * 1024

	DefaultPickupProto = "pickup-items"
	DefaultCostWindow  = 10 * time.Second

	DefaultExchangeMaxPending = 8
	DefaultExchangeMaxAge     = 30 * time.Second
	DefaultExchangeMaxLineGap = 64

	DefaultMinSamples  = 4
	DefaultBucketWidth = 0.5
	DefaultModeShare   = 0.2

	DefaultAPIBaseURL = "https://prices.lootledger.dev/api"
	DefaultAPITimeout = 15 * time.Second
	DefaultMaxRetries = 3

	DefaultSyncPollInterval   = 10 * time.Minute
	DefaultSubmitInterval     = 2 * time.Minute
	DefaultSyncConcurrency    = 4
	DefaultMinContributors    = 3
	DefaultSyncLookbackWindow = 24 * time.Hour

	DefaultBatchSize     = 200
	DefaultFlushInterval = 1 * time.Second
	DefaultBufferSize    = 2000

	DefaultDatabasePath = "lootledger.db"
	DefaultHealthPort   = 8712
	DefaultHealthPath   = "/health"
)

// DefaultExcludedPages lists bag pages that are never valued.
// Page 0 is the equipment page; its pricing is attribute-dependent
// and unreliable, so mutations there are dropped outright.
var DefaultExcludedPages = []int{0}

func (c *TrackerConfig) applyDefaults() {
	// Source defaults
	if c.Source.PollInterval == 0 {
		c.Source.PollInterval = DefaultPollInterval
	}
	if c.Source.RetryBaseDelay == 0 {
		c.Source.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.Source.RetryMaxDelay == 0 {
		c.Source.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if c.Source.UnavailableAfter == 0 {
		c.Source.UnavailableAfter = DefaultUnavailableAfter
	}
	if c.Source.ReadChunkSize == 0 {
		c.Source.ReadChunkSize = DefaultReadChunkSize
	}

	// Pipeline defaults
	if c.Pipeline.ExcludedPages == nil {
		c.Pipeline.ExcludedPages = DefaultExcludedPages
	}
	if c.Pipeline.PickupProto == "" {
		c.Pipeline.PickupProto = DefaultPickupProto
	}
	if c.Pipeline.CostWindow == 0 {
		c.Pipeline.CostWindow = DefaultCostWindow
	}

	// Exchange defaults
	if c.Exchange.MaxPending == 0 {
		c.Exchange.MaxPending = DefaultExchangeMaxPending
	}
	if c.Exchange.MaxAge == 0 {
		c.Exchange.MaxAge = DefaultExchangeMaxAge
	}
	if c.Exchange.MaxLineGap == 0 {
		c.Exchange.MaxLineGap = DefaultExchangeMaxLineGap
	}

	// Pricing defaults
	if c.Pricing.MinSamples == 0 {
		c.Pricing.MinSamples = DefaultMinSamples
	}
	if c.Pricing.BucketWidth == 0 {
		c.Pricing.BucketWidth = DefaultBucketWidth
	}
	if c.Pricing.ModeShare == 0 {
		c.Pricing.ModeShare = DefaultModeShare
	}

	// Price API defaults
	if c.PriceAPI.BaseURL == "" {
		c.PriceAPI.BaseURL = DefaultAPIBaseURL
	}
	if c.PriceAPI.Timeout == 0 {
		c.PriceAPI.Timeout = DefaultAPITimeout
	}
	if c.PriceAPI.MaxRetries == 0 {
		c.PriceAPI.MaxRetries = DefaultMaxRetries
	}

	// Sync defaults
	if c.Sync.PollInterval == 0 {
		c.Sync.PollInterval = DefaultSyncPollInterval
	}
	if c.Sync.SubmitInterval == 0 {
		c.Sync.SubmitInterval = DefaultSubmitInterval
	}
	if c.Sync.Concurrency == 0 {
		c.Sync.Concurrency = DefaultSyncConcurrency
	}
	if c.Sync.MinContributors == 0 {
		c.Sync.MinContributors = DefaultMinContributors
	}
	if c.Sync.LookbackWindow == 0 {
		c.Sync.LookbackWindow = DefaultSyncLookbackWindow
	}

	// Writer defaults
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}
	if c.Writer.BufferSize == 0 {
		c.Writer.BufferSize = DefaultBufferSize
	}

	// Database defaults
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}
}

package config

import "time"

// TrackerConfig is the root configuration for a tracker instance.
type TrackerConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Source   SourceConfig   `yaml:"source"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Pricing  PricingConfig  `yaml:"pricing"`
	PriceAPI PriceAPIConfig `yaml:"price_api"`
	Sync     SyncConfig     `yaml:"sync"`
	Writer   WriterConfig   `yaml:"writer"`
	Database DatabaseConfig `yaml:"database"`
	Health   HealthConfig   `yaml:"health"`
}

// InstanceConfig identifies this tracker.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// SourceConfig holds the client log tail settings.
type SourceConfig struct {
	Path             string        `yaml:"path"`              // path to the game client log
	PollInterval     time.Duration `yaml:"poll_interval"`     // tail-mode poll fallback
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`  // backoff when file is missing/locked
	RetryMaxDelay    time.Duration `yaml:"retry_max_delay"`
	UnavailableAfter time.Duration `yaml:"unavailable_after"` // report source-unavailable after this long
	ReadChunkSize    int           `yaml:"read_chunk_size"`
}

// PipelineConfig holds delta engine and segmenter settings.
type PipelineConfig struct {
	ExcludedPages  []int         `yaml:"excluded_pages"`   // bag pages never valued (equipment)
	EmitZeroDeltas bool          `yaml:"emit_zero_deltas"` // record no-op mutations as facts
	PickupProto    string        `yaml:"pickup_proto"`     // proto name that marks pickup blocks
	CostWindow     time.Duration `yaml:"cost_window"`      // map-entry cost attachment window
}

// ExchangeConfig holds price-search correlation settings.
type ExchangeConfig struct {
	MaxPending int           `yaml:"max_pending"`  // outstanding uncorrelated queries
	MaxAge     time.Duration `yaml:"max_age"`      // discard queries older than this
	MaxLineGap int           `yaml:"max_line_gap"` // listings further away are not paired
}

// PricingConfig holds reference-price statistic settings.
type PricingConfig struct {
	MinSamples  int     `yaml:"min_samples"`  // below this, fall back to median
	BucketWidth float64 `yaml:"bucket_width"` // mode bucket width in reference currency
	ModeShare   float64 `yaml:"mode_share"`   // min share of samples the mode bucket needs
}

// PriceAPIConfig holds the remote crowd price service settings.
type PriceAPIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// SyncConfig holds the periodic price sync settings.
type SyncConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`    // remote aggregate refresh
	SubmitInterval  time.Duration `yaml:"submit_interval"`  // learned price upload
	Concurrency     int           `yaml:"concurrency"`      // max concurrent fetches
	MinContributors int           `yaml:"min_contributors"` // aggregate trust floor
	LookbackWindow  time.Duration `yaml:"lookback_window"`  // items seen this recently get refreshed
}

// WriterConfig holds batch delta writer settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DatabaseConfig holds the embedded store settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

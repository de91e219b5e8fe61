package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *TrackerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}
	if c.Source.Path == "" {
		return errors.New("source.path is required")
	}
	if c.Source.ReadChunkSize < 1 {
		return errors.New("source.read_chunk_size must be >= 1")
	}
	if c.Source.RetryBaseDelay > c.Source.RetryMaxDelay {
		return fmt.Errorf("source.retry_base_delay (%s) cannot exceed retry_max_delay (%s)",
			c.Source.RetryBaseDelay, c.Source.RetryMaxDelay)
	}

	if c.Exchange.MaxPending < 1 {
		return errors.New("exchange.max_pending must be >= 1")
	}
	if c.Exchange.MaxLineGap < 1 {
		return errors.New("exchange.max_line_gap must be >= 1")
	}

	if c.Pricing.MinSamples < 1 {
		return errors.New("pricing.min_samples must be >= 1")
	}
	if c.Pricing.BucketWidth <= 0 {
		return errors.New("pricing.bucket_width must be > 0")
	}
	if c.Pricing.ModeShare <= 0 || c.Pricing.ModeShare > 1 {
		return fmt.Errorf("pricing.mode_share must be in (0, 1], got %g", c.Pricing.ModeShare)
	}

	if c.Sync.Concurrency < 1 {
		return errors.New("sync.concurrency must be >= 1")
	}
	if c.Sync.MinContributors < 1 {
		return errors.New("sync.min_contributors must be >= 1")
	}

	if c.Writer.BatchSize < 1 {
		return errors.New("writer.batch_size must be >= 1")
	}
	if c.Writer.BufferSize < 1 {
		return errors.New("writer.buffer_size must be >= 1")
	}

	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-tracker
source:
  path: /games/client/logs/Client.txt
database:
  path: /tmp/test.db
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-tracker", cfg.Instance.ID)
	assert.Equal(t, "/games/client/logs/Client.txt", cfg.Source.Path)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_LOG_PATH", "/var/log/client.txt")

	yaml := `
instance:
  id: test-tracker
source:
  path: ${TEST_LOG_PATH}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/log/client.txt", cfg.Source.Path)
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-tracker
source:
  path: /tmp/client.txt
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultPollInterval, cfg.Source.PollInterval)
	assert.Equal(t, DefaultPickupProto, cfg.Pipeline.PickupProto)
	assert.Equal(t, DefaultExcludedPages, cfg.Pipeline.ExcludedPages)
	assert.Equal(t, DefaultBatchSize, cfg.Writer.BatchSize)
	assert.Equal(t, DefaultMinContributors, cfg.Sync.MinContributors)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, 1*time.Second, cfg.Writer.FlushInterval)
}

func TestValidate(t *testing.T) {
	base := func() *TrackerConfig {
		cfg := &TrackerConfig{
			Instance: InstanceConfig{ID: "t"},
			Source:   SourceConfig{Path: "/tmp/client.txt"},
		}
		cfg.applyDefaults()
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing instance id", func(t *testing.T) {
		cfg := base()
		cfg.Instance.ID = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing source path", func(t *testing.T) {
		cfg := base()
		cfg.Source.Path = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad mode share", func(t *testing.T) {
		cfg := base()
		cfg.Pricing.ModeShare = 1.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad retry delays", func(t *testing.T) {
		cfg := base()
		cfg.Source.RetryBaseDelay = time.Minute
		cfg.Source.RetryMaxDelay = time.Second
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad health port", func(t *testing.T) {
		cfg := base()
		cfg.Health.Port = 70000
		assert.Error(t, cfg.Validate())
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/tracker.yaml")
	assert.Error(t, err)
}

func TestValidateZeroDeltaPolicy(t *testing.T) {
	// Both branches of the zero-delta policy are valid configurations.
	yaml := `
instance:
  id: test-tracker
source:
  path: /tmp/client.txt
pipeline:
  emit_zero_deltas: true
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadAndValidate(path)
	require.NoError(t, err)
	assert.True(t, cfg.Pipeline.EmitZeroDeltas)
}

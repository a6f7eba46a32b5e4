package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "refscan", cfg.Logger.ServiceName)
	assert.Equal(t, 32, cfg.Scan.BatchSize)
	assert.Equal(t, 64, cfg.Scan.StepsPerTick)
	assert.Equal(t, 16*time.Millisecond, cfg.Scan.TickInterval)
	assert.False(t, cfg.Scan.IncludeHidden)
	assert.Equal(t, "cli", cfg.Output.Format)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"batch size", func(c *Config) { c.Scan.BatchSize = 0 }, "scan.batch_size"},
		{"steps per tick", func(c *Config) { c.Scan.StepsPerTick = -1 }, "scan.steps_per_tick"},
		{"tick interval", func(c *Config) { c.Scan.TickInterval = 0 }, "scan.tick_interval"},
		{"asset workers", func(c *Config) { c.Scan.AssetWorkers = 0 }, "scan.asset_workers"},
		{"output format", func(c *Config) { c.Output.Format = "html" }, "output.format"},
		{"watch debounce", func(c *Config) { c.Watch.Enabled = true; c.Watch.Debounce = 0 }, "watch.debounce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "refscan.yaml")
	content := `
scan:
  batch_size: 8
  tick_interval: 5ms
output:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("REFSCAN_SCAN_STEPS_PER_TICK", "7")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Scan.BatchSize)
	assert.Equal(t, 5*time.Millisecond, cfg.Scan.TickInterval)
	assert.Equal(t, 7, cfg.Scan.StepsPerTick)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "info", cfg.Logger.Level, "unset keys keep their defaults")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	v := viper.New()
	v.Set("scan.batch_size", 0)

	_, err := Load(v, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

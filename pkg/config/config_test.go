package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1920, cfg.Browser.WindowWidth)
	assert.Equal(t, 60*time.Second, cfg.Browser.PageLoadTimeout)
	assert.Equal(t, 50, cfg.Scrape.TargetCount)
	assert.Equal(t, 3, cfg.Scrape.MaxConsecutiveErrors)
	assert.Equal(t, 2, cfg.Download.Workers)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, "output_url", cfg.Output.URLDir)
	assert.Equal(t, "output_files", cfg.Output.FilesDir)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
browser:
  headless: false
  window_width: 1280
  window_height: 720
download:
  workers: 4
output:
  url_dir: my_urls
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 1280, cfg.Browser.WindowWidth)
	assert.Equal(t, 4, cfg.Download.Workers)
	assert.Equal(t, "my_urls", cfg.Output.URLDir)
	// untouched values keep defaults
	assert.Equal(t, "output_files", cfg.Output.FilesDir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml", nil)
	assert.Error(t, err)
}

func TestFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  workers: 4\n"), 0644))

	cfg, err := Load(path, map[string]interface{}{
		"workers":  8,
		"headless": false,
	})
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Download.Workers)
	assert.False(t, cfg.Browser.Headless)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SLIDESCRAPER_WORKERS", "6")
	t.Setenv("SLIDESCRAPER_LOG_LEVEL", "debug")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Download.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Download.Workers = 0 }},
		{"negative target count", func(c *Config) { c.Scrape.TargetCount = -1 }},
		{"zero window", func(c *Config) { c.Browser.WindowWidth = 0 }},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }},
		{"bad multiplier", func(c *Config) { c.Retry.Multiplier = 0.5 }},
		{"empty url dir", func(c *Config) { c.Output.URLDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Download.Workers = 0
	cfg.Scrape.TargetCount = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")
	assert.Contains(t, err.Error(), "target count")
}

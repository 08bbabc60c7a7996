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

	assert.Equal(t, 24*time.Hour, cfg.Scrape.CacheThreshold)
	assert.Equal(t, 30*time.Second, cfg.Scrape.NavigationTimeout)
	assert.Equal(t, 12, cfg.Scrape.PostsLimit)
	assert.Equal(t, 5, cfg.Scrape.ReelsLimit)
	assert.Equal(t, 1, cfg.Browser.Sessions)
	assert.Equal(t, "rod", cfg.Browser.Driver)
	assert.Equal(t, 100, cfg.Server.RequestsPerMinute)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PRIMASPOT_DB_PATH", "/tmp/test.db")
	t.Setenv("PRIMASPOT_BROWSER_DRIVER", "chromedp")
	t.Setenv("PRIMASPOT_HEADLESS", "false")
	t.Setenv("PRIMASPOT_CACHE_THRESHOLD", "6h")
	t.Setenv("PRIMASPOT_BROWSER_MAX_QUEUE", "3")
	t.Setenv("PRIMASPOT_LOG_LEVEL", "debug")
	t.Setenv("PORT", "8080")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, "chromedp", cfg.Browser.Driver)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 6*time.Hour, cfg.Scrape.CacheThreshold)
	assert.Equal(t, 3, cfg.Browser.MaxQueue)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("PRIMASPOT_CACHE_THRESHOLD", "a day")
	t.Setenv("PRIMASPOT_BROWSER_SESSIONS", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRIMASPOT_CACHE_THRESHOLD")
	assert.Contains(t, err.Error(), "PRIMASPOT_BROWSER_SESSIONS")
	assert.Equal(t, 24*time.Hour, cfg.Scrape.CacheThreshold)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		setupConfig   func(*Config)
		errorContains []string
	}{
		{
			name:        "valid config",
			setupConfig: func(cfg *Config) {},
		},
		{
			name: "unknown driver",
			setupConfig: func(cfg *Config) {
				cfg.Browser.Driver = "selenium"
			},
			errorContains: []string{"unknown browser driver"},
		},
		{
			name: "invalid pool settings",
			setupConfig: func(cfg *Config) {
				cfg.Browser.Sessions = 0
				cfg.Browser.MaxQueue = -1
				cfg.Browser.MaxWait = 0
			},
			errorContains: []string{
				"browser sessions must be positive",
				"browser max queue cannot be negative",
				"browser max wait must be positive",
			},
		},
		{
			name: "limits out of range",
			setupConfig: func(cfg *Config) {
				cfg.Scrape.PostsLimit = 0
				cfg.Scrape.ReelsLimit = 500
			},
			errorContains: []string{"posts limit", "reels limit"},
		},
		{
			name: "complete timeout shorter than navigation",
			setupConfig: func(cfg *Config) {
				cfg.Scrape.CompleteTimeout = time.Second
			},
			errorContains: []string{"complete timeout"},
		},
		{
			name: "invalid log level",
			setupConfig: func(cfg *Config) {
				cfg.Logging.Level = "verbose"
			},
			errorContains: []string{"invalid log level"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setupConfig(cfg)

			err := cfg.Validate()
			if len(tt.errorContains) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, msg := range tt.errorContains {
				assert.Contains(t, err.Error(), msg)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"addr":            ":9000",
		"db":              "flags.db",
		"headless":        false,
		"cache-threshold": 2 * time.Hour,
		"log-level":       "warn",
		"driver":          "",
	})

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "flags.db", cfg.Database.Path)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 2*time.Hour, cfg.Scrape.CacheThreshold)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "rod", cfg.Browser.Driver)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Scrape.CacheThreshold = 12 * time.Hour
	cfg.Browser.MaxQueue = 2
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 12*time.Hour, loaded.Scrape.CacheThreshold)
	assert.Equal(t, 2, loaded.Browser.MaxQueue)
}

func TestLoadFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  address: ":7000"
scrape:
  cache_threshold: 48h
  posts_limit: 20
browser:
  driver: chromedp
  max_wait: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.Equal(t, 48*time.Hour, cfg.Scrape.CacheThreshold)
	assert.Equal(t, 20, cfg.Scrape.PostsLimit)
	assert.Equal(t, "chromedp", cfg.Browser.Driver)
	assert.Equal(t, 30*time.Second, cfg.Browser.MaxWait)
	// untouched sections keep their defaults
	assert.Equal(t, 5, cfg.Scrape.ReelsLimit)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

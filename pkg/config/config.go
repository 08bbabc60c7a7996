package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the service reads.
const EnvPrefix = "PRIMASPOT_"

// Config holds all configuration options for the scrape service
type Config struct {
	// HTTP surface
	Server ServerConfig `yaml:"server" json:"server"`

	// Result store
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Headless browser and the session pool guarding it
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Scrape orchestration
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Pacing of requests sent to the source
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `yaml:"address" json:"address"`
	FrontendURL       string        `yaml:"frontend_url" json:"frontend_url"`
	APIKey            string        `yaml:"api_key" json:"-"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DatabaseConfig holds SQLite configuration
type DatabaseConfig struct {
	Path          string        `yaml:"path" json:"path"`
	BusyTimeout   time.Duration `yaml:"busy_timeout" json:"busy_timeout"`
	RetryAttempts int           `yaml:"retry_attempts" json:"retry_attempts"`
}

// BrowserConfig holds browser automation configuration
type BrowserConfig struct {
	Driver    string        `yaml:"driver" json:"driver"`
	RemoteURL string        `yaml:"remote_url" json:"remote_url"`
	Headless  bool          `yaml:"headless" json:"headless"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Sessions  int           `yaml:"sessions" json:"sessions"`
	MaxQueue  int           `yaml:"max_queue" json:"max_queue"`
	MaxWait   time.Duration `yaml:"max_wait" json:"max_wait"`
}

// ScrapeConfig holds orchestration settings
type ScrapeConfig struct {
	CacheThreshold    time.Duration `yaml:"cache_threshold" json:"cache_threshold"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	SettleDelay       time.Duration `yaml:"settle_delay" json:"settle_delay"`
	CompleteTimeout   time.Duration `yaml:"complete_timeout" json:"complete_timeout"`
	PostsLimit        int           `yaml:"posts_limit" json:"posts_limit"`
	ReelsLimit        int           `yaml:"reels_limit" json:"reels_limit"`
	MaxLimit          int           `yaml:"max_limit" json:"max_limit"`
}

// RateLimitConfig holds source pacing configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	JSON  bool   `yaml:"json" json:"json"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:           ":5000",
			FrontendURL:       "http://localhost:3000",
			RequestsPerMinute: 100,
			ShutdownTimeout:   15 * time.Second,
		},
		Database: DatabaseConfig{
			Path:          "./data/primaspot.db",
			BusyTimeout:   5 * time.Second,
			RetryAttempts: 3,
		},
		Browser: BrowserConfig{
			Driver:    "rod",
			Headless:  true,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Sessions:  1,
			MaxQueue:  8,
			MaxWait:   2 * time.Minute,
		},
		Scrape: ScrapeConfig{
			CacheThreshold:    24 * time.Hour,
			NavigationTimeout: 30 * time.Second,
			SettleDelay:       3 * time.Second,
			CompleteTimeout:   5 * time.Minute,
			PostsLimit:        12,
			ReelsLimit:        5,
			MaxLimit:          50,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 20,
			BurstSize:         3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			var val int
			if _, err := fmt.Sscanf(v, "%d", &val); err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			if val > 0 {
				*dst = val
			}
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	// Server
	setString("ADDRESS", &c.Server.Address)
	if port := os.Getenv("PORT"); port != "" && os.Getenv(EnvPrefix+"ADDRESS") == "" {
		c.Server.Address = ":" + port
	}
	setString("FRONTEND_URL", &c.Server.FrontendURL)
	setString("API_KEY", &c.Server.APIKey)
	setInt("HTTP_REQUESTS_PER_MINUTE", &c.Server.RequestsPerMinute)

	// Database
	setString("DB_PATH", &c.Database.Path)
	setDuration("DB_BUSY_TIMEOUT", &c.Database.BusyTimeout)

	// Browser
	setString("BROWSER_DRIVER", &c.Browser.Driver)
	setString("BROWSER_REMOTE_URL", &c.Browser.RemoteURL)
	setString("USER_AGENT", &c.Browser.UserAgent)
	if headless := os.Getenv(EnvPrefix + "HEADLESS"); headless != "" {
		c.Browser.Headless = strings.ToLower(headless) != "false"
	}
	setInt("BROWSER_SESSIONS", &c.Browser.Sessions)
	setInt("BROWSER_MAX_QUEUE", &c.Browser.MaxQueue)
	setDuration("BROWSER_MAX_WAIT", &c.Browser.MaxWait)

	// Scrape
	setDuration("CACHE_THRESHOLD", &c.Scrape.CacheThreshold)
	setDuration("NAVIGATION_TIMEOUT", &c.Scrape.NavigationTimeout)
	setDuration("COMPLETE_TIMEOUT", &c.Scrape.CompleteTimeout)

	// Source pacing
	setInt("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)

	// Logging
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".primaspot.yaml",
		".primaspot.yml",
		filepath.Join(home, ".config", "primaspot", "config.yaml"),
		filepath.Join(home, ".config", "primaspot", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Address == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	if c.Server.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("server requests per minute must be positive"))
	}

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Database.RetryAttempts < 0 {
		errs = append(errs, errors.New("database retry attempts cannot be negative"))
	}

	switch strings.ToLower(c.Browser.Driver) {
	case "rod", "chromedp":
	default:
		errs = append(errs, fmt.Errorf("unknown browser driver %q", c.Browser.Driver))
	}
	if c.Browser.Sessions <= 0 {
		errs = append(errs, errors.New("browser sessions must be positive"))
	}
	if c.Browser.MaxQueue < 0 {
		errs = append(errs, errors.New("browser max queue cannot be negative"))
	}
	if c.Browser.MaxWait <= 0 {
		errs = append(errs, errors.New("browser max wait must be positive"))
	}

	if c.Scrape.CacheThreshold < 0 {
		errs = append(errs, errors.New("cache threshold cannot be negative"))
	}
	if c.Scrape.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}
	if c.Scrape.CompleteTimeout < c.Scrape.NavigationTimeout {
		errs = append(errs, errors.New("complete timeout must not be shorter than the navigation timeout"))
	}
	if c.Scrape.MaxLimit <= 0 {
		errs = append(errs, errors.New("max limit must be positive"))
	}
	if c.Scrape.PostsLimit <= 0 || c.Scrape.PostsLimit > c.Scrape.MaxLimit {
		errs = append(errs, errors.New("posts limit must be between 1 and max limit"))
	}
	if c.Scrape.ReelsLimit <= 0 || c.Scrape.ReelsLimit > c.Scrape.MaxLimit {
		errs = append(errs, errors.New("reels limit must be between 1 and max limit"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if addr, ok := flags["addr"].(string); ok && addr != "" {
		c.Server.Address = addr
	}
	if db, ok := flags["db"].(string); ok && db != "" {
		c.Database.Path = db
	}
	if driver, ok := flags["driver"].(string); ok && driver != "" {
		c.Browser.Driver = driver
	}
	if remote, ok := flags["remote-url"].(string); ok && remote != "" {
		c.Browser.RemoteURL = remote
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if threshold, ok := flags["cache-threshold"].(time.Duration); ok && threshold > 0 {
		c.Scrape.CacheThreshold = threshold
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".primaspot.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for the scraper.
type Config struct {
	Browser   BrowserConfig   `yaml:"browser"`
	Scrape    ScrapeConfig    `yaml:"scrape"`
	Download  DownloadConfig  `yaml:"download"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BrowserConfig controls the chromedp session.
type BrowserConfig struct {
	Headless        bool          `yaml:"headless"`
	UserAgent       string        `yaml:"user_agent"`
	WindowWidth     int           `yaml:"window_width"`
	WindowHeight    int           `yaml:"window_height"`
	PageLoadTimeout time.Duration `yaml:"page_load_timeout"`
	WaitTimeout     time.Duration `yaml:"wait_timeout"`
}

// ScrapeConfig controls the listing collection stage.
type ScrapeConfig struct {
	TargetCount          int           `yaml:"target_count"`
	MaxScrolls           int           `yaml:"max_scrolls"`
	SettleDelay          time.Duration `yaml:"settle_delay"`
	MaxConsecutiveErrors int           `yaml:"max_consecutive_errors"`
}

// DownloadConfig controls the slide image download stage.
type DownloadConfig struct {
	Delay     time.Duration `yaml:"delay"`
	Timeout   time.Duration `yaml:"timeout"`
	Workers   int           `yaml:"workers"`
	Overwrite bool          `yaml:"overwrite"`
}

// RateLimitConfig throttles outbound image requests.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// RetryConfig controls retry behavior for transient failures.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	Multiplier float64       `yaml:"multiplier"`
}

// OutputConfig names the directories the two stages write into.
type OutputConfig struct {
	URLDir   string `yaml:"url_dir"`
	FilesDir string `yaml:"files_dir"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless: true,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
				"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			WindowWidth:     1920,
			WindowHeight:    1080,
			PageLoadTimeout: 60 * time.Second,
			WaitTimeout:     30 * time.Second,
		},
		Scrape: ScrapeConfig{
			TargetCount:          50,
			MaxScrolls:           30,
			SettleDelay:          2 * time.Second,
			MaxConsecutiveErrors: 3,
		},
		Download: DownloadConfig{
			Delay:   500 * time.Millisecond,
			Timeout: 30 * time.Second,
			Workers: 2,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			Burst:             5,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   30 * time.Second,
			Multiplier: 2.0,
		},
		Output: OutputConfig{
			URLDir:   "output_url",
			FilesDir: "output_files",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds a Config by layering, in increasing precedence:
// defaults, a YAML config file, environment variables, and CLI flags.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()

	// .env files are optional
	_ = godotenv.Load()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SLIDESCRAPER_HEADLESS"); v != "" {
		c.Browser.Headless = parseBool(v, c.Browser.Headless)
	}
	if v := os.Getenv("SLIDESCRAPER_USER_AGENT"); v != "" {
		c.Browser.UserAgent = v
	}
	if v := os.Getenv("SLIDESCRAPER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Download.Workers = n
		}
	}
	if v := os.Getenv("SLIDESCRAPER_URL_DIR"); v != "" {
		c.Output.URLDir = v
	}
	if v := os.Getenv("SLIDESCRAPER_FILES_DIR"); v != "" {
		c.Output.FilesDir = v
	}
	if v := os.Getenv("SLIDESCRAPER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SLIDESCRAPER_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

func (c *Config) applyFlags(flags map[string]interface{}) {
	for key, value := range flags {
		switch key {
		case "headless":
			if v, ok := value.(bool); ok {
				c.Browser.Headless = v
			}
		case "workers":
			if v, ok := value.(int); ok && v > 0 {
				c.Download.Workers = v
			}
		case "target-count":
			if v, ok := value.(int); ok && v > 0 {
				c.Scrape.TargetCount = v
			}
		case "delay":
			if v, ok := value.(time.Duration); ok && v >= 0 {
				c.Download.Delay = v
			}
		case "max-retries":
			if v, ok := value.(int); ok && v >= 0 {
				c.Retry.MaxRetries = v
			}
		case "overwrite":
			if v, ok := value.(bool); ok {
				c.Download.Overwrite = v
			}
		case "log-level":
			if v, ok := value.(string); ok && v != "" {
				c.Logging.Level = v
			}
		}
	}
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.ToLower(s))
	if err != nil {
		return fallback
	}
	return b
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		errs = append(errs, fmt.Errorf("window size must be positive, got %dx%d",
			c.Browser.WindowWidth, c.Browser.WindowHeight))
	}
	if c.Browser.PageLoadTimeout <= 0 {
		errs = append(errs, errors.New("page load timeout must be positive"))
	}
	if c.Scrape.TargetCount <= 0 {
		errs = append(errs, fmt.Errorf("target count must be positive, got %d", c.Scrape.TargetCount))
	}
	if c.Scrape.MaxConsecutiveErrors <= 0 {
		errs = append(errs, errors.New("max consecutive errors must be positive"))
	}
	if c.Download.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Download.Workers))
	}
	if c.Download.Delay < 0 {
		errs = append(errs, errors.New("download delay cannot be negative"))
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Retry.Multiplier < 1.0 {
		errs = append(errs, fmt.Errorf("retry multiplier must be at least 1.0, got %v", c.Retry.Multiplier))
	}
	if c.Output.URLDir == "" {
		errs = append(errs, errors.New("url output directory cannot be empty"))
	}
	if c.Output.FilesDir == "" {
		errs = append(errs, errors.New("files output directory cannot be empty"))
	}

	return errors.Join(errs...)
}

// Package config manages application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// YouTube Data API settings
	APIKey string `json:"api_key"`

	// Probe settings
	ProbeTimeout time.Duration `json:"probe_timeout"`
	EmbedOrigin  string        `json:"embed_origin"`

	// Link validation settings
	LinkTimeout         time.Duration `json:"link_timeout"`
	ValidateConcurrency int           `json:"validate_concurrency"`

	// Repair settings
	EnableRepair     bool          `json:"enable_repair"`
	AdminToken       string        `json:"admin_token"`
	RepairRateLimit  int           `json:"repair_rate_limit"`
	RepairRateWindow time.Duration `json:"repair_rate_window"`
	SearchResults    int64         `json:"search_results"`

	// Storage and server settings
	StorePath  string `json:"store_path"`
	ListenAddr string `json:"listen_addr"`

	// Retry settings
	MaxRetries        int           `json:"max_retries"`
	InitialBackoff    time.Duration `json:"initial_backoff"`
	MaxBackoff        time.Duration `json:"max_backoff"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		ProbeTimeout:        5 * time.Second,
		LinkTimeout:         6 * time.Second,
		ValidateConcurrency: 3,
		RepairRateLimit:     10,
		RepairRateWindow:    time.Minute,
		SearchResults:       6,
		StorePath:           "ytresolve.json",
		ListenAddr:          ":8080",
		MaxRetries:          2,
		InitialBackoff:      1 * time.Second,
		MaxBackoff:          2 * time.Second,
		BackoffMultiplier:   2.0,
	}
}

// Load loads configuration from environment variables, config file, and applies defaults.
// Priority: env vars > config file > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Try to load from config file
	if err := cfg.loadFromFile(); err != nil {
		// Config file is optional
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// Override with environment variables
	cfg.loadFromEnv()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile attempts to load config from ytresolve.config.json in the
// current directory or home directory.
func (c *Config) loadFromFile() error {
	paths := []string{
		"ytresolve.config.json",
		filepath.Join(os.Getenv("HOME"), ".config", "ytresolve", "ytresolve.config.json"),
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}

	return os.ErrNotExist
}

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv() {
	if v := os.Getenv("YTRESOLVE_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("YTRESOLVE_PROBE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ProbeTimeout = d
		}
	}
	if v := os.Getenv("YTRESOLVE_EMBED_ORIGIN"); v != "" {
		c.EmbedOrigin = v
	}
	if v := os.Getenv("YTRESOLVE_LINK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.LinkTimeout = d
		}
	}
	if v := os.Getenv("YTRESOLVE_VALIDATE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ValidateConcurrency = n
		}
	}
	if v := os.Getenv("YTRESOLVE_ENABLE_REPAIR"); v != "" {
		c.EnableRepair = v == "true" || v == "1"
	}
	if v := os.Getenv("YTRESOLVE_ADMIN_TOKEN"); v != "" {
		c.AdminToken = v
	}
	if v := os.Getenv("YTRESOLVE_REPAIR_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RepairRateLimit = n
		}
	}
	if v := os.Getenv("YTRESOLVE_REPAIR_RATE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RepairRateWindow = d
		}
	}
	if v := os.Getenv("YTRESOLVE_SEARCH_RESULTS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.SearchResults = n
		}
	}
	if v := os.Getenv("YTRESOLVE_STORE_PATH"); v != "" {
		c.StorePath = v
	}
	if v := os.Getenv("YTRESOLVE_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("YTRESOLVE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv("YTRESOLVE_INITIAL_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.InitialBackoff = d
		}
	}
	if v := os.Getenv("YTRESOLVE_MAX_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.MaxBackoff = d
		}
	}
	if v := os.Getenv("YTRESOLVE_BACKOFF_MULTIPLIER"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.BackoffMultiplier = f
		}
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive")
	}
	if c.LinkTimeout <= 0 {
		return fmt.Errorf("link_timeout must be positive")
	}
	if c.ValidateConcurrency <= 0 {
		return fmt.Errorf("validate_concurrency must be positive")
	}
	if c.RepairRateLimit <= 0 {
		return fmt.Errorf("repair_rate_limit must be positive")
	}
	if c.RepairRateWindow <= 0 {
		return fmt.Errorf("repair_rate_window must be positive")
	}
	if c.SearchResults <= 0 {
		return fmt.Errorf("search_results must be positive")
	}
	if c.StorePath == "" {
		return fmt.Errorf("store_path must be set")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	return nil
}

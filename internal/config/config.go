// Package config loads crawler configuration from YAML with
// zero-value defaults applied through getter methods, so a missing
// file or a partially filled file still yields a usable setup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	League   LeagueConfig   `yaml:"league"`
	Scrape   ScrapeConfig   `yaml:"scrape"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Export   ExportConfig   `yaml:"export"`
}

// LeagueConfig identifies the crawl target.
type LeagueConfig struct {
	ID      int    `yaml:"id"`
	BaseURL string `yaml:"base_url"`
}

// BaseURLOrDefault returns the site root, defaulting to the public host.
func (c LeagueConfig) BaseURLOrDefault() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return "https://www.simracerhub.com"
}

// ScrapeConfig controls traversal policy.
type ScrapeConfig struct {
	Depth           string `yaml:"depth"`
	CacheMaxAgeDays *int   `yaml:"cache_max_age_days"`
	Force           bool   `yaml:"force"`
	SeriesIDs       []int  `yaml:"series_ids"`
	SeasonYear      int    `yaml:"season_year"`
	SeasonLimit     int    `yaml:"season_limit"`
	// RefreshRoots controls whether league and series pages are
	// fetched on every run regardless of cache age. Those pages are
	// the source of truth for which children exist, so the default
	// is true.
	RefreshRoots *bool `yaml:"refresh_roots"`
}

// DepthOrDefault returns the traversal depth, defaulting to "race".
func (c ScrapeConfig) DepthOrDefault() string {
	if c.Depth != "" {
		return c.Depth
	}
	return "race"
}

// CacheMaxAge returns the cache validity window in days, defaulting to 7.
func (c ScrapeConfig) CacheMaxAge() int {
	if c.CacheMaxAgeDays != nil {
		return *c.CacheMaxAgeDays
	}
	return 7
}

// RefreshRootsEnabled reports whether league/series pages bypass the cache.
func (c ScrapeConfig) RefreshRootsEnabled() bool {
	if c.RefreshRoots != nil {
		return *c.RefreshRoots
	}
	return true
}

// FetchConfig controls the shared fetch gate.
type FetchConfig struct {
	UserAgent           string  `yaml:"user_agent"`
	TimeoutMs           int     `yaml:"timeout_ms"`
	NavigationTimeoutMs int     `yaml:"navigation_timeout_ms"`
	TableWaitMs         int     `yaml:"table_wait_ms"`
	MaxRetries          int     `yaml:"max_retries"`
	InitialBackoffMs    int     `yaml:"initial_backoff_ms"`
	MaxBackoffMs        int     `yaml:"max_backoff_ms"`
	RateLimitMinSec     float64 `yaml:"rate_limit_min_sec"`
	RateLimitMaxSec     float64 `yaml:"rate_limit_max_sec"`
	BrowserBin          string  `yaml:"browser_bin"`
}

// UserAgentOrDefault returns the outbound User-Agent header value.
func (c FetchConfig) UserAgentOrDefault() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
}

// Timeout returns the per-request timeout (default 30s).
func (c FetchConfig) Timeout() time.Duration {
	if c.TimeoutMs > 0 {
		return time.Duration(c.TimeoutMs) * time.Millisecond
	}
	return 30 * time.Second
}

// NavigationTimeout returns the rendered-mode navigation bound (default 30s).
func (c FetchConfig) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs > 0 {
		return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
	}
	return 30 * time.Second
}

// TableWait returns the readiness-probe bound for rendered pages
// (default 5s). Expiry is non-fatal.
func (c FetchConfig) TableWait() time.Duration {
	if c.TableWaitMs > 0 {
		return time.Duration(c.TableWaitMs) * time.Millisecond
	}
	return 5 * time.Second
}

// Retries returns the retry budget after the first attempt (default 3).
func (c FetchConfig) Retries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return 3
}

// InitialBackoff returns the first retry delay (default 2s).
func (c FetchConfig) InitialBackoff() time.Duration {
	if c.InitialBackoffMs > 0 {
		return time.Duration(c.InitialBackoffMs) * time.Millisecond
	}
	return 2 * time.Second
}

// MaxBackoff returns the retry delay cap (default 30s).
func (c FetchConfig) MaxBackoff() time.Duration {
	if c.MaxBackoffMs > 0 {
		return time.Duration(c.MaxBackoffMs) * time.Millisecond
	}
	return 30 * time.Second
}

// RateLimitRange returns the uniform delay range between requests,
// defaulting to [2s, 4s]. A degenerate range collapses to the min.
func (c FetchConfig) RateLimitRange() (time.Duration, time.Duration) {
	lo, hi := c.RateLimitMinSec, c.RateLimitMaxSec
	if lo <= 0 {
		lo = 2.0
	}
	if hi <= 0 {
		hi = 4.0
	}
	if hi < lo {
		hi = lo
	}
	return time.Duration(lo * float64(time.Second)), time.Duration(hi * float64(time.Second))
}

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PathOrDefault returns the store path, defaulting to a local file.
func (c DatabaseConfig) PathOrDefault() string {
	if c.Path != "" {
		return c.Path
	}
	return "gridcrawl.db"
}

// LoggingConfig controls diagnostic verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LevelOrDefault returns the log level, defaulting to INFO.
func (c LoggingConfig) LevelOrDefault() string {
	if c.Level != "" {
		return c.Level
	}
	return "INFO"
}

// ExportConfig controls the columnar export utility.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// OutputDirOrDefault returns the export destination, defaulting to ./export.
func (c ExportConfig) OutputDirOrDefault() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return "export"
}

// Load reads and parses a YAML config file. A missing file is not an
// error; callers get zero-value defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

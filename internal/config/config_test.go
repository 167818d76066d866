package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "race", cfg.Scrape.DepthOrDefault())
	require.Equal(t, 7, cfg.Scrape.CacheMaxAge())
	require.True(t, cfg.Scrape.RefreshRootsEnabled())
	require.Equal(t, "gridcrawl.db", cfg.Database.PathOrDefault())
	require.Equal(t, "INFO", cfg.Logging.LevelOrDefault())
}

func TestLoadParsesDocument(t *testing.T) {
	doc := `
league:
  id: 1558
scrape:
  depth: season
  cache_max_age_days: 0
  refresh_roots: false
  series_ids: [3714, 3712]
fetch:
  rate_limit_min_sec: 0.5
  rate_limit_max_sec: 1.5
  max_retries: 5
database:
  path: /tmp/test.db
logging:
  level: DEBUG
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1558, cfg.League.ID)
	require.Equal(t, "season", cfg.Scrape.DepthOrDefault())
	require.Equal(t, 0, cfg.Scrape.CacheMaxAge())
	require.False(t, cfg.Scrape.RefreshRootsEnabled())
	require.Equal(t, []int{3714, 3712}, cfg.Scrape.SeriesIDs)
	require.Equal(t, 5, cfg.Fetch.Retries())
	require.Equal(t, "/tmp/test.db", cfg.Database.PathOrDefault())
	require.Equal(t, "DEBUG", cfg.Logging.LevelOrDefault())

	lo, hi := cfg.Fetch.RateLimitRange()
	require.Equal(t, 500*time.Millisecond, lo)
	require.Equal(t, 1500*time.Millisecond, hi)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scrape: [unclosed"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestRateLimitRangeDefaultsAndCollapse(t *testing.T) {
	var fc FetchConfig
	lo, hi := fc.RateLimitRange()
	require.Equal(t, 2*time.Second, lo)
	require.Equal(t, 4*time.Second, hi)

	fc = FetchConfig{RateLimitMinSec: 3, RateLimitMaxSec: 1}
	lo, hi = fc.RateLimitRange()
	require.Equal(t, lo, hi)
	require.Equal(t, 3*time.Second, lo)
}

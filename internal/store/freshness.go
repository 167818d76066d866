package store

import (
	"database/sql"
	"fmt"
	"time"

	"gridcrawl/internal/errdefs"
)

// entityTables maps entity kinds to their table and external-id column.
var entityTables = map[string]struct {
	table string
	idCol string
}{
	"league": {"leagues", "league_id"},
	"series": {"series", "series_id"},
	"season": {"seasons", "season_id"},
	"race":   {"races", "schedule_id"},
	"driver": {"drivers", "driver_id"},
	"team":   {"teams", "team_id"},
}

// IsURLCached reports whether a row for url exists and is fresh.
// A nil maxAgeDays means "any row counts". The comparison is strict
// (age must be under the window), so a zero-day window never matches,
// and an unparseable or epoch-sentinel timestamp is always stale.
func (s *Store) IsURLCached(url, entityKind string, maxAgeDays *int) (bool, error) {
	ent, ok := entityTables[entityKind]
	if !ok {
		return false, errdefs.Validationf("entity_kind", "unknown kind %q", entityKind)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var scrapedAt string
	err := s.db.QueryRow(fmt.Sprintf("SELECT scraped_at FROM %s WHERE url = ?", ent.table), url).Scan(&scrapedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("url cache lookup %s: %w", url, err)
	}

	if maxAgeDays == nil {
		return true, nil
	}

	scrapedTime, ok := parseTimestamp(scrapedAt)
	if !ok {
		return false, nil
	}
	cutoff := time.Now().UTC().Add(-time.Duration(*maxAgeDays) * 24 * time.Hour)
	return scrapedTime.After(cutoff), nil
}

// ShouldScrape decides whether an entity's own page needs a fetch and
// returns a machine-readable reason. A nil validityHours trusts any
// existing row indefinitely. Race and season rows with an in-progress
// status refresh even when the row is young; a "completed" status
// keeps the row stable inside its window.
func (s *Store) ShouldScrape(entityKind string, entityID int, validityHours *int) (bool, string, error) {
	ent, ok := entityTables[entityKind]
	if !ok {
		return false, "", errdefs.Validationf("entity_kind", "unknown kind %q", entityKind)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hasStatus := entityKind == "race" || entityKind == "season"

	var scrapedAt string
	var status sql.NullString
	var err error
	if hasStatus {
		err = s.db.QueryRow(fmt.Sprintf("SELECT scraped_at, status FROM %s WHERE %s = ?", ent.table, ent.idCol),
			entityID).Scan(&scrapedAt, &status)
	} else {
		err = s.db.QueryRow(fmt.Sprintf("SELECT scraped_at FROM %s WHERE %s = ?", ent.table, ent.idCol),
			entityID).Scan(&scrapedAt)
	}
	if err == sql.ErrNoRows {
		return true, "not_in_cache", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("should_scrape %s %d: %w", entityKind, entityID, err)
	}

	if validityHours == nil {
		return false, "cache_valid_indefinitely", nil
	}

	scrapedTime, ok := parseTimestamp(scrapedAt)
	if !ok {
		return true, "invalid_timestamp", nil
	}
	ageHours := time.Since(scrapedTime.UTC()).Hours()
	if ageHours > float64(*validityHours) {
		return true, fmt.Sprintf("cache_stale (%.1fh > %dh)", ageHours, *validityHours), nil
	}

	if hasStatus && status.Valid {
		switch status.String {
		case "upcoming", "ongoing", "active":
			return true, fmt.Sprintf("status_%s_needs_refresh", status.String), nil
		case "completed":
			return false, "status_completed_stable", nil
		}
	}

	return false, fmt.Sprintf("cache_fresh (%.1fh < %dh)", ageHours, *validityHours), nil
}

// IsRaceComplete reports whether the race exists and its completion
// flag is set. Completed races are immutable under the cache policy.
func (s *Store) IsRaceComplete(scheduleID int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var complete int
	err := s.db.QueryRow("SELECT is_complete FROM races WHERE schedule_id = ?", scheduleID).Scan(&complete)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("race completion lookup %d: %w", scheduleID, err)
	}
	return complete != 0, nil
}

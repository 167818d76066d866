package store

import (
	"database/sql"
	"fmt"
	"sort"

	"gridcrawl/internal/errdefs"
)

// League is a root entity row. Optional attributes are pointers; a nil
// pointer in an upsert leaves any previously stored value in place.
type League struct {
	LeagueID    int
	Name        string
	Description *string
	URL         string
	ScrapedAt   string
	CreatedAt   string
	UpdatedAt   string
}

// UpsertLeague inserts or merges a league row. Name, URL and ScrapedAt
// are required. Existing non-null optional attributes survive an upsert
// that omits them, and scraped_at never moves backwards.
func (s *Store) UpsertLeague(l *League) error {
	if err := requireFields("leagues", map[string]string{
		"name":       l.Name,
		"url":        l.URL,
		"scraped_at": l.ScrapedAt,
	}); err != nil {
		return err
	}
	if l.LeagueID <= 0 {
		return errdefs.Validationf("league_id", "must be positive, got %d", l.LeagueID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowString()
	_, err := s.db.Exec(`
		INSERT INTO leagues (league_id, name, description, url, scraped_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(league_id) DO UPDATE SET
			name = excluded.name,
			description = COALESCE(excluded.description, leagues.description),
			url = excluded.url,
			scraped_at = MAX(excluded.scraped_at, leagues.scraped_at),
			updated_at = excluded.updated_at`,
		l.LeagueID, l.Name, l.Description, l.URL, l.ScrapedAt, now, now)
	if err != nil {
		return fmt.Errorf("upsert league %d: %w", l.LeagueID, err)
	}
	return nil
}

// GetLeague returns the league row or nil when absent.
func (s *Store) GetLeague(leagueID int) (*League, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT league_id, name, description, url, scraped_at, created_at, updated_at
		FROM leagues WHERE league_id = ?`, leagueID)

	var l League
	err := row.Scan(&l.LeagueID, &l.Name, &l.Description, &l.URL, &l.ScrapedAt, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get league %d: %w", leagueID, err)
	}
	return &l, nil
}

// requireFields rejects empty required string fields with a
// ValidationError naming the first offender.
func requireFields(table string, fields map[string]string) error {
	for _, name := range sortedKeys(fields) {
		if fields[name] == "" {
			return errdefs.Validationf(name, "required for %s upsert", table)
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parentExists checks referential integrity before an insert so the
// caller gets a typed error instead of a raw constraint failure.
func (s *Store) parentExists(table, idCol string, id int) error {
	var one int
	err := s.db.QueryRow(fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?", table, idCol), id).Scan(&one)
	if err == sql.ErrNoRows {
		return errdefs.Integrityf(table, "%s %d does not exist", idCol, id)
	}
	if err != nil {
		return fmt.Errorf("check %s.%s=%d: %w", table, idCol, id, err)
	}
	return nil
}

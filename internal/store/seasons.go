package store

import (
	"database/sql"
	"fmt"

	"gridcrawl/internal/errdefs"
)

// Season belongs to one series. Status, when known, is one of
// "upcoming", "ongoing", "active" or "completed".
type Season struct {
	SeasonID  int
	SeriesID  int
	Name      string
	Status    *string
	URL       string
	ScrapedAt string
	CreatedAt string
	UpdatedAt string
}

// UpsertSeason inserts or merges a season row under an existing series.
func (s *Store) UpsertSeason(se *Season) error {
	if err := requireFields("seasons", map[string]string{
		"name":       se.Name,
		"url":        se.URL,
		"scraped_at": se.ScrapedAt,
	}); err != nil {
		return err
	}
	if se.SeasonID <= 0 {
		return errdefs.Validationf("season_id", "must be positive, got %d", se.SeasonID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.parentExists("series", "series_id", se.SeriesID); err != nil {
		return err
	}

	now := nowString()
	_, err := s.db.Exec(`
		INSERT INTO seasons (season_id, series_id, name, status, url, scraped_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(season_id) DO UPDATE SET
			series_id = excluded.series_id,
			name = excluded.name,
			status = COALESCE(excluded.status, seasons.status),
			url = excluded.url,
			scraped_at = MAX(excluded.scraped_at, seasons.scraped_at),
			updated_at = excluded.updated_at`,
		se.SeasonID, se.SeriesID, se.Name, se.Status, se.URL, se.ScrapedAt, now, now)
	if err != nil {
		return fmt.Errorf("upsert season %d: %w", se.SeasonID, err)
	}
	return nil
}

// GetSeason returns the season row or nil when absent.
func (s *Store) GetSeason(seasonID int) (*Season, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanSeason(s.db.QueryRow(seasonSelect+" WHERE season_id = ?", seasonID))
}

// GetSeasonsBySeries lists a series' seasons ordered by external id.
func (s *Store) GetSeasonsBySeries(seriesID int) ([]*Season, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(seasonSelect+" WHERE series_id = ? ORDER BY season_id", seriesID)
	if err != nil {
		return nil, fmt.Errorf("seasons by series %d: %w", seriesID, err)
	}
	defer rows.Close()

	var out []*Season
	for rows.Next() {
		se, err := scanSeason(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, se)
	}
	return out, rows.Err()
}

const seasonSelect = `
	SELECT season_id, series_id, name, status, url, scraped_at, created_at, updated_at
	FROM seasons`

func scanSeason(r rowScanner) (*Season, error) {
	var se Season
	err := r.Scan(&se.SeasonID, &se.SeriesID, &se.Name, &se.Status, &se.URL,
		&se.ScrapedAt, &se.CreatedAt, &se.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan season: %w", err)
	}
	return &se, nil
}

package store

import (
	"database/sql"
	"fmt"

	"gridcrawl/internal/errdefs"
)

// Series belongs to one league.
type Series struct {
	SeriesID    int
	LeagueID    int
	Name        string
	Description *string
	CreatedDate *string
	NumSeasons  *int
	URL         string
	ScrapedAt   string
	CreatedAt   string
	UpdatedAt   string
}

// UpsertSeries inserts or merges a series row under an existing league.
func (s *Store) UpsertSeries(sr *Series) error {
	if err := requireFields("series", map[string]string{
		"name":       sr.Name,
		"url":        sr.URL,
		"scraped_at": sr.ScrapedAt,
	}); err != nil {
		return err
	}
	if sr.SeriesID <= 0 {
		return errdefs.Validationf("series_id", "must be positive, got %d", sr.SeriesID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.parentExists("leagues", "league_id", sr.LeagueID); err != nil {
		return err
	}

	now := nowString()
	_, err := s.db.Exec(`
		INSERT INTO series (series_id, league_id, name, description, created_date, num_seasons, url, scraped_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(series_id) DO UPDATE SET
			league_id = excluded.league_id,
			name = excluded.name,
			description = COALESCE(excluded.description, series.description),
			created_date = COALESCE(excluded.created_date, series.created_date),
			num_seasons = COALESCE(excluded.num_seasons, series.num_seasons),
			url = excluded.url,
			scraped_at = MAX(excluded.scraped_at, series.scraped_at),
			updated_at = excluded.updated_at`,
		sr.SeriesID, sr.LeagueID, sr.Name, sr.Description, sr.CreatedDate, sr.NumSeasons,
		sr.URL, sr.ScrapedAt, now, now)
	if err != nil {
		return fmt.Errorf("upsert series %d: %w", sr.SeriesID, err)
	}
	return nil
}

// GetSeries returns the series row or nil when absent.
func (s *Store) GetSeries(seriesID int) (*Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanSeries(s.db.QueryRow(seriesSelect+" WHERE series_id = ?", seriesID))
}

// GetSeriesByLeague lists a league's series ordered by external id.
func (s *Store) GetSeriesByLeague(leagueID int) ([]*Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(seriesSelect+" WHERE league_id = ? ORDER BY series_id", leagueID)
	if err != nil {
		return nil, fmt.Errorf("series by league %d: %w", leagueID, err)
	}
	defer rows.Close()

	var out []*Series
	for rows.Next() {
		sr, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

const seriesSelect = `
	SELECT series_id, league_id, name, description, created_date, num_seasons, url, scraped_at, created_at, updated_at
	FROM series`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeries(r rowScanner) (*Series, error) {
	var sr Series
	err := r.Scan(&sr.SeriesID, &sr.LeagueID, &sr.Name, &sr.Description, &sr.CreatedDate,
		&sr.NumSeasons, &sr.URL, &sr.ScrapedAt, &sr.CreatedAt, &sr.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan series: %w", err)
	}
	return &sr, nil
}

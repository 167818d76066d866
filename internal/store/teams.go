package store

import (
	"database/sql"
	"fmt"

	"gridcrawl/internal/errdefs"
)

// Team belongs to one league. Drivers reference it by external id.
type Team struct {
	TeamID      int
	LeagueID    int
	Name        string
	DriverCount *int
	URL         *string
	ScrapedAt   string
	CreatedAt   string
	UpdatedAt   string
}

// UpsertTeam inserts or merges a team row under an existing league.
func (s *Store) UpsertTeam(t *Team) error {
	if err := requireFields("teams", map[string]string{
		"name":       t.Name,
		"scraped_at": t.ScrapedAt,
	}); err != nil {
		return err
	}
	if t.TeamID <= 0 {
		return errdefs.Validationf("team_id", "must be positive, got %d", t.TeamID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.parentExists("leagues", "league_id", t.LeagueID); err != nil {
		return err
	}

	now := nowString()
	_, err := s.db.Exec(`
		INSERT INTO teams (team_id, league_id, name, driver_count, url, scraped_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(team_id) DO UPDATE SET
			league_id = excluded.league_id,
			name = excluded.name,
			driver_count = COALESCE(excluded.driver_count, teams.driver_count),
			url = COALESCE(excluded.url, teams.url),
			scraped_at = MAX(excluded.scraped_at, teams.scraped_at),
			updated_at = excluded.updated_at`,
		t.TeamID, t.LeagueID, t.Name, t.DriverCount, t.URL, t.ScrapedAt, now, now)
	if err != nil {
		return fmt.Errorf("upsert team %d: %w", t.TeamID, err)
	}
	return nil
}

// GetTeam returns the team row or nil when absent.
func (s *Store) GetTeam(teamID int) (*Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanTeam(s.db.QueryRow(teamSelect+" WHERE team_id = ?", teamID))
}

// GetTeamsByLeague lists a league's teams ordered by external id.
func (s *Store) GetTeamsByLeague(leagueID int) ([]*Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(teamSelect+" WHERE league_id = ? ORDER BY team_id", leagueID)
	if err != nil {
		return nil, fmt.Errorf("teams by league %d: %w", leagueID, err)
	}
	defer rows.Close()

	var out []*Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const teamSelect = `
	SELECT team_id, league_id, name, driver_count, url, scraped_at, created_at, updated_at
	FROM teams`

func scanTeam(r rowScanner) (*Team, error) {
	var t Team
	err := r.Scan(&t.TeamID, &t.LeagueID, &t.Name, &t.DriverCount, &t.URL,
		&t.ScrapedAt, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan team: %w", err)
	}
	return &t, nil
}

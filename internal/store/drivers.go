package store

import (
	"database/sql"
	"fmt"

	"gridcrawl/internal/errdefs"
)

// Driver belongs to one league and optionally one team. The team link
// is a plain external id resolved on demand, not an owned object.
type Driver struct {
	DriverID      int
	LeagueID      int
	TeamID        *int
	Name          string
	FirstName     *string
	LastName      *string
	CarNumbers    *string
	PrimaryNumber *string
	Club          *string
	IRating       *int
	SafetyRating  *float64
	LicenseClass  *string
	URL           string
	ScrapedAt     string
	CreatedAt     string
	UpdatedAt     string
}

// UpsertDriver inserts or merges a driver row under an existing league.
// A non-nil TeamID must reference an existing team.
func (s *Store) UpsertDriver(d *Driver) error {
	if err := requireFields("drivers", map[string]string{
		"name":       d.Name,
		"url":        d.URL,
		"scraped_at": d.ScrapedAt,
	}); err != nil {
		return err
	}
	if d.DriverID <= 0 {
		return errdefs.Validationf("driver_id", "must be positive, got %d", d.DriverID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.parentExists("leagues", "league_id", d.LeagueID); err != nil {
		return err
	}
	if d.TeamID != nil {
		if err := s.parentExists("teams", "team_id", *d.TeamID); err != nil {
			return err
		}
	}

	now := nowString()
	_, err := s.db.Exec(`
		INSERT INTO drivers (driver_id, league_id, team_id, name, first_name, last_name,
			car_numbers, primary_number, club, irating, safety_rating, license_class,
			url, scraped_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(driver_id) DO UPDATE SET
			league_id = excluded.league_id,
			team_id = COALESCE(excluded.team_id, drivers.team_id),
			name = excluded.name,
			first_name = COALESCE(excluded.first_name, drivers.first_name),
			last_name = COALESCE(excluded.last_name, drivers.last_name),
			car_numbers = COALESCE(excluded.car_numbers, drivers.car_numbers),
			primary_number = COALESCE(excluded.primary_number, drivers.primary_number),
			club = COALESCE(excluded.club, drivers.club),
			irating = COALESCE(excluded.irating, drivers.irating),
			safety_rating = COALESCE(excluded.safety_rating, drivers.safety_rating),
			license_class = COALESCE(excluded.license_class, drivers.license_class),
			url = excluded.url,
			scraped_at = MAX(excluded.scraped_at, drivers.scraped_at),
			updated_at = excluded.updated_at`,
		d.DriverID, d.LeagueID, d.TeamID, d.Name, d.FirstName, d.LastName,
		d.CarNumbers, d.PrimaryNumber, d.Club, d.IRating, d.SafetyRating, d.LicenseClass,
		d.URL, d.ScrapedAt, now, now)
	if err != nil {
		return fmt.Errorf("upsert driver %d: %w", d.DriverID, err)
	}
	return nil
}

// GetDriver returns the driver row or nil when absent.
func (s *Store) GetDriver(driverID int) (*Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanDriver(s.db.QueryRow(driverSelect+" WHERE driver_id = ?", driverID))
}

// GetDriversByLeague lists a league's drivers ordered by external id.
func (s *Store) GetDriversByLeague(leagueID int) ([]*Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryDrivers(driverSelect+" WHERE league_id = ? ORDER BY driver_id", leagueID)
}

// FindDriverByName does case-insensitive containment matching on the
// display name, optionally scoped to a league.
func (s *Store) FindDriverByName(substring string, leagueID *int) ([]*Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pattern := "%" + substring + "%"
	if leagueID != nil {
		return s.queryDrivers(driverSelect+
			" WHERE name LIKE ? COLLATE NOCASE AND league_id = ? ORDER BY driver_id", pattern, *leagueID)
	}
	return s.queryDrivers(driverSelect+
		" WHERE name LIKE ? COLLATE NOCASE ORDER BY driver_id", pattern)
}

func (s *Store) queryDrivers(query string, args ...any) ([]*Driver, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query drivers: %w", err)
	}
	defer rows.Close()

	var out []*Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const driverSelect = `
	SELECT driver_id, league_id, team_id, name, first_name, last_name,
		car_numbers, primary_number, club, irating, safety_rating, license_class,
		url, scraped_at, created_at, updated_at
	FROM drivers`

func scanDriver(r rowScanner) (*Driver, error) {
	var d Driver
	err := r.Scan(&d.DriverID, &d.LeagueID, &d.TeamID, &d.Name, &d.FirstName, &d.LastName,
		&d.CarNumbers, &d.PrimaryNumber, &d.Club, &d.IRating, &d.SafetyRating, &d.LicenseClass,
		&d.URL, &d.ScrapedAt, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan driver: %w", err)
	}
	return &d, nil
}

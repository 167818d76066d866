package store

import (
	"database/sql"
	"fmt"

	"gridcrawl/internal/errdefs"
)

// RaceResult is the fact row joining a race and a driver. Unique by
// (race_id, driver_id).
type RaceResult struct {
	ResultID               int64
	RaceID                 int64
	DriverID               int
	Team                   *string
	FinishPosition         *int
	StartingPosition       *int
	CarNumber              *string
	QualifyingTime         *string
	FastestLap             *string
	FastestLapNumber       *int
	AverageLap             *string
	Interval               *string
	LapsCompleted          *int
	LapsLed                *int
	IncidentPoints         *int
	RacePoints             *int
	BonusPoints            *int
	PenaltyPoints          *int
	TotalPoints            *int
	FastLaps               *int
	QualityPasses          *int
	ClosingPasses          *int
	TotalPasses            *int
	AverageRunningPosition *float64
	IRating                *int
	Status                 *string
	CarID                  *int
	CreatedAt              string
	UpdatedAt              string
}

// UpsertRaceResult inserts or merges a result row. Both the race and
// the driver must already exist.
func (s *Store) UpsertRaceResult(rr *RaceResult) error {
	if rr.RaceID <= 0 {
		return errdefs.Validationf("race_id", "must be positive, got %d", rr.RaceID)
	}
	if rr.DriverID <= 0 {
		return errdefs.Validationf("driver_id", "must be positive, got %d", rr.DriverID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var one int
	if err := s.db.QueryRow("SELECT 1 FROM races WHERE race_id = ?", rr.RaceID).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return errdefs.Integrityf("races", "race_id %d does not exist", rr.RaceID)
		}
		return fmt.Errorf("check race %d: %w", rr.RaceID, err)
	}
	if err := s.parentExists("drivers", "driver_id", rr.DriverID); err != nil {
		return err
	}

	now := nowString()
	_, err := s.db.Exec(`
		INSERT INTO race_results (race_id, driver_id, team, finish_position, starting_position,
			car_number, qualifying_time, fastest_lap, fastest_lap_number, average_lap, interval,
			laps_completed, laps_led, incident_points, race_points, bonus_points, penalty_points,
			total_points, fast_laps, quality_passes, closing_passes, total_passes,
			average_running_position, irating, status, car_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(race_id, driver_id) DO UPDATE SET
			team = COALESCE(excluded.team, race_results.team),
			finish_position = COALESCE(excluded.finish_position, race_results.finish_position),
			starting_position = COALESCE(excluded.starting_position, race_results.starting_position),
			car_number = COALESCE(excluded.car_number, race_results.car_number),
			qualifying_time = COALESCE(excluded.qualifying_time, race_results.qualifying_time),
			fastest_lap = COALESCE(excluded.fastest_lap, race_results.fastest_lap),
			fastest_lap_number = COALESCE(excluded.fastest_lap_number, race_results.fastest_lap_number),
			average_lap = COALESCE(excluded.average_lap, race_results.average_lap),
			interval = COALESCE(excluded.interval, race_results.interval),
			laps_completed = COALESCE(excluded.laps_completed, race_results.laps_completed),
			laps_led = COALESCE(excluded.laps_led, race_results.laps_led),
			incident_points = COALESCE(excluded.incident_points, race_results.incident_points),
			race_points = COALESCE(excluded.race_points, race_results.race_points),
			bonus_points = COALESCE(excluded.bonus_points, race_results.bonus_points),
			penalty_points = COALESCE(excluded.penalty_points, race_results.penalty_points),
			total_points = COALESCE(excluded.total_points, race_results.total_points),
			fast_laps = COALESCE(excluded.fast_laps, race_results.fast_laps),
			quality_passes = COALESCE(excluded.quality_passes, race_results.quality_passes),
			closing_passes = COALESCE(excluded.closing_passes, race_results.closing_passes),
			total_passes = COALESCE(excluded.total_passes, race_results.total_passes),
			average_running_position = COALESCE(excluded.average_running_position, race_results.average_running_position),
			irating = COALESCE(excluded.irating, race_results.irating),
			status = COALESCE(excluded.status, race_results.status),
			car_id = COALESCE(excluded.car_id, race_results.car_id),
			updated_at = excluded.updated_at`,
		rr.RaceID, rr.DriverID, rr.Team, rr.FinishPosition, rr.StartingPosition,
		rr.CarNumber, rr.QualifyingTime, rr.FastestLap, rr.FastestLapNumber, rr.AverageLap, rr.Interval,
		rr.LapsCompleted, rr.LapsLed, rr.IncidentPoints, rr.RacePoints, rr.BonusPoints, rr.PenaltyPoints,
		rr.TotalPoints, rr.FastLaps, rr.QualityPasses, rr.ClosingPasses, rr.TotalPasses,
		rr.AverageRunningPosition, rr.IRating, rr.Status, rr.CarID, now, now)
	if err != nil {
		return fmt.Errorf("upsert result race=%d driver=%d: %w", rr.RaceID, rr.DriverID, err)
	}
	return nil
}

// GetRaceResults lists a race's results in finish-position order.
func (s *Store) GetRaceResults(raceID int64) ([]*RaceResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryResults(resultSelect+" WHERE race_id = ? ORDER BY finish_position", raceID)
}

// GetDriverResults lists every result for a driver, newest race first.
func (s *Store) GetDriverResults(driverID int) ([]*RaceResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryResults(resultSelect+" WHERE driver_id = ? ORDER BY race_id DESC", driverID)
}

func (s *Store) queryResults(query string, args ...any) ([]*RaceResult, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []*RaceResult
	for rows.Next() {
		rr, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

const resultSelect = `
	SELECT result_id, race_id, driver_id, team, finish_position, starting_position,
		car_number, qualifying_time, fastest_lap, fastest_lap_number, average_lap, interval,
		laps_completed, laps_led, incident_points, race_points, bonus_points, penalty_points,
		total_points, fast_laps, quality_passes, closing_passes, total_passes,
		average_running_position, irating, status, car_id, created_at, updated_at
	FROM race_results`

func scanResult(r rowScanner) (*RaceResult, error) {
	var rr RaceResult
	err := r.Scan(&rr.ResultID, &rr.RaceID, &rr.DriverID, &rr.Team, &rr.FinishPosition, &rr.StartingPosition,
		&rr.CarNumber, &rr.QualifyingTime, &rr.FastestLap, &rr.FastestLapNumber, &rr.AverageLap, &rr.Interval,
		&rr.LapsCompleted, &rr.LapsLed, &rr.IncidentPoints, &rr.RacePoints, &rr.BonusPoints, &rr.PenaltyPoints,
		&rr.TotalPoints, &rr.FastLaps, &rr.QualityPasses, &rr.ClosingPasses, &rr.TotalPasses,
		&rr.AverageRunningPosition, &rr.IRating, &rr.Status, &rr.CarID, &rr.CreatedAt, &rr.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan result: %w", err)
	}
	return &rr, nil
}

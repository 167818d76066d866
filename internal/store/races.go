package store

import (
	"database/sql"
	"fmt"

	"gridcrawl/internal/errdefs"
)

// Race belongs to one season. ScheduleID is the site's external id;
// RaceID is the local surrogate key. All statistics and weather fields
// are optional and merged on upsert.
type Race struct {
	RaceID              int64
	ScheduleID          int
	SeasonID            int
	RaceNumber          *int
	EventName           *string
	EventTime           *string
	TrackID             *int
	TrackConfigID       *int
	TrackName           *string
	TrackType           *string
	TrackLength         *float64
	PlannedLaps         *int
	PointsRace          *bool
	OffWeek             *bool
	NightRace           *bool
	PlayoffRace         *bool
	RaceDurationMinutes *int
	TotalLaps           *int
	Leaders             *int
	LeadChanges         *int
	Cautions            *int
	CautionLaps         *int
	NumDrivers          *int
	WeatherType         *string
	CloudConditions     *string
	TemperatureF        *int
	HumidityPct         *int
	FogPct              *int
	WindSpeed           *string
	WindDir             *string
	Status              *string
	URL                 string
	IsComplete          bool
	ScrapedAt           string
	CreatedAt           string
	UpdatedAt           string
}

// UpsertRace inserts or merges a race row keyed by schedule id and
// returns the surrogate race id. The completion flag is sticky: once
// true it is never cleared by a later write.
func (s *Store) UpsertRace(r *Race) (int64, error) {
	if err := requireFields("races", map[string]string{
		"url":        r.URL,
		"scraped_at": r.ScrapedAt,
	}); err != nil {
		return 0, err
	}
	if r.ScheduleID <= 0 {
		return 0, errdefs.Validationf("schedule_id", "must be positive, got %d", r.ScheduleID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.parentExists("seasons", "season_id", r.SeasonID); err != nil {
		return 0, err
	}

	now := nowString()
	_, err := s.db.Exec(`
		INSERT INTO races (schedule_id, season_id, race_number, event_name, event_time,
			track_id, track_config_id, track_name, track_type, track_length, planned_laps,
			points_race, off_week, night_race, playoff_race,
			race_duration_minutes, total_laps, leaders, lead_changes, cautions, caution_laps,
			num_drivers, weather_type, cloud_conditions, temperature_f, humidity_pct, fog_pct,
			wind_speed, wind_dir, status, url, is_complete, scraped_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(schedule_id) DO UPDATE SET
			season_id = excluded.season_id,
			race_number = COALESCE(excluded.race_number, races.race_number),
			event_name = COALESCE(excluded.event_name, races.event_name),
			event_time = COALESCE(excluded.event_time, races.event_time),
			track_id = COALESCE(excluded.track_id, races.track_id),
			track_config_id = COALESCE(excluded.track_config_id, races.track_config_id),
			track_name = COALESCE(excluded.track_name, races.track_name),
			track_type = COALESCE(excluded.track_type, races.track_type),
			track_length = COALESCE(excluded.track_length, races.track_length),
			planned_laps = COALESCE(excluded.planned_laps, races.planned_laps),
			points_race = COALESCE(excluded.points_race, races.points_race),
			off_week = COALESCE(excluded.off_week, races.off_week),
			night_race = COALESCE(excluded.night_race, races.night_race),
			playoff_race = COALESCE(excluded.playoff_race, races.playoff_race),
			race_duration_minutes = COALESCE(excluded.race_duration_minutes, races.race_duration_minutes),
			total_laps = COALESCE(excluded.total_laps, races.total_laps),
			leaders = COALESCE(excluded.leaders, races.leaders),
			lead_changes = COALESCE(excluded.lead_changes, races.lead_changes),
			cautions = COALESCE(excluded.cautions, races.cautions),
			caution_laps = COALESCE(excluded.caution_laps, races.caution_laps),
			num_drivers = COALESCE(excluded.num_drivers, races.num_drivers),
			weather_type = COALESCE(excluded.weather_type, races.weather_type),
			cloud_conditions = COALESCE(excluded.cloud_conditions, races.cloud_conditions),
			temperature_f = COALESCE(excluded.temperature_f, races.temperature_f),
			humidity_pct = COALESCE(excluded.humidity_pct, races.humidity_pct),
			fog_pct = COALESCE(excluded.fog_pct, races.fog_pct),
			wind_speed = COALESCE(excluded.wind_speed, races.wind_speed),
			wind_dir = COALESCE(excluded.wind_dir, races.wind_dir),
			status = COALESCE(excluded.status, races.status),
			url = excluded.url,
			is_complete = MAX(excluded.is_complete, races.is_complete),
			scraped_at = MAX(excluded.scraped_at, races.scraped_at),
			updated_at = excluded.updated_at`,
		r.ScheduleID, r.SeasonID, r.RaceNumber, r.EventName, r.EventTime,
		r.TrackID, r.TrackConfigID, r.TrackName, r.TrackType, r.TrackLength, r.PlannedLaps,
		boolPtr(r.PointsRace), boolPtr(r.OffWeek), boolPtr(r.NightRace), boolPtr(r.PlayoffRace),
		r.RaceDurationMinutes, r.TotalLaps, r.Leaders, r.LeadChanges, r.Cautions, r.CautionLaps,
		r.NumDrivers, r.WeatherType, r.CloudConditions, r.TemperatureF, r.HumidityPct, r.FogPct,
		r.WindSpeed, r.WindDir, r.Status, r.URL, boolInt(r.IsComplete), r.ScrapedAt, now, now)
	if err != nil {
		return 0, fmt.Errorf("upsert race %d: %w", r.ScheduleID, err)
	}

	var raceID int64
	if err := s.db.QueryRow("SELECT race_id FROM races WHERE schedule_id = ?", r.ScheduleID).Scan(&raceID); err != nil {
		return 0, fmt.Errorf("lookup race id for schedule %d: %w", r.ScheduleID, err)
	}
	return raceID, nil
}

// GetRaceByScheduleID returns the race row or nil when absent.
func (s *Store) GetRaceByScheduleID(scheduleID int) (*Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanRace(s.db.QueryRow(raceSelect+" WHERE schedule_id = ?", scheduleID))
}

// GetRacesBySeason lists a season's races ordered by schedule id.
func (s *Store) GetRacesBySeason(seasonID int) ([]*Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryRaces(raceSelect+" WHERE season_id = ? ORDER BY schedule_id", seasonID)
}

// GetIncompleteRaces lists races whose completion flag is unset,
// ordered by schedule id. Used by maintenance passes.
func (s *Store) GetIncompleteRaces() ([]*Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryRaces(raceSelect + " WHERE is_complete = 0 ORDER BY schedule_id")
}

func (s *Store) queryRaces(query string, args ...any) ([]*Race, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query races: %w", err)
	}
	defer rows.Close()

	var out []*Race
	for rows.Next() {
		r, err := scanRace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const raceSelect = `
	SELECT race_id, schedule_id, season_id, race_number, event_name, event_time,
		track_id, track_config_id, track_name, track_type, track_length, planned_laps,
		points_race, off_week, night_race, playoff_race,
		race_duration_minutes, total_laps, leaders, lead_changes, cautions, caution_laps,
		num_drivers, weather_type, cloud_conditions, temperature_f, humidity_pct, fog_pct,
		wind_speed, wind_dir, status, url, is_complete, scraped_at, created_at, updated_at
	FROM races`

func scanRace(r rowScanner) (*Race, error) {
	var rc Race
	var points, off, night, playoff *int
	var complete int
	err := r.Scan(&rc.RaceID, &rc.ScheduleID, &rc.SeasonID, &rc.RaceNumber, &rc.EventName, &rc.EventTime,
		&rc.TrackID, &rc.TrackConfigID, &rc.TrackName, &rc.TrackType, &rc.TrackLength, &rc.PlannedLaps,
		&points, &off, &night, &playoff,
		&rc.RaceDurationMinutes, &rc.TotalLaps, &rc.Leaders, &rc.LeadChanges, &rc.Cautions, &rc.CautionLaps,
		&rc.NumDrivers, &rc.WeatherType, &rc.CloudConditions, &rc.TemperatureF, &rc.HumidityPct, &rc.FogPct,
		&rc.WindSpeed, &rc.WindDir, &rc.Status, &rc.URL, &complete, &rc.ScrapedAt, &rc.CreatedAt, &rc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan race: %w", err)
	}
	rc.PointsRace = intToBoolPtr(points)
	rc.OffWeek = intToBoolPtr(off)
	rc.NightRace = intToBoolPtr(night)
	rc.PlayoffRace = intToBoolPtr(playoff)
	rc.IsComplete = complete != 0
	return &rc, nil
}

func boolPtr(b *bool) *int {
	if b == nil {
		return nil
	}
	v := 0
	if *b {
		v = 1
	}
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBoolPtr(v *int) *bool {
	if v == nil {
		return nil
	}
	b := *v != 0
	return &b
}

package store

// schemaDDL creates the nine tables and their indexes. External ids
// are primary keys; races carry a surrogate id plus a unique schedule
// id. URL uniqueness backs the caching query on every entity table.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS leagues (
	league_id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	url TEXT NOT NULL UNIQUE,
	scraped_at TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS series (
	series_id INTEGER PRIMARY KEY,
	league_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	description TEXT,
	created_date TEXT,
	num_seasons INTEGER,
	url TEXT NOT NULL UNIQUE,
	scraped_at TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY (league_id) REFERENCES leagues(league_id)
);

CREATE TABLE IF NOT EXISTS seasons (
	season_id INTEGER PRIMARY KEY,
	series_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	status TEXT,
	url TEXT NOT NULL UNIQUE,
	scraped_at TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY (series_id) REFERENCES series(series_id)
);

CREATE TABLE IF NOT EXISTS teams (
	team_id INTEGER PRIMARY KEY,
	league_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	driver_count INTEGER,
	url TEXT,
	scraped_at TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY (league_id) REFERENCES leagues(league_id)
);

CREATE TABLE IF NOT EXISTS drivers (
	driver_id INTEGER PRIMARY KEY,
	league_id INTEGER NOT NULL,
	team_id INTEGER,
	name TEXT NOT NULL,
	first_name TEXT,
	last_name TEXT,
	car_numbers TEXT,
	primary_number TEXT,
	club TEXT,
	irating INTEGER,
	safety_rating REAL,
	license_class TEXT,
	url TEXT NOT NULL UNIQUE,
	scraped_at TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY (league_id) REFERENCES leagues(league_id),
	FOREIGN KEY (team_id) REFERENCES teams(team_id)
);

CREATE TABLE IF NOT EXISTS races (
	race_id INTEGER PRIMARY KEY AUTOINCREMENT,
	schedule_id INTEGER NOT NULL UNIQUE,
	season_id INTEGER NOT NULL,
	race_number INTEGER,
	event_name TEXT,
	event_time TEXT,
	track_id INTEGER,
	track_config_id INTEGER,
	track_name TEXT,
	track_type TEXT,
	track_length REAL,
	planned_laps INTEGER,
	points_race INTEGER,
	off_week INTEGER,
	night_race INTEGER,
	playoff_race INTEGER,
	race_duration_minutes INTEGER,
	total_laps INTEGER,
	leaders INTEGER,
	lead_changes INTEGER,
	cautions INTEGER,
	caution_laps INTEGER,
	num_drivers INTEGER,
	weather_type TEXT,
	cloud_conditions TEXT,
	temperature_f INTEGER,
	humidity_pct INTEGER,
	fog_pct INTEGER,
	wind_speed TEXT,
	wind_dir TEXT,
	status TEXT,
	url TEXT NOT NULL UNIQUE,
	is_complete INTEGER NOT NULL DEFAULT 0,
	scraped_at TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY (season_id) REFERENCES seasons(season_id)
);

CREATE TABLE IF NOT EXISTS race_results (
	result_id INTEGER PRIMARY KEY AUTOINCREMENT,
	race_id INTEGER NOT NULL,
	driver_id INTEGER NOT NULL,
	team TEXT,
	finish_position INTEGER,
	starting_position INTEGER,
	car_number TEXT,
	qualifying_time TEXT,
	fastest_lap TEXT,
	fastest_lap_number INTEGER,
	average_lap TEXT,
	interval TEXT,
	laps_completed INTEGER,
	laps_led INTEGER,
	incident_points INTEGER,
	race_points INTEGER,
	bonus_points INTEGER,
	penalty_points INTEGER,
	total_points INTEGER,
	fast_laps INTEGER,
	quality_passes INTEGER,
	closing_passes INTEGER,
	total_passes INTEGER,
	average_running_position REAL,
	irating INTEGER,
	status TEXT,
	car_id INTEGER,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY (race_id) REFERENCES races(race_id),
	FOREIGN KEY (driver_id) REFERENCES drivers(driver_id),
	UNIQUE(race_id, driver_id)
);

CREATE TABLE IF NOT EXISTS scrape_log (
	log_id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_type TEXT NOT NULL CHECK(entity_type IN ('league','series','season','race','driver','team','result')),
	entity_id INTEGER,
	entity_url TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('success','failed','skipped')),
	error_message TEXT,
	duration_ms INTEGER,
	run_id TEXT,
	timestamp TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_alerts (
	alert_id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_type TEXT NOT NULL,
	alert_type TEXT NOT NULL,
	details TEXT,
	url TEXT,
	resolved INTEGER NOT NULL DEFAULT 0,
	timestamp TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_series_league ON series(league_id);
CREATE INDEX IF NOT EXISTS idx_seasons_series ON seasons(series_id);
CREATE INDEX IF NOT EXISTS idx_teams_league ON teams(league_id);
CREATE INDEX IF NOT EXISTS idx_drivers_league ON drivers(league_id);
CREATE INDEX IF NOT EXISTS idx_drivers_team ON drivers(team_id);
CREATE INDEX IF NOT EXISTS idx_races_season ON races(season_id);
CREATE INDEX IF NOT EXISTS idx_races_schedule ON races(schedule_id);
CREATE INDEX IF NOT EXISTS idx_results_race ON race_results(race_id);
CREATE INDEX IF NOT EXISTS idx_results_driver ON race_results(driver_id);
CREATE INDEX IF NOT EXISTS idx_results_finish ON race_results(finish_position);
CREATE INDEX IF NOT EXISTS idx_scrape_log_ts ON scrape_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_schema_alerts_ts ON schema_alerts(timestamp);
`

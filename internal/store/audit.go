package store

import (
	"fmt"

	"gridcrawl/internal/errdefs"
)

// Scrape outcomes accepted by LogScrape.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

var validOutcomes = map[string]bool{
	OutcomeSuccess: true,
	OutcomeFailed:  true,
	OutcomeSkipped: true,
}

var validLogKinds = map[string]bool{
	"league": true, "series": true, "season": true,
	"race": true, "driver": true, "team": true, "result": true,
}

// ScrapeEntry is one appended audit row.
type ScrapeEntry struct {
	EntityKind string
	EntityID   *int
	URL        string
	Outcome    string
	Error      *string
	DurationMs *int64
	RunID      string
}

// LogScrape appends one row to the scrape audit trail. Enum domains
// are validated; unknown values are rejected.
func (s *Store) LogScrape(e ScrapeEntry) error {
	if !validLogKinds[e.EntityKind] {
		return errdefs.Validationf("entity_kind", "unknown kind %q", e.EntityKind)
	}
	if !validOutcomes[e.Outcome] {
		return errdefs.Validationf("outcome", "unknown outcome %q", e.Outcome)
	}
	if e.URL == "" {
		return errdefs.Validationf("url", "required for scrape log")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO scrape_log (entity_type, entity_id, entity_url, status, error_message, duration_ms, run_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EntityKind, e.EntityID, e.URL, e.Outcome, e.Error, e.DurationMs, e.RunID, nowString())
	if err != nil {
		return fmt.Errorf("log scrape %s %s: %w", e.EntityKind, e.URL, err)
	}
	return nil
}

// ScrapeLogRow is a persisted audit entry.
type ScrapeLogRow struct {
	LogID      int64
	EntityKind string
	EntityID   *int
	URL        string
	Outcome    string
	Error      *string
	DurationMs *int64
	RunID      *string
	Timestamp  string
}

// GetScrapeLog lists audit rows for a URL, oldest first.
func (s *Store) GetScrapeLog(url string) ([]*ScrapeLogRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT log_id, entity_type, entity_id, entity_url, status, error_message, duration_ms, run_id, timestamp
		FROM scrape_log WHERE entity_url = ? ORDER BY log_id`, url)
	if err != nil {
		return nil, fmt.Errorf("query scrape log: %w", err)
	}
	defer rows.Close()

	var out []*ScrapeLogRow
	for rows.Next() {
		var r ScrapeLogRow
		if err := rows.Scan(&r.LogID, &r.EntityKind, &r.EntityID, &r.URL, &r.Outcome,
			&r.Error, &r.DurationMs, &r.RunID, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan scrape log: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// SchemaAlert is a diagnostic row recorded when a page fails its
// structural contract.
type SchemaAlert struct {
	AlertID    int64
	EntityKind string
	AlertKind  string
	Details    string
	URL        string
	Resolved   bool
	Timestamp  string
}

// AddSchemaAlert appends a schema drift diagnostic.
func (s *Store) AddSchemaAlert(entityKind, alertKind, details, url string) error {
	if entityKind == "" || alertKind == "" {
		return errdefs.Validationf("alert", "entity_kind and alert_kind are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO schema_alerts (entity_type, alert_type, details, url, resolved, timestamp)
		VALUES (?, ?, ?, ?, 0, ?)`,
		entityKind, alertKind, details, url, nowString())
	if err != nil {
		return fmt.Errorf("add schema alert %s/%s: %w", entityKind, alertKind, err)
	}
	return nil
}

// GetUnresolvedAlerts lists open schema alerts, oldest first.
func (s *Store) GetUnresolvedAlerts() ([]*SchemaAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT alert_id, entity_type, alert_type, COALESCE(details, ''), COALESCE(url, ''), resolved, timestamp
		FROM schema_alerts WHERE resolved = 0 ORDER BY alert_id`)
	if err != nil {
		return nil, fmt.Errorf("query schema alerts: %w", err)
	}
	defer rows.Close()

	var out []*SchemaAlert
	for rows.Next() {
		var a SchemaAlert
		var resolved int
		if err := rows.Scan(&a.AlertID, &a.EntityKind, &a.AlertKind, &a.Details, &a.URL, &resolved, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan schema alert: %w", err)
		}
		a.Resolved = resolved != 0
		out = append(out, &a)
	}
	return out, rows.Err()
}

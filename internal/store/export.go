package store

import (
	"database/sql"
	"fmt"

	"gridcrawl/internal/errdefs"
)

// ExportTables lists every table the dump API exposes, in dependency
// order so downstream loaders can replay files top-down.
var ExportTables = []string{
	"leagues", "series", "seasons", "teams", "drivers",
	"races", "race_results", "scrape_log", "schema_alerts",
}

var exportable = func() map[string]bool {
	m := make(map[string]bool, len(ExportTables))
	for _, t := range ExportTables {
		m[t] = true
	}
	return m
}()

// TableColumn describes one column of a dumped table.
type TableColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableColumns returns a table's declared column names and SQLite
// types in schema order.
func (s *Store) TableColumns(table string) ([]TableColumn, error) {
	if !exportable[table] {
		return nil, errdefs.Validationf("table", "unknown table %q", table)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var out []TableColumn
	for rows.Next() {
		var cid int
		var col TableColumn
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info %s: %w", table, err)
		}
		out = append(out, col)
	}
	return out, rows.Err()
}

// DumpTable streams a table's rows as strings in schema column order,
// invoking fn once per row. NULLs come through as empty strings.
func (s *Store) DumpTable(table string, fn func(row []string) error) error {
	cols, err := s.TableColumns(table)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(fmt.Sprintf("SELECT * FROM %s", table))
	if err != nil {
		return fmt.Errorf("dump %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		raw := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan %s row: %w", table, err)
		}
		values := make([]string, len(cols))
		for i, v := range raw {
			if v.Valid {
				values[i] = v.String
			}
		}
		if err := fn(values); err != nil {
			return err
		}
	}
	return rows.Err()
}

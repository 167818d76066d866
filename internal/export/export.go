// Package export materializes the store as one CSV file per table plus
// a JSON manifest declaring each table's column types, so downstream
// analysis tools can load the dump without probing the database.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"gridcrawl/internal/store"
)

// Manifest is the typed-column index written next to the CSV files.
type Manifest struct {
	GeneratedAt string                         `json:"generated_at"`
	Database    string                         `json:"database"`
	Tables      map[string][]store.TableColumn `json:"tables"`
}

// Summary reports what one run wrote.
type Summary struct {
	Files    []string
	RowCount map[string]int
}

// Exporter writes dumps of one store.
type Exporter struct {
	store  *store.Store
	logger *zap.Logger
}

// New builds an exporter over an open store.
func New(st *store.Store, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: st, logger: logger}
}

// Run dumps every table into dir, creating it if needed. Files are
// <table>.csv with a header row, plus manifest.json.
func (e *Exporter) Run(dir, generatedAt string) (*Summary, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	summary := &Summary{RowCount: map[string]int{}}
	manifest := &Manifest{
		GeneratedAt: generatedAt,
		Database:    e.store.Path(),
		Tables:      map[string][]store.TableColumn{},
	}

	for _, table := range store.ExportTables {
		cols, err := e.store.TableColumns(table)
		if err != nil {
			return nil, err
		}
		manifest.Tables[table] = cols

		path := filepath.Join(dir, table+".csv")
		n, err := e.writeTable(path, table, cols)
		if err != nil {
			return nil, err
		}
		summary.Files = append(summary.Files, path)
		summary.RowCount[table] = n
		e.logger.Debug("table exported",
			zap.String("table", table),
			zap.Int("rows", n))
	}

	manifestPath := filepath.Join(dir, "manifest.json")
	if err := writeManifest(manifestPath, manifest); err != nil {
		return nil, err
	}
	summary.Files = append(summary.Files, manifestPath)

	e.logger.Info("export finished",
		zap.String("dir", dir),
		zap.Int("files", len(summary.Files)))
	return summary, nil
}

func (e *Exporter) writeTable(path, table string, cols []store.TableColumn) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	if err := w.Write(header); err != nil {
		return 0, fmt.Errorf("write %s header: %w", table, err)
	}

	count := 0
	err = e.store.DumpTable(table, func(row []string) error {
		count++
		return w.Write(row)
	})
	if err != nil {
		return 0, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flush %s: %w", table, err)
	}
	return count, f.Close()
}

func writeManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

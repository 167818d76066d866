// Package schema validates that fetched pages still match the
// structural contract declared for their entity kind. It is pure:
// no fetching, no state beyond the catalogue.
package schema

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"gridcrawl/internal/errdefs"
	"gridcrawl/internal/htmlutil"
)

// PageKind names a page contract in the catalogue.
type PageKind string

const (
	KindLeagueSeries  PageKind = "league_series"
	KindSeriesSeasons PageKind = "series_seasons"
	KindRaceResults   PageKind = "race_results_table"
	KindDriverProfile PageKind = "driver_profile"
	KindTeamsPage     PageKind = "teams_page"
)

// contract declares the fingerprints a well-formed page must carry.
type contract struct {
	entityKind      string
	markers         []*regexp.Regexp
	requiredFields  []string
	requiredColumns []string
}

// The catalogue is closed; unknown kinds are a caller bug, not drift.
var catalogue = map[PageKind]contract{
	KindLeagueSeries: {
		entityKind: "league",
		markers: []*regexp.Regexp{
			regexp.MustCompile(`series\.push\(\{`),
			regexp.MustCompile(`id\s*:\s*\d+`),
			regexp.MustCompile(`name\s*:\s*["']`),
		},
		requiredFields: []string{"id", "name"},
	},
	KindSeriesSeasons: {
		entityKind: "series",
		markers: []*regexp.Regexp{
			regexp.MustCompile(`seasons\s*=\s*\[`),
			regexp.MustCompile(`\{\s*id\s*:\s*\d+`),
			regexp.MustCompile(`n\s*:\s*["']`),
			regexp.MustCompile(`scrt\s*:\s*\d+`),
			regexp.MustCompile(`ns\s*:\s*\d+`),
			regexp.MustCompile(`nr\s*:\s*\d+`),
		},
		requiredFields: []string{"id", "n", "scrt", "ns", "nr"},
	},
	KindRaceResults: {
		entityKind:      "race",
		requiredColumns: []string{"Driver", "Position"},
	},
	KindDriverProfile: {
		entityKind: "driver",
		markers: []*regexp.Regexp{
			regexp.MustCompile(`driver_id\s*:\s*\d+|driver_id=\d+`),
		},
		requiredFields: []string{"driver_id"},
	},
	KindTeamsPage: {
		entityKind: "team",
		markers: []*regexp.Regexp{
			regexp.MustCompile(`driver_stats\.php`),
		},
	},
}

// EntityKind maps a page kind to the entity kind recorded on alerts.
func EntityKind(kind PageKind) string {
	if c, ok := catalogue[kind]; ok {
		return c.entityKind
	}
	return string(kind)
}

// ValidateMarkers checks that every declared marker pattern appears in
// the raw page text. Empty input always fails.
func ValidateMarkers(kind PageKind, raw string) error {
	c, ok := catalogue[kind]
	if !ok {
		return errdefs.Validationf("page_kind", "unknown kind %q", kind)
	}
	if strings.TrimSpace(raw) == "" {
		return &errdefs.SchemaDriftError{
			EntityKind: c.entityKind,
			AlertKind:  "empty_page",
			Detail:     "page content is empty",
		}
	}
	for _, marker := range c.markers {
		if !marker.MatchString(raw) {
			return &errdefs.SchemaDriftError{
				EntityKind: c.entityKind,
				AlertKind:  "missing_marker",
				Detail:     "expected pattern not found: " + marker.String(),
			}
		}
	}
	return nil
}

// ValidateFields checks that every declared required field of an
// extracted mapping is present and non-nil. A field explicitly set to
// nil fails the same way as an absent one.
func ValidateFields(kind PageKind, extracted map[string]any) error {
	c, ok := catalogue[kind]
	if !ok {
		return errdefs.Validationf("page_kind", "unknown kind %q", kind)
	}
	for _, field := range c.requiredFields {
		v, present := extracted[field]
		if !present || v == nil {
			return &errdefs.SchemaDriftError{
				EntityKind: c.entityKind,
				AlertKind:  "missing_field",
				Detail:     "required field absent or null: " + field,
			}
		}
	}
	return nil
}

// ValidateTable checks a results table's header row: it must exist,
// expose at least the declared column count, and contain every
// required header name case-insensitively. Extra columns are fine.
func ValidateTable(kind PageKind, table *html.Node) error {
	c, ok := catalogue[kind]
	if !ok {
		return errdefs.Validationf("page_kind", "unknown kind %q", kind)
	}
	if table == nil {
		return &errdefs.SchemaDriftError{
			EntityKind: c.entityKind,
			AlertKind:  "missing_table",
			Detail:     "results table not found",
		}
	}

	headers := htmlutil.TableHeaders(table)
	if len(headers) == 0 {
		return &errdefs.SchemaDriftError{
			EntityKind: c.entityKind,
			AlertKind:  "missing_header",
			Detail:     "table has no header row",
		}
	}
	if len(headers) < len(c.requiredColumns) {
		return &errdefs.SchemaDriftError{
			EntityKind: c.entityKind,
			AlertKind:  "column_count",
			Detail:     "fewer columns than required",
		}
	}

	lowered := make(map[string]bool, len(headers))
	for _, h := range headers {
		lowered[strings.ToLower(strings.TrimSpace(h))] = true
	}
	for _, want := range c.requiredColumns {
		if !lowered[strings.ToLower(want)] {
			return &errdefs.SchemaDriftError{
				EntityKind: c.entityKind,
				AlertKind:  "missing_column",
				Detail:     "required column not found: " + want,
			}
		}
	}
	return nil
}

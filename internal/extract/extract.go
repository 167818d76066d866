// Package extract turns fetched pages into typed metadata and child
// references, one extractor per entity kind. Extractors never persist
// anything; the orchestrator owns all writes.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"gridcrawl/internal/errdefs"
	"gridcrawl/internal/fetch"
	"gridcrawl/internal/htmlutil"
)

// Fetcher is the slice of the fetch gate extractors depend on.
// *fetch.Gate satisfies it; tests substitute a stub.
type Fetcher interface {
	FetchStatic(ctx context.Context, url string) (*fetch.Document, error)
	FetchRendered(ctx context.Context, url string) (*fetch.Document, error)
}

// idFromURL parses the integer value of a query parameter out of a
// URL, e.g. league_id from league_series.php?league_id=1558.
func idFromURL(url, param string) (int, error) {
	re := regexp.MustCompile(regexp.QuoteMeta(param) + `=(\d+)`)
	m := re.FindStringSubmatch(url)
	if m == nil {
		return 0, errdefs.Validationf(param, "not found in URL %s", url)
	}
	id, err := strconv.Atoi(m[1])
	if err != nil || id <= 0 {
		return 0, errdefs.Validationf(param, "invalid value in URL %s", url)
	}
	return id, nil
}

// fallbackName resolves a display name with the documented chain:
// first heading, then the page title with known separators stripped,
// finally the provided constant.
func fallbackName(root *html.Node, fallback string) string {
	if h1 := htmlutil.Find(root, "h1", nil); h1 != nil {
		if name := htmlutil.Text(h1); name != "" {
			return name
		}
	}
	if title := htmlutil.Find(root, "title", nil); title != nil {
		text := htmlutil.Text(title)
		for _, sep := range []string{" - ", ": "} {
			if idx := strings.Index(text, sep); idx > 0 {
				if name := strings.TrimSpace(text[:idx]); name != "" {
					return name
				}
			}
		}
		if text != "" {
			return text
		}
	}
	return fallback
}

// ParseDriverName splits a results-page display name into first and
// last. "Doe, John Jr." yields ("John Jr.", "Doe"); "John Doe" yields
// ("John", "Doe"); blank input yields two nils.
func ParseDriverName(name string) (first, last *string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	if idx := strings.Index(name, ","); idx >= 0 {
		l := strings.TrimSpace(name[:idx])
		f := strings.TrimSpace(name[idx+1:])
		return strOrNil(f), strOrNil(l)
	}
	fields := strings.Fields(name)
	if len(fields) == 1 {
		return strOrNil(fields[0]), nil
	}
	f := fields[0]
	l := strings.Join(fields[1:], " ")
	return strOrNil(f), strOrNil(l)
}

func strOrNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// cellText returns the trimmed text of a table cell with blank and "-"
// normalized to absence.
func cellText(n *html.Node) *string {
	text := strings.TrimSpace(htmlutil.Text(n))
	if text == "" || text == "-" {
		return nil
	}
	return &text
}

func cellInt(n *html.Node) *int {
	s := cellText(n)
	if s == nil {
		return nil
	}
	v, err := strconv.Atoi(strings.ReplaceAll(*s, ",", ""))
	if err != nil {
		return nil
	}
	return &v
}

func cellFloat(n *html.Node) *float64 {
	s := cellText(n)
	if s == nil {
		return nil
	}
	v, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// tzAbbrevZones maps US timezone abbreviations to canonical zones. A
// host abbreviation outside this table falls back to UTC.
var tzAbbrevZones = map[string]string{
	"EST": "America/New_York",
	"EDT": "America/New_York",
	"CST": "America/Chicago",
	"CDT": "America/Chicago",
	"MST": "America/Denver",
	"MDT": "America/Denver",
	"PST": "America/Los_Angeles",
	"PDT": "America/Los_Angeles",
}

// hostLocation resolves the process host's timezone through the
// abbreviation table, defaulting to UTC.
func hostLocation() *time.Location {
	abbrev, _ := time.Now().Zone()
	zone, ok := tzAbbrevZones[abbrev]
	if !ok {
		return time.UTC
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// scheduleTimeLayouts are the date+time shapes seen on schedule pages.
var scheduleTimeLayouts = []string{
	"01/02/2006 3:04 PM",
	"01/02/2006 15:04",
	"2006-01-02 15:04",
	"Jan 2, 2006 3:04 PM",
}

// parseScheduleTime parses a schedule date+time pair in the host-local
// zone and normalizes it to UTC ISO-8601. Unparseable input yields nil.
func parseScheduleTime(date, clock string) *string {
	combined := strings.TrimSpace(date + " " + clock)
	if strings.TrimSpace(date) == "" {
		return nil
	}
	loc := hostLocation()
	for _, layout := range scheduleTimeLayouts {
		if t, err := time.ParseInLocation(layout, combined, loc); err == nil {
			s := t.UTC().Format("2006-01-02T15:04:05")
			return &s
		}
	}
	// Date without a usable clock still carries scheduling signal.
	for _, layout := range []string{"01/02/2006", "2006-01-02", "Jan 2, 2006"} {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(date), loc); err == nil {
			s := t.UTC().Format("2006-01-02T15:04:05")
			return &s
		}
	}
	return nil
}

// raceNumberFrom accepts a bare integer or the "Race N" pattern.
// Anything else reports no race number.
func raceNumberFrom(text string) *int {
	text = strings.TrimSpace(text)
	if n, err := strconv.Atoi(text); err == nil {
		return &n
	}
	m := regexp.MustCompile(`(?i)^race\s+(\d+)$`).FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, _ := strconv.Atoi(m[1])
	return &n
}

// absoluteURL resolves a page-relative href against the site root.
func absoluteURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), strings.TrimLeft(href, "/"))
}

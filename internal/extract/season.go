package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"gridcrawl/internal/errdefs"
	"gridcrawl/internal/htmlutil"
)

// SeasonMeta is the metadata harvested from a season schedule page.
type SeasonMeta struct {
	SeasonID int
	Name     string
	URL      string
}

// RaceRef is a race discovered on a season schedule.
type RaceRef struct {
	ScheduleID int
	RaceNumber int
	TrackHint  *string
	EventTime  *string
	URL        string
}

// SeasonResult is a season extraction: metadata plus race refs in
// schedule order.
type SeasonResult struct {
	Meta  SeasonMeta
	Races []RaceRef
}

var (
	seasonURLRe    = regexp.MustCompile(`season_schedule\.php\?season_id=\d+`)
	scheduleIDRe   = regexp.MustCompile(`schedule_id=(\d+)`)
	scheduleHrefRe = regexp.MustCompile(`schedule_id=\d+`)
)

// SeasonExtractor reads season schedule pages. Rendered fetch: the
// schedule links only exist after the page's scripts run.
type SeasonExtractor struct {
	gate    Fetcher
	baseURL string
	logger  *zap.Logger
}

// NewSeasonExtractor builds a season extractor over the shared gate.
func NewSeasonExtractor(gate Fetcher, baseURL string, logger *zap.Logger) *SeasonExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeasonExtractor{gate: gate, baseURL: baseURL, logger: logger}
}

// Extract fetches and parses a season schedule page.
func (e *SeasonExtractor) Extract(ctx context.Context, url string) (*SeasonResult, error) {
	if !seasonURLRe.MatchString(url) {
		return nil, errdefs.Validationf("url", "expected season_schedule.php?season_id=<id>, got %s", url)
	}
	seasonID, err := idFromURL(url, "season_id")
	if err != nil {
		return nil, err
	}

	doc, err := e.gate.FetchRendered(ctx, url)
	if err != nil {
		return nil, err
	}

	meta := SeasonMeta{
		SeasonID: seasonID,
		Name:     seasonName(doc.Root),
		URL:      url,
	}

	// The rendered dropdown of schedule links is preferred; the static
	// schedule table is the fallback when the dropdown came up empty.
	races := e.racesFromDropdown(doc.Root)
	if len(races) == 0 {
		races = e.racesFromTable(doc.Root)
	}

	e.logger.Debug("season extracted",
		zap.Int("season_id", seasonID),
		zap.Int("races", len(races)))
	return &SeasonResult{Meta: meta, Races: races}, nil
}

func seasonName(root *html.Node) string {
	name := fallbackName(root, "Unknown Season")
	return strings.TrimSuffix(name, " - Race Schedule")
}

// racesFromDropdown collects schedule links from the rendered race
// selector. Option labels carry the race number ("Race 4" or "4");
// entries without one are informational rows and dropped.
func (e *SeasonExtractor) racesFromDropdown(root *html.Node) []RaceRef {
	var out []RaceRef
	seen := map[int]bool{}

	sel := htmlutil.Find(root, "select", func(n *html.Node) bool {
		return htmlutil.HasClass(n, "race-select") || htmlutil.Attr(n, "id") == "raceSelect"
	})
	if sel == nil {
		return nil
	}
	for _, opt := range htmlutil.FindAll(sel, "option", nil) {
		href := htmlutil.Attr(opt, "value")
		m := scheduleIDRe.FindStringSubmatch(href)
		if m == nil {
			continue
		}
		scheduleID := mustAtoi(m[1])
		if seen[scheduleID] {
			continue
		}
		num := raceNumberFrom(htmlutil.Text(opt))
		if num == nil {
			continue
		}
		seen[scheduleID] = true
		out = append(out, RaceRef{
			ScheduleID: scheduleID,
			RaceNumber: *num,
			URL:        absoluteURL(e.baseURL, href),
		})
	}
	return out
}

// racesFromTable walks the static schedule table. Row shape: race
// number, date, time, then a track link carrying the schedule id.
func (e *SeasonExtractor) racesFromTable(root *html.Node) []RaceRef {
	table := htmlutil.Find(root, "table", func(n *html.Node) bool {
		return htmlutil.HasClass(n, "schedule-table")
	})
	if table == nil {
		table = htmlutil.Find(root, "table", nil)
	}
	if table == nil {
		return nil
	}

	var out []RaceRef
	seen := map[int]bool{}
	for _, cells := range htmlutil.TableRows(table) {
		var link *html.Node
		for _, cell := range cells {
			if link = htmlutil.Find(cell, "a", func(n *html.Node) bool {
				return scheduleHrefRe.MatchString(htmlutil.Attr(n, "href"))
			}); link != nil {
				break
			}
		}
		if link == nil {
			continue
		}
		href := htmlutil.Attr(link, "href")
		scheduleID := mustAtoi(scheduleIDRe.FindStringSubmatch(href)[1])
		if seen[scheduleID] {
			continue
		}

		num := raceNumberFrom(htmlutil.Text(cells[0]))
		if num == nil {
			// Off-weeks and notes rows have no race number.
			continue
		}

		ref := RaceRef{
			ScheduleID: scheduleID,
			RaceNumber: *num,
			URL:        absoluteURL(e.baseURL, href),
		}
		if track := htmlutil.Text(link); track != "" {
			ref.TrackHint = &track
		}
		if len(cells) >= 3 {
			date := htmlutil.Text(cells[1])
			clock := htmlutil.Text(cells[2])
			ref.EventTime = parseScheduleTime(date, clock)
		}
		seen[scheduleID] = true
		out = append(out, ref)
	}
	return out
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

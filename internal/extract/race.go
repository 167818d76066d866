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
	"gridcrawl/internal/jsparse"
	"gridcrawl/internal/schema"
)

// RaceMeta is everything harvested from one race page. Configuration
// and flags come from the embedded payload; realized statistics come
// from the session-details block and win on overlap.
type RaceMeta struct {
	ScheduleID          int
	EventName           *string
	RaceNumber          *int
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
	URL                 string
}

// ResultRow is one parsed results-table row. DriverID is only set
// when the name cell carried a driver profile anchor.
type ResultRow struct {
	FinishPosition   *int
	DriverName       string
	DriverID         *int
	DriverURL        *string
	CarNumber        *string
	LapsCompleted    *int
	Interval         *string
	LapsLed          *int
	TotalPoints      *int
	StartingPosition *int
	QualifyingTime   *string
	FastestLap       *string
	FastestLapNumber *int
	AverageLap       *string
	IncidentPoints   *int
	Status           *string
}

// RaceExtraction is a race extraction: metadata plus result rows in
// finish-position order.
type RaceExtraction struct {
	Meta    RaceMeta
	Results []ResultRow
}

var (
	raceURLRe  = regexp.MustCompile(`season_race\.php\?schedule_id=\d+`)
	driverIDRe = regexp.MustCompile(`driver_id=(\d+)`)
	durationRe = regexp.MustCompile(`(?i)(\d+)\s*minutes`)
	lapsRe     = regexp.MustCompile(`(?i)(\d+)\s+laps\b`)
	leadersRe  = regexp.MustCompile(`(?i)(\d+)\s+leaders?\b`)
	leadChgRe  = regexp.MustCompile(`(?i)(\d+)\s+lead\s+changes?`)
	cautionsRe = regexp.MustCompile(`(?i)(\d+)\s+cautions?\s*\((\d+)\s+laps\)`)
	driversRe  = regexp.MustCompile(`(?i)(\d+)\s+drivers?\b`)
	tempRe     = regexp.MustCompile(`(-?\d+)\s*°?\s*([CF])\b`)
	humidityRe = regexp.MustCompile(`(?i)humidity:?\s*(\d+)\s*%`)
	fogRe      = regexp.MustCompile(`(?i)fog:?\s*(\d+)\s*%`)
	windRe     = regexp.MustCompile(`(?i)wind:?\s*([NSEW]{1,3})\s*@?\s*(\d+\s*\w*)`)
	weatherRe  = regexp.MustCompile(`(?i)weather:?\s*(\w+)`)
)

// RaceExtractor reads race detail pages. Rendered fetch: the results
// table is populated dynamically.
type RaceExtractor struct {
	gate    Fetcher
	baseURL string
	logger  *zap.Logger
}

// NewRaceExtractor builds a race extractor over the shared gate.
func NewRaceExtractor(gate Fetcher, baseURL string, logger *zap.Logger) *RaceExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RaceExtractor{gate: gate, baseURL: baseURL, logger: logger}
}

// Extract fetches and parses a race page.
func (e *RaceExtractor) Extract(ctx context.Context, url string) (*RaceExtraction, error) {
	if !raceURLRe.MatchString(url) {
		return nil, errdefs.Validationf("url", "expected season_race.php?schedule_id=<id>, got %s", url)
	}
	scheduleID, err := idFromURL(url, "schedule_id")
	if err != nil {
		return nil, err
	}

	doc, err := e.gate.FetchRendered(ctx, url)
	if err != nil {
		return nil, err
	}

	table := htmlutil.Find(doc.Root, "table", func(n *html.Node) bool {
		return htmlutil.HasClass(n, "results-table")
	})
	if table == nil {
		table = htmlutil.Find(doc.Root, "table", nil)
	}
	if err := schema.ValidateTable(schema.KindRaceResults, table); err != nil {
		return nil, err
	}

	meta := RaceMeta{ScheduleID: scheduleID, URL: url}
	if name := fallbackName(doc.Root, ""); name != "" {
		meta.EventName = &name
	}

	// Configuration first, realized statistics overlaid on top.
	applyEmbeddedPayload(&meta, doc.Raw)
	applySessionDetails(&meta, doc.Root)

	results := e.parseResults(table)
	meta.fillNumDrivers(len(results))

	e.logger.Debug("race extracted",
		zap.Int("schedule_id", scheduleID),
		zap.Int("results", len(results)))
	return &RaceExtraction{Meta: meta, Results: results}, nil
}

func (m *RaceMeta) fillNumDrivers(count int) {
	if m.NumDrivers == nil && count > 0 {
		m.NumDrivers = &count
	}
}

// applyEmbeddedPayload reads the raceInfo = {...} object the page
// embeds for its own scripts. Authoritative for configuration, track
// identity and flags.
func applyEmbeddedPayload(m *RaceMeta, raw string) {
	obj := jsparse.ExtractObject(raw, "raceInfo")
	if obj == nil {
		return
	}
	if v, ok := obj.Int("race_number"); ok {
		m.RaceNumber = &v
	}
	if v, ok := obj.Str("event_name"); ok {
		m.EventName = &v
	}
	if v, ok := obj.Int("track_id"); ok {
		m.TrackID = &v
	}
	if v, ok := obj.Int("track_config_id"); ok {
		m.TrackConfigID = &v
	}
	if v, ok := obj.Str("track_name"); ok {
		m.TrackName = &v
	}
	if v, ok := obj.Str("track_type"); ok {
		m.TrackType = &v
	}
	if v, ok := obj.Str("track_length"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			m.TrackLength = &f
		}
	} else if v, ok := obj.Int("track_length"); ok {
		f := float64(v)
		m.TrackLength = &f
	}
	if v, ok := obj.Int("planned_laps"); ok {
		m.PlannedLaps = &v
	}
	m.PointsRace = objBool(obj, "points_race")
	m.OffWeek = objBool(obj, "off_week")
	m.NightRace = objBool(obj, "night_race")
	m.PlayoffRace = objBool(obj, "playoff_race")
}

func objBool(obj jsparse.Object, key string) *bool {
	switch v := obj[key].(type) {
	case bool:
		return &v
	case int64:
		b := v != 0
		return &b
	}
	return nil
}

// applySessionDetails parses the "session details" block: a stats
// segment and a weather segment separated by a line break.
func applySessionDetails(m *RaceMeta, root *html.Node) {
	block := htmlutil.Find(root, "div", func(n *html.Node) bool {
		return htmlutil.HasClass(n, "session-details")
	})
	if block == nil {
		return
	}

	stats, weather := splitSegments(block)
	applyStatsSegment(m, stats)
	applyWeatherSegment(m, weather)
}

// splitSegments renders the block and cuts it at the first line break
// element into the stats and weather halves.
func splitSegments(block *html.Node) (string, string) {
	rendered := htmlutil.Render(block)
	brRe := regexp.MustCompile(`(?i)<br\s*/?>`)
	parts := brRe.Split(rendered, 2)
	stats := htmlText(parts[0])
	weather := ""
	if len(parts) > 1 {
		weather = htmlText(parts[1])
	}
	return stats, weather
}

func htmlText(fragment string) string {
	root, err := htmlutil.Parse(fragment)
	if err != nil {
		return fragment
	}
	return htmlutil.Text(root)
}

func applyStatsSegment(m *RaceMeta, text string) {
	if v := firstInt(durationRe, text); v != nil {
		m.RaceDurationMinutes = v
	}
	if mm := cautionsRe.FindStringSubmatch(text); mm != nil {
		c, _ := strconv.Atoi(mm[1])
		cl, _ := strconv.Atoi(mm[2])
		m.Cautions = &c
		m.CautionLaps = &cl
		// Strip the cautions clause so its lap count cannot be
		// mistaken for the total.
		text = strings.Replace(text, mm[0], "", 1)
	}
	if v := firstInt(lapsRe, text); v != nil {
		m.TotalLaps = v
	}
	if v := firstInt(leadersRe, text); v != nil {
		m.Leaders = v
	}
	if v := firstInt(leadChgRe, text); v != nil {
		m.LeadChanges = v
	}
	if v := firstInt(driversRe, text); v != nil {
		m.NumDrivers = v
	}
}

func applyWeatherSegment(m *RaceMeta, text string) {
	if text == "" {
		return
	}
	if mm := weatherRe.FindStringSubmatch(text); mm != nil {
		m.WeatherType = &mm[1]
	}
	for _, sky := range []string{"Partly Cloudy", "Mostly Cloudy", "Overcast", "Clear"} {
		if strings.Contains(text, sky) {
			s := sky
			m.CloudConditions = &s
			break
		}
	}
	if mm := tempRe.FindStringSubmatch(text); mm != nil {
		deg, _ := strconv.Atoi(mm[1])
		if strings.EqualFold(mm[2], "C") {
			deg = deg*9/5 + 32
		}
		m.TemperatureF = &deg
	}
	if v := firstInt(humidityRe, text); v != nil {
		m.HumidityPct = v
	}
	if v := firstInt(fogRe, text); v != nil {
		m.FogPct = v
	}
	if mm := windRe.FindStringSubmatch(text); mm != nil {
		dir := strings.ToUpper(mm[1])
		speed := strings.TrimSpace(mm[2])
		m.WindDir = &dir
		m.WindSpeed = &speed
	}
}

func firstInt(re *regexp.Regexp, text string) *int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &v
}

// parseResults walks the results table positionally. Column order:
// position, driver, car number, laps, interval, laps led, points, then
// the extended columns some leagues expose: start, qualifying time,
// fastest lap, fastest lap number, average lap, incidents, status.
// Blank and "-" cells become absent fields. Rows with fewer than three
// cells are decorative and skipped.
func (e *RaceExtractor) parseResults(table *html.Node) []ResultRow {
	var out []ResultRow
	for _, cells := range htmlutil.TableRows(table) {
		if len(cells) < 3 {
			continue
		}
		row := ResultRow{FinishPosition: cellInt(cells[0])}
		if row.FinishPosition == nil {
			continue
		}

		driverCell := cells[1]
		if anchor := htmlutil.Find(driverCell, "a", nil); anchor != nil {
			row.DriverName = htmlutil.Text(anchor)
			href := htmlutil.Attr(anchor, "href")
			if m := driverIDRe.FindStringSubmatch(href); m != nil {
				id := mustAtoi(m[1])
				row.DriverID = &id
				full := absoluteURL(e.baseURL, href)
				row.DriverURL = &full
			}
		} else {
			row.DriverName = htmlutil.Text(driverCell)
		}
		if strings.TrimSpace(row.DriverName) == "" {
			continue
		}

		row.CarNumber = cellText(cells[2])
		assignIfPresent(cells, 3, func(n *html.Node) { row.LapsCompleted = cellInt(n) })
		assignIfPresent(cells, 4, func(n *html.Node) { row.Interval = cellText(n) })
		assignIfPresent(cells, 5, func(n *html.Node) { row.LapsLed = cellInt(n) })
		assignIfPresent(cells, 6, func(n *html.Node) { row.TotalPoints = cellInt(n) })
		assignIfPresent(cells, 7, func(n *html.Node) { row.StartingPosition = cellInt(n) })
		assignIfPresent(cells, 8, func(n *html.Node) { row.QualifyingTime = cellText(n) })
		assignIfPresent(cells, 9, func(n *html.Node) { row.FastestLap = cellText(n) })
		assignIfPresent(cells, 10, func(n *html.Node) { row.FastestLapNumber = cellInt(n) })
		assignIfPresent(cells, 11, func(n *html.Node) { row.AverageLap = cellText(n) })
		assignIfPresent(cells, 12, func(n *html.Node) { row.IncidentPoints = cellInt(n) })
		assignIfPresent(cells, 13, func(n *html.Node) { row.Status = cellText(n) })

		out = append(out, row)
	}
	return out
}

func assignIfPresent(cells []*html.Node, idx int, assign func(*html.Node)) {
	if idx < len(cells) {
		assign(cells[idx])
	}
}

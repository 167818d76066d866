package extract

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"gridcrawl/internal/errdefs"
	"gridcrawl/internal/jsparse"
	"gridcrawl/internal/schema"
)

// SeriesMeta is the metadata harvested from a series page.
type SeriesMeta struct {
	SeriesID int
	Name     string
	URL      string
}

// SeasonRef is a season discovered on a series page. Counts and the
// start timestamp come from the embedded seasons array when present.
type SeasonRef struct {
	SeasonID       int
	Name           string
	StartTime      *int
	ScheduledRaces *int
	CompletedRaces *int
	URL            string
}

// SeriesResult is a series extraction: metadata plus season refs.
type SeriesResult struct {
	Meta    SeriesMeta
	Seasons []SeasonRef
}

var seriesURLRe = regexp.MustCompile(`series_seasons\.php\?series_id=\d+`)

// SeriesExtractor reads series pages; static fetch.
type SeriesExtractor struct {
	gate    Fetcher
	baseURL string
	logger  *zap.Logger
}

// NewSeriesExtractor builds a series extractor over the shared gate.
func NewSeriesExtractor(gate Fetcher, baseURL string, logger *zap.Logger) *SeriesExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeriesExtractor{gate: gate, baseURL: baseURL, logger: logger}
}

// Extract fetches and parses a series page.
func (e *SeriesExtractor) Extract(ctx context.Context, url string) (*SeriesResult, error) {
	if !seriesURLRe.MatchString(url) {
		return nil, errdefs.Validationf("url", "expected series_seasons.php?series_id=<id>, got %s", url)
	}
	seriesID, err := idFromURL(url, "series_id")
	if err != nil {
		return nil, err
	}

	doc, err := e.gate.FetchStatic(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateMarkers(schema.KindSeriesSeasons, doc.Raw); err != nil {
		return nil, err
	}

	meta := SeriesMeta{
		SeriesID: seriesID,
		Name:     fallbackName(doc.Root, "Unknown Series"),
		URL:      url,
	}

	result := &SeriesResult{Meta: meta}
	for _, obj := range jsparse.ExtractSeasons(doc.Raw) {
		id, hasID := obj.Int("id")
		// The live site abbreviates the name as "n"; older fixtures
		// spell out "sname".
		name, hasName := obj.Str("n")
		if !hasName {
			name, hasName = obj.Str("sname")
		}
		if !hasID || !hasName {
			continue
		}
		ref := SeasonRef{
			SeasonID: id,
			Name:     name,
			URL:      fmt.Sprintf("%s/season_schedule.php?season_id=%d", e.baseURL, id),
		}
		if scrt, ok := obj.Int("scrt"); ok {
			ref.StartTime = &scrt
		}
		if ns, ok := obj.Int("ns"); ok {
			ref.ScheduledRaces = &ns
		}
		if nr, ok := obj.Int("nr"); ok {
			ref.CompletedRaces = &nr
		}
		result.Seasons = append(result.Seasons, ref)
	}

	e.logger.Debug("series extracted",
		zap.Int("series_id", seriesID),
		zap.Int("seasons", len(result.Seasons)))
	return result, nil
}

// SeasonStatus derives a coarse season status from its race counts and
// start time: completed when every scheduled race has run, upcoming
// before the start time, otherwise active.
func (r SeasonRef) SeasonStatus() *string {
	if r.ScheduledRaces != nil && r.CompletedRaces != nil && *r.ScheduledRaces > 0 &&
		*r.CompletedRaces >= *r.ScheduledRaces {
		s := "completed"
		return &s
	}
	if r.StartTime != nil && int64(*r.StartTime) > time.Now().Unix() {
		s := "upcoming"
		return &s
	}
	if r.ScheduledRaces != nil || r.StartTime != nil {
		s := "active"
		return &s
	}
	return nil
}

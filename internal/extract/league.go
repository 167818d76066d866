package extract

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"gridcrawl/internal/errdefs"
	"gridcrawl/internal/htmlutil"
	"gridcrawl/internal/jsparse"
	"gridcrawl/internal/schema"
)

// LeagueMeta is the metadata harvested from a league page.
type LeagueMeta struct {
	LeagueID    int
	Name        string
	Description *string
	URL         string
}

// SeriesRef is a series discovered on a league page, with everything
// that can be harvested cheaply from the embedded payload.
type SeriesRef struct {
	SeriesID    int
	Name        string
	Description *string
	NumSeasons  *int
	CreatedDate *string
	URL         string
}

// LeagueResult is a league extraction: metadata plus child refs.
type LeagueResult struct {
	Meta     LeagueMeta
	Series   []SeriesRef
	TeamsURL *string
}

var leagueURLRe = regexp.MustCompile(`league_series\.php\?league_id=\d+`)

// LeagueExtractor reads league pages. Static fetch: the series list is
// embedded in inline JavaScript, no rendering needed.
type LeagueExtractor struct {
	gate    Fetcher
	baseURL string
	logger  *zap.Logger
}

// NewLeagueExtractor builds a league extractor over the shared gate.
func NewLeagueExtractor(gate Fetcher, baseURL string, logger *zap.Logger) *LeagueExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeagueExtractor{gate: gate, baseURL: baseURL, logger: logger}
}

// Extract fetches and parses a league page.
func (e *LeagueExtractor) Extract(ctx context.Context, url string) (*LeagueResult, error) {
	if !leagueURLRe.MatchString(url) {
		return nil, errdefs.Validationf("url", "expected league_series.php?league_id=<id>, got %s", url)
	}
	leagueID, err := idFromURL(url, "league_id")
	if err != nil {
		return nil, err
	}

	doc, err := e.gate.FetchStatic(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateMarkers(schema.KindLeagueSeries, doc.Raw); err != nil {
		return nil, err
	}

	meta := LeagueMeta{
		LeagueID:    leagueID,
		Name:        leagueName(doc.Root),
		Description: leagueDescription(doc.Root),
		URL:         url,
	}
	if err := schema.ValidateFields(schema.KindLeagueSeries, map[string]any{
		"id": meta.LeagueID, "name": meta.Name,
	}); err != nil {
		return nil, err
	}

	result := &LeagueResult{Meta: meta}
	for _, obj := range jsparse.ExtractSeries(doc.Raw) {
		id, _ := obj.Int("id")
		name, _ := obj.Str("name")
		ref := SeriesRef{
			SeriesID: id,
			Name:     name,
			URL:      fmt.Sprintf("%s/series_seasons.php?series_id=%d", e.baseURL, id),
		}
		if desc, ok := obj.Str("desc"); ok {
			ref.Description = &desc
		}
		if ns, ok := obj.Int("ns"); ok {
			ref.NumSeasons = &ns
		}
		if created, ok := obj.Str("created"); ok {
			ref.CreatedDate = &created
		}
		result.Series = append(result.Series, ref)
	}

	if teams := htmlutil.Find(doc.Root, "a", func(n *html.Node) bool {
		return regexp.MustCompile(`teams\.php\?league_id=`).MatchString(htmlutil.Attr(n, "href"))
	}); teams != nil {
		full := absoluteURL(e.baseURL, htmlutil.Attr(teams, "href"))
		result.TeamsURL = &full
	}

	e.logger.Debug("league extracted",
		zap.Int("league_id", leagueID),
		zap.Int("series", len(result.Series)))
	return result, nil
}

// leagueName prefers an element carrying both site-specific heading
// classes, then falls back through headings, title and the constant.
// The generic page titles on this site make this the most fragile
// rule in the extractor set.
func leagueName(root *html.Node) string {
	if el := htmlutil.Find(root, "div", func(n *html.Node) bool {
		return htmlutil.HasClass(n, "league-name") && htmlutil.HasClass(n, "page-header")
	}); el != nil {
		if name := htmlutil.Text(el); name != "" {
			return name
		}
	}
	if h1 := htmlutil.Find(root, "h1", nil); h1 != nil {
		if name := htmlutil.Text(h1); name != "" {
			return name
		}
	}
	if title := htmlutil.Find(root, "title", nil); title != nil {
		text := htmlutil.Text(title)
		// "Sim Racer Hub: My League" keeps only the league part.
		if idx := indexAfterColon(text); idx > 0 {
			return text[idx:]
		}
		if text != "" {
			return text
		}
	}
	return "Unknown League"
}

func indexAfterColon(text string) int {
	for i := 0; i < len(text)-1; i++ {
		if text[i] == ':' {
			j := i + 1
			for j < len(text) && text[j] == ' ' {
				j++
			}
			if j < len(text) {
				return j
			}
		}
	}
	return -1
}

func leagueDescription(root *html.Node) *string {
	if div := htmlutil.Find(root, "div", func(n *html.Node) bool {
		return htmlutil.HasClass(n, "league-description")
	}); div != nil {
		if text := htmlutil.Text(div); text != "" {
			return &text
		}
	}
	// First paragraph after the heading is the usual spot.
	if h1 := htmlutil.Find(root, "h1", nil); h1 != nil {
		for sib := h1.NextSibling; sib != nil; sib = sib.NextSibling {
			if sib.Type == html.ElementNode && sib.Data == "p" {
				if text := htmlutil.Text(sib); text != "" {
					return &text
				}
			}
		}
	}
	return nil
}

package extract

import (
	"context"
	"regexp"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"gridcrawl/internal/errdefs"
	"gridcrawl/internal/htmlutil"
	"gridcrawl/internal/schema"
)

// TeamRef is one team listed on a league's roster page, with the
// driver profile links found inside its container.
type TeamRef struct {
	TeamID      int
	Name        string
	DriverCount int
	URL         string
}

// TeamsResult is a roster page extraction.
type TeamsResult struct {
	LeagueID int
	URL      string
	Teams    []TeamRef
}

var (
	teamsURLRe = regexp.MustCompile(`teams\.php\?league_id=\d+`)
	teamIDRe   = regexp.MustCompile(`team_id=(\d+)`)
)

// TeamsExtractor reads league roster pages; static fetch.
type TeamsExtractor struct {
	gate    Fetcher
	baseURL string
	logger  *zap.Logger
}

// NewTeamsExtractor builds a roster extractor over the shared gate.
func NewTeamsExtractor(gate Fetcher, baseURL string, logger *zap.Logger) *TeamsExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeamsExtractor{gate: gate, baseURL: baseURL, logger: logger}
}

// Extract fetches and parses a roster page.
func (e *TeamsExtractor) Extract(ctx context.Context, url string) (*TeamsResult, error) {
	if !teamsURLRe.MatchString(url) {
		return nil, errdefs.Validationf("url", "expected teams.php?league_id=<id>, got %s", url)
	}
	leagueID, err := idFromURL(url, "league_id")
	if err != nil {
		return nil, err
	}

	doc, err := e.gate.FetchStatic(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateMarkers(schema.KindTeamsPage, doc.Raw); err != nil {
		return nil, err
	}

	result := &TeamsResult{LeagueID: leagueID, URL: url}
	seen := map[int]bool{}
	for _, container := range htmlutil.FindAll(doc.Root, "div", func(n *html.Node) bool {
		return htmlutil.HasClass(n, "team")
	}) {
		anchor := htmlutil.Find(container, "a", func(n *html.Node) bool {
			return teamIDRe.MatchString(htmlutil.Attr(n, "href"))
		})
		if anchor == nil {
			continue
		}
		teamID := mustAtoi(teamIDRe.FindStringSubmatch(htmlutil.Attr(anchor, "href"))[1])
		if seen[teamID] || teamID <= 0 {
			continue
		}
		name := htmlutil.Text(anchor)
		if name == "" {
			continue
		}
		drivers := htmlutil.FindAll(container, "a", func(n *html.Node) bool {
			return driverIDRe.MatchString(htmlutil.Attr(n, "href"))
		})
		seen[teamID] = true
		result.Teams = append(result.Teams, TeamRef{
			TeamID:      teamID,
			Name:        name,
			DriverCount: len(drivers),
			URL:         absoluteURL(e.baseURL, htmlutil.Attr(anchor, "href")),
		})
	}

	e.logger.Debug("teams extracted",
		zap.Int("league_id", leagueID),
		zap.Int("teams", len(result.Teams)))
	return result, nil
}

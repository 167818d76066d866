package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gridcrawl/internal/errdefs"
)

const leaguePage = `<html>
<head><title>Sim Racer Hub: Night Owl Racing</title></head>
<body>
<h1>Night Owl Racing League</h1>
<p>Weeknight oval racing since 2014.</p>
<a href="teams.php?league_id=1558">Teams</a>
<script>
series.push({id: 3714, name: "Wednesday Night", desc: "Gen4 cup cars", ns: 12, created: "2019-03-01"});
series.push({id: 3712, name: "Thursday Trucks"});
series.push({id: 3713, name: "Friday Fixed"});
</script>
</body></html>`

func TestLeagueExtract(t *testing.T) {
	url := "https://host/league_series.php?league_id=1558"
	gate := &stubGate{pages: map[string]string{url: leaguePage}}
	e := NewLeagueExtractor(gate, "https://host", zap.NewNop())

	res, err := e.Extract(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, []string{url}, gate.static)
	require.Empty(t, gate.rendered, "league pages are static")

	require.Equal(t, 1558, res.Meta.LeagueID)
	require.Equal(t, "Night Owl Racing League", res.Meta.Name)
	require.NotNil(t, res.Meta.Description)

	require.Len(t, res.Series, 3)
	require.Equal(t, 3714, res.Series[0].SeriesID)
	require.Equal(t, "Wednesday Night", res.Series[0].Name)
	require.Equal(t, "https://host/series_seasons.php?series_id=3714", res.Series[0].URL)
	require.Equal(t, "Gen4 cup cars", *res.Series[0].Description)
	require.Equal(t, 12, *res.Series[0].NumSeasons)
	require.Nil(t, res.Series[1].Description)

	require.NotNil(t, res.TeamsURL)
	require.Equal(t, "https://host/teams.php?league_id=1558", *res.TeamsURL)
}

func TestLeagueExtractRejectsBadURL(t *testing.T) {
	e := NewLeagueExtractor(&stubGate{}, "https://host", zap.NewNop())
	_, err := e.Extract(context.Background(), "https://host/series_seasons.php?series_id=1")
	require.True(t, errdefs.IsValidation(err))
}

func TestLeagueExtractDriftWhenMarkerMissing(t *testing.T) {
	url := "https://host/league_series.php?league_id=1558"
	gate := &stubGate{pages: map[string]string{url: `<html><body>No embedded data</body></html>`}}
	e := NewLeagueExtractor(gate, "https://host", zap.NewNop())

	_, err := e.Extract(context.Background(), url)
	require.True(t, errdefs.IsSchemaDrift(err))
}

func TestLeagueNameFallbackToTitle(t *testing.T) {
	url := "https://host/league_series.php?league_id=9"
	page := `<html><head><title>Sim Racer Hub: Fallback League</title></head>
<body><script>series.push({id: 1, name: "S"});</script></body></html>`
	gate := &stubGate{pages: map[string]string{url: page}}
	e := NewLeagueExtractor(gate, "https://host", zap.NewNop())

	res, err := e.Extract(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, "Fallback League", res.Meta.Name)
}

package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gridcrawl/internal/errdefs"
)

const teamsPage = `<html>
<head><title>Sim Racer Hub: Teams</title></head>
<body>
<div class="team">
  <a href="team_stats.php?team_id=51">Midnight Motorsports</a>
  <ul>
    <li><a href="driver_stats.php?driver_id=801">John Doe</a></li>
    <li><a href="driver_stats.php?driver_id=802">Jane Smith</a></li>
  </ul>
</div>
<div class="team">
  <a href="team_stats.php?team_id=52">Apex Racing</a>
  <ul><li><a href="driver_stats.php?driver_id=803">Sam Park</a></li></ul>
</div>
<div class="team">
  <span>unaffiliated drivers</span>
</div>
</body></html>`

func TestTeamsExtract(t *testing.T) {
	url := "https://host/teams.php?league_id=1558"
	gate := &stubGate{pages: map[string]string{url: teamsPage}}
	e := NewTeamsExtractor(gate, "https://host", zap.NewNop())

	res, err := e.Extract(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, []string{url}, gate.static)

	require.Equal(t, 1558, res.LeagueID)
	require.Len(t, res.Teams, 2, "containers without a team link are skipped")
	require.Equal(t, 51, res.Teams[0].TeamID)
	require.Equal(t, "Midnight Motorsports", res.Teams[0].Name)
	require.Equal(t, 2, res.Teams[0].DriverCount)
	require.Equal(t, "https://host/team_stats.php?team_id=51", res.Teams[0].URL)
	require.Equal(t, 1, res.Teams[1].DriverCount)
}

func TestTeamsExtractDriftWithoutDriverLinks(t *testing.T) {
	url := "https://host/teams.php?league_id=1558"
	gate := &stubGate{pages: map[string]string{url: `<html><body><p>No teams yet</p></body></html>`}}
	e := NewTeamsExtractor(gate, "https://host", zap.NewNop())

	_, err := e.Extract(context.Background(), url)
	require.True(t, errdefs.IsSchemaDrift(err))
}

func TestTeamsExtractRejectsBadURL(t *testing.T) {
	e := NewTeamsExtractor(&stubGate{}, "https://host", zap.NewNop())
	_, err := e.Extract(context.Background(), "https://host/league_series.php?league_id=1")
	require.True(t, errdefs.IsValidation(err))
}

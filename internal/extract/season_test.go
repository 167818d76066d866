package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gridcrawl/internal/errdefs"
)

const seasonDropdownPage = `<html>
<head><title>2025 Season 1 - Race Schedule</title></head>
<body>
<select class="race-select">
  <option value="">Pick a race</option>
  <option value="season_race.php?schedule_id=501">Race 1</option>
  <option value="season_race.php?schedule_id=502">Race 2</option>
  <option value="season_race.php?schedule_id=502">Race 2</option>
  <option value="season_race.php?schedule_id=503">Standings</option>
</select>
<table class="schedule-table">
  <tr><th>#</th><th>Date</th><th>Time</th><th>Track</th></tr>
  <tr><td>1</td><td>01/08/2025</td><td>8:30 PM EST</td>
      <td><a href="season_race.php?schedule_id=501">Daytona</a></td></tr>
</table>
</body></html>`

const seasonTablePage = `<html>
<head><title>2025 Season 2 - Race Schedule</title></head>
<body>
<table class="schedule-table">
  <tr><th>#</th><th>Date</th><th>Time</th><th>Track</th></tr>
  <tr><td>Race 1</td><td>03/05/2025</td><td>9:00 PM EST</td>
      <td><a href="season_race.php?schedule_id=601">Bristol</a></td></tr>
  <tr><td>Off Week</td><td>03/12/2025</td><td></td>
      <td><a href="season_race.php?schedule_id=602">Notes</a></td></tr>
  <tr><td>2</td><td>03/19/2025</td><td>9:00 PM EST</td>
      <td><a href="season_race.php?schedule_id=603">Martinsville</a></td></tr>
  <tr><td>2</td><td>03/19/2025</td><td>9:00 PM EST</td>
      <td><a href="season_race.php?schedule_id=603">Martinsville</a></td></tr>
</table>
</body></html>`

func TestSeasonExtractPrefersDropdown(t *testing.T) {
	url := "https://host/season_schedule.php?season_id=9001"
	gate := &stubGate{pages: map[string]string{url: seasonDropdownPage}}
	e := NewSeasonExtractor(gate, "https://host", zap.NewNop())

	res, err := e.Extract(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, []string{url}, gate.rendered, "schedule pages need rendering")
	require.Empty(t, gate.static)

	require.Equal(t, 9001, res.Meta.SeasonID)
	require.Equal(t, "2025 Season 1", res.Meta.Name)

	// Dropdown wins over the table; duplicate schedule ids and options
	// without a race number are dropped.
	require.Len(t, res.Races, 2)
	require.Equal(t, 501, res.Races[0].ScheduleID)
	require.Equal(t, 1, res.Races[0].RaceNumber)
	require.Equal(t, "https://host/season_race.php?schedule_id=501", res.Races[0].URL)
	require.Equal(t, 502, res.Races[1].ScheduleID)
}

func TestSeasonExtractTableFallback(t *testing.T) {
	url := "https://host/season_schedule.php?season_id=9002"
	gate := &stubGate{pages: map[string]string{url: seasonTablePage}}
	e := NewSeasonExtractor(gate, "https://host", zap.NewNop())

	res, err := e.Extract(context.Background(), url)
	require.NoError(t, err)

	require.Len(t, res.Races, 2)
	require.Equal(t, 601, res.Races[0].ScheduleID)
	require.Equal(t, 1, res.Races[0].RaceNumber)
	require.Equal(t, "Bristol", *res.Races[0].TrackHint)
	require.NotNil(t, res.Races[0].EventTime)
	require.Equal(t, 603, res.Races[1].ScheduleID)
	require.Equal(t, 2, res.Races[1].RaceNumber)
}

func TestSeasonExtractRejectsBadURL(t *testing.T) {
	e := NewSeasonExtractor(&stubGate{}, "https://host", zap.NewNop())
	_, err := e.Extract(context.Background(), "https://host/season_race.php?schedule_id=1")
	require.True(t, errdefs.IsValidation(err))
}

package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gridcrawl/internal/errdefs"
)

const racePage = `<html>
<head><title>Bristol 150 - Race 4</title></head>
<body>
<h1>Bristol 150</h1>
<script>
raceInfo = {race_number: 4, event_name: "Bristol 150", track_id: 271,
  track_config_id: 2, track_name: "Bristol Motor Speedway",
  track_type: "oval", track_length: "0.533", planned_laps: 150,
  points_race: true, off_week: false, night_race: 1, playoff_race: 0};
</script>
<div class="session-details">
  45 minutes, 150 laps, 5 leaders, 9 lead changes, 3 cautions (14 laps), 24 drivers
  <br>
  Weather: Generated / Partly Cloudy, Temp: 25&#176; C, Humidity: 55%, Fog: 0%, Wind: NW @ 10 mph
</div>
<table class="results-table">
  <tr><th>Position</th><th>Driver</th><th>Car</th><th>Laps</th><th>Interval</th>
      <th>Led</th><th>Points</th><th>Start</th><th>Qual</th><th>Fastest</th>
      <th>FL#</th><th>Avg</th><th>Inc</th><th>Status</th></tr>
  <tr><td>1</td><td><a href="driver_stats.php?driver_id=801">Doe, John</a></td>
      <td>24</td><td>150</td><td>-</td><td>88</td><td>185</td><td>3</td>
      <td>14.821</td><td>15.002</td><td>42</td><td>15.310</td><td>2</td><td>Running</td></tr>
  <tr><td>2</td><td>Jane Smith</td><td>48</td><td>150</td><td>1.204</td>
      <td>12</td><td>170</td><td>1</td><td>14.790</td><td>15.110</td><td>19</td>
      <td>15.402</td><td>0</td><td>Running</td></tr>
  <tr><td>-</td><td>withdrew before green</td><td></td></tr>
  <tr><td colspan="14">Provisional results</td></tr>
</table>
</body></html>`

func TestRaceExtract(t *testing.T) {
	url := "https://host/season_race.php?schedule_id=501"
	gate := &stubGate{pages: map[string]string{url: racePage}}
	e := NewRaceExtractor(gate, "https://host", zap.NewNop())

	res, err := e.Extract(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, []string{url}, gate.rendered, "race pages need rendering")

	m := res.Meta
	require.Equal(t, 501, m.ScheduleID)
	require.Equal(t, "Bristol 150", *m.EventName)
	require.Equal(t, 4, *m.RaceNumber)
	require.Equal(t, 271, *m.TrackID)
	require.Equal(t, "Bristol Motor Speedway", *m.TrackName)
	require.InDelta(t, 0.533, *m.TrackLength, 1e-9)
	require.Equal(t, 150, *m.PlannedLaps)
	require.True(t, *m.PointsRace)
	require.False(t, *m.OffWeek)
	require.True(t, *m.NightRace)
	require.False(t, *m.PlayoffRace)

	require.Equal(t, 45, *m.RaceDurationMinutes)
	require.Equal(t, 150, *m.TotalLaps)
	require.Equal(t, 5, *m.Leaders)
	require.Equal(t, 9, *m.LeadChanges)
	require.Equal(t, 3, *m.Cautions)
	require.Equal(t, 14, *m.CautionLaps)
	require.Equal(t, 24, *m.NumDrivers)

	require.Equal(t, "Generated", *m.WeatherType)
	require.Equal(t, "Partly Cloudy", *m.CloudConditions)
	require.Equal(t, 77, *m.TemperatureF, "25C converts to 77F")
	require.Equal(t, 55, *m.HumidityPct)
	require.Equal(t, 0, *m.FogPct)
	require.Equal(t, "NW", *m.WindDir)
	require.Equal(t, "10 mph", *m.WindSpeed)

	// Two real rows; the position-less and decorative rows are dropped.
	require.Len(t, res.Results, 2)
	r0 := res.Results[0]
	require.Equal(t, 1, *r0.FinishPosition)
	require.Equal(t, "Doe, John", r0.DriverName)
	require.Equal(t, 801, *r0.DriverID)
	require.Equal(t, "https://host/driver_stats.php?driver_id=801", *r0.DriverURL)
	require.Equal(t, "24", *r0.CarNumber)
	require.Equal(t, 150, *r0.LapsCompleted)
	require.Nil(t, r0.Interval, `"-" cells become absent fields`)
	require.Equal(t, 88, *r0.LapsLed)
	require.Equal(t, 185, *r0.TotalPoints)
	require.Equal(t, 3, *r0.StartingPosition)
	require.Equal(t, "14.821", *r0.QualifyingTime)
	require.Equal(t, 42, *r0.FastestLapNumber)
	require.Equal(t, 2, *r0.IncidentPoints)
	require.Equal(t, "Running", *r0.Status)

	r1 := res.Results[1]
	require.Nil(t, r1.DriverID, "plain-text names carry no driver id")
	require.Equal(t, "Jane Smith", r1.DriverName)
	require.Equal(t, "1.204", *r1.Interval)
}

func TestRaceExtractMissingRequiredColumns(t *testing.T) {
	url := "https://host/season_race.php?schedule_id=502"
	page := `<html><body>
<table class="results-table">
  <tr><th>Pos</th><th>Car</th></tr>
  <tr><td>1</td><td>24</td></tr>
</table>
</body></html>`
	gate := &stubGate{pages: map[string]string{url: page}}
	e := NewRaceExtractor(gate, "https://host", zap.NewNop())

	_, err := e.Extract(context.Background(), url)
	require.True(t, errdefs.IsSchemaDrift(err))
}

func TestRaceExtractNoTable(t *testing.T) {
	url := "https://host/season_race.php?schedule_id=503"
	gate := &stubGate{pages: map[string]string{url: `<html><body>results pending</body></html>`}}
	e := NewRaceExtractor(gate, "https://host", zap.NewNop())

	_, err := e.Extract(context.Background(), url)
	require.True(t, errdefs.IsSchemaDrift(err))
}

func TestRaceExtractRejectsBadURL(t *testing.T) {
	e := NewRaceExtractor(&stubGate{}, "https://host", zap.NewNop())
	_, err := e.Extract(context.Background(), "https://host/season_schedule.php?season_id=1")
	require.True(t, errdefs.IsValidation(err))
}

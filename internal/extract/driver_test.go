package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gridcrawl/internal/errdefs"
)

const driverPage = `<html>
<head><title>John Doe - Driver Stats</title></head>
<body>
<h1>John Doe</h1>
<script>
races = [{"race":"Bristol 150","irating":"3250","sr":"3.87","license":"A"},
         {"race":"Daytona 500","irating":"3250","sr":"3.87","license":"A"}];
</script>
</body></html>`

func TestDriverExtract(t *testing.T) {
	url := "https://host/driver_stats.php?driver_id=801"
	gate := &stubGate{pages: map[string]string{url: driverPage}}
	e := NewDriverExtractor(gate, zap.NewNop())

	res, err := e.Extract(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, []string{url}, gate.static)

	require.Equal(t, 801, res.Meta.DriverID)
	require.Equal(t, "John Doe", res.Meta.Name)
	require.Equal(t, 3250, *res.Meta.IRating)
	require.InDelta(t, 3.87, *res.Meta.SafetyRating, 1e-9)
	require.Equal(t, "A", *res.Meta.LicenseClass)
}

func TestDriverExtractNoRaces(t *testing.T) {
	url := "https://host/driver_stats.php?driver_id=802"
	page := `<html><head><title>Rookie - Driver Stats</title></head>
<body><h1>Rookie</h1><script>races = [];</script></body></html>`
	gate := &stubGate{pages: map[string]string{url: page}}
	e := NewDriverExtractor(gate, zap.NewNop())

	res, err := e.Extract(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, "Rookie", res.Meta.Name)
	require.Nil(t, res.Meta.IRating)
	require.Nil(t, res.Meta.SafetyRating)
	require.Nil(t, res.Meta.LicenseClass)
}

func TestDriverExtractRejectsBadURL(t *testing.T) {
	e := NewDriverExtractor(&stubGate{}, zap.NewNop())
	_, err := e.Extract(context.Background(), "https://host/teams.php?league_id=1")
	require.True(t, errdefs.IsValidation(err))
}

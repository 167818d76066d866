package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gridcrawl/internal/errdefs"
	"gridcrawl/internal/htmlutil"
)

func TestValidateMarkersLeague(t *testing.T) {
	good := `<script>series.push({id: 3714, name: "Wednesday"});</script>`
	require.NoError(t, ValidateMarkers(KindLeagueSeries, good))

	err := ValidateMarkers(KindLeagueSeries, `<html>nothing embedded</html>`)
	require.True(t, errdefs.IsSchemaDrift(err))

	err = ValidateMarkers(KindLeagueSeries, "   \n  ")
	require.True(t, errdefs.IsSchemaDrift(err))
}

func TestValidateMarkersSeriesRequiresSeasonsArray(t *testing.T) {
	good := `seasons = [{ id: 26741, n: "2025 S1", scrt: 1754380800, ns: 10, nr: 5}];`
	require.NoError(t, ValidateMarkers(KindSeriesSeasons, good))

	err := ValidateMarkers(KindSeriesSeasons, `series.push({id: 1, name: "x"});`)
	require.True(t, errdefs.IsSchemaDrift(err))
}

func TestValidateMarkersUnknownKind(t *testing.T) {
	err := ValidateMarkers(PageKind("mystery"), "content")
	require.True(t, errdefs.IsValidation(err))
}

func TestValidateFieldsNilEqualsAbsent(t *testing.T) {
	base := map[string]any{"id": 3714, "name": "Wednesday"}
	require.NoError(t, ValidateFields(KindLeagueSeries, base))

	absent := map[string]any{"id": 3714}
	errAbsent := ValidateFields(KindLeagueSeries, absent)
	require.True(t, errdefs.IsSchemaDrift(errAbsent))

	nilled := map[string]any{"id": 3714, "name": nil}
	errNil := ValidateFields(KindLeagueSeries, nilled)
	require.True(t, errdefs.IsSchemaDrift(errNil))
	require.Equal(t, errAbsent.Error(), errNil.Error())
}

func TestValidateTable(t *testing.T) {
	doc, err := htmlutil.Parse(`<table>
		<thead><tr><th>Pos</th><th>position</th><th>DRIVER</th><th>Laps</th></tr></thead>
		<tbody><tr><td>1</td><td>1</td><td>Doe</td><td>40</td></tr></tbody>
	</table>`)
	require.NoError(t, err)
	table := htmlutil.Find(doc, "table", nil)
	require.NoError(t, ValidateTable(KindRaceResults, table))

	doc2, err := htmlutil.Parse(`<table><thead><tr><th>Driver</th><th>Laps</th></tr></thead></table>`)
	require.NoError(t, err)
	err = ValidateTable(KindRaceResults, htmlutil.Find(doc2, "table", nil))
	require.True(t, errdefs.IsSchemaDrift(err))

	err = ValidateTable(KindRaceResults, nil)
	require.True(t, errdefs.IsSchemaDrift(err))
}

package htmlutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const sampleTable = `
<html><body>
<h1>Season Schedule</h1>
<table class="results">
  <thead><tr><th>Pos</th><th>Driver</th><th>Laps</th></tr></thead>
  <tbody>
    <tr><td>1</td><td><a href="driver_stats.php?driver_id=77">Doe, John</a></td><td>120</td></tr>
    <tr><td>2</td><td>Smith, Jane</td><td>119</td></tr>
  </tbody>
</table>
</body></html>`

func TestFindAndText(t *testing.T) {
	doc, err := Parse(sampleTable)
	require.NoError(t, err)

	h1 := Find(doc, "h1", nil)
	require.NotNil(t, h1)
	require.Equal(t, "Season Schedule", Text(h1))

	table := Find(doc, "table", func(n *html.Node) bool { return HasClass(n, "results") })
	require.NotNil(t, table)
}

func TestTableHeadersAndRows(t *testing.T) {
	doc, err := Parse(sampleTable)
	require.NoError(t, err)
	table := Find(doc, "table", nil)
	require.NotNil(t, table)

	require.Equal(t, []string{"Pos", "Driver", "Laps"}, TableHeaders(table))

	rows := TableRows(table)
	require.Len(t, rows, 2)
	require.Equal(t, "1", Text(rows[0][0]))
	require.Equal(t, "Doe, John", Text(rows[0][1]))

	anchor := Find(rows[0][1], "a", nil)
	require.NotNil(t, anchor)
	require.Equal(t, "driver_stats.php?driver_id=77", Attr(anchor, "href"))
}

func TestTableHeadersFallbackToFirstRow(t *testing.T) {
	doc, err := Parse(`<table><tr><td>A</td><td>B</td></tr><tr><td>1</td><td>2</td></tr></table>`)
	require.NoError(t, err)
	table := Find(doc, "table", nil)
	require.Equal(t, []string{"A", "B"}, TableHeaders(table))
}

package crawl

import "gridcrawl/internal/errdefs"

// Depth bounds how far the walker descends. Each level implies all the
// levels above it.
type Depth int

const (
	DepthLeague Depth = iota
	DepthSeries
	DepthSeason
	DepthRace
)

var depthNames = map[string]Depth{
	"league": DepthLeague,
	"series": DepthSeries,
	"season": DepthSeason,
	"race":   DepthRace,
}

// ParseDepth maps a config or CLI string to a Depth.
func ParseDepth(s string) (Depth, error) {
	d, ok := depthNames[s]
	if !ok {
		return 0, errdefs.Validationf("depth", "must be one of league, series, season, race; got %q", s)
	}
	return d, nil
}

func (d Depth) String() string {
	for name, v := range depthNames {
		if v == d {
			return name
		}
	}
	return "unknown"
}

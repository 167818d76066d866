package extract

import (
	"context"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"gridcrawl/internal/errdefs"
)

// DriverMeta is the rating snapshot from a driver profile page.
type DriverMeta struct {
	DriverID     int
	Name         string
	IRating      *int
	SafetyRating *float64
	LicenseClass *string
	URL          string
}

// DriverExtraction wraps a driver page extraction; drivers have no
// child refs.
type DriverExtraction struct {
	Meta DriverMeta
}

var (
	driverURLRe = regexp.MustCompile(`driver_stats\.php\?driver_id=\d+`)
	// Rating stats ride along in the page's race participation
	// records, every record repeating the same three values.
	driverStatsRe = regexp.MustCompile(`"irating":"(\d+)","sr":"([\d.]+)","license":"([^"]+)"`)
)

// DriverExtractor reads driver profile pages; static fetch, the stats
// are embedded in the initial HTML.
type DriverExtractor struct {
	gate   Fetcher
	logger *zap.Logger
}

// NewDriverExtractor builds a driver extractor over the shared gate.
func NewDriverExtractor(gate Fetcher, logger *zap.Logger) *DriverExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DriverExtractor{gate: gate, logger: logger}
}

// Extract fetches and parses a driver profile page. A driver with no
// recorded races yields a snapshot with all three ratings nil.
func (e *DriverExtractor) Extract(ctx context.Context, url string) (*DriverExtraction, error) {
	if !driverURLRe.MatchString(url) {
		return nil, errdefs.Validationf("url", "expected driver_stats.php?driver_id=<id>, got %s", url)
	}
	driverID, err := idFromURL(url, "driver_id")
	if err != nil {
		return nil, err
	}

	doc, err := e.gate.FetchStatic(ctx, url)
	if err != nil {
		return nil, err
	}

	meta := DriverMeta{
		DriverID: driverID,
		Name:     fallbackName(doc.Root, "Unknown Driver"),
		URL:      url,
	}
	if m := driverStatsRe.FindStringSubmatch(doc.Raw); m != nil {
		if ir, err := strconv.Atoi(m[1]); err == nil {
			meta.IRating = &ir
		}
		if sr, err := strconv.ParseFloat(m[2], 64); err == nil {
			meta.SafetyRating = &sr
		}
		meta.LicenseClass = &m[3]
	}

	e.logger.Debug("driver extracted", zap.Int("driver_id", driverID))
	return &DriverExtraction{Meta: meta}, nil
}

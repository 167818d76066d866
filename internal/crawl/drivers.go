package crawl

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gridcrawl/internal/errdefs"
	"gridcrawl/internal/store"
)

// RefreshDriver fetches one driver's profile page and merges the
// rating snapshot into the stored row, reporting whether a fetch
// happened. The driver must already exist; drivers are discovered
// through race results, not invented here.
func (o *Orchestrator) RefreshDriver(ctx context.Context, driverID int, maxAgeDays *int, force bool) (bool, error) {
	d, err := o.store.GetDriver(driverID)
	if err != nil {
		return false, err
	}
	if d == nil {
		return false, errdefs.Validationf("driver_id", "driver %d not in store", driverID)
	}

	if !force {
		cached, err := o.store.IsURLCached(d.URL, "driver", maxAgeDays)
		if err != nil {
			return false, err
		}
		if cached {
			o.logSkip("driver", &driverID, d.URL)
			return false, nil
		}
	}

	start := time.Now()
	res, err := o.drivers.Extract(ctx, d.URL)
	if err != nil {
		ms := time.Since(start).Milliseconds()
		msg := err.Error()
		if logErr := o.store.LogScrape(store.ScrapeEntry{
			EntityKind: "driver",
			EntityID:   &driverID,
			URL:        d.URL,
			Outcome:    store.OutcomeFailed,
			Error:      &msg,
			DurationMs: &ms,
			RunID:      o.runID,
		}); logErr != nil {
			o.logger.Warn("scrape log write failed", zap.Error(logErr))
		}
		return false, err
	}

	if err := o.store.UpsertDriver(&store.Driver{
		DriverID:     driverID,
		LeagueID:     d.LeagueID,
		Name:         res.Meta.Name,
		IRating:      res.Meta.IRating,
		SafetyRating: res.Meta.SafetyRating,
		LicenseClass: res.Meta.LicenseClass,
		URL:          d.URL,
		ScrapedAt:    nowString(),
	}); err != nil {
		return false, err
	}
	o.logSuccess("driver", &driverID, d.URL, start)
	return true, nil
}

// RefreshAllDrivers runs the profile refresh over every stored driver
// of a league. Per-driver failures land in the snapshot; interrupts
// stop the pass.
func (o *Orchestrator) RefreshAllDrivers(ctx context.Context, leagueID int, maxAgeDays *int, force bool) (*Progress, error) {
	progress := &Progress{}
	drivers, err := o.store.GetDriversByLeague(leagueID)
	if err != nil {
		return progress, err
	}

	for _, d := range drivers {
		if err := ctx.Err(); err != nil {
			o.gate.Close(true)
			return progress, err
		}
		fetched, err := o.RefreshDriver(ctx, d.DriverID, maxAgeDays, force)
		if err != nil {
			if isInterrupt(err) {
				o.gate.Close(true)
				return progress, err
			}
			progress.Errors = append(progress.Errors, CrawlError{
				EntityKind: "driver",
				URL:        d.URL,
				Message:    err.Error(),
			})
			continue
		}
		if fetched {
			progress.DriversScraped++
		} else {
			progress.SkippedCached++
		}
	}
	o.logger.Info("driver refresh finished",
		zap.Int("league_id", leagueID),
		zap.Int("refreshed", progress.DriversScraped),
		zap.Int("errors", len(progress.Errors)))
	return progress, nil
}

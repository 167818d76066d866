// Package crawl walks the league hierarchy depth-first, one entity at
// a time, deciding per entity whether to skip on a cache hit or fetch
// through the shared gate. All persistence goes through the store; all
// page access goes through the extractors.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gridcrawl/internal/config"
	"gridcrawl/internal/errdefs"
	"gridcrawl/internal/extract"
	"gridcrawl/internal/store"
)

// Gate is the slice of the fetch gate the orchestrator needs beyond
// what the extractors already hold: shutdown.
type Gate interface {
	extract.Fetcher
	Close(interrupted bool)
}

// CrawlError is one per-entity failure captured in the snapshot.
type CrawlError struct {
	EntityKind string
	URL        string
	Message    string
}

// Progress is the snapshot returned from a run. Counts only include
// own-page fetches; parent-discovery writes are not "scraped".
type Progress struct {
	LeaguesScraped int
	SeriesScraped  int
	SeasonsScraped int
	RacesScraped   int
	TeamsScraped   int
	DriversScraped int
	SkippedCached  int
	Errors         []CrawlError
}

// Options configures one run.
type Options struct {
	Depth           Depth
	SeriesIDs       []int
	SeasonYear      int
	SeasonLimit     int
	CacheMaxAgeDays *int
	Force           bool
}

// OptionsFromConfig builds run options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	depth, err := ParseDepth(cfg.Scrape.DepthOrDefault())
	if err != nil {
		return Options{}, err
	}
	maxAge := cfg.Scrape.CacheMaxAge()
	return Options{
		Depth:           depth,
		SeriesIDs:       cfg.Scrape.SeriesIDs,
		SeasonYear:      cfg.Scrape.SeasonYear,
		SeasonLimit:     cfg.Scrape.SeasonLimit,
		CacheMaxAgeDays: &maxAge,
		Force:           cfg.Scrape.Force,
	}, nil
}

// Orchestrator coordinates one crawl. Not safe for concurrent use: the
// scheduling model is single-threaded by design so the gate's rate
// limit stays the only pacing mechanism.
type Orchestrator struct {
	store        *store.Store
	gate         Gate
	cfg          *config.Config
	logger       *zap.Logger
	runID        string
	refreshRoots bool
	progress     *Progress

	leagues *extract.LeagueExtractor
	series  *extract.SeriesExtractor
	seasons *extract.SeasonExtractor
	races   *extract.RaceExtractor
	drivers *extract.DriverExtractor
	teams   *extract.TeamsExtractor
}

// New wires an orchestrator over a store and a shared gate. Every
// extractor goes through the same gate so rate limiting stays global.
func New(st *store.Store, gate Gate, cfg *config.Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := cfg.League.BaseURLOrDefault()
	return &Orchestrator{
		store:        st,
		gate:         gate,
		cfg:          cfg,
		logger:       logger,
		runID:        uuid.NewString(),
		refreshRoots: cfg.Scrape.RefreshRootsEnabled(),
		leagues:      extract.NewLeagueExtractor(gate, base, logger),
		series:       extract.NewSeriesExtractor(gate, base, logger),
		seasons:      extract.NewSeasonExtractor(gate, base, logger),
		races:        extract.NewRaceExtractor(gate, base, logger),
		drivers:      extract.NewDriverExtractor(gate, logger),
		teams:        extract.NewTeamsExtractor(gate, base, logger),
	}
}

// RunID identifies this orchestrator's rows in the scrape log.
func (o *Orchestrator) RunID() string { return o.runID }

// Progress returns a copy of the current run's snapshot. Zero-valued
// before the first run.
func (o *Orchestrator) Progress() Progress {
	if o.progress == nil {
		return Progress{}
	}
	return *o.progress
}

// ScrapeLeague is the primary entry point. It always returns a
// progress snapshot; the error is non-nil only for run-level failures
// (league page unreachable, store unavailable, interrupt). Per-entity
// failures land in the snapshot and processing continues with siblings.
func (o *Orchestrator) ScrapeLeague(ctx context.Context, leagueURL string, opts Options) (*Progress, error) {
	progress := &Progress{}
	o.progress = progress
	o.logger.Info("crawl starting",
		zap.String("run_id", o.runID),
		zap.String("league_url", leagueURL),
		zap.String("depth", opts.Depth.String()))

	err := o.walkLeague(ctx, leagueURL, opts, progress)
	if isInterrupt(err) {
		// Short-circuit shutdown: no graceful browser teardown while
		// the user is waiting on Ctrl-C.
		o.logger.Warn("crawl interrupted", zap.String("run_id", o.runID))
		o.gate.Close(true)
		return progress, err
	}
	o.logger.Info("crawl finished",
		zap.String("run_id", o.runID),
		zap.Int("leagues", progress.LeaguesScraped),
		zap.Int("series", progress.SeriesScraped),
		zap.Int("seasons", progress.SeasonsScraped),
		zap.Int("races", progress.RacesScraped),
		zap.Int("skipped", progress.SkippedCached),
		zap.Int("errors", len(progress.Errors)))
	return progress, err
}

func (o *Orchestrator) walkLeague(ctx context.Context, leagueURL string, opts Options, progress *Progress) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// The league page is the source of truth for which series exist, so
	// it is fetched on every run unless the refresh-roots policy is
	// disabled and a fresh row already exists.
	if !o.refreshRoots && !opts.Force {
		cached, leagueID, err := o.rootCached(leagueURL, "league", opts.CacheMaxAgeDays)
		if err != nil {
			return err
		}
		if cached && leagueID != nil {
			progress.SkippedCached++
			o.logSkip("league", leagueID, leagueURL)
			return o.walkKnownSeries(ctx, *leagueID, opts, progress)
		}
	}

	start := time.Now()
	lr, err := o.leagues.Extract(ctx, leagueURL)
	if err != nil {
		o.recordFailure(progress, "league", nil, leagueURL, err, start)
		return err
	}
	now := nowString()
	if err := o.store.UpsertLeague(&store.League{
		LeagueID:    lr.Meta.LeagueID,
		Name:        lr.Meta.Name,
		Description: lr.Meta.Description,
		URL:         lr.Meta.URL,
		ScrapedAt:   now,
	}); err != nil {
		o.recordFailure(progress, "league", &lr.Meta.LeagueID, leagueURL, err, start)
		return err
	}
	progress.LeaguesScraped++
	o.logSuccess("league", &lr.Meta.LeagueID, leagueURL, start)

	// Parent-discovery writes: every discovered series is persisted
	// with the epoch sentinel before any descent, so its name and
	// hint attributes survive even if its own page is never fetched.
	for _, ref := range lr.Series {
		if err := o.store.UpsertSeries(&store.Series{
			SeriesID:    ref.SeriesID,
			LeagueID:    lr.Meta.LeagueID,
			Name:        ref.Name,
			Description: ref.Description,
			CreatedDate: ref.CreatedDate,
			NumSeasons:  ref.NumSeasons,
			URL:         ref.URL,
			ScrapedAt:   store.EpochSentinel,
		}); err != nil {
			o.recordFailure(progress, "series", &ref.SeriesID, ref.URL, err, start)
		}
	}

	if lr.TeamsURL != nil && opts.Depth >= DepthSeries {
		o.walkTeams(ctx, lr.Meta.LeagueID, *lr.TeamsURL, progress)
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if opts.Depth < DepthSeries {
		return nil
	}
	for _, ref := range lr.Series {
		if !seriesAllowed(ref.SeriesID, opts.SeriesIDs) {
			continue
		}
		if err := o.walkSeries(ctx, lr.Meta.LeagueID, ref.SeriesID, ref.URL, opts, progress); err != nil {
			if isInterrupt(err) {
				return err
			}
			// Sibling series continue; the failure is already in the
			// snapshot.
		}
	}
	return nil
}

// walkKnownSeries descends from a cache-hit league using previously
// stored series rows instead of a fresh page.
func (o *Orchestrator) walkKnownSeries(ctx context.Context, leagueID int, opts Options, progress *Progress) error {
	if opts.Depth < DepthSeries {
		return nil
	}
	known, err := o.store.GetSeriesByLeague(leagueID)
	if err != nil {
		return err
	}
	for _, sr := range known {
		if !seriesAllowed(sr.SeriesID, opts.SeriesIDs) {
			continue
		}
		if err := o.walkSeries(ctx, leagueID, sr.SeriesID, sr.URL, opts, progress); err != nil && isInterrupt(err) {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) walkSeries(ctx context.Context, leagueID, seriesID int, url string, opts Options, progress *Progress) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !o.refreshRoots && !opts.Force {
		cached, err := o.store.IsURLCached(url, "series", opts.CacheMaxAgeDays)
		if err != nil {
			return err
		}
		if cached {
			progress.SkippedCached++
			o.logSkip("series", &seriesID, url)
			return o.walkKnownSeasons(ctx, seriesID, opts, progress)
		}
	}

	start := time.Now()
	sr, err := o.series.Extract(ctx, url)
	if err != nil {
		o.recordFailure(progress, "series", &seriesID, url, err, start)
		return err
	}
	now := nowString()
	if err := o.store.UpsertSeries(&store.Series{
		SeriesID:  sr.Meta.SeriesID,
		LeagueID:  leagueID,
		Name:      sr.Meta.Name,
		URL:       sr.Meta.URL,
		ScrapedAt: now,
	}); err != nil {
		o.recordFailure(progress, "series", &seriesID, url, err, start)
		return err
	}
	progress.SeriesScraped++
	o.logSuccess("series", &seriesID, url, start)

	seasons := filterSeasons(sr.Seasons, opts)
	for _, ref := range seasons {
		if err := o.store.UpsertSeason(&store.Season{
			SeasonID:  ref.SeasonID,
			SeriesID:  seriesID,
			Name:      ref.Name,
			Status:    ref.SeasonStatus(),
			URL:       ref.URL,
			ScrapedAt: store.EpochSentinel,
		}); err != nil {
			o.recordFailure(progress, "season", &ref.SeasonID, ref.URL, err, start)
		}
	}

	if opts.Depth < DepthSeason {
		return nil
	}
	for _, ref := range seasons {
		if err := o.walkSeason(ctx, ref.SeasonID, ref.URL, opts, progress); err != nil && isInterrupt(err) {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) walkKnownSeasons(ctx context.Context, seriesID int, opts Options, progress *Progress) error {
	if opts.Depth < DepthSeason {
		return nil
	}
	known, err := o.store.GetSeasonsBySeries(seriesID)
	if err != nil {
		return err
	}
	count := 0
	for _, se := range known {
		if opts.SeasonYear != 0 && !strings.Contains(se.Name, strconv.Itoa(opts.SeasonYear)) {
			continue
		}
		if opts.SeasonLimit > 0 && count >= opts.SeasonLimit {
			break
		}
		count++
		if err := o.walkSeason(ctx, se.SeasonID, se.URL, opts, progress); err != nil && isInterrupt(err) {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) walkSeason(ctx context.Context, seasonID int, url string, opts Options, progress *Progress) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !opts.Force {
		cached, err := o.store.IsURLCached(url, "season", opts.CacheMaxAgeDays)
		if err != nil {
			return err
		}
		if cached {
			progress.SkippedCached++
			o.logSkip("season", &seasonID, url)
			return nil
		}
	}

	start := time.Now()
	se, err := o.seasons.Extract(ctx, url)
	if err != nil {
		o.recordFailure(progress, "season", &seasonID, url, err, start)
		return err
	}
	now := nowString()
	if err := o.store.UpsertSeason(&store.Season{
		SeasonID:  se.Meta.SeasonID,
		SeriesID:  o.seasonSeries(seasonID),
		Name:      se.Meta.Name,
		URL:       se.Meta.URL,
		ScrapedAt: now,
	}); err != nil {
		o.recordFailure(progress, "season", &seasonID, url, err, start)
		return err
	}
	progress.SeasonsScraped++
	o.logSuccess("season", &seasonID, url, start)

	for _, ref := range se.Races {
		num := ref.RaceNumber
		if _, err := o.store.UpsertRace(&store.Race{
			ScheduleID: ref.ScheduleID,
			SeasonID:   seasonID,
			RaceNumber: &num,
			TrackName:  ref.TrackHint,
			EventTime:  ref.EventTime,
			URL:        ref.URL,
			ScrapedAt:  store.EpochSentinel,
		}); err != nil {
			o.recordFailure(progress, "race", &ref.ScheduleID, ref.URL, err, start)
		}
	}

	if opts.Depth < DepthRace {
		return nil
	}
	for _, ref := range se.Races {
		if err := o.walkRace(ctx, seasonID, ref.ScheduleID, ref.URL, opts, progress); err != nil && isInterrupt(err) {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) walkRace(ctx context.Context, seasonID, scheduleID int, url string, opts Options, progress *Progress) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !opts.Force {
		// Completed races are immutable under the cache policy, even
		// with a zero-day window that would otherwise force a refetch.
		complete, err := o.store.IsRaceComplete(scheduleID)
		if err != nil {
			return err
		}
		if complete {
			progress.SkippedCached++
			o.logSkip("race", &scheduleID, url)
			return nil
		}
		cached, err := o.store.IsURLCached(url, "race", opts.CacheMaxAgeDays)
		if err != nil {
			return err
		}
		if cached {
			progress.SkippedCached++
			o.logSkip("race", &scheduleID, url)
			return nil
		}
	}

	start := time.Now()
	re, err := o.races.Extract(ctx, url)
	if err != nil {
		o.recordFailure(progress, "race", &scheduleID, url, err, start)
		return err
	}

	// Reaching a race page with a valid results table is the
	// completion signal; the flag is sticky from here on.
	raceID, err := o.store.UpsertRace(raceRow(seasonID, &re.Meta))
	if err != nil {
		o.recordFailure(progress, "race", &scheduleID, url, err, start)
		return err
	}
	progress.RacesScraped++
	o.logSuccess("race", &scheduleID, url, start)

	leagueID := o.raceLeague(seasonID)
	for _, row := range re.Results {
		if err := o.persistResult(raceID, leagueID, row); err != nil {
			// A single bad result never sinks the race.
			o.recordFailure(progress, "result", row.DriverID, url, err, start)
		}
	}
	return nil
}

// persistResult lazily upserts the driver, then the fact row. Rows
// without a driver profile link cannot be keyed and are dropped.
func (o *Orchestrator) persistResult(raceID int64, leagueID int, row extract.ResultRow) error {
	if row.DriverID == nil {
		return errdefs.Validationf("driver_id", "result row for %q has no driver link", row.DriverName)
	}
	first, last := extract.ParseDriverName(row.DriverName)
	driverURL := ""
	if row.DriverURL != nil {
		driverURL = *row.DriverURL
	} else {
		driverURL = fmt.Sprintf("%s/driver_stats.php?driver_id=%d", o.cfg.League.BaseURLOrDefault(), *row.DriverID)
	}
	if err := o.store.UpsertDriver(&store.Driver{
		DriverID:   *row.DriverID,
		LeagueID:   leagueID,
		Name:       row.DriverName,
		FirstName:  first,
		LastName:   last,
		CarNumbers: row.CarNumber,
		URL:        driverURL,
		ScrapedAt:  store.EpochSentinel,
	}); err != nil {
		return err
	}
	return o.store.UpsertRaceResult(&store.RaceResult{
		RaceID:           raceID,
		DriverID:         *row.DriverID,
		FinishPosition:   row.FinishPosition,
		StartingPosition: row.StartingPosition,
		CarNumber:        row.CarNumber,
		QualifyingTime:   row.QualifyingTime,
		FastestLap:       row.FastestLap,
		FastestLapNumber: row.FastestLapNumber,
		AverageLap:       row.AverageLap,
		Interval:         row.Interval,
		LapsCompleted:    row.LapsCompleted,
		LapsLed:          row.LapsLed,
		IncidentPoints:   row.IncidentPoints,
		TotalPoints:      row.TotalPoints,
		Status:           row.Status,
	})
}

func (o *Orchestrator) walkTeams(ctx context.Context, leagueID int, url string, progress *Progress) {
	start := time.Now()
	tr, err := o.teams.Extract(ctx, url)
	if err != nil {
		o.recordFailure(progress, "team", nil, url, err, start)
		return
	}
	now := nowString()
	for _, team := range tr.Teams {
		teamURL := team.URL
		if err := o.store.UpsertTeam(&store.Team{
			TeamID:      team.TeamID,
			LeagueID:    leagueID,
			Name:        team.Name,
			DriverCount: &team.DriverCount,
			URL:         &teamURL,
			ScrapedAt:   now,
		}); err != nil {
			o.recordFailure(progress, "team", &team.TeamID, team.URL, err, start)
			continue
		}
		progress.TeamsScraped++
	}
	o.logSuccess("team", &leagueID, url, start)
}

// raceRow maps extracted race metadata to a store row with the
// completion flag set.
func raceRow(seasonID int, m *extract.RaceMeta) *store.Race {
	return &store.Race{
		ScheduleID:          m.ScheduleID,
		SeasonID:            seasonID,
		RaceNumber:          m.RaceNumber,
		EventName:           m.EventName,
		TrackID:             m.TrackID,
		TrackConfigID:       m.TrackConfigID,
		TrackName:           m.TrackName,
		TrackType:           m.TrackType,
		TrackLength:         m.TrackLength,
		PlannedLaps:         m.PlannedLaps,
		PointsRace:          m.PointsRace,
		OffWeek:             m.OffWeek,
		NightRace:           m.NightRace,
		PlayoffRace:         m.PlayoffRace,
		RaceDurationMinutes: m.RaceDurationMinutes,
		TotalLaps:           m.TotalLaps,
		Leaders:             m.Leaders,
		LeadChanges:         m.LeadChanges,
		Cautions:            m.Cautions,
		CautionLaps:         m.CautionLaps,
		NumDrivers:          m.NumDrivers,
		WeatherType:         m.WeatherType,
		CloudConditions:     m.CloudConditions,
		TemperatureF:        m.TemperatureF,
		HumidityPct:         m.HumidityPct,
		FogPct:              m.FogPct,
		WindSpeed:           m.WindSpeed,
		WindDir:             m.WindDir,
		URL:                 m.URL,
		IsComplete:          true,
		ScrapedAt:           nowString(),
	}
}

// seasonSeries resolves a season's parent series id from the
// parent-discovery row. Zero when unknown; the upsert will then fail
// integrity and surface in the snapshot.
func (o *Orchestrator) seasonSeries(seasonID int) int {
	se, err := o.store.GetSeason(seasonID)
	if err != nil || se == nil {
		return 0
	}
	return se.SeriesID
}

// raceLeague walks season -> series -> league for lazy driver inserts.
func (o *Orchestrator) raceLeague(seasonID int) int {
	se, err := o.store.GetSeason(seasonID)
	if err != nil || se == nil {
		return 0
	}
	sr, err := o.store.GetSeries(se.SeriesID)
	if err != nil || sr == nil {
		return 0
	}
	return sr.LeagueID
}

// rootCached checks the league-page cache and resolves the league id
// from the URL for descent without a fetch.
func (o *Orchestrator) rootCached(url, kind string, maxAge *int) (bool, *int, error) {
	cached, err := o.store.IsURLCached(url, kind, maxAge)
	if err != nil || !cached {
		return false, nil, err
	}
	m := strings.SplitAfter(url, "league_id=")
	if len(m) < 2 {
		return false, nil, nil
	}
	id, err := strconv.Atoi(strings.TrimRight(m[1], "&/"))
	if err != nil {
		return false, nil, nil
	}
	return true, &id, nil
}

func (o *Orchestrator) logSuccess(kind string, id *int, url string, start time.Time) {
	ms := time.Since(start).Milliseconds()
	if err := o.store.LogScrape(store.ScrapeEntry{
		EntityKind: kind,
		EntityID:   id,
		URL:        url,
		Outcome:    store.OutcomeSuccess,
		DurationMs: &ms,
		RunID:      o.runID,
	}); err != nil {
		o.logger.Warn("scrape log write failed", zap.Error(err))
	}
}

func (o *Orchestrator) logSkip(kind string, id *int, url string) {
	if err := o.store.LogScrape(store.ScrapeEntry{
		EntityKind: kind,
		EntityID:   id,
		URL:        url,
		Outcome:    store.OutcomeSkipped,
		RunID:      o.runID,
	}); err != nil {
		o.logger.Warn("scrape log write failed", zap.Error(err))
	}
	o.logger.Debug("cache hit", zap.String("kind", kind), zap.String("url", url))
}

// recordFailure logs the failure, files a schema alert when the error
// is structural drift, and appends to the snapshot. Interrupts are not
// per-entity failures and are left to the caller.
func (o *Orchestrator) recordFailure(progress *Progress, kind string, id *int, url string, cause error, start time.Time) {
	if isInterrupt(cause) {
		return
	}
	var drift *errdefs.SchemaDriftError
	if errors.As(cause, &drift) {
		if err := o.store.AddSchemaAlert(drift.EntityKind, drift.AlertKind, drift.Detail, url); err != nil {
			o.logger.Warn("schema alert write failed", zap.Error(err))
		}
	}
	msg := cause.Error()
	ms := time.Since(start).Milliseconds()
	if err := o.store.LogScrape(store.ScrapeEntry{
		EntityKind: kind,
		EntityID:   id,
		URL:        url,
		Outcome:    store.OutcomeFailed,
		Error:      &msg,
		DurationMs: &ms,
		RunID:      o.runID,
	}); err != nil {
		o.logger.Warn("scrape log write failed", zap.Error(err))
	}
	progress.Errors = append(progress.Errors, CrawlError{EntityKind: kind, URL: url, Message: msg})
	o.logger.Warn("entity failed",
		zap.String("kind", kind),
		zap.String("url", url),
		zap.Error(cause))
}

func seriesAllowed(id int, allow []int) bool {
	if len(allow) == 0 {
		return true
	}
	for _, a := range allow {
		if a == id {
			return true
		}
	}
	return false
}

// filterSeasons applies the year-substring filter, then the limit, in
// discovery order.
func filterSeasons(refs []extract.SeasonRef, opts Options) []extract.SeasonRef {
	out := refs
	if opts.SeasonYear != 0 {
		year := strconv.Itoa(opts.SeasonYear)
		filtered := make([]extract.SeasonRef, 0, len(refs))
		for _, r := range refs {
			if strings.Contains(r.Name, year) {
				filtered = append(filtered, r)
			}
		}
		out = filtered
	}
	if opts.SeasonLimit > 0 && len(out) > opts.SeasonLimit {
		out = out[:opts.SeasonLimit]
	}
	return out
}

func isInterrupt(err error) bool {
	return err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func nowString() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05")
}

package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gridcrawl/internal/errdefs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(v string) *string { return &v }
func intP(v int) *int         { return &v }
func int64P(v int64) *int64   { return &v }

func seedLeague(t *testing.T, s *Store, id int) {
	t.Helper()
	require.NoError(t, s.UpsertLeague(&League{
		LeagueID:  id,
		Name:      "Test League",
		URL:       "https://host/league_series.php?league_id=1558",
		ScrapedAt: nowString(),
	}))
}

func seedSeason(t *testing.T, s *Store, leagueID, seriesID, seasonID int) {
	t.Helper()
	seedLeague(t, s, leagueID)
	require.NoError(t, s.UpsertSeries(&Series{
		SeriesID: seriesID, LeagueID: leagueID, Name: "S",
		URL:       "https://host/series_seasons.php?series_id=3714",
		ScrapedAt: nowString(),
	}))
	require.NoError(t, s.UpsertSeason(&Season{
		SeasonID: seasonID, SeriesID: seriesID, Name: "2025 Season",
		URL:       "https://host/season_schedule.php?season_id=9001",
		ScrapedAt: nowString(),
	}))
}

func TestUpsertLeagueMergesOptionalFields(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpsertLeague(&League{
		LeagueID: 1558, Name: "League", Description: strPtr("original description"),
		URL: "https://host/l", ScrapedAt: nowString(),
	}))
	// Second write omits the description.
	require.NoError(t, s.UpsertLeague(&League{
		LeagueID: 1558, Name: "League Renamed",
		URL: "https://host/l", ScrapedAt: nowString(),
	}))

	l, err := s.GetLeague(1558)
	require.NoError(t, err)
	require.NotNil(t, l)
	require.Equal(t, "League Renamed", l.Name)
	require.NotNil(t, l.Description)
	require.Equal(t, "original description", *l.Description)
}

func TestUpsertLeagueValidation(t *testing.T) {
	s := newTestStore(t)
	err := s.UpsertLeague(&League{LeagueID: 1, URL: "https://host/l", ScrapedAt: nowString()})
	require.True(t, errdefs.IsValidation(err))
	err = s.UpsertLeague(&League{LeagueID: 1, Name: "x", ScrapedAt: nowString()})
	require.True(t, errdefs.IsValidation(err))
}

func TestUpsertSeriesRequiresParent(t *testing.T) {
	s := newTestStore(t)
	err := s.UpsertSeries(&Series{
		SeriesID: 3714, LeagueID: 999, Name: "S",
		URL: "https://host/s", ScrapedAt: nowString(),
	})
	require.True(t, errdefs.IsIntegrity(err))
}

func TestScrapedAtNeverRegresses(t *testing.T) {
	s := newTestStore(t)
	seedLeague(t, s, 1558)

	fetched := time.Now().UTC().Format(tsLayout)
	require.NoError(t, s.UpsertSeries(&Series{
		SeriesID: 3714, LeagueID: 1558, Name: "S",
		URL: "https://host/s", ScrapedAt: fetched,
	}))
	// A later parent-discovery write carries the epoch sentinel; the
	// fetched timestamp must survive.
	require.NoError(t, s.UpsertSeries(&Series{
		SeriesID: 3714, LeagueID: 1558, Name: "S",
		URL: "https://host/s", ScrapedAt: EpochSentinel,
	}))

	sr, err := s.GetSeries(3714)
	require.NoError(t, err)
	require.Equal(t, fetched, sr.ScrapedAt)
}

func TestGetSeriesByLeagueOrderedByExternalID(t *testing.T) {
	s := newTestStore(t)
	seedLeague(t, s, 1558)
	for _, id := range []int{3714, 3712, 3713} {
		require.NoError(t, s.UpsertSeries(&Series{
			SeriesID: id, LeagueID: 1558, Name: "S",
			URL:       fmt.Sprintf("https://host/series_seasons.php?series_id=%d", id),
			ScrapedAt: nowString(),
		}))
	}
	list, err := s.GetSeriesByLeague(1558)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, 3712, list[0].SeriesID)
	require.Equal(t, 3713, list[1].SeriesID)
	require.Equal(t, 3714, list[2].SeriesID)
}

func TestUpsertRaceReturnsStableSurrogateID(t *testing.T) {
	s := newTestStore(t)
	seedSeason(t, s, 1558, 3714, 9001)

	id1, err := s.UpsertRace(&Race{
		ScheduleID: 324462, SeasonID: 9001, RaceNumber: intP(4),
		TrackName: strPtr("Daytona"), URL: "https://host/r", ScrapedAt: nowString(),
	})
	require.NoError(t, err)
	id2, err := s.UpsertRace(&Race{
		ScheduleID: 324462, SeasonID: 9001,
		URL: "https://host/r", ScrapedAt: nowString(),
	})
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	r, err := s.GetRaceByScheduleID(324462)
	require.NoError(t, err)
	require.NotNil(t, r.TrackName)
	require.Equal(t, "Daytona", *r.TrackName)
	require.Equal(t, 4, *r.RaceNumber)
}

func TestRaceCompletionFlagIsSticky(t *testing.T) {
	s := newTestStore(t)
	seedSeason(t, s, 1558, 3714, 9001)

	_, err := s.UpsertRace(&Race{
		ScheduleID: 324462, SeasonID: 9001, URL: "https://host/r",
		IsComplete: true, ScrapedAt: nowString(),
	})
	require.NoError(t, err)
	_, err = s.UpsertRace(&Race{
		ScheduleID: 324462, SeasonID: 9001, URL: "https://host/r",
		IsComplete: false, ScrapedAt: nowString(),
	})
	require.NoError(t, err)

	complete, err := s.IsRaceComplete(324462)
	require.NoError(t, err)
	require.True(t, complete)
}

func TestIsRaceCompleteAbsentRow(t *testing.T) {
	s := newTestStore(t)
	complete, err := s.IsRaceComplete(999999)
	require.NoError(t, err)
	require.False(t, complete)
}

func TestUpsertRaceResultMerges(t *testing.T) {
	s := newTestStore(t)
	seedSeason(t, s, 1558, 3714, 9001)
	raceID, err := s.UpsertRace(&Race{
		ScheduleID: 324462, SeasonID: 9001, URL: "https://host/r", ScrapedAt: nowString(),
	})
	require.NoError(t, err)
	require.NoError(t, s.UpsertDriver(&Driver{
		DriverID: 77, LeagueID: 1558, Name: "Doe, John",
		URL: "https://host/driver_stats.php?driver_id=77", ScrapedAt: EpochSentinel,
	}))

	require.NoError(t, s.UpsertRaceResult(&RaceResult{
		RaceID: raceID, DriverID: 77,
		FinishPosition: intP(2), QualifyingTime: strPtr("31.405"),
	}))
	require.NoError(t, s.UpsertRaceResult(&RaceResult{
		RaceID: raceID, DriverID: 77,
		FinishPosition: intP(2), LapsLed: intP(12),
	}))

	results, err := s.GetRaceResults(raceID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "31.405", *results[0].QualifyingTime)
	require.Equal(t, 12, *results[0].LapsLed)
}

func TestUpsertRaceResultMissingRefs(t *testing.T) {
	s := newTestStore(t)
	err := s.UpsertRaceResult(&RaceResult{RaceID: 5, DriverID: 5})
	require.True(t, errdefs.IsIntegrity(err))
}

func TestIsURLCached(t *testing.T) {
	s := newTestStore(t)
	seedLeague(t, s, 1558)
	url := "https://host/league_series.php?league_id=1558"

	cached, err := s.IsURLCached(url, "league", nil)
	require.NoError(t, err)
	require.True(t, cached, "nil window trusts any row")

	cached, err = s.IsURLCached(url, "league", intP(7))
	require.NoError(t, err)
	require.True(t, cached, "fresh row inside a 7-day window")

	cached, err = s.IsURLCached(url, "league", intP(0))
	require.NoError(t, err)
	require.False(t, cached, "zero-day window never matches")

	cached, err = s.IsURLCached("https://host/absent", "league", nil)
	require.NoError(t, err)
	require.False(t, cached)

	_, err = s.IsURLCached(url, "bogus", nil)
	require.True(t, errdefs.IsValidation(err))
}

func TestIsURLCachedEpochSentinelIsStale(t *testing.T) {
	s := newTestStore(t)
	seedLeague(t, s, 1558)
	require.NoError(t, s.UpsertSeries(&Series{
		SeriesID: 3714, LeagueID: 1558, Name: "S",
		URL: "https://host/s", ScrapedAt: EpochSentinel,
	}))

	cached, err := s.IsURLCached("https://host/s", "series", intP(10000))
	require.NoError(t, err)
	require.False(t, cached, "discovered-only rows are stale under any finite window")

	cached, err = s.IsURLCached("https://host/s", "series", nil)
	require.NoError(t, err)
	require.True(t, cached)
}

func TestShouldScrapeReasons(t *testing.T) {
	s := newTestStore(t)
	seedSeason(t, s, 1558, 3714, 9001)

	should, reason, err := s.ShouldScrape("race", 111, intP(24))
	require.NoError(t, err)
	require.True(t, should)
	require.Equal(t, "not_in_cache", reason)

	_, err = s.UpsertRace(&Race{
		ScheduleID: 324462, SeasonID: 9001, URL: "https://host/r",
		Status: strPtr("completed"), ScrapedAt: nowString(),
	})
	require.NoError(t, err)

	should, reason, err = s.ShouldScrape("race", 324462, nil)
	require.NoError(t, err)
	require.False(t, should)
	require.Equal(t, "cache_valid_indefinitely", reason)

	should, reason, err = s.ShouldScrape("race", 324462, intP(24))
	require.NoError(t, err)
	require.False(t, should)
	require.Equal(t, "status_completed_stable", reason)

	_, err = s.UpsertRace(&Race{
		ScheduleID: 324463, SeasonID: 9001, URL: "https://host/r2",
		Status: strPtr("ongoing"), ScrapedAt: nowString(),
	})
	require.NoError(t, err)
	should, reason, err = s.ShouldScrape("race", 324463, intP(24))
	require.NoError(t, err)
	require.True(t, should)
	require.Equal(t, "status_ongoing_needs_refresh", reason)
}

func TestFindDriverByName(t *testing.T) {
	s := newTestStore(t)
	seedLeague(t, s, 1558)
	require.NoError(t, s.UpsertDriver(&Driver{
		DriverID: 77, LeagueID: 1558, Name: "Doe, John",
		URL: "https://host/d77", ScrapedAt: nowString(),
	}))
	require.NoError(t, s.UpsertDriver(&Driver{
		DriverID: 78, LeagueID: 1558, Name: "Smith, Jane",
		URL: "https://host/d78", ScrapedAt: nowString(),
	}))

	found, err := s.FindDriverByName("dOe", nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, 77, found[0].DriverID)

	found, err = s.FindDriverByName("j", intP(1558))
	require.NoError(t, err)
	require.Len(t, found, 2)
}

func TestLogScrapeValidatesEnums(t *testing.T) {
	s := newTestStore(t)

	err := s.LogScrape(ScrapeEntry{EntityKind: "gizmo", URL: "https://x", Outcome: OutcomeSuccess})
	require.True(t, errdefs.IsValidation(err))

	err = s.LogScrape(ScrapeEntry{EntityKind: "race", URL: "https://x", Outcome: "meh"})
	require.True(t, errdefs.IsValidation(err))

	require.NoError(t, s.LogScrape(ScrapeEntry{
		EntityKind: "race", URL: "https://x", Outcome: OutcomeSkipped,
		EntityID: intP(324462), DurationMs: int64P(12),
	}))

	log, err := s.GetScrapeLog("https://x")
	require.NoError(t, err)
	require.Len(t, log, 1)
	require.Equal(t, OutcomeSkipped, log[0].Outcome)
	require.Equal(t, 324462, *log[0].EntityID)
}

func TestSchemaAlerts(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddSchemaAlert("series", "missing_marker", "seasons array absent", "https://host/s"))

	alerts, err := s.GetUnresolvedAlerts()
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, "series", alerts[0].EntityKind)
	require.False(t, alerts[0].Resolved)
}

func TestDriverTeamLink(t *testing.T) {
	s := newTestStore(t)
	seedLeague(t, s, 1558)
	require.NoError(t, s.UpsertTeam(&Team{
		TeamID: 42, LeagueID: 1558, Name: "Red Team", DriverCount: intP(5),
		ScrapedAt: nowString(),
	}))
	require.NoError(t, s.UpsertDriver(&Driver{
		DriverID: 77, LeagueID: 1558, TeamID: intP(42), Name: "Doe, John",
		URL: "https://host/d77", ScrapedAt: nowString(),
	}))

	d, err := s.GetDriver(77)
	require.NoError(t, err)
	require.Equal(t, 42, *d.TeamID)

	teams, err := s.GetTeamsByLeague(1558)
	require.NoError(t, err)
	require.Len(t, teams, 1)

	err = s.UpsertDriver(&Driver{
		DriverID: 79, LeagueID: 1558, TeamID: intP(999), Name: "Ghost",
		URL: "https://host/d79", ScrapedAt: nowString(),
	})
	require.True(t, errdefs.IsIntegrity(err))
}

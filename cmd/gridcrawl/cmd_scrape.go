package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gridcrawl/internal/crawl"
	"gridcrawl/internal/errdefs"
	"gridcrawl/internal/fetch"
	"gridcrawl/internal/store"
)

var (
	scrapeDepth    string
	scrapeForce    bool
	scrapeLeagueID int
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Crawl a league's hierarchy into the local database",
}

var scrapeLeagueCmd = &cobra.Command{
	Use:   "league <id>",
	Short: "Crawl one league by its external id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil || id <= 0 {
			return errdefs.Validationf("league_id", "expected a positive integer, got %q", args[0])
		}
		return runScrape(cmd, id)
	},
}

var scrapeAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Crawl the configured league end to end",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id := scrapeLeagueID
		if id == 0 {
			id = cfg.League.ID
		}
		if id <= 0 {
			return errdefs.Validationf("league_id", "pass --league or set league.id in the config file")
		}
		return runScrape(cmd, id)
	},
}

var scrapeDriversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "Refresh stored driver profiles for a league",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id := scrapeLeagueID
		if id == 0 {
			id = cfg.League.ID
		}
		if id <= 0 {
			return errdefs.Validationf("league_id", "pass --league or set league.id in the config file")
		}
		return runDriverRefresh(cmd, id)
	},
}

func init() {
	scrapeCmd.PersistentFlags().StringVar(&scrapeDepth, "depth", "", "traversal depth: league, series, season or race")
	scrapeCmd.PersistentFlags().BoolVar(&scrapeForce, "force", false, "ignore every cache gate, including completed races")
	scrapeCmd.PersistentFlags().IntVar(&scrapeLeagueID, "league", 0, "league id (for 'all' and 'drivers')")

	scrapeCmd.AddCommand(scrapeLeagueCmd)
	scrapeCmd.AddCommand(scrapeAllCmd)
	scrapeCmd.AddCommand(scrapeDriversCmd)
}

// newRun opens the store and the shared gate and wires an orchestrator.
func newRun() (*store.Store, *fetch.Gate, *crawl.Orchestrator, error) {
	st, err := store.New(cfg.Database.PathOrDefault(), logger)
	if err != nil {
		return nil, nil, nil, err
	}
	gate := fetch.NewGate(cfg.Fetch, logger)
	return st, gate, crawl.New(st, gate, cfg, logger), nil
}

func runOptions() (crawl.Options, error) {
	if scrapeDepth != "" {
		cfg.Scrape.Depth = scrapeDepth
	}
	if scrapeForce {
		cfg.Scrape.Force = true
	}
	return crawl.OptionsFromConfig(cfg)
}

func runScrape(cmd *cobra.Command, leagueID int) error {
	opts, err := runOptions()
	if err != nil {
		return err
	}
	st, gate, orch, err := newRun()
	if err != nil {
		return err
	}
	defer st.Close()
	defer gate.Close(false)

	leagueURL := fmt.Sprintf("%s/league_series.php?league_id=%d", cfg.League.BaseURLOrDefault(), leagueID)
	progress, err := orch.ScrapeLeague(cmd.Context(), leagueURL, opts)
	printProgress(cmd, progress)
	return err
}

func runDriverRefresh(cmd *cobra.Command, leagueID int) error {
	opts, err := runOptions()
	if err != nil {
		return err
	}
	st, gate, orch, err := newRun()
	if err != nil {
		return err
	}
	defer st.Close()
	defer gate.Close(false)

	progress, err := orch.RefreshAllDrivers(cmd.Context(), leagueID, opts.CacheMaxAgeDays, opts.Force)
	printProgress(cmd, progress)
	return err
}

func printProgress(cmd *cobra.Command, p *crawl.Progress) {
	if p == nil {
		return
	}
	cmd.Printf("leagues=%d series=%d seasons=%d races=%d teams=%d drivers=%d skipped=%d errors=%d\n",
		p.LeaguesScraped, p.SeriesScraped, p.SeasonsScraped, p.RacesScraped,
		p.TeamsScraped, p.DriversScraped, p.SkippedCached, len(p.Errors))
	for _, e := range p.Errors {
		cmd.Printf("  failed %s %s: %s\n", e.EntityKind, e.URL, e.Message)
		logger.Warn("entity failed during run",
			zap.String("kind", e.EntityKind),
			zap.String("url", e.URL))
	}
}

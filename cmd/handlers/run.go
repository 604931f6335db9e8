package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"goalgazer/internal/config"
	"goalgazer/internal/logger"
	"goalgazer/internal/observability"
	"goalgazer/internal/persistence"
	"goalgazer/internal/pipeline"
	"goalgazer/internal/store"
)

// NewRunCmd creates the run command that generates one match article
func NewRunCmd() *cobra.Command {
	var opts pipeline.RunOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate the article for one match",
		Long: `Generate the article for one match.

The pipeline fetches fixture data from API-Football (or loads the mock match
when no key is configured), renders charts, generates and validates the
narrative and writes the article JSON plus the discovery index.

When configured, the article is also upserted into Postgres, the run is
recorded in the local ledger and an analytics event is sent. Failures of
those sinks are reported but do not fail the run.

Examples:
  # Generate from live data (cached on disk after the first fetch)
  goalgazer run --match-id 1035034

  # Use the bundled mock match
  goalgazer run --match-id 999001 --mock

  # Build everything but write nothing
  goalgazer run --match-id 1035034 --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.MatchID, "match-id", "", "API-Football fixture id")
	cmd.Flags().StringVar(&opts.League, "league", "", "League slug override (e.g. epl)")
	cmd.Flags().BoolVar(&opts.UseMock, "mock", false, "Load the local mock match instead of calling the provider")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Skip writing the article and all sinks")
	_ = cmd.MarkFlagRequired("match-id")

	return cmd
}

func runPipeline(ctx context.Context, opts pipeline.RunOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.Get()

	builder := pipeline.NewBuilder(cfg).WithLogger(log)

	if cfg.PostHog.Enabled() && !opts.DryRun {
		ph, err := observability.NewPostHogClient(cfg.PostHog, log)
		if err != nil {
			log.Warn().Err(err).Msg("Analytics disabled")
		} else {
			defer ph.Close()
			builder.WithAnalytics(ph)
		}
	}

	if cfg.Database.Enabled() && !opts.DryRun {
		db, err := persistence.NewPostgresDB(ctx, cfg.Database)
		if err != nil {
			log.Warn().Err(err).Msg("Postgres unavailable, skipping database sink")
		} else {
			defer db.Close()
			builder.WithArticleSink(db.Matches())
		}
	}

	if cfg.Ledger.Enabled && !opts.DryRun {
		ledger, err := store.NewStore(cfg.Ledger.Path)
		if err != nil {
			log.Warn().Err(err).Msg("Run ledger unavailable")
		} else {
			defer ledger.Close()
			builder.WithLedger(ledger)
		}
	}

	p, err := builder.Build(ctx)
	if err != nil {
		return err
	}

	res, runErr := p.Run(ctx, opts)
	if res != nil {
		fmt.Println(runSummary(cfg, opts, res, runErr))
	}
	return runErr
}

func runSummary(cfg *config.Config, opts pipeline.RunOptions, res *pipeline.RunResult, runErr error) string {
	var lines []string

	if doc := res.Document; doc != nil {
		m := doc.Match
		lines = append(lines,
			field("Match", fmt.Sprintf("%s %d-%d %s", m.HomeTeam.Name, m.Score.Home, m.Score.Away, m.AwayTeam.Name)),
			field("League", m.League),
			field("Slug", doc.Frontmatter.Slug),
		)
	} else {
		lines = append(lines, field("Match", res.MatchID))
	}

	data := "live"
	if res.UsedMock {
		data = "mock"
	} else if res.CacheHits > 0 {
		data = fmt.Sprintf("live (%d cached)", res.CacheHits)
	}
	lines = append(lines, field("Data", data))

	if out := res.Outcome; out != nil {
		lines = append(lines,
			field("Narrative", statusText(string(out.Source))),
			field("Attempts", len(out.Attempts)),
		)
		if out.Provider != "" {
			lines = append(lines, field("Provider", out.Provider))
		}
		for _, a := range out.Attempts {
			if a.Error == "" {
				continue
			}
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("  #%d %s [%s] %s", a.Number, a.Provider, a.Rule, a.Error)))
		}
		for _, r := range out.Repairs {
			lines = append(lines, mutedStyle.Render("  repaired: "+r))
		}
	}

	lines = append(lines, field("Figures", len(res.Figures)))

	switch {
	case opts.DryRun:
		lines = append(lines, field("Article", warnStyle.Render("dry run, nothing written")))
	case res.ArticlePath != "":
		lines = append(lines, field("Article", res.ArticlePath))
	}
	if res.RunID != "" {
		lines = append(lines, field("Run", res.RunID))
	}
	lines = append(lines, field("Elapsed", res.Duration.Round(time.Millisecond)))

	for _, s := range res.SinkErrors {
		lines = append(lines, warnStyle.Render("! "+s))
	}

	title := "Article generated"
	if runErr != nil {
		title = "Run failed"
		lines = append(lines, errorStyle.Render(runErr.Error()))
	}
	if cfg.App.Debug {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("availability %+v", res.Availability)))
	}
	return panel(title, lines...)
}

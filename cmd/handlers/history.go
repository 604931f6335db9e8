package handlers

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"goalgazer/internal/store"
)

// NewHistoryCmd creates the history command for the local run ledger
func NewHistoryCmd() *cobra.Command {
	var (
		matchID  string
		limit    int
		attempts bool
		prune    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs",
		Long: `Show recent pipeline runs from the local SQLite ledger.

Each run records its narrative source, provider and attempt count. Use
--attempts to list the individual generation attempts and the validator
rule that rejected each one.

Examples:
  goalgazer history
  goalgazer history --match-id 1035034 --attempts
  goalgazer history --prune 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(matchID, limit, attempts, prune)
		},
	}

	cmd.Flags().StringVar(&matchID, "match-id", "", "Only show runs for this fixture")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	cmd.Flags().BoolVar(&attempts, "attempts", false, "List generation attempts for each run")
	cmd.Flags().DurationVar(&prune, "prune", 0, "Delete runs older than this age before listing")

	return cmd
}

func runHistory(matchID string, limit int, showAttempts bool, prune time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ledger, err := store.NewStore(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	if prune > 0 {
		n, err := ledger.CleanupOldRuns(prune)
		if err != nil {
			return err
		}
		fmt.Println(mutedStyle.Render(fmt.Sprintf("Pruned %d runs older than %s", n, prune)))
	}

	runs, err := ledger.RecentRuns(matchID, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded in " + ledger.Path())
		return nil
	}

	for _, r := range runs {
		lines := []string{
			field("Status", statusText(r.Status)),
			field("Started", r.StartedAt.Local().Format("2006-01-02 15:04:05")),
		}
		if r.Source != "" {
			lines = append(lines, field("Narrative", statusText(r.Source)))
		}
		if r.Provider != "" {
			lines = append(lines, field("Provider", r.Provider))
		}
		lines = append(lines, field("Attempts", r.Attempts))
		if r.UsedMock {
			lines = append(lines, field("Data", "mock"))
		}
		if r.Slug != "" {
			lines = append(lines, field("Slug", r.Slug))
		}
		if r.Error != "" {
			lines = append(lines, errorStyle.Render(r.Error))
		}

		if showAttempts {
			list, err := ledger.Attempts(r.ID)
			if err != nil {
				return err
			}
			for _, a := range list {
				line := fmt.Sprintf("  #%d %-10s %-9s %5dms", a.Number, a.Provider, a.Source, a.DurationMs)
				if a.Rule != "" {
					line += " [" + a.Rule + "] " + a.Error
				}
				lines = append(lines, mutedStyle.Render(line))
			}
		}

		fmt.Println(panel(fmt.Sprintf("Match %s  %s", r.MatchID, mutedStyle.Render(r.ID)), lines...))
	}

	stats, err := ledger.GetStats()
	if err != nil {
		return err
	}
	fmt.Printf("Runs: %d | Succeeded: %d | Failed: %d | Fallbacks: %d | Avg attempts: %.1f\n",
		stats.Runs, stats.Succeeded, stats.Failed, stats.Fallbacks, stats.AvgAttempts)
	return nil
}

package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"goalgazer/internal/article"
	"goalgazer/internal/llm"
	"goalgazer/internal/logger"
	"goalgazer/internal/persistence"
	"goalgazer/internal/translate"
)

// NewTranslateCmd creates the translate command for localized articles
func NewTranslateCmd() *cobra.Command {
	var (
		matchID string
		langs   []string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate a written article into other languages",
		Long: `Translate a written English article with the primary text provider.

Only headings, paragraphs, bullets, claim sentences, captions and notes are
sent to the model. Match facts, evidence references and figure files are
copied unchanged, and the result must pass the article schema. Each language
gets up to four attempts.

Translations are written next to the source as <date>_<matchId>.<lang>.json
and, when a database is configured, stored in match_content under the
language code.

Examples:
  goalgazer translate --match-id 1035034
  goalgazer translate --match-id 1035034 --lang ja --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd.Context(), matchID, langs, dryRun)
		},
	}

	cmd.Flags().StringVar(&matchID, "match-id", "", "Fixture id of the article to translate")
	cmd.Flags().StringSliceVar(&langs, "lang", translate.Languages(), "Target languages ("+strings.Join(translate.Languages(), ", ")+")")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Translate and validate but write nothing")
	_ = cmd.MarkFlagRequired("match-id")

	return cmd
}

func runTranslate(ctx context.Context, matchID string, langs []string, dryRun bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.Get()

	path, err := article.Locate(cfg.Output.ContentDir, matchID)
	if err != nil {
		return err
	}
	doc, err := article.Load(path)
	if err != nil {
		return err
	}

	provider, err := llm.NewPrimary(ctx, cfg)
	if err != nil {
		return err
	}
	translator := translate.New(translate.Config{Provider: provider, Logger: log})

	var repo *persistence.MatchRepository
	if cfg.Database.Enabled() && !dryRun {
		db, err := persistence.NewPostgresDB(ctx, cfg.Database)
		if err != nil {
			log.Warn().Err(err).Msg("Postgres unavailable, writing files only")
		} else {
			defer db.Close()
			repo = db.Matches()
		}
	}

	lines := []string{field("Source", path), field("Provider", provider.Name())}
	failed := 0
	for _, lang := range langs {
		out, err := translator.Translate(ctx, doc, lang)
		if err != nil {
			failed++
			lines = append(lines, field(lang, statusText("failed")), errorStyle.Render("  "+err.Error()))
			continue
		}
		if dryRun {
			lines = append(lines, field(lang, warnStyle.Render("valid, dry run")))
			continue
		}
		written, err := article.WriteTranslation(out, cfg.Output.ContentDir)
		if err != nil {
			return err
		}
		lines = append(lines, field(lang, written))
		if repo != nil {
			if err := repo.SaveArticle(ctx, out); err != nil {
				lines = append(lines, warnStyle.Render("! database: "+err.Error()))
			}
		}
	}

	title := "Translations written"
	if failed > 0 {
		title = "Translation incomplete"
	}
	fmt.Println(panel(title, lines...))
	if failed > 0 {
		return fmt.Errorf("%d of %d translations failed", failed, len(langs))
	}
	return nil
}

// Package pipeline runs one match from provider data to a written article.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"goalgazer/internal/apifootball"
	"goalgazer/internal/article"
	"goalgazer/internal/config"
	"goalgazer/internal/core"
	"goalgazer/internal/evidence"
	"goalgazer/internal/figures"
	"goalgazer/internal/narrative"
	"goalgazer/internal/normalize"
	"goalgazer/internal/observability"
	"goalgazer/internal/store"
)

// Notes written into the article provenance.
const (
	noteMock     = "Match data loaded from local mock file; no provider request was made."
	noteFallback = "Narrative produced by the deterministic template from catalog facts."
)

// Pipeline orchestrates fetch, normalize, evidence, figures, narrative,
// assembly and output for one match per Run.
type Pipeline struct {
	cfg        *config.Config
	fetcher    MatchFetcher
	controller *narrative.Controller
	figures    *figures.Renderer
	assembler  *article.Assembler
	sink       ArticleSink
	ledger     RunLedger
	analytics  Analytics
	log        *zerolog.Logger
	now        func() time.Time
}

// RunOptions configures a single run
type RunOptions struct {
	MatchID string
	// League overrides the slug league segment.
	League string
	// UseMock loads the local mock file even when a key is configured.
	UseMock bool
	// DryRun skips writing the article and every sink.
	DryRun bool
}

// RunResult contains the output of one run
type RunResult struct {
	RunID        string
	MatchID      string
	ArticlePath  string
	Document     *article.Document
	Outcome      *narrative.Outcome
	Availability core.Availability
	Figures      []core.FigureMeta
	UsedMock     bool
	CacheHits    int
	Duration     time.Duration
	// SinkErrors lists failures of the optional sinks. They do not fail
	// the run.
	SinkErrors []string
}

// Run executes the full pipeline for opts.MatchID
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	matchID := strings.TrimSpace(opts.MatchID)
	if matchID == "" {
		return nil, fmt.Errorf("match id is required")
	}
	start := p.now()
	res := &RunResult{MatchID: matchID}
	res.UsedMock = opts.UseMock || !p.fetcher.Configured()

	if p.ledger != nil && !opts.DryRun {
		id, err := p.ledger.StartRun(matchID, res.UsedMock)
		if err != nil {
			p.sinkFailed(res, "ledger", err)
		}
		res.RunID = id
	}

	err := p.run(ctx, opts, res)
	res.Duration = p.now().Sub(start)
	if err != nil {
		p.log.Error().Err(err).Str("match_id", matchID).Msg("Pipeline run failed")
		if !opts.DryRun {
			p.finishLedger(res, store.StatusFailed, err)
			if p.analytics != nil {
				if terr := p.analytics.TrackError(ctx, errorType(err), err.Error(), "pipeline"); terr != nil {
					p.sinkFailed(res, "analytics", terr)
				}
			}
		}
		return res, err
	}

	if !opts.DryRun {
		p.finishLedger(res, store.StatusSucceeded, nil)
		if p.analytics != nil {
			ev := observability.ArticleEvent{
				MatchID:    matchID,
				Slug:       res.Document.Frontmatter.Slug,
				Source:     string(res.Outcome.Source),
				Provider:   res.Outcome.Provider,
				Attempts:   len(res.Outcome.Attempts),
				Figures:    len(res.Figures),
				UsedMock:   res.UsedMock,
				DurationMs: res.Duration.Milliseconds(),
			}
			if err := p.analytics.TrackArticleGenerated(ctx, ev); err != nil {
				p.sinkFailed(res, "analytics", err)
			}
		}
	}

	p.log.Info().
		Str("match_id", matchID).
		Str("source", string(res.Outcome.Source)).
		Int("attempts", len(res.Outcome.Attempts)).
		Int("figures", len(res.Figures)).
		Str("path", res.ArticlePath).
		Dur("elapsed", res.Duration).
		Msg("Pipeline run finished")
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, opts RunOptions, res *RunResult) error {
	m, bundle, err := p.load(ctx, res)
	if err != nil {
		return err
	}

	cat, err := evidence.Build(m)
	if err != nil {
		return fmt.Errorf("failed to build evidence catalog: %w", err)
	}
	avail := evidence.Assess(bundle, m)
	res.Availability = avail
	p.log.Info().
		Int("facts", cat.Len()).
		Bool("has_players", avail.HasPlayers).
		Bool("has_xg", avail.HasXG).
		Bool("has_shot_locations", avail.HasShotLocations).
		Msg("Evidence catalog built")

	outDir := filepath.Join(p.cfg.Output.PublicDir, m.Match.ID)
	figs, err := p.figures.RenderAll(m, avail, outDir)
	if err != nil {
		p.log.Warn().Err(err).Msg("Figure rendering failed, continuing without charts")
		figs = nil
	}
	res.Figures = figs

	outcome := p.controller.Run(ctx, narrative.Input{
		Match:           m,
		Catalog:         cat,
		Availability:    avail,
		FigureSummaries: figures.Summaries(m),
	})
	res.Outcome = outcome

	in := article.Input{
		Match:        m,
		Catalog:      cat,
		Availability: avail,
		Narrative:    outcome.Payload,
		Figures:      figs,
		FetchedAt:    p.now(),
		Notes:        notes(res.UsedMock, outcome),
		League:       opts.League,
	}
	if bundle != nil {
		in.Endpoints = bundle.Endpoints
		in.FetchedAt = bundle.FetchedAt
	}
	doc, err := p.assembler.Assemble(in)
	if err != nil {
		return err
	}
	res.Document = doc

	if opts.DryRun {
		return nil
	}
	path, err := article.Write(doc, p.cfg.Output.ContentDir)
	if err != nil {
		return err
	}
	res.ArticlePath = path

	if p.sink != nil {
		if err := p.sink.SaveArticle(ctx, doc); err != nil {
			p.sinkFailed(res, "database", err)
		}
	}
	return nil
}

func (p *Pipeline) load(ctx context.Context, res *RunResult) (*core.MatchData, *apifootball.Bundle, error) {
	if res.UsedMock {
		dir := p.cfg.DataProvider.MockDir
		p.log.Warn().
			Str("match_id", res.MatchID).
			Str("path", normalize.MockPath(dir, res.MatchID)).
			Msg("No API-Football key configured or mock requested, loading mock match data")
		m, err := normalize.LoadMock(dir, res.MatchID)
		if err != nil {
			return nil, nil, err
		}
		return m, nil, nil
	}

	bundle, err := p.fetcher.FetchAll(ctx, res.MatchID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch match %s: %w", res.MatchID, err)
	}
	res.CacheHits = bundle.CacheHits
	m, err := normalize.FromBundle(bundle)
	if err != nil {
		return nil, nil, err
	}
	return m, bundle, nil
}

func (p *Pipeline) finishLedger(res *RunResult, status string, runErr error) {
	if p.ledger == nil || res.RunID == "" {
		return
	}
	out := store.Outcome{Status: status}
	if runErr != nil {
		out.Error = runErr.Error()
	}
	if res.Outcome != nil {
		out.Source = string(res.Outcome.Source)
		out.Provider = res.Outcome.Provider
		for _, a := range res.Outcome.Attempts {
			out.Attempts = append(out.Attempts, store.Attempt{
				Number:     a.Number,
				Provider:   a.Provider,
				Source:     string(a.Source),
				Rule:       a.Rule,
				Error:      a.Error,
				DurationMs: a.Duration.Milliseconds(),
			})
		}
	}
	if res.Document != nil {
		out.Slug = res.Document.Frontmatter.Slug
	}
	if err := p.ledger.FinishRun(res.RunID, out); err != nil {
		p.sinkFailed(res, "ledger", err)
	}
}

func (p *Pipeline) sinkFailed(res *RunResult, sink string, err error) {
	p.log.Warn().Err(err).Str("sink", sink).Msg("Optional sink failed")
	res.SinkErrors = append(res.SinkErrors, sink+": "+err.Error())
}

func notes(usedMock bool, o *narrative.Outcome) []string {
	out := []string{}
	if usedMock {
		out = append(out, noteMock)
	}
	if o != nil && o.Source == narrative.SourceFallback {
		out = append(out, noteFallback)
	}
	return out
}

func errorType(err error) string {
	switch {
	case errors.Is(err, article.ErrAssembly):
		return "assembly"
	case errors.Is(err, normalize.ErrMissingField), errors.Is(err, core.ErrScoreMismatch):
		return "data"
	case errors.Is(err, apifootball.ErrNotConfigured):
		return "configuration"
	default:
		return "pipeline"
	}
}

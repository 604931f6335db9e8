package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"goalgazer/internal/apifootball"
	"goalgazer/internal/article"
	"goalgazer/internal/config"
	"goalgazer/internal/figures"
	"goalgazer/internal/llm"
	"goalgazer/internal/logger"
	"goalgazer/internal/narrative"
)

// Builder helps construct a fully configured Pipeline
type Builder struct {
	cfg       *config.Config
	log       *zerolog.Logger
	fetcher   MatchFetcher
	primary   llm.Provider
	alternate llm.Provider
	sink      ArticleSink
	ledger    RunLedger
	analytics Analytics
	now       func() time.Time

	primarySet   bool
	alternateSet bool
}

// NewBuilder creates a builder whose defaults come from cfg
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg, now: time.Now}
}

// WithLogger sets the logger shared by every component
func (b *Builder) WithLogger(log *zerolog.Logger) *Builder {
	b.log = log
	return b
}

// WithFetcher replaces the API-Football client
func (b *Builder) WithFetcher(f MatchFetcher) *Builder {
	b.fetcher = f
	return b
}

// WithPrimary sets the primary text provider. A nil provider skips
// straight to the alternate provider or the fallback.
func (b *Builder) WithPrimary(p llm.Provider) *Builder {
	b.primary = p
	b.primarySet = true
	return b
}

// WithAlternate sets the deep-analysis provider
func (b *Builder) WithAlternate(p llm.Provider) *Builder {
	b.alternate = p
	b.alternateSet = true
	return b
}

// WithArticleSink stores articles in a database after writing
func (b *Builder) WithArticleSink(s ArticleSink) *Builder {
	b.sink = s
	return b
}

// WithLedger records runs
func (b *Builder) WithLedger(l RunLedger) *Builder {
	b.ledger = l
	return b
}

// WithAnalytics emits events. When a also tracks LLM calls the providers
// are wrapped to report them.
func (b *Builder) WithAnalytics(a Analytics) *Builder {
	b.analytics = a
	return b
}

// WithClock overrides the time source
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build constructs the Pipeline
func (b *Builder) Build(ctx context.Context) (*Pipeline, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	log := b.log
	if log == nil {
		log = logger.Get()
	}

	fetcher := b.fetcher
	if fetcher == nil {
		dp := b.cfg.DataProvider
		fetcher = apifootball.NewClient(apifootball.ClientConfig{
			APIKey:          keyOrEmpty(b.cfg),
			BaseURL:         dp.BaseURL,
			Timeout:         dp.Timeout,
			RequestInterval: dp.RequestInterval,
			CacheDir:        dp.CacheDir,
			Logger:          log,
		})
	}

	primary := b.primary
	if !b.primarySet {
		p, err := llm.NewPrimary(ctx, b.cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create primary provider: %w", err)
		}
		primary = p
	}
	alternate := b.alternate
	if !b.alternateSet {
		p, err := llm.NewAlternate(b.cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create alternate provider: %w", err)
		}
		alternate = p
	}

	if tracker, ok := b.analytics.(llm.CallTracker); ok {
		if primary != nil {
			primary = llm.NewTracedProvider(primary, tracker)
		}
		if alternate != nil {
			alternate = llm.NewTracedProvider(alternate, tracker)
		}
	}

	controller := narrative.NewController(narrative.ControllerConfig{
		Primary:        primary,
		Alternate:      alternate,
		MaxAttempts:    b.cfg.Narrative.MaxAttempts,
		EvidencePolicy: b.cfg.Narrative.EvidencePolicy,
		Logger:         log,
	})

	now := b.now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		cfg:        b.cfg,
		fetcher:    fetcher,
		controller: controller,
		figures:    figures.NewRenderer(b.cfg.Output.PublicPrefix, log),
		assembler:  article.NewAssembler(b.cfg.Narrative.EvidencePolicy, log),
		sink:       b.sink,
		ledger:     b.ledger,
		analytics:  b.analytics,
		log:        log,
		now:        now,
	}, nil
}

// keyOrEmpty drops placeholder keys so the client reports itself
// unconfigured.
func keyOrEmpty(cfg *config.Config) string {
	if !cfg.HasDataProviderKey() {
		return ""
	}
	return cfg.DataProvider.APIKey
}

package observability

import (
	"context"
	"fmt"

	"github.com/posthog/posthog-go"
	"github.com/rs/zerolog"

	"goalgazer/internal/config"
)

const systemID = "goalgazer-pipeline"

// enqueuer is the part of posthog.Client the tracker uses.
type enqueuer interface {
	Enqueue(posthog.Message) error
	Close() error
}

// PostHogClient wraps the PostHog SDK for pipeline analytics
type PostHogClient struct {
	client  enqueuer
	enabled bool
	log     *zerolog.Logger
}

// EventProperties contains properties for an event
type EventProperties map[string]interface{}

// NewPostHogClient creates a new PostHog analytics client. Without an API key
// the client is disabled and every call is a no-op.
func NewPostHogClient(cfg config.PostHog, log *zerolog.Logger) (*PostHogClient, error) {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if !cfg.Enabled() {
		return &PostHogClient{enabled: false, log: log}, nil
	}

	client, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{
		Endpoint: cfg.Host,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create PostHog client: %w", err)
	}
	return &PostHogClient{client: client, enabled: true, log: log}, nil
}

func newWithEnqueuer(e enqueuer) *PostHogClient {
	nop := zerolog.Nop()
	return &PostHogClient{client: e, enabled: true, log: &nop}
}

// IsEnabled returns whether PostHog tracking is enabled
func (p *PostHogClient) IsEnabled() bool {
	return p != nil && p.enabled
}

// Capture sends an event to PostHog
func (p *PostHogClient) Capture(ctx context.Context, distinctID string, event string, properties EventProperties) error {
	if !p.IsEnabled() {
		return nil
	}

	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}
	if err := p.client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      event,
		Properties: props,
	}); err != nil {
		p.log.Debug().Err(err).Str("event", event).Msg("PostHog enqueue failed")
		return fmt.Errorf("enqueue %s: %w", event, err)
	}
	return nil
}

// TrackLLMCall records one text-generation call.
func (p *PostHogClient) TrackLLMCall(ctx context.Context, provider, model string, latencyMs int64, success bool) error {
	return p.Capture(ctx, systemID, "llm_call", EventProperties{
		"provider":   provider,
		"model":      model,
		"latency_ms": latencyMs,
		"success":    success,
	})
}

// ArticleEvent describes a finished pipeline run.
type ArticleEvent struct {
	MatchID    string
	Slug       string
	Source     string
	Provider   string
	Attempts   int
	Figures    int
	UsedMock   bool
	DurationMs int64
}

// TrackArticleGenerated records a written article.
func (p *PostHogClient) TrackArticleGenerated(ctx context.Context, ev ArticleEvent) error {
	return p.Capture(ctx, systemID, "article_generated", EventProperties{
		"match_id":    ev.MatchID,
		"slug":        ev.Slug,
		"source":      ev.Source,
		"provider":    ev.Provider,
		"attempts":    ev.Attempts,
		"figures":     ev.Figures,
		"used_mock":   ev.UsedMock,
		"duration_ms": ev.DurationMs,
	})
}

// TrackError tracks when an error occurs
func (p *PostHogClient) TrackError(ctx context.Context, errorType string, errorMessage string, component string) error {
	return p.Capture(ctx, systemID, "error_occurred", EventProperties{
		"error_type":    errorType,
		"error_message": errorMessage,
		"component":     component,
	})
}

// Close flushes pending events.
func (p *PostHogClient) Close() error {
	if !p.IsEnabled() {
		return nil
	}
	return p.client.Close()
}

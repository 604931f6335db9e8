package pipeline

import (
	"context"

	"goalgazer/internal/apifootball"
	"goalgazer/internal/article"
	"goalgazer/internal/observability"
	"goalgazer/internal/store"
)

// MatchFetcher retrieves raw provider responses for a match
type MatchFetcher interface {
	// Configured reports whether live fetches are possible
	Configured() bool

	// FetchAll returns every endpoint's response for the match
	FetchAll(ctx context.Context, matchID string) (*apifootball.Bundle, error)
}

// ArticleSink persists a finished article outside the content directory
type ArticleSink interface {
	SaveArticle(ctx context.Context, doc *article.Document) error
}

// RunLedger records pipeline runs
type RunLedger interface {
	StartRun(matchID string, usedMock bool) (string, error)
	FinishRun(runID string, out store.Outcome) error
}

// Analytics receives product events
type Analytics interface {
	TrackArticleGenerated(ctx context.Context, ev observability.ArticleEvent) error
	TrackError(ctx context.Context, errorType string, errorMessage string, component string) error
}

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalgazer/internal/apifootball"
	"goalgazer/internal/article"
	"goalgazer/internal/config"
	"goalgazer/internal/llm"
	"goalgazer/internal/narrative"
	"goalgazer/internal/observability"
	"goalgazer/internal/store"
)

type fakeLedger struct {
	started  []string
	outcomes map[string]store.Outcome
}

func (l *fakeLedger) StartRun(matchID string, usedMock bool) (string, error) {
	l.started = append(l.started, matchID)
	return "run-" + matchID, nil
}

func (l *fakeLedger) FinishRun(runID string, out store.Outcome) error {
	if l.outcomes == nil {
		l.outcomes = map[string]store.Outcome{}
	}
	l.outcomes[runID] = out
	return nil
}

type fakeAnalytics struct {
	articles []observability.ArticleEvent
	errors   []string
	llmCalls int
}

func (a *fakeAnalytics) TrackArticleGenerated(_ context.Context, ev observability.ArticleEvent) error {
	a.articles = append(a.articles, ev)
	return nil
}

func (a *fakeAnalytics) TrackError(_ context.Context, errorType, _, _ string) error {
	a.errors = append(a.errors, errorType)
	return nil
}

func (a *fakeAnalytics) TrackLLMCall(context.Context, string, string, int64, bool) error {
	a.llmCalls++
	return nil
}

type brokenSink struct{}

func (brokenSink) SaveArticle(context.Context, *article.Document) error {
	return errors.New("connection refused")
}

type fixedProvider struct {
	text string
}

func (p fixedProvider) Name() string { return "fixed" }

func (p fixedProvider) Complete(context.Context, []llm.Message) (string, error) {
	return p.text, nil
}

func testConfig(t *testing.T, mockDir string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataProvider.MockDir = mockDir
	cfg.Output.ContentDir = t.TempDir()
	cfg.Output.PublicDir = t.TempDir()
	return cfg
}

func unconfiguredClient() *apifootball.Client {
	nop := zerolog.Nop()
	return apifootball.NewClient(apifootball.ClientConfig{Logger: &nop})
}

func nopLogger() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}

func TestRunMockWithoutProvidersUsesFallback(t *testing.T) {
	cfg := testConfig(t, filepath.Join("..", "..", "mock_data"))
	ledger := &fakeLedger{}
	analytics := &fakeAnalytics{}

	p, err := NewBuilder(cfg).
		WithLogger(nopLogger()).
		WithFetcher(unconfiguredClient()).
		WithPrimary(nil).
		WithAlternate(nil).
		WithLedger(ledger).
		WithAnalytics(analytics).
		WithArticleSink(brokenSink{}).
		Build(context.Background())
	require.NoError(t, err)

	res, err := p.Run(context.Background(), RunOptions{MatchID: "999001"})
	require.NoError(t, err)

	assert.True(t, res.UsedMock)
	assert.Equal(t, narrative.SourceFallback, res.Outcome.Source)
	assert.Empty(t, res.Outcome.Attempts)
	assert.Equal(t, filepath.Join(cfg.Output.ContentDir, "matches", "2024-03-02_999001.json"), res.ArticlePath)
	require.NoError(t, article.ValidateFile(res.ArticlePath))

	doc := res.Document
	assert.Equal(t, "Premier League Tactical Review: Arsenal vs Chelsea", doc.Frontmatter.Title)
	assert.Equal(t, []string{noteMock, noteFallback}, doc.DataProvenance.Notes)
	assert.Nil(t, doc.Players, "mock match has no player statistics")

	for _, f := range res.Figures {
		_, err := os.Stat(filepath.Join(cfg.Output.PublicDir, "999001", filepath.Base(f.Src)))
		assert.NoError(t, err, f.ID)
	}

	require.Len(t, res.SinkErrors, 1, "database failure is reported, not fatal")
	assert.Contains(t, res.SinkErrors[0], "database")

	assert.Equal(t, []string{"999001"}, ledger.started)
	out := ledger.outcomes["run-999001"]
	assert.Equal(t, store.StatusSucceeded, out.Status)
	assert.Equal(t, "fallback", out.Source)
	assert.Equal(t, doc.Frontmatter.Slug, out.Slug)

	require.Len(t, analytics.articles, 1)
	assert.True(t, analytics.articles[0].UsedMock)
	assert.Zero(t, analytics.llmCalls)
}

const cityNarrative = `{
	"language": "en",
	"title": "City cruise at Turf Moor",
	"meta_description": "Manchester City won 3-0 at Burnley.",
	"tags": ["premier-league"],
	"thesis": "City controlled the game from the first whistle.",
	"sections": [
		{"heading": "Match Overview", "paragraphs": ["City won comfortably.", "Burnley rarely threatened."], "bullets": [],
		 "claims": [{"claim": "City won 3-0 away.", "evidence": ["match.score.home=0", "match.score.away=3"], "confidence": 0.95}]}
	],
	"player_notes": [],
	"data_limitations": [],
	"cta": "Thanks for reading."
}`

func TestRunLiveFromCacheAcceptsPrimary(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	analytics := &fakeAnalytics{}
	client := apifootball.NewClient(apifootball.ClientConfig{
		APIKey:   "test-key",
		CacheDir: filepath.Join("..", "normalize", "testdata", "cache"),
		Logger:   nopLogger(),
	})

	p, err := NewBuilder(cfg).
		WithLogger(nopLogger()).
		WithFetcher(client).
		WithPrimary(fixedProvider{text: "```json\n" + cityNarrative + "\n```"}).
		WithAlternate(nil).
		WithAnalytics(analytics).
		Build(context.Background())
	require.NoError(t, err)

	res, err := p.Run(context.Background(), RunOptions{MatchID: "1035034", League: "epl"})
	require.NoError(t, err)

	assert.False(t, res.UsedMock)
	assert.Equal(t, 5, res.CacheHits)
	assert.Equal(t, narrative.SourcePrimary, res.Outcome.Source)
	assert.Equal(t, "fixed", res.Outcome.Provider)
	require.Len(t, res.Outcome.Attempts, 1)
	assert.Equal(t, 1, analytics.llmCalls, "providers are traced when analytics tracks calls")

	doc := res.Document
	assert.Equal(t, "City cruise at Turf Moor", doc.Frontmatter.Title)
	assert.Equal(t, "epl-burnley-vs-manchester-city-2023-08-11", doc.Frontmatter.Slug)
	assert.Contains(t, doc.DataCitations, "API-Football player statistics")
	assert.Empty(t, doc.DataProvenance.Notes)

	entries, err := article.ReadIndex(cfg.Output.ContentDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1035034", entries[0].MatchID)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	cfg := testConfig(t, filepath.Join("..", "..", "mock_data"))
	ledger := &fakeLedger{}

	p, err := NewBuilder(cfg).
		WithLogger(nopLogger()).
		WithFetcher(unconfiguredClient()).
		WithPrimary(nil).
		WithAlternate(nil).
		WithLedger(ledger).
		Build(context.Background())
	require.NoError(t, err)

	res, err := p.Run(context.Background(), RunOptions{MatchID: "999001", DryRun: true})
	require.NoError(t, err)
	assert.NotNil(t, res.Document)
	assert.Empty(t, res.ArticlePath)
	assert.Empty(t, ledger.started)

	_, err = os.Stat(filepath.Join(cfg.Output.ContentDir, "index.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunScoreMismatchIsFatal(t *testing.T) {
	mockDir := t.TempDir()
	bad := `{"match": {"id": "5", "date_utc": "2024-01-01T12:00:00Z", "league": "Test League", "season": "2023",
		"homeTeam": {"id": "1", "name": "A"}, "awayTeam": {"id": "2", "name": "B"}, "score": {"home": 2, "away": 0}},
		"timeline": [], "aggregates": {"normalized": {}}}`
	require.NoError(t, os.WriteFile(filepath.Join(mockDir, "match_5.json"), []byte(bad), 0644))

	cfg := testConfig(t, mockDir)
	ledger := &fakeLedger{}
	analytics := &fakeAnalytics{}
	p, err := NewBuilder(cfg).
		WithLogger(nopLogger()).
		WithFetcher(unconfiguredClient()).
		WithPrimary(nil).
		WithAlternate(nil).
		WithLedger(ledger).
		WithAnalytics(analytics).
		Build(context.Background())
	require.NoError(t, err)

	_, err = p.Run(context.Background(), RunOptions{MatchID: "5"})
	require.Error(t, err)
	assert.Equal(t, store.StatusFailed, ledger.outcomes["run-5"].Status)
	assert.Equal(t, []string{"data"}, analytics.errors)
	assert.Empty(t, analytics.articles)
}

func TestRunRequiresMatchID(t *testing.T) {
	p, err := NewBuilder(testConfig(t, t.TempDir())).
		WithLogger(nopLogger()).
		WithFetcher(unconfiguredClient()).
		WithPrimary(nil).
		WithAlternate(nil).
		Build(context.Background())
	require.NoError(t, err)

	_, err = p.Run(context.Background(), RunOptions{MatchID: "  "})
	assert.Error(t, err)
}

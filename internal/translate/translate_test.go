package translate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalgazer/internal/article"
	"goalgazer/internal/core"
	"goalgazer/internal/evidence"
	"goalgazer/internal/llm"
	"goalgazer/internal/narrative"
	"goalgazer/internal/schema"
)

func ip(v int) *int { return &v }

func englishArticle(t *testing.T) *article.Document {
	t.Helper()
	m := &core.MatchData{
		Match: core.MatchInfo{
			ID:       "4242",
			DateUTC:  "2024-03-09T17:30:00+00:00",
			League:   "J1 League",
			Season:   "2024",
			HomeTeam: core.TeamRef{ID: "10", Name: "Kashima"},
			AwayTeam: core.TeamRef{ID: "20", Name: "Urawa"},
			Score:    core.Score{Home: 1, Away: 0, HTHome: ip(0), HTAway: ip(0)},
		},
		Teams: []core.TeamInfo{
			{ID: "10", Name: "Kashima", Side: core.SideHome, Formation: "4-4-2"},
			{ID: "20", Name: "Urawa", Side: core.SideAway, Formation: "4-2-3-1"},
		},
		Timeline: []core.TimelineEvent{
			{Minute: 55, Type: core.EventGoal, TeamID: "10", TeamName: "Kashima", PlayerID: "7", PlayerName: "Y. Suzuki",
				Detail: "Normal Goal", ScoreAfter: &core.ScoreLine{Home: 1}},
		},
		Aggregates: core.Aggregates{Normalized: map[string]core.TeamNormalizedStats{
			"10": {Possession: ip(55), TotalShots: ip(12)},
			"20": {Possession: ip(45), TotalShots: ip(7)},
		}},
	}
	cat, err := evidence.Build(m)
	require.NoError(t, err)
	avail := core.Availability{HasEvents: true, HasStatistics: true}
	doc, err := article.NewAssembler("", nil).Assemble(article.Input{
		Match:        m,
		Catalog:      cat,
		Availability: avail,
		Narrative:    narrative.Fallback(cat, avail),
		Figures: []core.FigureMeta{
			{ID: "stats-comparison", Src: "/generated/matches/4242/stats_comparison.png", Alt: "Team statistics",
				Caption: "Shots and possession", Width: 960, Height: 540, Kind: core.FigureStatsComparison},
		},
		Endpoints: []string{"fixture", "events", "stats"},
		FetchedAt: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return doc
}

// reply builds a model answer from the JSON the translator sent.
type reply func(input string) string

type fakeProvider struct {
	replies []reply
	calls   int
	system  []string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	step := p.replies[min(p.calls, len(p.replies)-1)]
	p.calls++
	p.system = append(p.system, msgs[0].Content)
	body := strings.TrimPrefix(msgs[1].Content, "Input JSON:\n<<<JSON\n")
	body = strings.TrimSuffix(body, "\nJSON\n>>>")
	return step(body), nil
}

// tagged marks every string value with a language prefix, the way a
// translation keeps structure but changes text.
func tagged(prefix string) reply {
	return func(input string) string {
		var v any
		if err := json.Unmarshal([]byte(input), &v); err != nil {
			return "not json"
		}
		out, _ := json.Marshal(rewrite(v, prefix))
		return "```json\n" + string(out) + "\n```"
	}
}

func rewrite(v any, prefix string) any {
	switch x := v.(type) {
	case string:
		if x == "" {
			return x
		}
		return prefix + x
	case []any:
		for i := range x {
			x[i] = rewrite(x[i], prefix)
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = rewrite(x[k], prefix)
		}
		return x
	}
	return v
}

func fixed(text string) reply {
	return func(string) string { return text }
}

func newTranslator(p llm.Provider) *Translator {
	return New(Config{Provider: p, RetryDelay: -1})
}

func TestTranslateKeepsFactsAndEvidence(t *testing.T) {
	src := englishArticle(t)
	before, err := json.Marshal(src)
	require.NoError(t, err)

	p := &fakeProvider{replies: []reply{tagged("[zh] ")}}
	out, err := newTranslator(p).Translate(context.Background(), src, "zh")
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)
	assert.Contains(t, p.system[0], "Simplified Chinese")

	assert.Equal(t, "zh", out.Language)
	assert.Equal(t, "[zh] "+src.Frontmatter.Title, out.Frontmatter.Title)
	assert.Equal(t, src.Frontmatter.Slug, out.Frontmatter.Slug)
	assert.Equal(t, src.Frontmatter.Teams, out.Frontmatter.Teams)
	assert.Equal(t, src.Match, out.Match)
	assert.Equal(t, src.Timeline, out.Timeline)
	assert.Equal(t, src.TeamStats, out.TeamStats)

	require.Len(t, out.Sections, len(src.Sections))
	for i, s := range out.Sections {
		assert.True(t, strings.HasPrefix(s.Heading, "[zh] "), s.Heading)
		require.Len(t, s.Claims, len(src.Sections[i].Claims))
		for j, c := range s.Claims {
			assert.Equal(t, src.Sections[i].Claims[j].Evidence, c.Evidence)
			assert.Equal(t, "[zh] "+src.Sections[i].Claims[j].Claim, c.Claim)
		}
	}
	require.Len(t, out.Figures, 1)
	assert.Equal(t, "[zh] Team statistics", out.Figures[0].Alt)
	assert.Equal(t, src.Figures[0].Src, out.Figures[0].Src)
	for _, s := range out.Sections {
		for _, f := range s.Figures {
			assert.Equal(t, "[zh] Shots and possession", f.Caption)
		}
	}
	for i, n := range out.PlayerNotes {
		assert.Equal(t, src.PlayerNotes[i].Evidence, n.Evidence)
		assert.Equal(t, src.PlayerNotes[i].Player, n.Player)
	}
	require.NoError(t, schema.ValidateArticle(out))

	after, err := json.Marshal(src)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after), "source article is untouched")
}

func TestTranslateRetriesRejectedAnswers(t *testing.T) {
	src := englishArticle(t)
	p := &fakeProvider{replies: []reply{
		fixed("Sorry, I cannot help with that."),
		fixed(`{"title":"标题","sections":[]}`),
		fixed(`{"title":"标题","unexpected":true}`),
		tagged("[ja] "),
	}}

	out, err := newTranslator(p).Translate(context.Background(), src, "ja")
	require.NoError(t, err)
	assert.Equal(t, 4, p.calls)
	assert.Equal(t, "ja", out.Language)
	assert.NotContains(t, p.system[0], "retry")
	assert.Contains(t, p.system[1], "This is a retry")
	assert.Contains(t, p.system[0], "Japanese")
}

func TestTranslateGivesUp(t *testing.T) {
	p := &fakeProvider{replies: []reply{fixed("{}")}}
	_, err := newTranslator(p).Translate(context.Background(), englishArticle(t), "zh")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranslationFailed))
	assert.Equal(t, DefaultAttempts, p.calls)
}

func TestTranslateUnsupportedLanguage(t *testing.T) {
	p := &fakeProvider{replies: []reply{tagged("x")}}
	_, err := newTranslator(p).Translate(context.Background(), englishArticle(t), "ko")
	assert.True(t, errors.Is(err, ErrUnsupportedLanguage))
	assert.Zero(t, p.calls)
}

func TestTranslateStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakeProvider{replies: []reply{fixed("{}")}}
	_, err := New(Config{Provider: p, RetryDelay: time.Hour}).Translate(ctx, englishArticle(t), "zh")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.calls)
}

func TestMatch(t *testing.T) {
	want := Text{
		Title:    "Kashima edge Urawa",
		Tags:     []string{"j1"},
		Sections: []SectionText{{Heading: "Key Moments", Paragraphs: []string{"p"}, Bullets: []string{}, Claims: []string{"Y. Suzuki scored in minute 55 to make it 1-0."}}},
	}

	good := Text{
		Title:    "鹿岛小胜浦和",
		Tags:     []string{"j1"},
		Sections: []SectionText{{Heading: "关键时刻", Paragraphs: []string{"段落"}, Bullets: []string{}, Claims: []string{"Y. Suzuki 第55分钟进球，比分1-0。"}}},
	}
	assert.NoError(t, Match(want, good))

	lost := good
	lost.Sections = []SectionText{{Heading: "关键时刻", Paragraphs: []string{"段落"}, Bullets: []string{}, Claims: []string{"Y. Suzuki 进球。"}}}
	err := Match(want, lost)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "55")

	blank := good
	blank.Title = " "
	assert.Error(t, Match(want, blank))

	short := good
	short.Tags = nil
	assert.Error(t, Match(want, short))
}

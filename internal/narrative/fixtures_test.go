package narrative

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"goalgazer/internal/core"
	"goalgazer/internal/evidence"
	"goalgazer/internal/llm"
)

func ip(v int) *int { return &v }
func fp(v float64) *float64 { return &v }
func sp(v string) *string { return &v }

func richMatch() *core.MatchData {
	return &core.MatchData{
		Match: core.MatchInfo{
			ID:       "900",
			DateUTC:  "2024-05-01T19:00:00Z",
			League:   "La Liga",
			Season:   "2023",
			Round:    "Regular Season - 34",
			HomeTeam: core.TeamRef{ID: "529", Name: "Barcelona"},
			AwayTeam: core.TeamRef{ID: "530", Name: "Atletico Madrid"},
			Score:    core.Score{Home: 2, Away: 0, HTHome: ip(1), HTAway: ip(0)},
			Venue:    "Estadi Olímpic",
		},
		Teams: []core.TeamInfo{
			{ID: "529", Name: "Barcelona", Side: core.SideHome, Formation: "4-3-3"},
			{ID: "530", Name: "Atletico Madrid", Side: core.SideAway, Formation: "5-3-2"},
		},
		Players: []core.PlayerInfo{
			{ID: "1", Name: "R. Lewandowski", TeamID: "529", Position: "F", Minutes: 90, Starter: true,
				Stats: core.PlayerStats{Rating: fp(7.8), Shots: ip(4), Goals: ip(2)}},
			{ID: "2", Name: "Pedri", TeamID: "529", Position: "M", Minutes: 75, Starter: true,
				Stats: core.PlayerStats{KeyPasses: ip(3)}},
			{ID: "3", Name: "A. Griezmann", TeamID: "530", Position: "F", Minutes: 90, Starter: true,
				Stats: core.PlayerStats{Rating: fp(6.6), DuelsWon: ip(4)}},
		},
		Timeline: []core.TimelineEvent{
			{Minute: 12, Type: core.EventGoal, TeamID: "529", TeamName: "Barcelona", PlayerID: "1", PlayerName: "R. Lewandowski",
				AssistID: sp("2"), AssistName: sp("Pedri"), Detail: "Normal Goal", ScoreAfter: &core.ScoreLine{Home: 1}},
			{Minute: 64, Type: core.EventCard, TeamID: "530", TeamName: "Atletico Madrid", PlayerID: "3", PlayerName: "A. Griezmann",
				Detail: "Yellow Card", ScoreAfter: &core.ScoreLine{Home: 1}},
			{Minute: 80, Type: core.EventGoal, TeamID: "529", TeamName: "Barcelona", PlayerID: "1", PlayerName: "R. Lewandowski",
				Detail: "Penalty", ScoreAfter: &core.ScoreLine{Home: 2}},
		},
		Aggregates: core.Aggregates{Normalized: map[string]core.TeamNormalizedStats{
			"529": {Possession: ip(61), TotalShots: ip(14), ShotsOnTarget: ip(6), PassAccuracy: ip(88), ExpectedGoals: fp(1.9)},
			"530": {Possession: ip(39), TotalShots: ip(7), ShotsOnTarget: ip(2), PassAccuracy: ip(79), ExpectedGoals: fp(0.64)},
		}},
	}
}

// thinMatch has a timeline and team statistics but no player data.
func thinMatch() *core.MatchData {
	m := richMatch()
	m.Players = []core.PlayerInfo{}
	for id, s := range m.Aggregates.Normalized {
		s.ExpectedGoals = nil
		m.Aggregates.Normalized[id] = s
	}
	return m
}

func fullAvailability() core.Availability {
	return core.Availability{HasEvents: true, HasStatistics: true, HasLineups: true, HasPlayers: true, HasXG: true, HasShotLocations: true}
}

func thinAvailability() core.Availability {
	return core.Availability{HasEvents: true, HasStatistics: true, HasLineups: true}
}

func newInput(t *testing.T, m *core.MatchData, a core.Availability) Input {
	t.Helper()
	cat, err := evidence.Build(m)
	require.NoError(t, err)
	return Input{Match: m, Catalog: cat, Availability: a, FigureSummaries: map[string]any{"stats_comparison": "bars"}}
}

func groundedPayload() core.NarrativePayload {
	para := []string{"Barcelona controlled the ball.", "Atletico sat deep."}
	p := core.NarrativePayload{
		Language:        "en",
		Title:           "Barcelona 2-0 Atletico Madrid",
		MetaDescription: "Tactical review",
		Tags:            []string{"la-liga"},
		Thesis:          "Barcelona dominated possession.",
		Sections: []core.Section{
			{Heading: HeadingOverview, Paragraphs: para, Claims: []core.Claim{
				{Claim: "Barcelona won 2-0.", Evidence: []string{"match.score.home=2", "match.score.away"}, Confidence: 0.95},
			}},
			{Heading: HeadingKeyMoments, Paragraphs: para, Claims: []core.Claim{
				{Claim: "The opener came early.", Evidence: []string{"timeline.0.minute=12"}, Confidence: 0.9},
			}},
			{Heading: HeadingTactical, Paragraphs: para, Claims: []core.Claim{
				{Claim: "Barcelona had more of the ball.", Evidence: []string{"team_stats.normalized.529.possession=61"}, Confidence: 0.9},
			}},
		},
		PlayerNotes: []core.PlayerNote{
			{Player: "R. Lewandowski", Team: "Barcelona", Summary: "Scored twice.", Evidence: []string{"timeline.0.player", "timeline.2.player"}},
		},
		DataLimitations: []string{},
		CTA:             "Subscribe.",
	}
	p.Normalize()
	return p
}

func encode(t *testing.T, p core.NarrativePayload) string {
	t.Helper()
	p.Normalize()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	return string(data)
}

// scriptedProvider returns canned completions or errors in order and
// repeats the last entry once the script runs out.
type scriptedProvider struct {
	name  string
	steps []step
	calls int
}

type step struct {
	text string
	err  error
}

func (s *scriptedProvider) Name() string { return s.name }

func (s *scriptedProvider) Complete(_ context.Context, _ []llm.Message) (string, error) {
	i := s.calls
	s.calls++
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i].text, s.steps[i].err
}

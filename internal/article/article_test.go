package article

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalgazer/internal/config"
	"goalgazer/internal/core"
	"goalgazer/internal/evidence"
	"goalgazer/internal/narrative"
)

func ip(v int) *int { return &v }
func fp(v float64) *float64 { return &v }

func testMatch() *core.MatchData {
	return &core.MatchData{
		Match: core.MatchInfo{
			ID:       "4242",
			DateUTC:  "2024-03-09T17:30:00+00:00",
			League:   "Süper Lig",
			Season:   "2023",
			HomeTeam: core.TeamRef{ID: "10", Name: "Beşiktaş"},
			AwayTeam: core.TeamRef{ID: "20", Name: "Atlético Test"},
			Score:    core.Score{Home: 1, Away: 0, HTHome: ip(0), HTAway: ip(0)},
		},
		Teams: []core.TeamInfo{
			{ID: "10", Name: "Beşiktaş", Side: core.SideHome, Formation: "4-2-3-1"},
			{ID: "20", Name: "Atlético Test", Side: core.SideAway, Formation: "4-4-2"},
		},
		Players: []core.PlayerInfo{
			{ID: "7", Name: "C. Immobile", TeamID: "10", Minutes: 90, Starter: true, Stats: core.PlayerStats{Rating: fp(8.1), Goals: ip(1)}},
			{ID: "8", Name: "G. Paulista", TeamID: "20", Minutes: 90, Starter: true, Stats: core.PlayerStats{Tackles: ip(5)}},
		},
		Timeline: []core.TimelineEvent{
			{Minute: 55, Type: core.EventGoal, TeamID: "10", TeamName: "Beşiktaş", PlayerID: "7", PlayerName: "C. Immobile",
				Detail: "Normal Goal", ScoreAfter: &core.ScoreLine{Home: 1}},
		},
		Aggregates: core.Aggregates{Normalized: map[string]core.TeamNormalizedStats{
			"10": {Possession: ip(58), TotalShots: ip(15)},
			"20": {Possession: ip(42), TotalShots: ip(6)},
		}},
	}
}

func players() core.Availability {
	return core.Availability{HasEvents: true, HasStatistics: true, HasLineups: true, HasPlayers: true}
}

func assembleInput(t *testing.T, figures []core.FigureMeta) Input {
	t.Helper()
	m := testMatch()
	cat, err := evidence.Build(m)
	require.NoError(t, err)
	a := players()
	return Input{
		Match:        m,
		Catalog:      cat,
		Availability: a,
		Narrative:    narrative.Fallback(cat, a),
		Figures:      figures,
		Endpoints:    []string{"fixture", "events", "lineups", "stats", "players"},
		FetchedAt:    time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
	}
}

func threeFigures() []core.FigureMeta {
	return []core.FigureMeta{
		{ID: "stats-comparison", Src: "/generated/matches/4242/stats_comparison.png", Alt: "a", Caption: "c", Width: 960, Height: 540, Kind: core.FigureStatsComparison},
		{ID: "goals-timeline", Src: "/generated/matches/4242/goals_timeline.png", Alt: "a", Caption: "c", Width: 960, Height: 540, Kind: core.FigureTimeline},
		{ID: "shot-map", Src: "/generated/matches/4242/shot_map.png", Alt: "a", Caption: "c", Width: 960, Height: 540, Kind: core.FigureShotProxy},
	}
}

func TestAssembleWithoutFiguresOmitsHeroImage(t *testing.T) {
	doc, err := NewAssembler(config.EvidenceStrict, nil).Assemble(assembleInput(t, nil))
	require.NoError(t, err)

	assert.Empty(t, doc.Frontmatter.HeroImage)
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	var fm map[string]any
	require.NoError(t, json.Unmarshal(raw["frontmatter"], &fm))
	assert.NotContains(t, fm, "heroImage")
	assert.Contains(t, fm, "slug")
	assert.NotNil(t, doc.Figures)
}

func TestAssembleFrontmatterAndFigures(t *testing.T) {
	doc, err := NewAssembler("", nil).Assemble(assembleInput(t, threeFigures()))
	require.NoError(t, err)

	fm := doc.Frontmatter
	assert.Equal(t, "super-lig", fm.League)
	assert.Equal(t, "super-lig-besiktas-vs-atletico-test-2024-03-09", fm.Slug)
	assert.Equal(t, []string{"Beşiktaş", "Atlético Test"}, fm.Teams)
	assert.Equal(t, "/generated/matches/4242/stats_comparison.png", fm.HeroImage)
	assert.Equal(t, "2024-03-09_4242", doc.FileKey())

	require.Len(t, doc.Sections, 3)
	assert.Equal(t, "stats-comparison", doc.Sections[0].Figures[0].ID)
	assert.Equal(t, "goals-timeline", doc.Sections[1].Figures[0].ID)
	assert.Equal(t, "shot-map", doc.Sections[2].Figures[0].ID)

	assert.Equal(t, "api-football", doc.DataProvenance.Provider)
	assert.Equal(t, "2024-03-10T08:00:00Z", doc.DataProvenance.FetchedAtUTC)
	assert.Contains(t, doc.DataCitations, "API-Football player statistics")
	require.NotNil(t, doc.Players)
	assert.Equal(t, "C. Immobile", doc.Players.Home[0].Name)
}

func TestAssembleLeagueOverride(t *testing.T) {
	in := assembleInput(t, nil)
	in.League = "tsl"
	doc, err := NewAssembler("", nil).Assemble(in)
	require.NoError(t, err)
	assert.Equal(t, "tsl", doc.Frontmatter.League)
	assert.Equal(t, "tsl-besiktas-vs-atletico-test-2024-03-09", doc.Frontmatter.Slug)
}

func TestAssembleFiguresWithoutMatchingHeadings(t *testing.T) {
	in := assembleInput(t, threeFigures())
	in.Narrative.Sections = in.Narrative.Sections[:1]
	in.Narrative.Sections[0].Heading = "Report"

	doc, err := NewAssembler("", nil).Assemble(in)
	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)
	assert.Len(t, doc.Sections[0].Figures, 3)
}

func TestAssembleBackfillsRatingEvidence(t *testing.T) {
	in := assembleInput(t, nil)
	in.Narrative.PlayerNotes = []core.PlayerNote{
		{Player: "c. immobile", Team: "Beşiktaş", Summary: "Scored the winner.", Evidence: []string{"timeline.0.player"}, Rating: "8.1"},
		{Player: "G. Paulista", Team: "Atlético Test", Summary: "Busy at the back, rated 7.2.", Evidence: []string{"players.away.0.tackles=5"}, Rating: "7.2"},
	}

	doc, err := NewAssembler("", nil).Assemble(in)
	require.NoError(t, err)

	assert.Contains(t, doc.PlayerNotes[0].Evidence, "players.home.0.rating=8.1")
	assert.Equal(t, "8.1", doc.PlayerNotes[0].Rating)
	assert.Equal(t, "Busy at the back.", doc.PlayerNotes[1].Summary)
	assert.Empty(t, doc.PlayerNotes[1].Rating)

	assert.Equal(t, "7.2", in.Narrative.PlayerNotes[1].Rating, "input payload is not mutated")
}

func TestAssembleFinalCheckIsFatal(t *testing.T) {
	in := assembleInput(t, nil)
	in.Narrative.Sections[0].Claims[0].Evidence = []string{"match.score.aggregate=3"}

	_, err := NewAssembler(config.EvidenceStrict, nil).Assemble(in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAssembly))

	in = assembleInput(t, nil)
	in.Match.Match.DateUTC = "next tuesday"
	_, err = NewAssembler("", nil).Assemble(in)
	assert.ErrorIs(t, err, ErrAssembly)
}

func TestSlugify(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Premier League", "premier-league"},
		{"Atlético Madrid", "atletico-madrid"},
		{"  Paris Saint-Germain ", "paris-saint-germain"},
		{"1. FC Köln", "1-fc-koln"},
		{"Brighton & Hove", "brighton-hove"},
		{"---", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Slugify(c.in), c.in)
	}
}

func TestMatchSlug(t *testing.T) {
	cases := []struct {
		name                         string
		league, home, away, date, id string
		want                         string
	}{
		{"full", "EPL", "Burnley", "Manchester City", "2023-08-11T19:00:00+00:00", "1035034", "epl-burnley-vs-manchester-city-2023-08-11"},
		{"empty", "", "", "", "", "", "match"},
		{"non-latin names", "", "東京", "大阪", "2024-03-01T10:00:00Z", "777", "match-777-2024-03-01"},
		{"one team", "j1", "Kashima", "大阪", "2024-03-01", "778", "j1-kashima-2024-03-01"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, MatchSlug(c.league, c.home, c.away, c.date, c.id), c.name)
	}
	assert.NotEqual(t,
		MatchSlug("", "東京", "大阪", "2024-03-01", "777"),
		MatchSlug("", "名古屋", "札幌", "2024-03-01", "779"),
		"same-day fixtures without latin names get distinct slugs")
}

func TestWriteMaintainsIndex(t *testing.T) {
	dir := t.TempDir()
	asm := NewAssembler("", nil)

	first, err := asm.Assemble(assembleInput(t, nil))
	require.NoError(t, err)
	path, err := Write(first, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "matches", "2024-03-09_4242.json"), path)

	other := assembleInput(t, nil)
	other.Match.Match.ID = "5000"
	other.Match.Match.DateUTC = "2024-03-16T17:30:00Z"
	second, err := asm.Assemble(other)
	require.NoError(t, err)
	_, err = Write(second, dir)
	require.NoError(t, err)

	again, err := asm.Assemble(assembleInput(t, threeFigures()))
	require.NoError(t, err)
	_, err = Write(again, dir)
	require.NoError(t, err)

	entries, err := ReadIndex(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2, "deduplicated by match id")
	assert.Equal(t, "4242", entries[0].MatchID, "rewritten match moves to the front")
	assert.Equal(t, "2024-03-09_4242", entries[0].File)
	assert.Equal(t, again.Frontmatter.Slug, entries[0].Slug)
	assert.NotEmpty(t, entries[0].HeroImage)
	assert.Equal(t, "5000", entries[1].MatchID)

	require.NoError(t, ValidateFile(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, again.Frontmatter.Title, loaded.Frontmatter.Title)
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	doc, err := NewAssembler("", nil).Assemble(assembleInput(t, nil))
	require.NoError(t, err)
	path, err := Write(doc, dir)
	require.NoError(t, err)

	got, err := Locate(dir, "4242")
	require.NoError(t, err)
	assert.Equal(t, path, got)

	got, err = LocateSlug(dir, doc.Frontmatter.Slug)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	// Without an index the glob still finds it.
	require.NoError(t, os.Remove(filepath.Join(dir, "index.json")))
	got, err = Locate(dir, "4242")
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = Locate(dir, "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteTranslation(t *testing.T) {
	dir := t.TempDir()
	doc, err := NewAssembler("", nil).Assemble(assembleInput(t, nil))
	require.NoError(t, err)
	source, err := Write(doc, dir)
	require.NoError(t, err)

	_, err = WriteTranslation(doc, dir)
	assert.Error(t, err, "source language is not a translation")

	ja := *doc
	ja.Language = "ja"
	ja.Frontmatter.Title = "ベシクタシュの勝利"
	path, err := WriteTranslation(&ja, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "matches", "2024-03-09_4242.ja.json"), path)
	require.NoError(t, ValidateFile(path))

	got, err := LocateTranslation(dir, doc.Frontmatter.Slug, "ja")
	require.NoError(t, err)
	assert.Equal(t, path, got)
	_, err = LocateTranslation(dir, doc.Frontmatter.Slug, "zh")
	assert.ErrorIs(t, err, ErrNotFound)

	located, err := Locate(dir, "4242")
	require.NoError(t, err)
	assert.Equal(t, source, located, "translations do not shadow the source")
	entries, err := ReadIndex(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestValidateFileRejectsBrokenArticle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2024-01-01_1.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"frontmatter":{}}`), 0644))
	assert.Error(t, ValidateFile(path))
}

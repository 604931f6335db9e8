package figures

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalgazer/internal/core"
)

func ip(v int) *int { return &v }

func match() *core.MatchData {
	return &core.MatchData{
		Match: core.MatchInfo{
			ID:       "77",
			HomeTeam: core.TeamRef{ID: "1", Name: "Home"},
			AwayTeam: core.TeamRef{ID: "2", Name: "Away"},
			Score:    core.Score{Home: 1, Away: 1},
		},
		Teams: []core.TeamInfo{
			{ID: "1", Name: "Home", Side: core.SideHome},
			{ID: "2", Name: "Away", Side: core.SideAway},
		},
		Events: []core.Event{
			{Type: "shot", TeamID: "1", X: 50, Y: 50},
			{Type: "goal", TeamID: "2", X: 50, Y: 50},
		},
		Timeline: []core.TimelineEvent{
			{Minute: 10, Type: core.EventGoal, TeamID: "1", PlayerName: "A", Detail: "Normal Goal"},
			{Minute: 30, Type: core.EventCard, TeamID: "2", PlayerName: "B", Detail: "Yellow Card"},
			{Minute: 70, Type: core.EventGoal, TeamID: "2", PlayerName: "C", Detail: "Normal Goal"},
		},
		Aggregates: core.Aggregates{Normalized: map[string]core.TeamNormalizedStats{
			"1": {Possession: ip(55), TotalShots: ip(12), Corners: ip(4)},
			"2": {Possession: ip(45), TotalShots: ip(9)},
		}},
	}
}

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestRenderAllWithoutShotLocations(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer("/generated/matches", nil)
	a := core.Availability{HasEvents: true, HasStatistics: true}

	figs, err := r.RenderAll(match(), a, dir)
	require.NoError(t, err)
	require.Len(t, figs, 2)

	assert.Equal(t, core.FigureStatsComparison, figs[0].Kind)
	assert.Equal(t, "/generated/matches/77/stats_comparison.png", figs[0].Src)
	assert.Equal(t, core.FigureTimeline, figs[1].Kind)
	assert.Equal(t, 960, figs[1].Width)

	for _, name := range []string{"stats_comparison.png", "goals_timeline.png"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, pngMagic), name)
	}
	_, err = os.Stat(filepath.Join(dir, "shot_map.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestRenderAllShotMap(t *testing.T) {
	m := match()
	m.Events = append(m.Events, core.Event{Type: "shot", TeamID: "1", X: 88, Y: 40})
	dir := t.TempDir()

	figs, err := NewRenderer("/g", nil).RenderAll(m, core.Availability{HasShotLocations: true}, dir)
	require.NoError(t, err)
	require.Len(t, figs, 1)
	assert.Equal(t, core.FigureShotProxy, figs[0].Kind)
	assert.FileExists(t, filepath.Join(dir, "shot_map.png"))
}

func TestRenderAllNoData(t *testing.T) {
	figs, err := NewRenderer("/g", nil).RenderAll(match(), core.Availability{}, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, figs)
	assert.NotNil(t, figs)
}

func TestSummaries(t *testing.T) {
	s := Summaries(match())

	stats := s["stats_comparison"].(map[string]any)
	assert.Equal(t, map[string]float64{"home": 55, "away": 45}, stats["possession"])
	assert.NotContains(t, stats, "corners", "only stats both teams report")

	tl := s["goals_timeline"].(map[string]any)
	assert.Len(t, tl["goals"], 2)
	assert.Equal(t, 1, tl["cards"])

	assert.Equal(t, map[string]any{"available": false, "located_events": 0}, s["shot_map"])
}

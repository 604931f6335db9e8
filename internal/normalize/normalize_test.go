package normalize

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
	"goalgazer/internal/core"
)

func loadCachedBundle(t *testing.T) *apifootball.Bundle {
	t.Helper()
	nop := zerolog.Nop()
	client := apifootball.NewClient(apifootball.ClientConfig{CacheDir: filepath.Join("testdata", "cache"), Logger: &nop})
	bundle, err := client.FetchAll(context.Background(), "1035034")
	require.NoError(t, err)
	return bundle
}

func TestFromBundle(t *testing.T) {
	m, err := FromBundle(loadCachedBundle(t))
	require.NoError(t, err)

	assert.Equal(t, "1035034", m.Match.ID)
	assert.Equal(t, "Premier League", m.Match.League)
	assert.Equal(t, "2023", m.Match.Season)
	assert.Equal(t, "Turf Moor", m.Match.Venue)
	assert.Equal(t, core.Score{Home: 0, Away: 3, HTHome: intPtr(0), HTAway: intPtr(2)}, m.Match.Score)

	home, ok := m.Team(core.SideHome)
	require.True(t, ok)
	assert.Equal(t, "4-2-3-1", home.Formation)

	// timeline sorted by minute with stoppage time folded in
	minutes := make([]int, 0, len(m.Timeline))
	for _, ev := range m.Timeline {
		minutes = append(minutes, ev.Minute)
	}
	assert.Equal(t, []int{4, 36, 47, 50, 60, 75}, minutes)
	assert.Equal(t, core.ScoreLine{Home: 0, Away: 1}, *m.Timeline[0].ScoreAfter)
	assert.Equal(t, core.ScoreLine{Home: 0, Away: 3}, *m.Timeline[len(m.Timeline)-1].ScoreAfter)
	require.NotNil(t, m.Timeline[0].AssistName)
	assert.Equal(t, "Rodri", *m.Timeline[0].AssistName)
	assert.Nil(t, m.Timeline[2].AssistID, "null assist id must stay absent")

	city := m.Aggregates.Normalized["50"]
	require.NotNil(t, city.Possession)
	assert.Equal(t, 66, *city.Possession)
	assert.Nil(t, city.Offsides)
	require.NotNil(t, city.ExpectedGoals)
	assert.InDelta(t, 2.23, *city.ExpectedGoals, 1e-9)

	var haaland *core.PlayerInfo
	for i := range m.Players {
		if m.Players[i].Name == "E. Haaland" {
			haaland = &m.Players[i]
		}
	}
	require.NotNil(t, haaland)
	require.NotNil(t, haaland.Stats.Rating)
	assert.InDelta(t, 8.6, *haaland.Stats.Rating, 1e-9)
	assert.Equal(t, 90, haaland.Minutes)

	for _, ev := range m.Events {
		assert.False(t, ev.HasLocation(), "api-football events carry placeholder coordinates")
	}
}

func TestFromBundleSubstituteMinutes(t *testing.T) {
	m, err := FromBundle(loadCachedBundle(t))
	require.NoError(t, err)

	for _, p := range m.Players {
		if p.Name == "J. Doku" {
			assert.False(t, p.Starter)
			assert.Equal(t, 30, p.Minutes)
			return
		}
	}
	t.Fatal("substitute not found")
}

func TestFromBundleScoreMismatch(t *testing.T) {
	b := loadCachedBundle(t)
	three := 4
	b.Fixture.Response[0].Goals.Away = &three

	_, err := FromBundle(b)
	assert.True(t, errors.Is(err, core.ErrScoreMismatch), "got %v", err)
}

func TestFromBundleMissingFields(t *testing.T) {
	_, err := FromBundle(&apifootball.Bundle{Fixture: &apifootball.FixtureResponse{}})
	assert.True(t, errors.Is(err, ErrMissingField))

	b := loadCachedBundle(t)
	b.Fixture.Response[0].Teams.Home.ID = nil
	_, err = FromBundle(b)
	assert.True(t, errors.Is(err, ErrMissingField))
}

func TestFromBundleMissedPenalty(t *testing.T) {
	b := loadCachedBundle(t)
	elapsed := 80
	missed := apifootball.EventRecord{Type: "Goal", Detail: "Missed Penalty"}
	missed.Time.Elapsed = &elapsed
	missed.Team = b.Events.Response[0].Team
	b.Events.Response = append(b.Events.Response, missed)

	m, err := FromBundle(b)
	require.NoError(t, err)
	last := m.Timeline[len(m.Timeline)-1]
	assert.Equal(t, core.EventOther, last.Type)
	assert.Equal(t, core.ScoreLine{Home: 0, Away: 3}, *last.ScoreAfter)
}

func TestFromBundleShootoutKicksKeepScore(t *testing.T) {
	b := loadCachedBundle(t)
	shootout := "Penalty Shootout"
	for i := 0; i < 4; i++ {
		elapsed := 120
		kick := apifootball.EventRecord{Type: "Goal", Detail: "Penalty", Comments: &shootout}
		kick.Time.Elapsed = &elapsed
		kick.Team = b.Events.Response[0].Team
		b.Events.Response = append(b.Events.Response, kick)
	}

	m, err := FromBundle(b)
	require.NoError(t, err)
	last := m.Timeline[len(m.Timeline)-1]
	assert.Equal(t, core.EventOther, last.Type)
	assert.Equal(t, core.ScoreLine{Home: 0, Away: 3}, *last.ScoreAfter)
}

func TestLoadMock(t *testing.T) {
	m, err := LoadMock(filepath.Join("..", "..", "mock_data"), "999001")
	require.NoError(t, err)

	assert.Equal(t, "Arsenal", m.Match.HomeTeam.Name)
	assert.Empty(t, m.Players)
	assert.Equal(t, core.ScoreLine{Home: 2, Away: 2}, *m.Timeline[len(m.Timeline)-1].ScoreAfter)
}

func TestLoadMockRejectsBadTally(t *testing.T) {
	dir := t.TempDir()
	body := `{"match":{"id":"1","homeTeam":{"id":"a","name":"A"},"awayTeam":{"id":"b","name":"B"},"score":{"home":1,"away":0}},"timeline":[]}`
	require.NoError(t, os.WriteFile(MockPath(dir, "1"), []byte(body), 0o644))

	_, err := LoadMock(dir, "1")
	assert.True(t, errors.Is(err, core.ErrScoreMismatch))
}

func TestLoadMockMissingFile(t *testing.T) {
	_, err := LoadMock(t.TempDir(), "404")
	assert.Error(t, err)
}

func intPtr(v int) *int { return &v }

// Package normalize converts typed API-Football records into the match data
// store consumed by the rest of the pipeline.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"goalgazer/internal/apifootball"
	"goalgazer/internal/core"
)

// ErrMissingField is returned when a required upstream field is absent.
var ErrMissingField = errors.New("required upstream field missing")

// statNames maps API-Football statistic labels to normalized names.
var statNames = map[string]string{
	"Ball Possession": "possession",
	"Total Shots":     "total_shots",
	"Shots on Goal":   "shots_on_target",
	"Corner Kicks":    "corners",
	"Fouls":           "fouls",
	"Yellow Cards":    "yellow_cards",
	"Red Cards":       "red_cards",
	"Offsides":        "offsides",
	"Total passes":    "passes_total",
	"Passes %":        "pass_accuracy",
	"expected_goals":  "expected_goals",
}

// FromBundle builds a MatchData from raw provider responses and enforces the
// goal-tally invariant.
func FromBundle(b *apifootball.Bundle) (*core.MatchData, error) {
	if b == nil || b.Fixture == nil || len(b.Fixture.Response) == 0 {
		return nil, fmt.Errorf("fixture response is empty: %w", ErrMissingField)
	}
	fx := b.Fixture.Response[0]

	if fx.Fixture.ID == nil {
		return nil, fmt.Errorf("fixture.id: %w", ErrMissingField)
	}
	if fx.Teams.Home.ID == nil || fx.Teams.Away.ID == nil {
		return nil, fmt.Errorf("teams.home.id/teams.away.id: %w", ErrMissingField)
	}
	if fx.Goals.Home == nil || fx.Goals.Away == nil {
		return nil, fmt.Errorf("goals.home/goals.away: %w", ErrMissingField)
	}

	home := core.TeamRef{ID: fx.Teams.Home.IDString(), Name: fx.Teams.Home.Name}
	away := core.TeamRef{ID: fx.Teams.Away.IDString(), Name: fx.Teams.Away.Name}

	season := ""
	if fx.League.Season != nil {
		season = strconv.Itoa(*fx.League.Season)
	}

	m := &core.MatchData{
		Match: core.MatchInfo{
			ID:       strconv.Itoa(*fx.Fixture.ID),
			DateUTC:  fx.Fixture.Date,
			League:   fx.League.Name,
			Season:   season,
			Round:    fx.League.Round,
			HomeTeam: home,
			AwayTeam: away,
			Score: core.Score{
				Home:   *fx.Goals.Home,
				Away:   *fx.Goals.Away,
				HTHome: fx.Score.Halftime.Home,
				HTAway: fx.Score.Halftime.Away,
			},
			Venue: fx.Fixture.Venue.Name,
		},
		Teams: []core.TeamInfo{
			{ID: home.ID, Name: home.Name, Side: core.SideHome},
			{ID: away.ID, Name: away.Name, Side: core.SideAway},
		},
		Aggregates: core.Aggregates{Normalized: map[string]core.TeamNormalizedStats{}},
	}

	if b.Lineups != nil {
		applyLineups(m, b.Lineups.Response)
	}
	if b.Players != nil {
		mergePlayerStats(m, b.Players.Response)
	}
	if b.Events != nil {
		m.Events = spatialEvents(b.Events.Response)
		m.Timeline = buildTimeline(m, b.Events.Response)
	}
	if b.Statistics != nil {
		for _, rec := range b.Statistics.Response {
			id := rec.Team.IDString()
			if id == "" {
				return nil, fmt.Errorf("statistics team id: %w", ErrMissingField)
			}
			m.Aggregates.Normalized[id] = normalizeStats(rec.Statistics)
		}
	}
	finish(m)

	if err := m.CheckScore(); err != nil {
		return nil, err
	}
	return m, nil
}

func applyLineups(m *core.MatchData, lineups []apifootball.LineupRecord) {
	for _, lu := range lineups {
		teamID := lu.Team.IDString()
		for i := range m.Teams {
			if m.Teams[i].ID == teamID {
				m.Teams[i].Formation = lu.Formation
			}
		}
		add := func(entries []apifootball.LineupPlayer, starter bool) {
			for _, e := range entries {
				if e.Player.ID == nil {
					continue
				}
				minutes := 0
				if starter {
					minutes = 90
				}
				m.Players = append(m.Players, core.PlayerInfo{
					ID:       strconv.Itoa(*e.Player.ID),
					Name:     e.Player.Name,
					TeamID:   teamID,
					Position: e.Player.Pos,
					Minutes:  minutes,
					Starter:  starter,
				})
			}
		}
		add(lu.StartXI, true)
		add(lu.Substitutes, false)
	}
}

func mergePlayerStats(m *core.MatchData, records []apifootball.PlayersRecord) {
	if len(records) == 0 {
		return
	}
	index := make(map[string]int, len(m.Players))
	for i, p := range m.Players {
		index[p.ID] = i
	}
	for _, rec := range records {
		teamID := rec.Team.IDString()
		for _, entry := range rec.Players {
			id := entry.Player.IDString()
			if id == "" || len(entry.Statistics) == 0 {
				continue
			}
			st := entry.Statistics[0]
			stats := core.PlayerStats{
				Rating:          st.Games.Rating.Float(),
				Goals:           st.Goals.Total,
				Assists:         st.Goals.Assists,
				Shots:           st.Shots.Total,
				ShotsOn:         st.Shots.On,
				KeyPasses:       st.Passes.Key,
				PassesTotal:     st.Passes.Total,
				PassesCompleted: st.Passes.Accuracy.Int(),
				Tackles:         st.Tackles.Total,
				Interceptions:   st.Tackles.Interceptions,
				DuelsTotal:      st.Duels.Total,
				DuelsWon:        st.Duels.Won,
				DribblesSuccess: st.Dribbles.Success,
				YellowCards:     st.Cards.Yellow,
				RedCards:        st.Cards.Red,
			}

			i, ok := index[id]
			if !ok {
				// Players endpoint lists someone the lineup did not.
				m.Players = append(m.Players, core.PlayerInfo{
					ID:       id,
					Name:     entry.Player.Name,
					TeamID:   teamID,
					Position: st.Games.Position,
					Starter:  !st.Games.Substitute,
				})
				i = len(m.Players) - 1
				index[id] = i
			}
			m.Players[i].Stats = stats
			if st.Games.Minutes != nil && *st.Games.Minutes > 0 {
				m.Players[i].Minutes = *st.Games.Minutes
			}
		}
	}
}

func spatialEvents(records []apifootball.EventRecord) []core.Event {
	events := make([]core.Event, 0, len(records))
	for _, r := range records {
		second := 0
		if r.Time.Extra != nil {
			second = *r.Time.Extra
		}
		minute := 0
		if r.Time.Elapsed != nil {
			minute = *r.Time.Elapsed
		}
		events = append(events, core.Event{
			Type:     r.Type,
			TeamID:   r.Team.IDString(),
			PlayerID: r.Player.IDString(),
			Minute:   minute,
			Second:   second,
			X:        core.PlaceholderCoordinate,
			Y:        core.PlaceholderCoordinate,
			Outcome:  r.Detail,
		})
	}
	return events
}

// isShootoutKick reports whether a goal record belongs to a penalty
// shootout. Shootout kicks never change the match score.
func isShootoutKick(r apifootball.EventRecord) bool {
	return r.Comments != nil && strings.EqualFold(strings.TrimSpace(*r.Comments), "Penalty Shootout")
}

func buildTimeline(m *core.MatchData, records []apifootball.EventRecord) []core.TimelineEvent {
	var timeline []core.TimelineEvent
	for _, r := range records {
		var typ core.EventType
		switch strings.ToLower(r.Type) {
		case "goal":
			typ = core.EventGoal
			if strings.EqualFold(r.Detail, "Missed Penalty") || isShootoutKick(r) {
				typ = core.EventOther
			}
		case "card":
			typ = core.EventCard
		case "subst":
			typ = core.EventSubst
		case "var":
			typ = core.EventVAR
		default:
			continue
		}

		ev := core.TimelineEvent{
			Minute:     r.Minute(),
			Type:       typ,
			TeamID:     r.Team.IDString(),
			TeamName:   r.Team.Name,
			PlayerID:   r.Player.IDString(),
			PlayerName: r.Player.Name,
			Detail:     r.Detail,
		}
		if ev.TeamName == "" {
			ev.TeamName = m.TeamName(ev.TeamID)
		}
		if ev.PlayerID == "" {
			ev.PlayerID = "unknown"
		}
		if ev.PlayerName == "" {
			ev.PlayerName = "Unknown"
		}
		if id := r.Assist.IDString(); id != "" {
			ev.AssistID = &id
		}
		if r.Assist.Name != "" {
			name := r.Assist.Name
			ev.AssistName = &name
		}
		timeline = append(timeline, ev)
	}
	sort.SliceStable(timeline, func(i, j int) bool { return timeline[i].Minute < timeline[j].Minute })
	return timeline
}

func normalizeStats(items []apifootball.StatisticItem) core.TeamNormalizedStats {
	var s core.TeamNormalizedStats
	for _, item := range items {
		switch statNames[item.Type] {
		case "possession":
			s.Possession = item.Value.Int()
		case "total_shots":
			s.TotalShots = item.Value.Int()
		case "shots_on_target":
			s.ShotsOnTarget = item.Value.Int()
		case "corners":
			s.Corners = item.Value.Int()
		case "fouls":
			s.Fouls = item.Value.Int()
		case "yellow_cards":
			s.YellowCards = item.Value.Int()
		case "red_cards":
			s.RedCards = item.Value.Int()
		case "offsides":
			s.Offsides = item.Value.Int()
		case "passes_total":
			s.PassesTotal = item.Value.Int()
		case "pass_accuracy":
			s.PassAccuracy = item.Value.Int()
		case "expected_goals":
			s.ExpectedGoals = item.Value.Float()
		}
	}
	return s
}

// finish fills the running score and ensures empty collections are non-nil.
func finish(m *core.MatchData) {
	var running core.ScoreLine
	for i := range m.Timeline {
		ev := &m.Timeline[i]
		if core.CountsAsGoal(*ev) {
			if side, ok := m.SideOf(ev.TeamID); ok {
				if side == core.SideHome {
					running.Home++
				} else {
					running.Away++
				}
			}
		}
		score := running
		ev.ScoreAfter = &score
	}
	if m.Players == nil {
		m.Players = []core.PlayerInfo{}
	}
	if m.Events == nil {
		m.Events = []core.Event{}
	}
	if m.Timeline == nil {
		m.Timeline = []core.TimelineEvent{}
	}
	if m.Aggregates.Normalized == nil {
		m.Aggregates.Normalized = map[string]core.TeamNormalizedStats{}
	}
}

// MockPath returns where the mock file for a match lives.
func MockPath(dir, matchID string) string {
	return filepath.Join(dir, fmt.Sprintf("match_%s.json", matchID))
}

// LoadMock reads a locally stored match in MatchData form and applies the
// same invariants as live data.
func LoadMock(dir, matchID string) (*core.MatchData, error) {
	path := MockPath(dir, matchID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mock match %s: %w", path, err)
	}
	var m core.MatchData
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode mock match %s: %w", path, err)
	}
	if m.Match.ID == "" {
		return nil, fmt.Errorf("mock match id: %w", ErrMissingField)
	}
	if len(m.Teams) == 0 {
		m.Teams = []core.TeamInfo{
			{ID: m.Match.HomeTeam.ID, Name: m.Match.HomeTeam.Name, Side: core.SideHome},
			{ID: m.Match.AwayTeam.ID, Name: m.Match.AwayTeam.Name, Side: core.SideAway},
		}
	}
	finish(&m)
	if err := m.CheckScore(); err != nil {
		return nil, err
	}
	return &m, nil
}

package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrScoreMismatch is returned when the goals recorded in the timeline do not
// add up to the final score.
var ErrScoreMismatch = errors.New("timeline goal tally does not match final score")

// Side identifies which half of the fixture a team belongs to.
type Side string

const (
	SideHome Side = "home"
	SideAway Side = "away"
)

// TeamRef is the short team reference carried by the match metadata.
type TeamRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Score holds the full-time score and, when known, the half-time score.
type Score struct {
	Home   int  `json:"home"`
	Away   int  `json:"away"`
	HTHome *int `json:"ht_home,omitempty"`
	HTAway *int `json:"ht_away,omitempty"`
}

// ScoreLine is a running score after a timeline event.
type ScoreLine struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

func (s ScoreLine) String() string {
	return fmt.Sprintf("%d-%d", s.Home, s.Away)
}

// MatchInfo is the fixture metadata.
type MatchInfo struct {
	ID       string  `json:"id"`
	DateUTC  string  `json:"date_utc"` // RFC 3339
	League   string  `json:"league"`
	Season   string  `json:"season"`
	Round    string  `json:"round,omitempty"`
	HomeTeam TeamRef `json:"homeTeam"`
	AwayTeam TeamRef `json:"awayTeam"`
	Score    Score   `json:"score"`
	Venue    string  `json:"venue,omitempty"`
}

// TeamInfo describes one of the two sides.
type TeamInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Side      Side   `json:"side"`
	Formation string `json:"formation,omitempty"`
}

// PlayerStats are the optional per-player statistics from the provider.
type PlayerStats struct {
	Rating          *float64 `json:"rating,omitempty"`
	Goals           *int     `json:"goals,omitempty"`
	Assists         *int     `json:"assists,omitempty"`
	Shots           *int     `json:"shots,omitempty"`
	ShotsOn         *int     `json:"shots_on,omitempty"`
	KeyPasses       *int     `json:"key_passes,omitempty"`
	PassesTotal     *int     `json:"passes_total,omitempty"`
	PassesCompleted *int     `json:"passes_completed,omitempty"`
	Tackles         *int     `json:"tackles,omitempty"`
	Interceptions   *int     `json:"interceptions,omitempty"`
	DuelsTotal      *int     `json:"duels_total,omitempty"`
	DuelsWon        *int     `json:"duels_won,omitempty"`
	DribblesSuccess *int     `json:"dribbles_success,omitempty"`
	YellowCards     *int     `json:"yellow_cards,omitempty"`
	RedCards        *int     `json:"red_cards,omitempty"`
}

// Empty reports whether no statistic is populated.
func (s PlayerStats) Empty() bool {
	return s.Rating == nil && s.Goals == nil && s.Assists == nil && s.Shots == nil &&
		s.ShotsOn == nil && s.KeyPasses == nil && s.PassesTotal == nil &&
		s.PassesCompleted == nil && s.Tackles == nil && s.Interceptions == nil &&
		s.DuelsTotal == nil && s.DuelsWon == nil && s.DribblesSuccess == nil &&
		s.YellowCards == nil && s.RedCards == nil
}

// PlayerInfo is a lineup entry merged with detailed statistics.
type PlayerInfo struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	TeamID   string      `json:"teamId"`
	Position string      `json:"position,omitempty"`
	Minutes  int         `json:"minutes"`
	Starter  bool        `json:"starter"`
	Stats    PlayerStats `json:"stats"`
}

// Event is a spatial match event. API-Football carries no coordinates, so
// events sourced from it sit on the pitch midpoint.
type Event struct {
	Type     string   `json:"type"`
	TeamID   string   `json:"teamId"`
	PlayerID string   `json:"playerId,omitempty"`
	Minute   int      `json:"minute"`
	Second   int      `json:"second"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	EndX     *float64 `json:"endX,omitempty"`
	EndY     *float64 `json:"endY,omitempty"`
	Outcome  string   `json:"outcome,omitempty"`
}

// PlaceholderCoordinate is the midpoint written when a provider has no
// location for an event.
const PlaceholderCoordinate = 50.0

// HasLocation reports whether the event carries a real pitch coordinate.
func (e Event) HasLocation() bool {
	return !(e.X == PlaceholderCoordinate && e.Y == PlaceholderCoordinate)
}

// EventType classifies timeline entries.
type EventType string

const (
	EventGoal  EventType = "goal"
	EventCard  EventType = "card"
	EventSubst EventType = "subst"
	EventVAR   EventType = "var"
	EventOther EventType = "other"
)

// TimelineEvent is one discrete entry in the ordered match timeline.
type TimelineEvent struct {
	Minute     int        `json:"minute"`
	Type       EventType  `json:"type"`
	TeamID     string     `json:"teamId"`
	TeamName   string     `json:"teamName"`
	PlayerID   string     `json:"playerId"`
	PlayerName string     `json:"playerName"`
	AssistID   *string    `json:"assistId,omitempty"`
	AssistName *string    `json:"assistName,omitempty"`
	Detail     string     `json:"detail"`
	ScoreAfter *ScoreLine `json:"score_after,omitempty"`
}

// TeamNormalizedStats are the team statistics mapped to stable names.
type TeamNormalizedStats struct {
	Possession    *int     `json:"possession,omitempty"`
	TotalShots    *int     `json:"total_shots,omitempty"`
	ShotsOnTarget *int     `json:"shots_on_target,omitempty"`
	Corners       *int     `json:"corners,omitempty"`
	Fouls         *int     `json:"fouls,omitempty"`
	YellowCards   *int     `json:"yellow_cards,omitempty"`
	RedCards      *int     `json:"red_cards,omitempty"`
	Offsides      *int     `json:"offsides,omitempty"`
	PassesTotal   *int     `json:"passes_total,omitempty"`
	PassAccuracy  *int     `json:"pass_accuracy,omitempty"`
	ExpectedGoals *float64 `json:"expected_goals,omitempty"`
}

// StatValue is one populated normalized statistic.
type StatValue struct {
	Name  string
	Value any
}

// Values returns the populated statistics in a fixed order.
func (s TeamNormalizedStats) Values() []StatValue {
	var out []StatValue
	addInt := func(name string, v *int) {
		if v != nil {
			out = append(out, StatValue{Name: name, Value: *v})
		}
	}
	addInt("possession", s.Possession)
	addInt("total_shots", s.TotalShots)
	addInt("shots_on_target", s.ShotsOnTarget)
	addInt("corners", s.Corners)
	addInt("fouls", s.Fouls)
	addInt("yellow_cards", s.YellowCards)
	addInt("red_cards", s.RedCards)
	addInt("offsides", s.Offsides)
	addInt("passes_total", s.PassesTotal)
	addInt("pass_accuracy", s.PassAccuracy)
	if s.ExpectedGoals != nil {
		out = append(out, StatValue{Name: "expected_goals", Value: *s.ExpectedGoals})
	}
	return out
}

// Aggregates holds per-team statistics keyed by team id.
type Aggregates struct {
	Normalized map[string]TeamNormalizedStats `json:"normalized"`
}

// MatchData is the normalized snapshot of one match. It is built once and
// treated as read-only afterwards.
type MatchData struct {
	Match      MatchInfo       `json:"match"`
	Teams      []TeamInfo      `json:"teams"`
	Players    []PlayerInfo    `json:"players"`
	Events     []Event         `json:"events"`
	Timeline   []TimelineEvent `json:"timeline"`
	Aggregates Aggregates      `json:"aggregates"`
}

// Team returns the team playing on the given side.
func (m *MatchData) Team(side Side) (TeamInfo, bool) {
	for _, t := range m.Teams {
		if t.Side == side {
			return t, true
		}
	}
	return TeamInfo{}, false
}

// SideOf resolves a team id to its side. Unknown ids fall back to the match
// metadata before giving up.
func (m *MatchData) SideOf(teamID string) (Side, bool) {
	for _, t := range m.Teams {
		if t.ID == teamID {
			return t.Side, true
		}
	}
	switch teamID {
	case m.Match.HomeTeam.ID:
		return SideHome, true
	case m.Match.AwayTeam.ID:
		return SideAway, true
	}
	return "", false
}

// TeamName resolves a team id to a display name.
func (m *MatchData) TeamName(teamID string) string {
	for _, t := range m.Teams {
		if t.ID == teamID {
			return t.Name
		}
	}
	switch teamID {
	case m.Match.HomeTeam.ID:
		return m.Match.HomeTeam.Name
	case m.Match.AwayTeam.ID:
		return m.Match.AwayTeam.Name
	}
	return ""
}

// PlayersBySide returns the players of one side in lineup order.
func (m *MatchData) PlayersBySide(side Side) []PlayerInfo {
	team, ok := m.Team(side)
	if !ok {
		return nil
	}
	var out []PlayerInfo
	for _, p := range m.Players {
		if p.TeamID == team.ID {
			out = append(out, p)
		}
	}
	return out
}

// CountsAsGoal reports whether a timeline entry changes the score.
func CountsAsGoal(ev TimelineEvent) bool {
	return ev.Type == EventGoal && !strings.EqualFold(ev.Detail, "Missed Penalty")
}

// TallyGoals counts the scoring timeline events per side. Own goals are
// credited to the team the provider attaches to the event.
func (m *MatchData) TallyGoals() (ScoreLine, error) {
	var tally ScoreLine
	for i, ev := range m.Timeline {
		if !CountsAsGoal(ev) {
			continue
		}
		side, ok := m.SideOf(ev.TeamID)
		if !ok {
			return tally, fmt.Errorf("timeline event %d: goal for unknown team %q: %w", i, ev.TeamID, ErrScoreMismatch)
		}
		if side == SideHome {
			tally.Home++
		} else {
			tally.Away++
		}
	}
	return tally, nil
}

// CheckScore enforces that timeline goals per side equal the final score.
// An empty timeline against a non-zero score is a mismatch as well.
func (m *MatchData) CheckScore() error {
	tally, err := m.TallyGoals()
	if err != nil {
		return err
	}
	if tally.Home != m.Match.Score.Home || tally.Away != m.Match.Score.Away {
		return fmt.Errorf("%w: timeline %s, final %d-%d", ErrScoreMismatch, tally, m.Match.Score.Home, m.Match.Score.Away)
	}
	return nil
}

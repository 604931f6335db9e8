package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func newTestMatch(home, away int, timeline ...TimelineEvent) *MatchData {
	return &MatchData{
		Match: MatchInfo{
			ID:       "100",
			HomeTeam: TeamRef{ID: "1", Name: "Home FC"},
			AwayTeam: TeamRef{ID: "2", Name: "Away United"},
			Score:    Score{Home: home, Away: away},
		},
		Teams: []TeamInfo{
			{ID: "1", Name: "Home FC", Side: SideHome},
			{ID: "2", Name: "Away United", Side: SideAway},
		},
		Timeline: timeline,
	}
}

func goal(teamID, detail string) TimelineEvent {
	return TimelineEvent{Type: EventGoal, TeamID: teamID, Detail: detail}
}

func TestCheckScore(t *testing.T) {
	tests := []struct {
		name    string
		match   *MatchData
		wantErr bool
	}{
		{
			name:  "goalless draw with empty timeline",
			match: newTestMatch(0, 0),
		},
		{
			name:  "tally matches",
			match: newTestMatch(2, 1, goal("1", "Normal Goal"), goal("2", "Penalty"), goal("1", "Normal Goal")),
		},
		{
			name:  "missed penalty not counted",
			match: newTestMatch(1, 0, goal("1", "Normal Goal"), goal("2", "Missed Penalty")),
		},
		{
			name:  "own goal credited to event team",
			match: newTestMatch(0, 1, goal("2", "Own Goal")),
		},
		{
			name:    "empty timeline with goals on the board",
			match:   newTestMatch(1, 0),
			wantErr: true,
		},
		{
			name:    "side mismatch",
			match:   newTestMatch(1, 0, goal("2", "Normal Goal")),
			wantErr: true,
		},
		{
			name:    "unknown team",
			match:   newTestMatch(1, 0, goal("99", "Normal Goal")),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.match.CheckScore()
			if tt.wantErr {
				if !errors.Is(err, ErrScoreMismatch) {
					t.Fatalf("expected ErrScoreMismatch, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSideOfFallsBackToMatchInfo(t *testing.T) {
	m := newTestMatch(0, 0)
	m.Teams = nil

	side, ok := m.SideOf("2")
	if !ok || side != SideAway {
		t.Errorf("expected away, got %q (ok=%v)", side, ok)
	}
	if name := m.TeamName("1"); name != "Home FC" {
		t.Errorf("expected Home FC, got %q", name)
	}
}

func TestEvidencePath(t *testing.T) {
	cases := map[string]string{
		"match.score.home":                       "match.score.home",
		"team_stats.normalized.1.total_shots=15": "team_stats.normalized.1.total_shots",
		" timeline.0.minute=23 ":                 "timeline.0.minute",
		"players.home.0.rating=7.5=extra":        "players.home.0.rating",
	}
	for in, want := range cases {
		if got := EvidencePath(in); got != want {
			t.Errorf("EvidencePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeProducesArrays(t *testing.T) {
	p := NarrativePayload{Sections: []Section{{Heading: "Match Overview"}}}
	p.Normalize()

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"tags", "sections", "player_notes", "data_limitations"} {
		if _, ok := decoded[key].([]any); !ok {
			t.Errorf("expected %s to be an array, got %T", key, decoded[key])
		}
	}
	if p.Language != "en" {
		t.Errorf("expected default language en, got %q", p.Language)
	}
	if _, ok := decoded["multiverse"]; ok {
		t.Error("expected multiverse to be omitted")
	}
}

func TestAvailabilitySparse(t *testing.T) {
	full := Availability{HasShotLocations: true, HasXG: true}
	if full.Sparse() {
		t.Error("expected full availability not to be sparse")
	}
	if !(Availability{HasXG: true}).Sparse() {
		t.Error("expected missing shot locations to be sparse")
	}
}

func TestEventHasLocation(t *testing.T) {
	if (Event{X: 50, Y: 50}).HasLocation() {
		t.Error("midpoint should count as placeholder")
	}
	if !(Event{X: 50, Y: 12}).HasLocation() {
		t.Error("expected real coordinate")
	}
}

package figures

import (
	"goalgazer/internal/core"
)

// Summaries describes what each chart shows, in a form the narrative
// prompt can reason about without seeing the images.
func Summaries(m *core.MatchData) map[string]any {
	out := map[string]any{}

	if rows := statRows(m); len(rows) > 0 {
		stats := make(map[string]any, len(rows))
		for _, r := range rows {
			stats[r.name] = map[string]float64{"home": r.home, "away": r.away}
		}
		out["stats_comparison"] = stats
	}

	var goals []map[string]any
	cards := 0
	for _, ev := range m.Timeline {
		switch {
		case core.CountsAsGoal(ev):
			g := map[string]any{"minute": ev.Minute, "team": ev.TeamName, "player": ev.PlayerName}
			if ev.ScoreAfter != nil {
				g["score_after"] = ev.ScoreAfter.String()
			}
			goals = append(goals, g)
		case ev.Type == core.EventCard:
			cards++
		}
	}
	if len(m.Timeline) > 0 {
		out["goals_timeline"] = map[string]any{"goals": goals, "cards": cards, "events": len(m.Timeline)}
	}

	located := 0
	for _, ev := range m.Events {
		if ev.HasLocation() {
			located++
		}
	}
	out["shot_map"] = map[string]any{"available": located > 0, "located_events": located}
	return out
}

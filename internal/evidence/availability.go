package evidence

import (
	"goalgazer/internal/apifootball"
	"goalgazer/internal/core"
)

// Assess computes the availability flags. Raw provider responses take
// precedence; the normalized store is consulted for any response that is
// absent (mock runs pass a nil bundle). The result depends only on inputs.
func Assess(b *apifootball.Bundle, m *core.MatchData) core.Availability {
	var a core.Availability

	if b != nil && b.Events != nil {
		a.HasEvents = rawHasEvents(b.Events)
	} else {
		a.HasEvents = len(m.Timeline) > 0 || len(m.Events) > 0
	}

	if b != nil && b.Statistics != nil {
		a.HasStatistics = rawHasStatistics(b.Statistics)
	} else {
		a.HasStatistics = storeHasStatistics(m)
	}

	if b != nil && b.Lineups != nil {
		a.HasLineups = rawHasLineups(b.Lineups)
	} else {
		a.HasLineups = storeHasLineups(m)
	}

	if b != nil && b.Players != nil {
		a.HasPlayers = rawHasPlayers(b.Players)
	} else {
		a.HasPlayers = HasPlayerStats(m)
	}

	a.HasXG = storeHasXG(m) || (b != nil && b.Statistics != nil && rawHasXG(b.Statistics))

	for _, ev := range m.Events {
		if ev.HasLocation() {
			a.HasShotLocations = true
			break
		}
	}
	return a
}

func rawHasEvents(r *apifootball.EventsResponse) bool {
	for _, ev := range r.Response {
		if ev.Type != "" && ev.Time.Elapsed != nil {
			return true
		}
	}
	return false
}

func rawHasStatistics(r *apifootball.StatisticsResponse) bool {
	for _, team := range r.Response {
		for _, item := range team.Statistics {
			if item.Value.Valid() {
				return true
			}
		}
	}
	return false
}

func rawHasLineups(r *apifootball.LineupsResponse) bool {
	for _, lu := range r.Response {
		if len(lu.StartXI) > 0 {
			return true
		}
	}
	return false
}

func rawHasPlayers(r *apifootball.PlayersResponse) bool {
	for _, team := range r.Response {
		for _, p := range team.Players {
			for _, st := range p.Statistics {
				if st.Games.Rating.Valid() || st.Shots.Total != nil || st.Passes.Total != nil ||
					st.Tackles.Total != nil || st.Duels.Total != nil {
					return true
				}
			}
		}
	}
	return false
}

func rawHasXG(r *apifootball.StatisticsResponse) bool {
	for _, team := range r.Response {
		for _, item := range team.Statistics {
			if item.Type == "expected_goals" && item.Value.Valid() {
				return true
			}
		}
	}
	return false
}

func storeHasStatistics(m *core.MatchData) bool {
	for _, s := range m.Aggregates.Normalized {
		if len(s.Values()) > 0 {
			return true
		}
	}
	return false
}

func storeHasLineups(m *core.MatchData) bool {
	for _, t := range m.Teams {
		if t.Formation != "" {
			return true
		}
	}
	for _, p := range m.Players {
		if p.Starter {
			return true
		}
	}
	return false
}

func storeHasXG(m *core.MatchData) bool {
	for _, s := range m.Aggregates.Normalized {
		if s.ExpectedGoals != nil {
			return true
		}
	}
	return false
}

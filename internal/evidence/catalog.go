// Package evidence flattens a match into the set of facts a narrative may
// cite, and assesses which categories of source data exist.
package evidence

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"goalgazer/internal/core"
)

// Catalog maps dotted evidence paths to scalar values. It is built fresh per
// run and never mutated after Build returns.
type Catalog struct {
	values map[string]any
	paths  []string
}

// Build flattens the match exhaustively. Two facts resolving to the same
// path is an error.
func Build(m *core.MatchData) (*Catalog, error) {
	b := &builder{values: make(map[string]any)}

	info := m.Match
	b.add("match.id", info.ID)
	b.add("match.league", info.League)
	b.add("match.season", info.Season)
	b.add("match.date_utc", info.DateUTC)
	b.addString("match.round", info.Round)
	b.addString("match.venue", info.Venue)
	b.add("match.home_team.id", info.HomeTeam.ID)
	b.add("match.home_team.name", info.HomeTeam.Name)
	b.add("match.away_team.id", info.AwayTeam.ID)
	b.add("match.away_team.name", info.AwayTeam.Name)
	b.add("match.score.home", info.Score.Home)
	b.add("match.score.away", info.Score.Away)
	b.addInt("match.score.ht_home", info.Score.HTHome)
	b.addInt("match.score.ht_away", info.Score.HTAway)

	for _, t := range m.Teams {
		b.addString("lineups."+t.ID+".formation", t.Formation)
	}

	teamIDs := make([]string, 0, len(m.Aggregates.Normalized))
	for id := range m.Aggregates.Normalized {
		teamIDs = append(teamIDs, id)
	}
	sort.Strings(teamIDs)
	for _, id := range teamIDs {
		for _, sv := range m.Aggregates.Normalized[id].Values() {
			b.add("team_stats.normalized."+id+"."+sv.Name, sv.Value)
		}
	}

	for i, ev := range m.Timeline {
		prefix := "timeline." + strconv.Itoa(i)
		b.add(prefix+".minute", ev.Minute)
		b.add(prefix+".type", string(ev.Type))
		b.add(prefix+".team_id", ev.TeamID)
		b.addString(prefix+".team", ev.TeamName)
		b.addString(prefix+".player", ev.PlayerName)
		if ev.AssistName != nil {
			b.addString(prefix+".assist", *ev.AssistName)
		}
		b.addString(prefix+".detail", ev.Detail)
		if ev.ScoreAfter != nil {
			b.add(prefix+".score_after", ev.ScoreAfter.String())
		}
	}

	if HasPlayerStats(m) {
		for _, side := range []core.Side{core.SideHome, core.SideAway} {
			for i, p := range m.PlayersBySide(side) {
				addPlayer(b, fmt.Sprintf("players.%s.%d", side, i), p)
			}
		}
	}

	if b.err != nil {
		return nil, b.err
	}

	paths := make([]string, 0, len(b.values))
	for p := range b.values {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return &Catalog{values: b.values, paths: paths}, nil
}

func addPlayer(b *builder, prefix string, p core.PlayerInfo) {
	b.add(prefix+".name", p.Name)
	b.add(prefix+".id", p.ID)
	b.addString(prefix+".position", p.Position)
	b.add(prefix+".minutes", p.Minutes)
	s := p.Stats
	if s.Rating != nil {
		b.add(prefix+".rating", *s.Rating)
	}
	b.addInt(prefix+".goals", s.Goals)
	b.addInt(prefix+".assists", s.Assists)
	b.addInt(prefix+".shots", s.Shots)
	b.addInt(prefix+".shots_on", s.ShotsOn)
	b.addInt(prefix+".key_passes", s.KeyPasses)
	b.addInt(prefix+".passes_total", s.PassesTotal)
	b.addInt(prefix+".passes_completed", s.PassesCompleted)
	b.addInt(prefix+".tackles", s.Tackles)
	b.addInt(prefix+".interceptions", s.Interceptions)
	b.addInt(prefix+".duels_total", s.DuelsTotal)
	b.addInt(prefix+".duels_won", s.DuelsWon)
	b.addInt(prefix+".dribbles_success", s.DribblesSuccess)
	b.addInt(prefix+".yellow_cards", s.YellowCards)
	b.addInt(prefix+".red_cards", s.RedCards)
}

// HasPlayerStats reports whether at least one player carries statistics.
func HasPlayerStats(m *core.MatchData) bool {
	for _, p := range m.Players {
		if !p.Stats.Empty() {
			return true
		}
	}
	return false
}

type builder struct {
	values map[string]any
	err    error
}

func (b *builder) add(path string, v any) {
	if b.err != nil {
		return
	}
	if _, dup := b.values[path]; dup {
		b.err = fmt.Errorf("duplicate evidence path %q", path)
		return
	}
	b.values[path] = v
}

func (b *builder) addString(path, v string) {
	if v != "" {
		b.add(path, v)
	}
}

func (b *builder) addInt(path string, v *int) {
	if v != nil {
		b.add(path, *v)
	}
}

// Has reports whether a path is present. An "=value" suffix is ignored.
func (c *Catalog) Has(ref string) bool {
	_, ok := c.values[core.EvidencePath(ref)]
	return ok
}

// Lookup returns the value stored at a path.
func (c *Catalog) Lookup(ref string) (any, bool) {
	v, ok := c.values[core.EvidencePath(ref)]
	return v, ok
}

// Len returns the number of facts.
func (c *Catalog) Len() int { return len(c.paths) }

// Paths returns all paths in sorted order.
func (c *Catalog) Paths() []string {
	out := make([]string, len(c.paths))
	copy(out, c.paths)
	return out
}

// PathsWithPrefix returns the sorted paths starting with prefix.
func (c *Catalog) PathsWithPrefix(prefix string) []string {
	var out []string
	for _, p := range c.paths {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}

// Ref formats a path as a "path=value" evidence entry.
func (c *Catalog) Ref(path string) string {
	v, ok := c.values[path]
	if !ok {
		return path
	}
	return path + "=" + FormatValue(v)
}

// AllowedEvidence returns every fact as "path=value", sorted by path.
func (c *Catalog) AllowedEvidence() []string {
	out := make([]string, len(c.paths))
	for i, p := range c.paths {
		out[i] = c.Ref(p)
	}
	return out
}

// Map returns a copy of the catalog contents.
func (c *Catalog) Map() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// PlayerRow identifies a player's block of catalog paths.
type PlayerRow struct {
	Side   core.Side
	Index  int
	Prefix string // e.g. "players.home.3"
}

// RatingPath returns the row's rating path.
func (r PlayerRow) RatingPath() string { return r.Prefix + ".rating" }

// FindPlayer looks a player up by name, case-insensitively and exactly.
func (c *Catalog) FindPlayer(name string) (PlayerRow, bool) {
	want := strings.TrimSpace(name)
	if want == "" {
		return PlayerRow{}, false
	}
	for _, p := range c.paths {
		if !strings.HasPrefix(p, "players.") || !strings.HasSuffix(p, ".name") {
			continue
		}
		got, _ := c.values[p].(string)
		if !strings.EqualFold(got, want) {
			continue
		}
		parts := strings.Split(p, ".")
		if len(parts) != 4 {
			continue
		}
		idx, err := strconv.Atoi(parts[2])
		if err != nil {
			continue
		}
		return PlayerRow{Side: core.Side(parts[1]), Index: idx, Prefix: strings.TrimSuffix(p, ".name")}, true
	}
	return PlayerRow{}, false
}

// FormatValue renders a catalog scalar the way it appears in evidence refs.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

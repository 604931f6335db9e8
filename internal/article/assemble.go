package article

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"goalgazer/internal/core"
	"goalgazer/internal/evidence"
	"goalgazer/internal/narrative"
	"goalgazer/internal/schema"
)

// ErrAssembly marks a composed article that failed its own checks. It is
// fatal for the run.
var ErrAssembly = errors.New("article assembly failed")

var defaultCitations = []string{"API-Football fixtures", "API-Football events"}

// endpointCitations accepts both cache names and upstream paths.
var endpointCitations = map[string]string{
	"fixture":             "API-Football fixtures",
	"fixtures":            "API-Football fixtures",
	"events":              "API-Football events",
	"fixtures/events":     "API-Football events",
	"lineups":             "API-Football lineups",
	"fixtures/lineups":    "API-Football lineups",
	"stats":               "API-Football statistics",
	"fixtures/statistics": "API-Football statistics",
	"players":             "API-Football player statistics",
	"fixtures/players":    "API-Football player statistics",
}

// Input is everything the assembler combines.
type Input struct {
	Match        *core.MatchData
	Catalog      *evidence.Catalog
	Availability core.Availability
	Narrative    *core.NarrativePayload
	Figures      []core.FigureMeta
	Endpoints    []string
	FetchedAt    time.Time
	Notes        []string
	// League overrides the frontmatter league slug.
	League string
}

// Assembler builds and checks article documents.
type Assembler struct {
	policy string
	log    *zerolog.Logger
}

// NewAssembler creates an assembler using the given evidence policy for the
// final check.
func NewAssembler(policy string, log *zerolog.Logger) *Assembler {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Assembler{policy: policy, log: log}
}

// Assemble composes the article and re-runs the article schema and the
// narrative validator on the result. Any failure wraps ErrAssembly.
func (a *Assembler) Assemble(in Input) (*Document, error) {
	if in.Match == nil || in.Catalog == nil || in.Narrative == nil {
		return nil, fmt.Errorf("%w: match, catalog and narrative are required", ErrAssembly)
	}

	payload, err := in.Narrative.Clone()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssembly, err)
	}
	for _, change := range narrative.RepairRatings(payload, in.Catalog, in.Availability) {
		a.log.Info().Str("match_id", in.Match.Match.ID).Msg(change)
	}

	m := in.Match
	figures := in.Figures
	if figures == nil {
		figures = []core.FigureMeta{}
	}

	league := in.League
	if league == "" {
		league = Slugify(m.Match.League)
	}

	fetchedAt := in.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	notes := in.Notes
	if notes == nil {
		notes = []string{}
	}
	endpoints := in.Endpoints
	if endpoints == nil {
		endpoints = []string{}
	}

	doc := &Document{
		Frontmatter: Frontmatter{
			Title:       payload.Title,
			Description: payload.MetaDescription,
			Date:        m.Match.DateUTC,
			MatchID:     m.Match.ID,
			League:      league,
			Slug:        MatchSlug(league, m.Match.HomeTeam.Name, m.Match.AwayTeam.Name, m.Match.DateUTC, m.Match.ID),
			Teams:       []string{m.Match.HomeTeam.Name, m.Match.AwayTeam.Name},
			Tags:        payload.Tags,
		},
		Match: m.Match,
		DataProvenance: Provenance{
			Provider:      Provider,
			EndpointsUsed: endpoints,
			FetchedAtUTC:  fetchedAt.UTC().Format(time.RFC3339),
			Availability:  in.Availability,
			Notes:         notes,
		},
		Timeline:        nonNilTimeline(m.Timeline),
		TeamStats:       TeamStats{Normalized: nonNilStats(m.Aggregates.Normalized)},
		Figures:         figures,
		Sections:        distributeFigures(payload.Sections, figures),
		PlayerNotes:     payload.PlayerNotes,
		DataLimitations: payload.DataLimitations,
		DataCitations:   citations(endpoints),
		Thesis:          payload.Thesis,
		Multiverse:      payload.Multiverse,
		CTA:             payload.CTA,
		Language:        payload.Language,
	}
	if len(figures) > 0 {
		doc.Frontmatter.HeroImage = figures[0].Src
	}
	if in.Availability.HasPlayers {
		doc.Players = playerRows(m)
	}

	if err := a.Check(doc, in.Catalog, in.Availability); err != nil {
		return nil, err
	}
	return doc, nil
}

// Check runs the full article schema and the narrative validator on a
// composed document.
func (a *Assembler) Check(doc *Document, cat *evidence.Catalog, avail core.Availability) error {
	if err := schema.ValidateArticle(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrAssembly, err)
	}
	v := narrative.NewValidator(cat, avail, a.policy, a.log)
	if err := v.Validate(doc.Narrative()); err != nil {
		return fmt.Errorf("%w: %v", ErrAssembly, err)
	}
	return nil
}

// figureHome maps a figure kind to the section heading it belongs under and
// the position used when no section carries that heading.
func figureHome(kind core.FigureKind) (string, int) {
	switch kind {
	case core.FigureStatsComparison:
		return narrative.HeadingOverview, 0
	case core.FigureTimeline:
		return narrative.HeadingKeyMoments, 1
	default:
		return narrative.HeadingTactical, 2
	}
}

func distributeFigures(sections []core.Section, figures []core.FigureMeta) []Section {
	out := make([]Section, len(sections))
	for i, s := range sections {
		out[i] = Section{
			Heading:    s.Heading,
			Paragraphs: s.Paragraphs,
			Bullets:    s.Bullets,
			Claims:     s.Claims,
			Figures:    []core.FigureMeta{},
		}
	}
	if len(out) == 0 {
		return out
	}
	for _, f := range figures {
		heading, pos := figureHome(f.Kind)
		idx := -1
		for i, s := range out {
			if s.Heading == heading {
				idx = i
				break
			}
		}
		if idx < 0 {
			idx = min(pos, len(out)-1)
		}
		out[idx].Figures = append(out[idx].Figures, f)
	}
	return out
}

func citations(endpoints []string) []string {
	if len(endpoints) == 0 {
		return append([]string(nil), defaultCitations...)
	}
	var out []string
	for _, ep := range endpoints {
		if c, ok := endpointCitations[ep]; ok {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultCitations...)
	}
	return out
}

func playerRows(m *core.MatchData) *Players {
	rows := func(side core.Side) []PlayerRow {
		out := []PlayerRow{}
		for _, p := range m.PlayersBySide(side) {
			minutes := p.Minutes
			out = append(out, PlayerRow{
				ID:        p.ID,
				Name:      p.Name,
				Position:  p.Position,
				Minutes:   &minutes,
				Goals:     p.Stats.Goals,
				Assists:   p.Stats.Assists,
				Yellow:    p.Stats.YellowCards,
				Red:       p.Stats.RedCards,
				Rating:    p.Stats.Rating,
				Shots:     p.Stats.Shots,
				KeyPasses: p.Stats.KeyPasses,
				Passes:    p.Stats.PassesTotal,
				Tackles:   p.Stats.Tackles,
				DuelsWon:  p.Stats.DuelsWon,
			})
		}
		return out
	}
	return &Players{Home: rows(core.SideHome), Away: rows(core.SideAway)}
}

func nonNilTimeline(t []core.TimelineEvent) []core.TimelineEvent {
	if t == nil {
		return []core.TimelineEvent{}
	}
	return t
}

func nonNilStats(s map[string]core.TeamNormalizedStats) map[string]core.TeamNormalizedStats {
	if s == nil {
		return map[string]core.TeamNormalizedStats{}
	}
	return s
}

package core

import (
	"encoding/json"
	"strings"
)

// Availability records which categories of source data exist for a match.
// It is computed once per run and never mutated.
type Availability struct {
	HasEvents        bool `json:"has_events"`
	HasStatistics    bool `json:"has_statistics"`
	HasLineups       bool `json:"has_lineups"`
	HasPlayers       bool `json:"has_players"`
	HasXG            bool `json:"has_xg"`
	HasShotLocations bool `json:"has_shot_locations"`
}

// Sparse reports whether spatial or expected-goals data is missing.
func (a Availability) Sparse() bool {
	return !a.HasShotLocations || !a.HasXG
}

// FigureKind classifies a rendered chart.
type FigureKind string

const (
	FigureStatsComparison FigureKind = "stats_comparison"
	FigureTimeline        FigureKind = "timeline"
	FigurePassNetwork     FigureKind = "pass_network"
	FigureShotProxy       FigureKind = "shot_proxy"
	FigureOther           FigureKind = "other"
)

// FigureMeta describes one rendered chart image.
type FigureMeta struct {
	ID      string     `json:"id"`
	Src     string     `json:"src"` // public path served by the web front end
	Alt     string     `json:"alt"`
	Caption string     `json:"caption"`
	Width   int        `json:"width"`
	Height  int        `json:"height"`
	Kind    FigureKind `json:"kind"`
}

// Claim is a single assertion with the catalog evidence backing it.
type Claim struct {
	Claim      string   `json:"claim"`
	Evidence   []string `json:"evidence"`
	Confidence float64  `json:"confidence"`
}

// Section is one headed block of the narrative.
type Section struct {
	Heading    string   `json:"heading"`
	Bullets    []string `json:"bullets"`
	Paragraphs []string `json:"paragraphs"`
	Claims     []Claim  `json:"claims"`
}

// PlayerNote is a short write-up about one player.
type PlayerNote struct {
	Player   string   `json:"player"`
	Team     string   `json:"team"`
	Summary  string   `json:"summary"`
	Evidence []string `json:"evidence"`
	Rating   string   `json:"rating,omitempty"`
}

// Branch is one side of a multiverse pivot.
type Branch struct {
	Event          string   `json:"event"`
	Outcome        string   `json:"outcome"`
	TacticalImpact string   `json:"tactical_impact"`
	Probability    *float64 `json:"probability,omitempty"`
}

// Pivot is a turning point with its counterfactual.
type Pivot struct {
	Minute      int    `json:"minute"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Reality     Branch `json:"reality"`
	Symmetry    Branch `json:"symmetry"`
}

// Multiverse is the optional "what if" block.
type Multiverse struct {
	Summary string  `json:"summary"`
	Pivots  []Pivot `json:"pivots"`
}

// NarrativePayload is the structured document returned by the text
// generator, or built by the deterministic fallback.
type NarrativePayload struct {
	Language        string       `json:"language"`
	Title           string       `json:"title"`
	MetaDescription string       `json:"meta_description"`
	Tags            []string     `json:"tags"`
	Thesis          string       `json:"thesis"`
	Sections        []Section    `json:"sections"`
	PlayerNotes     []PlayerNote `json:"player_notes"`
	DataLimitations []string     `json:"data_limitations"`
	CTA             string       `json:"cta"`
	Multiverse      *Multiverse  `json:"multiverse,omitempty"`
}

// Clone returns a normalized deep copy of the payload.
func (p *NarrativePayload) Clone() (*NarrativePayload, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var out NarrativePayload
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	out.Normalize()
	return &out, nil
}

// Normalize fills defaults and replaces nil slices so the payload always
// serializes with arrays rather than nulls.
func (p *NarrativePayload) Normalize() {
	if p.Language == "" {
		p.Language = "en"
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Sections == nil {
		p.Sections = []Section{}
	}
	if p.PlayerNotes == nil {
		p.PlayerNotes = []PlayerNote{}
	}
	if p.DataLimitations == nil {
		p.DataLimitations = []string{}
	}
	for i := range p.Sections {
		s := &p.Sections[i]
		if s.Bullets == nil {
			s.Bullets = []string{}
		}
		if s.Paragraphs == nil {
			s.Paragraphs = []string{}
		}
		if s.Claims == nil {
			s.Claims = []Claim{}
		}
		for j := range s.Claims {
			if s.Claims[j].Evidence == nil {
				s.Claims[j].Evidence = []string{}
			}
		}
	}
	for i := range p.PlayerNotes {
		if p.PlayerNotes[i].Evidence == nil {
			p.PlayerNotes[i].Evidence = []string{}
		}
	}
	if p.Multiverse != nil && p.Multiverse.Pivots == nil {
		p.Multiverse.Pivots = []Pivot{}
	}
}

// EvidencePath strips an optional "=value" suffix from an evidence entry.
func EvidencePath(ref string) string {
	if i := strings.IndexByte(ref, '='); i >= 0 {
		ref = ref[:i]
	}
	return strings.TrimSpace(ref)
}

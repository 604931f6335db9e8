package translate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"goalgazer/internal/article"
)

// Text holds the human-readable strings of an article. It is the only part
// sent to the model; ids, numbers, evidence and the fact subtrees stay in
// the source document and are copied over unchanged.
type Text struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Tags            []string        `json:"tags"`
	Figures         []FigureText    `json:"figures"`
	Sections        []SectionText   `json:"sections"`
	PlayerNotes     []string        `json:"player_note_summaries"`
	DataLimitations []string        `json:"data_limitations"`
	Thesis          string          `json:"thesis"`
	Multiverse      *MultiverseText `json:"multiverse,omitempty"`
	CTA             string          `json:"cta"`
}

// FigureText is the caption pair of one figure.
type FigureText struct {
	Alt     string `json:"alt"`
	Caption string `json:"caption"`
}

// SectionText is one narrative section. Claims holds the claim sentences
// only.
type SectionText struct {
	Heading    string   `json:"heading"`
	Paragraphs []string `json:"paragraphs"`
	Bullets    []string `json:"bullets"`
	Claims     []string `json:"claims"`
}

type MultiverseText struct {
	Summary string      `json:"summary"`
	Pivots  []PivotText `json:"pivots"`
}

type PivotText struct {
	Description string     `json:"description"`
	Reality     BranchText `json:"reality"`
	Symmetry    BranchText `json:"symmetry"`
}

type BranchText struct {
	Event          string `json:"event"`
	Outcome        string `json:"outcome"`
	TacticalImpact string `json:"tactical_impact"`
}

// Extract pulls the translatable strings out of doc.
func Extract(doc *article.Document) Text {
	t := Text{
		Title:           doc.Frontmatter.Title,
		Description:     doc.Frontmatter.Description,
		Tags:            nonNil(doc.Frontmatter.Tags),
		Figures:         []FigureText{},
		Sections:        []SectionText{},
		PlayerNotes:     []string{},
		DataLimitations: nonNil(doc.DataLimitations),
		Thesis:          doc.Thesis,
		CTA:             doc.CTA,
	}
	for _, f := range doc.Figures {
		t.Figures = append(t.Figures, FigureText{Alt: f.Alt, Caption: f.Caption})
	}
	for _, s := range doc.Sections {
		st := SectionText{
			Heading:    s.Heading,
			Paragraphs: nonNil(s.Paragraphs),
			Bullets:    nonNil(s.Bullets),
			Claims:     []string{},
		}
		for _, c := range s.Claims {
			st.Claims = append(st.Claims, c.Claim)
		}
		t.Sections = append(t.Sections, st)
	}
	for _, n := range doc.PlayerNotes {
		t.PlayerNotes = append(t.PlayerNotes, n.Summary)
	}
	if mv := doc.Multiverse; mv != nil {
		t.Multiverse = &MultiverseText{Summary: mv.Summary, Pivots: []PivotText{}}
		for _, p := range mv.Pivots {
			t.Multiverse.Pivots = append(t.Multiverse.Pivots, PivotText{
				Description: p.Description,
				Reality:     BranchText{Event: p.Reality.Event, Outcome: p.Reality.Outcome, TacticalImpact: p.Reality.TacticalImpact},
				Symmetry:    BranchText{Event: p.Symmetry.Event, Outcome: p.Symmetry.Outcome, TacticalImpact: p.Symmetry.TacticalImpact},
			})
		}
	}
	return t
}

// Apply returns a copy of doc with the strings of t written in. Callers
// check the shape first with Match.
func Apply(doc *article.Document, t Text) (*article.Document, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("copy article: %w", err)
	}
	var out article.Document
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("copy article: %w", err)
	}

	out.Frontmatter.Title = t.Title
	out.Frontmatter.Description = t.Description
	copy(out.Frontmatter.Tags, t.Tags)
	captions := make(map[string]FigureText, len(t.Figures))
	for i := range out.Figures {
		out.Figures[i].Alt = t.Figures[i].Alt
		out.Figures[i].Caption = t.Figures[i].Caption
		captions[out.Figures[i].ID] = t.Figures[i]
	}
	for i := range out.Sections {
		s, src := &out.Sections[i], t.Sections[i]
		s.Heading = src.Heading
		copy(s.Paragraphs, src.Paragraphs)
		copy(s.Bullets, src.Bullets)
		for j := range s.Claims {
			s.Claims[j].Claim = src.Claims[j]
		}
		for j := range s.Figures {
			if c, ok := captions[s.Figures[j].ID]; ok {
				s.Figures[j].Alt = c.Alt
				s.Figures[j].Caption = c.Caption
			}
		}
	}
	for i := range out.PlayerNotes {
		out.PlayerNotes[i].Summary = t.PlayerNotes[i]
	}
	copy(out.DataLimitations, t.DataLimitations)
	out.Thesis = t.Thesis
	out.CTA = t.CTA
	if mv := out.Multiverse; mv != nil && t.Multiverse != nil {
		mv.Summary = t.Multiverse.Summary
		for i := range mv.Pivots {
			p, src := &mv.Pivots[i], t.Multiverse.Pivots[i]
			p.Description = src.Description
			p.Reality.Event, p.Reality.Outcome, p.Reality.TacticalImpact = src.Reality.Event, src.Reality.Outcome, src.Reality.TacticalImpact
			p.Symmetry.Event, p.Symmetry.Outcome, p.Symmetry.TacticalImpact = src.Symmetry.Event, src.Symmetry.Outcome, src.Symmetry.TacticalImpact
		}
	}
	return &out, nil
}

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Match checks that got has the same shape as want: every list keeps its
// length, no filled string comes back empty and every number in a claim
// survives.
func Match(want, got Text) error {
	if err := sameStrings("tags", want.Tags, got.Tags); err != nil {
		return err
	}
	if err := filled("title", want.Title, got.Title); err != nil {
		return err
	}
	if err := filled("description", want.Description, got.Description); err != nil {
		return err
	}
	if len(want.Figures) != len(got.Figures) {
		return fmt.Errorf("figure count changed from %d to %d", len(want.Figures), len(got.Figures))
	}
	if len(want.Sections) != len(got.Sections) {
		return fmt.Errorf("section count changed from %d to %d", len(want.Sections), len(got.Sections))
	}
	for i, ws := range want.Sections {
		gs := got.Sections[i]
		prefix := fmt.Sprintf("sections.%d", i)
		if err := filled(prefix+".heading", ws.Heading, gs.Heading); err != nil {
			return err
		}
		if err := sameStrings(prefix+".paragraphs", ws.Paragraphs, gs.Paragraphs); err != nil {
			return err
		}
		if err := sameStrings(prefix+".bullets", ws.Bullets, gs.Bullets); err != nil {
			return err
		}
		if err := sameStrings(prefix+".claims", ws.Claims, gs.Claims); err != nil {
			return err
		}
		for j, claim := range ws.Claims {
			for _, n := range numberPattern.FindAllString(claim, -1) {
				if !strings.Contains(gs.Claims[j], n) {
					return fmt.Errorf("%s.claims.%d lost the number %s", prefix, j, n)
				}
			}
		}
	}
	if err := sameStrings("player_note_summaries", want.PlayerNotes, got.PlayerNotes); err != nil {
		return err
	}
	if err := sameStrings("data_limitations", want.DataLimitations, got.DataLimitations); err != nil {
		return err
	}
	if (want.Multiverse == nil) != (got.Multiverse == nil) {
		return fmt.Errorf("multiverse block added or dropped")
	}
	if want.Multiverse != nil && len(want.Multiverse.Pivots) != len(got.Multiverse.Pivots) {
		return fmt.Errorf("multiverse pivot count changed from %d to %d", len(want.Multiverse.Pivots), len(got.Multiverse.Pivots))
	}
	return nil
}

func sameStrings(name string, want, got []string) error {
	if len(want) != len(got) {
		return fmt.Errorf("%s count changed from %d to %d", name, len(want), len(got))
	}
	for i := range want {
		if err := filled(fmt.Sprintf("%s.%d", name, i), want[i], got[i]); err != nil {
			return err
		}
	}
	return nil
}

func filled(name, want, got string) error {
	if strings.TrimSpace(want) != "" && strings.TrimSpace(got) == "" {
		return fmt.Errorf("%s came back empty", name)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Package article assembles the validated narrative, match data and figures
// into the published article document, and manages the content index.
package article

import (
	"strings"

	"goalgazer/internal/core"
)

// Provider is the data source recorded in every article's provenance.
const Provider = "api-football"

// Document is the persisted article.
type Document struct {
	Frontmatter     Frontmatter          `json:"frontmatter"`
	Match           core.MatchInfo       `json:"match"`
	DataProvenance  Provenance           `json:"data_provenance"`
	Timeline        []core.TimelineEvent `json:"timeline"`
	TeamStats       TeamStats            `json:"team_stats"`
	Players         *Players             `json:"players,omitempty"`
	Figures         []core.FigureMeta    `json:"figures"`
	Sections        []Section            `json:"sections"`
	PlayerNotes     []core.PlayerNote    `json:"player_notes"`
	DataLimitations []string             `json:"data_limitations"`
	DataCitations   []string             `json:"data_citations"`
	Thesis          string               `json:"thesis"`
	Multiverse      *core.Multiverse     `json:"multiverse,omitempty"`
	CTA             string               `json:"cta"`
	// Language is carried for the database row; the document itself is
	// always written in the narrative's language.
	Language string `json:"-"`
}

// Frontmatter is the metadata block the web front end indexes.
type Frontmatter struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	MatchID     string   `json:"matchId"`
	League      string   `json:"league"`
	Slug        string   `json:"slug"`
	Teams       []string `json:"teams"`
	Tags        []string `json:"tags"`
	HeroImage   string   `json:"heroImage,omitempty"`
}

// Provenance records where the data came from and what was available.
type Provenance struct {
	Provider      string            `json:"provider"`
	EndpointsUsed []string          `json:"endpoints_used"`
	FetchedAtUTC  string            `json:"fetched_at_utc"`
	Availability  core.Availability `json:"availability"`
	Notes         []string          `json:"notes"`
}

// TeamStats wraps the normalized per-team statistics.
type TeamStats struct {
	Normalized map[string]core.TeamNormalizedStats `json:"normalized"`
}

// Players holds the public player rows per side.
type Players struct {
	Home []PlayerRow `json:"home"`
	Away []PlayerRow `json:"away"`
}

// PlayerRow is the per-player summary shown in the article.
type PlayerRow struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Position  string   `json:"position,omitempty"`
	Minutes   *int     `json:"minutes"`
	Goals     *int     `json:"goals"`
	Assists   *int     `json:"assists"`
	Yellow    *int     `json:"yellow"`
	Red       *int     `json:"red"`
	Rating    *float64 `json:"rating"`
	Shots     *int     `json:"shots"`
	KeyPasses *int     `json:"key_passes"`
	Passes    *int     `json:"passes"`
	Tackles   *int     `json:"tackles"`
	DuelsWon  *int     `json:"duels_won"`
}

// Section is a narrative section with the figures placed in it.
type Section struct {
	Heading    string            `json:"heading"`
	Paragraphs []string          `json:"paragraphs"`
	Bullets    []string          `json:"bullets"`
	Claims     []core.Claim      `json:"claims"`
	Figures    []core.FigureMeta `json:"figures"`
}

// Narrative extracts the narrative payload back out of the document.
func (d *Document) Narrative() *core.NarrativePayload {
	p := &core.NarrativePayload{
		Language:        d.Language,
		Title:           d.Frontmatter.Title,
		MetaDescription: d.Frontmatter.Description,
		Tags:            d.Frontmatter.Tags,
		Thesis:          d.Thesis,
		PlayerNotes:     d.PlayerNotes,
		DataLimitations: d.DataLimitations,
		CTA:             d.CTA,
		Multiverse:      d.Multiverse,
	}
	for _, s := range d.Sections {
		p.Sections = append(p.Sections, core.Section{
			Heading:    s.Heading,
			Bullets:    s.Bullets,
			Paragraphs: s.Paragraphs,
			Claims:     s.Claims,
		})
	}
	p.Normalize()
	return p
}

// FileKey is the "<date>_<matchId>" stem used for the article file.
func (d *Document) FileKey() string {
	return fileKey(d.Frontmatter.Date, d.Frontmatter.MatchID)
}

func fileKey(date, matchID string) string {
	day, _, _ := strings.Cut(date, "T")
	return day + "_" + matchID
}

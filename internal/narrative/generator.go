// Package narrative generates, validates and, when generation fails,
// synthesizes the evidence-grounded match narrative.
package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"goalgazer/internal/core"
	"goalgazer/internal/evidence"
	"goalgazer/internal/llm"
)

// Section headings every narrative must contain.
const (
	HeadingOverview   = "Match Overview"
	HeadingKeyMoments = "Key Moments"
	HeadingTactical   = "Tactical Notes"
)

const inferenceMode = "TACTICAL INFERENCE MODE: Critical data (shot locations or expected goals) is missing. Use the timeline events and aggregates to infer the tactical narrative. Focus on momentum shifts, substitution impacts and how teams adapted their playstyle based on the sequence of events. Describe key sequences in more detail to compensate for the lack of spatial charts."

// Input is everything one narrative run reads. None of it is mutated.
type Input struct {
	Match           *core.MatchData
	Catalog         *evidence.Catalog
	Availability    core.Availability
	FigureSummaries map[string]any
}

// Prompt is the constrained request sent to a provider.
type Prompt struct {
	System string
	User   string
}

// Messages returns the prompt as chat messages.
func (p Prompt) Messages() []llm.Message {
	return llm.SystemAndUser(p.System, p.User)
}

type userPayload struct {
	MatchContext         core.MatchInfo    `json:"match_context"`
	DataPayload          dataPayload       `json:"data_payload"`
	FigureSummaries      map[string]any    `json:"figure_summaries"`
	InferenceInstruction string            `json:"inference_instruction"`
	Availability         core.Availability `json:"availability"`
	AllowedEvidence      []string          `json:"allowed_evidence"`
}

type dataPayload struct {
	Teams          []core.TeamInfo      `json:"teams"`
	Players        []core.PlayerInfo    `json:"players"`
	Timeline       []core.TimelineEvent `json:"timeline"`
	Aggregates     core.Aggregates      `json:"aggregates"`
	DerivedMetrics map[string]any       `json:"derived_metrics"`
}

// BuildPrompt assembles the fixed instructions and the serialized match
// payload. Player rows are only included when player statistics exist.
func BuildPrompt(in Input) (Prompt, error) {
	players := []core.PlayerInfo{}
	if in.Availability.HasPlayers {
		players = in.Match.Players
	}
	summaries := in.FigureSummaries
	if summaries == nil {
		summaries = map[string]any{}
	}

	payload := userPayload{
		MatchContext: in.Match.Match,
		DataPayload: dataPayload{
			Teams:          in.Match.Teams,
			Players:        players,
			Timeline:       in.Match.Timeline,
			Aggregates:     in.Match.Aggregates,
			DerivedMetrics: DerivedMetrics(in.Match, in.Availability),
		},
		FigureSummaries: summaries,
		Availability:    in.Availability,
		AllowedEvidence: in.Catalog.AllowedEvidence(),
	}
	if in.Availability.Sparse() {
		payload.InferenceInstruction = inferenceMode
	}

	user, err := json.Marshal(payload)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to serialize prompt payload: %w", err)
	}
	return Prompt{System: systemPrompt(in.Availability), User: string(user)}, nil
}

func systemPrompt(a core.Availability) string {
	var sb strings.Builder
	sb.WriteString("You are a professional football tactical analyst and data editor. Strictly follow these requirements:\n")
	sb.WriteString("1. Only use the supplied JSON data and derived metrics. Do not fabricate facts.\n")
	sb.WriteString("2. Output MUST be strict JSON with no extra text.\n")
	fmt.Fprintf(&sb, "3. Provide at least 3 sections: '%s', '%s', and '%s'.\n", HeadingOverview, HeadingKeyMoments, HeadingTactical)
	sb.WriteString("4. Each section must have at least 2 paragraphs, and each paragraph must be at least 5 sentences long.\n")
	sb.WriteString("5. Every claim MUST include evidence copied from the allowed_evidence list (e.g. 'team_stats.normalized.123.total_shots=15'). Evidence not in that list is rejected.\n")
	sb.WriteString("6. Player notes MUST use player-specific evidence ONLY when availability.has_players=true; otherwise cite timeline evidence only. A note with a rating must cite a '.rating' path.\n")
	sb.WriteString("7. Include a 'thesis' which is a 2-3 sentence core takeaway of the match.\n")
	sb.WriteString("8. Optionally add a 'multiverse' block: identify 2-3 pivot points (goals, red cards, key substitutions). For each pivot give the 'reality' and a high-probability 'symmetry' (an alternative outcome) with its hypothetical tactical ripple effect.\n")
	fmt.Fprintf(&sb, "9. availability.has_xg=%t; if false, do NOT mention xG or Expected Goals.\n", a.HasXG)
	fmt.Fprintf(&sb, "10. availability.has_players=%t; if false, do NOT mention ratings or duels.\n", a.HasPlayers)
	sb.WriteString("\nJSON Structure:\n")
	sb.WriteString(structureExample)
	return sb.String()
}

const structureExample = `{
  "language": "en",
  "title": "...",
  "meta_description": "...",
  "tags": ["..."],
  "thesis": "...",
  "sections": [
    { "heading": "...", "bullets": ["..."], "paragraphs": ["..."], "claims": [{ "claim": "...", "evidence": ["..."], "confidence": 0.9 }] }
  ],
  "player_notes": [
    { "player": "...", "team": "...", "summary": "...", "evidence": ["..."] }
  ],
  "data_limitations": ["..."],
  "cta": "...",
  "multiverse": {
    "summary": "...",
    "pivots": [
      {
        "minute": 35, "type": "penalty", "description": "...",
        "reality": { "event": "...", "outcome": "...", "tactical_impact": "..." },
        "symmetry": { "event": "...", "outcome": "...", "tactical_impact": "...", "probability": 0.65 }
      }
    ]
  }
}`

// DerivedMetrics flattens per-side team statistics and, when available,
// player ratings and goal counts into a compact map for the prompt.
func DerivedMetrics(m *core.MatchData, a core.Availability) map[string]any {
	metrics := make(map[string]any)
	for _, side := range []core.Side{core.SideHome, core.SideAway} {
		team, ok := m.Team(side)
		if !ok {
			continue
		}
		for _, sv := range m.Aggregates.Normalized[team.ID].Values() {
			metrics[sv.Name+"_"+string(side)] = sv.Value
		}
	}
	metrics["goal_difference"] = m.Match.Score.Home - m.Match.Score.Away
	metrics["total_goals"] = m.Match.Score.Home + m.Match.Score.Away

	if !a.HasPlayers {
		return metrics
	}
	goals := make(map[string]int)
	for _, ev := range m.Timeline {
		if core.CountsAsGoal(ev) && ev.PlayerID != "" {
			goals[ev.PlayerID]++
		}
	}
	for _, p := range m.Players {
		prefix := "player_" + p.ID
		if p.Stats.Rating != nil {
			metrics[prefix+"_rating"] = *p.Stats.Rating
		}
		if n := goals[p.ID]; n > 0 {
			metrics[prefix+"_goals"] = n
		}
	}
	return metrics
}

// Generator performs one provider call per attempt. Retries belong to the
// Controller.
type Generator struct {
	log *zerolog.Logger
}

// NewGenerator creates a generator
func NewGenerator(log *zerolog.Logger) *Generator {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Generator{log: log}
}

// Generate sends the prompt once and returns the completion with any
// markdown code fence removed.
func (g *Generator) Generate(ctx context.Context, provider llm.Provider, prompt Prompt) (string, error) {
	g.log.Debug().Str("provider", provider.Name()).Int("prompt_bytes", len(prompt.User)).Msg("Requesting narrative")

	text, err := provider.Complete(ctx, prompt.Messages())
	if err != nil {
		return "", err
	}
	return StripCodeFences(text), nil
}

// StripCodeFences removes a surrounding ``` or ```json fence.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

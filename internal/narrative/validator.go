package narrative

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"goalgazer/internal/config"
	"goalgazer/internal/core"
	"goalgazer/internal/evidence"
	"goalgazer/internal/schema"
)

// Validation rules, in the order they are checked.
const (
	RuleSchema        = "schema"
	RuleForbiddenTerm = "forbidden_term"
	RuleEvidence      = "evidence"
	RuleRating        = "rating"
)

// ValidationError reports the first rule a payload violated.
type ValidationError struct {
	Rule   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("narrative rejected (%s): %s", e.Rule, e.Detail)
}

func reject(rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

type forbiddenTerm struct {
	pattern *regexp.Regexp
	reason  string
}

var (
	xgTerms = []forbiddenTerm{
		{regexp.MustCompile(`(?i)\bxg\b`), "has_xg=false"},
		{regexp.MustCompile(`(?i)expected goals`), "has_xg=false"},
	}
	playerTerms = []forbiddenTerm{
		{regexp.MustCompile(`(?i)\bratings?\b`), "has_players=false"},
		{regexp.MustCompile(`(?i)\bduel`), "has_players=false"},
	}
)

// Validator checks payloads against one match's catalog and availability.
type Validator struct {
	catalog      *evidence.Catalog
	availability core.Availability
	policy       string
	log          *zerolog.Logger
}

// NewValidator creates a validator. An empty policy means strict.
func NewValidator(cat *evidence.Catalog, a core.Availability, policy string, log *zerolog.Logger) *Validator {
	if policy == "" {
		policy = config.EvidenceStrict
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Validator{catalog: cat, availability: a, policy: policy, log: log}
}

// ValidateRaw parses generator output, defaults the language and validates
// the result.
func (v *Validator) ValidateRaw(text string) (*core.NarrativePayload, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, reject(RuleSchema, "invalid JSON: %v", err)
	}
	if lang, _ := doc["language"].(string); lang == "" {
		doc["language"] = "en"
	}
	if err := schema.ValidateNarrative(doc); err != nil {
		return nil, reject(RuleSchema, "%v", err)
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, reject(RuleSchema, "re-encode: %v", err)
	}
	var p core.NarrativePayload
	if err := json.Unmarshal(normalized, &p); err != nil {
		return nil, reject(RuleSchema, "decode: %v", err)
	}
	p.Normalize()

	if err := v.checkContent(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate runs every check on a typed payload. Nil slices count as empty;
// the payload itself is not modified.
func (v *Validator) Validate(p *core.NarrativePayload) error {
	if p == nil {
		return reject(RuleSchema, "payload is nil")
	}
	norm, err := p.Clone()
	if err != nil {
		return reject(RuleSchema, "encode: %v", err)
	}
	if err := schema.ValidateNarrative(norm); err != nil {
		return reject(RuleSchema, "%v", err)
	}
	return v.checkContent(norm)
}

func (v *Validator) checkContent(p *core.NarrativePayload) error {
	if err := v.checkForbiddenTerms(p); err != nil {
		return err
	}
	if err := v.checkEvidence(p); err != nil {
		return err
	}
	return v.checkRatings(p)
}

func (v *Validator) checkForbiddenTerms(p *core.NarrativePayload) error {
	terms := activeTerms(v.availability)
	if len(terms) == 0 {
		return nil
	}

	fields := scannedText(p)
	for _, term := range terms {
		for _, f := range fields {
			if m := term.pattern.FindString(f.text); m != "" {
				return reject(RuleForbiddenTerm, "%q in %s while %s", m, f.where, term.reason)
			}
		}
	}
	return nil
}

// activeTerms returns the terms the availability map rules out.
func activeTerms(a core.Availability) []forbiddenTerm {
	var terms []forbiddenTerm
	if !a.HasXG {
		terms = append(terms, xgTerms...)
	}
	if !a.HasPlayers {
		terms = append(terms, playerTerms...)
	}
	return terms
}

// ruledOut reports whether text mentions a term the availability map
// rules out.
func ruledOut(a core.Availability, text string) bool {
	for _, term := range activeTerms(a) {
		if term.pattern.MatchString(text) {
			return true
		}
	}
	return false
}

type textField struct {
	where string
	text  string
}

func scannedText(p *core.NarrativePayload) []textField {
	var out []textField
	for i, s := range p.Sections {
		for j, para := range s.Paragraphs {
			out = append(out, textField{fmt.Sprintf("sections[%d].paragraphs[%d]", i, j), para})
		}
		for j, b := range s.Bullets {
			out = append(out, textField{fmt.Sprintf("sections[%d].bullets[%d]", i, j), b})
		}
		for j, c := range s.Claims {
			out = append(out, textField{fmt.Sprintf("sections[%d].claims[%d]", i, j), c.Claim})
		}
	}
	for i, n := range p.PlayerNotes {
		out = append(out, textField{fmt.Sprintf("player_notes[%d].summary", i), n.Summary})
	}
	return out
}

func (v *Validator) checkEvidence(p *core.NarrativePayload) error {
	var missing []string
	for i, s := range p.Sections {
		for j, c := range s.Claims {
			for _, ref := range c.Evidence {
				if !v.catalog.Has(ref) {
					missing = append(missing, fmt.Sprintf("sections[%d].claims[%d]: %s", i, j, core.EvidencePath(ref)))
				}
			}
		}
	}
	for i, n := range p.PlayerNotes {
		for _, ref := range n.Evidence {
			if !v.catalog.Has(ref) {
				missing = append(missing, fmt.Sprintf("player_notes[%d]: %s", i, core.EvidencePath(ref)))
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if v.policy == config.EvidenceAdvisory {
		v.log.Warn().Strs("paths", missing).Msg("Narrative cites evidence outside the catalog")
		return nil
	}
	return reject(RuleEvidence, "unknown evidence path %s", strings.Join(missing, ", "))
}

func (v *Validator) checkRatings(p *core.NarrativePayload) error {
	for i, n := range p.PlayerNotes {
		if strings.TrimSpace(n.Rating) != "" && !citesRating(n.Evidence) {
			return reject(RuleRating, "player_notes[%d] (%s) states a rating without a .rating evidence path", i, n.Player)
		}
		if v.availability.HasPlayers {
			continue
		}
		for _, ref := range n.Evidence {
			if path := core.EvidencePath(ref); !strings.HasPrefix(path, "timeline.") {
				return reject(RuleRating, "player_notes[%d] (%s) cites %s but only timeline evidence is allowed without player data", i, n.Player, path)
			}
		}
	}
	return nil
}

func citesRating(refs []string) bool {
	for _, ref := range refs {
		if strings.HasSuffix(core.EvidencePath(ref), ".rating") {
			return true
		}
	}
	return false
}

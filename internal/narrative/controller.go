package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"goalgazer/internal/config"
	"goalgazer/internal/core"
	"goalgazer/internal/llm"
)

// State is a step of the generation state machine.
type State string

const (
	StateGenerate    State = "GENERATE"
	StateValidate    State = "VALIDATE"
	StateAccept      State = "ACCEPT"
	StateRetry       State = "RETRY"
	StateAltProvider State = "ALT_PROVIDER"
	StateFallback    State = "FALLBACK"
)

// Source says where the accepted payload came from.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceAlternate Source = "alternate"
	SourceFallback  Source = "fallback"
)

// DefaultMaxAttempts bounds calls to the primary provider.
const DefaultMaxAttempts = 3

const maxLoggedError = 100

// Attempt records one provider call.
type Attempt struct {
	Number   int           `json:"number"`
	Provider string        `json:"provider"`
	Source   Source        `json:"source"`
	Error    string        `json:"error,omitempty"`
	Rule     string        `json:"rule,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Outcome is the result of one controller run. Payload is never nil.
type Outcome struct {
	Payload  *core.NarrativePayload
	Source   Source
	Provider string
	Attempts []Attempt
	Trace    []State
	Repairs  []string
}

// ControllerConfig wires providers into a Controller. Either provider may
// be nil.
type ControllerConfig struct {
	Primary        llm.Provider
	Alternate      llm.Provider
	MaxAttempts    int
	EvidencePolicy string
	Logger         *zerolog.Logger
}

// Controller drives generate, validate, retry and fallback for one match at
// a time. It holds no per-match state between runs.
type Controller struct {
	generator   *Generator
	primary     llm.Provider
	alternate   llm.Provider
	maxAttempts int
	policy      string
	log         *zerolog.Logger
}

// NewController creates a controller
func NewController(cfg ControllerConfig) *Controller {
	log := cfg.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	policy := cfg.EvidencePolicy
	if policy == "" {
		policy = config.EvidenceStrict
	}
	return &Controller{
		generator:   NewGenerator(log),
		primary:     cfg.Primary,
		alternate:   cfg.Alternate,
		maxAttempts: maxAttempts,
		policy:      policy,
		log:         log,
	}
}

// run holds the mutable state of a single Run call.
type run struct {
	in        Input
	prompt    Prompt
	validator *Validator
	outcome   *Outcome

	attempt  int
	altTried bool
	raw      string
	lastErr  error
	current  Attempt
}

// Run produces a payload for the match. It never fails: every error path
// ends in the deterministic fallback.
func (c *Controller) Run(ctx context.Context, in Input) *Outcome {
	r := &run{
		in:        in,
		validator: NewValidator(in.Catalog, in.Availability, c.policy, c.log),
		outcome:   &Outcome{},
	}

	prompt, err := BuildPrompt(in)
	state := StateGenerate
	switch {
	case err != nil:
		c.log.Error().Err(err).Msg("Failed to build narrative prompt")
		state = StateFallback
	case in.Availability.Sparse() && c.alternate != nil:
		c.log.Info().Str("provider", c.alternate.Name()).Msg("Sparse data, trying deep analysis provider first")
		state = StateAltProvider
	}
	r.prompt = prompt

	for {
		r.outcome.Trace = append(r.outcome.Trace, state)
		switch state {
		case StateGenerate:
			state = c.generate(ctx, r)
		case StateValidate:
			state = c.validate(r)
		case StateRetry:
			state = c.retry(r)
		case StateAltProvider:
			state = c.alternateAttempt(ctx, r)
		case StateAccept:
			r.outcome.Payload.Normalize()
			c.log.Info().
				Str("source", string(r.outcome.Source)).
				Str("provider", r.outcome.Provider).
				Int("attempts", len(r.outcome.Attempts)).
				Msg("Narrative accepted")
			return r.outcome
		case StateFallback:
			c.log.Warn().Int("attempts", len(r.outcome.Attempts)).Msg("Using deterministic fallback narrative")
			r.outcome.Payload = Fallback(in.Catalog, in.Availability)
			r.outcome.Source = SourceFallback
			r.outcome.Provider = ""
			return r.outcome
		}
	}
}

func (c *Controller) generate(ctx context.Context, r *run) State {
	if c.primary == nil {
		if c.alternate != nil && !r.altTried {
			return StateAltProvider
		}
		return StateFallback
	}

	r.attempt++
	r.current = Attempt{Number: r.attempt, Provider: c.primary.Name(), Source: SourcePrimary}
	start := time.Now()
	text, err := c.generator.Generate(ctx, c.primary, r.prompt)
	r.current.Duration = time.Since(start)
	if err != nil {
		r.lastErr = err
		return StateRetry
	}
	r.raw = text
	return StateValidate
}

func (c *Controller) validate(r *run) State {
	p, err := c.check(r)
	if err != nil {
		r.lastErr = err
		return StateRetry
	}
	c.finishAttempt(r, nil)
	r.outcome.Payload = p
	r.outcome.Source = SourcePrimary
	r.outcome.Provider = c.primary.Name()
	return StateAccept
}

func (c *Controller) retry(r *run) State {
	c.finishAttempt(r, r.lastErr)
	if r.attempt < c.maxAttempts {
		return StateGenerate
	}
	if c.alternate != nil && !r.altTried {
		c.log.Info().Str("provider", c.alternate.Name()).Msg("Primary attempts exhausted, trying alternate provider")
		return StateAltProvider
	}
	return StateFallback
}

func (c *Controller) alternateAttempt(ctx context.Context, r *run) State {
	r.altTried = true
	r.current = Attempt{Number: len(r.outcome.Attempts) + 1, Provider: c.alternate.Name(), Source: SourceAlternate}

	start := time.Now()
	text, err := c.generator.Generate(ctx, c.alternate, r.prompt)
	r.current.Duration = time.Since(start)
	var p *core.NarrativePayload
	if err == nil {
		r.raw = text
		p, err = c.check(r)
	}
	c.finishAttempt(r, err)
	if err == nil {
		r.outcome.Payload = p
		r.outcome.Source = SourceAlternate
		r.outcome.Provider = c.alternate.Name()
		return StateAccept
	}

	if c.primary != nil && r.attempt < c.maxAttempts {
		return StateGenerate
	}
	return StateFallback
}

// check parses, repairs and validates the raw completion of the current
// attempt.
func (c *Controller) check(r *run) (*core.NarrativePayload, error) {
	p, err := r.validator.ValidateRaw(r.raw)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) && verr.Rule == RuleRating {
			return c.repairAndValidate(r)
		}
		return nil, err
	}
	return p, nil
}

// repairAndValidate gives rating violations one repair pass before
// rejecting the attempt.
func (c *Controller) repairAndValidate(r *run) (*core.NarrativePayload, error) {
	var p core.NarrativePayload
	if err := decodePayload(r.raw, &p); err != nil {
		return nil, err
	}
	changes := RepairRatings(&p, r.in.Catalog, r.in.Availability)
	if err := r.validator.Validate(&p); err != nil {
		return nil, err
	}
	r.outcome.Repairs = append(r.outcome.Repairs, changes...)
	return &p, nil
}

func (c *Controller) finishAttempt(r *run, err error) {
	a := r.current
	if err != nil {
		a.Error = truncateError(err.Error())
		var verr *ValidationError
		if errors.As(err, &verr) {
			a.Rule = verr.Rule
		}
		c.log.Warn().
			Int("attempt", a.Number).
			Str("provider", a.Provider).
			Str("error", a.Error).
			Msgf("Attempt %d failed", a.Number)
	}
	r.outcome.Attempts = append(r.outcome.Attempts, a)
}

func truncateError(s string) string {
	runes := []rune(s)
	if len(runes) <= maxLoggedError {
		return s
	}
	return string(runes[:maxLoggedError])
}

func decodePayload(text string, p *core.NarrativePayload) error {
	if err := json.Unmarshal([]byte(text), p); err != nil {
		return reject(RuleSchema, "invalid JSON: %v", err)
	}
	p.Normalize()
	return nil
}

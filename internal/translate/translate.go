// Package translate localizes a finished English article into another
// language. Only the human-readable strings go to the model; the fact
// subtrees, ids, evidence references and figure files are carried over from
// the source unchanged, and the result must still pass the article schema.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"goalgazer/internal/article"
	"goalgazer/internal/llm"
	"goalgazer/internal/narrative"
	"goalgazer/internal/schema"
)

const (
	// DefaultAttempts bounds model calls per language.
	DefaultAttempts = 4
	// DefaultRetryDelay is the pause between attempts.
	DefaultRetryDelay = 5 * time.Second
)

var (
	// ErrUnsupportedLanguage is returned for a target without a prompt.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrTranslationFailed is returned when every attempt was rejected.
	ErrTranslationFailed = errors.New("translation failed")
)

var languageNames = map[string]string{
	"zh": "Simplified Chinese (zh-CN)",
	"ja": "Japanese (ja-JP)",
}

// Languages lists the supported target codes.
func Languages() []string {
	return []string{"zh", "ja"}
}

// Config wires a Translator.
type Config struct {
	Provider   llm.Provider
	Attempts   int
	RetryDelay time.Duration
	Logger     *zerolog.Logger
}

// Translator turns an English article into a localized copy.
type Translator struct {
	provider llm.Provider
	attempts int
	delay    time.Duration
	log      *zerolog.Logger
}

// New creates a Translator. Zero Attempts and RetryDelay take the defaults;
// a negative RetryDelay disables the pause.
func New(cfg Config) *Translator {
	log := cfg.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	delay := cfg.RetryDelay
	if delay == 0 {
		delay = DefaultRetryDelay
	}
	return &Translator{provider: cfg.Provider, attempts: attempts, delay: delay, log: log}
}

// Translate returns the lang version of doc. The source document is not
// modified.
func (t *Translator) Translate(ctx context.Context, doc *article.Document, lang string) (*article.Document, error) {
	name, ok := languageNames[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	if t.provider == nil {
		return nil, fmt.Errorf("%w: no provider configured", ErrTranslationFailed)
	}

	source := Extract(doc)
	input, err := json.MarshalIndent(source, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode article text: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		if attempt > 1 && t.delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(t.delay):
			}
		}

		start := time.Now()
		out, err := t.attempt(ctx, doc, source, input, name, attempt)
		if err == nil {
			t.log.Info().
				Str("match_id", doc.Frontmatter.MatchID).
				Str("lang", lang).
				Int("attempt", attempt).
				Dur("elapsed", time.Since(start)).
				Msg("Translation accepted")
			out.Language = lang
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		t.log.Warn().
			Err(err).
			Str("match_id", doc.Frontmatter.MatchID).
			Str("lang", lang).
			Int("attempt", attempt).
			Int("max", t.attempts).
			Msg("Translation rejected")
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrTranslationFailed, lang, t.attempts, lastErr)
}

func (t *Translator) attempt(ctx context.Context, doc *article.Document, source Text, input []byte, language string, attempt int) (*article.Document, error) {
	text, err := t.provider.Complete(ctx, llm.SystemAndUser(systemPrompt(language, attempt), userPrompt(input)))
	if err != nil {
		return nil, err
	}

	var got Text
	dec := json.NewDecoder(strings.NewReader(narrative.StripCodeFences(text)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&got); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := Match(source, got); err != nil {
		return nil, err
	}

	out, err := Apply(doc, got)
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateArticle(out); err != nil {
		return nil, err
	}
	return out, nil
}

func systemPrompt(language string, attempt int) string {
	prompt := `You are a professional sports localization translator and JSON editor.

Translate ONLY the string values of the JSON from English to ` + language + `.
Return STRICT JSON only. No extra text.

Rules:
1) Keep every key, the object and array structure and the order unchanged.
   Every array must keep exactly as many items as the input.
2) Do NOT change numbers, scores, minutes, dates, URLs or paths. Every
   number in a claim must appear in its translation.
3) Keep team and player names exactly as they are written in the input,
   including diacritics.
4) Translate naturally for a football audience. Do not add facts that are
   not in the input and do not drop sentences.`
	if attempt > 1 {
		prompt += "\nNOTE: This is a retry. Return strict JSON with the same array lengths and follow every rule."
	}
	return prompt
}

func userPrompt(input []byte) string {
	return "Input JSON:\n<<<JSON\n" + string(input) + "\nJSON\n>>>"
}

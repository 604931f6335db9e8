package llm

import (
	"context"
	"fmt"

	"goalgazer/internal/config"
)

// NewPrimary builds the configured primary provider. Pollinations works
// without a key; Gemini requires one.
func NewPrimary(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.AI.Primary {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:      cfg.AI.Gemini.APIKey,
			Model:       cfg.AI.Gemini.Model,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Gemini.Timeout,
		})
	case config.ProviderPollinations, "":
		return NewChatClient(ChatConfig{
			Name:        config.ProviderPollinations,
			Endpoint:    cfg.AI.Pollinations.Endpoint,
			APIKey:      cfg.AI.Pollinations.APIKey,
			Model:       cfg.AI.Pollinations.Model,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Pollinations.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown primary provider %q", cfg.AI.Primary)
	}
}

// NewAlternate builds the deep-analysis provider, or returns nil when no
// usable OpenAI key is configured.
func NewAlternate(cfg *config.Config) (Provider, error) {
	if !cfg.HasAlternateProvider() {
		return nil, nil
	}
	return NewChatClient(ChatConfig{
		Name:        "openai",
		Endpoint:    cfg.AI.OpenAI.Endpoint,
		APIKey:      cfg.AI.OpenAI.APIKey,
		Model:       cfg.AI.OpenAI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.OpenAI.Timeout,
		RequireKey:  true,
	})
}

// Package llm provides the text-generation providers used by the narrative
// generator. Every provider takes a list of chat messages and returns the raw
// completion text; parsing and validation happen in the caller.
package llm

import (
	"context"
	"errors"
	"time"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// DefaultTemperature keeps the narrative close to the supplied data.
	DefaultTemperature = 0.2
	// DefaultTimeout bounds a single completion request.
	DefaultTimeout = 120 * time.Second
)

var (
	// ErrEmptyResponse is returned when a provider answers without content.
	ErrEmptyResponse = errors.New("empty model response")
	// ErrMissingKey is returned when a provider that requires a key has none.
	ErrMissingKey = errors.New("missing API key")
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider produces one completion per call.
type Provider interface {
	Name() string
	Complete(ctx context.Context, messages []Message) (string, error)
}

// SystemAndUser builds the usual two-message conversation.
func SystemAndUser(system, user string) []Message {
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

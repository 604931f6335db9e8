package llm

import (
	"context"
	"time"
)

// CallTracker receives one record per completion call.
type CallTracker interface {
	TrackLLMCall(ctx context.Context, provider, model string, latencyMs int64, success bool) error
}

type modeler interface {
	Model() string
}

// TracedProvider reports latency and success of every call to a tracker.
// Tracking failures never affect the completion result.
type TracedProvider struct {
	inner   Provider
	tracker CallTracker
}

// NewTracedProvider wraps p. A nil tracker returns p unchanged.
func NewTracedProvider(p Provider, tracker CallTracker) Provider {
	if p == nil || tracker == nil {
		return p
	}
	return &TracedProvider{inner: p, tracker: tracker}
}

// Name returns the wrapped provider's name.
func (t *TracedProvider) Name() string { return t.inner.Name() }

// Complete forwards to the wrapped provider.
func (t *TracedProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	start := time.Now()
	out, err := t.inner.Complete(ctx, messages)

	model := ""
	if m, ok := t.inner.(modeler); ok {
		model = m.Model()
	}
	_ = t.tracker.TrackLLMCall(ctx, t.inner.Name(), model, time.Since(start).Milliseconds(), err == nil)

	return out, err
}

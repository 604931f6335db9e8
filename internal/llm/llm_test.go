package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalgazer/internal/config"
)

func newTestChat(t *testing.T, handler http.HandlerFunc, key string) *ChatClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewChatClient(ChatConfig{
		Name:        "pollinations",
		Endpoint:    srv.URL,
		APIKey:      key,
		Model:       "grok",
		Temperature: DefaultTemperature,
	})
	require.NoError(t, err)
	return c
}

func TestChatClientComplete(t *testing.T) {
	var got chatRequest
	var auth string
	c := newTestChat(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  {\"title\":\"x\"}  "}}]}`))
	}, "secret")

	out, err := c.Complete(context.Background(), SystemAndUser("rules", "payload"))
	require.NoError(t, err)

	assert.Equal(t, `{"title":"x"}`, out)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "grok", got.Model)
	assert.InDelta(t, 0.2, got.Temperature, 1e-9)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
}

func TestChatClientOmitsAuthWithoutKey(t *testing.T) {
	var auth string
	c := newTestChat(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}, "")

	_, err := c.Complete(context.Background(), SystemAndUser("s", "u"))
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestChatClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, `boom`, "status 500"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices"},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"content":"   "}}]}`, "empty model response"},
		{"provider error", http.StatusOK, `{"error":{"message":"quota"}}`, "quota"},
		{"malformed", http.StatusOK, `{"choices":`, "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestChat(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, "")
			_, err := c.Complete(context.Background(), SystemAndUser("s", "u"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewChatClientRequiresKey(t *testing.T) {
	_, err := NewChatClient(ChatConfig{Name: "openai", Endpoint: "http://x", Model: "m", RequireKey: true})
	assert.True(t, errors.Is(err, ErrMissingKey))
}

func TestFactories(t *testing.T) {
	cfg := config.Default()

	primary, err := NewPrimary(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "pollinations", primary.Name())

	alt, err := NewAlternate(cfg)
	require.NoError(t, err)
	assert.Nil(t, alt, "no OpenAI key means no alternate")

	cfg.AI.OpenAI.APIKey = "sk-test"
	alt, err = NewAlternate(cfg)
	require.NoError(t, err)
	require.NotNil(t, alt)
	assert.Equal(t, "openai", alt.Name())

	cfg.AI.Primary = config.ProviderGemini
	_, err = NewPrimary(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestToGeminiContents(t *testing.T) {
	system, contents := toGeminiContents([]Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "b"},
		{Role: RoleAssistant, Content: "c"},
		{Role: RoleSystem, Content: "d"},
	})
	assert.Equal(t, "a\n\nd", system)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
}

type recordingTracker struct {
	provider, model string
	success         bool
	calls           int
}

func (r *recordingTracker) TrackLLMCall(_ context.Context, provider, model string, _ int64, success bool) error {
	r.provider, r.model, r.success = provider, model, success
	r.calls++
	return errors.New("tracking is best effort")
}

func TestTracedProvider(t *testing.T) {
	c := newTestChat(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, "")
	tracker := &recordingTracker{}
	p := NewTracedProvider(c, tracker)

	assert.Equal(t, "pollinations", p.Name())
	_, err := p.Complete(context.Background(), SystemAndUser("s", "u"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Equal(t, 1, tracker.calls)
	assert.Equal(t, "grok", tracker.model)
	assert.False(t, tracker.success)

	assert.Same(t, c, NewTracedProvider(c, nil))
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "ゴールゴ...", truncate("ゴールゴール", 4))
	assert.Equal(t, "Atlé...", truncate("Atlético", 4))
}

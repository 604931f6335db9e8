package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalgazer/internal/llm"
)

func TestBuildPromptWithPlayerData(t *testing.T) {
	in := newInput(t, richMatch(), fullAvailability())

	prompt, err := BuildPrompt(in)
	require.NoError(t, err)

	assert.Contains(t, prompt.System, "'Match Overview', 'Key Moments', and 'Tactical Notes'")
	assert.Contains(t, prompt.System, "availability.has_xg=true")
	assert.Contains(t, prompt.System, "availability.has_players=true")

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(prompt.User), &payload))
	data := payload["data_payload"].(map[string]any)
	assert.Len(t, data["players"], 3)
	assert.Empty(t, payload["inference_instruction"])
	assert.Contains(t, payload["allowed_evidence"], "players.home.0.rating=7.8")
	assert.Equal(t, map[string]any{"stats_comparison": "bars"}, payload["figure_summaries"])

	metrics := data["derived_metrics"].(map[string]any)
	assert.EqualValues(t, 61, metrics["possession_home"])
	assert.EqualValues(t, 2, metrics["player_1_goals"])
	assert.EqualValues(t, 2, metrics["goal_difference"])
}

func TestBuildPromptSparseData(t *testing.T) {
	in := newInput(t, thinMatch(), thinAvailability())

	prompt, err := BuildPrompt(in)
	require.NoError(t, err)
	assert.Contains(t, prompt.System, "availability.has_xg=false; if false, do NOT mention xG")
	assert.Contains(t, prompt.System, "availability.has_players=false; if false, do NOT mention ratings or duels")

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(prompt.User), &payload))
	assert.Contains(t, payload["inference_instruction"], "TACTICAL INFERENCE MODE")
	assert.Empty(t, payload["data_payload"].(map[string]any)["players"])

	msgs := prompt.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
}

func TestGenerateMakesOneCall(t *testing.T) {
	p := &scriptedProvider{name: "stub", steps: []step{{text: "```json\n{\"a\":1}\n```"}}}
	out, err := NewGenerator(nil).Generate(context.Background(), p, Prompt{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
	assert.Equal(t, 1, p.calls)

	p = &scriptedProvider{name: "stub", steps: []step{{err: errors.New("down")}}}
	_, err = NewGenerator(nil).Generate(context.Background(), p, Prompt{})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 1, p.calls)
}

func TestStripCodeFences(t *testing.T) {
	for in, want := range map[string]string{
		`{"a":1}`:                 `{"a":1}`,
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
		"  ```json{\"a\":1}```  ": `{"a":1}`,
	} {
		assert.Equal(t, want, StripCodeFences(in), in)
	}
}

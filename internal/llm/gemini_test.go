package llm

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessages(t *testing.T) {
	system, history, last, err := splitMessages([]Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleAssistant, Content: "What's your first name?"},
		{Role: RoleUser, Content: "Dana"},
		{Role: RoleAssistant, Content: "Last name?"},
		{Role: RoleUser, Content: "Levi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "be brief", system)
	assert.Equal(t, "Levi", last)
	require.Len(t, history, 4)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, genai.Text(conversationOpener), history[0].Parts[0])
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, "user", history[2].Role)
	assert.Equal(t, genai.Text("Dana"), history[2].Parts[0])
	assert.Equal(t, "model", history[3].Role)
}

func TestSplitMessagesUserFirst(t *testing.T) {
	_, history, last, err := splitMessages([]Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "question"},
	})
	require.NoError(t, err)
	assert.Equal(t, "question", last)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
}

func TestSplitMessagesNeedsUserTurn(t *testing.T) {
	_, _, _, err := splitMessages([]Message{{Role: RoleSystem, Content: "x"}})
	assert.ErrorIs(t, err, ErrNoUserTurn)

	_, _, _, err = splitMessages([]Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})
	assert.ErrorIs(t, err, ErrNoUserTurn)
}

func TestGenerationConfig(t *testing.T) {
	cfg := generationConfig(Request{Temperature: 0, MaxTokens: 500})
	require.NotNil(t, cfg.Temperature)
	assert.Equal(t, float32(0), *cfg.Temperature)
	assert.Equal(t, int32(500), *cfg.MaxOutputTokens)
	assert.Empty(t, cfg.ResponseMIMEType)

	schema := &genai.Schema{Type: genai.TypeObject}
	cfg = generationConfig(Request{JSON: true, Schema: schema})
	assert.Nil(t, cfg.MaxOutputTokens)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	assert.Same(t, schema, cfg.ResponseSchema)
}

func TestResponseText(t *testing.T) {
	assert.Empty(t, responseText(nil))
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text(" a"), genai.Text("b ")}},
	}}}
	assert.Equal(t, "ab", responseText(resp))
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, StripCodeFence("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, StripCodeFence("  {\"a\": 1} "))
	assert.Equal(t, `[]`, StripCodeFence("```\n[]\n```"))
}

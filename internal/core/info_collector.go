package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/healthdesk/benefits-assistant/internal/llm"
	"github.com/healthdesk/benefits-assistant/internal/logger"
	"github.com/healthdesk/benefits-assistant/internal/store"
)

const (
	collectTemperature = 0
	collectMaxTokens   = 800
)

// AdvanceResult is the assistant's next collection turn.
type AdvanceResult struct {
	Content     string `json:"content"`
	Role        string `json:"role"`
	IsValidated bool   `json:"is_validated"`
}

// InfoCollector drives the member-information dialogue and turns a finished
// conversation into a Profile.
type InfoCollector struct {
	llm    llm.Client
	log    *logger.Logger
	schema *gojsonschema.Schema
}

func NewInfoCollector(client llm.Client, log *logger.Logger) (*InfoCollector, error) {
	required := make([]interface{}, len(store.ProfileKeys))
	for i, k := range store.ProfileKeys {
		required[i] = k
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(map[string]interface{}{
		"type":     "object",
		"required": required,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to compile profile schema: %w", err)
	}
	return &InfoCollector{llm: client, log: log, schema: schema}, nil
}

// Advance produces the next assistant turn. A model failure is reported in
// the returned content rather than as an error.
func (c *InfoCollector) Advance(ctx context.Context, history []llm.Message, input, lang string) AdvanceResult {
	lang = NormalizeLanguage(lang)

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: CollectionPrompt(lang)})
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: input})

	reply, err := c.llm.Complete(ctx, llm.Request{
		Messages:    msgs,
		Temperature: collectTemperature,
		MaxTokens:   collectMaxTokens,
	})
	if err != nil {
		c.log.Error("collection turn failed", "language", lang, "error", err)
		return AdvanceResult{
			Content: fmt.Sprintf("Error processing request: %v", err),
			Role:    llm.RoleAssistant,
		}
	}

	return AdvanceResult{
		Content:     reply,
		Role:        llm.RoleAssistant,
		IsValidated: strings.Contains(strings.TrimSpace(reply), strings.TrimSpace(ConfirmationPhrase(lang))),
	}
}

// Extract asks the model for the profile as JSON. It reports false when the
// call fails, the reply is not JSON, or any of the profile keys is missing.
func (c *InfoCollector) Extract(ctx context.Context, history []llm.Message, lang string) (store.Profile, bool) {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: extractionPrompt})
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: extractionRequest})

	reply, err := c.llm.Complete(ctx, llm.Request{
		Messages:    msgs,
		Temperature: collectTemperature,
		MaxTokens:   collectMaxTokens,
		JSON:        true,
	})
	if err != nil {
		c.log.Warn("profile extraction call failed", "language", NormalizeLanguage(lang), "error", err)
		return store.Profile{}, false
	}

	reply = llm.StripCodeFence(reply)
	result, err := c.schema.Validate(gojsonschema.NewStringLoader(reply))
	if err != nil {
		c.log.Warn("profile extraction returned invalid JSON", "error", err)
		return store.Profile{}, false
	}
	if !result.Valid() {
		c.log.Warn("profile extraction is missing keys", "errors", schemaErrors(result))
		return store.Profile{}, false
	}

	var p store.Profile
	if err := json.Unmarshal([]byte(reply), &p); err != nil {
		c.log.Warn("profile extraction could not be decoded", "error", err)
		return store.Profile{}, false
	}
	if problems := p.Validate(); len(problems) > 0 {
		c.log.Debug("extracted profile has format problems", "problems", problems)
	}
	return p, true
}

func schemaErrors(r *gojsonschema.Result) []string {
	out := make([]string, 0, len(r.Errors()))
	for _, e := range r.Errors() {
		out = append(out, e.String())
	}
	return out
}

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/healthdesk/benefits-assistant/internal/logger"
)

const (
	DefaultChatModel      = "gemini-1.5-flash-latest"
	DefaultEmbeddingModel = "text-embedding-004"

	conversationOpener = "Hello"
)

// GeminiClient implements Client and Embedder on top of the Gemini API.
type GeminiClient struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	log            *logger.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, chatModel, embeddingModel string, log *logger.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	return &GeminiClient{
		client:         client,
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		log:            log,
	}, nil
}

func (c *GeminiClient) Close() {
	if c.client == nil {
		return
	}
	if err := c.client.Close(); err != nil {
		c.log.Warn("error closing GenAI client", "error", err)
		return
	}
	c.log.Info("GenAI client closed")
}

// Complete sends the system messages as the system instruction, every other
// message but the last as chat history, and the last user message as the
// new turn.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	system, history, last, err := splitMessages(req.Messages)
	if err != nil {
		return "", err
	}

	model := c.client.GenerativeModel(c.chatModel)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	model.GenerationConfig = generationConfig(req)

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		c.log.Warn("gemini response was empty or had no text parts", "model", c.chatModel)
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	em := c.client.EmbeddingModel(c.embeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

func generationConfig(req Request) genai.GenerationConfig {
	temp := req.Temperature
	cfg := genai.GenerationConfig{Temperature: &temp}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		cfg.MaxOutputTokens = &maxTokens
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = req.Schema
	}
	return cfg
}

// splitMessages maps the conversation onto Gemini's shape. Assistant turns
// become "model" turns.
func splitMessages(msgs []Message) (string, []*genai.Content, string, error) {
	var system []string
	var turns []Message
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != RoleUser {
		return "", nil, "", ErrNoUserTurn
	}

	history := make([]*genai.Content, 0, len(turns))
	// Gemini rejects a history that opens with a model turn, which is how
	// every chat starts here (the welcome message).
	if len(turns) > 1 && turns[0].Role == RoleAssistant {
		history = append(history, &genai.Content{
			Role:  "user",
			Parts: []genai.Part{genai.Text(conversationOpener)},
		})
	}
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return strings.Join(system, "\n\n"), history, turns[len(turns)-1].Content, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrEmptyResponse means the model answered without any text.
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrNoUserTurn means a request did not end with a user message.
	ErrNoUserTurn = errors.New("request must end with a user message")
)

// Message is one turn of a conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes a single completion call.
type Request struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int32
	// JSON asks for a single JSON object as the reply. Schema, when set,
	// constrains its shape.
	JSON   bool
	Schema *genai.Schema
}

// Client produces one completion per call. Implementations never retry.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// StripCodeFence removes a ```json fence some models wrap JSON replies in.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Package llm provides language model client interfaces, the runtime
// provider registry, and the retrieval-augmented chat service.
package llm

import (
	"context"
	"errors"
)

// Provider identifiers accepted by the switch endpoint.
const (
	ProviderOllama      = "ollama"
	ProviderHuggingFace = "huggingface"
	ProviderAnthropic   = "anthropic"
)

// ErrProcessingFailed is the generic error surfaced for any backend failure.
// The underlying error is logged, never exposed to callers.
var ErrProcessingFailed = errors.New("processing failed")

// ChatMessage represents a chat message for a language model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content   string
	Model     string
	TokensIn  int
	TokensOut int
	LatencyMs int64
}

// Client is the interface for language model backends.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string

	// Ready reports backend health without performing inference.
	Ready(ctx context.Context) error
}

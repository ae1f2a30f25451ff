package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OllamaClient talks to a locally hosted ollama server through its
// OpenAI-compatible /v1 API.
type OllamaClient struct {
	client *openai.Client
	model  string
}

// NewOllamaClient creates a client for the given ollama base URL.
func NewOllamaClient(baseURL, model string) (*OllamaClient, error) {
	if baseURL == "" {
		return nil, errors.New("ollama base URL is required")
	}
	if model == "" {
		return nil, errors.New("ollama model is required")
	}

	// Ollama ignores the API key but the client requires one.
	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = baseURL

	return &OllamaClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Name returns the provider name.
func (c *OllamaClient) Name() string {
	return ProviderOllama
}

// Models returns available models.
func (c *OllamaClient) Models() []string {
	return []string{c.model}
}

// Ready lists models on the server, which is cheap and needs no inference.
func (c *OllamaClient) Ready(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("ollama not reachable: %w", err)
	}
	return nil
}

// Complete sends a completion request.
func (c *OllamaClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return nil, err
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return &CompletionResponse{
		Content:   content,
		Model:     resp.Model,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

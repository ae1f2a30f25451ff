package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// HuggingFaceClient talks to the hosted Hugging Face inference API.
type HuggingFaceClient struct {
	http  *resty.Client
	model string
}

type hfGenerateRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature,omitempty"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfGenerateResponse struct {
	GeneratedText string `json:"generated_text"`
}

type hfErrorResponse struct {
	Error string `json:"error"`
}

type hfStatusResponse struct {
	Loaded bool   `json:"loaded"`
	State  string `json:"state"`
}

// NewHuggingFaceClient creates a client for the inference API.
func NewHuggingFaceClient(baseURL, token, model string) (*HuggingFaceClient, error) {
	if token == "" {
		return nil, errors.New("Hugging Face token is required")
	}
	if model == "" {
		return nil, errors.New("Hugging Face model is required")
	}

	http := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetTimeout(90 * time.Second)

	return &HuggingFaceClient{
		http:  http,
		model: model,
	}, nil
}

// Name returns the provider name.
func (c *HuggingFaceClient) Name() string {
	return ProviderHuggingFace
}

// Models returns available models.
func (c *HuggingFaceClient) Models() []string {
	return []string{c.model}
}

// Ready checks the model's load status without generating anything.
func (c *HuggingFaceClient) Ready(ctx context.Context) error {
	var status hfStatusResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&status).
		Get("/status/" + c.model)
	if err != nil {
		return fmt.Errorf("huggingface not reachable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("huggingface status check failed: %s", resp.Status())
	}
	if !status.Loaded {
		return fmt.Errorf("huggingface model %s not loaded (state %s)", c.model, status.State)
	}
	return nil
}

// Complete sends a completion request. The inference API takes a flat prompt,
// so the chat transcript is folded into one.
func (c *HuggingFaceClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	var generations []hfGenerateResponse
	var apiErr hfErrorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(hfGenerateRequest{
			Inputs: flattenMessages(req.Messages),
			Parameters: hfParameters{
				MaxNewTokens:   maxTokens,
				Temperature:    req.Temperature,
				ReturnFullText: false,
			},
		}).
		SetResult(&generations).
		SetError(&apiErr).
		Post("/models/" + c.model)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		if apiErr.Error != "" {
			return nil, fmt.Errorf("huggingface inference failed: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("huggingface inference failed: %s", resp.Status())
	}
	if len(generations) == 0 {
		return nil, errors.New("huggingface returned no generations")
	}

	return &CompletionResponse{
		Content:   strings.TrimSpace(generations[0].GeneratedText),
		Model:     c.model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

func flattenMessages(messages []ChatMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		case "assistant":
			b.WriteString("Assistant: ")
			b.WriteString(msg.Content)
			b.WriteString("\n")
		default:
			b.WriteString("User: ")
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
	}
	b.WriteString("Assistant:")
	return b.String()
}

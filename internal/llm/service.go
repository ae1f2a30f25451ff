package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vstock/store-assistant/internal/index"
	"github.com/vstock/store-assistant/pkg/logger"
)

const systemPrompt = `You are the AI assistant of a store management system.
You answer questions about the store's users, clients, products, accounts and
invoices. Answer in the language of the question (English or Arabic). Use only
the provided context for facts about the store; when the context does not
cover the question, say so instead of guessing. Format answers in markdown.`

// maxHistoryMessages bounds how much conversation history goes into a prompt.
const maxHistoryMessages = 10

// Searcher is the slice of the embedding index the chat service reads from.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...index.SearchOption) ([]index.Result, error)
}

// ChatRequest is one retrieval-augmented generation request.
type ChatRequest struct {
	Query        string
	History      []ChatMessage
	SessionID    string
	UserID       string
	EnableSearch bool
	Filters      Filters
}

// ChatResponse is the generated answer plus metadata about how it was built.
type ChatResponse struct {
	Content         string
	Provider        string
	Model           string
	SearchMetadata  map[string]any
	SessionMetadata map[string]any
}

// SearchResult is the payload of an enhanced search.
type SearchResult struct {
	Results        []index.Result `json:"searchResults"`
	TotalResults   int            `json:"totalResults"`
	AppliedFilters Filters        `json:"appliedFilters"`
}

// Service composes retrieval and generation over the active backend.
type Service struct {
	registry    *Registry
	searcher    Searcher
	logger      *logger.Logger
	chatTimeout time.Duration
}

// NewService creates the retrieval-augmented chat service.
func NewService(registry *Registry, searcher Searcher, log *logger.Logger, chatTimeout time.Duration) *Service {
	if chatTimeout <= 0 {
		chatTimeout = 60 * time.Second
	}
	return &Service{
		registry:    registry,
		searcher:    searcher,
		logger:      log,
		chatTimeout: chatTimeout,
	}
}

// Switch swaps the active backend, verifying readiness first.
func (s *Service) Switch(ctx context.Context, name string) error {
	return s.registry.Switch(ctx, name)
}

// Current returns the active provider name.
func (s *Service) Current() string {
	return s.registry.Current()
}

// Ready reports readiness of the active backend without inference.
func (s *Service) Ready(ctx context.Context) error {
	return s.registry.Ready(ctx)
}

// EnhancedSearch runs similarity search against the embedding index with the
// given filters applied.
func (s *Service) EnhancedSearch(ctx context.Context, query string, filters Filters) (*SearchResult, error) {
	opts := []index.SearchOption{}
	if filters.Limit > 0 {
		opts = append(opts, index.WithLimit(filters.Limit))
	}
	if len(filters.EntityTypes) > 0 {
		opts = append(opts, index.WithEntityTypes(filters.EntityTypes...))
	}
	if len(filters.EntityIDs) > 0 {
		opts = append(opts, index.WithEntityIDs(filters.EntityIDs...))
	}
	if filters.DateFrom != "" || filters.DateTo != "" {
		opts = append(opts, index.WithDateRange(filters.DateFrom, filters.DateTo))
	}

	results, err := s.searcher.Search(ctx, query, opts...)
	if err != nil {
		return nil, fmt.Errorf("enhanced search failed: %w", err)
	}

	return &SearchResult{
		Results:        results,
		TotalResults:   len(results),
		AppliedFilters: filters,
	}, nil
}

// Chat answers one query with the active backend. Retrieval is best effort:
// a failed search degrades to an uncontextualized answer rather than failing
// the request. Backend failures are logged in full and surfaced as
// ErrProcessingFailed.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.chatTimeout)
	defer cancel()

	searchMeta := map[string]any{"searchUsed": false}
	var contextBlock string
	if req.EnableSearch {
		result, err := s.EnhancedSearch(ctx, req.Query, req.Filters)
		if err != nil {
			s.logger.Warn("retrieval failed, answering without context",
				zap.String("user_id", req.UserID), zap.Error(err))
		} else if len(result.Results) > 0 {
			contextBlock = renderContext(result.Results)
			searchMeta = map[string]any{
				"searchUsed":     true,
				"resultCount":    result.TotalResults,
				"appliedFilters": result.AppliedFilters,
				"topSimilarity":  result.Results[0].Similarity,
			}
		}
	}

	messages := buildMessages(contextBlock, req.History, req.Query)

	client := s.registry.Active()
	resp, err := client.Complete(ctx, &CompletionRequest{
		Messages:    messages,
		Temperature: 0.3,
	})
	if err != nil {
		// Log the backend detail; never leak it to the caller.
		s.logger.Error("completion failed",
			zap.String("provider", client.Name()),
			zap.String("user_id", req.UserID),
			zap.String("query", truncate(req.Query, 80)),
			zap.Error(err))
		return nil, ErrProcessingFailed
	}

	return &ChatResponse{
		Content:        resp.Content,
		Provider:       client.Name(),
		Model:          resp.Model,
		SearchMetadata: searchMeta,
		SessionMetadata: map[string]any{
			"sessionId":    req.SessionID,
			"messageCount": len(req.History) + 1,
			"tokensIn":     resp.TokensIn,
			"tokensOut":    resp.TokensOut,
			"latencyMs":    resp.LatencyMs,
		},
	}, nil
}

func buildMessages(contextBlock string, history []ChatMessage, query string) []ChatMessage {
	prompt := systemPrompt
	if contextBlock != "" {
		prompt += "\n\nContext from store records:\n" + contextBlock
	}

	messages := []ChatMessage{{Role: "system", Content: prompt}}
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	messages = append(messages, history...)
	return append(messages, ChatMessage{Role: "user", Content: query})
}

func renderContext(results []index.Result) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString("- ")
		b.WriteString(r.Document.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

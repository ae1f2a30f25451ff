package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vstock/store-assistant/internal/index"
	"github.com/vstock/store-assistant/pkg/logger"
)

type fakeSearcher struct {
	results   []index.Result
	err       error
	calls     int
	lastQuery string
	lastOpts  []index.SearchOption
}

func (s *fakeSearcher) Search(ctx context.Context, query string, opts ...index.SearchOption) ([]index.Result, error) {
	s.calls++
	s.lastQuery = query
	s.lastOpts = opts
	return s.results, s.err
}

func newTestService(t *testing.T, client Client, searcher Searcher) *Service {
	t.Helper()
	reg, err := NewRegistry(client.Name(), client)
	require.NoError(t, err)
	return NewService(reg, searcher, logger.NewNop(), 5*time.Second)
}

func TestService_ChatWithRetrievedContext(t *testing.T) {
	client := &fakeClient{
		name: "ollama",
		response: &CompletionResponse{
			Content:   "You sold 12 items yesterday.",
			Model:     "llama3.1",
			TokensIn:  120,
			TokensOut: 9,
		},
	}
	searcher := &fakeSearcher{
		results: []index.Result{
			{
				Document: index.Document{
					ID:      "products_7",
					Content: "Product: Blue Pen, stock 12",
				},
				Similarity: 0.91,
			},
		},
	}
	svc := newTestService(t, client, searcher)

	resp, err := svc.Chat(context.Background(), ChatRequest{
		Query:        "how many blue pens are in stock?",
		SessionID:    "conv-1",
		UserID:       "u-1",
		EnableSearch: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "You sold 12 items yesterday.", resp.Content)
	assert.Equal(t, "ollama", resp.Provider)
	assert.Equal(t, 1, searcher.calls)
	assert.Equal(t, true, resp.SearchMetadata["searchUsed"])
	assert.Equal(t, 1, resp.SearchMetadata["resultCount"])
	assert.Equal(t, float32(0.91), resp.SearchMetadata["topSimilarity"])
	assert.Equal(t, "conv-1", resp.SessionMetadata["sessionId"])
}

func TestService_ChatDegradesWhenSearchFails(t *testing.T) {
	client := &fakeClient{
		name:     "ollama",
		response: &CompletionResponse{Content: "answer without context"},
	}
	searcher := &fakeSearcher{err: errors.New("index unavailable")}
	svc := newTestService(t, client, searcher)

	resp, err := svc.Chat(context.Background(), ChatRequest{
		Query:        "list products",
		EnableSearch: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "answer without context", resp.Content)
	assert.Equal(t, false, resp.SearchMetadata["searchUsed"])
}

func TestService_ChatBackendFailureIsOpaque(t *testing.T) {
	client := &fakeClient{
		name:        "ollama",
		completeErr: errors.New("connection refused to 10.0.0.5:11434"),
	}
	svc := newTestService(t, client, &fakeSearcher{})

	_, err := svc.Chat(context.Background(), ChatRequest{Query: "hi"})
	require.ErrorIs(t, err, ErrProcessingFailed)
	assert.NotContains(t, err.Error(), "10.0.0.5")
}

func TestService_ChatSkipsSearchWhenDisabled(t *testing.T) {
	client := &fakeClient{
		name:     "ollama",
		response: &CompletionResponse{Content: "ok"},
	}
	searcher := &fakeSearcher{}
	svc := newTestService(t, client, searcher)

	_, err := svc.Chat(context.Background(), ChatRequest{Query: "hi", EnableSearch: false})
	require.NoError(t, err)
	assert.Equal(t, 0, searcher.calls)
}

func TestService_EnhancedSearchAppliesFilters(t *testing.T) {
	searcher := &fakeSearcher{
		results: []index.Result{{Document: index.Document{ID: "invoices_3"}}},
	}
	svc := newTestService(t, &fakeClient{name: "ollama"}, searcher)

	result, err := svc.EnhancedSearch(context.Background(), "invoices for january", Filters{
		EntityTypes: []string{"invoices"},
		DateFrom:    "2024-01-01",
		DateTo:      "2024-01-31",
		Limit:       3,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalResults)
	assert.Equal(t, []string{"invoices"}, result.AppliedFilters.EntityTypes)
	assert.Equal(t, "invoices for january", searcher.lastQuery)
	// limit, entity types and date range each become one search option.
	assert.Len(t, searcher.lastOpts, 3)
}

func TestService_EnhancedSearchForwardsEntityIDs(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := newTestService(t, &fakeClient{name: "ollama"}, searcher)

	filters := ExtractFilters("status of invoice #42")
	require.Equal(t, []string{"42"}, filters.EntityIDs)

	_, err := svc.EnhancedSearch(context.Background(), "status of invoice #42", filters)
	require.NoError(t, err)

	// Entity types plus entity IDs. Dropping the ID filter would leave a
	// single option here.
	assert.Len(t, searcher.lastOpts, 2)
}

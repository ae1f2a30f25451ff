package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vstock/store-assistant/internal/llm"
	"github.com/vstock/store-assistant/internal/middleware"
	"github.com/vstock/store-assistant/internal/model"
	"github.com/vstock/store-assistant/internal/service"
	"github.com/vstock/store-assistant/pkg/logger"
	"github.com/vstock/store-assistant/pkg/metrics"
)

type stubAI struct {
	content string
	chatErr error
	current string
}

func (a *stubAI) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if a.chatErr != nil {
		return nil, a.chatErr
	}
	return &llm.ChatResponse{Content: a.content, Provider: a.current}, nil
}

func (a *stubAI) EnhancedSearch(ctx context.Context, query string, filters llm.Filters) (*llm.SearchResult, error) {
	return &llm.SearchResult{AppliedFilters: filters}, nil
}

func (a *stubAI) Switch(ctx context.Context, name string) error {
	a.current = name
	return nil
}

func (a *stubAI) Current() string { return a.current }

func (a *stubAI) Ready(ctx context.Context) error { return nil }

func newAgentFixture(t *testing.T, ai *stubAI) (*AgentHandler, *service.ConversationStore) {
	t.Helper()
	store := service.NewConversationStore(service.NewMemoryRepository(), logger.NewNop())
	orch := service.NewOrchestrator(store, ai, nil, service.NewTTLCache(time.Minute),
		metrics.NewTracker(), nil, logger.NewNop())
	require.NoError(t, orch.Start())
	return NewAgentHandler(orch, logger.NewNop()), store
}

func authedRequest(method, target, body, userID string) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
	return req.WithContext(ctx)
}

func TestChat_Success(t *testing.T) {
	h, _ := newAgentFixture(t, &stubAI{content: "**5** invoices today", current: "ollama"})

	req := authedRequest(http.MethodPost, "/ai-agent/chat", `{"query":"how many invoices today?"}`, "u-1")
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result model.ChatResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "**5** invoices today", result.Message)
	assert.Contains(t, result.HTML, "<strong>5</strong>")
	assert.NotEmpty(t, result.ConversationID)
}

func TestChat_EmptyQuery(t *testing.T) {
	h, _ := newAgentFixture(t, &stubAI{current: "ollama"})

	req := authedRequest(http.MethodPost, "/ai-agent/chat", `{"query":"  "}`, "u-1")
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_InvalidBody(t *testing.T) {
	h, _ := newAgentFixture(t, &stubAI{current: "ollama"})

	req := authedRequest(http.MethodPost, "/ai-agent/chat", `{not json`, "u-1")
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_BackendFailureIsOpaque(t *testing.T) {
	h, _ := newAgentFixture(t, &stubAI{chatErr: llm.ErrProcessingFailed, current: "ollama"})

	req := authedRequest(http.MethodPost, "/ai-agent/chat", `{"query":"hello"}`, "u-1")
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "I couldn't process your request. Please try again.", body["error"])
}

func TestChat_ForeignConversationIs404(t *testing.T) {
	ai := &stubAI{content: "hi", current: "ollama"}
	h, store := newAgentFixture(t, ai)

	conv, err := store.Create(context.Background(), "owner", "private")
	require.NoError(t, err)

	req := authedRequest(http.MethodPost, "/ai-agent/chat",
		`{"query":"hello","conversationId":"`+conv.ID+`"}`, "intruder")
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnhancedSearch_MergesExplicitFilters(t *testing.T) {
	h, _ := newAgentFixture(t, &stubAI{current: "ollama"})

	req := authedRequest(http.MethodPost, "/ai-agent/search/enhanced",
		`{"query":"big orders","entityTypes":["invoices"],"dateFrom":"2024-01-01","limit":3}`, "u-1")
	rec := httptest.NewRecorder()
	h.EnhancedSearch(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result llm.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, []string{"invoices"}, result.AppliedFilters.EntityTypes)
	assert.Equal(t, "2024-01-01", result.AppliedFilters.DateFrom)
	assert.Equal(t, 3, result.AppliedFilters.Limit)
}

func TestSwitchProvider(t *testing.T) {
	h, _ := newAgentFixture(t, &stubAI{current: "ollama"})

	req := authedRequest(http.MethodPost, "/ai-agent/provider/switch", `{"provider":"HuggingFace"}`, "admin-1")
	rec := httptest.NewRecorder()
	h.SwitchProvider(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "huggingface", body["provider"])
}

func TestSwitchProvider_MissingName(t *testing.T) {
	h, _ := newAgentFixture(t, &stubAI{current: "ollama"})

	req := authedRequest(http.MethodPost, "/ai-agent/provider/switch", `{}`, "admin-1")
	rec := httptest.NewRecorder()
	h.SwitchProvider(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCurrentProvider(t *testing.T) {
	h, _ := newAgentFixture(t, &stubAI{current: "ollama"})

	rec := httptest.NewRecorder()
	h.CurrentProvider(rec, authedRequest(http.MethodGet, "/ai-agent/provider/current", "", "u-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ollama"`)
}

func TestHealth_DegradedWithoutIndex(t *testing.T) {
	h, _ := newAgentFixture(t, &stubAI{current: "ollama"})

	rec := httptest.NewRecorder()
	h.Health(rec, authedRequest(http.MethodGet, "/ai-agent/health", "", "u-1"))

	// No index collaborator wired: healthy provider, degraded overall.
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report model.HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.False(t, report.Status)
	assert.Equal(t, true, report.Details["providerReady"])
	assert.Equal(t, false, report.Details["indexReady"])
}

package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vstock/store-assistant/internal/llm"
	"github.com/vstock/store-assistant/internal/model"
	"github.com/vstock/store-assistant/pkg/logger"
	"github.com/vstock/store-assistant/pkg/metrics"
)

// titleLength is how much of the first query becomes the conversation title.
const titleLength = 50

// Orchestrator lifecycle states.
const (
	StateCreated int32 = iota
	StateReady
	StateStopped
)

// AI is the language-model collaborator. *llm.Service satisfies it.
type AI interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
	EnhancedSearch(ctx context.Context, query string, filters llm.Filters) (*llm.SearchResult, error)
	Switch(ctx context.Context, name string) error
	Current() string
	Ready(ctx context.Context) error
}

// IndexHealth is the slice of the embedding index the health check reads.
type IndexHealth interface {
	Ping(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

// EventPublisher receives answered-query events. May be nil.
type EventPublisher interface {
	QueryAnswered(ctx context.Context, userID, conversationID string) error
	Connected() bool
}

// Orchestrator is the top-level agent service: it validates input, resolves
// conversations, checks the cache, runs retrieval+generation, persists the
// exchange, and keeps the metrics current.
type Orchestrator struct {
	store     *ConversationStore
	ai        AI
	indexInfo IndexHealth
	cache     Cache
	tracker   *metrics.Tracker
	publisher EventPublisher
	logger    *logger.Logger

	state atomic.Int32
}

// NewOrchestrator creates an Orchestrator in the Created state. Queries fail
// until Start is called.
func NewOrchestrator(store *ConversationStore, ai AI, indexInfo IndexHealth, cache Cache, tracker *metrics.Tracker, publisher EventPublisher, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		ai:        ai,
		indexInfo: indexInfo,
		cache:     cache,
		tracker:   tracker,
		publisher: publisher,
		logger:    log,
	}
}

// Start moves the service to Ready. It fails when a required collaborator is
// missing; that failure is fatal to process startup.
func (o *Orchestrator) Start() error {
	if o.store == nil || o.ai == nil || o.cache == nil || o.tracker == nil {
		return fmt.Errorf("orchestrator missing required collaborators")
	}
	if !o.state.CompareAndSwap(StateCreated, StateReady) {
		return fmt.Errorf("orchestrator already started")
	}
	return nil
}

// Stop moves the service to Stopped. In-flight queries finish; new ones fail
// fast.
func (o *Orchestrator) Stop() {
	o.state.Store(StateStopped)
}

// HandleQuery answers one natural-language query for userID. With no
// conversationID a conversation is created lazily, titled from the query.
func (o *Orchestrator) HandleQuery(ctx context.Context, query, userID, conversationID string) (result *model.ChatResult, err error) {
	if o.state.Load() != StateReady {
		return nil, model.ErrNotInitialized
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", model.ErrValidation)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", model.ErrUnauthorized)
	}

	requestID := uuid.New().String()
	log := o.logger.WithRequest(requestID, userID)

	// Response time is measured and logged even when the query fails.
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.RecordQuery(o.ai.Current(), status, elapsed.Seconds())
		log.Info("query handled",
			zap.String("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("query", truncateRunes(query, 80)))
	}()

	cacheKey := QueryCacheKey(query, userID)
	if cached, ok := o.cache.Get(cacheKey); ok {
		o.tracker.RecordCacheHit()
		return cached, nil
	}
	o.tracker.RecordCacheMiss()

	var conv *model.Conversation
	if conversationID == "" {
		conv, err = o.store.Create(ctx, userID, truncateRunes(query, titleLength))
		if err != nil {
			return nil, err
		}
	} else {
		conv, err = o.store.Get(ctx, conversationID, userID)
		if err != nil {
			return nil, err
		}
	}

	if _, err = o.store.AddMessage(ctx, conv.ID, model.RoleUser, query, map[string]any{
		"requestId": requestID,
	}); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	history, err := o.store.History(ctx, conv.ID, 10)
	if err != nil {
		log.Warn("failed to load history, prompting without it", zap.Error(err))
		history = nil
	}

	resp, err := o.ai.Chat(ctx, llm.ChatRequest{
		Query:        query,
		History:      toPromptHistory(history, query),
		SessionID:    conv.ID,
		UserID:       userID,
		EnableSearch: true,
		Filters:      llm.ExtractFilters(query),
	})
	if err != nil {
		return nil, err
	}

	// The answer is already generated; losing its copy in the conversation
	// log must not fail the request.
	if _, persistErr := o.store.AddMessage(ctx, conv.ID, model.RoleAssistant, resp.Content, map[string]any{
		"requestId":       requestID,
		"provider":        resp.Provider,
		"searchMetadata":  resp.SearchMetadata,
		"sessionMetadata": resp.SessionMetadata,
	}); persistErr != nil {
		log.Warn("failed to persist assistant message", zap.Error(persistErr))
	}

	result = &model.ChatResult{
		Message:         resp.Content,
		HTML:            RenderSafeHTML(resp.Content),
		ConversationID:  conv.ID,
		Timestamp:       time.Now(),
		SearchMetadata:  resp.SearchMetadata,
		SessionMetadata: resp.SessionMetadata,
	}

	o.tracker.RecordQuery(time.Since(start))
	o.cache.Set(cacheKey, result)

	if o.publisher != nil {
		if pubErr := o.publisher.QueryAnswered(ctx, userID, conv.ID); pubErr != nil {
			log.Warn("failed to publish query event", zap.Error(pubErr))
		}
	}

	return result, nil
}

// EnhancedSearch is a passthrough to the language-model service with a
// sanitized error boundary.
func (o *Orchestrator) EnhancedSearch(ctx context.Context, query string, filters llm.Filters) (*llm.SearchResult, error) {
	if o.state.Load() != StateReady {
		return nil, model.ErrNotInitialized
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", model.ErrValidation)
	}

	result, err := o.ai.EnhancedSearch(ctx, query, filters)
	if err != nil {
		o.logger.Error("enhanced search failed", zap.Error(err))
		return nil, fmt.Errorf("enhanced search failed")
	}
	return result, nil
}

// SwitchProvider swaps the active language model backend.
func (o *Orchestrator) SwitchProvider(ctx context.Context, name string) error {
	err := o.ai.Switch(ctx, name)
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.ProviderSwitchesTotal.WithLabelValues(name, status).Inc()
	return err
}

// CurrentProvider returns the active backend name.
func (o *Orchestrator) CurrentProvider() string {
	return o.ai.Current()
}

// Conversations exposes the conversation store for read endpoints.
func (o *Orchestrator) Conversations() *ConversationStore {
	return o.store
}

// HealthCheck aggregates collaborator readiness and the metrics snapshot.
// The conversation subsystem has no external dependency, so it always reports
// available.
func (o *Orchestrator) HealthCheck(ctx context.Context) *model.HealthReport {
	details := map[string]any{
		"provider":      o.ai.Current(),
		"conversations": true,
		"metrics":       o.tracker.Snapshot(),
	}

	healthy := o.state.Load() == StateReady

	providerReady := o.ai.Ready(ctx) == nil
	details["providerReady"] = providerReady
	healthy = healthy && providerReady

	indexReady := false
	if o.indexInfo != nil {
		if err := o.indexInfo.Ping(ctx); err == nil {
			indexReady = true
			if count, err := o.indexInfo.Count(ctx); err == nil {
				details["indexedDocuments"] = count
			}
		}
	}
	details["indexReady"] = indexReady
	healthy = healthy && indexReady

	// Audit events are optional and never degrade overall health.
	if o.publisher != nil {
		details["eventsConnected"] = o.publisher.Connected()
	}

	message := "all systems operational"
	if !healthy {
		message = "degraded"
	}

	return &model.HealthReport{
		Status:    healthy,
		Timestamp: time.Now(),
		Message:   message,
		Details:   details,
	}
}

// toPromptHistory converts stored messages to prompt form, excluding the
// just-persisted copy of the current query.
func toPromptHistory(history []model.Message, currentQuery string) []llm.ChatMessage {
	var out []llm.ChatMessage
	for i, msg := range history {
		if i == len(history)-1 && msg.Role == model.RoleUser && msg.Content == currentQuery {
			break
		}
		out = append(out, llm.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return out
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

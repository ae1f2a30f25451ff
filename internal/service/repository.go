// Package service provides the conversation store, the query cache, and the
// orchestrator that ties the agent pipeline together.
package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vstock/store-assistant/internal/model"
)

// Repository is the persistence collaborator for conversations and messages.
// Implementations return model.ErrNotFound for unknown conversation IDs.
type Repository interface {
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error
	ListConversations(ctx context.Context, userID string, limit, offset int) ([]model.Conversation, int, error)

	AddMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, int, error)
	SearchMessages(ctx context.Context, conversationID, query string, limit int) ([]model.Message, error)
}

// MemoryRepository is an in-memory Repository. It backs tests and local
// development without a database.
type MemoryRepository struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	messages      map[string][]model.Message
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string][]model.Message),
	}
}

func (r *MemoryRepository) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *conv
	r.conversations[conv.ID] = &copied
	return nil
}

func (r *MemoryRepository) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.conversations[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	copied := *conv
	return &copied, nil
}

func (r *MemoryRepository) TouchConversation(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok {
		return model.ErrNotFound
	}
	conv.UpdatedAt = at
	return nil
}

func (r *MemoryRepository) ListConversations(ctx context.Context, userID string, limit, offset int) ([]model.Conversation, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var convs []model.Conversation
	for _, conv := range r.conversations {
		if conv.UserID == userID {
			convs = append(convs, *conv)
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})

	total := len(convs)
	return page(convs, limit, offset), total, nil
}

func (r *MemoryRepository) AddMessage(ctx context.Context, msg *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[msg.ConversationID]; !ok {
		return model.ErrNotFound
	}
	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], *msg)
	return nil
}

func (r *MemoryRepository) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := r.messages[conversationID]
	return page(msgs, limit, offset), len(msgs), nil
}

func (r *MemoryRepository) SearchMessages(ctx context.Context, conversationID, query string, limit int) ([]model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(query)
	var hits []model.Message
	for _, msg := range r.messages[conversationID] {
		if strings.Contains(strings.ToLower(msg.Content), needle) {
			hits = append(hits, msg)
			if limit > 0 && len(hits) == limit {
				break
			}
		}
	}
	return hits, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset > len(items) {
		offset = len(items)
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return append([]T(nil), items[offset:end]...)
}

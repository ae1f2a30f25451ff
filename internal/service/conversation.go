package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vstock/store-assistant/internal/model"
	"github.com/vstock/store-assistant/pkg/logger"
)

// ConversationStore owns conversation and message lifecycle on top of a
// Repository. Every read is ownership-checked: a conversation belonging to a
// different user is reported as missing, never as forbidden, so valid foreign
// IDs cannot be probed.
type ConversationStore struct {
	repo   Repository
	logger *logger.Logger
}

// NewConversationStore creates a ConversationStore.
func NewConversationStore(repo Repository, log *logger.Logger) *ConversationStore {
	return &ConversationStore{
		repo:   repo,
		logger: log,
	}
}

// Create starts a new conversation for userID. An empty title defaults.
func (s *ConversationStore) Create(ctx context.Context, userID, title string) (*model.Conversation, error) {
	if title == "" {
		title = model.DefaultConversationTitle
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// Get fetches a conversation, enforcing ownership.
func (s *ConversationStore) Get(ctx context.Context, id, userID string) (*model.Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, model.ErrNotFound
	}
	return conv, nil
}

// AddMessage appends an immutable message and bumps the conversation's
// UpdatedAt.
func (s *ConversationStore) AddMessage(ctx context.Context, conversationID string, role model.Role, content string, metadata map[string]any) (*model.Message, error) {
	msg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
		CreatedAt:      time.Now(),
	}

	if err := s.repo.AddMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.repo.TouchConversation(ctx, conversationID, msg.CreatedAt); err != nil {
		// The message is already durable; a failed touch only skews ordering.
		s.logger.Warn("failed to bump conversation timestamp")
	}
	return msg, nil
}

// List returns the user's conversations, most recently updated first.
func (s *ConversationStore) List(ctx context.Context, userID string, limit, offset int) (*model.ListConversationsResponse, error) {
	limit = clampLimit(limit)
	convs, total, err := s.repo.ListConversations(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return &model.ListConversationsResponse{
		Conversations: convs,
		Total:         total,
		HasMore:       offset+len(convs) < total,
	}, nil
}

// Messages returns a page of a conversation's messages, oldest first.
func (s *ConversationStore) Messages(ctx context.Context, conversationID, userID string, limit, offset int) (*model.ListMessagesResponse, error) {
	if _, err := s.Get(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	limit = clampLimit(limit)
	msgs, total, err := s.repo.ListMessages(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return &model.ListMessagesResponse{
		Messages: msgs,
		Total:    total,
		HasMore:  offset+len(msgs) < total,
	}, nil
}

// SearchMessages finds messages containing query within one conversation.
func (s *ConversationStore) SearchMessages(ctx context.Context, conversationID, userID, query string, limit int) ([]model.Message, error) {
	if _, err := s.Get(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.repo.SearchMessages(ctx, conversationID, query, clampLimit(limit))
}

// History returns the most recent messages formatted for prompting, oldest
// first.
func (s *ConversationStore) History(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	msgs, _, err := s.repo.ListMessages(ctx, conversationID, 0, 0)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the name of the agent audit stream.
	StreamName = "AI_AGENT"

	// SubjectPrefix is the prefix for all agent subjects.
	SubjectPrefix = "ai"
)

// SyncEvent records a completed sync pass over one entity type.
type SyncEvent struct {
	EntityType string    `json:"entityType"`
	Documents  int       `json:"documents"`
	Timestamp  time.Time `json:"timestamp"`
}

// QueryEvent records an answered user query.
type QueryEvent struct {
	UserID         string    `json:"userId"`
	ConversationID string    `json:"conversationId"`
	Timestamp      time.Time `json:"timestamp"`
}

// Publisher writes agent audit events to JetStream.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher over an established client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Connected reports whether the underlying NATS connection is live.
func (p *Publisher) Connected() bool {
	return p.client.IsConnected()
}

// EnsureStream creates the audit stream if it does not exist yet.
func (p *Publisher) EnsureStream(ctx context.Context) error {
	js := p.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Store assistant audit events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// SyncCompleted publishes a sync completion event.
func (p *Publisher) SyncCompleted(ctx context.Context, entityType string, documents int) error {
	return p.publish(ctx, fmt.Sprintf("%s.sync.completed.%s", SubjectPrefix, entityType), SyncEvent{
		EntityType: entityType,
		Documents:  documents,
		Timestamp:  time.Now(),
	})
}

// QueryAnswered publishes a query completion event.
func (p *Publisher) QueryAnswered(ctx context.Context, userID, conversationID string) error {
	return p.publish(ctx, fmt.Sprintf("%s.query.answered.%s", SubjectPrefix, userID), QueryEvent{
		UserID:         userID,
		ConversationID: conversationID,
		Timestamp:      time.Now(),
	})
}

func (p *Publisher) publish(ctx context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.client.JetStream().Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

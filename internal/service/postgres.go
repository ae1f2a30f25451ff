package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vstock/store-assistant/internal/model"
)

// pgDB is the subset of pgxpool.Pool the repository needs.
type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository persists conversations and messages in Postgres.
type PostgresRepository struct {
	db pgDB
}

// NewPostgresRepository creates a repository over the given pool.
func NewPostgresRepository(db pgDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the conversation tables.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ai_conversations (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			title      TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ai_conversations_user_idx
			ON ai_conversations (user_id, updated_at DESC)`,
		`CREATE TABLE IF NOT EXISTS ai_messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES ai_conversations(id) ON DELETE CASCADE,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			metadata        JSONB NOT NULL DEFAULT '{}',
			created_at      TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ai_messages_conversation_idx
			ON ai_messages (conversation_id, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("conversation schema setup failed: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ai_conversations (id, user_id, title, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM ai_conversations WHERE id = $1`, id).
		Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (r *PostgresRepository) TouchConversation(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE ai_conversations SET updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListConversations(ctx context.Context, userID string, limit, offset int) ([]model.Conversation, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM ai_conversations WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM ai_conversations WHERE user_id = $1
		 ORDER BY updated_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []model.Conversation
	for rows.Next() {
		var conv model.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	return convs, total, rows.Err()
}

func (r *PostgresRepository) AddMessage(ctx context.Context, msg *model.Message) error {
	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal message metadata: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO ai_messages (id, conversation_id, role, content, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, metadataJSON, msg.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23503: foreign_key_violation, the conversation is gone.
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return model.ErrNotFound
		}
		return fmt.Errorf("failed to add message: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM ai_messages WHERE conversation_id = $1`, conversationID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, conversation_id, role, content, metadata, created_at
		 FROM ai_messages WHERE conversation_id = $1
		 ORDER BY created_at LIMIT NULLIF($2, 0) OFFSET $3`,
		conversationID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	return msgs, total, err
}

func (r *PostgresRepository) SearchMessages(ctx context.Context, conversationID, query string, limit int) ([]model.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, conversation_id, role, content, metadata, created_at
		 FROM ai_messages
		 WHERE conversation_id = $1 AND content ILIKE '%' || $2 || '%'
		 ORDER BY created_at LIMIT $3`,
		conversationID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]model.Message, error) {
	var msgs []model.Message
	for rows.Next() {
		var msg model.Message
		var metadataJSON []byte
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &metadataJSON, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &msg.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal message metadata: %w", err)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

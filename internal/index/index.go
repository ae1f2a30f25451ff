package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"

	"github.com/vstock/store-assistant/pkg/logger"
)

// DB is the subset of pgxpool.Pool the index needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Ping(ctx context.Context) error
}

// Index is the embedding index over the ai_documents table. It is a derived
// projection of the store's source-of-truth records, never authoritative.
// Safe for concurrent use.
type Index struct {
	db       DB
	embedder Embedder
	logger   *logger.Logger
}

// NewPool opens a pgx pool with pgvector types registered on every
// connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	return pool, nil
}

// New creates an Index.
func New(db DB, embedder Embedder, log *logger.Logger) *Index {
	return &Index{
		db:       db,
		embedder: embedder,
		logger:   log,
	}
}

// EnsureSchema creates the pgvector extension and the documents table.
// dimension must match the embedding model's output size.
func (i *Index) EnsureSchema(ctx context.Context, dimension int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS ai_documents (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			embedding  vector(%d) NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS ai_documents_entity_type_idx
			ON ai_documents ((metadata->>'entity_type'))`,
	}
	for _, stmt := range stmts {
		if _, err := i.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema setup failed: %w", err)
		}
	}
	return nil
}

const upsertSQL = `
	INSERT INTO ai_documents (id, content, embedding, metadata, updated_at)
	VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (id) DO UPDATE SET
		content = EXCLUDED.content,
		embedding = EXCLUDED.embedding,
		metadata = EXCLUDED.metadata,
		updated_at = now()`

// UpsertBatch embeds the documents and writes them in a single batched round
// trip. Re-upserting an unchanged document replaces it in place, so repeated
// syncs never grow the index.
func (i *Index) UpsertBatch(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for n, doc := range docs {
		texts[n] = doc.Content
	}

	vectors, err := i.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed batch: %w", err)
	}

	batch := &pgx.Batch{}
	for n, doc := range docs {
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %q: %w", doc.ID, err)
		}
		batch.Queue(upsertSQL, doc.ID, doc.Content, pgvector.NewVector(vectors[n]), metadataJSON)
	}

	results := i.db.SendBatch(ctx, batch)
	defer results.Close()

	for range docs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert batch: %w", err)
		}
	}

	i.logger.Debug("upserted document batch", zap.Int("count", len(docs)))
	return nil
}

// Search returns the documents most similar to query, ordered by cosine
// similarity. Filters narrow by entity type, entity ID and document
// timestamp. A
// per-call timeout keeps slow vector scans from holding up queries.
func (i *Index) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	vectors, err := i.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	sql := `SELECT id, content, metadata, updated_at, 1 - (embedding <=> $1) AS similarity
		FROM ai_documents`
	args := []any{pgvector.NewVector(vectors[0])}

	where := ""
	if len(cfg.entityTypes) > 0 {
		args = append(args, cfg.entityTypes)
		where += fmt.Sprintf(" WHERE metadata->>'entity_type' = ANY($%d)", len(args))
	}
	if len(cfg.entityIDs) > 0 {
		args = append(args, cfg.entityIDs)
		where += clauseKeyword(where) + fmt.Sprintf(" metadata->>'entity_id' = ANY($%d)", len(args))
	}
	if cfg.dateFrom != "" {
		args = append(args, cfg.dateFrom)
		where += clauseKeyword(where) + fmt.Sprintf(" metadata->>'timestamp' >= $%d", len(args))
	}
	if cfg.dateTo != "" {
		args = append(args, cfg.dateTo)
		where += clauseKeyword(where) + fmt.Sprintf(" metadata->>'timestamp' <= $%d", len(args))
	}

	args = append(args, cfg.limit)
	sql += where + fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := i.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var metadataJSON []byte
		if err := rows.Scan(&r.Document.ID, &r.Document.Content, &metadataJSON, &r.UpdatedAt, &r.Similarity); err != nil {
			return nil, fmt.Errorf("row scan failed: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &r.Document.Metadata); err != nil {
			i.logger.Warn("skipping document with bad metadata",
				zap.String("id", r.Document.ID), zap.Error(err))
			continue
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	return results, nil
}

// Count returns the number of indexed documents.
func (i *Index) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := i.db.QueryRow(ctx, `SELECT count(*) FROM ai_documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return count, nil
}

// DeleteByEntityType removes all documents for one entity type. Used when a
// source is re-projected from scratch.
func (i *Index) DeleteByEntityType(ctx context.Context, entityType string) (int64, error) {
	tag, err := i.db.Exec(ctx, `DELETE FROM ai_documents WHERE metadata->>'entity_type' = $1`, entityType)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping reports whether the backing database is reachable.
func (i *Index) Ping(ctx context.Context) error {
	return i.db.Ping(ctx)
}

func clauseKeyword(where string) string {
	if where == "" {
		return " WHERE"
	}
	return " AND"
}

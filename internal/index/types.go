// Package index stores embedded documents in PostgreSQL with pgvector and
// serves similarity search for the agent's retrieval path.
package index

import "time"

// Metadata keys every synced document carries.
const (
	MetaEntityType = "entity_type"
	MetaEntityID   = "entity_id"
	MetaTimestamp  = "timestamp"
)

// Document is one embeddable unit. The ID is stable per source entity
// ("{type}_{entityID}") so re-syncing replaces prior versions in place.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// Result is a single similarity search hit.
type Result struct {
	Document   Document
	Similarity float32
	UpdatedAt  time.Time
}

// SearchOption configures search behavior.
type SearchOption func(*searchConfig)

type searchConfig struct {
	limit       int
	entityTypes []string
	entityIDs   []string
	dateFrom    string
	dateTo      string
	timeout     time.Duration
}

// WithLimit sets the maximum number of results. Default is 5.
func WithLimit(n int) SearchOption {
	return func(c *searchConfig) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithEntityTypes restricts results to the given entity types.
func WithEntityTypes(types ...string) SearchOption {
	return func(c *searchConfig) {
		c.entityTypes = append(c.entityTypes, types...)
	}
}

// WithEntityIDs restricts results to the given source entity IDs.
func WithEntityIDs(ids ...string) SearchOption {
	return func(c *searchConfig) {
		c.entityIDs = append(c.entityIDs, ids...)
	}
}

// WithDateRange restricts results by document timestamp. Either bound may be
// empty. Bounds are compared lexically against the RFC 3339 timestamp stored
// in metadata; a bare-date upper bound is widened to the end of that day so
// the whole bounding day is included.
func WithDateRange(from, to string) SearchOption {
	return func(c *searchConfig) {
		c.dateFrom = from
		c.dateTo = endOfDay(to)
	}
}

// endOfDay extends a bare "2006-01-02" date to the last second of that day.
// Full timestamps pass through untouched.
func endOfDay(to string) string {
	if len(to) == len("2006-01-02") {
		return to + "T23:59:59Z"
	}
	return to
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		limit:   5,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Package sync projects domain records into the embedding index and keeps
// them fresh on a schedule.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/vstock/store-assistant/internal/index"
	"github.com/vstock/store-assistant/internal/source"
	"github.com/vstock/store-assistant/pkg/logger"
	"github.com/vstock/store-assistant/pkg/metrics"
)

// DefaultBatchSize is the number of documents submitted to the index per
// round trip.
const DefaultBatchSize = 50

// Retry defaults for a pass whose record fetch fails.
const (
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 2 * time.Second
)

// DocumentWriter is the slice of the embedding index the syncer writes to.
type DocumentWriter interface {
	UpsertBatch(ctx context.Context, docs []index.Document) error
	DeleteByEntityType(ctx context.Context, entityType string) (int64, error)
}

// Notifier receives sync completion events. May be nil.
type Notifier interface {
	SyncCompleted(ctx context.Context, entityType string, upserted int) error
}

// Report summarizes one sync pass over a single entity type. Deleted is only
// set by Reindex.
type Report struct {
	EntityType    string `json:"entityType"`
	Upserted      int    `json:"upserted"`
	Batches       int    `json:"batches"`
	FailedBatches int    `json:"failedBatches"`
	Deleted       int64  `json:"deleted,omitempty"`
}

// Syncer loads rendered domain records into the embedding index. Failures
// are never fatal to the host process; a failed pass is retried on the next
// scheduled cycle.
type Syncer struct {
	sources      map[string]source.Source
	order        []string
	writer       DocumentWriter
	tracker      *metrics.Tracker
	notifier     Notifier
	logger       *logger.Logger
	batchSize    int
	maxAttempts  int
	retryBackoff time.Duration
}

// NewSyncer creates a Syncer over the given sources. batchSize, maxAttempts
// and retryBackoff fall back to their defaults when non-positive.
func NewSyncer(sources []source.Source, writer DocumentWriter, tracker *metrics.Tracker, notifier Notifier, log *logger.Logger, batchSize, maxAttempts int, retryBackoff time.Duration) *Syncer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if retryBackoff <= 0 {
		retryBackoff = DefaultRetryBackoff
	}

	byType := make(map[string]source.Source, len(sources))
	order := make([]string, 0, len(sources))
	for _, s := range sources {
		byType[s.Type()] = s
		order = append(order, s.Type())
	}

	return &Syncer{
		sources:      byType,
		order:        order,
		writer:       writer,
		tracker:      tracker,
		notifier:     notifier,
		logger:       log,
		batchSize:    batchSize,
		maxAttempts:  maxAttempts,
		retryBackoff: retryBackoff,
	}
}

// EntityTypes returns the known entity types in sync order.
func (s *Syncer) EntityTypes() []string {
	return append([]string(nil), s.order...)
}

// SyncEntityType projects all live records of one entity type into the index.
// Document IDs are stable ("{type}_{entityID}"), so a pass replaces prior
// versions rather than growing the index. A batch that the index rejects is
// logged and skipped; the pass continues with the remaining batches.
func (s *Syncer) SyncEntityType(ctx context.Context, entityType string) (Report, error) {
	report := Report{EntityType: entityType}

	src, ok := s.sources[entityType]
	if !ok {
		return report, fmt.Errorf("unknown entity type %q", entityType)
	}

	start := time.Now()
	records, err := src.FetchAll(ctx)
	if err != nil {
		metrics.SyncErrorsTotal.WithLabelValues(entityType).Inc()
		return report, fmt.Errorf("failed to fetch %s: %w", entityType, err)
	}
	if len(records) == 0 {
		return report, nil
	}

	docs := make([]index.Document, len(records))
	for n, rec := range records {
		docs[n] = toDocument(entityType, rec)
	}

	for offset := 0; offset < len(docs); offset += s.batchSize {
		end := offset + s.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[offset:end]
		report.Batches++

		if err := s.writer.UpsertBatch(ctx, batch); err != nil {
			report.FailedBatches++
			metrics.SyncErrorsTotal.WithLabelValues(entityType).Inc()
			s.logger.Warn("sync batch failed, skipping",
				zap.String("entity_type", entityType),
				zap.Int("batch_start", offset),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			continue
		}
		report.Upserted += len(batch)
	}

	elapsed := time.Since(start)
	metrics.RecordSync(entityType, elapsed.Seconds(), report.Upserted)
	if s.tracker != nil {
		s.tracker.RecordSync(entityType, elapsed)
	}

	s.logger.Info("entity type synced",
		zap.String("entity_type", entityType),
		zap.Int("upserted", report.Upserted),
		zap.Int("failed_batches", report.FailedBatches),
		zap.Duration("elapsed", elapsed))

	return report, nil
}

// SyncAll runs a retried sync for every known entity type. One type's
// failure never blocks the others.
func (s *Syncer) SyncAll(ctx context.Context) {
	for _, entityType := range s.order {
		report, err := s.SyncWithRetry(ctx, entityType)
		if err != nil {
			s.logger.Error("sync failed for entity type",
				zap.String("entity_type", entityType), zap.Error(err))
			continue
		}
		if s.notifier != nil {
			if err := s.notifier.SyncCompleted(ctx, entityType, report.Upserted); err != nil {
				s.logger.Warn("sync event publish failed",
					zap.String("entity_type", entityType), zap.Error(err))
			}
		}
	}
}

// SyncWithRetry wraps SyncEntityType with bounded exponential backoff.
// Partial batch failures count as success; only a pass that could not fetch
// its records at all is retried. Exhausting all attempts surfaces the final
// error without crashing anything.
func (s *Syncer) SyncWithRetry(ctx context.Context, entityType string) (Report, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryBackoff

	var report Report
	operation := func() error {
		var err error
		report, err = s.SyncEntityType(ctx, entityType)
		return err
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.maxAttempts-1)), ctx))
	if err != nil {
		s.logger.Error("sync retries exhausted",
			zap.String("entity_type", entityType),
			zap.Int("max_attempts", s.maxAttempts),
			zap.Error(err))
		return report, fmt.Errorf("sync %s failed after %d attempts: %w", entityType, s.maxAttempts, err)
	}
	return report, nil
}

// Reindex rebuilds one entity type from scratch: all of its documents are
// deleted and the type is re-projected with retry. Meant for recovery after
// a schema or rendering change; scheduled passes never delete.
func (s *Syncer) Reindex(ctx context.Context, entityType string) (Report, error) {
	if _, ok := s.sources[entityType]; !ok {
		return Report{EntityType: entityType}, fmt.Errorf("unknown entity type %q", entityType)
	}

	deleted, err := s.writer.DeleteByEntityType(ctx, entityType)
	if err != nil {
		return Report{EntityType: entityType}, fmt.Errorf("failed to clear %s documents: %w", entityType, err)
	}
	s.logger.Info("cleared documents for reindex",
		zap.String("entity_type", entityType), zap.Int64("deleted", deleted))

	report, err := s.SyncWithRetry(ctx, entityType)
	report.Deleted = deleted
	return report, err
}

func toDocument(entityType string, rec source.Record) index.Document {
	metadata := map[string]any{
		index.MetaEntityType: entityType,
		index.MetaEntityID:   rec.EntityID,
		index.MetaTimestamp:  rec.Updated.UTC().Format(time.RFC3339),
	}
	for k, v := range rec.Metadata {
		metadata[k] = v
	}
	return index.Document{
		ID:       fmt.Sprintf("%s_%s", entityType, rec.EntityID),
		Content:  rec.Text,
		Metadata: metadata,
	}
}

package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vstock/store-assistant/internal/index"
	"github.com/vstock/store-assistant/internal/source"
	"github.com/vstock/store-assistant/pkg/logger"
	"github.com/vstock/store-assistant/pkg/metrics"
)

type fakeSource struct {
	entityType string
	records    []source.Record
	err        error
	fetchCalls int
	failUntil  int
}

func (s *fakeSource) Type() string { return s.entityType }

func (s *fakeSource) FetchAll(ctx context.Context) ([]source.Record, error) {
	s.fetchCalls++
	if s.fetchCalls <= s.failUntil {
		return nil, fmt.Errorf("transient failure %d", s.fetchCalls)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

type fakeWriter struct {
	batches     [][]index.Document
	failBatches map[int]bool
	deleted     []string
	deleteErr   error
}

func (w *fakeWriter) DeleteByEntityType(ctx context.Context, entityType string) (int64, error) {
	if w.deleteErr != nil {
		return 0, w.deleteErr
	}
	w.deleted = append(w.deleted, entityType)
	return 4, nil
}

func (w *fakeWriter) UpsertBatch(ctx context.Context, docs []index.Document) error {
	n := len(w.batches)
	w.batches = append(w.batches, docs)
	if w.failBatches[n] {
		return errors.New("index rejected batch")
	}
	return nil
}

func (w *fakeWriter) upserted() []index.Document {
	var all []index.Document
	for n, batch := range w.batches {
		if w.failBatches[n] {
			continue
		}
		all = append(all, batch...)
	}
	return all
}

type fakeNotifier struct {
	completed map[string]int
}

func (n *fakeNotifier) SyncCompleted(ctx context.Context, entityType string, upserted int) error {
	if n.completed == nil {
		n.completed = make(map[string]int)
	}
	n.completed[entityType] = upserted
	return nil
}

func makeRecords(n int) []source.Record {
	records := make([]source.Record, n)
	for i := range records {
		records[i] = source.Record{
			EntityID: fmt.Sprintf("%d", i+1),
			Text:     fmt.Sprintf("record %d", i+1),
			Updated:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		}
	}
	return records
}

func TestSyncEntityType_StableDocumentIDs(t *testing.T) {
	src := &fakeSource{
		entityType: source.TypeProducts,
		records: []source.Record{{
			EntityID: "7",
			Text:     "Product: Blue Pen",
			Updated:  time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC),
			Metadata: map[string]any{"name": "Blue Pen"},
		}},
	}
	writer := &fakeWriter{}
	syncer := NewSyncer([]source.Source{src}, writer, metrics.NewTracker(), nil, logger.NewNop(), 0, 0, 0)

	report, err := syncer.SyncEntityType(context.Background(), source.TypeProducts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Upserted)

	docs := writer.upserted()
	require.Len(t, docs, 1)
	assert.Equal(t, "products_7", docs[0].ID)
	assert.Equal(t, source.TypeProducts, docs[0].Metadata[index.MetaEntityType])
	assert.Equal(t, "7", docs[0].Metadata[index.MetaEntityID])
	assert.Equal(t, "2024-06-01T12:30:00Z", docs[0].Metadata[index.MetaTimestamp])
	assert.Equal(t, "Blue Pen", docs[0].Metadata["name"])
}

func TestSyncEntityType_Batching(t *testing.T) {
	src := &fakeSource{entityType: source.TypeClients, records: makeRecords(120)}
	writer := &fakeWriter{}
	syncer := NewSyncer([]source.Source{src}, writer, nil, nil, logger.NewNop(), 50, 0, 0)

	report, err := syncer.SyncEntityType(context.Background(), source.TypeClients)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Batches)
	assert.Equal(t, 120, report.Upserted)
	require.Len(t, writer.batches, 3)
	assert.Len(t, writer.batches[0], 50)
	assert.Len(t, writer.batches[2], 20)
}

func TestSyncEntityType_FailedBatchIsSkipped(t *testing.T) {
	src := &fakeSource{entityType: source.TypeClients, records: makeRecords(120)}
	writer := &fakeWriter{failBatches: map[int]bool{1: true}}
	syncer := NewSyncer([]source.Source{src}, writer, nil, nil, logger.NewNop(), 50, 0, 0)

	report, err := syncer.SyncEntityType(context.Background(), source.TypeClients)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Batches)
	assert.Equal(t, 1, report.FailedBatches)
	assert.Equal(t, 70, report.Upserted)
}

func TestSyncEntityType_EmptySourceIsNoop(t *testing.T) {
	src := &fakeSource{entityType: source.TypeUsers}
	writer := &fakeWriter{}
	syncer := NewSyncer([]source.Source{src}, writer, nil, nil, logger.NewNop(), 0, 0, 0)

	report, err := syncer.SyncEntityType(context.Background(), source.TypeUsers)
	require.NoError(t, err)
	assert.Zero(t, report.Upserted)
	assert.Empty(t, writer.batches)
}

func TestSyncEntityType_UnknownType(t *testing.T) {
	syncer := NewSyncer(nil, &fakeWriter{}, nil, nil, logger.NewNop(), 0, 0, 0)

	_, err := syncer.SyncEntityType(context.Background(), "widgets")
	require.Error(t, err)
}

func TestSyncAll_IsolatesFailuresAndNotifies(t *testing.T) {
	broken := &fakeSource{entityType: source.TypeAccounts, err: errors.New("table locked")}
	healthy := &fakeSource{entityType: source.TypeProducts, records: makeRecords(2)}
	writer := &fakeWriter{}
	notifier := &fakeNotifier{}
	syncer := NewSyncer([]source.Source{broken, healthy}, writer, nil, notifier, logger.NewNop(), 0, 1, time.Millisecond)

	syncer.SyncAll(context.Background())

	assert.Len(t, writer.upserted(), 2)
	assert.Equal(t, map[string]int{source.TypeProducts: 2}, notifier.completed)
}

func TestSyncAll_RetriesTransientFetchFailure(t *testing.T) {
	src := &fakeSource{
		entityType: source.TypeInvoices,
		records:    makeRecords(2),
		failUntil:  2,
	}
	writer := &fakeWriter{}
	notifier := &fakeNotifier{}
	syncer := NewSyncer([]source.Source{src}, writer, nil, notifier, logger.NewNop(), 0, 3, time.Millisecond)

	syncer.SyncAll(context.Background())

	assert.Equal(t, 3, src.fetchCalls)
	assert.Len(t, writer.upserted(), 2)
	assert.Equal(t, map[string]int{source.TypeInvoices: 2}, notifier.completed)
}

func TestSyncWithRetry_RecoversFromTransientFailure(t *testing.T) {
	src := &fakeSource{
		entityType: source.TypeInvoices,
		records:    makeRecords(1),
		failUntil:  2,
	}
	writer := &fakeWriter{}
	syncer := NewSyncer([]source.Source{src}, writer, nil, nil, logger.NewNop(), 0, 3, time.Millisecond)

	report, err := syncer.SyncWithRetry(context.Background(), source.TypeInvoices)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Upserted)
	assert.Equal(t, 3, src.fetchCalls)
}

func TestSyncWithRetry_ExhaustsAttempts(t *testing.T) {
	src := &fakeSource{
		entityType: source.TypeInvoices,
		err:        errors.New("permanent failure"),
	}
	syncer := NewSyncer([]source.Source{src}, &fakeWriter{}, nil, nil, logger.NewNop(), 0, 3, time.Millisecond)

	_, err := syncer.SyncWithRetry(context.Background(), source.TypeInvoices)
	require.Error(t, err)
	assert.Equal(t, 3, src.fetchCalls)
}

func TestReindex_ClearsThenResyncs(t *testing.T) {
	src := &fakeSource{entityType: source.TypeProducts, records: makeRecords(3)}
	writer := &fakeWriter{}
	syncer := NewSyncer([]source.Source{src}, writer, nil, nil, logger.NewNop(), 0, 1, time.Millisecond)

	report, err := syncer.Reindex(context.Background(), source.TypeProducts)
	require.NoError(t, err)

	assert.Equal(t, []string{source.TypeProducts}, writer.deleted)
	assert.Equal(t, int64(4), report.Deleted)
	assert.Equal(t, 3, report.Upserted)
}

func TestReindex_UnknownType(t *testing.T) {
	writer := &fakeWriter{}
	syncer := NewSyncer(nil, writer, nil, nil, logger.NewNop(), 0, 1, time.Millisecond)

	_, err := syncer.Reindex(context.Background(), "widgets")
	require.Error(t, err)
	assert.Empty(t, writer.deleted)
}

func TestReindex_AbortsWhenDeleteFails(t *testing.T) {
	src := &fakeSource{entityType: source.TypeProducts, records: makeRecords(3)}
	writer := &fakeWriter{deleteErr: errors.New("table locked")}
	syncer := NewSyncer([]source.Source{src}, writer, nil, nil, logger.NewNop(), 0, 1, time.Millisecond)

	_, err := syncer.Reindex(context.Background(), source.TypeProducts)
	require.Error(t, err)
	assert.Zero(t, src.fetchCalls)
}

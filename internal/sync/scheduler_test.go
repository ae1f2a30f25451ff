package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vstock/store-assistant/internal/source"
	"github.com/vstock/store-assistant/pkg/logger"
)

// blockingSource holds FetchAll until released so a sync pass can be kept
// in flight during the test.
type blockingSource struct {
	entityType string
	started    chan struct{}
	release    chan struct{}

	mu         sync.Mutex
	fetchCalls int
}

func (s *blockingSource) Type() string { return s.entityType }

func (s *blockingSource) FetchAll(ctx context.Context) ([]source.Record, error) {
	s.mu.Lock()
	s.fetchCalls++
	first := s.fetchCalls == 1
	s.mu.Unlock()

	if first {
		close(s.started)
		<-s.release
	}
	return nil, nil
}

func (s *blockingSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

func TestScheduler_SkipsOverlappingPasses(t *testing.T) {
	src := &blockingSource{
		entityType: source.TypeProducts,
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	syncer := NewSyncer([]source.Source{src}, &fakeWriter{}, nil, nil, logger.NewNop(), 0, 1, time.Millisecond)
	sched := NewScheduler(syncer, time.Hour, time.Hour, logger.NewNop())

	done := make(chan struct{})
	go func() {
		sched.runGuarded(context.Background(), "first")
		close(done)
	}()

	select {
	case <-src.started:
	case <-time.After(time.Second):
		t.Fatal("first pass never started")
	}

	// A trigger firing during an in-flight pass is dropped, not queued.
	sched.runGuarded(context.Background(), "second")
	assert.Equal(t, 1, src.calls())

	close(src.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("first pass never finished")
	}

	sched.runGuarded(context.Background(), "third")
	assert.Equal(t, 2, src.calls())
}

func TestScheduler_Lifecycle(t *testing.T) {
	src := &fakeSource{entityType: source.TypeUsers}
	syncer := NewSyncer([]source.Source{src}, &fakeWriter{}, nil, nil, logger.NewNop(), 0, 1, time.Millisecond)
	sched := NewScheduler(syncer, time.Hour, time.Hour, logger.NewNop())

	require.Equal(t, StateUninitialized, sched.State())

	sched.Start(context.Background())
	assert.Equal(t, StateRunning, sched.State())

	// Second Start is a no-op.
	sched.Start(context.Background())
	assert.Equal(t, StateRunning, sched.State())

	sched.Stop()
	assert.Equal(t, StateStopped, sched.State())

	// Stop is idempotent.
	sched.Stop()
	assert.Equal(t, StateStopped, sched.State())
}

func TestScheduler_StartRunsInitialPass(t *testing.T) {
	src := &fakeSource{entityType: source.TypeUsers, records: makeRecords(1)}
	writer := &fakeWriter{}
	syncer := NewSyncer([]source.Source{src}, writer, nil, nil, logger.NewNop(), 0, 1, time.Millisecond)
	sched := NewScheduler(syncer, time.Hour, time.Hour, logger.NewNop())

	sched.Start(context.Background())
	sched.Stop()

	assert.Equal(t, 1, src.fetchCalls)
	assert.Len(t, writer.upserted(), 1)
}

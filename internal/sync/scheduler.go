package sync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vstock/store-assistant/pkg/logger"
)

// Scheduler states.
const (
	StateUninitialized int32 = iota
	StateRunning
	StateStopped
)

// Scheduler drives the syncer on two cadences: a main interval for full
// re-projection and a short freshness tick for near-real-time updates. An
// initial best-effort pass runs at startup without blocking it.
type Scheduler struct {
	syncer   *Syncer
	interval time.Duration
	tick     time.Duration
	logger   *logger.Logger

	state   atomic.Int32
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(syncer *Syncer, interval, tick time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		tick:     tick,
		logger:   log,
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() int32 {
	return s.state.Load()
}

// Start launches the initial sync and the periodic timers. It returns
// immediately; a failing background sync is logged, never fatal.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.state.CompareAndSwap(StateUninitialized, StateRunning) {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)

	// Initial best-effort sync. Startup must not wait for it.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runGuarded(ctx, "startup")
	}()

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("sync scheduler started",
		zap.Duration("interval", s.interval),
		zap.Duration("freshness_tick", s.tick))
}

// Stop cancels the timers and waits for any in-flight pass to return.
// No further syncs are scheduled afterwards.
func (s *Scheduler) Stop() {
	if !s.state.CompareAndSwap(StateRunning, StateStopped) {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info("sync scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	interval := time.NewTicker(s.interval)
	defer interval.Stop()
	tick := time.NewTicker(s.tick)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-interval.C:
			s.runGuarded(ctx, "interval")
		case <-tick.C:
			s.runGuarded(ctx, "freshness")
		}
	}
}

// runGuarded serializes passes: if a previous pass is still running when a
// trigger fires, the trigger is skipped rather than overlapped.
func (s *Scheduler) runGuarded(ctx context.Context, trigger string) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("sync already in progress, skipping trigger",
			zap.String("trigger", trigger))
		return
	}
	defer s.running.Store(false)

	s.logger.Debug("sync pass starting", zap.String("trigger", trigger))
	s.syncer.SyncAll(ctx)
}

package metrics

import (
	"sync"
	"time"
)

// syncHistorySize bounds the per-entity duration history kept in memory.
const syncHistorySize = 20

// Tracker keeps process-wide performance counters for the agent. The counters
// reset on restart; durable time series live in Prometheus. Safe for
// concurrent use.
type Tracker struct {
	mu sync.Mutex

	queryCount    int64
	avgResponseMs float64
	cacheHits     int64
	cacheMisses   int64
	syncDurations map[string][]float64
	startedAt     time.Time
}

// Snapshot is a point-in-time copy of the tracker state.
type Snapshot struct {
	QueryCount    int64                `json:"query_count"`
	AvgResponseMs float64              `json:"avg_response_ms"`
	CacheHits     int64                `json:"cache_hits"`
	CacheMisses   int64                `json:"cache_misses"`
	SyncDurations map[string][]float64 `json:"sync_durations_ms"`
	UptimeSeconds float64              `json:"uptime_seconds"`
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		syncDurations: make(map[string][]float64),
		startedAt:     time.Now(),
	}
}

// RecordQuery folds one query latency into the running average.
func (t *Tracker) RecordQuery(elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ms := float64(elapsed.Milliseconds())
	t.queryCount++
	// Incremental mean: recomputed from current state under the lock, so
	// concurrent recorders never fold into a stale average.
	t.avgResponseMs += (ms - t.avgResponseMs) / float64(t.queryCount)
}

// RecordCacheHit increments the cache hit counter.
func (t *Tracker) RecordCacheHit() {
	t.mu.Lock()
	t.cacheHits++
	t.mu.Unlock()
	CacheLookupsTotal.WithLabelValues("hit").Inc()
}

// RecordCacheMiss increments the cache miss counter.
func (t *Tracker) RecordCacheMiss() {
	t.mu.Lock()
	t.cacheMisses++
	t.mu.Unlock()
	CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordSync appends a sync duration to the bounded per-entity history.
func (t *Tracker) RecordSync(entityType string, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	history := append(t.syncDurations[entityType], float64(elapsed.Milliseconds()))
	if len(history) > syncHistorySize {
		history = history[len(history)-syncHistorySize:]
	}
	t.syncDurations[entityType] = history
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	durations := make(map[string][]float64, len(t.syncDurations))
	for k, v := range t.syncDurations {
		durations[k] = append([]float64(nil), v...)
	}

	return Snapshot{
		QueryCount:    t.queryCount,
		AvgResponseMs: t.avgResponseMs,
		CacheHits:     t.cacheHits,
		CacheMisses:   t.cacheMisses,
		SyncDurations: durations,
		UptimeSeconds: time.Since(t.startedAt).Seconds(),
	}
}

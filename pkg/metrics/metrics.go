// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// QueryDuration tracks end-to-end agent query duration.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_query_duration_seconds",
			Help:    "Agent query duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "status"},
	)

	// QueriesTotal tracks total agent queries.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_queries_total",
			Help: "Total agent queries",
		},
		[]string{"provider", "status"},
	)

	// CacheLookupsTotal tracks query-cache lookups by outcome.
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_cache_lookups_total",
			Help: "Query cache lookups",
		},
		[]string{"result"},
	)

	// SyncDuration tracks per-entity-type sync duration.
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_sync_duration_seconds",
			Help:    "Document sync duration per entity type",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"entity_type"},
	)

	// SyncDocumentsTotal tracks documents upserted into the index.
	SyncDocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_sync_documents_total",
			Help: "Documents upserted into the embedding index",
		},
		[]string{"entity_type"},
	)

	// SyncErrorsTotal tracks sync batch and fetch failures.
	SyncErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_sync_errors_total",
			Help: "Sync failures per entity type",
		},
		[]string{"entity_type"},
	)

	// ProviderSwitchesTotal tracks runtime provider switches.
	ProviderSwitchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_provider_switches_total",
			Help: "Language model provider switches",
		},
		[]string{"provider", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordQuery records metrics for an agent query.
func RecordQuery(provider, status string, duration float64) {
	QueryDuration.WithLabelValues(provider, status).Observe(duration)
	QueriesTotal.WithLabelValues(provider, status).Inc()
}

// RecordSync records metrics for a sync pass over one entity type.
func RecordSync(entityType string, duration float64, documents int) {
	SyncDuration.WithLabelValues(entityType).Observe(duration)
	SyncDocumentsTotal.WithLabelValues(entityType).Add(float64(documents))
}

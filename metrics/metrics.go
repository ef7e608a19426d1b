// Package metrics bundles the Prometheus collectors shared by the fetch
// client, the query cache and the view pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache lookup outcomes.
const (
	CacheHit   = "hit"
	CacheStale = "stale"
	CacheMiss  = "miss"
)

// Favorite toggle outcomes.
const (
	FavoriteAdded   = "added"
	FavoriteRemoved = "removed"
)

// Metrics bundles Prometheus collectors for librosync.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	SearchesTotal   prometheus.Counter
	BookViews       prometheus.Counter
	FavoriteToggles *prometheus.CounterVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "librosync_fetch_requests_total",
			Help: "Total HTTP requests issued against the library API.",
		},
		[]string{"collection"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "librosync_fetch_duration_seconds",
			Help:    "HTTP request latency for library API requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "librosync_fetch_retries_total",
			Help: "Total number of retry attempts scheduled by the query cache.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "librosync_fetch_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "librosync_cache_lookups_total",
			Help: "Query cache lookups by outcome (hit, stale, miss).",
		},
		[]string{"result"},
	)
	searches := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "librosync_searches_total",
			Help: "Search queries of at least two characters evaluated by the book pipeline.",
		},
	)

	bookViews := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "librosync_book_views_total",
			Help: "Book detail views recorded in the reading history.",
		},
	)
	favoriteToggles := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "librosync_favorite_toggles_total",
			Help: "Favorite toggles by resulting state (added, removed).",
		},
		[]string{"state"},
	)

	registry.MustRegister(requests, requestDuration, retries, errorsTotal, cacheLookups, searches,
		bookViews, favoriteToggles)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		CacheLookups:    cacheLookups,
		SearchesTotal:   searches,
		BookViews:       bookViews,
		FavoriteToggles: favoriteToggles,
	}
}

// IncRequest increments the requests counter for a collection.
func (m *Metrics) IncRequest(collection string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(collection).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncCache records a cache lookup outcome.
func (m *Metrics) IncCache(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// IncSearch counts an evaluated search query.
func (m *Metrics) IncSearch() {
	if m == nil {
		return
	}
	m.SearchesTotal.Inc()
}

// IncBookView counts a viewed book.
func (m *Metrics) IncBookView() {
	if m == nil {
		return
	}
	m.BookViews.Inc()
}

// IncFavoriteToggle counts a favorite toggle by the state it left the book in.
func (m *Metrics) IncFavoriteToggle(on bool) {
	if m == nil {
		return
	}
	state := FavoriteRemoved
	if on {
		state = FavoriteAdded
	}
	m.FavoriteToggles.WithLabelValues(state).Inc()
}

package pipeline

import (
	"log/slog"
	"sync"

	"github.com/aluiziolira/librosync/metrics"
)

// minTrackedSearch is the shortest search text counted as a query.
const minTrackedSearch = 2

// SearchTracker counts search queries. A query is counted when it has at
// least two characters and differs from the last one counted.
type SearchTracker struct {
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu   sync.Mutex
	last string
}

// NewSearchTracker returns a tracker. m and logger may be nil.
func NewSearchTracker(m *metrics.Metrics, logger *slog.Logger) *SearchTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchTracker{metrics: m, logger: logger}
}

// Track records search with its match count and reports whether it was counted.
func (t *SearchTracker) Track(search string, matches int) bool {
	if len(search) < minTrackedSearch {
		return false
	}
	t.mu.Lock()
	if search == t.last {
		t.mu.Unlock()
		return false
	}
	t.last = search
	t.mu.Unlock()

	t.metrics.IncSearch()
	t.logger.Info("search",
		slog.String("query", search),
		slog.Int("matches", matches),
	)
	return true
}

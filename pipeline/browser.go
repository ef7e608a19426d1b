package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/librosync/debounce"
	"github.com/aluiziolira/librosync/metrics"
	"github.com/aluiziolira/librosync/models"
)

// Browser holds the criteria of an interactive book list. Search text goes
// through a debouncer; the other criteria apply at once.
type Browser struct {
	search  *debounce.Debouncer[string]
	tracker *SearchTracker
	logger  *slog.Logger

	mu       sync.Mutex
	criteria Criteria
}

// NewBrowser starts on page 1 with default criteria. m and logger may be nil.
func NewBrowser(pageSize int, delay time.Duration, m *metrics.Metrics, logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	c := DefaultCriteria()
	if pageSize > 0 {
		c.PageSize = pageSize
	}
	return &Browser{
		search:   debounce.New("", delay),
		tracker:  NewSearchTracker(m, logger),
		logger:   logger,
		criteria: c,
	}
}

// SetSearch records raw search input. It takes effect once the input settles.
func (b *Browser) SetSearch(text string) {
	b.search.Set(text)
}

// Searches delivers each settled search text.
func (b *Browser) Searches() <-chan string {
	return b.search.C()
}

// SetAvailability changes the availability filter.
func (b *Browser) SetAvailability(a Availability) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.criteria.Availability = a
}

// SetGenre changes the genre filter.
func (b *Browser) SetGenre(genre string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.criteria.Genre = genre
}

// SetSort changes the ordering.
func (b *Browser) SetSort(s Sort) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.criteria.Sort = s
}

// SetPage moves to page p.
func (b *Browser) SetPage(p int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p < 1 {
		p = 1
	}
	b.criteria.Page = p
}

// Criteria returns the criteria in effect, with the settled search text.
func (b *Browser) Criteria() Criteria {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.criteria
	c.Search = b.search.Value()
	return c
}

// View derives the current page of books. When the page no longer exists the
// browser moves back to page 1.
func (b *Browser) View(books []models.Book) Result {
	c := b.Criteria()
	res := Resolve(books, c)

	b.mu.Lock()
	if res.Reset {
		b.criteria.Page = 1
	}
	b.mu.Unlock()

	if res.Reset {
		b.logger.Debug("page out of range, showing first page",
			slog.Int("requested", c.Page),
			slog.Int("total_pages", res.TotalPages),
		)
	}
	b.tracker.Track(c.Search, res.TotalMatching)
	return res
}

// Flush applies pending search input immediately.
func (b *Browser) Flush() {
	b.search.Flush()
}

// Close stops the search debouncer.
func (b *Browser) Close() {
	b.search.Stop()
}

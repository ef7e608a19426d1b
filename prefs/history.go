package prefs

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aluiziolira/librosync/models"
	"github.com/aluiziolira/librosync/storage"
)

// History is the list of recently viewed books, most recent first, with at
// most one entry per book.
type History struct {
	store  storage.Storage
	logger *slog.Logger
	now    func() time.Time
	limit  int

	mu      sync.Mutex
	entries []models.HistoryEntry
}

// NewHistory loads the reading history from store. Missing or malformed data
// yields an empty history; stored entries past the limit are dropped.
func NewHistory(store storage.Storage, opts ...Option) *History {
	o := buildOptions(opts)
	h := &History{
		store:  store,
		logger: o.logger,
		now:    o.now,
		limit:  o.limit,
	}

	var entries []models.HistoryEntry
	if load(store, KeyHistory, &entries, o.logger) {
		entries = slices.DeleteFunc(entries, func(e models.HistoryEntry) bool { return e.BookID == "" })
		if len(entries) > h.limit {
			entries = entries[:h.limit]
		}
		h.entries = entries
	}
	return h
}

// Add records a view of b: any existing entry for the book is removed and a
// new one stamped with the current time is put in front. A nil book or one
// without an ID is ignored.
func (h *History) Add(b *models.Book) error {
	if b == nil || b.ID == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	entry := models.NewHistoryEntry(*b, h.now())
	rest := slices.DeleteFunc(slices.Clone(h.entries), func(e models.HistoryEntry) bool {
		return e.BookID == b.ID
	})
	entries := append([]models.HistoryEntry{entry}, rest...)
	if len(entries) > h.limit {
		entries = entries[:h.limit]
	}
	h.entries = entries
	return h.persistLocked()
}

// Remove deletes the entry for id.
func (h *History) Remove(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := slices.IndexFunc(h.entries, func(e models.HistoryEntry) bool { return e.BookID == id })
	if i < 0 {
		return nil
	}
	h.entries = slices.Delete(slices.Clone(h.entries), i, i+1)
	return h.persistLocked()
}

// Clear removes every entry.
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	return h.persistLocked()
}

// List returns the entries, most recent first.
func (h *History) List() []models.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.entries)
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *History) persistLocked() error {
	entries := h.entries
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	return save(h.store, KeyHistory, entries, h.logger)
}

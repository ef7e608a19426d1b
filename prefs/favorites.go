package prefs

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/aluiziolira/librosync/storage"
)

// Favorites is the set of favorite book IDs. It is persisted as a JSON array
// in insertion order.
type Favorites struct {
	store  storage.Storage
	logger *slog.Logger

	mu  sync.Mutex
	ids []string
}

// NewFavorites loads the favorite set from store. Missing or malformed data
// yields an empty set.
func NewFavorites(store storage.Storage, opts ...Option) *Favorites {
	o := buildOptions(opts)
	f := &Favorites{store: store, logger: o.logger}

	var ids []string
	if load(store, KeyFavorites, &ids, o.logger) {
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, ok := seen[id]; ok || id == "" {
				continue
			}
			seen[id] = struct{}{}
			f.ids = append(f.ids, id)
		}
	}
	return f
}

// IsFavorite reports whether id is in the set.
func (f *Favorites) IsFavorite(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.ids, id)
}

// List returns the favorite IDs in the order they were added.
func (f *Favorites) List() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.ids)
}

// Len returns the number of favorites.
func (f *Favorites) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}

// Add inserts id. Adding a favorite that is already present is a no-op.
func (f *Favorites) Add(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "" || slices.Contains(f.ids, id) {
		return nil
	}
	f.ids = append(f.ids, id)
	return f.persistLocked()
}

// Remove deletes id from the set.
func (f *Favorites) Remove(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := slices.Index(f.ids, id)
	if i < 0 {
		return nil
	}
	f.ids = slices.Delete(f.ids, i, i+1)
	return f.persistLocked()
}

// Toggle adds id when absent and removes it when present. It reports whether
// id is a favorite afterwards.
func (f *Favorites) Toggle(id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "" {
		return false, nil
	}
	if i := slices.Index(f.ids, id); i >= 0 {
		f.ids = slices.Delete(f.ids, i, i+1)
		return false, f.persistLocked()
	}
	f.ids = append(f.ids, id)
	return true, f.persistLocked()
}

// Clear empties the set.
func (f *Favorites) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = nil
	return f.persistLocked()
}

func (f *Favorites) persistLocked() error {
	ids := f.ids
	if ids == nil {
		ids = []string{}
	}
	return save(f.store, KeyFavorites, ids, f.logger)
}

// Package prefs implements the favorites, reading history and language stores.
// Each store owns one storage key, loads it once at construction and writes it
// back synchronously on every mutation.
package prefs

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aluiziolira/librosync/storage"
	jsoniter "github.com/json-iterator/go"
)

// KeyPrefix starts every key written by the preference stores.
const KeyPrefix = "librosync_"

// Storage keys.
const (
	KeyFavorites = "librosync_favorites"
	KeyHistory   = "librosync_reading_history"
	KeyLanguage  = "librosync_language"
)

// DefaultHistoryLimit caps the reading history.
const DefaultHistoryLimit = 50

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type options struct {
	logger *slog.Logger
	now    func() time.Time
	limit  int
}

// Option customizes a store.
type Option func(*options)

// WithLogger sets the logger used for load and persist failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the time source for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLimit sets the maximum number of history entries.
func WithLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.limit = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),
		now:    time.Now,
		limit:  DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// load decodes key into dst. A missing key leaves dst untouched; unreadable or
// malformed data is logged and reported as false so callers fall back to
// their empty default.
func load(store storage.Storage, key string, dst any, logger *slog.Logger) bool {
	raw, ok, err := store.Get(key)
	if err != nil {
		logger.Warn("read preferences", slog.String("key", key), slog.Any("error", err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		logger.Warn("malformed preferences, using defaults", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

func save(store storage.Storage, key string, v any, logger *slog.Logger) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := store.Set(key, string(raw)); err != nil {
		logger.Error("persist preferences", slog.String("key", key), slog.Any("error", err))
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

// Reset deletes every key under KeyPrefix from store and returns the deleted
// keys. Other keys are left in place. Stores loaded before the reset keep
// their in-memory state.
func Reset(store storage.Store) ([]string, error) {
	keys, err := store.Keys()
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	var removed []string
	for _, key := range keys {
		if !strings.HasPrefix(key, KeyPrefix) {
			continue
		}
		if err := store.Delete(key); err != nil {
			return removed, fmt.Errorf("delete %s: %w", key, err)
		}
		removed = append(removed, key)
	}
	return removed, nil
}

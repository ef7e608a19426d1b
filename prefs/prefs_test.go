package prefs

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aluiziolira/librosync/models"
	"github.com/aluiziolira/librosync/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStorage struct {
	*storage.Memory
}

func (failingStorage) Set(string, string) error {
	return errors.New("quota exceeded")
}

type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func TestFavoritesToggleIsIdempotentInPairs(t *testing.T) {
	store := storage.NewMemory()
	favs := NewFavorites(store)

	for _, id := range []string{"1", "2"} {
		before := favs.IsFavorite(id)
		_, err := favs.Toggle(id)
		require.NoError(t, err)
		_, err = favs.Toggle(id)
		require.NoError(t, err)
		assert.Equal(t, before, favs.IsFavorite(id))
	}

	on, err := favs.Toggle("3")
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, favs.IsFavorite("3"))

	raw, ok, err := store.Get(KeyFavorites)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["3"]`, raw)
}

func TestFavoritesPersistAndReload(t *testing.T) {
	store := storage.NewMemory()
	favs := NewFavorites(store)
	require.NoError(t, favs.Add("a"))
	require.NoError(t, favs.Add("b"))
	require.NoError(t, favs.Add("a"))
	require.NoError(t, favs.Remove("missing"))

	reloaded := NewFavorites(store)
	assert.Equal(t, []string{"a", "b"}, reloaded.List())

	require.NoError(t, reloaded.Clear())
	assert.Equal(t, 0, NewFavorites(store).Len())
	raw, _, _ := store.Get(KeyFavorites)
	assert.Equal(t, "[]", raw)
}

func TestFavoritesMalformedDataIsEmpty(t *testing.T) {
	for _, raw := range []string{"{not json", `{"a":1}`, `"string"`, `null`} {
		store := storage.NewMemory()
		require.NoError(t, store.Set(KeyFavorites, raw))

		favs := NewFavorites(store)
		assert.Empty(t, favs.List(), "stored %q", raw)
		assert.False(t, favs.IsFavorite("a"))
	}
}

func TestFavoritesWriteFailureIsReported(t *testing.T) {
	favs := NewFavorites(failingStorage{storage.NewMemory()})
	on, err := favs.Toggle("1")
	assert.Error(t, err)
	assert.True(t, on)
	assert.True(t, favs.IsFavorite("1"))
}

func TestHistoryAddMovesToFront(t *testing.T) {
	clock := &stepClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := storage.NewMemory()
	h := NewHistory(store, WithClock(clock.Now))

	dune := &models.Book{ID: "1", Title: "Dune", Author: "Frank Herbert"}
	emma := &models.Book{ID: "2", Title: "Emma", Author: "Jane Austen"}
	require.NoError(t, h.Add(dune))
	require.NoError(t, h.Add(emma))
	first := h.List()[1].ViewedAt
	require.NoError(t, h.Add(dune))

	entries := h.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0].BookID)
	assert.Equal(t, "2", entries[1].BookID)
	assert.True(t, entries[0].ViewedAt.After(first))

	reloaded := NewHistory(store)
	assert.Equal(t, entries, reloaded.List())
}

func TestHistoryIgnoresMissingBook(t *testing.T) {
	store := storage.NewMemory()
	h := NewHistory(store)
	require.NoError(t, h.Add(nil))
	require.NoError(t, h.Add(&models.Book{Title: "No id"}))
	assert.Equal(t, 0, h.Len())

	_, ok, _ := store.Get(KeyHistory)
	assert.False(t, ok, "no-op adds must not write")
}

func TestHistoryCap(t *testing.T) {
	h := NewHistory(storage.NewMemory())
	for i := 0; i < 120; i++ {
		require.NoError(t, h.Add(&models.Book{ID: fmt.Sprint(i), Title: fmt.Sprint("Book ", i)}))
		assert.LessOrEqual(t, h.Len(), DefaultHistoryLimit)
	}
	entries := h.List()
	assert.Len(t, entries, DefaultHistoryLimit)
	assert.Equal(t, "119", entries[0].BookID)
	assert.Equal(t, "70", entries[len(entries)-1].BookID)
}

func TestHistoryCustomLimit(t *testing.T) {
	h := NewHistory(storage.NewMemory(), WithLimit(3))
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Add(&models.Book{ID: fmt.Sprint(i)}))
	}
	assert.Equal(t, 3, h.Len())
}

func TestHistoryRemoveAndClear(t *testing.T) {
	store := storage.NewMemory()
	h := NewHistory(store)
	require.NoError(t, h.Add(&models.Book{ID: "1"}))
	require.NoError(t, h.Add(&models.Book{ID: "2"}))

	require.NoError(t, h.Remove("1"))
	require.Len(t, h.List(), 1)
	assert.Equal(t, "2", h.List()[0].BookID)

	require.NoError(t, h.Clear())
	assert.Empty(t, NewHistory(store).List())
}

func TestHistoryMalformedDataIsEmpty(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.Set(KeyHistory, `[{"bookId":`))
	assert.Empty(t, NewHistory(store).List())
}

func TestHistoryWireFormat(t *testing.T) {
	store := storage.NewMemory()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	h := NewHistory(store, WithClock(func() time.Time { return now }))
	require.NoError(t, h.Add(&models.Book{ID: "1", Title: "Dune", Author: "Frank Herbert", Picture: "https://img/1.jpg"}))

	raw, _, err := store.Get(KeyHistory)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"bookId":"1","title":"Dune","author":"Frank Herbert","picture":"https://img/1.jpg","viewedAt":"2024-03-01T09:00:00Z"}]`, raw)
}

func TestLanguage(t *testing.T) {
	store := storage.NewMemory()
	l := NewLanguage(store)
	assert.Equal(t, DefaultLanguage, l.Get())

	require.NoError(t, l.Set("TL"))
	assert.Equal(t, "tl", NewLanguage(store).Get())

	assert.ErrorIs(t, l.Set("fr"), ErrUnsupportedLanguage)
	assert.Equal(t, "tl", l.Get())

	require.NoError(t, store.Set(KeyLanguage, "xx"))
	assert.Equal(t, DefaultLanguage, NewLanguage(store).Get())
}

func TestResetDeletesOnlyPreferenceKeys(t *testing.T) {
	store := storage.NewMemory()
	_, err := NewFavorites(store).Toggle("1")
	require.NoError(t, err)
	require.NoError(t, NewLanguage(store).Set("tl"))
	require.NoError(t, store.Set("other_app", "keep"))

	removed, err := Reset(store)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{KeyFavorites, KeyLanguage}, removed)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"other_app"}, keys)
	assert.Zero(t, NewFavorites(store).Len())

	removed, err = Reset(store)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

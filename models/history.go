package models

import "time"

// HistoryEntry records a single book-detail view.
type HistoryEntry struct {
	BookID   string    `json:"bookId" yaml:"book_id"`
	Title    string    `json:"title" yaml:"title"`
	Author   string    `json:"author" yaml:"author"`
	Picture  string    `json:"picture" yaml:"picture"`
	ViewedAt time.Time `json:"viewedAt" yaml:"viewed_at"`
}

// NewHistoryEntry snapshots the displayed fields of b at viewedAt.
func NewHistoryEntry(b Book, viewedAt time.Time) HistoryEntry {
	return HistoryEntry{
		BookID:   b.ID,
		Title:    b.Title,
		Author:   b.Author,
		Picture:  b.Picture,
		ViewedAt: viewedAt.UTC(),
	}
}

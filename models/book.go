// Package models defines the records exchanged with the library API and the
// entries kept in local storage.
package models

// Book is a catalog record as served by GET /api/books.
type Book struct {
	ID             string   `json:"_id" yaml:"id"`
	Title          string   `json:"title" yaml:"title"`
	Author         string   `json:"author" yaml:"author"`
	Picture        string   `json:"picture" yaml:"picture"`
	AvailableCount int      `json:"availableCount" yaml:"available_count"`
	Genre          []string `json:"genre" yaml:"genre"`
	Category       []string `json:"category" yaml:"category"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	ISBN           string   `json:"isbn,omitempty" yaml:"isbn,omitempty"`
	Publisher      string   `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	PublishedDate  string   `json:"publishedDate,omitempty" yaml:"published_date,omitempty"`
	Pages          int      `json:"pages,omitempty" yaml:"pages,omitempty"`
}

// Available reports whether at least one copy can be borrowed.
func (b Book) Available() bool {
	return b.AvailableCount > 0
}

// HasGenre reports whether genre is one of the book's genres (exact match).
func (b Book) HasGenre(genre string) bool {
	for _, g := range b.Genre {
		if g == genre {
			return true
		}
	}
	return false
}

// HasCategory reports whether category is one of the book's categories.
func (b Book) HasCategory(category string) bool {
	for _, c := range b.Category {
		if c == category {
			return true
		}
	}
	return false
}

// Announcement is a news item as served by GET /api/announcements.
type Announcement struct {
	ID        string `json:"id" yaml:"id"`
	LegacyID  string `json:"_id,omitempty" yaml:"-"` // some backends send _id only
	Title     string `json:"title" yaml:"title"`
	Content   string `json:"content" yaml:"content"`
	CreatedAt string `json:"createdAt" yaml:"created_at"`
}

package pipeline

import (
	"strings"

	"github.com/aluiziolira/librosync/models"
)

// Genres lists the distinct non-blank genres in first-seen order.
func Genres(books []models.Book) []string {
	return distinct(books, func(b models.Book) []string { return b.Genre })
}

// Categories lists the distinct non-blank categories in first-seen order.
func Categories(books []models.Book) []string {
	return distinct(books, func(b models.Book) []string { return b.Category })
}

func distinct(books []models.Book, tags func(models.Book) []string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, b := range books {
		for _, tag := range tags(b) {
			if strings.TrimSpace(tag) == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// Group is the books shelved under one category.
type Group struct {
	Category string        `json:"category" yaml:"category"`
	Books    []models.Book `json:"books" yaml:"books"`
}

// GroupByCategory shelves books under each of their categories. Groups follow
// Categories order and a book with several categories appears in each.
func GroupByCategory(books []models.Book) []Group {
	categories := Categories(books)
	groups := make([]Group, 0, len(categories))
	for _, cat := range categories {
		g := Group{Category: cat}
		for _, b := range books {
			if b.HasCategory(cat) {
				g.Books = append(g.Books, b)
			}
		}
		groups = append(groups, g)
	}
	return groups
}

// FilterByIDs keeps the books whose ID is in ids, in collection order. IDs
// with no matching book are ignored.
func FilterByIDs(books []models.Book, ids []string) []models.Book {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := []models.Book{}
	for _, b := range books {
		if _, ok := want[b.ID]; ok {
			out = append(out, b)
		}
	}
	return out
}

// FindByID returns the book with id.
func FindByID(books []models.Book, id string) (models.Book, bool) {
	for _, b := range books {
		if b.ID == id {
			return b, true
		}
	}
	return models.Book{}, false
}

// Ellipsis marks a gap in the output of PageNumbers.
const Ellipsis = 0

// PageNumbers lists the page links to render for current out of total: all
// pages when there are at most five, otherwise the first and last pages, the
// neighbourhood of current and Ellipsis for the gaps. Nothing is rendered for a
// single page.
func PageNumbers(current, total int) []int {
	const maxVisible = 5
	if total <= 1 {
		return nil
	}
	if total <= maxVisible {
		return seq(1, total)
	}
	switch {
	case current <= 3:
		return append(seq(1, 4), Ellipsis, total)
	case current >= total-2:
		return append([]int{1, Ellipsis}, seq(total-3, total)...)
	default:
		out := append([]int{1, Ellipsis}, seq(current-1, current+1)...)
		return append(out, Ellipsis, total)
	}
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

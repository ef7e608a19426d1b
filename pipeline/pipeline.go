// Package pipeline derives the visible page of books from the full collection
// and the user's search, filter and sort criteria.
package pipeline

import (
	"slices"
	"strings"

	"github.com/aluiziolira/librosync/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultPageSize is the number of books on a page.
const DefaultPageSize = 20

// Availability filters books by copy count.
type Availability string

const (
	AvailabilityAll         Availability = "all"
	AvailabilityAvailable   Availability = "available"
	AvailabilityUnavailable Availability = "unavailable"
)

// GenreAll disables the genre filter.
const GenreAll = "all"

// Sort selects the ordering key and direction.
type Sort string

const (
	SortTitleAsc   Sort = "title-asc"
	SortTitleDesc  Sort = "title-desc"
	SortAuthorAsc  Sort = "author-asc"
	SortAuthorDesc Sort = "author-desc"
)

// Criteria is the view state that selects and orders books.
type Criteria struct {
	Search       string
	Availability Availability
	Genre        string
	Sort         Sort
	Page         int
	PageSize     int
}

// DefaultCriteria shows every book on the first page, by title.
func DefaultCriteria() Criteria {
	return Criteria{
		Availability: AvailabilityAll,
		Genre:        GenreAll,
		Sort:         SortTitleAsc,
		Page:         1,
		PageSize:     DefaultPageSize,
	}
}

// Result is one page of matching books.
type Result struct {
	Items         []models.Book
	Page          int
	PageSize      int
	TotalPages    int
	TotalMatching int
	// Reset reports that Resolve moved the page back to 1.
	Reset bool
}

// ParseAvailability maps a query value to an Availability. Unknown values
// select all books.
func ParseAvailability(s string) Availability {
	switch a := Availability(strings.ToLower(strings.TrimSpace(s))); a {
	case AvailabilityAvailable, AvailabilityUnavailable:
		return a
	default:
		return AvailabilityAll
	}
}

// ParseSort maps a query value to a Sort. Unknown values sort by title.
func ParseSort(s string) Sort {
	switch so := Sort(strings.ToLower(strings.TrimSpace(s))); so {
	case SortTitleDesc, SortAuthorAsc, SortAuthorDesc:
		return so
	default:
		return SortTitleAsc
	}
}

// Derive filters by search text, then availability, then genre, sorts the
// matches stably and slices out the requested page. books is not modified.
func Derive(books []models.Book, c Criteria) Result {
	c = normalize(c)

	matched := Filter(books, c)
	SortBooks(matched, c.Sort)

	items, totalPages := Paginate(matched, c.Page, c.PageSize)
	return Result{
		Items:         items,
		Page:          c.Page,
		PageSize:      c.PageSize,
		TotalPages:    totalPages,
		TotalMatching: len(matched),
	}
}

// Resolve derives the page and, when the requested page lies past the last
// non-empty page, derives page 1 instead.
func Resolve(books []models.Book, c Criteria) Result {
	res := Derive(books, c)
	if res.Page > res.TotalPages && res.TotalPages > 0 {
		c.Page = 1
		res = Derive(books, c)
		res.Reset = true
	}
	return res
}

func normalize(c Criteria) Criteria {
	if c.Page < 1 {
		c.Page = 1
	}
	if c.PageSize < 1 {
		c.PageSize = DefaultPageSize
	}
	if c.Availability == "" {
		c.Availability = AvailabilityAll
	}
	if c.Genre == "" {
		c.Genre = GenreAll
	}
	if c.Sort == "" {
		c.Sort = SortTitleAsc
	}
	return c
}

// Filter returns a new slice with the books matching the search, availability
// and genre criteria, in input order.
func Filter(books []models.Book, c Criteria) []models.Book {
	needle := ""
	if strings.TrimSpace(c.Search) != "" {
		needle = strings.ToLower(c.Search)
	}
	out := make([]models.Book, 0, len(books))
	for _, b := range books {
		if !MatchesSearch(b, needle) {
			continue
		}
		if !matchesAvailability(b, c.Availability) {
			continue
		}
		if c.Genre != "" && c.Genre != GenreAll && !b.HasGenre(c.Genre) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// MatchesSearch reports whether needle, already lower-cased, occurs in the
// title, author or ISBN. Surrounding spaces are part of the needle. An empty
// needle matches every book.
func MatchesSearch(b models.Book, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(b.Title), needle) ||
		strings.Contains(strings.ToLower(b.Author), needle) ||
		(b.ISBN != "" && strings.Contains(strings.ToLower(b.ISBN), needle))
}

func matchesAvailability(b models.Book, a Availability) bool {
	switch a {
	case AvailabilityAvailable:
		return b.AvailableCount > 0
	case AvailabilityUnavailable:
		return b.AvailableCount == 0
	default:
		return true
	}
}

// SortBooks orders books in place with English collation. Equal keys keep
// their relative order.
func SortBooks(books []models.Book, s Sort) {
	// Collators keep internal buffers and are not safe for concurrent use.
	col := collate.New(language.English)

	key := func(b models.Book) string { return b.Title }
	desc := false
	switch s {
	case SortTitleDesc:
		desc = true
	case SortAuthorAsc:
		key = func(b models.Book) string { return b.Author }
	case SortAuthorDesc:
		key = func(b models.Book) string { return b.Author }
		desc = true
	}

	slices.SortStableFunc(books, func(a, b models.Book) int {
		if desc {
			return col.CompareString(key(b), key(a))
		}
		return col.CompareString(key(a), key(b))
	})
}

// Paginate returns page (1-indexed) of items and the total page count. A page
// outside the range yields an empty slice; no items yields zero pages.
func Paginate[T any](items []T, page, pageSize int) ([]T, int) {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	totalPages := (len(items) + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}, totalPages
	}
	end := min(start+pageSize, len(items))
	return items[start:end:end], totalPages
}

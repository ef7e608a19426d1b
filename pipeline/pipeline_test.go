package pipeline

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/aluiziolira/librosync/metrics"
	"github.com/aluiziolira/librosync/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func alphaBeta() []models.Book {
	return []models.Book{
		{ID: "1", Title: "Alpha", Author: "Zed", AvailableCount: 1},
		{ID: "2", Title: "Beta", Author: "Ann", AvailableCount: 0},
	}
}

func titles(books []models.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.Title
	}
	return out
}

func numbered(n int) []models.Book {
	books := make([]models.Book, n)
	for i := range books {
		books[i] = models.Book{ID: fmt.Sprint(i), Title: fmt.Sprintf("Book %03d", i), Author: "Author"}
	}
	return books
}

func TestDeriveScenarios(t *testing.T) {
	tests := []struct {
		name       string
		criteria   Criteria
		want       []string
		totalPages int
	}{
		{
			name:       "available only",
			criteria:   Criteria{Availability: AvailabilityAvailable, Genre: GenreAll, Sort: SortTitleAsc, Page: 1, PageSize: 20},
			want:       []string{"Alpha"},
			totalPages: 1,
		},
		{
			name:       "author ascending",
			criteria:   Criteria{Availability: AvailabilityAll, Genre: GenreAll, Sort: SortAuthorAsc, Page: 1, PageSize: 20},
			want:       []string{"Beta", "Alpha"},
			totalPages: 1,
		},
		{
			name:       "title descending",
			criteria:   Criteria{Sort: SortTitleDesc},
			want:       []string{"Beta", "Alpha"},
			totalPages: 1,
		},
		{
			name:       "unavailable only",
			criteria:   Criteria{Availability: AvailabilityUnavailable},
			want:       []string{"Beta"},
			totalPages: 1,
		},
		{
			name:       "no match",
			criteria:   Criteria{Search: "gamma"},
			want:       []string{},
			totalPages: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Derive(alphaBeta(), tt.criteria)
			if got := titles(res.Items); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("items = %v, want %v", got, tt.want)
			}
			if res.TotalPages != tt.totalPages {
				t.Fatalf("total pages = %d, want %d", res.TotalPages, tt.totalPages)
			}
		})
	}
}

func TestDerivePagination(t *testing.T) {
	books := numbered(25)

	first := Derive(books, Criteria{Page: 1, PageSize: 20})
	if len(first.Items) != 20 || first.TotalPages != 2 || first.TotalMatching != 25 {
		t.Fatalf("page 1 = %d items, %d pages, %d matching", len(first.Items), first.TotalPages, first.TotalMatching)
	}
	second := Derive(books, Criteria{Page: 2, PageSize: 20})
	if len(second.Items) != 5 {
		t.Fatalf("page 2 = %d items, want 5", len(second.Items))
	}
	if second.Items[0].Title != "Book 020" {
		t.Fatalf("page 2 starts at %q", second.Items[0].Title)
	}
	past := Derive(books, Criteria{Page: 9, PageSize: 20})
	if len(past.Items) != 0 || past.TotalPages != 2 {
		t.Fatalf("past last page = %+v", past)
	}
}

func TestDerivePageBoundAndTotalPages(t *testing.T) {
	for n := 0; n <= 45; n += 7 {
		for _, size := range []int{1, 3, 20} {
			books := numbered(n)
			for page := 1; page <= 4; page++ {
				res := Derive(books, Criteria{Page: page, PageSize: size})
				if len(res.Items) > size {
					t.Fatalf("n=%d size=%d page=%d: %d items exceed page size", n, size, page, len(res.Items))
				}
				want := (n + size - 1) / size
				if res.TotalPages != want {
					t.Fatalf("n=%d size=%d: total pages = %d, want %d", n, size, res.TotalPages, want)
				}
			}
		}
	}
}

func TestDeriveEmptyCollection(t *testing.T) {
	res := Derive(nil, DefaultCriteria())
	if res.Items == nil || len(res.Items) != 0 || res.TotalPages != 0 || res.TotalMatching != 0 {
		t.Fatalf("empty collection = %+v", res)
	}
}

func TestSearch(t *testing.T) {
	books := []models.Book{
		{ID: "1", Title: "The Hobbit", Author: "J.R.R. Tolkien", ISBN: "978-0261102217"},
		{ID: "2", Title: "Dune", Author: "Frank Herbert"},
		{ID: "3", Title: "Emma", Author: "Jane Austen", ISBN: "978-0141439587"},
	}

	tests := []struct {
		search string
		want   []string
	}{
		{search: "", want: []string{"Dune", "Emma", "The Hobbit"}},
		{search: "   ", want: []string{"Dune", "Emma", "The Hobbit"}},
		{search: "HOBBIT", want: []string{"The Hobbit"}},
		{search: " herbert", want: []string{"Dune"}},
		{search: "herbert ", want: []string{}},
		{search: " dune", want: []string{}},
		{search: "0141439587", want: []string{"Emma"}},
		{search: "978", want: []string{"Emma", "The Hobbit"}},
	}

	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			res := Derive(books, Criteria{Search: tt.search})
			if got := titles(res.Items); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("search %q = %v, want %v", tt.search, got, tt.want)
			}
		})
	}
}

func TestGenreFilterIsExact(t *testing.T) {
	books := []models.Book{
		{ID: "1", Title: "A", Genre: []string{"fantasy"}},
		{ID: "2", Title: "B", Genre: []string{"Fantasy"}},
		{ID: "3", Title: "C"},
	}
	res := Derive(books, Criteria{Genre: "fantasy"})
	if got := titles(res.Items); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("genre filter = %v", got)
	}
}

func TestSortIsStable(t *testing.T) {
	books := []models.Book{
		{ID: "1", Title: "Same", Author: "B"},
		{ID: "2", Title: "Other", Author: "A"},
		{ID: "3", Title: "Same", Author: "C"},
		{ID: "4", Title: "Same", Author: "A"},
	}
	res := Derive(books, Criteria{Sort: SortTitleAsc})
	var ids []string
	for _, b := range res.Items {
		ids = append(ids, b.ID)
	}
	if !reflect.DeepEqual(ids, []string{"2", "1", "3", "4"}) {
		t.Fatalf("ids = %v, equal titles must keep input order", ids)
	}

	res = Derive(books, Criteria{Sort: SortTitleDesc})
	ids = ids[:0]
	for _, b := range res.Items {
		ids = append(ids, b.ID)
	}
	if !reflect.DeepEqual(ids, []string{"1", "3", "4", "2"}) {
		t.Fatalf("ids = %v, descending sort must also be stable", ids)
	}
}

func TestSortUsesCollation(t *testing.T) {
	books := []models.Book{
		{ID: "1", Title: "zebra"},
		{ID: "2", Title: "Émile"},
		{ID: "3", Title: "apple"},
		{ID: "4", Title: "Banana"},
	}
	res := Derive(books, Criteria{Sort: SortTitleAsc})
	want := []string{"apple", "Banana", "Émile", "zebra"}
	if got := titles(res.Items); !reflect.DeepEqual(got, want) {
		t.Fatalf("collated order = %v, want %v", got, want)
	}
}

func TestDeriveDoesNotModifyInput(t *testing.T) {
	books := []models.Book{
		{ID: "1", Title: "Charlie"},
		{ID: "2", Title: "Alpha"},
		{ID: "3", Title: "Bravo"},
	}
	before := append([]models.Book(nil), books...)
	Derive(books, Criteria{Sort: SortTitleAsc})
	if !reflect.DeepEqual(books, before) {
		t.Fatalf("input reordered: %v", titles(books))
	}
}

func TestResolveResetsOutOfRangePage(t *testing.T) {
	books := numbered(45)

	res := Resolve(books, Criteria{Page: 3, PageSize: 20})
	if res.Reset || res.Page != 3 || len(res.Items) != 5 {
		t.Fatalf("in-range page should be kept: %+v", res)
	}

	res = Resolve(books, Criteria{Search: "Book 00", Page: 3, PageSize: 5})
	if !res.Reset || res.Page != 1 || len(res.Items) != 5 {
		t.Fatalf("expected reset to page 1: page=%d reset=%v items=%d", res.Page, res.Reset, len(res.Items))
	}

	res = Resolve(books, Criteria{Search: "missing", Page: 4})
	if res.Reset || res.TotalPages != 0 {
		t.Fatalf("no matches must not reset: %+v", res)
	}
}

func TestParseCriteriaValues(t *testing.T) {
	if got := ParseSort("author-desc"); got != SortAuthorDesc {
		t.Fatalf("ParseSort = %q", got)
	}
	if got := ParseSort("title"); got != SortTitleAsc {
		t.Fatalf("unknown sort should fall back to title-asc, got %q", got)
	}
	if got := ParseAvailability(" Available "); got != AvailabilityAvailable {
		t.Fatalf("ParseAvailability = %q", got)
	}
	if got := ParseAvailability("bogus"); got != AvailabilityAll {
		t.Fatalf("unknown availability should fall back to all, got %q", got)
	}
}

func TestPaginateGeneric(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g"}
	page, total := Paginate(items, 3, 3)
	if !reflect.DeepEqual(page, []string{"g"}) || total != 3 {
		t.Fatalf("page = %v total = %d", page, total)
	}
	page = append(page, "x")
	if items[6] != "g" {
		t.Fatalf("appending to a page must not touch the source")
	}
}

func TestPageNumbers(t *testing.T) {
	tests := []struct {
		current, total int
		want           []int
	}{
		{current: 1, total: 1, want: nil},
		{current: 2, total: 4, want: []int{1, 2, 3, 4}},
		{current: 2, total: 10, want: []int{1, 2, 3, 4, Ellipsis, 10}},
		{current: 9, total: 10, want: []int{1, Ellipsis, 7, 8, 9, 10}},
		{current: 5, total: 10, want: []int{1, Ellipsis, 4, 5, 6, Ellipsis, 10}},
	}
	for _, tt := range tests {
		if got := PageNumbers(tt.current, tt.total); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("PageNumbers(%d, %d) = %v, want %v", tt.current, tt.total, got, tt.want)
		}
	}
}

func TestFacets(t *testing.T) {
	books := []models.Book{
		{ID: "1", Title: "A", Genre: []string{"fantasy", "classic"}, Category: []string{"fiction"}},
		{ID: "2", Title: "B", Genre: []string{"classic", " "}, Category: []string{"fiction", "reference"}},
		{ID: "3", Title: "C"},
	}

	if got := Genres(books); !reflect.DeepEqual(got, []string{"fantasy", "classic"}) {
		t.Fatalf("genres = %v", got)
	}
	groups := GroupByCategory(books)
	if len(groups) != 2 || groups[0].Category != "fiction" || len(groups[0].Books) != 2 {
		t.Fatalf("groups = %+v", groups)
	}
	if groups[1].Category != "reference" || groups[1].Books[0].ID != "2" {
		t.Fatalf("reference group = %+v", groups[1])
	}
	if got := FilterByIDs(books, []string{"3", "1", "missing"}); !reflect.DeepEqual(titles(got), []string{"A", "C"}) {
		t.Fatalf("FilterByIDs = %v", titles(got))
	}
	if b, ok := FindByID(books, "2"); !ok || b.Title != "B" {
		t.Fatalf("FindByID = %+v %v", b, ok)
	}
}

func TestBrowserDebouncesSearchAndResetsPage(t *testing.T) {
	m := metrics.New()
	b := NewBrowser(5, 20*time.Millisecond, m, nil)
	defer b.Close()
	<-b.Searches()

	books := numbered(30)
	b.SetPage(6)
	if res := b.View(books); res.Page != 6 || len(res.Items) != 5 {
		t.Fatalf("page 6 = %+v", res)
	}

	b.SetSearch("B")
	b.SetSearch("Bo")
	b.SetSearch("Book 01")
	if c := b.Criteria(); c.Search != "" {
		t.Fatalf("search applied before settling: %q", c.Search)
	}

	select {
	case s := <-b.Searches():
		if s != "Book 01" {
			t.Fatalf("settled search = %q", s)
		}
	case <-time.After(time.Second):
		t.Fatalf("search never settled")
	}

	res := b.View(books)
	if !res.Reset || res.Page != 1 || res.TotalMatching != 10 {
		t.Fatalf("view after search = page %d reset %v matching %d", res.Page, res.Reset, res.TotalMatching)
	}
	if b.Criteria().Page != 1 {
		t.Fatalf("browser should remember the reset page")
	}
	b.View(books)
	if got := testutil.ToFloat64(m.SearchesTotal); got != 1 {
		t.Fatalf("searches = %v, want 1", got)
	}
}

func TestSearchTrackerCountsChangedQueries(t *testing.T) {
	m := metrics.New()
	tr := NewSearchTracker(m, nil)

	steps := []struct {
		search string
		want   bool
	}{
		{search: "", want: false},
		{search: "b", want: false},
		{search: "bo", want: true},
		{search: "bo", want: false},
		{search: "book", want: true},
		{search: "bo", want: true},
	}
	for _, s := range steps {
		if got := tr.Track(s.search, 3); got != s.want {
			t.Fatalf("Track(%q) = %v, want %v", s.search, got, s.want)
		}
	}
	if got := testutil.ToFloat64(m.SearchesTotal); got != 3 {
		t.Fatalf("searches = %v, want 3", got)
	}
}

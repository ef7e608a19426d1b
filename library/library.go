// Package library wires the fetch client, the query cache, the view pipeline
// and the preference stores into the operations exposed by the CLI and the
// HTTP server.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/librosync/client"
	"github.com/aluiziolira/librosync/config"
	"github.com/aluiziolira/librosync/metrics"
	"github.com/aluiziolira/librosync/models"
	"github.com/aluiziolira/librosync/pipeline"
	"github.com/aluiziolira/librosync/prefs"
	"github.com/aluiziolira/librosync/query"
	"github.com/aluiziolira/librosync/storage"
)

// DefaultAnnouncementsPageSize is the number of announcements on a page.
const DefaultAnnouncementsPageSize = 3

var (
	ErrBookNotFound      = errors.New("book not found")
	ErrUnknownCollection = errors.New("unknown collection")
)

// Fetcher loads the remote collections.
type Fetcher interface {
	FetchBooks(ctx context.Context) ([]models.Book, error)
	FetchAnnouncements(ctx context.Context) ([]models.Announcement, error)
}

// Status describes the freshness of a collection without its data.
type Status struct {
	Ready      bool   `json:"ready" yaml:"ready"`
	Loading    bool   `json:"loading" yaml:"loading"`
	Fetching   bool   `json:"fetching" yaml:"fetching"`
	Stale      bool   `json:"stale" yaml:"stale"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorClass string `json:"errorClass,omitempty" yaml:"error_class,omitempty"`
}

func statusOf[T any](s query.State[T]) Status {
	st := Status{
		Ready:    s.HasData,
		Loading:  s.IsLoading,
		Fetching: s.IsFetching,
		Stale:    s.IsStale,
		Error:    s.Error,
	}
	if s.Err != nil {
		st.ErrorClass = client.Classify(s.Err).String()
	}
	return st
}

// Service is the library front end's application core.
type Service struct {
	cache         *query.Client
	books         *query.Query[[]models.Book]
	announcements *query.Query[[]models.Announcement]

	Favorites *prefs.Favorites
	History   *prefs.History
	Language  *prefs.Language

	searches *pipeline.SearchTracker
	metrics  *metrics.Metrics
	pageSize int
	logger   *slog.Logger
}

// New builds a service over fetcher and store. m and logger may be nil.
func New(cfg *config.Config, fetcher Fetcher, store storage.Storage, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cache := query.NewClient(query.OptionsFromConfig(cfg, m, logger))

	opts := []prefs.Option{prefs.WithLogger(logger), prefs.WithLimit(cfg.HistoryLimit)}
	return &Service{
		cache:         cache,
		books:         query.New(cache, client.Books, fetcher.FetchBooks),
		announcements: query.New(cache, client.Announcements, fetcher.FetchAnnouncements),
		Favorites:     prefs.NewFavorites(store, opts...),
		History:       prefs.NewHistory(store, opts...),
		Language:      prefs.NewLanguage(store, opts...),
		searches:      pipeline.NewSearchTracker(m, logger),
		metrics:       m,
		pageSize:      cfg.PageSize,
		logger:        logger,
	}
}

// Close cancels background fetches.
func (s *Service) Close() {
	s.cache.Close()
}

// BooksQuery exposes the cached book collection.
func (s *Service) BooksQuery() *query.Query[[]models.Book] { return s.books }

// AnnouncementsQuery exposes the cached announcement collection.
func (s *Service) AnnouncementsQuery() *query.Query[[]models.Announcement] {
	return s.announcements
}

// CachedKeys lists the collections held in the query cache, oldest first.
func (s *Service) CachedKeys() []string {
	return s.cache.Keys()
}

// Books returns the book collection, waiting for the first load.
func (s *Service) Books(ctx context.Context) (query.State[[]models.Book], error) {
	return s.books.Get(ctx)
}

// BooksPage is a derived page of the catalog with its facets.
type BooksPage struct {
	pipeline.Result
	Criteria   pipeline.Criteria
	Genres     []string
	Categories []string
	Pages      []int
	Status     Status
}

// BooksPage derives the page selected by c. A page past the end is replaced
// by the first page. Search text is counted like an interactive search.
func (s *Service) BooksPage(ctx context.Context, c pipeline.Criteria) (BooksPage, error) {
	state, err := s.books.Get(ctx)
	if err != nil {
		return BooksPage{}, err
	}
	if c.PageSize < 1 {
		c.PageSize = s.pageSize
	}
	res := pipeline.Resolve(state.Data, c)
	c.Page = res.Page
	if state.HasData {
		s.searches.Track(c.Search, res.TotalMatching)
	}
	return BooksPage{
		Result:     res,
		Criteria:   c,
		Genres:     pipeline.Genres(state.Data),
		Categories: pipeline.Categories(state.Data),
		Pages:      pipeline.PageNumbers(res.Page, res.TotalPages),
		Status:     statusOf(state),
	}, nil
}

// Categories groups the catalog by category.
func (s *Service) Categories(ctx context.Context) ([]pipeline.Group, Status, error) {
	state, err := s.books.Get(ctx)
	if err != nil {
		return nil, Status{}, err
	}
	return pipeline.GroupByCategory(state.Data), statusOf(state), nil
}

// Book looks a book up by ID.
func (s *Service) Book(ctx context.Context, id string) (models.Book, Status, error) {
	state, err := s.books.Get(ctx)
	if err != nil {
		return models.Book{}, Status{}, err
	}
	b, ok := pipeline.FindByID(state.Data, id)
	if !ok {
		if state.Err != nil && !state.HasData {
			return models.Book{}, statusOf(state), fmt.Errorf("load book %s: %w", id, state.Err)
		}
		return models.Book{}, statusOf(state), fmt.Errorf("book %s: %w", id, ErrBookNotFound)
	}
	return b, statusOf(state), nil
}

// ViewBook returns the book and records the view in the reading history.
// Every call counts as a view.
func (s *Service) ViewBook(ctx context.Context, id string) (models.Book, error) {
	b, _, err := s.Book(ctx, id)
	if err != nil {
		return models.Book{}, err
	}
	s.metrics.IncBookView()
	if err := s.History.Add(&b); err != nil {
		s.logger.Warn("record view", slog.String("book_id", id), slog.Any("error", err))
	}
	return b, nil
}

// ToggleFavorite adds or removes id from the favorites and reports whether it
// is now a favorite.
func (s *Service) ToggleFavorite(id string) (bool, error) {
	on, err := s.Favorites.Toggle(id)
	if err != nil {
		return false, err
	}
	if id != "" {
		s.metrics.IncFavoriteToggle(on)
	}
	return on, nil
}

// FavoriteBooks resolves the favorite IDs against the catalog. IDs that are no
// longer in the catalog are skipped.
func (s *Service) FavoriteBooks(ctx context.Context) ([]models.Book, Status, error) {
	state, err := s.books.Get(ctx)
	if err != nil {
		return nil, Status{}, err
	}
	return pipeline.FilterByIDs(state.Data, s.Favorites.List()), statusOf(state), nil
}

// Announcements returns the announcement collection in source order.
func (s *Service) Announcements(ctx context.Context) (query.State[[]models.Announcement], error) {
	return s.announcements.Get(ctx)
}

// AnnouncementsPage is a page of announcements.
type AnnouncementsPage struct {
	Items      []models.Announcement
	Page       int
	PageSize   int
	TotalPages int
	Total      int
	Status     Status
}

// AnnouncementsPage slices one page of announcements.
func (s *Service) AnnouncementsPage(ctx context.Context, page, pageSize int) (AnnouncementsPage, error) {
	state, err := s.announcements.Get(ctx)
	if err != nil {
		return AnnouncementsPage{}, err
	}
	if pageSize < 1 {
		pageSize = DefaultAnnouncementsPageSize
	}
	if page < 1 {
		page = 1
	}
	items, total := pipeline.Paginate(state.Data, page, pageSize)
	return AnnouncementsPage{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: total,
		Total:      len(state.Data),
		Status:     statusOf(state),
	}, nil
}

// Refetch forces a reload of collection and reports its status afterwards.
func (s *Service) Refetch(ctx context.Context, collection string) (Status, error) {
	switch collection {
	case client.Books:
		state, err := s.books.Refetch(ctx)
		return statusOf(state), err
	case client.Announcements:
		state, err := s.announcements.Refetch(ctx)
		return statusOf(state), err
	default:
		return Status{}, fmt.Errorf("%q: %w", collection, ErrUnknownCollection)
	}
}

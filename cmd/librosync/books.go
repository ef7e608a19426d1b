package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/aluiziolira/librosync/library"
	"github.com/aluiziolira/librosync/models"
	"github.com/aluiziolira/librosync/output"
	"github.com/aluiziolira/librosync/pipeline"
	"github.com/spf13/cobra"
)

// unavailable converts a collection that failed to load with nothing cached
// into a command error.
func unavailable(st library.Status) error {
	if !st.Ready && st.Error != "" {
		return errors.New(st.Error)
	}
	return nil
}

func newBooksCmd(a *app) *cobra.Command {
	var (
		search       string
		availability string
		genre        string
		sort         string
		page         int
		pageSize     int
		favorites    bool
	)

	cmd := &cobra.Command{
		Use:   "books",
		Short: "List one page of the catalog",
		Example: `  librosync books --search dune
  librosync books --availability available --genre fiction --sort author-asc
  librosync books --page 2 --format csv --output books.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if favorites {
				books, st, err := a.svc.FavoriteBooks(ctx)
				if err != nil {
					return err
				}
				if err := unavailable(st); err != nil {
					return err
				}
				a.statusLine(cmd, st)
				return a.render(cmd, func(w io.Writer, f output.Format) error {
					return output.Books(w, f, books)
				})
			}

			c := pipeline.DefaultCriteria()
			c.Search = search
			c.Availability = pipeline.ParseAvailability(availability)
			if genre != "" {
				c.Genre = genre
			}
			c.Sort = pipeline.ParseSort(sort)
			c.Page = page
			c.PageSize = pageSize

			res, err := a.svc.BooksPage(ctx, c)
			if err != nil {
				return err
			}
			if err := unavailable(res.Status); err != nil {
				return err
			}
			a.statusLine(cmd, res.Status)
			if res.Reset {
				fmt.Fprintf(cmd.ErrOrStderr(), "page %d does not exist, showing page 1\n", page)
			}

			if err := a.render(cmd, func(w io.Writer, f output.Format) error {
				return output.Books(w, f, res.Items)
			}); err != nil {
				return err
			}
			if res.TotalMatching == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No books found matching your criteria.")
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "page %d of %d (%d books) %s\n",
				res.Page, res.TotalPages, res.TotalMatching, pageBar(res.Pages, res.Page))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&search, "search", "s", "", "Case-insensitive match on title, author or ISBN")
	flags.StringVar(&availability, "availability", string(pipeline.AvailabilityAll), "all, available or unavailable")
	flags.StringVar(&genre, "genre", pipeline.GenreAll, "Exact genre to keep")
	flags.StringVar(&sort, "sort", string(pipeline.SortTitleAsc), "title-asc, title-desc, author-asc or author-desc")
	flags.IntVarP(&page, "page", "p", 1, "Page number")
	flags.IntVar(&pageSize, "page-size", 0, "Books per page (default from configuration)")
	flags.BoolVar(&favorites, "favorites", false, "List favorite books instead of a catalog page")
	return cmd
}

func newBookCmd(a *app) *cobra.Command {
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "book <id>",
		Short: "Show a book and record it in the reading history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			if noHistory {
				b, st, err := a.svc.Book(ctx, id)
				if err != nil {
					return err
				}
				a.statusLine(cmd, st)
				return a.renderBook(cmd, b)
			}

			b, err := a.svc.ViewBook(ctx, id)
			if err != nil {
				return err
			}
			return a.renderBook(cmd, b)
		},
	}
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record the view")
	return cmd
}

func (a *app) renderBook(cmd *cobra.Command, b models.Book) error {
	if err := a.render(cmd, func(w io.Writer, f output.Format) error {
		if f == output.FormatTable {
			return output.BookDetail(w, b)
		}
		return output.Books(w, f, []models.Book{b})
	}); err != nil {
		return err
	}
	if a.svc.Favorites.IsFavorite(b.ID) {
		fmt.Fprintln(cmd.ErrOrStderr(), "★ in your favorites")
	}
	return nil
}

func newAnnouncementsCmd(a *app) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:     "announcements",
		Aliases: []string{"news"},
		Short:   "List library announcements",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.AnnouncementsPage(cmd.Context(), page, pageSize)
			if err != nil {
				return err
			}
			if err := unavailable(res.Status); err != nil {
				return err
			}
			a.statusLine(cmd, res.Status)
			if res.Total == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No announcements available.")
				return nil
			}
			if err := a.render(cmd, func(w io.Writer, f output.Format) error {
				return output.Announcements(w, f, res.Items)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "page %d of %d\n", res.Page, res.TotalPages)
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", library.DefaultAnnouncementsPageSize, "Announcements per page")
	return cmd
}

func pageBar(pages []int, current int) string {
	s := ""
	for i, p := range pages {
		if i > 0 {
			s += " "
		}
		switch p {
		case pipeline.Ellipsis:
			s += "…"
		case current:
			s += fmt.Sprintf("[%d]", p)
		default:
			s += fmt.Sprint(p)
		}
	}
	return s
}

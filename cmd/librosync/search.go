package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aluiziolira/librosync/models"
	"github.com/aluiziolira/librosync/output"
	"github.com/aluiziolira/librosync/pipeline"
	"github.com/spf13/cobra"
)

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search",
		Short: "Filter the catalog interactively from stdin",
		Long: `Each input line replaces the search text. The list is redrawn once typing
has paused for the debounce delay.

Lines starting with ":" change the other criteria at once:
  :availability all|available|unavailable
  :genre <name>|all
  :sort title-asc|title-desc|author-asc|author-desc
  :page <n>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			state, err := a.svc.Books(ctx)
			if err != nil {
				return err
			}
			if !state.HasData && state.Err != nil {
				return errors.New(state.Error)
			}

			b := pipeline.NewBrowser(a.cfg.PageSize, a.cfg.DebounceDelay, a.metrics, a.logger)
			defer b.Close()

			lines := make(chan string)
			go func() {
				defer close(lines)
				sc := bufio.NewScanner(cmd.InOrStdin())
				for sc.Scan() {
					select {
					case lines <- sc.Text():
					case <-ctx.Done():
						return
					}
				}
			}()

			draw := func() error {
				return a.drawView(cmd, b, state.Data)
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case _, ok := <-b.Searches():
					if !ok {
						return nil
					}
					if err := draw(); err != nil {
						return err
					}
				case line, ok := <-lines:
					if !ok {
						b.Flush()
						select {
						case <-b.Searches():
							return draw()
						default:
							return nil
						}
					}
					if !strings.HasPrefix(line, ":") {
						b.SetSearch(line)
						continue
					}
					if err := applyCommand(b, line); err != nil {
						fmt.Fprintln(cmd.ErrOrStderr(), err)
						continue
					}
					if err := draw(); err != nil {
						return err
					}
				}
			}
		},
	}
}

func (a *app) drawView(cmd *cobra.Command, b *pipeline.Browser, books []models.Book) error {
	res := b.View(books)
	c := b.Criteria()

	errw := cmd.ErrOrStderr()
	fmt.Fprintf(errw, "\n-- search %q, %s, genre %s, %s --\n", c.Search, c.Availability, c.Genre, c.Sort)
	if res.TotalMatching == 0 {
		fmt.Fprintln(errw, "No books found matching your criteria.")
		return nil
	}
	if err := a.render(cmd, func(w io.Writer, f output.Format) error {
		return output.Books(w, f, res.Items)
	}); err != nil {
		return err
	}
	fmt.Fprintf(errw, "page %d of %d (%d books) %s\n",
		res.Page, res.TotalPages, res.TotalMatching,
		pageBar(pipeline.PageNumbers(res.Page, res.TotalPages), res.Page))
	return nil
}

func applyCommand(b *pipeline.Browser, line string) error {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "availability", "a":
		b.SetAvailability(pipeline.ParseAvailability(arg))
	case "genre", "g":
		if arg == "" {
			arg = pipeline.GenreAll
		}
		b.SetGenre(arg)
	case "sort", "s":
		b.SetSort(pipeline.ParseSort(arg))
	case "page", "p":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("page: %q is not a number", arg)
		}
		b.SetPage(n)
	default:
		return fmt.Errorf("unknown command %q", name)
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/aluiziolira/librosync/output"
	"github.com/aluiziolira/librosync/prefs"
	"github.com/spf13/cobra"
)

func newFavoritesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "favorites",
		Aliases: []string{"fav"},
		Short:   "Manage favorite books",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List favorite books",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if a.svc.Favorites.Len() == 0 {
					fmt.Fprintln(cmd.ErrOrStderr(), "No favorites yet.")
					return nil
				}
				books, st, err := a.svc.FavoriteBooks(cmd.Context())
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
			},
		},
		&cobra.Command{
			Use:   "toggle <id>...",
			Short: "Add or remove books from favorites",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, id := range args {
					on, err := a.svc.ToggleFavorite(id)
					if err != nil {
						return err
					}
					verb := "removed from"
					if on {
						verb = "added to"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s favorites\n", id, verb)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every favorite",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.svc.Favorites.Clear()
			},
		},
	)
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the reading history",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List recently viewed books, most recent first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				entries := a.svc.History.List()
				if len(entries) == 0 {
					fmt.Fprintln(cmd.ErrOrStderr(), "No reading history yet.")
					return nil
				}
				return a.render(cmd, func(w io.Writer, f output.Format) error {
					return output.History(w, f, entries)
				})
			},
		},
		&cobra.Command{
			Use:   "remove <id>...",
			Short: "Remove books from the history",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, id := range args {
					if err := a.svc.History.Remove(id); err != nil {
						return err
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Clear the history",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.svc.History.Clear()
			},
		},
	)
	return cmd
}

func newLanguageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "language [code]",
		Short:     "Show or set the interface language",
		Long:      "Supported languages: " + strings.Join(prefs.SupportedLanguages, ", "),
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: prefs.SupportedLanguages,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := a.svc.Language.Set(args[0]); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.svc.Language.Get())
			return nil
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete favorites, reading history and language from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := prefs.Reset(a.store)
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "Nothing to reset.")
				return nil
			}
			for _, key := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", key)
			}
			return nil
		},
	}
}

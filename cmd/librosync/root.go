package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aluiziolira/librosync/client"
	"github.com/aluiziolira/librosync/config"
	"github.com/aluiziolira/librosync/library"
	"github.com/aluiziolira/librosync/metrics"
	"github.com/aluiziolira/librosync/output"
	"github.com/aluiziolira/librosync/storage"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// app is the state shared by every subcommand once the root has parsed its
// persistent flags.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	level   *slog.LevelVar
	metrics *metrics.Metrics
	store   storage.Store
	svc     *library.Service

	// persistent flag values, applied over env and defaults when set
	baseURL     string
	timeout     time.Duration
	driver      string
	storagePath string
	format      string
	outputFile  string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "librosync",
		Short: "Browse the library catalog and manage favorites and reading history",
		Long: `librosync talks to the library API, caches the catalog and announcements,
and keeps favorites, reading history and the interface language in a local store.

Use "librosync serve" to expose the same views over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.baseURL, "base-url", defaults.BaseURL, "Library API base URL")
	flags.DurationVar(&a.timeout, "timeout", defaults.Timeout, "Request timeout")
	flags.StringVar(&a.driver, "storage", defaults.StorageDriver, "Preference store driver: memory or sqlite")
	flags.StringVar(&a.storagePath, "storage-path", defaults.StoragePath, "SQLite database path")
	flags.StringVarP(&a.format, "format", "f", defaults.OutputFormat, "Output format: "+formatList())
	flags.StringVarP(&a.outputFile, "output", "o", "", "Write output to a file instead of stdout")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(
		newBooksCmd(a),
		newBookCmd(a),
		newAnnouncementsCmd(a),
		newSearchCmd(a),
		newFavoritesCmd(a),
		newHistoryCmd(a),
		newLanguageCmd(a),
		newResetCmd(a),
		newServeCmd(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if err := config.FromEnv(cfg); err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = a.baseURL
	}
	if flags.Changed("timeout") {
		cfg.Timeout = a.timeout
	}
	if flags.Changed("storage") {
		cfg.StorageDriver = strings.ToLower(a.driver)
	}
	if flags.Changed("storage-path") {
		cfg.StoragePath = a.storagePath
	}
	if flags.Changed("format") {
		cfg.OutputFormat = strings.ToLower(a.format)
	}
	cfg.Verbose = a.verbose
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())
	a.logger = logger
	a.level = level

	a.metrics = metrics.New()

	store, err := storage.Open(cfg.StorageDriver, cfg.StoragePath)
	if err != nil {
		return err
	}
	a.store = store

	fetcher, err := client.New(cfg, a.metrics, logger)
	if err != nil {
		return err
	}
	a.svc = library.New(cfg, fetcher, store, a.metrics, logger)

	logger.Debug("librosync ready",
		slog.String("base_url", cfg.BaseURL),
		slog.String("storage", cfg.StorageDriver),
	)
	return nil
}

func (a *app) close() error {
	if a.svc != nil {
		a.svc.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	return nil
}

// render writes through fn to --output when given, otherwise to stdout.
func (a *app) render(cmd *cobra.Command, fn func(w io.Writer, f output.Format) error) error {
	f, err := output.ParseFormat(a.cfg.OutputFormat)
	if err != nil {
		return err
	}
	if a.outputFile == "" {
		return fn(cmd.OutOrStdout(), f)
	}

	file, err := output.Create(a.outputFile)
	if err != nil {
		return err
	}
	if err := fn(file, f); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", a.outputFile, err)
	}
	a.logger.Info("output written", slog.String("file", a.outputFile))
	return nil
}

// statusLine reports load problems on stderr so they never mix with output.
func (a *app) statusLine(cmd *cobra.Command, st library.Status) {
	switch {
	case st.Error != "" && st.Ready:
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: showing cached data, refresh failed: %s\n", st.Error)
	case st.Stale:
		fmt.Fprintln(cmd.ErrOrStderr(), "note: data may be out of date")
	}
}

func formatList() string {
	names := make([]string, len(output.Formats))
	for i, f := range output.Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelWarn)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

package main

import (
	"log/slog"

	"github.com/aluiziolira/librosync/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog, announcements and preferences over HTTP",
		Long: `Starts an HTTP server exposing the library views as JSON under /api,
Prometheus metrics on /metrics and a health check on /healthcheck.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.ListenAddr = addr
			}
			if !a.cfg.Verbose {
				a.level.Set(slog.LevelInfo)
				gin.SetMode(gin.ReleaseMode)
			}

			// Start loading both collections in the background.
			a.svc.BooksQuery().Observe()
			a.svc.AnnouncementsQuery().Observe()

			srv := server.New(a.svc, a.metrics, a.logger, version)
			return srv.Run(cmd.Context(), a.cfg.ListenAddr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address (env LIBROSYNC_LISTEN_ADDR)")
	return cmd
}

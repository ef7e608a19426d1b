// Package server exposes the library view state over HTTP for front ends that
// render it.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/librosync/library"
	"github.com/aluiziolira/librosync/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

const shutdownTimeout = 5 * time.Second

// Server routes HTTP requests to the library service.
type Server struct {
	svc       *library.Service
	metrics   *metrics.Metrics
	logger    *slog.Logger
	version   string
	startTime time.Time
}

// New builds a server. m and logger may be nil.
func New(svc *library.Service, m *metrics.Metrics, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		svc:       svc,
		metrics:   m,
		logger:    logger,
		version:   version,
		startTime: time.Now(),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	e := gin.New()
	e.Use(gin.Recovery(), s.requestLogger())

	e.GET("/healthcheck", s.Health)
	if s.metrics != nil {
		e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	NewBookHandler(s.svc).RegisterRoutes(api)
	NewPrefsHandler(s.svc).RegisterRoutes(api)
	return e
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("librosync server listening", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
			return err
		}
		s.logger.Info("server stopped")
		return nil
	case err := <-serverErr:
		return err
	}
}

// Health reports liveness, uptime and the cached collections.
func (s *Server) Health(c *gin.Context) {
	cached := s.svc.CachedKeys()
	if cached == nil {
		cached = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.version,
		"uptime":  int64(time.Since(s.startTime).Seconds()),
		"cache":   cached,
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)

		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.LogAttrs(c.Request.Context(), level, "http request",
			slog.String("request_id", id),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}

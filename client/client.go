// Package client fetches the library collections over HTTP with a bounded
// timeout and classifies failures. It performs no retries.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/librosync/config"
	"github.com/aluiziolira/librosync/metrics"
	"github.com/aluiziolira/librosync/models"
	"github.com/aluiziolira/librosync/parser"
	"github.com/gocolly/colly/v2"
	jsoniter "github.com/json-iterator/go"
)

// Collection names, used as cache keys and metric labels.
const (
	Books         = "books"
	Announcements = "announcements"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client wraps a colly collector configured for JSON endpoints.
type Client struct {
	cfg       *config.Config
	collector *colly.Collector
	transport *callTransport
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New builds a client configured from cfg. m and logger may be nil.
func New(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	if logger == nil {
		logger = slog.Default()
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	transport := newCallTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})
	collector.WithTransport(transport)

	return &Client{
		cfg:       cfg,
		collector: collector,
		transport: transport,
		metrics:   m,
		logger:    logger,
	}, nil
}

// WithTransport replaces the HTTP transport, e.g. with an httpmock transport.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.transport = newCallTransport(rt)
	c.collector.WithTransport(c.transport)
}

// FetchBooks retrieves and normalizes the book collection.
func (c *Client) FetchBooks(ctx context.Context) ([]models.Book, error) {
	var raw []models.Book
	if err := c.FetchJSON(ctx, Books, c.cfg.BooksPath, &raw); err != nil {
		return nil, err
	}
	books, report := parser.NormalizeBooks(raw)
	if dropped := report.Dropped(); dropped > 0 {
		c.logger.Warn("dropped malformed books",
			slog.Int("dropped", dropped),
			slog.Any("reasons", map[string]int(report)),
		)
	}
	return books, nil
}

// FetchAnnouncements retrieves and normalizes the announcement collection.
func (c *Client) FetchAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	var raw []models.Announcement
	if err := c.FetchJSON(ctx, Announcements, c.cfg.AnnouncementsPath, &raw); err != nil {
		return nil, err
	}
	items, report := parser.NormalizeAnnouncements(raw)
	if dropped := report.Dropped(); dropped > 0 {
		c.logger.Warn("dropped malformed announcements", slog.Int("dropped", dropped))
	}
	return items, nil
}

type response struct {
	status int
	body   []byte
	err    error
}

// FetchJSON issues GET {BaseURL}{path} and decodes the body into dst.
// Failures are returned as ErrTimeout, ErrNetwork or *HTTPError where they
// can be classified. Cancelling ctx aborts the request.
func (c *Client) FetchJSON(ctx context.Context, resource, path string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := c.cfg.Endpoint(path)
	start := time.Now()
	c.metrics.IncRequest(resource)

	id, release := c.transport.register(ctx)
	done := make(chan response, 1)
	go func() {
		defer release()
		done <- c.get(target, id)
	}()

	var resp response
	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch %s: %w", resource, ctx.Err())
	case resp = <-done:
	}
	c.metrics.ObserveDuration(time.Since(start))

	if resp.err != nil {
		classified := classifyError(resp.err)
		c.fail(resource, target, classified)
		return classified
	}
	if resp.status < http.StatusOK || resp.status >= http.StatusMultipleChoices {
		httpErr := &HTTPError{
			Resource:   resource,
			StatusCode: resp.status,
			Status:     http.StatusText(resp.status),
		}
		if httpErr.Status == "" {
			httpErr.Status = fmt.Sprintf("HTTP %d", resp.status)
		}
		c.fail(resource, target, httpErr)
		return httpErr
	}

	if err := json.Unmarshal(resp.body, dst); err != nil {
		decodeErr := fmt.Errorf("decode %s response: %w", resource, err)
		c.fail(resource, target, decodeErr)
		return decodeErr
	}

	c.logger.Debug("fetched collection",
		slog.String("collection", resource),
		slog.Int("bytes", len(resp.body)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (c *Client) get(target, callID string) response {
	collector := c.collector.Clone()
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true

	var resp response
	collector.OnResponse(func(r *colly.Response) {
		resp.status = r.StatusCode
		resp.body = r.Body
	})

	hdr := http.Header{}
	hdr.Set("User-Agent", collector.UserAgent)
	hdr.Set("Accept", "application/json")
	hdr.Set(callHeader, callID)
	if err := collector.Request(http.MethodGet, target, nil, nil, hdr); err != nil {
		resp.err = err
	}
	return resp
}

func (c *Client) fail(resource, target string, err error) {
	label := Label(err)
	c.metrics.IncError(label)
	c.logger.Error("request error",
		slog.String("collection", resource),
		slog.String("url", target),
		slog.String("category", label),
		slog.Any("error", err),
	)
}

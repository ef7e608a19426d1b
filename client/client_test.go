package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/aluiziolira/librosync/config"
	"github.com/aluiziolira/librosync/metrics"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const booksURL = "http://example.test/api/books"

func newTestClient(t *testing.T) (*Client, *httpmock.MockTransport, *metrics.Metrics) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"

	m := metrics.New()
	c, err := New(cfg, m, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	transport := httpmock.NewMockTransport()
	c.WithTransport(transport)
	return c, transport, m
}

func TestFetchBooksDecodesAndNormalizes(t *testing.T) {
	c, transport, m := newTestClient(t)
	body := `[
		{"_id":"1","title":" Dune ","author":"Frank Herbert","availableCount":2,"genre":["sci-fi"]},
		{"_id":"2","title":"Emma","author":"Jane Austen","availableCount":0},
		{"_id":"","title":"broken"}
	]`
	transport.RegisterResponder("GET", booksURL, httpmock.NewStringResponder(200, body))

	books, err := c.FetchBooks(context.Background())
	if err != nil {
		t.Fatalf("fetch books: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("books = %d, want 2", len(books))
	}
	if books[0].Title != "Dune" {
		t.Fatalf("title = %q, want trimmed Dune", books[0].Title)
	}
	if books[1].Genre == nil || len(books[1].Genre) != 0 {
		t.Fatalf("missing genre should normalize to empty slice, got %#v", books[1].Genre)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(Books)); got != 1 {
		t.Fatalf("requests = %v, want 1", got)
	}
}

func TestFetchAnnouncements(t *testing.T) {
	c, transport, _ := newTestClient(t)
	body := `[{"id":"a1","title":"Closed Monday","content":"Holiday","createdAt":"2024-05-01T08:00:00Z"}]`
	transport.RegisterResponder("GET", "http://example.test/api/announcements", httpmock.NewStringResponder(200, body))

	items, err := c.FetchAnnouncements(context.Background())
	if err != nil {
		t.Fatalf("fetch announcements: %v", err)
	}
	if len(items) != 1 || items[0].CreatedAt != "2024-05-01T08:00:00Z" {
		t.Fatalf("unexpected announcements: %+v", items)
	}
}

func TestFetchHTTPStatusError(t *testing.T) {
	tests := []struct {
		status int
		label  string
	}{
		{status: http.StatusNotFound, label: "not_found"},
		{status: http.StatusTooManyRequests, label: "rate_limited"},
		{status: http.StatusServiceUnavailable, label: "server"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			c, transport, m := newTestClient(t)
			transport.RegisterResponder("GET", booksURL, httpmock.NewStringResponder(tt.status, ""))

			_, err := c.FetchBooks(context.Background())
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("expected *HTTPError, got %v", err)
			}
			if httpErr.StatusCode != tt.status || httpErr.Status != http.StatusText(tt.status) {
				t.Fatalf("http error = %+v", httpErr)
			}
			if IsNetworkError(err) {
				t.Fatalf("http status error must not be network class")
			}
			if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(tt.label)); got != 1 {
				t.Fatalf("errors{%s} = %v, want 1", tt.label, got)
			}
		})
	}
}

func TestFetchTransportErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{name: "timeout", err: &net.DNSError{IsTimeout: true}, kind: KindTimeout},
		{name: "refused", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, kind: KindNetwork},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "example.test"}, kind: KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, transport, _ := newTestClient(t)
			transport.RegisterResponder("GET", booksURL, httpmock.NewErrorResponder(tt.err))

			_, err := c.FetchBooks(context.Background())
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := Classify(err); got != tt.kind {
				t.Fatalf("Classify = %v, want %v (err=%v)", got, tt.kind, err)
			}
			if !IsNetworkError(err) {
				t.Fatalf("expected network class for %v", err)
			}
		})
	}
}

func TestFetchMalformedBody(t *testing.T) {
	c, transport, _ := newTestClient(t)
	transport.RegisterResponder("GET", booksURL, httpmock.NewStringResponder(200, `{"not":"an array"`))

	_, err := c.FetchBooks(context.Background())
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if got := Classify(err); got != KindUnknown {
		t.Fatalf("Classify = %v, want unknown", got)
	}
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	c, transport, _ := newTestClient(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	transport.RegisterResponder("GET", booksURL, func(req *http.Request) (*http.Response, error) {
		<-release
		return httpmock.NewStringResponse(200, "[]"), nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.FetchBooks(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if Classify(err) != KindTimeout {
		t.Fatalf("deadline should classify as timeout")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("fetch did not return promptly: %v", elapsed)
	}
}

func TestFetchTimesOutAtConfiguredBound(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"
	cfg.Timeout = 100 * time.Millisecond
	c, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	transport := httpmock.NewMockTransport()
	c.WithTransport(transport)
	transport.RegisterResponder("GET", booksURL, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	start := time.Now()
	_, err = c.FetchBooks(context.Background())
	elapsed := time.Since(start)
	if Classify(err) != KindTimeout {
		t.Fatalf("Classify(%v) = %v, want timeout", err, Classify(err))
	}
	if got := UserMessage(err); got != "Request took too long. Please try again." {
		t.Fatalf("UserMessage = %q", got)
	}
	if elapsed < 90*time.Millisecond || elapsed > time.Second {
		t.Fatalf("elapsed = %v, want about %v", elapsed, cfg.Timeout)
	}
}

func TestFetchCancellationAbortsRequest(t *testing.T) {
	c, transport, _ := newTestClient(t)
	aborted := make(chan time.Time, 1)
	tagged := make(chan string, 1)
	transport.RegisterResponder("GET", booksURL, func(req *http.Request) (*http.Response, error) {
		tagged <- req.Header.Get(callHeader)
		<-req.Context().Done()
		aborted <- time.Now()
		return nil, req.Context().Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.FetchBooks(ctx)
		errc <- err
	}()

	if h := <-tagged; h != "" {
		t.Fatalf("call header leaked to the server: %q", h)
	}
	cancelled := time.Now()
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	select {
	case at := <-aborted:
		if d := at.Sub(cancelled); d > 500*time.Millisecond {
			t.Fatalf("request aborted %v after cancel", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("request kept running after the caller cancelled")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "timeout", err: ErrTimeout{Err: context.DeadlineExceeded}, want: "Request took too long. Please try again."},
		{name: "network", err: ErrNetwork{Err: errors.New("refused")}, want: "Network error. Please check your connection and try again."},
		{name: "http", err: &HTTPError{Resource: "books", StatusCode: 500, Status: "Internal Server Error"}, want: "Failed to fetch books: Internal Server Error"},
		{name: "other", err: errors.New("boom"), want: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Fatalf("UserMessage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, expected: "network"},
		{name: "forbidden", err: &HTTPError{StatusCode: http.StatusForbidden}, expected: "http"},
		{name: "not found", err: &HTTPError{StatusCode: http.StatusNotFound}, expected: "not_found"},
		{name: "other", err: errors.New("some other error"), expected: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(tt.err); got != tt.expected {
				t.Fatalf("Label(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

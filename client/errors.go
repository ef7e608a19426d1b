package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Kind is the coarse class of a fetch failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindTimeout
	KindHTTP
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// ErrTimeout indicates the request exceeded the configured bound and was aborted.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrNetwork indicates a connectivity failure (refused, reset, DNS, offline).
type ErrNetwork struct {
	Err error
}

func (e ErrNetwork) Error() string {
	return fmt.Errorf("network: %w", e.Err).Error()
}

func (e ErrNetwork) Unwrap() error {
	return e.Err
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Resource   string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetch %s: http %d %s", e.Resource, e.StatusCode, e.Status)
}

// Classify reports the class of err. Errors that were not produced by this
// package are inspected directly.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return KindTimeout
	}
	var network ErrNetwork
	if errors.As(err, &network) {
		return KindNetwork
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return KindHTTP
	}
	return rawKind(err)
}

// IsNetworkError reports whether err is connectivity related: a connection
// failure, an aborted (timed out) request or an offline host.
func IsNetworkError(err error) bool {
	switch Classify(err) {
	case KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}

// Label returns the metrics label for err.
func Label(err error) string {
	if err == nil {
		return "unknown"
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == 404:
			return "not_found"
		case httpErr.StatusCode == 429:
			return "rate_limited"
		case httpErr.StatusCode >= 500:
			return "server"
		default:
			return "http"
		}
	}
	return Classify(err).String()
}

// UserMessage converts err into the message shown in place of a collection.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch Classify(err) {
	case KindTimeout:
		return "Request took too long. Please try again."
	case KindNetwork:
		return "Network error. Please check your connection and try again."
	case KindHTTP:
		var httpErr *HTTPError
		errors.As(err, &httpErr)
		return fmt.Sprintf("Failed to fetch %s: %s", httpErr.Resource, httpErr.Status)
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "An unexpected error occurred."
}

func classifyError(err error) error {
	switch rawKind(err) {
	case KindTimeout:
		return ErrTimeout{Err: err}
	case KindNetwork:
		return ErrNetwork{Err: err}
	default:
		return err
	}
}

func rawKind(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetwork
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindNetwork
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindNetwork
	}
	return KindUnknown
}

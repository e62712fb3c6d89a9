package transport

import (
	"context"
	nethttp "net/http"
	"net/url"
	"time"
)

// Transport sends one HTTP request per call. Retrying is the caller's job.
type Transport interface {
	Send(ctx context.Context, method, rawURL string, opts *RequestOptions) (*Response, error)
}

// RequestOptions carries the per-request inputs the core forwards verbatim.
type RequestOptions struct {
	Headers map[string]string
	Query   url.Values
	Body    []byte
}

// Response is the raw platform answer. Bodies are fully read before return.
type Response struct {
	StatusCode int
	Headers    nethttp.Header
	Body       []byte
}

// Config holds the HTTP transport configuration.
type Config struct {
	// Timeout bounds a single request, connection included.
	Timeout time.Duration
	// UserAgent is sent with every request when non-empty.
	UserAgent string
	// DefaultHeaders are applied before per-request headers.
	DefaultHeaders map[string]string
	// RequestsPerSecond enables a client-side rate limiter when > 0.
	RequestsPerSecond float64
	// Burst is the limiter burst size; defaults to 1 when limiting is on.
	Burst int
	// LogPayloads enables debug logging of request/response bodies.
	LogPayloads bool
}

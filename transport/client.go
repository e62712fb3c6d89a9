package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/opsforge-io/conveyor/logger"
)

const (
	// DefaultTimeout is the default single-request timeout.
	DefaultTimeout = 30 * time.Second

	// HeaderRequestID is sent with every request for server-side correlation.
	HeaderRequestID = "X-Request-ID"
)

// httpTransport implements Transport on net/http.
type httpTransport struct {
	httpClient *nethttp.Client
	logger     logger.Logger
	config     *Config
	limiter    *rate.Limiter
}

// New creates an HTTP transport with the given configuration.
// A nil config uses defaults.
func New(log logger.Logger, cfg *Config) Transport {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &httpTransport{
		httpClient: &nethttp.Client{Timeout: cfg.Timeout},
		logger:     log,
		config:     cfg,
		limiter:    limiter,
	}
}

// Send performs exactly one HTTP request. A failure before any response is
// received comes back as a transient network error; responses of every
// status are returned as-is for the caller to classify.
func (t *httpTransport) Send(ctx context.Context, method, rawURL string, opts *RequestOptions) (*Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, NewTransientError("rate limiter wait interrupted", err)
		}
	}

	httpReq, err := t.buildRequest(ctx, method, rawURL, opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	t.logRequest(method, rawURL, opts)

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, NewTransientError("request timed out", err)
		}
		return nil, NewTransientError("request execution failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewTransientError("failed to read response body", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}
	t.logResponse(method, rawURL, resp, time.Since(start))
	return resp, nil
}

func (t *httpTransport) buildRequest(ctx context.Context, method, rawURL string, opts *RequestOptions) (*nethttp.Request, error) {
	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, NewTransientError("failed to create HTTP request", err)
	}

	if len(opts.Query) > 0 {
		q := httpReq.URL.Query()
		for key, values := range opts.Query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	for key, value := range t.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range opts.Headers {
		httpReq.Header.Set(key, value)
	}
	if t.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", t.config.UserAgent)
	}
	if httpReq.Header.Get("Content-Type") == "" && opts.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get(HeaderRequestID) == "" {
		httpReq.Header.Set(HeaderRequestID, uuid.NewString())
	}

	return httpReq, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// platformErrorBody is the lenient shape of platform error payloads.
type platformErrorBody struct {
	Message   string `json:"message"`
	ErrorType string `json:"errorType"`
	Error     *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Classify turns a non-2xx response into the matching transport error.
// It returns nil for 2xx responses.
func Classify(method, rawURL string, resp *Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == nethttp.StatusTooManyRequests:
		return NewRateLimitedError(method, rawURL)
	case resp.StatusCode >= 500:
		return NewServerError(resp.StatusCode, method, rawURL, resp.Body)
	default:
		errType, message := parsePlatformError(resp.Body)
		return NewClientError(resp.StatusCode, errType, message, method, rawURL)
	}
}

func parsePlatformError(body []byte) (errType, message string) {
	var parsed platformErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", string(body)
	}
	if parsed.Error != nil {
		return parsed.Error.Type, parsed.Error.Message
	}
	if parsed.Message == "" && parsed.ErrorType == "" {
		return "", string(body)
	}
	return parsed.ErrorType, parsed.Message
}

// Do sends one request and classifies the response, returning an error for
// any non-2xx status. It is the usual building block for retry attempt
// functions.
func Do(ctx context.Context, t Transport, method, rawURL string, opts *RequestOptions) (*Response, error) {
	resp, err := t.Send(ctx, method, rawURL, opts)
	if err != nil {
		return nil, err
	}
	if err := Classify(method, rawURL, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (t *httpTransport) logRequest(method, rawURL string, opts *RequestOptions) {
	if t.logger == nil {
		return
	}
	logEvent := t.logger.Debug().
		Str("direction", "outbound").
		Str("method", method).
		Str("url", rawURL)
	if t.config.LogPayloads && len(opts.Body) > 0 {
		logEvent = logEvent.Bytes("body", opts.Body)
	}
	logEvent.Msg("platform request")
}

func (t *httpTransport) logResponse(method, rawURL string, resp *Response, elapsed time.Duration) {
	if t.logger == nil {
		return
	}
	logEvent := t.logger.Debug().
		Str("direction", "inbound").
		Str("method", method).
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed)
	if t.config.LogPayloads && len(resp.Body) > 0 {
		logEvent = logEvent.Bytes("body", resp.Body)
	}
	logEvent.Msg("platform response")
}

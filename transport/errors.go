package transport

import (
	"errors"
	"fmt"
	nethttp "net/http"
)

// Class is the failure classification consumed by the retry executor.
type Class string

const (
	// ClassTransient is a connection or timeout failure that happened
	// before any response was received.
	ClassTransient Class = "transient_network"
	// ClassRateLimited is an HTTP 429 response.
	ClassRateLimited Class = "rate_limited"
	// ClassServer is an HTTP 5xx response.
	ClassServer Class = "server_error"
	// ClassClient is any other non-2xx response.
	ClassClient Class = "client_error"
	// ClassProtocol is a malformed or unexpected successful response body.
	ClassProtocol Class = "protocol_violation"
)

// Error is implemented by every failure the transport layer produces.
type Error interface {
	error
	Class() Class
	Retryable() bool
}

// transientError wraps a connection/timeout failure.
type transientError struct {
	message string
	wrapped error
}

func (e *transientError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("transient network error: %s: %v", e.message, e.wrapped)
	}
	return fmt.Sprintf("transient network error: %s", e.message)
}

func (e *transientError) Class() Class    { return ClassTransient }
func (e *transientError) Retryable() bool { return true }
func (e *transientError) Unwrap() error   { return e.wrapped }

// rateLimitedError is a 429 response.
type rateLimitedError struct {
	method string
	url    string
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %s %s (status: 429)", e.method, e.url)
}

func (e *rateLimitedError) Class() Class    { return ClassRateLimited }
func (e *rateLimitedError) Retryable() bool { return true }
func (e *rateLimitedError) StatusCode() int { return nethttp.StatusTooManyRequests }

// serverError is a 5xx response.
type serverError struct {
	statusCode int
	method     string
	url        string
	body       []byte
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error: %s %s (status: %d)", e.method, e.url, e.statusCode)
}

func (e *serverError) Class() Class    { return ClassServer }
func (e *serverError) Retryable() bool { return true }
func (e *serverError) StatusCode() int { return e.statusCode }
func (e *serverError) Body() []byte    { return e.body }

// ClientError is a fatal non-2xx response. It carries the platform error
// type and message parsed from the body so callers can diagnose without
// re-deriving them.
type ClientError struct {
	StatusCode        int
	PlatformErrorType string
	Message           string
	Method            string
	URL               string
}

func (e *ClientError) Error() string {
	if e.PlatformErrorType != "" {
		return fmt.Sprintf("client error: %s %s (status: %d, type: %s): %s",
			e.Method, e.URL, e.StatusCode, e.PlatformErrorType, e.Message)
	}
	return fmt.Sprintf("client error: %s %s (status: %d): %s",
		e.Method, e.URL, e.StatusCode, e.Message)
}

func (e *ClientError) Class() Class    { return ClassClient }
func (e *ClientError) Retryable() bool { return false }

// protocolError is a client-side violation: the platform answered 2xx but
// the body is not what the caller required.
type protocolError struct {
	message string
	wrapped error
}

func (e *protocolError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("protocol violation: %s: %v", e.message, e.wrapped)
	}
	return fmt.Sprintf("protocol violation: %s", e.message)
}

func (e *protocolError) Class() Class    { return ClassProtocol }
func (e *protocolError) Retryable() bool { return false }
func (e *protocolError) Unwrap() error   { return e.wrapped }

// NewTransientError creates a transient network error.
func NewTransientError(message string, wrapped error) Error {
	return &transientError{message: message, wrapped: wrapped}
}

// NewRateLimitedError creates a rate-limited (429) error.
func NewRateLimitedError(method, url string) Error {
	return &rateLimitedError{method: method, url: url}
}

// NewServerError creates a 5xx server error.
func NewServerError(statusCode int, method, url string, body []byte) Error {
	return &serverError{statusCode: statusCode, method: method, url: url, body: body}
}

// NewClientError creates a fatal client error.
func NewClientError(statusCode int, platformErrorType, message, method, url string) Error {
	return &ClientError{
		StatusCode:        statusCode,
		PlatformErrorType: platformErrorType,
		Message:           message,
		Method:            method,
		URL:               url,
	}
}

// NewProtocolError creates a protocol-violation error for a malformed
// successful response.
func NewProtocolError(message string, wrapped error) Error {
	return &protocolError{message: message, wrapped: wrapped}
}

// ClassOf returns the classification of err, or "" when err did not
// originate in this layer.
func ClassOf(err error) Class {
	var terr Error
	if errors.As(err, &terr) {
		return terr.Class()
	}
	return ""
}

// Retryable reports whether err is a retryable transport failure.
// Errors from outside this layer are never retryable.
func Retryable(err error) bool {
	var terr Error
	return errors.As(err, &terr) && terr.Retryable()
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, statusCode int) bool {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode() == statusCode
	}
	var cerr *ClientError
	return errors.As(err, &cerr) && cerr.StatusCode == statusCode
}

// IsNotFound reports whether err is a 404 client error. The job waiter
// uses this to tolerate read-replica lag.
func IsNotFound(err error) bool {
	var cerr *ClientError
	return errors.As(err, &cerr) && cerr.StatusCode == nethttp.StatusNotFound
}

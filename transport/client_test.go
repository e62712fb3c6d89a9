package transport

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsforge-io/conveyor/logger"
)

func testLogger() logger.Logger {
	return logger.New("error", false)
}

func TestSendReturnsResponseVerbatim(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("X-Server", "conveyor-test")
		w.WriteHeader(nethttp.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"ds-1"}}`))
	}))
	defer server.Close()

	tr := New(testLogger(), nil)
	resp, err := tr.Send(context.Background(), nethttp.MethodPost, server.URL, &RequestOptions{Body: []byte(`{}`)})

	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusCreated, resp.StatusCode)
	assert.Equal(t, "conveyor-test", resp.Headers.Get("X-Server"))
	assert.JSONEq(t, `{"data":{"id":"ds-1"}}`, string(resp.Body))
}

func TestSendDoesNotClassifyStatus(t *testing.T) {
	// Send is one wire call: even a 500 comes back as a response, not an
	// error, so the retry layer sees exactly one attempt per call.
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusInternalServerError)
	}))
	defer server.Close()

	tr := New(testLogger(), nil)
	resp, err := tr.Send(context.Background(), nethttp.MethodGet, server.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusInternalServerError, resp.StatusCode)
}

func TestSendAppliesHeadersAndQuery(t *testing.T) {
	var gotHeader, gotRequestID, gotContentType string
	var gotQuery url.Values
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gotHeader = r.Header.Get("X-API-Key")
		gotRequestID = r.Header.Get(HeaderRequestID)
		gotContentType = r.Header.Get("Content-Type")
		gotQuery = r.URL.Query()
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	tr := New(testLogger(), &Config{DefaultHeaders: map[string]string{"X-API-Key": "secret"}})
	_, err := tr.Send(context.Background(), nethttp.MethodPost, server.URL, &RequestOptions{
		Query: url.Values{"offset": []string{"25"}},
		Body:  []byte(`{}`),
	})

	require.NoError(t, err)
	assert.Equal(t, "secret", gotHeader)
	assert.NotEmpty(t, gotRequestID, "request ID header should be generated")
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "25", gotQuery.Get("offset"))
}

func TestSendConnectionFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(nethttp.NotFoundHandler())
	server.Close() // nothing listening anymore

	tr := New(testLogger(), nil)
	_, err := tr.Send(context.Background(), nethttp.MethodGet, server.URL, nil)

	require.Error(t, err)
	assert.Equal(t, ClassTransient, ClassOf(err))
	assert.True(t, Retryable(err))
}

func TestSendTimeoutIsTransient(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	tr := New(testLogger(), &Config{Timeout: 20 * time.Millisecond})
	_, err := tr.Send(context.Background(), nethttp.MethodGet, server.URL, nil)

	require.Error(t, err)
	assert.Equal(t, ClassTransient, ClassOf(err))
}

func TestSendRateLimiterSmoothsBursts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	tr := New(testLogger(), &Config{RequestsPerSecond: 50, Burst: 1})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := tr.Send(context.Background(), nethttp.MethodGet, server.URL, nil)
		require.NoError(t, err)
	}

	// 3 calls at 50 rps with burst 1 needs at least ~40ms.
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		resp  *Response
		class Class
	}{
		{"success is nil", &Response{StatusCode: 200}, ""},
		{"created is nil", &Response{StatusCode: 201}, ""},
		{"429", &Response{StatusCode: 429}, ClassRateLimited},
		{"500", &Response{StatusCode: 500}, ClassServer},
		{"503", &Response{StatusCode: 503}, ClassServer},
		{"404", &Response{StatusCode: 404}, ClassClient},
		{"422", &Response{StatusCode: 422}, ClassClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify("GET", "/jobs/1", tt.resp)
			if tt.class == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.class, ClassOf(err))
		})
	}
}

func TestClassifyParsesPlatformErrorBody(t *testing.T) {
	t.Run("nested error object", func(t *testing.T) {
		resp := &Response{
			StatusCode: 409,
			Body:       []byte(`{"error":{"type":"Conflict","message":"dataset is locked"}}`),
		}
		err := Classify("PATCH", "/datasets/7", resp)

		var cerr *ClientError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, "Conflict", cerr.PlatformErrorType)
		assert.Equal(t, "dataset is locked", cerr.Message)
	})

	t.Run("flat error body", func(t *testing.T) {
		resp := &Response{
			StatusCode: 400,
			Body:       []byte(`{"errorType":"InvalidRequest","message":"bad field"}`),
		}
		err := Classify("POST", "/queues", resp)

		var cerr *ClientError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, "InvalidRequest", cerr.PlatformErrorType)
	})

	t.Run("non-JSON body falls back to raw text", func(t *testing.T) {
		resp := &Response{StatusCode: 403, Body: []byte("forbidden")}
		err := Classify("GET", "/jobs/1", resp)

		var cerr *ClientError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, "forbidden", cerr.Message)
	})
}

func TestDoClassifies(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := Do(context.Background(), New(testLogger(), nil), nethttp.MethodGet, server.URL, nil)
	assert.Equal(t, ClassRateLimited, ClassOf(err))
}

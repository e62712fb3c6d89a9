// Package transport is the network collaborator of the orchestration core.
// It issues exactly one HTTP request per Send call and classifies failures
// into the taxonomy the retry executor understands:
//
//   - transient network failures (no response received)
//   - HTTP 429 rate limiting
//   - HTTP 5xx server errors
//   - any other non-2xx client error
//   - protocol violations (malformed success bodies, reported by callers)
//
// The first three are retryable; the last two are fatal. Retrying itself
// is never done here: the retry package owns attempt scheduling, and
// transport guarantees one wire call per Send so that attempt accounting
// stays truthful.
//
// An optional client-side rate limiter (golang.org/x/time/rate) can be
// configured to smooth request bursts before the platform throttles them.
package transport

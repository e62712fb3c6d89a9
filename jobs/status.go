// Package jobs blocks on asynchronous platform jobs until they reach a
// terminal state, using server-side long-polling and tolerating the
// replica lag window in which a freshly created job is not yet visible.
package jobs

import (
	"encoding/json"

	"github.com/opsforge-io/conveyor/transport"
)

// Status is a job's lifecycle state as reported by the platform.
type Status string

const (
	StatusReady     Status = "READY"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusTimingOut Status = "TIMING_OUT"
	StatusTimedOut  Status = "TIMED_OUT"
	StatusAborting  Status = "ABORTING"
	StatusAborted   Status = "ABORTED"
)

// Terminal reports whether no further state transition can occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTimedOut, StatusAborted:
		return true
	}
	return false
}

// Known reports whether s is one of the platform's documented statuses.
func (s Status) Known() bool {
	switch s {
	case StatusReady, StatusRunning, StatusSucceeded, StatusFailed,
		StatusTimingOut, StatusTimedOut, StatusAborting, StatusAborted:
		return true
	}
	return false
}

// Snapshot is one observation of a job. Raw keeps the undecoded payload for
// callers that need more than the status.
type Snapshot struct {
	JobID  string
	Status Status
	Raw    json.RawMessage
}

// jobBody matches the two envelope shapes the platform uses: the job object
// nested under "data", or at the top level.
type jobBody struct {
	Data *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ParseSnapshot decodes a job response body into a Snapshot. A body that
// cannot be decoded, or that lacks a recognizable status, is a protocol
// violation: the call succeeded on the wire but the answer is unusable.
func ParseSnapshot(body []byte) (*Snapshot, error) {
	var parsed jobBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, transport.NewProtocolError("malformed job body", err)
	}

	id, status := parsed.ID, parsed.Status
	if parsed.Data != nil {
		id, status = parsed.Data.ID, parsed.Data.Status
	}
	if status == "" {
		return nil, transport.NewProtocolError("job body missing status field", nil)
	}

	s := Status(status)
	if !s.Known() {
		return nil, transport.NewProtocolError("unknown job status "+status, nil)
	}

	return &Snapshot{JobID: id, Status: s, Raw: body}, nil
}

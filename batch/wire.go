package batch

import (
	"encoding/json"

	"github.com/opsforge-io/conveyor/transport"
)

// requestEnvelope is the platform's bulk request shape.
type requestEnvelope struct {
	Items []Item `json:"items"`
}

// resultBody matches the two envelope shapes bulk endpoints answer with:
// the result nested under "data", or at the top level.
type resultBody struct {
	Data *struct {
		Processed   []json.RawMessage `json:"processedRequests"`
		Unprocessed []json.RawMessage `json:"unprocessedRequests"`
	} `json:"data"`
	Processed   []json.RawMessage `json:"processedRequests"`
	Unprocessed []json.RawMessage `json:"unprocessedRequests"`
}

// MarshalItems serializes one batch into the platform's bulk request body.
func MarshalItems(items []Item) ([]byte, error) {
	return json.Marshal(requestEnvelope{Items: items})
}

// ParseResult decodes a bulk response body. A body that cannot be decoded
// is a protocol violation; missing result lists decode as empty.
func ParseResult(body []byte) (*Result, error) {
	var parsed resultBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, transport.NewProtocolError("malformed batch result body", err)
	}

	if parsed.Data != nil {
		return &Result{Processed: parsed.Data.Processed, Unprocessed: parsed.Data.Unprocessed}, nil
	}
	return &Result{Processed: parsed.Processed, Unprocessed: parsed.Unprocessed}, nil
}

// Package batch splits ordered item lists into platform-legal chunks and
// sends them with bounded concurrency, aggregating per-batch results.
package batch

import "encoding/json"

// Item is one opaque, serializable unit with a known byte size.
type Item interface {
	ByteSize() int
}

// Raw is a pre-serialized item.
type Raw []byte

// ByteSize returns the serialized length.
func (r Raw) ByteSize() int { return len(r) }

// MarshalJSON passes the pre-serialized bytes through.
func (r Raw) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

var _ json.Marshaler = Raw(nil)

// Constraints bound one batch. Zero means unconstrained for that axis.
type Constraints struct {
	MaxCount int
	MaxBytes int
}

// Split walks items in order, greedily accumulating batches that satisfy
// the constraints. A batch closes when the next item would exceed MaxCount
// or MaxBytes; once closed, a boundary never moves. A single item larger
// than MaxBytes forms a batch of one rather than failing.
//
// Concatenating the returned batches in order reproduces items exactly.
func Split(items []Item, c Constraints) [][]Item {
	if len(items) == 0 {
		return nil
	}

	var (
		batches  [][]Item
		current  []Item
		curBytes int
	)

	for _, item := range items {
		size := item.ByteSize()
		overCount := c.MaxCount > 0 && len(current)+1 > c.MaxCount
		overBytes := c.MaxBytes > 0 && curBytes+size > c.MaxBytes
		if len(current) > 0 && (overCount || overBytes) {
			batches = append(batches, current)
			current = nil
			curBytes = 0
		}
		current = append(current, item)
		curBytes += size
	}

	return append(batches, current)
}

// Package record defines the unit of stored history under a key and the
// ordered, duplicate-free set the history reader returns.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/relaykv/internal/envelope"
)

// ErrMalformedSnapshot is returned when a snapshot payload cannot be parsed.
var ErrMalformedSnapshot = errors.New("malformed snapshot payload")

// Record is one timestamped, content-addressed write.
// The JSON field names are the snapshot payload format and must not change.
type Record struct {
	CreatedAt uint64 `json:"created_at"`
	Content   string `json:"content"`
	ID        string `json:"event_id"`
}

// New creates a Record.
func New(createdAt uint64, content, id string) Record {
	return Record{CreatedAt: createdAt, Content: content, ID: id}
}

// FromEnvelope copies the timestamp, content and ID of e.
func FromEnvelope(e envelope.Envelope) Record {
	return Record{CreatedAt: e.CreatedAt, Content: e.Content, ID: e.ID}
}

// Compare orders records by CreatedAt ascending, ties broken by ID.
// Two distinct writes sharing a timestamp are both kept.
func Compare(a, b Record) int {
	switch {
	case a.CreatedAt < b.CreatedAt:
		return -1
	case a.CreatedAt > b.CreatedAt:
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

// Equal reports whether a and b are the same physical write.
func Equal(a, b Record) bool {
	return a.ID == b.ID
}

// MarshalSnapshot serializes records as a snapshot payload (a JSON array).
// An empty set serializes as "[]".
func MarshalSnapshot(records []Record) (string, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}

// UnmarshalSnapshot parses a snapshot payload.
func UnmarshalSnapshot(payload string) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if slices.ContainsFunc(records, func(r Record) bool { return r.ID == "" }) {
		return nil, fmt.Errorf("%w: record without event_id", ErrMalformedSnapshot)
	}
	return records, nil
}

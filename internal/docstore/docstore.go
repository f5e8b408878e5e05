// Package docstore defines the document database the record mapping layer
// talks to: schemaless nested documents grouped in collections, with ids and
// timestamps assigned by the store itself.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get and Update when no document has the given id.
var ErrNotFound = errors.New("document not found")

// TimestampLayout is the encoding of server-assigned timestamps inside documents.
const TimestampLayout = time.RFC3339Nano

// Snapshot is a document as read back from the store. Data holds JSON-decoded
// values (map[string]any, []any, string, float64, bool, nil).
type Snapshot struct {
	ID   string
	Data map[string]any
}

// Filter is an equality predicate on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query is a filtered, ordered, limited read of one collection.
type Query struct {
	Where   []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Store is the document database.
type Store interface {
	// Add writes a new document and returns its store-assigned id. Every field
	// named in serverTimestamps is set to the store's current time.
	Add(ctx context.Context, collection string, fields map[string]any, serverTimestamps ...string) (string, error)
	Get(ctx context.Context, collection, id string) (*Snapshot, error)
	List(ctx context.Context, collection string) ([]Snapshot, error)
	Query(ctx context.Context, collection string, q Query) ([]Snapshot, error)
	// Update merges fields into the top level of an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
}

// Normalize converts arbitrary Go values into their JSON-decoded shape so
// every backend stores and returns the same representation.
func Normalize(fields map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// FormatTimestamp encodes t the way server timestamps are stored.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp decodes a stored timestamp. ok is false when v is missing or
// not a timestamp.
func ParseTimestamp(v any) (time.Time, bool) {
	s, isString := v.(string)
	if !isString || s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

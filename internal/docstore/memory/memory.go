package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/humanplus/posture-console/internal/docstore"
)

// Store is an in-process document store. Documents are kept in their
// JSON-decoded shape so reads match what the Postgres store returns.
type Store struct {
	mu sync.RWMutex

	// collection -> id -> document
	docs map[string]map[string]map[string]any

	now   func() time.Time
	newID func() string
}

type Option func(*Store)

// WithClock overrides the server clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides id assignment.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		docs:  map[string]map[string]map[string]any{},
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ docstore.Store = (*Store)(nil)

func (s *Store) Add(_ context.Context, collection string, fields map[string]any, serverTimestamps ...string) (string, error) {
	doc, err := docstore.Normalize(fields)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := docstore.FormatTimestamp(s.now())
	for _, f := range serverTimestamps {
		doc[f] = ts
	}

	if s.docs[collection] == nil {
		s.docs[collection] = map[string]map[string]any{}
	}
	id := s.newID()
	if _, exists := s.docs[collection][id]; exists {
		return "", fmt.Errorf("document %s/%s already exists", collection, id)
	}
	s.docs[collection][id] = doc
	return id, nil
}

func (s *Store) Get(_ context.Context, collection, id string) (*docstore.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[collection][id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return &docstore.Snapshot{ID: id, Data: copyDoc(doc)}, nil
}

func (s *Store) List(_ context.Context, collection string) ([]docstore.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]docstore.Snapshot, 0, len(s.docs[collection]))
	for id, doc := range s.docs[collection] {
		out = append(out, docstore.Snapshot{ID: id, Data: copyDoc(doc)})
	}
	return out, nil
}

func (s *Store) Query(_ context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	where := make([]docstore.Filter, 0, len(q.Where))
	for _, f := range q.Where {
		norm, err := docstore.Normalize(map[string]any{"v": f.Value})
		if err != nil {
			return nil, err
		}
		where = append(where, docstore.Filter{Field: f.Field, Value: norm["v"]})
	}

	s.mu.RLock()
	out := make([]docstore.Snapshot, 0)
	for id, doc := range s.docs[collection] {
		if matches(doc, where) {
			out = append(out, docstore.Snapshot{ID: id, Data: copyDoc(doc)})
		}
	}
	s.mu.RUnlock()

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			return less(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy], q.Desc)
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) Update(_ context.Context, collection, id string, fields map[string]any) error {
	patch, err := docstore.Normalize(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[collection][id]
	if !ok {
		return docstore.ErrNotFound
	}
	for k, v := range patch {
		doc[k] = v
	}
	return nil
}

func matches(doc map[string]any, where []docstore.Filter) bool {
	for _, f := range where {
		if !reflect.DeepEqual(doc[f.Field], f.Value) {
			return false
		}
	}
	return true
}

// less puts timestamps first in time order, then other values by string
// form. Missing values always sort last, mirroring NULLS LAST.
func less(a, b any, desc bool) bool {
	if a == nil || b == nil {
		return a != nil && b == nil
	}
	ta, okA := docstore.ParseTimestamp(a)
	tb, okB := docstore.ParseTimestamp(b)
	if okA != okB {
		return okA
	}
	if okA {
		if desc {
			return ta.After(tb)
		}
		return ta.Before(tb)
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	if desc {
		return sa > sb
	}
	return sa < sb
}

// copyDoc returns a deep copy so callers cannot mutate stored documents.
func copyDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyDoc(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	default:
		return v
	}
}

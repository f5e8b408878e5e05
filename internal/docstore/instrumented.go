package docstore

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/humanplus/posture-console/pkg/metrics"
)

type instrumented struct {
	next    Store
	metrics *metrics.Metrics
}

// WithMetrics wraps a store so every call is counted and timed.
func WithMetrics(next Store, m *metrics.Metrics) Store {
	return &instrumented{next: next, metrics: m}
}

func (s *instrumented) observe(op string, err error) {
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	s.metrics.StoreOperations.WithLabelValues(op, status).Inc()
}

func (s *instrumented) Add(ctx context.Context, collection string, fields map[string]any, serverTimestamps ...string) (string, error) {
	timer := prometheus.NewTimer(s.metrics.StoreLatency.WithLabelValues("add"))
	defer timer.ObserveDuration()
	id, err := s.next.Add(ctx, collection, fields, serverTimestamps...)
	s.observe("add", err)
	return id, err
}

func (s *instrumented) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	timer := prometheus.NewTimer(s.metrics.StoreLatency.WithLabelValues("get"))
	defer timer.ObserveDuration()
	snap, err := s.next.Get(ctx, collection, id)
	s.observe("get", err)
	return snap, err
}

func (s *instrumented) List(ctx context.Context, collection string) ([]Snapshot, error) {
	timer := prometheus.NewTimer(s.metrics.StoreLatency.WithLabelValues("list"))
	defer timer.ObserveDuration()
	snaps, err := s.next.List(ctx, collection)
	s.observe("list", err)
	return snaps, err
}

func (s *instrumented) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	timer := prometheus.NewTimer(s.metrics.StoreLatency.WithLabelValues("query"))
	defer timer.ObserveDuration()
	snaps, err := s.next.Query(ctx, collection, q)
	s.observe("query", err)
	return snaps, err
}

func (s *instrumented) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	timer := prometheus.NewTimer(s.metrics.StoreLatency.WithLabelValues("update"))
	defer timer.ObserveDuration()
	err := s.next.Update(ctx, collection, id, fields)
	s.observe("update", err)
	return err
}

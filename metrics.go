package projectfs

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// storeMetrics holds the collectors shared by every instrumented store on
// one registry.
type storeMetrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newStoreMetrics(reg prometheus.Registerer) *storeMetrics {
	m := &storeMetrics{
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectfs_store_operations_total",
				Help: "Total number of backing store operations",
			},
			[]string{"op", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "projectfs_store_operation_duration_seconds",
				Help:    "Backing store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
	m.ops = register(reg, m.ops)
	m.duration = register(reg, m.duration)
	return m
}

// register adds c to reg, reusing the collector already registered under the
// same descriptor so several FS values can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *storeMetrics) observe(op string, start time.Time, err error) {
	m.ops.WithLabelValues(op, status(err)).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// status buckets an error into a low-cardinality label value.
func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "exists"
	case errors.Is(err, ErrParentMissing):
		return "parent_missing"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// instrumentedStore records every call it forwards to the wrapped Store.
type instrumentedStore struct {
	next    Store
	metrics *storeMetrics
}

func instrument(next Store, reg prometheus.Registerer) Store {
	return &instrumentedStore{next: next, metrics: newStoreMetrics(reg)}
}

func (s *instrumentedStore) ReadFile(ctx context.Context, name string) (data []byte, err error) {
	defer func(start time.Time) { s.metrics.observe("read", start, err) }(time.Now())
	return s.next.ReadFile(ctx, name)
}

func (s *instrumentedStore) WriteFile(ctx context.Context, name string, data []byte) (err error) {
	defer func(start time.Time) { s.metrics.observe("write", start, err) }(time.Now())
	return s.next.WriteFile(ctx, name, data)
}

func (s *instrumentedStore) Mkdir(ctx context.Context, name string) (err error) {
	defer func(start time.Time) { s.metrics.observe("mkdir", start, err) }(time.Now())
	return s.next.Mkdir(ctx, name)
}

func (s *instrumentedStore) ReadDir(ctx context.Context, name string) (names []string, err error) {
	defer func(start time.Time) { s.metrics.observe("readdir", start, err) }(time.Now())
	return s.next.ReadDir(ctx, name)
}

func (s *instrumentedStore) Stat(ctx context.Context, name string) (info Info, err error) {
	defer func(start time.Time) { s.metrics.observe("stat", start, err) }(time.Now())
	return s.next.Stat(ctx, name)
}

func (s *instrumentedStore) Rename(ctx context.Context, oldname, newname string) (err error) {
	defer func(start time.Time) { s.metrics.observe("rename", start, err) }(time.Now())
	return s.next.Rename(ctx, oldname, newname)
}

func (s *instrumentedStore) Unlink(ctx context.Context, name string) (err error) {
	defer func(start time.Time) { s.metrics.observe("unlink", start, err) }(time.Now())
	return s.next.Unlink(ctx, name)
}

func (s *instrumentedStore) Rmdir(ctx context.Context, name string) (err error) {
	defer func(start time.Time) { s.metrics.observe("rmdir", start, err) }(time.Now())
	return s.next.Rmdir(ctx, name)
}

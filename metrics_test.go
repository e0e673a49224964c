package projectfs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// opCount returns the projectfs_store_operations_total sample for op and status.
func opCount(t *testing.T, reg prometheus.Gatherer, op, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != "projectfs_store_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["op"] == op && labels["status"] == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	fsys, _ := newTestFS(t, WithMetrics(reg))

	mustWrite(t, fsys, "/a/b.txt", "x")
	assert.Equal(t, 1.0, opCount(t, reg, "write", "ok"))
	assert.Equal(t, 1.0, opCount(t, reg, "mkdir", "ok"))

	_, err := fsys.ReadFile(ctx, "/missing")
	require.Error(t, err)
	assert.Equal(t, 1.0, opCount(t, reg, "read", "not_found"))

	_, err = fsys.WriteFile(ctx, "/a/b.txt", nil, WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, opCount(t, reg, "stat", "ok"))
	assert.Equal(t, 1.0, opCount(t, reg, "stat", "not_found"))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = fsys.ReadFile(canceled, "/a/b.txt")
	require.Error(t, err)
	assert.Equal(t, 1.0, opCount(t, reg, "read", "canceled"))

	mustWriteVirtual(t, fsys, "/v.txt", "x")
	assert.Equal(t, 2.0, opCount(t, reg, "write", "ok"), "virtual writes never reach the store")
}

func TestMetricsSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	one, _ := newTestFS(t, WithMetrics(reg))
	two, _ := newTestFS(t, WithMetrics(reg))

	mustWrite(t, one, "/a.txt", "")
	mustWrite(t, two, "/a.txt", "")
	assert.Equal(t, 2.0, opCount(t, reg, "write", "ok"))
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{pathErr("stat", "/x", ErrNotFound), "not_found"},
		{pathErr("mkdir", "/x", ErrAlreadyExists), "exists"},
		{pathErr("write", "/x/y", ErrParentMissing), "parent_missing"},
		{fmt.Errorf("wrapped: %w", context.Canceled), "canceled"},
		{context.DeadlineExceeded, "canceled"},
		{errors.New("disk on fire"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status(tt.err), "%v", tt.err)
	}
}

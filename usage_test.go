package projectfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskUsage(t *testing.T) {
	ctx := context.Background()
	fsys, _ := newTestFS(t)
	mustWrite(t, fsys, "/p/a.txt", "12345")
	mustWrite(t, fsys, "/p/src/b.txt", "123")
	_, err := fsys.Mkdir(ctx, "/p/empty", MkdirOptions{Overwrite: true})
	require.NoError(t, err)
	mustWriteVirtual(t, fsys, "/p/src/draft.ts", "12")
	mustWriteVirtual(t, fsys, "/p/gen/x.json", "1")

	u, err := fsys.DiskUsage(ctx, "/p")
	require.NoError(t, err)
	assert.Equal(t, Usage{
		Files:        2,
		Directories:  2,
		Bytes:        8,
		VirtualFiles: 2,
		VirtualBytes: 3,
	}, u)

	u, err = fsys.DiskUsage(ctx, "/p/a.txt")
	require.NoError(t, err)
	assert.Equal(t, Usage{Files: 1, Bytes: 5}, u)

	_, err = fsys.DiskUsage(ctx, "/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

package projectfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersist(t *testing.T) {
	ctx := context.Background()
	fsys, store := newTestFS(t)
	mustWriteVirtual(t, fsys, "/proj/build/out.json", "{}")

	require.NoError(t, fsys.Persist(ctx, "/proj/build/out.json"))

	assert.False(t, fsys.IsVirtual("/proj/build/out.json"))
	data, err := store.ReadFile(ctx, "/proj/build/out.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	assert.ErrorIs(t, fsys.Persist(ctx, "/proj/build/out.json"), ErrNotFound, "no longer virtual")
}

func TestPersistReplacesStoreFile(t *testing.T) {
	ctx := context.Background()
	fsys, _ := newTestFS(t)
	mustWrite(t, fsys, "/a.txt", "disk")
	mustWriteVirtual(t, fsys, "/a.txt", "memory")

	require.NoError(t, fsys.Persist(ctx, "/a.txt"))
	assert.Equal(t, "memory", mustRead(t, fsys, "/a.txt"))
}

func TestPersistOverDirectory(t *testing.T) {
	ctx := context.Background()
	fsys, _ := newTestFS(t)
	_, err := fsys.Mkdir(ctx, "/d", MkdirOptions{Overwrite: true})
	require.NoError(t, err)
	mustWriteVirtual(t, fsys, "/d", "x")

	assert.ErrorIs(t, fsys.Persist(ctx, "/d"), ErrIsDir)
	assert.True(t, fsys.IsVirtual("/d"), "failed persist keeps the entry")
}

func TestPersistAll(t *testing.T) {
	ctx := context.Background()
	fsys, _ := newTestFS(t)
	mustWriteVirtual(t, fsys, "/b/two.txt", "2")
	mustWriteVirtual(t, fsys, "/a/one.txt", "1")

	done, err := fsys.PersistAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/one.txt", "/b/two.txt"}, done)
	assert.Empty(t, fsys.VirtualFiles())
	assert.Equal(t, "1", mustRead(t, fsys, "/a/one.txt"))
	assert.Equal(t, "2", mustRead(t, fsys, "/b/two.txt"))
}

// Package storetest holds the behavior every projectfs.Store must show, as a
// reusable test suite, plus a fault-injecting Store wrapper.
package storetest

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	projectfs "github.com/nujan-io/nujan-ide-sub000"
)

// Run checks the Store contract against stores returned by newStore. Every
// subtest gets a fresh, empty store.
func Run(t *testing.T, newStore func(t *testing.T) projectfs.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("EmptyRoot", func(t *testing.T) {
		s := newStore(t)
		names, err := s.ReadDir(ctx, "/")
		require.NoError(t, err)
		assert.Empty(t, names)

		info, err := s.Stat(ctx, "/")
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("WriteRead", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.WriteFile(ctx, "/a.txt", []byte("hello")))

		data, err := s.ReadFile(ctx, "/a.txt")
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))

		require.NoError(t, s.WriteFile(ctx, "/a.txt", []byte("bye")))
		data, err = s.ReadFile(ctx, "/a.txt")
		require.NoError(t, err)
		assert.Equal(t, "bye", string(data), "write replaces content")

		require.NoError(t, s.WriteFile(ctx, "/empty", nil))
		data, err = s.ReadFile(ctx, "/empty")
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("WriteParentMissing", func(t *testing.T) {
		s := newStore(t)
		err := s.WriteFile(ctx, "/missing/a.txt", []byte("x"))
		assert.ErrorIs(t, err, projectfs.ErrParentMissing)
	})

	t.Run("WriteOverDirectory", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Mkdir(ctx, "/d"))
		assert.Error(t, s.WriteFile(ctx, "/d", []byte("x")))
	})

	t.Run("ReadMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.ReadFile(ctx, "/nope")
		assert.ErrorIs(t, err, projectfs.ErrNotFound)
	})

	t.Run("Mkdir", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Mkdir(ctx, "/proj"))
		require.NoError(t, s.Mkdir(ctx, "/proj/src"))

		assert.ErrorIs(t, s.Mkdir(ctx, "/proj"), projectfs.ErrAlreadyExists)
		assert.ErrorIs(t, s.Mkdir(ctx, "/x/y"), projectfs.ErrParentMissing)

		require.NoError(t, s.WriteFile(ctx, "/proj/file", nil))
		assert.ErrorIs(t, s.Mkdir(ctx, "/proj/file"), projectfs.ErrAlreadyExists)
	})

	t.Run("ReadDir", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Mkdir(ctx, "/p"))
		require.NoError(t, s.Mkdir(ctx, "/p/sub"))
		require.NoError(t, s.WriteFile(ctx, "/p/b.txt", nil))
		require.NoError(t, s.WriteFile(ctx, "/p/a.txt", nil))
		require.NoError(t, s.WriteFile(ctx, "/p/sub/deep.txt", nil))

		names, err := s.ReadDir(ctx, "/p")
		require.NoError(t, err)
		if diff := cmp.Diff([]string{"a.txt", "b.txt", "sub"}, names); diff != "" {
			t.Errorf("ReadDir mismatch (-want +got):\n%s", diff)
		}

		_, err = s.ReadDir(ctx, "/p/a.txt")
		assert.ErrorIs(t, err, projectfs.ErrNotDir)

		_, err = s.ReadDir(ctx, "/nope")
		assert.ErrorIs(t, err, projectfs.ErrNotFound)
	})

	t.Run("Stat", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Mkdir(ctx, "/d"))
		require.NoError(t, s.WriteFile(ctx, "/d/f", []byte("12345")))

		info, err := s.Stat(ctx, "/d")
		require.NoError(t, err)
		assert.Equal(t, projectfs.KindDirectory, info.Kind)

		info, err = s.Stat(ctx, "/d/f")
		require.NoError(t, err)
		assert.Equal(t, projectfs.KindFile, info.Kind)
		assert.EqualValues(t, 5, info.Size)
		assert.False(t, info.Virtual)

		_, err = s.Stat(ctx, "/d/nope")
		assert.ErrorIs(t, err, projectfs.ErrNotFound)
	})

	t.Run("RenameFile", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.WriteFile(ctx, "/old", []byte("data")))
		require.NoError(t, s.Rename(ctx, "/old", "/new"))

		_, err := s.Stat(ctx, "/old")
		assert.ErrorIs(t, err, projectfs.ErrNotFound)
		data, err := s.ReadFile(ctx, "/new")
		require.NoError(t, err)
		assert.Equal(t, "data", string(data))

		assert.ErrorIs(t, s.Rename(ctx, "/nope", "/x"), projectfs.ErrNotFound)
	})

	t.Run("RenameDirectory", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Mkdir(ctx, "/a"))
		require.NoError(t, s.Mkdir(ctx, "/a/b"))
		require.NoError(t, s.WriteFile(ctx, "/a/b/c.txt", []byte("c")))
		require.NoError(t, s.Rename(ctx, "/a", "/z"))

		data, err := s.ReadFile(ctx, "/z/b/c.txt")
		require.NoError(t, err)
		assert.Equal(t, "c", string(data))

		_, err = s.Stat(ctx, "/a")
		assert.ErrorIs(t, err, projectfs.ErrNotFound)

		names, err := s.ReadDir(ctx, "/")
		require.NoError(t, err)
		assert.Equal(t, []string{"z"}, names)
	})

	t.Run("Unlink", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Mkdir(ctx, "/d"))
		require.NoError(t, s.WriteFile(ctx, "/d/f", nil))

		require.NoError(t, s.Unlink(ctx, "/d/f"))
		_, err := s.Stat(ctx, "/d/f")
		assert.ErrorIs(t, err, projectfs.ErrNotFound)

		assert.ErrorIs(t, s.Unlink(ctx, "/d/f"), projectfs.ErrNotFound)
		assert.ErrorIs(t, s.Unlink(ctx, "/d"), projectfs.ErrIsDir)
	})

	t.Run("Rmdir", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Mkdir(ctx, "/d"))
		require.NoError(t, s.WriteFile(ctx, "/d/f", nil))

		assert.ErrorIs(t, s.Rmdir(ctx, "/d"), projectfs.ErrNotEmpty)
		assert.ErrorIs(t, s.Rmdir(ctx, "/d/f"), projectfs.ErrNotDir)
		assert.ErrorIs(t, s.Rmdir(ctx, "/nope"), projectfs.ErrNotFound)

		require.NoError(t, s.Unlink(ctx, "/d/f"))
		require.NoError(t, s.Rmdir(ctx, "/d"))
		_, err := s.Stat(ctx, "/d")
		assert.ErrorIs(t, err, projectfs.ErrNotFound)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		s := newStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		assert.ErrorIs(t, s.WriteFile(cctx, "/f", nil), context.Canceled)
		_, err := s.ReadDir(cctx, "/")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

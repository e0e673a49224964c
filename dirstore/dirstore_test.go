package dirstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	projectfs "github.com/nujan-io/nujan-ide-sub000"
	"github.com/nujan-io/nujan-ide-sub000/internal/storetest"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) projectfs.Store {
		return newStore(t)
	})
}

func TestNewCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "root")
	s, err := New(root)
	require.NoError(t, err)

	info, err := os.Stat(s.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFilesLandOnDisk(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Mkdir(ctx, "/proj"))
	require.NoError(t, s.WriteFile(ctx, "/proj/main.fc", []byte("() main() {}")))

	data, err := os.ReadFile(filepath.Join(s.Root(), "proj", "main.fc"))
	require.NoError(t, err)
	assert.Equal(t, "() main() {}", string(data))

	info, err := os.Stat(filepath.Join(s.Root(), "proj", "main.fc"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerms), info.Mode().Perm())
}

func TestPathsStayInsideRoot(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.WriteFile(ctx, "/../../escape.txt", []byte("x")))

	_, err := os.Stat(filepath.Join(s.Root(), "escape.txt"))
	assert.NoError(t, err, "dot-dot components are resolved against the root")
}

func TestWorksUnderFS(t *testing.T) {
	ctx := context.Background()
	fsys := projectfs.New(newStore(t))

	got, err := fsys.WriteFile(ctx, "/a/b/c.txt", []byte("c"), projectfs.WriteOptions{Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, "/a/b/c.txt", got)

	require.NoError(t, fsys.RemoveDir(ctx, "/a"))
	names, err := fsys.ReadDir(ctx, "/", projectfs.ReadDirOptions{})
	require.NoError(t, err)
	assert.Empty(t, names)
}

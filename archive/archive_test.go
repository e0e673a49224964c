package archive_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	projectfs "github.com/nujan-io/nujan-ide-sub000"
	"github.com/nujan-io/nujan-ide-sub000/archive"
)

func newFS(t *testing.T) *projectfs.FS {
	t.Helper()
	store, err := projectfs.NewMemStore()
	require.NoError(t, err)
	return projectfs.New(store)
}

func seed(t *testing.T, fsys *projectfs.FS, files map[string]string) {
	t.Helper()
	for name, content := range files {
		_, err := fsys.WriteFile(context.Background(), name, []byte(content), projectfs.WriteOptions{Overwrite: true})
		require.NoError(t, err)
	}
}

func listing(t *testing.T, fsys *projectfs.FS, dir string) []string {
	t.Helper()
	entries, err := fsys.ReadDir(context.Background(), dir, projectfs.ReadDirOptions{Recursive: true})
	require.NoError(t, err)
	return entries
}

// buildZip writes raw entries, bypassing Export's filtering.
func buildZip(t *testing.T, entries map[string]string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return bytes.NewReader(buf.Bytes())
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newFS(t)
	seed(t, src, map[string]string{
		"/proj/contracts/main.fc":       "() recv_internal() {}",
		"/proj/contracts/lib/stdlib.fc": "forall X -> X null() asm \"PUSHNULL\";",
		"/proj/README.md":               "# proj",
		"/proj/.git/HEAD":               "ref: refs/heads/main",
		"/proj/node_modules/x/index.js": "module.exports = 1",
		"/proj/assets/logo.bin":         string([]byte{0, 1, 2, 3, 255}),
	})
	_, err := src.Mkdir(ctx, "/proj/empty", projectfs.MkdirOptions{Overwrite: true})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, archive.ExportDir(ctx, src, &buf, "/proj", archive.ExportOptions{}))

	dst := newFS(t)
	_, err = archive.Import(ctx, bytes.NewReader(buf.Bytes()), int64(buf.Len()), dst, "/", archive.ImportOptions{})
	require.NoError(t, err)

	want := []string{
		"README.md",
		"assets",
		"assets/logo.bin",
		"contracts",
		"contracts/lib",
		"contracts/lib/stdlib.fc",
		"contracts/main.fc",
		"empty",
	}
	if diff := cmp.Diff(want, listing(t, dst, "/")); diff != "" {
		t.Errorf("imported listing mismatch (-want +got):\n%s", diff)
	}

	for _, rel := range want {
		info, err := dst.Stat(ctx, "/"+rel)
		require.NoError(t, err)
		if info.IsDir() {
			continue
		}
		got, err := dst.ReadFile(ctx, "/"+rel)
		require.NoError(t, err)
		orig, err := src.ReadFile(ctx, "/proj/"+rel)
		require.NoError(t, err)
		assert.Equal(t, orig, got, rel)
	}
}

func TestExportRoots(t *testing.T) {
	ctx := context.Background()
	fsys := newFS(t)
	seed(t, fsys, map[string]string{
		"/a/one.txt":     "1",
		"/a/sub/two.txt": "2",
		"/b/three.txt":   "3",
	})

	var buf bytes.Buffer
	require.NoError(t, archive.Export(ctx, fsys, &buf, []string{"/a", "/b/three.txt"}, archive.ExportOptions{}))

	files, err := archive.Extract(bytes.NewReader(buf.Bytes()), int64(buf.Len()), archive.ImportOptions{})
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"a/one.txt", "a/sub/two.txt", "three.txt"}, paths)
}

func TestExportIncludesVirtualFiles(t *testing.T) {
	ctx := context.Background()
	fsys := newFS(t)
	seed(t, fsys, map[string]string{"/p/a.txt": "a"})
	_, err := fsys.WriteFile(ctx, "/p/build/out.json", []byte("{}"), projectfs.WriteOptions{Virtual: true})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, archive.ExportDir(ctx, fsys, &buf, "/p", archive.ExportOptions{}))

	files, err := archive.Extract(bytes.NewReader(buf.Bytes()), int64(buf.Len()), archive.ImportOptions{})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "build/out.json", files[1].Path)
	assert.Equal(t, "{}", string(files[1].Content))
}

func TestExportDirRejectsFile(t *testing.T) {
	ctx := context.Background()
	fsys := newFS(t)
	seed(t, fsys, map[string]string{"/f.txt": "x"})

	var buf bytes.Buffer
	err := archive.ExportDir(ctx, fsys, &buf, "/f.txt", archive.ExportOptions{})
	assert.ErrorIs(t, err, projectfs.ErrNotDir)
}

func TestImportSkipsNoise(t *testing.T) {
	ctx := context.Background()
	r := buildZip(t, map[string]string{
		"app/main.ts":                  "export {}",
		"app/.DS_Store":                "junk",
		"__MACOSX/app/._main.ts":       "junk",
		"app/node_modules/left/pad.js": "junk",
		"app/.git/config":              "junk",
		"Thumbs.db":                    "junk",
	})

	fsys := newFS(t)
	written, err := archive.Import(ctx, r, r.Size(), fsys, "/proj", archive.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"/proj/app/main.ts"}, written)
}

func TestImportCustomIgnore(t *testing.T) {
	r := buildZip(t, map[string]string{
		"keep.ts":        "k",
		"dist/bundle.js": "d",
		".git/HEAD":      "h",
	})

	files, err := archive.Extract(r, r.Size(), archive.ImportOptions{Ignore: []string{"dist/**"}})
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{"keep.ts", ".git/HEAD"}, paths)

	_, err = archive.Extract(r, r.Size(), archive.ImportOptions{Ignore: []string{"[unclosed"}})
	assert.Error(t, err)
}

func TestImportCollisions(t *testing.T) {
	ctx := context.Background()
	fsys := newFS(t)
	seed(t, fsys, map[string]string{"/proj/src/a.ts": "old"})

	r := buildZip(t, map[string]string{"src/a.ts": "new"})

	written, err := archive.Import(ctx, r, r.Size(), fsys, "/proj", archive.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"/proj/src/a(1).ts"}, written)

	old, err := fsys.ReadFile(ctx, "/proj/src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))

	written, err = archive.Import(ctx, r, r.Size(), fsys, "/proj", archive.ImportOptions{Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"/proj/src/a.ts"}, written)

	replaced, err := fsys.ReadFile(ctx, "/proj/src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "new", string(replaced))
}

func TestImportRejectsUnsafeNames(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"../evil.sh", "a/../../evil.sh", "/etc/passwd", "C:\\evil.bat", "a\\..\\..\\evil"} {
		t.Run(name, func(t *testing.T) {
			r := buildZip(t, map[string]string{name: "x"})
			fsys := newFS(t)
			_, err := archive.Import(ctx, r, r.Size(), fsys, "/proj", archive.ImportOptions{})
			assert.ErrorIs(t, err, archive.ErrUnsafePath)

			exists, err := fsys.Exists(ctx, "/proj")
			require.NoError(t, err)
			assert.False(t, exists, "nothing is written when a name is unsafe")
		})
	}
}

func TestExtractDetectsText(t *testing.T) {
	r := buildZip(t, map[string]string{
		"main.fc":  "() main() { return (); }\n",
		"data.bin": string([]byte{0x00, 0x01, 0x02, 0xfe, 0xff, 0x00}),
	})

	files, err := archive.Extract(r, r.Size(), archive.ImportOptions{})
	require.NoError(t, err)
	require.Len(t, files, 2)

	byPath := make(map[string]archive.File)
	for _, f := range files {
		byPath[f.Path] = f
	}
	assert.True(t, byPath["main.fc"].Text)
	assert.Contains(t, byPath["main.fc"].MIME, "text/plain")
	assert.False(t, byPath["data.bin"].Text)
}

func TestMaxFileSize(t *testing.T) {
	r := buildZip(t, map[string]string{"big.txt": "0123456789"})

	_, err := archive.Extract(r, r.Size(), archive.ImportOptions{MaxFileSize: 4})
	assert.ErrorIs(t, err, archive.ErrTooLarge)

	files, err := archive.Extract(r, r.Size(), archive.ImportOptions{MaxFileSize: 10})
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestImportCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := buildZip(t, map[string]string{"a.txt": "a"})
	written, err := archive.Import(ctx, r, r.Size(), newFS(t), "/", archive.ImportOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, written)
}

func TestIgnoreMatch(t *testing.T) {
	ig, err := archive.NewIgnore(nil)
	require.NoError(t, err)

	for _, p := range []string{".git", "proj/.git", "proj/.git/objects/ab", "node_modules", "a/b/node_modules/c", ".DS_Store", "x/Thumbs.db", "__MACOSX/x"} {
		assert.True(t, ig.Match(p), p)
	}
	for _, p := range []string{"src/main.ts", "gitignore", ".gitignore", "my_node_modules/x"} {
		assert.False(t, ig.Match(p), p)
	}

	none, err := archive.NewIgnore([]string{})
	require.NoError(t, err)
	assert.False(t, none.Match(".git"))
}

// Package archive moves project subtrees in and out of zip archives.
//
// Export walks a filesystem through its listing and reading calls and
// streams a zip. Import extracts a zip back into a filesystem, and Extract
// decodes one into memory without writing anything. Well-known noise such as
// VCS metadata and dependency directories is skipped in both directions.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zip"

	projectfs "github.com/nujan-io/nujan-ide-sub000"
)

var (
	// ErrUnsafePath is returned for entry names that would escape the
	// destination directory.
	ErrUnsafePath = errors.New("unsafe path in archive")
	// ErrTooLarge is returned when an entry exceeds ImportOptions.MaxFileSize.
	ErrTooLarge = errors.New("archive entry too large")
)

// DefaultIgnore lists the noise skipped when no patterns are configured.
// Patterns are doublestar globs matched against slash-separated paths
// relative to the archive root.
var DefaultIgnore = []string{
	"**/.git",
	"**/.git/**",
	"**/node_modules",
	"**/node_modules/**",
	"**/__MACOSX",
	"**/__MACOSX/**",
	"**/.DS_Store",
	"**/Thumbs.db",
}

// Source is what Export reads from. *projectfs.FS satisfies it.
type Source interface {
	ReadDir(ctx context.Context, name string, opts projectfs.ReadDirOptions) ([]string, error)
	Stat(ctx context.Context, name string) (projectfs.Info, error)
	ReadFile(ctx context.Context, name string) ([]byte, error)
}

// Sink is what Import writes to. *projectfs.FS satisfies it.
type Sink interface {
	Mkdir(ctx context.Context, name string, opts projectfs.MkdirOptions) (string, error)
	WriteFile(ctx context.Context, name string, data []byte, opts projectfs.WriteOptions) (string, error)
}

// Ignore matches paths against a set of doublestar patterns.
type Ignore struct {
	patterns []string
}

// NewIgnore validates patterns. A nil slice selects DefaultIgnore; an empty
// non-nil slice ignores nothing.
func NewIgnore(patterns []string) (Ignore, error) {
	if patterns == nil {
		patterns = DefaultIgnore
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return Ignore{}, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}
	return Ignore{patterns: patterns}, nil
}

// Match reports whether rel is ignored.
func (ig Ignore) Match(rel string) bool {
	for _, p := range ig.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// ExportOptions controls Export and ExportDir.
type ExportOptions struct {
	// Ignore holds doublestar patterns for entries to leave out. Nil means
	// DefaultIgnore.
	Ignore []string
}

// Export writes a zip of roots to w. A file root becomes a single entry
// named after its base name. A directory root becomes a tree of entries
// below its base name; directories get entries of their own so empty ones
// survive the round trip.
func Export(ctx context.Context, src Source, w io.Writer, roots []string, opts ExportOptions) error {
	ig, err := NewIgnore(opts.Ignore)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	for _, root := range roots {
		root = path.Clean("/" + root)
		prefix := path.Base(root)
		if root == "/" {
			prefix = ""
		}
		if err := exportPath(ctx, src, zw, ig, root, prefix); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

// ExportDir writes a zip of everything below dir, named relative to dir.
func ExportDir(ctx context.Context, src Source, w io.Writer, dir string, opts ExportOptions) error {
	ig, err := NewIgnore(opts.Ignore)
	if err != nil {
		return err
	}

	dir = path.Clean("/" + dir)
	info, err := src.Stat(ctx, dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "export", Path: dir, Err: projectfs.ErrNotDir}
	}

	zw := zip.NewWriter(w)
	if err := exportTree(ctx, src, zw, ig, dir, ""); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func exportPath(ctx context.Context, src Source, zw *zip.Writer, ig Ignore, root, prefix string) error {
	info, err := src.Stat(ctx, root)
	if err != nil {
		return err
	}
	if prefix != "" && ig.Match(prefix) {
		return nil
	}
	if !info.IsDir() {
		return addFile(ctx, src, zw, root, prefix)
	}
	if prefix != "" {
		if err := addDir(zw, prefix); err != nil {
			return err
		}
	}
	return exportTree(ctx, src, zw, ig, root, prefix)
}

// exportTree adds every entry below dir, named prefix/rel.
func exportTree(ctx context.Context, src Source, zw *zip.Writer, ig Ignore, dir, prefix string) error {
	entries, err := src.ReadDir(ctx, dir, projectfs.ReadDirOptions{Recursive: true, BasePath: dir})
	if err != nil {
		return err
	}

	for _, rel := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := path.Join(prefix, rel)
		if ig.Match(name) {
			continue
		}

		full := path.Join(dir, rel)
		info, err := src.Stat(ctx, full)
		if err != nil {
			return err
		}
		if info.IsDir() {
			err = addDir(zw, name)
		} else {
			err = addFile(ctx, src, zw, full, name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func addDir(zw *zip.Writer, name string) error {
	_, err := zw.CreateHeader(&zip.FileHeader{Name: name + "/", Method: zip.Store})
	return err
}

func addFile(ctx context.Context, src Source, zw *zip.Writer, full, name string) error {
	data, err := src.ReadFile(ctx, full)
	if err != nil {
		return err
	}
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = fw.Write(data)
	return err
}

// ImportOptions controls Import and Extract.
type ImportOptions struct {
	// Ignore holds doublestar patterns for entries to skip. Nil means
	// DefaultIgnore.
	Ignore []string
	// Overwrite replaces existing files. When false a file whose path is
	// taken is written under a fresh name instead. Existing directories are
	// always reused.
	Overwrite bool
	// MaxFileSize rejects entries that decompress to more bytes. Zero means
	// no limit.
	MaxFileSize int64
}

// File is an archive entry decoded into memory.
type File struct {
	// Path is slash-separated and relative to the archive root.
	Path    string
	Content []byte
	// MIME is the detected media type, such as "text/plain; charset=utf-8".
	MIME string
	// Text is set when the content is plain text of some kind.
	Text bool
}

// Import extracts the zip in r into dst below destDir and returns the paths
// written, in archive order. Written paths may differ from the entry names
// when Overwrite is false. Extraction stops at the first failure; entries
// already written stay.
func Import(ctx context.Context, r io.ReaderAt, size int64, dst Sink, destDir string, opts ImportOptions) ([]string, error) {
	entries, err := open(r, size, opts)
	if err != nil {
		return nil, err
	}
	destDir = path.Clean("/" + destDir)

	var written []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		target := path.Join(destDir, e.rel)

		if e.dir {
			got, err := dst.Mkdir(ctx, target, projectfs.MkdirOptions{Overwrite: true})
			if err != nil {
				return written, err
			}
			written = append(written, got)
			continue
		}

		data, err := e.read(opts.MaxFileSize)
		if err != nil {
			return written, err
		}
		got, err := dst.WriteFile(ctx, target, data, projectfs.WriteOptions{Overwrite: opts.Overwrite})
		if err != nil {
			return written, err
		}
		written = append(written, got)
	}
	return written, nil
}

// Extract decodes the files of the zip in r without writing them anywhere.
// Directory entries are dropped; their structure is implied by file paths.
func Extract(r io.ReaderAt, size int64, opts ImportOptions) ([]File, error) {
	entries, err := open(r, size, opts)
	if err != nil {
		return nil, err
	}

	var files []File
	for _, e := range entries {
		if e.dir {
			continue
		}
		data, err := e.read(opts.MaxFileSize)
		if err != nil {
			return nil, err
		}
		mime := mimetype.Detect(data)
		files = append(files, File{
			Path:    e.rel,
			Content: data,
			MIME:    mime.String(),
			Text:    isText(mime),
		})
	}
	return files, nil
}

// isText reports whether m is text/plain or derives from it.
func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

type entry struct {
	rel string
	dir bool
	f   *zip.File
}

func (e entry) read(limit int64) ([]byte, error) {
	if limit > 0 && e.f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("%s: %w", e.rel, ErrTooLarge)
	}
	rc, err := e.f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", e.rel, err)
	}
	defer rc.Close()

	var lr io.Reader = rc
	if limit > 0 {
		lr = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.rel, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: %w", e.rel, ErrTooLarge)
	}
	return data, nil
}

// open reads the zip directory, validates every name and drops ignored
// entries.
func open(r io.ReaderAt, size int64, opts ImportOptions) ([]entry, error) {
	ig, err := NewIgnore(opts.Ignore)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("read zip: %w", err)
	}

	entries := make([]entry, 0, len(zr.File))
	for _, f := range zr.File {
		rel, err := cleanEntryName(f.Name)
		if err != nil {
			return nil, err
		}
		if rel == "" || ig.Match(rel) {
			continue
		}
		entries = append(entries, entry{
			rel: rel,
			dir: strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir(),
			f:   f,
		})
	}
	return entries, nil
}

// cleanEntryName turns a zip entry name into a clean relative path. The
// archive root itself yields "".
func cleanEntryName(name string) (string, error) {
	n := strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(n, "/") || (len(n) > 1 && n[1] == ':') {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}
	for _, seg := range strings.Split(n, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
		}
	}
	n = path.Clean(n)
	if n == "." {
		return "", nil
	}
	return n, nil
}

package projectfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"
)

// AbsStore adapts an absfs.FileSystem to the Store contract.
//
// Kind checks are made explicitly before each mutation so the sentinel errors
// do not depend on how the wrapped filesystem reports failures.
type AbsStore struct {
	fs absfs.FileSystem
	mu sync.Mutex
}

// Ensure AbsStore implements Store at compile time
var _ Store = (*AbsStore)(nil)

// NewAbsStore wraps fsys.
func NewAbsStore(fsys absfs.FileSystem) *AbsStore {
	return &AbsStore{fs: fsys}
}

// NewMemStore returns a Store kept entirely in memory.
func NewMemStore() (*AbsStore, error) {
	mfs, err := memfs.NewFS()
	if err != nil {
		return nil, err
	}
	return NewAbsStore(mfs), nil
}

// stat maps a missing path to ErrNotFound.
func (s *AbsStore) stat(op, name string) (os.FileInfo, error) {
	info, err := s.fs.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, pathErr(op, name, ErrNotFound)
		}
		return nil, err
	}
	return info, nil
}

// parentDir checks that the parent of name is an existing directory.
func (s *AbsStore) parentDir(op, name string) error {
	dir := path.Dir(name)
	info, err := s.fs.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return pathErr(op, name, ErrParentMissing)
		}
		return err
	}
	if !info.IsDir() {
		return pathErr(op, dir, ErrNotDir)
	}
	return nil
}

// ReadFile implements Store
func (s *AbsStore) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.stat("read", name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, pathErr("read", name, ErrIsDir)
	}

	f, err := s.fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// WriteFile implements Store
func (s *AbsStore) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.parentDir("write", name); err != nil {
		return err
	}
	if info, err := s.fs.Stat(name); err == nil && info.IsDir() {
		return pathErr("write", name, ErrIsDir)
	}

	f, err := s.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Mkdir implements Store
func (s *AbsStore) Mkdir(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.fs.Stat(name); err == nil {
		return pathErr("mkdir", name, ErrAlreadyExists)
	}
	if err := s.parentDir("mkdir", name); err != nil {
		return err
	}

	err := s.fs.Mkdir(name, 0o755)
	if errors.Is(err, fs.ErrExist) {
		return pathErr("mkdir", name, ErrAlreadyExists)
	}
	return err
}

// ReadDir implements Store
func (s *AbsStore) ReadDir(ctx context.Context, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readDirNames("readdir", name)
}

func (s *AbsStore) readDirNames(op, name string) ([]string, error) {
	info, err := s.stat(op, name)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, pathErr(op, name, ErrNotDir)
	}

	d, err := s.fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	entries, err := d.Readdirnames(-1)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, n := range entries {
		if n != "." && n != ".." {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Stat implements Store
func (s *AbsStore) Stat(ctx context.Context, name string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.stat("stat", name)
	if err != nil {
		return Info{}, err
	}
	return fileInfo(info), nil
}

// Rename implements Store
func (s *AbsStore) Rename(ctx context.Context, oldname, newname string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.stat("rename", oldname); err != nil {
		return err
	}
	if err := s.parentDir("rename", newname); err != nil {
		return err
	}
	return s.fs.Rename(oldname, newname)
}

// Unlink implements Store
func (s *AbsStore) Unlink(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.stat("unlink", name)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return pathErr("unlink", name, ErrIsDir)
	}
	return s.fs.Remove(name)
}

// Rmdir implements Store
func (s *AbsStore) Rmdir(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.readDirNames("rmdir", name)
	if err != nil {
		return err
	}
	if len(names) > 0 {
		return pathErr("rmdir", name, ErrNotEmpty)
	}
	return s.fs.Remove(name)
}

func fileInfo(info os.FileInfo) Info {
	if info.IsDir() {
		return Info{Kind: KindDirectory, ModTime: info.ModTime()}
	}
	return Info{Kind: KindFile, Size: info.Size(), ModTime: info.ModTime()}
}

// Package dirstore implements a projectfs.Store on a directory of the local
// disk. File writes are atomic: readers see either the old or the new
// content, never a partial file.
package dirstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/natefinch/atomic"

	projectfs "github.com/nujan-io/nujan-ide-sub000"
)

const (
	filePerms = 0o644
	dirPerms  = 0o755
)

// Store keeps every node under a root directory. Store paths map onto the
// root, so "/proj/a.txt" lives at <root>/proj/a.txt.
type Store struct {
	root string
}

var _ projectfs.Store = (*Store)(nil)

// New returns a Store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store root: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerms); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute directory backing the store.
func (s *Store) Root() string {
	return s.root
}

// local maps a store path onto the disk.
func (s *Store) local(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+name)))
}

func pathErr(op, name string, err error) error {
	return &fs.PathError{Op: op, Path: name, Err: err}
}

func (s *Store) stat(op, name string) (os.FileInfo, error) {
	info, err := os.Stat(s.local(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, pathErr(op, name, projectfs.ErrNotFound)
		}
		return nil, err
	}
	return info, nil
}

func (s *Store) parentDir(op, name string) error {
	dir := path.Dir(name)
	info, err := os.Stat(s.local(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return pathErr(op, name, projectfs.ErrParentMissing)
		}
		return err
	}
	if !info.IsDir() {
		return pathErr(op, dir, projectfs.ErrNotDir)
	}
	return nil
}

// ReadFile implements projectfs.Store.
func (s *Store) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := s.stat("read", name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, pathErr("read", name, projectfs.ErrIsDir)
	}
	return os.ReadFile(s.local(name))
}

// WriteFile implements projectfs.Store.
func (s *Store) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.parentDir("write", name); err != nil {
		return err
	}

	target := s.local(name)
	info, statErr := os.Stat(target)
	if statErr == nil && info.IsDir() {
		return pathErr("write", name, projectfs.ErrIsDir)
	}

	if err := atomic.WriteFile(target, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	// atomic.WriteFile doesn't set permissions for new files
	if errors.Is(statErr, fs.ErrNotExist) {
		if err := os.Chmod(target, filePerms); err != nil {
			return fmt.Errorf("failed to set file permissions: %w", err)
		}
	}
	return nil
}

// Mkdir implements projectfs.Store.
func (s *Store) Mkdir(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(s.local(name)); err == nil {
		return pathErr("mkdir", name, projectfs.ErrAlreadyExists)
	}
	if err := s.parentDir("mkdir", name); err != nil {
		return err
	}

	err := os.Mkdir(s.local(name), dirPerms)
	if errors.Is(err, fs.ErrExist) {
		return pathErr("mkdir", name, projectfs.ErrAlreadyExists)
	}
	return err
}

// ReadDir implements projectfs.Store.
func (s *Store) ReadDir(ctx context.Context, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.readDirNames("readdir", name)
}

func (s *Store) readDirNames(op, name string) ([]string, error) {
	info, err := s.stat(op, name)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, pathErr(op, name, projectfs.ErrNotDir)
	}

	entries, err := os.ReadDir(s.local(name))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Stat implements projectfs.Store.
func (s *Store) Stat(ctx context.Context, name string) (projectfs.Info, error) {
	if err := ctx.Err(); err != nil {
		return projectfs.Info{}, err
	}
	info, err := s.stat("stat", name)
	if err != nil {
		return projectfs.Info{}, err
	}
	if info.IsDir() {
		return projectfs.Info{Kind: projectfs.KindDirectory, ModTime: info.ModTime()}, nil
	}
	return projectfs.Info{Kind: projectfs.KindFile, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Rename implements projectfs.Store.
func (s *Store) Rename(ctx context.Context, oldname, newname string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.stat("rename", oldname); err != nil {
		return err
	}
	if err := s.parentDir("rename", newname); err != nil {
		return err
	}
	return os.Rename(s.local(oldname), s.local(newname))
}

// Unlink implements projectfs.Store.
func (s *Store) Unlink(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := s.stat("unlink", name)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return pathErr("unlink", name, projectfs.ErrIsDir)
	}
	return os.Remove(s.local(name))
}

// Rmdir implements projectfs.Store.
func (s *Store) Rmdir(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path.Clean("/"+name) == "/" {
		return pathErr("rmdir", name, projectfs.ErrInvalidPath)
	}
	names, err := s.readDirNames("rmdir", name)
	if err != nil {
		return err
	}
	if len(names) > 0 {
		return pathErr("rmdir", name, projectfs.ErrNotEmpty)
	}
	return os.Remove(s.local(name))
}

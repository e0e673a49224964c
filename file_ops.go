package projectfs

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// WriteOptions controls WriteFile.
type WriteOptions struct {
	// Overwrite writes the exact path, replacing existing content. When false
	// an occupied path is replaced by the first free "name(n).ext" variant.
	Overwrite bool
	// Virtual keeps the content in the overlay only.
	Virtual bool
}

// RemoveOptions controls Remove.
type RemoveOptions struct {
	Recursive bool
}

// ReadFile returns the content at name, overlay first.
func (fsys *FS) ReadFile(ctx context.Context, name string) ([]byte, error) {
	name = cleanPath(name)

	if data, ok := fsys.overlay.Get(name); ok {
		return data, nil
	}
	return fsys.store.ReadFile(ctx, name)
}

// WriteFile writes data to name and returns the path actually written.
//
// Virtual writes, and writes to a path that already has an overlay entry,
// go to the overlay and never touch the store. Store writes create missing
// parent directories first.
func (fsys *FS) WriteFile(ctx context.Context, name string, data []byte, opts WriteOptions) (string, error) {
	name = cleanPath(name)
	if name == "/" {
		return "", pathErr("write", name, ErrInvalidPath)
	}

	if opts.Virtual || fsys.overlay.Has(name) {
		fsys.overlay.Put(name, data)
		return name, nil
	}

	target := name
	if !opts.Overwrite {
		var err error
		if target, err = fsys.availablePath(ctx, name, KindFile); err != nil {
			return "", err
		}
	}

	if err := fsys.ensureParent(ctx, target); err != nil {
		return "", err
	}
	if err := fsys.store.WriteFile(ctx, target, data); err != nil {
		return "", err
	}
	fsys.cache.invalidate(target)

	fsys.log.Debug("wrote file", zap.String("path", target), zap.Int("size", len(data)))
	return target, nil
}

// Create creates an empty file or a directory at name without overwriting
// anything, and returns the path actually created.
func (fsys *FS) Create(ctx context.Context, name string, kind Kind) (string, error) {
	if kind == KindDirectory {
		return fsys.Mkdir(ctx, name, MkdirOptions{})
	}

	name = cleanPath(name)
	if name == "/" {
		return "", pathErr("create", name, ErrInvalidPath)
	}
	// probe here: WriteFile would reuse a path held by the overlay
	target, err := fsys.availablePath(ctx, name, KindFile)
	if err != nil {
		return "", err
	}
	return fsys.WriteFile(ctx, target, nil, WriteOptions{Overwrite: true})
}

// Exists reports whether name is present in the overlay or the store.
func (fsys *FS) Exists(ctx context.Context, name string) (bool, error) {
	return fsys.occupied(ctx, cleanPath(name))
}

// Stat describes name. Overlay entries always report as files.
func (fsys *FS) Stat(ctx context.Context, name string) (Info, error) {
	name = cleanPath(name)

	if size, ok := fsys.overlay.Size(name); ok {
		return Info{Kind: KindFile, Size: size, Virtual: true}, nil
	}
	return fsys.storeStat(ctx, name)
}

// IsVirtual reports whether name is served by the overlay.
func (fsys *FS) IsVirtual(name string) bool {
	return fsys.overlay.Has(cleanPath(name))
}

// VirtualFiles lists every overlay path.
func (fsys *FS) VirtualFiles() []string {
	return fsys.overlay.Paths()
}

// ClearVirtualFiles drops every overlay entry and returns how many there were.
func (fsys *FS) ClearVirtualFiles() int {
	n := fsys.overlay.Clear()
	if n > 0 {
		fsys.log.Debug("cleared virtual files", zap.Int("count", n))
	}
	return n
}

// Rename moves oldname to newname. It fails with ErrAlreadyExists when
// newname is taken in either layer and is a no-op when both are equal.
func (fsys *FS) Rename(ctx context.Context, oldname, newname string) error {
	oldname = cleanPath(oldname)
	newname = cleanPath(newname)

	if oldname == newname {
		return nil
	}
	if oldname == "/" || newname == "/" || strings.HasPrefix(newname, dirPrefix(oldname)) {
		return pathErr("rename", newname, ErrInvalidPath)
	}

	taken, err := fsys.occupied(ctx, newname)
	if err != nil {
		return err
	}
	if taken {
		return pathErr("rename", newname, ErrAlreadyExists)
	}

	if fsys.overlay.Rename(oldname, newname) {
		return nil
	}

	info, err := fsys.storeStat(ctx, oldname)
	if err != nil {
		return err
	}
	if err := fsys.ensureParent(ctx, newname); err != nil {
		return err
	}
	if err := fsys.store.Rename(ctx, oldname, newname); err != nil {
		return err
	}

	if info.IsDir() {
		fsys.overlay.RenameTree(oldname, newname)
		fsys.cache.invalidateTree(oldname)
		fsys.cache.invalidateTree(newname)
	} else {
		fsys.cache.invalidate(oldname)
		fsys.cache.invalidate(newname)
	}

	fsys.log.Debug("renamed", zap.String("from", oldname), zap.String("to", newname))
	return nil
}

// Remove deletes name. Files are deleted unconditionally. A directory is
// only deleted when empty unless opts.Recursive is set, in which case its
// children are deleted depth-first before it.
//
// A failing recursive delete is not rolled back; part of the subtree may
// already be gone when the error is returned.
func (fsys *FS) Remove(ctx context.Context, name string, opts RemoveOptions) error {
	name = cleanPath(name)
	if name == "/" {
		return pathErr("remove", name, ErrInvalidPath)
	}

	if fsys.overlay.Delete(name) {
		return nil
	}

	info, err := fsys.storeStat(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) && opts.Recursive && fsys.overlay.DeleteTree(name) > 0 {
			return nil
		}
		return err
	}

	if !info.IsDir() {
		if err := fsys.store.Unlink(ctx, name); err != nil {
			return err
		}
		fsys.cache.invalidate(name)
		return nil
	}

	if opts.Recursive {
		return fsys.removeTree(ctx, name)
	}

	if len(fsys.overlay.Under(name)) > 0 {
		return pathErr("remove", name, ErrNotEmpty)
	}
	if err := fsys.store.Rmdir(ctx, name); err != nil {
		return err
	}
	fsys.cache.invalidate(name)
	return nil
}

// Copy copies the content of the file oldname to newname in the store,
// replacing anything already there.
func (fsys *FS) Copy(ctx context.Context, oldname, newname string) error {
	oldname = cleanPath(oldname)
	newname = cleanPath(newname)

	if oldname == newname {
		return nil
	}

	data, err := fsys.ReadFile(ctx, oldname)
	if err != nil {
		return err
	}
	_, err = fsys.WriteFile(ctx, newname, data, WriteOptions{Overwrite: true})
	return err
}

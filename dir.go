package projectfs

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// MkdirOptions controls Mkdir.
type MkdirOptions struct {
	// Overwrite creates the exact path and accepts an existing directory
	// there. When false an occupied path is replaced by "name(n)".
	Overwrite bool
}

// ReadDirOptions controls ReadDir.
type ReadDirOptions struct {
	// Recursive expands subdirectories depth-first.
	Recursive bool
	// BasePath is stripped from recursive results. Defaults to the listed directory.
	BasePath string
	// OnlyDir keeps only directories. Ignored when Recursive is set.
	OnlyDir bool
}

// Mkdir creates a directory and returns the path actually created.
// Missing parents are created first.
func (fsys *FS) Mkdir(ctx context.Context, name string, opts MkdirOptions) (string, error) {
	name = cleanPath(name)
	if name == "/" {
		if opts.Overwrite {
			return name, nil
		}
		return "", pathErr("mkdir", name, ErrInvalidPath)
	}

	target := name
	if opts.Overwrite {
		if fsys.overlay.Has(name) {
			return "", pathErr("mkdir", name, ErrAlreadyExists)
		}
	} else {
		var err error
		if target, err = fsys.availablePath(ctx, name, KindDirectory); err != nil {
			return "", err
		}
	}

	if err := fsys.ensureParent(ctx, target); err != nil {
		return "", err
	}

	err := fsys.store.Mkdir(ctx, target)
	fsys.cache.invalidate(target)
	if err != nil {
		if opts.Overwrite && errors.Is(err, ErrAlreadyExists) {
			if info, serr := fsys.storeStat(ctx, target); serr == nil && info.IsDir() {
				return target, nil
			}
		}
		return "", err
	}

	fsys.log.Debug("created directory", zap.String("path", target))
	return target, nil
}

// ReadDir lists the entries of name. Store entries and overlay entries are
// merged, sorted and deduplicated.
//
// Without Recursive the result holds the names of direct children. With
// Recursive it holds every entry below name, directories before their
// contents, as paths relative to opts.BasePath.
func (fsys *FS) ReadDir(ctx context.Context, name string, opts ReadDirOptions) ([]string, error) {
	name = cleanPath(name)

	if !opts.Recursive {
		names, err := fsys.listDir(ctx, name)
		if err != nil || !opts.OnlyDir {
			return names, err
		}
		dirs := names[:0]
		for _, n := range names {
			info, err := fsys.Stat(ctx, path.Join(name, n))
			if err != nil {
				return nil, err
			}
			if info.IsDir() {
				dirs = append(dirs, n)
			}
		}
		return dirs, nil
	}

	basePath := name
	if opts.BasePath != "" {
		basePath = cleanPath(opts.BasePath)
	}

	var entries []string
	err := fsys.walk(ctx, name, func(p string, _ Info) error {
		entries = append(entries, relPath(basePath, p))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// listDir returns the sorted names of direct children of dir in both layers.
func (fsys *FS) listDir(ctx context.Context, dir string) ([]string, error) {
	names, err := fsys.store.ReadDir(ctx, dir)
	if err != nil {
		if !errors.Is(err, ErrNotFound) || len(fsys.overlay.Under(dir)) == 0 {
			return nil, err
		}
		names = nil
	}

	seen := make(map[string]bool, len(names))
	merged := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			merged = append(merged, n)
		}
	}
	for _, n := range fsys.overlay.Children(dir) {
		if !seen[n] {
			seen[n] = true
			merged = append(merged, n)
		}
	}
	sort.Strings(merged)
	return merged, nil
}

// walk visits every entry below root depth-first, pre-order, in name order,
// using an explicit stack. Overlay entries whose parent directory does not
// exist in the store are visited last.
func (fsys *FS) walk(ctx context.Context, root string, fn func(p string, info Info) error) error {
	names, err := fsys.listDir(ctx, root)
	if err != nil {
		return err
	}

	visited := make(map[string]bool)
	stack := make([]string, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		stack = append(stack, path.Join(root, names[i]))
	}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		info, err := fsys.Stat(ctx, p)
		if err != nil {
			return err
		}
		visited[p] = true
		if err := fn(p, info); err != nil {
			return err
		}

		if info.IsDir() {
			children, err := fsys.listDir(ctx, p)
			if err != nil {
				return err
			}
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, path.Join(p, children[i]))
			}
		}
	}

	for _, rel := range fsys.overlay.Under(root) {
		p := path.Join(root, rel)
		if visited[p] {
			continue
		}
		size, ok := fsys.overlay.Size(p)
		if !ok {
			continue
		}
		if err := fn(p, Info{Kind: KindFile, Size: size, Virtual: true}); err != nil {
			return err
		}
	}
	return nil
}

// CopyDir copies the directory oldname and everything below it to newname,
// preserving structure. Files land in the store even when their source is
// virtual.
func (fsys *FS) CopyDir(ctx context.Context, oldname, newname string) error {
	oldname = cleanPath(oldname)
	newname = cleanPath(newname)

	if oldname == newname {
		return nil
	}
	if strings.HasPrefix(newname, dirPrefix(oldname)) {
		return pathErr("copydir", newname, ErrInvalidPath)
	}

	info, err := fsys.Stat(ctx, oldname)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return pathErr("copydir", oldname, ErrNotDir)
	}

	if _, err := fsys.Mkdir(ctx, newname, MkdirOptions{Overwrite: true}); err != nil {
		return err
	}

	copied := 0
	err = fsys.walk(ctx, oldname, func(p string, info Info) error {
		dst := path.Join(newname, relPath(oldname, p))
		if info.IsDir() {
			if _, err := fsys.Mkdir(ctx, dst, MkdirOptions{Overwrite: true}); err != nil {
				return err
			}
		} else if err := fsys.Copy(ctx, p, dst); err != nil {
			return err
		}
		copied++
		return nil
	})
	if err != nil {
		fsys.log.Warn("copy stopped before completion",
			zap.String("from", oldname),
			zap.String("to", newname),
			zap.Int("copied", copied),
			zap.Error(err))
		return err
	}
	return nil
}

// RemoveDir removes the directory name and everything below it.
func (fsys *FS) RemoveDir(ctx context.Context, name string) error {
	return fsys.Remove(ctx, name, RemoveOptions{Recursive: true})
}

// removeTree deletes files as the walk reaches them and directories
// afterwards, deepest first.
func (fsys *FS) removeTree(ctx context.Context, dir string) error {
	dirs := []string{dir}
	removed := 0

	err := fsys.walk(ctx, dir, func(p string, info Info) error {
		switch {
		case info.Virtual:
			fsys.overlay.Delete(p)
			// the entry may shadow a store node the walk never reached
			shadowed, err := fsys.storeStat(ctx, p)
			switch {
			case errors.Is(err, ErrNotFound):
			case err != nil:
				return err
			case shadowed.IsDir():
				if err := fsys.removeTree(ctx, p); err != nil {
					return err
				}
			default:
				if err := fsys.store.Unlink(ctx, p); err != nil {
					return err
				}
				fsys.cache.invalidate(p)
			}
		case info.IsDir():
			dirs = append(dirs, p)
			return nil
		default:
			if err := fsys.store.Unlink(ctx, p); err != nil {
				return err
			}
			fsys.cache.invalidate(p)
		}
		removed++
		return nil
	})

	for i := len(dirs) - 1; i >= 0 && err == nil; i-- {
		if err = fsys.store.Rmdir(ctx, dirs[i]); err == nil {
			fsys.cache.invalidateTree(dirs[i])
			removed++
		}
	}

	if err != nil {
		fsys.log.Warn("recursive remove stopped before completion",
			zap.String("path", dir),
			zap.Int("removed", removed),
			zap.Error(err))
		return err
	}

	fsys.overlay.DeleteTree(dir)
	return nil
}

// relPath strips base from p. Paths outside base are returned unchanged.
func relPath(base, p string) string {
	if p == base {
		return "."
	}
	return strings.TrimPrefix(p, dirPrefix(base))
}

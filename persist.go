package projectfs

import (
	"context"

	"go.uber.org/zap"
)

// Persist moves the virtual file at name into the store at the same path and
// drops its overlay entry. Missing parent directories are created. Whatever
// the store held at name is replaced.
func (fsys *FS) Persist(ctx context.Context, name string) error {
	name = cleanPath(name)

	data, ok := fsys.overlay.Get(name)
	if !ok {
		return pathErr("persist", name, ErrNotFound)
	}

	if info, err := fsys.storeStat(ctx, name); err == nil && info.IsDir() {
		return pathErr("persist", name, ErrIsDir)
	}

	if err := fsys.ensureParent(ctx, name); err != nil {
		return err
	}
	if err := fsys.store.WriteFile(ctx, name, data); err != nil {
		return err
	}
	fsys.cache.invalidate(name)
	fsys.overlay.Delete(name)

	fsys.log.Debug("persisted virtual file", zap.String("path", name), zap.Int("size", len(data)))
	return nil
}

// PersistAll persists every virtual file, in path order, and returns the
// paths that were written. It stops at the first failure; files persisted
// before it stay persisted.
func (fsys *FS) PersistAll(ctx context.Context) ([]string, error) {
	var done []string
	for _, name := range fsys.overlay.Paths() {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := fsys.Persist(ctx, name); err != nil {
			return done, err
		}
		done = append(done, name)
	}
	return done, nil
}

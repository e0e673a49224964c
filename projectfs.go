package projectfs

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// FS is the unified filesystem facade. Every path-addressed operation goes
// through FS, which decides per call whether the overlay or the store is
// authoritative.
//
// FS assumes a single logical caller. Recursive operations are not isolated
// from concurrent mutation of the same subtree.
type FS struct {
	store   Store
	overlay *Overlay
	cache   *Cache
	log     *zap.Logger
	reg     prometheus.Registerer
}

// Option is a functional option for configuring FS
type Option func(*FS)

// WithLogger sets the logger used for debug traces and partial-failure warnings.
func WithLogger(log *zap.Logger) Option {
	return func(fsys *FS) {
		if log != nil {
			fsys.log = log
		}
	}
}

// WithOverlay makes FS use the given overlay instead of a fresh one.
func WithOverlay(o *Overlay) Option {
	return func(fsys *FS) {
		if o != nil {
			fsys.overlay = o
		}
	}
}

// WithStatCache enables store stat caching with the specified TTL
func WithStatCache(enabled bool, ttl time.Duration) Option {
	return func(fsys *FS) {
		negativeTTL := ttl / 2 // misses go stale faster
		fsys.cache = newCache(enabled, ttl, negativeTTL, 1000)
	}
}

// WithCacheConfig enables caching with custom configuration
func WithCacheConfig(enabled bool, statTTL, negativeTTL time.Duration, maxEntries int) Option {
	return func(fsys *FS) {
		fsys.cache = newCache(enabled, statTTL, negativeTTL, maxEntries)
	}
}

// WithMetrics records store operation counts and latencies on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(fsys *FS) {
		fsys.reg = reg
	}
}

// New creates an FS over store.
func New(store Store, opts ...Option) *FS {
	fsys := &FS{
		store: store,
		cache: newCache(false, 0, 0, 0),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(fsys)
	}
	if fsys.overlay == nil {
		fsys.overlay = NewOverlay()
	}
	if fsys.reg != nil {
		fsys.store = instrument(fsys.store, fsys.reg)
	}
	return fsys
}

// Overlay returns the overlay owned by fsys.
func (fsys *FS) Overlay() *Overlay {
	return fsys.overlay
}

// cleanPath normalizes a path
func cleanPath(name string) string {
	cleaned := path.Clean("/" + strings.TrimSpace(name))
	if cleaned == "" {
		return "/"
	}
	return cleaned
}

// storeStat stats name in the store, going through the cache.
func (fsys *FS) storeStat(ctx context.Context, name string) (Info, error) {
	if info, ok := fsys.cache.getStat(name); ok {
		return info, nil
	}
	if fsys.cache.isNegative(name) {
		return Info{}, pathErr("stat", name, ErrNotFound)
	}

	info, err := fsys.store.Stat(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			fsys.cache.putNegative(name)
		}
		return Info{}, err
	}
	fsys.cache.putStat(name, info)
	return info, nil
}

// storeExists reports whether name exists in the store.
func (fsys *FS) storeExists(ctx context.Context, name string) (bool, error) {
	_, err := fsys.storeStat(ctx, name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// ensureParent makes sure the parent directory of name exists in the store.
// Missing ancestors are created top-down; an existing directory ends the climb.
func (fsys *FS) ensureParent(ctx context.Context, name string) error {
	dir := path.Dir(name)
	if dir == "/" {
		return nil
	}

	pending := []string{dir}
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		d := pending[len(pending)-1]

		err := fsys.store.Mkdir(ctx, d)
		switch {
		case err == nil:
			fsys.cache.invalidate(d)
			fsys.log.Debug("created parent directory", zap.String("path", d))
			pending = pending[:len(pending)-1]
		case errors.Is(err, ErrAlreadyExists):
			pending = pending[:len(pending)-1]
		case errors.Is(err, ErrParentMissing):
			parent := path.Dir(d)
			if parent == "/" {
				return err
			}
			pending = append(pending, parent)
		default:
			return err
		}
	}
	return nil
}

// InvalidateCache removes a path from the cache
func (fsys *FS) InvalidateCache(name string) {
	fsys.cache.invalidate(cleanPath(name))
}

// InvalidateCacheTree removes all cache entries under a path prefix
func (fsys *FS) InvalidateCacheTree(name string) {
	fsys.cache.invalidateTree(cleanPath(name))
}

// ClearCache removes all cache entries
func (fsys *FS) ClearCache() {
	fsys.cache.clear()
}

// CacheStats returns cache statistics
func (fsys *FS) CacheStats() CacheStats {
	return fsys.cache.Stats()
}

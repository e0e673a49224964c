package projectfs

import (
	"context"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// occupied reports whether name is taken in either layer.
func (fsys *FS) occupied(ctx context.Context, name string) (bool, error) {
	if fsys.overlay.Has(name) {
		return true, nil
	}
	return fsys.storeExists(ctx, name)
}

// availablePath returns name if it is free, otherwise the first free
// candidate of the form base(n)ext with n counting up from 1.
func (fsys *FS) availablePath(ctx context.Context, name string, kind Kind) (string, error) {
	taken, err := fsys.occupied(ctx, name)
	if err != nil || !taken {
		return name, err
	}

	base, ext := splitExt(name, kind)
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := base + "(" + strconv.Itoa(n) + ")" + ext
		taken, err := fsys.occupied(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			fsys.log.Debug("path taken, using alternative",
				zap.String("requested", name),
				zap.String("path", candidate))
			return candidate, nil
		}
	}
}

// splitExt splits name into everything before the extension and the
// extension itself. Directories and dot-files have no extension.
func splitExt(name string, kind Kind) (string, string) {
	if kind == KindDirectory {
		return name, ""
	}
	dir, file := path.Split(name)
	i := strings.LastIndexByte(file, '.')
	if i <= 0 {
		return name, ""
	}
	return dir + file[:i], file[i:]
}

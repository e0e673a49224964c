package projectfs

import "context"

// Usage summarizes the space taken by a subtree.
type Usage struct {
	Files        int
	Directories  int
	Bytes        int64
	VirtualFiles int
	VirtualBytes int64
}

// DiskUsage walks the subtree at name and totals its files and bytes.
// Virtual files are counted separately. A file path yields its own size.
func (fsys *FS) DiskUsage(ctx context.Context, name string) (Usage, error) {
	name = cleanPath(name)

	var u Usage
	info, err := fsys.Stat(ctx, name)
	if err != nil {
		return u, err
	}
	if !info.IsDir() {
		u.add(info)
		return u, nil
	}

	err = fsys.walk(ctx, name, func(_ string, info Info) error {
		u.add(info)
		return nil
	})
	return u, err
}

func (u *Usage) add(info Info) {
	switch {
	case info.Virtual:
		u.VirtualFiles++
		u.VirtualBytes += info.Size
	case info.IsDir():
		u.Directories++
	default:
		u.Files++
		u.Bytes += info.Size
	}
}

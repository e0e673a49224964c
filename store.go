package projectfs

import (
	"context"
	"errors"
	"io/fs"
	"time"
)

var (
	// ErrNotFound is returned when a path exists in neither the overlay nor the store.
	ErrNotFound = fs.ErrNotExist
	// ErrAlreadyExists is returned when a rename or mkdir target is occupied.
	ErrAlreadyExists = fs.ErrExist
	// ErrParentMissing is returned by a Store when the parent directory of a
	// write or mkdir target does not exist. FS resolves it by bootstrapping.
	ErrParentMissing = errors.New("parent directory does not exist")
	// ErrNotDir is returned when a directory operation targets a file.
	ErrNotDir = errors.New("not a directory")
	// ErrIsDir is returned when a file operation targets a directory.
	ErrIsDir = errors.New("is a directory")
	// ErrNotEmpty is returned by Rmdir on a directory with children.
	ErrNotEmpty = errors.New("directory not empty")
	// ErrInvalidPath is returned for paths an operation cannot accept.
	ErrInvalidPath = errors.New("invalid path")
)

// Kind tells files and directories apart.
type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// MarshalText encodes the kind as "file" or "directory".
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes "file" or "directory".
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "file":
		*k = KindFile
	case "directory":
		*k = KindDirectory
	default:
		return errors.New("unknown kind " + string(b))
	}
	return nil
}

// Info describes a node as reported by Stat.
type Info struct {
	Kind    Kind
	Size    int64
	ModTime time.Time
	// Virtual is set for overlay entries.
	Virtual bool
}

// IsDir reports whether the node is a directory.
func (i Info) IsDir() bool { return i.Kind == KindDirectory }

// Store is the persistent, hierarchical backing layer beneath FS.
//
// Paths are absolute, slash-separated and already normalized by FS.
// Implementations report failures with the sentinel errors of this package
// (usually wrapped in *fs.PathError) so FS can tell them apart:
//
//   - ReadFile, Stat, Rename, Unlink, Rmdir: ErrNotFound when absent
//   - WriteFile: ErrParentMissing when the parent directory is absent
//   - Mkdir: ErrAlreadyExists or ErrParentMissing
//   - ReadDir: ErrNotFound or ErrNotDir
//   - Unlink on a directory: ErrIsDir
//   - Rmdir on a file: ErrNotDir; on a non-empty directory: ErrNotEmpty
//
// Any other error is treated as an opaque I/O failure and propagated.
type Store interface {
	ReadFile(ctx context.Context, name string) ([]byte, error)
	WriteFile(ctx context.Context, name string, data []byte) error
	Mkdir(ctx context.Context, name string) error
	ReadDir(ctx context.Context, name string) ([]string, error)
	Stat(ctx context.Context, name string) (Info, error)
	Rename(ctx context.Context, oldname, newname string) error
	Unlink(ctx context.Context, name string) error
	Rmdir(ctx context.Context, name string) error
}

func pathErr(op, name string, err error) error {
	return &fs.PathError{Op: op, Path: name, Err: err}
}

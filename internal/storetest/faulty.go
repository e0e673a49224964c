package storetest

import (
	"context"
	"errors"
	"io/fs"
	"sync"

	projectfs "github.com/nujan-io/nujan-ide-sub000"
)

// ErrInjected is the default error returned by a Faulty rule.
var ErrInjected = errors.New("injected store failure")

// Store operation names understood by Faulty.
const (
	OpRead    = "read"
	OpWrite   = "write"
	OpMkdir   = "mkdir"
	OpReadDir = "readdir"
	OpStat    = "stat"
	OpRename  = "rename"
	OpUnlink  = "unlink"
	OpRmdir   = "rmdir"
)

// InjectedError marks an error as produced by Faulty. It wraps the configured
// error so errors.Is keeps working.
type InjectedError struct {
	Op   string
	Path string
	Err  error
}

func (e *InjectedError) Error() string {
	return "injected " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *InjectedError) Unwrap() error {
	return e.Err
}

// IsInjected reports whether err (or any wrapped error) came from Faulty.
func IsInjected(err error) bool {
	var injected *InjectedError
	return errors.As(err, &injected)
}

// rule fails calls of op on path (any path when empty) once skip matching
// calls have gone through.
type rule struct {
	op   string
	path string
	skip int
	err  error
}

// Faulty wraps a Store and fails selected calls. Rules are deterministic so
// tests can place a fault in the middle of a multi-step operation.
type Faulty struct {
	next projectfs.Store

	mu    sync.Mutex
	rules []*rule
	calls map[string]int
}

var _ projectfs.Store = (*Faulty)(nil)

// NewFaulty wraps next with no rules installed.
func NewFaulty(next projectfs.Store) *Faulty {
	return &Faulty{next: next, calls: make(map[string]int)}
}

// FailOn makes every call of op on name fail with err. A nil err means
// ErrInjected; an empty name matches every path.
func (f *Faulty) FailOn(op, name string, err error) {
	f.FailAfter(op, name, 0, err)
}

// FailAfter lets n matching calls succeed and fails the rest.
func (f *Faulty) FailAfter(op, name string, n int, err error) {
	if err == nil {
		err = ErrInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &rule{op: op, path: name, skip: n, err: err})
}

// Reset removes every rule and call count.
func (f *Faulty) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = nil
	f.calls = make(map[string]int)
}

// Calls returns how many times op reached the wrapper, failed or not.
func (f *Faulty) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faulty) check(op, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[op]++
	for _, r := range f.rules {
		if r.op != op || (r.path != "" && r.path != name) {
			continue
		}
		if r.skip > 0 {
			r.skip--
			continue
		}
		return &fs.PathError{Op: op, Path: name, Err: &InjectedError{Op: op, Path: name, Err: r.err}}
	}
	return nil
}

func (f *Faulty) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := f.check(OpRead, name); err != nil {
		return nil, err
	}
	return f.next.ReadFile(ctx, name)
}

func (f *Faulty) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := f.check(OpWrite, name); err != nil {
		return err
	}
	return f.next.WriteFile(ctx, name, data)
}

func (f *Faulty) Mkdir(ctx context.Context, name string) error {
	if err := f.check(OpMkdir, name); err != nil {
		return err
	}
	return f.next.Mkdir(ctx, name)
}

func (f *Faulty) ReadDir(ctx context.Context, name string) ([]string, error) {
	if err := f.check(OpReadDir, name); err != nil {
		return nil, err
	}
	return f.next.ReadDir(ctx, name)
}

func (f *Faulty) Stat(ctx context.Context, name string) (projectfs.Info, error) {
	if err := f.check(OpStat, name); err != nil {
		return projectfs.Info{}, err
	}
	return f.next.Stat(ctx, name)
}

func (f *Faulty) Rename(ctx context.Context, oldname, newname string) error {
	if err := f.check(OpRename, oldname); err != nil {
		return err
	}
	return f.next.Rename(ctx, oldname, newname)
}

func (f *Faulty) Unlink(ctx context.Context, name string) error {
	if err := f.check(OpUnlink, name); err != nil {
		return err
	}
	return f.next.Unlink(ctx, name)
}

func (f *Faulty) Rmdir(ctx context.Context, name string) error {
	if err := f.check(OpRmdir, name); err != nil {
		return err
	}
	return f.next.Rmdir(ctx, name)
}

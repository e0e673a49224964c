package projectfs

import (
	"sort"
	"strings"
	"sync"
)

// Overlay holds virtual files: path to content mappings that live only in
// process memory and shadow the store for their exact path.
//
// An Overlay is owned by the FS it is given to. It is safe for concurrent
// use, but FS operations that span several overlay calls are not atomic.
type Overlay struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewOverlay returns an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{entries: make(map[string][]byte)}
}

// Get returns a copy of the content stored at name.
func (o *Overlay) Get(name string) ([]byte, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	data, ok := o.entries[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Has reports whether name has an entry.
func (o *Overlay) Has(name string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	_, ok := o.entries[name]
	return ok
}

// Size returns the content length of an entry.
func (o *Overlay) Size(name string) (int64, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	data, ok := o.entries[name]
	return int64(len(data)), ok
}

// Put creates or replaces the entry at name.
func (o *Overlay) Put(name string, data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.entries[name] = append([]byte{}, data...)
}

// Delete removes the entry at name and reports whether it existed.
func (o *Overlay) Delete(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, ok := o.entries[name]
	delete(o.entries, name)
	return ok
}

// DeleteTree removes every entry under dir and returns how many were dropped.
func (o *Overlay) DeleteTree(dir string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	prefix := dirPrefix(dir)
	n := 0
	for name := range o.entries {
		if strings.HasPrefix(name, prefix) {
			delete(o.entries, name)
			n++
		}
	}
	return n
}

// Rename moves the entry at oldname to newname.
func (o *Overlay) Rename(oldname, newname string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	data, ok := o.entries[oldname]
	if !ok {
		return false
	}
	delete(o.entries, oldname)
	o.entries[newname] = data
	return true
}

// RenameTree re-keys every entry under olddir to live under newdir.
func (o *Overlay) RenameTree(olddir, newdir string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	prefix := dirPrefix(olddir)
	moved := make(map[string][]byte)
	for name, data := range o.entries {
		if strings.HasPrefix(name, prefix) {
			moved[dirPrefix(newdir)+strings.TrimPrefix(name, prefix)] = data
			delete(o.entries, name)
		}
	}
	for name, data := range moved {
		o.entries[name] = data
	}
	return len(moved)
}

// Clear drops every entry and returns how many there were.
func (o *Overlay) Clear() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := len(o.entries)
	o.entries = make(map[string][]byte)
	return n
}

// Len returns the number of entries.
func (o *Overlay) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.entries)
}

// Paths returns every entry path, sorted.
func (o *Overlay) Paths() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	paths := make([]string, 0, len(o.entries))
	for name := range o.entries {
		paths = append(paths, name)
	}
	sort.Strings(paths)
	return paths
}

// Children returns the names of entries that are direct children of dir.
func (o *Overlay) Children(dir string) []string {
	var names []string
	for _, rel := range o.Under(dir) {
		if !strings.Contains(rel, "/") {
			names = append(names, rel)
		}
	}
	return names
}

// Under returns the paths of every entry below dir, relative to dir, sorted.
func (o *Overlay) Under(dir string) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	prefix := dirPrefix(dir)
	var rels []string
	for name := range o.entries {
		if strings.HasPrefix(name, prefix) {
			rels = append(rels, strings.TrimPrefix(name, prefix))
		}
	}
	sort.Strings(rels)
	return rels
}

// dirPrefix returns dir with exactly one trailing slash.
func dirPrefix(dir string) string {
	if dir == "/" {
		return "/"
	}
	return dir + "/"
}

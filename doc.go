/*
Package projectfs provides the file storage layer of a multi-project editor:
one filesystem-like API over a persistent backing store plus an in-memory
overlay of virtual files that never reach the store.

# Overview

FS composes two layers. The overlay holds transient files (scratch buffers,
generated build output, drafts) keyed by path. The store holds everything
else. For every path-addressed call FS decides which layer is authoritative:
an overlay entry always wins for its exact path, and the store serves the rest.

# Basic Usage

	package main

	import (
	    "context"

	    projectfs "github.com/nujan-io/nujan-ide-sub000"
	)

	func main() {
	    ctx := context.Background()

	    store, err := projectfs.NewMemStore()
	    if err != nil {
	        panic(err)
	    }
	    fsys := projectfs.New(store)

	    // Parents are created on demand
	    fsys.WriteFile(ctx, "/proj/src/main.fc", []byte("() main() {}"),
	        projectfs.WriteOptions{Overwrite: true})

	    // Virtual files live in memory only
	    fsys.WriteFile(ctx, "/proj/notes.md", []byte("todo"),
	        projectfs.WriteOptions{Virtual: true})

	    names, _ := fsys.ReadDir(ctx, "/proj", projectfs.ReadDirOptions{})
	    // names: [notes.md src]
	    _ = names
	}

# Backing Stores

Any type implementing Store can back an FS. The package ships an adapter
for absfs filesystems (NewAbsStore, with NewMemStore as the in-memory
default), and the dirstore and s3store packages provide a local directory
and an S3 bucket respectively. Stores report failures with the sentinel
errors of this package so FS can tell a missing parent from a missing file.

# Collision Avoidance

Writes and mkdirs that do not ask to overwrite never replace an existing
node. When the requested path is taken in either layer, the first free
candidate of the form name(1).ext, name(2).ext and so on is used instead, and
the chosen path is returned:

	fsys.Mkdir(ctx, "/proj/new", projectfs.MkdirOptions{}) // "/proj/new"
	fsys.Mkdir(ctx, "/proj/new", projectfs.MkdirOptions{}) // "/proj/new(1)"

A leading dot does not start an extension, so ".env" becomes ".env(1)".

# Persisting Virtual Files

Persist moves one overlay entry into the store at the same path, replacing a
store file there. PersistAll does the same for every overlay entry and
returns the persisted paths. An entry that shadows a store directory cannot
be persisted and stays in the overlay.

# Directory Bootstrapping

Store writes, mkdirs and renames first make sure the parent directory
exists, creating missing ancestors from the top down. Writing
"/a/b/c.txt" into an empty store creates /a and /a/b on the way.

# Listings

ReadDir merges store children with overlay entries. Results are sorted and
deduplicated. Recursive listings are depth-first and pre-order, and include
every overlay entry under the listed directory, even one whose parent
directory exists only implicitly.

# Recursive Operations

CopyDir, RemoveDir and recursive Remove walk the subtree with an explicit
stack. They are not transactional: when a step fails the error is returned
and the work done before it stays done. A warning with the number of
processed nodes is logged.

# Caching

WithStatCache enables a TTL cache of store Stat results, including misses.
Every mutation made through FS invalidates the affected entries. Changes
made to the store behind the back of FS are visible once the TTL expires or
after InvalidateCache.

# Concurrency

The overlay and the cache are safe for concurrent use. FS as a whole assumes
one logical caller: recursive operations are not isolated from concurrent
mutation of the same subtree.

# Limitations

  - No permissions, ownership, links or file locking
  - Overlay entries are always files; directories exist only in the store
  - Not crash consistent: a failed recursive operation leaves partial results
*/
package projectfs

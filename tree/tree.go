// Package tree flattens a project subtree into parent-linked records for
// display.
package tree

import (
	"context"
	"path"

	"github.com/google/uuid"

	projectfs "github.com/nujan-io/nujan-ide-sub000"
)

// Source is the part of the filesystem the reader needs. *projectfs.FS
// satisfies it.
type Source interface {
	ReadDir(ctx context.Context, name string, opts projectfs.ReadDirOptions) ([]string, error)
	Stat(ctx context.Context, name string) (projectfs.Info, error)
}

// Node is one file or directory below the traversal root.
type Node struct {
	// ID is derived from Path, so it is stable across reads.
	ID   string `json:"id"`
	Name string `json:"name"`
	// Parent is the path of the containing directory relative to the root,
	// empty for top-level nodes.
	Parent string         `json:"parent,omitempty"`
	Type   projectfs.Kind `json:"type"`
	// Path is relative to the root.
	Path string `json:"path"`
}

// IsDir reports whether the node is a directory.
func (n Node) IsDir() bool { return n.Type == projectfs.KindDirectory }

// NodeID returns the ID given to the node at rel.
func NodeID(rel string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(rel)).String()
}

// Read lists every node below root, depth-first with directories before
// their contents. Directories that are only implied by the path of a
// virtual file get a node of their own so that every parent resolves.
func Read(ctx context.Context, src Source, root string) ([]Node, error) {
	root = path.Clean("/" + root)

	entries, err := src.ReadDir(ctx, root, projectfs.ReadDirOptions{Recursive: true, BasePath: root})
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(entries))
	seen := make(map[string]bool, len(entries))

	for _, rel := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seen[rel] {
			continue
		}

		info, err := src.Stat(ctx, path.Join(root, rel))
		if err != nil {
			return nil, err
		}

		nodes = appendMissingParents(nodes, seen, path.Dir(rel))
		nodes = append(nodes, newNode(rel, info.Kind))
		seen[rel] = true
	}
	return nodes, nil
}

// appendMissingParents adds directory nodes for dir and its ancestors that
// have not been emitted yet, outermost first.
func appendMissingParents(nodes []Node, seen map[string]bool, dir string) []Node {
	var missing []string
	for dir != "." && dir != "/" && !seen[dir] {
		missing = append(missing, dir)
		dir = path.Dir(dir)
	}
	for i := len(missing) - 1; i >= 0; i-- {
		nodes = append(nodes, newNode(missing[i], projectfs.KindDirectory))
		seen[missing[i]] = true
	}
	return nodes
}

func newNode(rel string, kind projectfs.Kind) Node {
	n := Node{
		ID:   NodeID(rel),
		Name: path.Base(rel),
		Type: kind,
		Path: rel,
	}
	if parent := path.Dir(rel); parent != "." {
		n.Parent = parent
	}
	return n
}

// Children returns the nodes whose parent is dir ("" for the root), in
// their original order.
func Children(nodes []Node, dir string) []Node {
	var out []Node
	for _, n := range nodes {
		if n.Parent == dir {
			out = append(out, n)
		}
	}
	return out
}

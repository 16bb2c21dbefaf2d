// Package pathtree implements the persistent, copy-on-write directory
// tree the History Builder diffs against to turn a revision's flat
// Node-records into per-branch commits. Every Tree value is an
// immutable snapshot; mutating operations return a new Tree that shares
// every untouched subtree with its parent, so branching a large directory
// (an SVN copyfrom) is an O(1) pointer assignment rather than a deep copy.
package pathtree

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// ID indexes a node in an Arena. IDs are never reused across snapshots
// still reachable from some Tree value, which is what makes the O(1)
// subtree share safe: an old Tree's IDs keep pointing at the same nodes
// even after the arena has grown.
type ID int

const invalidID ID = -1

// Kind distinguishes file entries from directory entries.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

// File carries everything about a file entry that the Object Pipeline
// needs once it is ready to be written as a git blob: SVN sets the
// executable bit and symlink-ness via properties rather than file mode,
// so the tree keeps them alongside whatever content reference the caller
// gave it.
type File struct {
	Content    any // opaque: raw bytes during replay, a blob ref once staged
	Executable bool
	Symlink    bool
}

// node is one arena slot: either a file entry, or a directory whose
// children map preserves SVN's original child-creation order (ordered
// iteration matters for deterministic tree-object hashing downstream).
type node struct {
	kind     Kind
	file     File
	children *linkedhashmap.Map // name (string) -> ID
	props    map[string][]byte
}

// Arena owns every node ever created across a family of Tree snapshots
// descended from the same NewTree call. Nodes are append-only: a
// mutation allocates new nodes for the path being changed and reuses the
// IDs of every sibling left untouched.
type Arena struct {
	nodes []node
}

func newArena() *Arena {
	return &Arena{nodes: make([]node, 0, 1024)}
}

func (a *Arena) get(id ID) *node {
	return &a.nodes[id]
}

// alloc appends a copy of n and returns its new ID. Callers pass a value,
// never a pointer, specifically so the arena's backing array can grow
// (and reallocate) without invalidating nodes already referenced by other
// IDs.
func (a *Arena) alloc(n node) ID {
	a.nodes = append(a.nodes, n)
	return ID(len(a.nodes) - 1)
}

func newDirNode(props map[string][]byte) node {
	return node{kind: KindDir, children: linkedhashmap.New(), props: props}
}

func newFileNode(f File, props map[string][]byte) node {
	return node{kind: KindFile, file: f, props: props}
}

package pathtree

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Tree is one immutable snapshot of a directory hierarchy, the state the
// working copy would have been in at one SVN revision for one branch.
// Every mutating method returns a new Tree; the receiver is left exactly
// as it was, which is what lets the History Builder hold on to a prior
// revision's Tree as the base for a diff while building the next one.
type Tree struct {
	arena *Arena
	root  ID
}

// New returns an empty tree (a bare root directory, no children, no
// properties) backed by a fresh Arena. Every Tree produced by mutating it
// shares that Arena, which is what makes CopyFrom an O(1) operation: the
// source and destination trees must come from the same New call.
func New() Tree {
	a := newArena()
	root := a.alloc(newDirNode(nil))
	return Tree{arena: a, root: root}
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" || path == "." {
		return nil
	}
	return strings.Split(path, "/")
}

// Entry is a read view of one node, returned by Get.
type Entry struct {
	Kind  Kind
	File  File
	Props map[string][]byte
}

// Get resolves path against the snapshot.
func (t Tree) Get(path string) (Entry, bool) {
	id, ok := t.lookup(splitPath(path))
	if !ok {
		return Entry{}, false
	}
	n := t.arena.get(id)
	return Entry{Kind: n.kind, File: n.file, Props: n.props}, true
}

func (t Tree) lookup(parts []string) (ID, bool) {
	id := t.root
	for _, part := range parts {
		n := t.arena.get(id)
		if n.kind != KindDir {
			return invalidID, false
		}
		childID, ok := n.children.Get(part)
		if !ok {
			return invalidID, false
		}
		id = childID.(ID)
	}
	return id, true
}

// mutateParent walks from root to the parent directory named by
// parts[:len(parts)-1], calls apply on the parent's ID and the leaf name,
// and rebuilds every ancestor along the way as a fresh node sharing every
// other child unchanged. The empty path (root itself) is rejected by
// every caller before reaching here.
func (t Tree) mutateParent(parts []string, apply func(a *Arena, parentID ID, name string) (ID, error)) (Tree, error) {
	if len(parts) == 0 {
		return Tree{}, fmt.Errorf("pathtree: cannot mutate the root directly")
	}
	newRoot, err := rebuild(t.arena, t.root, parts, apply)
	if err != nil {
		return Tree{}, err
	}
	return Tree{arena: t.arena, root: newRoot}, nil
}

func rebuild(a *Arena, id ID, parts []string, apply func(a *Arena, parentID ID, name string) (ID, error)) (ID, error) {
	n := a.get(id)
	if n.kind != KindDir {
		return invalidID, ErrNotDir
	}
	if len(parts) == 1 {
		return apply(a, id, parts[0])
	}
	childIDRaw, ok := n.children.Get(parts[0])
	if !ok {
		return invalidID, fmt.Errorf("%w: %s", ErrNotFound, parts[0])
	}
	newChildID, err := rebuild(a, childIDRaw.(ID), parts[1:], apply)
	if err != nil {
		return invalidID, err
	}
	return cloneDirSetChild(a, id, parts[0], newChildID), nil
}

// cloneDirSetChild allocates a new directory node identical to id's
// except that name now maps to childID (added, replaced, or left alone
// if childID == invalidID meaning "remove").
func cloneDirSetChild(a *Arena, id ID, name string, childID ID) ID {
	n := a.get(id)
	children := cloneChildrenImpl(n.children)
	if childID == invalidID {
		children.Remove(name)
	} else {
		children.Put(name, childID)
	}
	return a.alloc(node{kind: KindDir, children: children, props: n.props})
}

// cloneChildrenImpl returns a shallow copy of a directory's children map:
// same name -> ID pairs, in the same order, but a distinct Map value so
// the original is untouched by subsequent Put/Remove calls.
func cloneChildrenImpl(m *linkedhashmap.Map) *linkedhashmap.Map {
	out := linkedhashmap.New()
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		out.Put(k, v)
	}
	return out
}

// AddFile creates a new file entry at path. The parent directory chain
// must already exist (SVN dumps always carry an explicit dir-add record
// for every new directory, so there is never an implicit mkdir -p here)
// and nothing may already occupy path.
func (t Tree) AddFile(path string, f File, props map[string][]byte) (Tree, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return Tree{}, fmt.Errorf("pathtree: cannot add the root")
	}
	return t.mutateParent(parts, func(a *Arena, parentID ID, name string) (ID, error) {
		parent := a.get(parentID)
		if parent.kind != KindDir {
			return invalidID, ErrNotDir
		}
		if _, exists := parent.children.Get(name); exists {
			return invalidID, fmt.Errorf("%w: %s", ErrExists, path)
		}
		newID := a.alloc(newFileNode(f, props))
		return cloneDirSetChild(a, parentID, name, newID), nil
	})
}

// AddDir creates a new, empty directory entry at path.
func (t Tree) AddDir(path string, props map[string][]byte) (Tree, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return Tree{}, fmt.Errorf("pathtree: cannot add the root")
	}
	return t.mutateParent(parts, func(a *Arena, parentID ID, name string) (ID, error) {
		parent := a.get(parentID)
		if parent.kind != KindDir {
			return invalidID, ErrNotDir
		}
		if _, exists := parent.children.Get(name); exists {
			return invalidID, fmt.Errorf("%w: %s", ErrExists, path)
		}
		newID := a.alloc(newDirNode(props))
		return cloneDirSetChild(a, parentID, name, newID), nil
	})
}

// ChangeFile replaces the content and/or properties of an existing file
// entry (an SVN "change" or "replace" action on a file node).
func (t Tree) ChangeFile(path string, f File, props map[string][]byte) (Tree, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return Tree{}, fmt.Errorf("pathtree: cannot change the root")
	}
	return t.mutateParent(parts, func(a *Arena, parentID ID, name string) (ID, error) {
		parent := a.get(parentID)
		existingRaw, ok := parent.children.Get(name)
		if !ok {
			return invalidID, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		existing := a.get(existingRaw.(ID))
		if existing.kind != KindFile {
			return invalidID, ErrIsDir
		}
		newID := a.alloc(newFileNode(f, props))
		return cloneDirSetChild(a, parentID, name, newID), nil
	})
}

// SetProperties replaces the property table on whatever already occupies
// path, without touching its content or children.
func (t Tree) SetProperties(path string, props map[string][]byte) (Tree, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return Tree{}, fmt.Errorf("pathtree: cannot set properties on the root directly")
	}
	return t.mutateParent(parts, func(a *Arena, parentID ID, name string) (ID, error) {
		parent := a.get(parentID)
		existingRaw, ok := parent.children.Get(name)
		if !ok {
			return invalidID, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		existing := a.get(existingRaw.(ID))
		var newID ID
		if existing.kind == KindFile {
			newID = a.alloc(newFileNode(existing.file, props))
		} else {
			children := cloneChildrenImpl(existing.children)
			newID = a.alloc(node{kind: KindDir, children: children, props: props})
		}
		return cloneDirSetChild(a, parentID, name, newID), nil
	})
}

// Delete removes whatever occupies path, recursively for directories
// (git has no notion of an explicit directory object to delete: removing
// every file under it is enough, and the History Builder relies on that
// when it walks the result for changed blobs).
func (t Tree) Delete(path string) (Tree, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return Tree{}, fmt.Errorf("pathtree: cannot delete the root")
	}
	return t.mutateParent(parts, func(a *Arena, parentID ID, name string) (ID, error) {
		parent := a.get(parentID)
		if _, ok := parent.children.Get(name); !ok {
			return invalidID, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return cloneDirSetChild(a, parentID, name, invalidID), nil
	})
}

// CopyFrom attaches the subtree rooted at srcPath in src (any earlier
// snapshot sharing this Tree's Arena) as destPath in t. Because snapshots
// are immutable, this is a single pointer assignment regardless of how
// large the source subtree is -- the O(1) copy guarantee SVN's own
// copyfrom mechanism relies on.
func (t Tree) CopyFrom(destPath string, src Tree, srcPath string) (Tree, error) {
	if src.arena != t.arena {
		return Tree{}, fmt.Errorf("pathtree: CopyFrom requires a snapshot from the same tree family")
	}
	srcID, ok := src.lookup(splitPath(srcPath))
	if !ok {
		return Tree{}, fmt.Errorf("%w: copyfrom source %s", ErrNotFound, srcPath)
	}

	parts := splitPath(destPath)
	if len(parts) == 0 {
		return Tree{arena: t.arena, root: srcID}, nil
	}
	return t.mutateParent(parts, func(a *Arena, parentID ID, name string) (ID, error) {
		return cloneDirSetChild(a, parentID, name, srcID), nil
	})
}

// Walk visits every file entry in the snapshot in child-creation order,
// yielding its full path.
func (t Tree) Walk(visit func(path string, f File) error) error {
	return t.walk(t.root, "", visit)
}

// WalkAll visits every entry, directories included, in child-creation
// order. Directories are visited before their contents; the root itself
// is not visited.
func (t Tree) WalkAll(visit func(path string, e Entry) error) error {
	return t.walkAll(t.root, "", visit)
}

func (t Tree) walkAll(id ID, prefix string, visit func(path string, e Entry) error) error {
	n := t.arena.get(id)
	if prefix != "" {
		if err := visit(prefix, Entry{Kind: n.kind, File: n.file, Props: n.props}); err != nil {
			return err
		}
	}
	if n.kind != KindDir {
		return nil
	}
	for _, nameRaw := range n.children.Keys() {
		name := nameRaw.(string)
		childIDRaw, _ := n.children.Get(name)
		childPath := name
		if prefix != "" {
			childPath = prefix + "/" + name
		}
		if err := t.walkAll(childIDRaw.(ID), childPath, visit); err != nil {
			return err
		}
	}
	return nil
}

func (t Tree) walk(id ID, prefix string, visit func(path string, f File) error) error {
	n := t.arena.get(id)
	if n.kind == KindFile {
		return visit(prefix, n.file)
	}
	for _, nameRaw := range n.children.Keys() {
		name := nameRaw.(string)
		childIDRaw, _ := n.children.Get(name)
		childPath := name
		if prefix != "" {
			childPath = prefix + "/" + name
		}
		if err := t.walk(childIDRaw.(ID), childPath, visit); err != nil {
			return err
		}
	}
	return nil
}

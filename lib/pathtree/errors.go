package pathtree

import "errors"

var (
	// ErrNotFound is returned when a path has no entry in the snapshot.
	ErrNotFound = errors.New("pathtree: path not found")
	// ErrNotDir is returned when an operation expects a directory entry
	// but finds a file (e.g. descending through a path component, or
	// copying a subtree from a file path).
	ErrNotDir = errors.New("pathtree: not a directory")
	// ErrIsDir is returned when an operation expects a file entry but
	// finds a directory.
	ErrIsDir = errors.New("pathtree: is a directory")
	// ErrExists is returned by Add when something already occupies path.
	ErrExists = errors.New("pathtree: path already exists")
	// errDifferentFamilies is returned when an operation is given two
	// Tree values that were not derived from the same New call, so their
	// IDs are not comparable.
	errDifferentFamilies = errors.New("pathtree: snapshots from different tree families")
)

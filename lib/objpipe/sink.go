// Package objpipe implements the Object Pipeline: a four-stage
// async pipeline (blob -> stage/tree -> commit -> ref) sitting behind an
// abstract Sink, with per-branch serialization, cross-branch
// parallelism, and a single global write-tree serialization point.
package objpipe

import "time"

// FileMode mirrors the handful of Git tree entry modes the History
// Builder needs: regular, executable, and symlink.
type FileMode string

const (
	ModeRegular    FileMode = "100644"
	ModeExecutable FileMode = "100755"
	ModeSymlink    FileMode = "120000"
)

// Identity is a (Name, Email) commit actor; kept local to avoid this
// package depending on lib/config for a two-field struct.
type Identity struct {
	Name  string
	Email string
}

// Sink is the abstract Git object store: hash-
// object, stage, write-tree, commit, update-ref. The reference
// implementation (internal/gitsink) spawns the `git` binary; an
// in-process fake backs unit tests.
type Sink interface {
	// HashObject computes (and stores) the blob sha for content,
	// applying no transformation itself -- transformers run in the blob
	// stage before HashObject is called.
	HashObject(content []byte) (sha string, err error)
	// Stage records one entry (add, or remove when remove is true) in the
	// given branch's in-progress index.
	Stage(branch string, path string, mode FileMode, sha string, remove bool) error
	// WriteTree flushes the branch's staged index into a tree object.
	// All WriteTree calls across every branch are globally
	// serialized by the caller (this method itself need not be
	// reentrant-safe across branches).
	WriteTree(branch string) (sha string, err error)
	// Commit creates a commit object.
	Commit(tree string, parents []string, author, committer Identity, authorTime, committerTime time.Time, message string) (sha string, err error)
	// UpdateRef moves refname to sha, optionally checking it currently
	// points at prevSha (empty prevSha means "must not already exist").
	UpdateRef(refname, sha, prevSha string) error
}

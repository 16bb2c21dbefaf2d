package objpipe

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemSink is an in-process Sink that needs no repository: blob shas are
// the ones git hash-object computes, while trees and commits are hashed
// over simplified stable encodings, not git's own. It backs unit tests
// and runs without --target-repository
// where the caller wants the commit graph without writing anywhere.
type MemSink struct {
	mu      sync.Mutex
	indexes map[string]map[string]stagedEntry // branch -> path -> entry
	Refs    map[string]string
	Commits map[string]MemCommit
}

// MemCommit retains enough of a created commit for tests to assert on.
type MemCommit struct {
	Tree    string
	Parents []string
	Message string
	Author  Identity
	When    time.Time
}

type stagedEntry struct {
	mode FileMode
	sha  string
}

// NewMemSink returns an empty in-memory sink.
func NewMemSink() *MemSink {
	return &MemSink{
		indexes: map[string]map[string]stagedEntry{},
		Refs:    map[string]string{},
		Commits: map[string]MemCommit{},
	}
}

// HashObject hashes content exactly as git hash-object does.
func (m *MemSink) HashObject(content []byte) (string, error) {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Stage records one index entry for branch.
func (m *MemSink) Stage(branch, path string, mode FileMode, sha string, remove bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexes[branch]
	if idx == nil {
		idx = map[string]stagedEntry{}
		m.indexes[branch] = idx
	}
	if remove {
		delete(idx, path)
		// Removing a directory's worth of entries by prefix mirrors
		// update-index --force-remove being fed every file separately;
		// a bare prefix remove covers policy <DeletePath> directories.
		for p := range idx {
			if strings.HasPrefix(p, path+"/") {
				delete(idx, p)
			}
		}
		return nil
	}
	idx[path] = stagedEntry{mode: mode, sha: sha}
	return nil
}

// WriteTree renders branch's index as a canonical flat manifest and
// hashes it. Real git builds nested tree objects; a stable hash over the
// sorted manifest preserves every property the pipeline relies on
// (identical indexes produce identical shas, any change changes the
// sha).
func (m *MemSink) WriteTree(branch string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexes[branch]
	paths := make([]string, 0, len(idx))
	for p := range idx {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf strings.Builder
	for _, p := range paths {
		e := idx[p]
		fmt.Fprintf(&buf, "%s %s\x00%s\n", e.mode, p, e.sha)
	}
	sum := sha1.Sum([]byte(buf.String()))
	return hex.EncodeToString(sum[:]), nil
}

// Tree returns a copy of branch's current index, for assertions.
func (m *MemSink) Tree(branch string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for p, e := range m.indexes[branch] {
		out[p] = e.sha
	}
	return out
}

// Commit hashes a canonical commit encoding.
func (m *MemSink) Commit(tree string, parents []string, author, committer Identity,
	authorTime, committerTime time.Time, message string) (string, error) {
	var buf strings.Builder
	fmt.Fprintf(&buf, "tree %s\n", tree)
	for _, p := range parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s <%s> %d\n", author.Name, author.Email, authorTime.Unix())
	fmt.Fprintf(&buf, "committer %s <%s> %d\n\n%s", committer.Name, committer.Email, committerTime.Unix(), message)
	sum := sha1.Sum([]byte(buf.String()))
	sha := hex.EncodeToString(sum[:])

	m.mu.Lock()
	m.Commits[sha] = MemCommit{Tree: tree, Parents: parents, Message: message, Author: author, When: authorTime}
	m.mu.Unlock()
	return sha, nil
}

// UpdateRef records the ref move.
func (m *MemSink) UpdateRef(refname, sha, prevSha string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prevSha != "" && m.Refs[refname] != prevSha {
		return fmt.Errorf("objpipe: ref %s moved underneath us", refname)
	}
	m.Refs[refname] = sha
	return nil
}

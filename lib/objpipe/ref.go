package objpipe

import (
	"sort"
	"strings"
	"sync"
)

// RefUpdate is one pending reference write, waiting on the commit it
// should point at.
type RefUpdate struct {
	Refname string
	Commit  *CommitHandle
}

// RefStage collects every ref the run will write and applies them only
// after all commits have completed. Nothing is written for work that
// never produced a commit, so an aborted run leaves the target refs
// untouched.
type RefStage struct {
	sink Sink

	mu      sync.Mutex
	pending []RefUpdate
}

// NewRefStage returns a RefStage backed by sink.
func NewRefStage(sink Sink) *RefStage {
	return &RefStage{sink: sink}
}

// Add queues refname to be pointed at commit once it resolves. Calling
// Add twice for the same refname keeps only the later registration: a
// branch tip advances past its earlier commits.
func (r *RefStage) Add(refname string, commit *CommitHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.pending {
		if r.pending[i].Refname == refname {
			r.pending[i].Commit = commit
			return
		}
	}
	r.pending = append(r.pending, RefUpdate{Refname: refname, Commit: commit})
}

// Finish waits for every queued commit and writes all refs, in sorted
// refname order so two runs produce identical update sequences. The
// first commit error aborts without writing anything.
func (r *RefStage) Finish() error {
	r.mu.Lock()
	pending := append([]RefUpdate(nil), r.pending...)
	r.mu.Unlock()

	resolved := make(map[string]string, len(pending))
	for _, upd := range pending {
		sha, err := upd.Commit.Wait()
		if err != nil {
			return err
		}
		resolved[upd.Refname] = sha
	}

	names := make([]string, 0, len(resolved))
	for name := range resolved {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.sink.UpdateRef(name, resolved[name], ""); err != nil {
			return err
		}
	}
	return nil
}

// Refnames returns every queued refname, for --prune-refs comparison
// against what the target repository already holds.
func (r *RefStage) Refnames() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool, len(r.pending))
	for _, upd := range r.pending {
		out[upd.Refname] = true
	}
	return out
}

// Prune deletes refs under the managed prefixes (refs/heads, refs/tags,
// refs/revisions) that exist in the target but were not produced by this
// run. existing is the target's current refname set; deletion happens
// through the deleteRef callback.
func (r *RefStage) Prune(existing []string, deleteRef func(refname string) error) error {
	live := r.Refnames()
	for _, name := range existing {
		if live[name] {
			continue
		}
		if !strings.HasPrefix(name, "refs/heads/") &&
			!strings.HasPrefix(name, "refs/tags/") &&
			!strings.HasPrefix(name, "refs/revisions/") {
			continue
		}
		if err := deleteRef(name); err != nil {
			return err
		}
	}
	return nil
}

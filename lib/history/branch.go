package history

import (
	"strings"

	"github.com/kfsone/svn2git/lib/mergeinfo"
	"github.com/kfsone/svn2git/lib/objpipe"
	"github.com/kfsone/svn2git/lib/refmap"
)

// Branch is one SVN directory that has been mapped to a refname: its
// lifecycle runs from the revision that created the directory until the
// revision (if any) that deletes it, with revival starting a fresh
// Branch that takes back the original refname (the ended history stays
// reachable through its *_deleted@rN ref).
type Branch struct {
	Refname string
	Path    string // the SVN directory this branch tracks
	Prefix  string // tree prefix inserted ahead of worktree paths, "" for none

	FirstRev int
	Parent   *Branch
	// CreatedFromPath/Rev record the copyfrom that created the branch
	// root, when there was one.
	CreatedFromPath string
	CreatedFromRev  int

	Resolution refmap.Resolution

	// Tip is the most recent commit's handle; nil until the branch has
	// produced its first commit.
	Tip    *objpipe.CommitHandle
	TipRev int

	// revs lists every SVN revision that produced a commit here, in
	// order; commits maps each back to its handle so another branch can
	// name "your commit for r1234" as a merge parent. changedPaths keeps
	// each commit's branch-relative touched paths for the IgnoreUnmerged
	// coverage exclusion.
	revs         []int
	commits      map[int]*objpipe.CommitHandle
	changedPaths map[int][]string

	Deleted   bool
	DeletedAt int
	// lastMergedTip records the most recent commit of this branch used
	// as a merge parent elsewhere; a deleted branch whose tip equals it
	// was fully absorbed and needs no *_deleted@rN ref.
	lastMergedTip *objpipe.CommitHandle

	// pendingSkip accumulates the log messages of skipped revisions, to
	// be prepended to the next emitted commit's message.
	pendingSkip []string

	// lastMergeinfo is the branch root's mergeinfo as of the previous
	// commit, the baseline each revision's delta is computed against.
	lastMergeinfo *mergeinfo.Info

	// initialPaths is the branch's file path set at creation, kept for
	// orphan linking's tree-overlap comparison.
	initialPaths map[string]bool
	// orphan marks a branch created without a copyfrom parent.
	orphan bool
}

// CommitAtOrBefore returns the handle for the branch's last commit at or
// before rev, or nil if the branch had no commit yet by then.
func (b *Branch) CommitAtOrBefore(rev int) *objpipe.CommitHandle {
	var best *objpipe.CommitHandle
	for _, r := range b.revs {
		if r > rev {
			break
		}
		best = b.commits[r]
	}
	return best
}

// recordCommit books a new commit for rev, with the branch-relative
// paths it touched, and advances the tip.
func (b *Branch) recordCommit(rev int, handle *objpipe.CommitHandle, paths []string) {
	if b.commits == nil {
		b.commits = map[int]*objpipe.CommitHandle{}
		b.changedPaths = map[int][]string{}
	}
	b.revs = append(b.revs, rev)
	b.commits[rev] = handle
	b.changedPaths[rev] = paths
	b.Tip = handle
	b.TipRev = rev
}

// Registry tracks every live and ended branch, resolving SVN paths to
// their owning branch by longest mapped prefix. It also serves the merge
// reconstructor's view of branches (mergeinfo.BranchSource).
type Registry struct {
	byPath map[string]*Branch
	byRef  map[string]*Branch
	order  []*Branch // creation order, live and ended alike
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byPath: map[string]*Branch{}, byRef: map[string]*Branch{}}
}

// Create registers a new live branch.
func (r *Registry) Create(b *Branch) {
	r.byPath[b.Path] = b
	r.byRef[b.Refname] = b
	r.order = append(r.order, b)
}

// Owner returns the live branch whose path is the longest prefix of
// path, along with the path's remainder below the branch root ("" when
// path is the branch root itself).
func (r *Registry) Owner(path string) (*Branch, string, bool) {
	path = strings.Trim(path, "/")
	probe := path
	for {
		if b, ok := r.byPath[probe]; ok && !b.Deleted {
			sub := strings.TrimPrefix(strings.TrimPrefix(path, probe), "/")
			return b, sub, true
		}
		idx := strings.LastIndexByte(probe, '/')
		if idx < 0 {
			return nil, "", false
		}
		probe = probe[:idx]
	}
}

// ByRef returns the branch registered under refname, live or ended.
func (r *Registry) ByRef(refname string) (*Branch, bool) {
	b, ok := r.byRef[refname]
	return b, ok
}

// Live returns every branch not yet deleted, in creation order.
func (r *Registry) Live() []*Branch {
	var out []*Branch
	for _, b := range r.order {
		if !b.Deleted {
			out = append(out, b)
		}
	}
	return out
}

// All returns every branch ever created, in creation order.
func (r *Registry) All() []*Branch {
	return r.order
}

// EndUnder marks every live branch at or below path deleted as of rev,
// returning the branches ended.
func (r *Registry) EndUnder(path string, rev int) []*Branch {
	path = strings.Trim(path, "/")
	var ended []*Branch
	for _, b := range r.order {
		if b.Deleted {
			continue
		}
		if b.Path == path || strings.HasPrefix(b.Path, path+"/") {
			b.Deleted = true
			b.DeletedAt = rev
			delete(r.byPath, b.Path)
			ended = append(ended, b)
		}
	}
	return ended
}

// ResolveBranch implements mergeinfo.BranchSource: mergeinfo source
// paths carry a leading slash, branch paths do not.
func (r *Registry) ResolveBranch(path string) (string, string, bool) {
	b, sub, ok := r.Owner(strings.TrimPrefix(path, "/"))
	if !ok {
		return "", "", false
	}
	return b.Refname, sub, true
}

// RevisionsOnBranch implements mergeinfo.BranchSource.
func (r *Registry) RevisionsOnBranch(refname string) []int {
	b, ok := r.byRef[refname]
	if !ok {
		return nil
	}
	return b.revs
}

package mergeinfo

// Category classifies one mergeinfo-delta entry.
type Category int

const (
	// BranchMerge: a mergeinfo src-path that resolves to another branch's
	// root. Classify does not compare the source commit's tree with the
	// merged subtree.
	BranchMerge Category = iota
	// FileMerge: a mergeinfo src-path that resolves to a path below
	// another branch's root. Classify does not check whether the two
	// branches are similarly structured.
	FileMerge
	// DirCopy: the current revision's directory copyfrom resolves to
	// another branch (its root or a subdirectory of it).
	DirCopy
	// FileCopy: the current revision's file copyfrom resolves to another
	// branch. Classify does not measure how similar the two branch trees
	// are.
	FileCopy
)

func (c Category) String() string {
	switch c {
	case BranchMerge:
		return "branch_merge"
	case FileMerge:
		return "file_merge"
	case DirCopy:
		return "dir_copy"
	case FileCopy:
		return "file_copy"
	default:
		return "unknown"
	}
}

// Candidate is one classified mergeinfo-delta entry awaiting a coverage
// check and RecreateMerges gating.
type Candidate struct {
	SourcePath   string
	SourceBranch string
	Category     Category
	Ranges       RangeSet
	// Unconditional marks a whole-directory copy whose source maps to a
	// branch root, which is always a merge edge regardless of the
	// RecreateMerges setting.
	Unconditional bool
}

// BranchSource resolves an svn:mergeinfo source path (or a copyfrom
// source path) to the branch refname that owns it, if any. Implemented by
// the History Builder's branch registry; kept as an interface here so
// this package never imports lib/history.
type BranchSource interface {
	// ResolveBranch reports the refname whose mapped SVN directory is an
	// ancestor-or-equal of path, and the remainder of path below that
	// branch's root ("" if it *is* the branch root).
	ResolveBranch(path string) (refname string, subpath string, ok bool)
	// RevisionsOnBranch returns every SVN revision that produced a commit
	// on refname, used for the coverage check.
	RevisionsOnBranch(refname string) []int
}

// Classify turns a mergeinfo delta into Candidates, resolving each
// source path against branches. copyFromPath/copyFromRev,
// when non-empty, describe the current revision's own Node-copyfrom-*
// record (used to recognize dir_copy/file_copy even when no mergeinfo
// delta entry exists for that exact path).
func Classify(delta *Info, sources BranchSource, copyFromPath string, copyFromRev int, copyIsDir bool) []Candidate {
	var out []Candidate
	for path, ranges := range delta.paths {
		refname, subpath, ok := sources.ResolveBranch(path)
		if !ok {
			continue
		}
		cat := BranchMerge
		if subpath != "" {
			cat = FileMerge
		}
		out = append(out, Candidate{SourcePath: path, SourceBranch: refname, Category: cat, Ranges: ranges})
	}

	if copyFromPath != "" {
		if refname, subpath, ok := sources.ResolveBranch(copyFromPath); ok {
			cat := DirCopy
			unconditional := copyIsDir && subpath == ""
			if !copyIsDir {
				cat = FileCopy
			}
			out = append(out, Candidate{
				SourcePath: copyFromPath, SourceBranch: refname, Category: cat,
				Ranges:        RangeSet{{Start: copyFromRev, End: copyFromRev}},
				Unconditional: unconditional,
			})
		}
	}

	return out
}

// Coverage checks whether ranges covers every revision RevisionsOnBranch
// reports for c.SourceBranch up to the highest merged revision, excluding
// any revision in ignoreUnmerged. A false result means the
// caller must downgrade the candidate to a Cherry-picked-from annotation
// instead of a parent edge.
func Coverage(sources BranchSource, c Candidate, ignoreUnmerged map[int]bool) bool {
	if len(c.Ranges) == 0 {
		return false
	}
	maxMerged := c.Ranges[len(c.Ranges)-1].End
	var need RangeSet
	for _, rev := range sources.RevisionsOnBranch(c.SourceBranch) {
		if rev > maxMerged || ignoreUnmerged[rev] {
			continue
		}
		need = Combine(need, RangeSet{{Start: rev, End: rev}})
	}
	return Covers(c.Ranges, need)
}

// AncestorChecker reports whether commit "a" is a git-ancestor of commit
// "b", needed for the Single-branch fast-forward check. The
// Object Pipeline's concrete sink backs this once commits are staged.
type AncestorChecker interface {
	IsAncestor(a, b string) (bool, error)
}

// IsFastForward reports whether the merge parent subsumes the branch's
// own history: its tip is already an ancestor of the proposed merge
// base, so no merge commit is needed, just a pointer update.
func IsFastForward(checker AncestorChecker, branchTip, mergeBase string) (bool, error) {
	if branchTip == "" || mergeBase == "" {
		return false, nil
	}
	return checker.IsAncestor(branchTip, mergeBase)
}

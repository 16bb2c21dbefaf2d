package history

import (
	"fmt"

	"github.com/kfsone/svn2git/lib/dump"
	"github.com/kfsone/svn2git/lib/mergeinfo"
	"github.com/kfsone/svn2git/lib/objpipe"
	"github.com/kfsone/svn2git/lib/pathtree"
)

// mergeParents derives this change-set's extra parent edges from the
// branch root's svn:mergeinfo delta and from any branch-creating
// copyfrom, returning the parent handles plus any candidates downgraded
// to Cherry-picked-from annotations.
func (bld *Builder) mergeParents(rev *dump.Revision, b *Branch, snap pathtree.Tree) ([]*objpipe.CommitHandle, []string) {
	cur := bld.currentMergeinfo(b, snap)
	prev := b.lastMergeinfo
	if prev == nil {
		prev, _ = mergeinfo.New("")
	}
	delta := cur.Diff(prev)
	b.lastMergeinfo = cur

	copyPath, copyRev, copyIsDir := "", 0, false
	if b.FirstRev == rev.Number && b.CreatedFromPath != "" {
		copyPath, copyRev, copyIsDir = b.CreatedFromPath, b.CreatedFromRev, true
	}

	candidates := mergeinfo.Classify(delta, bld.reg, copyPath, copyRev, copyIsDir)

	var parents []*objpipe.CommitHandle
	var cherry []string
	seen := map[string]bool{}

	for _, c := range candidates {
		if c.SourceBranch == b.Refname || seen[c.SourceBranch] {
			continue
		}
		if !c.Unconditional && !recreateEnabled(b.Resolution.RecreateMerges, c.Category) {
			continue
		}

		src, ok := bld.reg.ByRef(c.SourceBranch)
		if !ok || len(c.Ranges) == 0 {
			continue
		}
		mergeBase := src.CommitAtOrBefore(c.Ranges[len(c.Ranges)-1].End)
		if mergeBase == nil || mergeBase == b.Tip {
			continue
		}

		if !c.Unconditional && !mergeinfo.Coverage(bld.reg, c, bld.ignorableRevs(src)) {
			cherry = append(cherry, fmt.Sprintf("%s@r%d", c.SourceBranch, c.Ranges[len(c.Ranges)-1].End))
			bld.seq.Printf(rev.Number, "r%d: %s: incomplete merge from %s, recording cherry-pick",
				rev.Number, b.Refname, c.SourceBranch)
			continue
		}

		seen[c.SourceBranch] = true
		src.lastMergedTip = mergeBase
		parents = append(parents, mergeBase)
		bld.seq.Printf(rev.Number, "r%d: %s: %s parent from %s", rev.Number, b.Refname, c.Category, c.SourceBranch)
	}

	return parents, cherry
}

// ignorableRevs lists src commits whose every touched path matches
// <IgnoreUnmerged>; the coverage check may treat those as merged even
// when svn:mergeinfo never records them (version bumps, changelogs and
// the like are routinely left behind on purpose).
func (bld *Builder) ignorableRevs(src *Branch) map[int]bool {
	if bld.project.Unmerged == nil {
		return nil
	}
	out := map[int]bool{}
	for _, r := range src.revs {
		paths := src.changedPaths[r]
		if len(paths) == 0 {
			continue
		}
		all := true
		for _, p := range paths {
			if !bld.project.IsIgnoredUnmerged(p) {
				all = false
				break
			}
		}
		if all {
			out[r] = true
		}
	}
	return out
}

// fastForward reports whether mergeParent subsumes the branch's own
// history, returning the handle to adopt when it does. The decision
// needs both commits' shas bound, so it waits on the handles; their
// chains never depend on the commit being decided here, so the wait
// cannot cycle. With no ancestry checker the answer is unknowable and
// nil keeps the merge a real commit.
func (bld *Builder) fastForward(b *Branch, mergeParent *objpipe.CommitHandle) *objpipe.CommitHandle {
	if bld.ancestry == nil {
		return nil
	}
	tipSha, err := b.Tip.Wait()
	if err != nil {
		return nil
	}
	mergeSha, err := mergeParent.Wait()
	if err != nil {
		return nil
	}
	ok, err := mergeinfo.IsFastForward(bld.ancestry, tipSha, mergeSha)
	if err != nil || !ok {
		return nil
	}
	return mergeParent
}

// recreateEnabled gates a candidate's category on the mapping's
// RecreateMerges list. With nothing configured, whole-branch merges and
// directory copies are reconstructed and the riskier single-file
// categories are left as annotations.
func recreateEnabled(conf map[string]bool, cat mergeinfo.Category) bool {
	if len(conf) == 0 {
		return cat == mergeinfo.BranchMerge || cat == mergeinfo.DirCopy
	}
	return conf[cat.String()]
}

// currentMergeinfo assembles the branch root's effective svn:mergeinfo
// after this revision: the root's own property, inheriting upward
// through ancestor directories when the mapping allows it, stopping at
// any ancestor that is itself another branch's root.
func (bld *Builder) currentMergeinfo(b *Branch, snap pathtree.Tree) *mergeinfo.Info {
	info, _ := mergeinfo.New("")

	if e, ok := snap.Get(b.Path); ok && e.Kind == pathtree.KindDir {
		if text, ok := dump.Properties(e.Props).MergeInfo(); ok {
			info.AddString(text)
		}
	}

	if b.Resolution.InheritMergeinfo {
		for dir := parentDir(b.Path); dir != ""; dir = parentDir(dir) {
			if owner, sub, ok := bld.reg.Owner(dir); ok && owner != b && sub == "" {
				break
			}
			if e, ok := snap.Get(dir); ok && e.Kind == pathtree.KindDir {
				if text, ok := dump.Properties(e.Props).MergeInfo(); ok {
					info.AddString(text)
				}
			}
		}
	}

	info.Normalize()

	// Carry forward what we already knew: mergeinfo only ever grows, and
	// a revision that rewrites the property shouldn't look like it
	// removed past merges.
	if b.lastMergeinfo != nil {
		for _, path := range b.lastMergeinfo.Paths() {
			info.AddString(path + ":" + b.lastMergeinfo.Get(path).String())
		}
		info.Normalize()
	}

	return info
}

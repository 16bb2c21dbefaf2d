package history

import (
	"context"
	"fmt"
	"strings"

	gitignore "github.com/denormal/go-gitignore"

	"github.com/kfsone/svn2git/lib/dump"
	"github.com/kfsone/svn2git/lib/objpipe"
	"github.com/kfsone/svn2git/lib/pathtree"
)

// changeset is one branch's slice of a revision: file effects plus any
// directory property changes (mergeinfo, svn:ignore) within the branch.
type changeset struct {
	changes  []touched
	dirProps []touched
}

// emitRevision groups the revision's effects by owning branch and turns
// each non-empty change-set into a commit request, in branch creation
// order so collision suffixes and orphan links are deterministic.
func (bld *Builder) emitRevision(ctx context.Context, rev *dump.Revision, snap pathtree.Tree, effects []touched) error {
	ctx = ensureCtx(ctx)

	sets := map[*Branch]*changeset{}
	for _, t := range effects {
		b, _, ok := bld.reg.Owner(t.path)
		if !ok {
			continue
		}
		cs := sets[b]
		if cs == nil {
			cs = &changeset{}
			sets[b] = cs
		}
		if t.isDir {
			cs.dirProps = append(cs.dirProps, t)
		} else {
			cs.changes = append(cs.changes, t)
		}
	}

	for _, b := range bld.reg.All() {
		cs, ok := sets[b]
		if !ok {
			continue
		}
		if err := bld.emitBranch(ctx, rev, snap, b, cs); err != nil {
			return fmt.Errorf("r%d: %s: %w", rev.Number, b.Refname, err)
		}
	}
	return nil
}

// relPathOf maps a repository path into branch-relative worktree form,
// inserting the branch's tree prefix when it has one. Returns "" for the
// branch root itself.
func (b *Branch) relPathOf(path string) string {
	path = strings.Trim(path, "/")
	rel := strings.TrimPrefix(strings.TrimPrefix(path, b.Path), "/")
	if rel == "" {
		return ""
	}
	if b.Prefix != "" {
		rel = b.Prefix + "/" + rel
	}
	return rel
}

func (bld *Builder) emitBranch(ctx context.Context, rev *dump.Revision, snap pathtree.Tree, b *Branch, cs *changeset) error {
	mergeParents, cherryPicks := bld.mergeParents(rev, b, snap)

	entries, lines, err := bld.stageChanges(ctx, rev, b, cs)
	if err != nil {
		return err
	}
	bld.stagePolicyFiles(ctx, rev, b, snap, &entries)

	// Skip-commit folding: the revision's changes still enter the
	// branch's index, but its message rides on the next commit instead
	// of becoming one here. A skip never applies to a merge commit, nor
	// when another branch was created this revision by copying from this
	// one (its parent link needs a real commit to point at).
	if bld.project.SkipRevs[rev.Number] && len(mergeParents) == 0 && !bld.isCopyBaseThisRev(rev.Number, b) {
		if len(entries) > 0 {
			if _, err := bld.trees.Apply(b.Refname, entries); err != nil {
				return err
			}
		}
		if msg, ok := rev.LogMessage(); ok && msg != "" {
			b.pendingSkip = append(b.pendingSkip, msg)
		}
		return nil
	}

	if len(entries) == 0 && len(mergeParents) == 0 {
		return nil
	}

	// Single-branch fast-forward: when the merge brought no new content
	// AND the branch tip is already an ancestor of the merge parent, the
	// branch just adopts the merged commit instead of minting one.
	// Without the ancestry half of that check a divergent history would
	// silently vanish into a pointer move, so failing it falls through
	// to a regular merge commit.
	if len(entries) == 0 && len(mergeParents) == 1 && b.Tip != nil {
		if ff := bld.fastForward(b, mergeParents[0]); ff != nil {
			b.recordCommit(rev.Number, ff, nil)
			bld.refs.Add(b.Refname, ff)
			bld.seq.Printf(rev.Number, "r%d: fast-forward %s", rev.Number, b.Refname)
			return nil
		}
	}

	treeSha, err := bld.trees.Apply(b.Refname, entries)
	if err != nil {
		return err
	}

	if b.Tip == nil {
		// First commit: remember the initial tree's path set so a later
		// orphan branch can measure overlap against it.
		branchPathSet(snap, b)
	}

	var parents []*objpipe.CommitHandle
	switch {
	case b.Tip != nil:
		parents = append(parents, b.Tip)
	case b.Parent != nil && b.FirstRev == rev.Number:
		if base := b.Parent.CommitAtOrBefore(b.CreatedFromRev); base != nil {
			parents = append(parents, base)
		}
	case b.orphan && bld.opts.LinkOrphanRevs:
		if link := bld.orphanParent(b, snap); link != nil {
			parents = append(parents, link)
		}
	}
	// A branch-creating copy classifies as a dir_copy merge too; don't
	// record the same commit as both first parent and merge parent.
	for _, mp := range mergeParents {
		duplicate := false
		for _, p := range parents {
			if p == mp {
				duplicate = true
				break
			}
		}
		if !duplicate {
			parents = append(parents, mp)
		}
	}

	username, _ := rev.Author()
	identity := bld.identityFor(username)
	when := parseSvnDate(rev.Properties)
	svnLog, _ := rev.LogMessage()
	message := bld.buildMessage(b, rev.Number, svnLog, lines, cherryPicks)

	author := objpipe.Identity{Name: identity.Name, Email: identity.Email}
	handle := objpipe.NewCommitHandle()
	bld.commits.Submit(objpipe.CommitRequest{
		Branch:        b.Refname,
		Tree:          treeSha,
		Parents:       parents,
		Author:        author,
		Committer:     author,
		AuthorTime:    when,
		CommitterTime: when,
		Message:       message,
		AddChangeID:   bld.opts.DecorateChangeID,
	}, handle)

	touchedPaths := make([]string, 0, len(entries))
	for _, e := range entries {
		touchedPaths = append(touchedPaths, e.Path)
	}
	b.recordCommit(rev.Number, handle, touchedPaths)
	bld.refs.Add(b.Refname, handle)
	if alt := b.Resolution.AltRefname; alt != "" {
		bld.refs.Add(alt, handle)
	}
	if bld.opts.CreateRevisionRefs {
		bld.refs.Add(revisionRefname(b, rev.Number), handle)
	}

	bld.seq.Printf(rev.Number, "r%d: commit on %s (%d entries, %d parents)",
		rev.Number, b.Refname, len(entries), len(parents))
	return nil
}

// stageChanges converts a change-set's file effects into index entries,
// hashing added/modified content through the blob stage and honouring
// <IgnoreFiles> and <Chmod>.
func (bld *Builder) stageChanges(ctx context.Context, rev *dump.Revision, b *Branch, cs *changeset) ([]objpipe.StageEntry, []changeLine, error) {
	var entries []objpipe.StageEntry
	var lines []changeLine
	ignoredDirs := map[string]bool{}

	for _, t := range cs.changes {
		rel := b.relPathOf(t.path)
		if rel == "" {
			continue
		}

		if t.action == 'D' {
			entries = append(entries, objpipe.StageEntry{Path: rel, Remove: true})
			lines = append(lines, changeLine{action: 'D', path: rel})
			continue
		}

		if bld.project.IsIgnored(rel) {
			dir := parentDir(rel)
			if !ignoredDirs[dir] {
				ignoredDirs[dir] = true
				bld.seq.Printf(rev.Number, "r%d: %s: ignoring files in %s", rev.Number, b.Refname, dir)
			}
			continue
		}

		content, _ := t.file.Content.([]byte)
		mode := objpipe.ModeRegular
		switch {
		case t.file.Symlink:
			mode = objpipe.ModeSymlink
			content = symlinkTarget(content)
		case t.file.Executable:
			mode = objpipe.ModeExecutable
		}
		if exec, forced := bld.project.ChmodExecutable(rel); forced && mode != objpipe.ModeSymlink {
			if exec {
				mode = objpipe.ModeExecutable
			} else {
				mode = objpipe.ModeRegular
			}
		}

		sha, err := bld.blob.Hash(ctx, rel, content)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, objpipe.StageEntry{Path: rel, Mode: mode, Sha: sha})
		lines = append(lines, changeLine{action: t.action, path: rel})
	}

	// svn:ignore on a directory becomes a literal .gitignore file there.
	for _, p := range cs.dirProps {
		ignoreText, ok := p.props.GitIgnore()
		if !ok {
			continue
		}
		rel := b.relPathOf(p.path)
		target := ".gitignore"
		if rel != "" {
			target = rel + "/.gitignore"
		}
		content := convertSvnIgnore(ignoreText)
		sha, err := bld.blob.Hash(ctx, target, content)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, objpipe.StageEntry{Path: target, Mode: objpipe.ModeRegular, Sha: sha})
		bld.warnTrackedIgnores(rev.Number, b, rel, content, entries)
	}

	return entries, lines, nil
}

// convertSvnIgnore rewrites svn:ignore (newline-separated names, only
// effective for the directory itself) into gitignore syntax: each entry
// is anchored with a leading "/" so it keeps SVN's non-recursive scope.
func convertSvnIgnore(ignoreText string) []byte {
	var buf strings.Builder
	for _, line := range strings.Split(ignoreText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			line = "/" + line
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return []byte(buf.String())
}

// warnTrackedIgnores flags files being staged this revision that the
// just-generated .gitignore would cover: git keeps already-tracked files
// regardless of ignore rules, which routinely surprises users coming
// from svn:ignore.
func (bld *Builder) warnTrackedIgnores(rev int, b *Branch, dir string, ignoreContent []byte, entries []objpipe.StageEntry) {
	matcher := gitignore.New(strings.NewReader(string(ignoreContent)), dir, nil)
	if matcher == nil {
		return
	}
	for _, e := range entries {
		if e.Remove || e.Path == ".gitignore" || strings.HasSuffix(e.Path, "/.gitignore") {
			continue
		}
		rel := e.Path
		if dir != "" {
			if !strings.HasPrefix(rel, dir+"/") {
				continue
			}
			rel = strings.TrimPrefix(rel, dir+"/")
		}
		if m := matcher.Relative(rel, false); m != nil && m.Ignore() {
			bld.seq.Printf(rev, "r%d: %s: %s is tracked but matches .gitignore", rev, b.Refname, e.Path)
		}
	}
}

// stagePolicyFiles applies <InjectFile>, <AddFile>, <DeletePath> and
// <EmptyDirPlaceholder> to the branch's staged entries. AddFile runs
// before DeletePath, so a deletion at the same revision wins.
func (bld *Builder) stagePolicyFiles(ctx context.Context, rev *dump.Revision, b *Branch, snap pathtree.Tree, entries *[]objpipe.StageEntry) {
	stageLiteral := func(path, content string) {
		sha, err := bld.blob.Hash(ctx, path, []byte(content))
		if err != nil {
			return
		}
		*entries = append(*entries, objpipe.StageEntry{Path: path, Mode: objpipe.ModeRegular, Sha: sha})
	}

	if b.Tip == nil {
		// First commit: injected files enter the tree once and persist
		// through the per-branch index from then on.
		for _, inj := range bld.project.InjectFiles {
			stageLiteral(inj.Path, inj.Content)
		}
	}
	for _, add := range bld.project.AddFiles {
		if add.AtRev == rev.Number || (add.AtRev == 0 && b.Tip == nil) {
			stageLiteral(add.Path, add.Content)
		}
	}
	for _, del := range bld.project.DeletePaths {
		if del.Revision == 0 || del.Revision == rev.Number {
			*entries = append(*entries, objpipe.StageEntry{Path: del.Path, Remove: true})
		}
	}

	if len(bld.project.EmptyDirs) > 0 {
		placeholder := bld.project.EmptyDirs[0]
		for _, dir := range emptyDirsUnder(snap, b.Path) {
			rel := b.relPathOf(dir)
			if rel == "" {
				continue
			}
			stageLiteral(rel+"/"+placeholder, "")
		}
	}
}

// emptyDirsUnder lists directories below root that contain no files at
// any depth; git cannot represent them without a placeholder.
func emptyDirsUnder(tree pathtree.Tree, root string) []string {
	root = strings.Trim(root, "/")
	fileCount := map[string]int{}
	var dirs []string

	tree.WalkAll(func(path string, e pathtree.Entry) error {
		if path != root && !strings.HasPrefix(path, root+"/") {
			return nil
		}
		if e.Kind == pathtree.KindDir {
			dirs = append(dirs, path)
			return nil
		}
		for dir := parentDir(path); dir != "" && (dir == root || strings.HasPrefix(dir, root+"/")); dir = parentDir(dir) {
			fileCount[dir]++
		}
		return nil
	})

	var out []string
	for _, d := range dirs {
		if fileCount[d] == 0 {
			out = append(out, d)
		}
	}
	return out
}

// isCopyBaseThisRev reports whether any branch created at rev copied
// from somewhere inside b.
func (bld *Builder) isCopyBaseThisRev(rev int, b *Branch) bool {
	for _, other := range bld.reg.All() {
		if other.FirstRev != rev || other.CreatedFromPath == "" {
			continue
		}
		if other.CreatedFromPath == b.Path || strings.HasPrefix(other.CreatedFromPath, b.Path+"/") {
			return true
		}
	}
	return false
}

// orphanParent searches earlier orphan-rooted branches for one whose
// initial tree overlaps this branch's by more than half, linking the two
// histories (--link-orphan-revs).
func (bld *Builder) orphanParent(b *Branch, snap pathtree.Tree) *objpipe.CommitHandle {
	mine := branchPathSet(snap, b)
	if len(mine) == 0 {
		return nil
	}
	for _, other := range bld.reg.All() {
		if other == b || !other.orphan || len(other.revs) == 0 || len(other.initialPaths) == 0 {
			continue
		}
		overlap := 0
		for p := range mine {
			if other.initialPaths[p] {
				overlap++
			}
		}
		if overlap*2 > len(mine) {
			return other.commits[other.revs[0]]
		}
	}
	return nil
}

// branchPathSet records (and caches on the branch) the branch-relative
// file path set of its initial tree.
func branchPathSet(snap pathtree.Tree, b *Branch) map[string]bool {
	if b.initialPaths != nil {
		return b.initialPaths
	}
	set := map[string]bool{}
	walkSubtree(snap, b.Path, func(path string, f pathtree.File) error {
		if rel := b.relPathOf(path); rel != "" {
			set[rel] = true
		}
		return nil
	})
	b.initialPaths = set
	return set
}

func parentDir(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// revisionRefname builds the synthetic refs/revisions/<branch>/r<N> name
// for --create-revision-refs, honouring an explicit <RevisionRef>
// template root when the mapping carries one.
func revisionRefname(b *Branch, rev int) string {
	root := b.Resolution.RevisionRefRoot
	if root == "" {
		short := strings.TrimPrefix(strings.TrimPrefix(b.Refname, "refs/heads/"), "refs/tags/")
		short = strings.TrimPrefix(short, "refs/")
		root = "refs/revisions/" + short
	}
	return fmt.Sprintf("%s/r%d", root, rev)
}

func symlinkTarget(content []byte) []byte {
	return []byte(strings.TrimPrefix(string(content), "link "))
}

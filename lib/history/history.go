// Package history implements the revision-by-revision translation of an
// SVN dump into per-branch Git commits: applying node-records to the
// copy-on-write path tree, attributing touched paths to branches,
// synthesizing commit requests, and reconstructing merge parents from
// svn:mergeinfo deltas and directory copies.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kfsone/svn2git/lib/config"
	"github.com/kfsone/svn2git/lib/delta"
	"github.com/kfsone/svn2git/lib/dump"
	"github.com/kfsone/svn2git/lib/log"
	"github.com/kfsone/svn2git/lib/mergeinfo"
	"github.com/kfsone/svn2git/lib/objpipe"
	"github.com/kfsone/svn2git/lib/pathtree"
	"github.com/kfsone/svn2git/lib/refmap"
)

// Options carries the command-line knobs that alter how revisions are
// translated.
type Options struct {
	EndRevision         int
	PathFilter          *config.PatternList
	DecorateRevisionID  bool
	DecorateChangeID    bool
	CreateRevisionRefs  bool
	LinkOrphanRevs      bool
	AddBranchTreePrefix bool
	AppendToRefs        string
}

// Builder owns the whole per-revision translation. It is driven from a
// single goroutine (the decoder's consumer); everything concurrent
// happens downstream in the object pipeline.
type Builder struct {
	project *config.Project
	mapper  *refmap.Mapper
	reg     *Registry
	authors *config.Authors
	opts    Options

	blob    *objpipe.BlobStage
	trees   *objpipe.TreeStage
	commits *objpipe.CommitStage
	refs    *objpipe.RefStage

	seq *log.Sequencer

	// ancestry answers "is commit A an ancestor of commit B" against the
	// sink's object store; nil when the sink can't (in-memory runs), in
	// which case fast-forward detection stays conservative.
	ancestry mergeinfo.AncestorChecker

	head      pathtree.Tree
	snapshots map[int]pathtree.Tree
	maxRev    int

	// unmappedSeen suppresses repeat "unmapped directory" logging per
	// directory.
	unmappedSeen map[string]bool
}

// NewBuilder wires a Builder to its pipeline stages.
func NewBuilder(project *config.Project, authors *config.Authors,
	blob *objpipe.BlobStage, trees *objpipe.TreeStage, commits *objpipe.CommitStage,
	refs *objpipe.RefStage, seq *log.Sequencer, opts Options) *Builder {
	return &Builder{
		project:      project,
		mapper:       refmap.New(project),
		reg:          NewRegistry(),
		authors:      authors,
		opts:         opts,
		blob:         blob,
		trees:        trees,
		commits:      commits,
		refs:         refs,
		seq:          seq,
		head:         pathtree.New(),
		snapshots:    map[int]pathtree.Tree{},
		unmappedSeen: map[string]bool{},
	}
}

// WithAncestry attaches an ancestry checker (the git sink's merge-base
// query) enabling fast-forward detection.
func (bld *Builder) WithAncestry(checker mergeinfo.AncestorChecker) *Builder {
	bld.ancestry = checker
	return bld
}

// Registry exposes the branch registry, for orphan linking and the final
// ref pass.
func (bld *Builder) Registry() *Registry { return bld.reg }

// MaxRev returns the highest revision number processed so far.
func (bld *Builder) MaxRev() int { return bld.maxRev }

// Snapshot returns the closed tree for rev, walking down to the nearest
// earlier revision when rev itself produced no snapshot (revision gaps
// are permitted; SVN's copyfrom-rev may name any revision at or before
// the copy).
func (bld *Builder) Snapshot(rev int) pathtree.Tree {
	for r := rev; r >= 0; r-- {
		if t, ok := bld.snapshots[r]; ok {
			return t
		}
	}
	return pathtree.New()
}

// touched records one path-level effect of a node-record, already
// resolved to concrete file content.
type touched struct {
	action byte // 'A', 'M', 'D', 'P' (property-only)
	path   string
	file   pathtree.File
	props  dump.Properties
	isDir  bool
}

// Process translates one revision. Node-records are applied to the
// under-construction snapshot in order, the snapshot is closed, and
// every branch with a non-empty change-set gets a commit request.
func (bld *Builder) Process(ctx context.Context, rev *dump.Revision) error {
	if bld.opts.EndRevision > 0 && rev.Number > bld.opts.EndRevision {
		return nil
	}
	defer bld.seq.Close(rev.Number)

	snap := bld.head
	var effects []touched

	for _, node := range rev.Nodes {
		if bld.opts.PathFilter != nil {
			if _, ok := bld.opts.PathFilter.Match(node.Path); !ok {
				continue
			}
		}
		var err error
		snap, err = bld.applyNode(snap, rev, node, &effects)
		if err != nil {
			return fmt.Errorf("r%d: %s: %w", rev.Number, node.Path, err)
		}
	}

	bld.snapshots[rev.Number] = snap
	bld.head = snap
	bld.maxRev = rev.Number

	return bld.emitRevision(ctx, rev, snap, effects)
}

// applyNode applies one node-record to the snapshot under construction,
// recording the file-level effects the change-set grouping needs.
func (bld *Builder) applyNode(snap pathtree.Tree, rev *dump.Revision, node *dump.Node, effects *[]touched) (pathtree.Tree, error) {
	switch node.Action {
	case dump.NodeActionDelete:
		return bld.applyDelete(snap, rev, node, effects)

	case dump.NodeActionReplace:
		// A replace is a delete of whatever was there followed by an
		// add; SVN guarantees the path existed.
		next, err := bld.applyDelete(snap, rev, node, effects)
		if err != nil {
			return snap, err
		}
		return bld.applyAdd(next, rev, node, effects)

	case dump.NodeActionAdd:
		return bld.applyAdd(snap, rev, node, effects)

	case dump.NodeActionChange:
		return bld.applyChange(snap, rev, node, effects)
	}
	return snap, fmt.Errorf("unhandled node action %v", node.Action)
}

func (bld *Builder) applyDelete(snap pathtree.Tree, rev *dump.Revision, node *dump.Node, effects *[]touched) (pathtree.Tree, error) {
	entry, ok := snap.Get(node.Path)
	if !ok {
		return snap, fmt.Errorf("%w", pathtree.ErrNotFound)
	}

	// Emit a delete effect per file so the change-set can stage
	// removals; the subtree must be walked before it goes away.
	if entry.Kind == pathtree.KindFile {
		*effects = append(*effects, touched{action: 'D', path: node.Path})
	} else {
		sub := snap
		if err := walkSubtree(sub, node.Path, func(path string, f pathtree.File) error {
			*effects = append(*effects, touched{action: 'D', path: path})
			return nil
		}); err != nil {
			return snap, err
		}
		for _, b := range bld.reg.EndUnder(node.Path, rev.Number) {
			bld.seq.Printf(rev.Number, "r%d: branch %s deleted (%s)", rev.Number, b.Refname, b.Path)
		}
	}

	return snap.Delete(node.Path)
}

func (bld *Builder) applyAdd(snap pathtree.Tree, rev *dump.Revision, node *dump.Node, effects *[]touched) (pathtree.Tree, error) {
	if node.Kind == dump.NodeKindDir {
		return bld.applyDirAdd(snap, rev, node, effects)
	}

	content, err := bld.materialize(snap, node)
	if err != nil {
		return snap, err
	}
	props := node.Properties
	f := fileFor(content, props)
	next, err := snap.AddFile(node.Path, f, props)
	if err != nil {
		return snap, err
	}
	*effects = append(*effects, touched{action: 'A', path: node.Path, file: f, props: props})
	return next, nil
}

func (bld *Builder) applyDirAdd(snap pathtree.Tree, rev *dump.Revision, node *dump.Node, effects *[]touched) (pathtree.Tree, error) {
	var next pathtree.Tree
	var err error

	if node.HasCopyFrom {
		src := bld.Snapshot(node.CopyFromRev)
		next, err = snap.CopyFrom(node.Path, src, node.CopyFromPath)
		if err != nil {
			return snap, err
		}
		if node.HasProperties {
			if merged, perr := next.SetProperties(node.Path, node.Properties); perr == nil {
				next = merged
			}
		}
		// Every file in the copied subtree is an add from the
		// destination's point of view.
		if err := walkSubtree(next, node.Path, func(path string, f pathtree.File) error {
			*effects = append(*effects, touched{action: 'A', path: path, file: f})
			return nil
		}); err != nil {
			return snap, err
		}
	} else {
		next, err = snap.AddDir(node.Path, node.Properties)
		if err != nil {
			return snap, err
		}
	}

	*effects = append(*effects, touched{action: 'P', path: node.Path, isDir: true, props: node.Properties})

	bld.maybeCreateBranch(rev, node)
	return next, nil
}

func (bld *Builder) applyChange(snap pathtree.Tree, rev *dump.Revision, node *dump.Node, effects *[]touched) (pathtree.Tree, error) {
	entry, ok := snap.Get(node.Path)
	if !ok {
		return snap, fmt.Errorf("%w", pathtree.ErrNotFound)
	}

	if entry.Kind == pathtree.KindDir {
		if node.Kind == dump.NodeKindFile {
			return snap, pathtree.ErrIsDir
		}
		props := mergeProps(entry.Props, node)
		next, err := snap.SetProperties(node.Path, props)
		if err != nil {
			return snap, err
		}
		*effects = append(*effects, touched{action: 'P', path: node.Path, isDir: true, props: props})
		return next, nil
	}

	if node.Kind == dump.NodeKindDir {
		return snap, pathtree.ErrNotDir
	}

	content, err := bld.materialize(snap, node)
	if err != nil {
		return snap, err
	}
	props := mergeProps(entry.Props, node)
	f := fileFor(content, props)
	next, err := snap.ChangeFile(node.Path, f, props)
	if err != nil {
		return snap, err
	}
	*effects = append(*effects, touched{action: 'M', path: node.Path, file: f, props: props})
	return next, nil
}

// materialize resolves a node's content to full bytes: plain text is
// taken as-is, a svndiff delta is applied against the node's predecessor
// (the copyfrom source when present, else the current content at the
// node's own path).
func (bld *Builder) materialize(snap pathtree.Tree, node *dump.Node) ([]byte, error) {
	var base []byte
	if node.HasCopyFrom {
		src := bld.Snapshot(node.CopyFromRev)
		if e, ok := src.Get(node.CopyFromPath); ok && e.Kind == pathtree.KindFile {
			base, _ = e.File.Content.([]byte)
		}
	} else if e, ok := snap.Get(node.Path); ok && e.Kind == pathtree.KindFile {
		base, _ = e.File.Content.([]byte)
	}

	if !node.HasText {
		return base, nil
	}
	if node.Text.IsDelta {
		out, err := delta.Apply(base, node.Text.Bytes)
		if err != nil {
			return nil, fmt.Errorf("delta: %w", err)
		}
		return out, nil
	}
	return node.Text.Bytes, nil
}

// mergeProps combines a node's property block with the entry's existing
// properties: a property delta applies over them, a full block replaces
// them, and a node with no block leaves them alone.
func mergeProps(existing dump.Properties, node *dump.Node) dump.Properties {
	if !node.HasProperties {
		return existing
	}
	if node.PropIsDelta {
		return existing.Apply(node.Properties, node.PropDeletions)
	}
	return node.Properties
}

// fileFor builds the tree entry for content with its SVN property flags
// resolved: executable from svn:executable, symlink from svn:special
// plus the "link " content marker.
func fileFor(content []byte, props dump.Properties) pathtree.File {
	return pathtree.File{
		Content:    content,
		Executable: props.IsExecutable(),
		Symlink:    props.IsSpecial() && dump.IsSymlinkContent(content),
	}
}

// maybeCreateBranch checks whether a newly added directory is mapped to
// a refname, and if so registers the branch, linking its parent branch
// when the directory was born from a copyfrom.
func (bld *Builder) maybeCreateBranch(rev *dump.Revision, node *dump.Node) {
	res := bld.mapper.Resolve(node.Path, rev.Number)
	switch res.Status {
	case refmap.Blocked:
		return
	case refmap.Unmapped:
		// Interior directories of an existing branch are expected to be
		// unmapped; only a genuinely orphan directory is worth a line.
		if _, _, owned := bld.reg.Owner(node.Path); owned {
			return
		}
		dir := node.Path
		if !bld.unmappedSeen[dir] {
			bld.unmappedSeen[dir] = true
			bld.seq.Printf(rev.Number, "r%d: unmapped directory %s", rev.Number, dir)
		}
		return
	}

	refname := bld.reclaimIfRevival(res.Refname)
	if bld.opts.AppendToRefs != "" {
		refname = insertRefSegment(refname, bld.opts.AppendToRefs)
	}

	b := &Branch{
		Refname:    refname,
		Path:       strings.Trim(node.Path, "/"),
		FirstRev:   rev.Number,
		Resolution: res,
		orphan:     !node.HasCopyFrom,
	}

	if node.HasCopyFrom {
		b.CreatedFromPath = strings.Trim(node.CopyFromPath, "/")
		b.CreatedFromRev = node.CopyFromRev
		if parent, sub, ok := bld.reg.Owner(node.CopyFromPath); ok {
			b.Parent = parent
			if res.AddTreePrefix || bld.opts.AddBranchTreePrefix {
				// A copy of a subdirectory of the parent keeps its depth:
				// the source's path below the parent root becomes this
				// branch's tree prefix.
				b.Prefix = sub
			}
		}
	}

	bld.reg.Create(b)
	bld.seq.Printf(rev.Number, "r%d: branch %s created at %s", rev.Number, b.Refname, b.Path)
}

// insertRefSegment turns refs/heads/x into refs/heads/<seg>/x, the
// --append-to-refs namespace shift.
func insertRefSegment(refname, seg string) string {
	parts := strings.SplitN(refname, "/", 3)
	if len(parts) < 3 {
		return refname + "/" + seg
	}
	return parts[0] + "/" + parts[1] + "/" + seg + "/" + parts[2]
}

// walkSubtree visits every file under root in tree, yielding full
// repository paths.
func walkSubtree(tree pathtree.Tree, root string, visit func(path string, f pathtree.File) error) error {
	root = strings.Trim(root, "/")
	return tree.Walk(func(path string, f pathtree.File) error {
		if path == root || strings.HasPrefix(path, root+"/") {
			return visit(path, f)
		}
		return nil
	})
}

// parseSvnDate parses svn:date's ISO-8601 value, falling back to the
// epoch for revision 0 style records that omit it.
func parseSvnDate(props dump.Properties) time.Time {
	raw, ok := props.String("svn:date")
	if !ok {
		return time.Unix(0, 0).UTC()
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return t.UTC()
}

// ensureCtx guards against a nil context in tests and small callers.
func ensureCtx(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

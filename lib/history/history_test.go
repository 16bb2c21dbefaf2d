package history

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfsone/svn2git/lib/config"
	"github.com/kfsone/svn2git/lib/dump"
	"github.com/kfsone/svn2git/lib/log"
	"github.com/kfsone/svn2git/lib/objpipe"
)

// fixture wires a Builder to an in-memory sink with default
// configuration so tests can feed hand-built revisions through it.
type fixture struct {
	t    *testing.T
	sink *objpipe.MemSink
	bld  *Builder

	trees   *objpipe.TreeStage
	commits *objpipe.CommitStage
	refs    *objpipe.RefStage
}

func newFixture(t *testing.T, pxml *config.ProjectXML, opts Options) *fixture {
	t.Helper()
	if pxml == nil {
		pxml = &config.ProjectXML{Name: "test"}
	}
	proj, err := config.Resolve(&config.Document{}, pxml)
	require.NoError(t, err)
	authors, err := config.LoadAuthors("")
	require.NoError(t, err)

	sink := objpipe.NewMemSink()
	blob := objpipe.NewBlobStage(sink, 2)
	trees := objpipe.NewTreeStage(sink)
	commits := objpipe.NewCommitStage(sink)
	refs := objpipe.NewRefStage(sink)
	seq := log.NewSequencer(0, func(string) {})

	return &fixture{
		t:       t,
		sink:    sink,
		bld:     NewBuilder(proj, authors, blob, trees, commits, refs, seq, opts),
		trees:   trees,
		commits: commits,
		refs:    refs,
	}
}

func (f *fixture) process(revs ...*dump.Revision) {
	f.t.Helper()
	for _, rev := range revs {
		require.NoError(f.t, f.bld.Process(context.Background(), rev))
	}
}

// finish drains the pipeline and returns the final ref table.
func (f *fixture) finish() map[string]string {
	f.t.Helper()
	f.bld.Finish()
	f.trees.Close()
	f.commits.Close()
	require.NoError(f.t, f.refs.Finish())
	return f.sink.Refs
}

func (f *fixture) commitFor(refs map[string]string, refname string) objpipe.MemCommit {
	f.t.Helper()
	sha, ok := refs[refname]
	require.True(f.t, ok, "missing ref %s (have %v)", refname, refs)
	c, ok := f.sink.Commits[sha]
	require.True(f.t, ok, "ref %s points at unknown commit %s", refname, sha)
	return c
}

func rev(n int, logMsg string, nodes ...*dump.Node) *dump.Revision {
	return &dump.Revision{
		Number: n,
		Properties: dump.Properties{
			"svn:log":    []byte(logMsg),
			"svn:author": []byte("alice"),
			"svn:date":   []byte("2020-01-02T03:04:05.000000Z"),
		},
		Nodes: nodes,
	}
}

func addDir(path string) *dump.Node {
	return &dump.Node{Path: path, Kind: dump.NodeKindDir, Action: dump.NodeActionAdd}
}

func addDirFrom(path, srcPath string, srcRev int) *dump.Node {
	return &dump.Node{
		Path: path, Kind: dump.NodeKindDir, Action: dump.NodeActionAdd,
		HasCopyFrom: true, CopyFromPath: srcPath, CopyFromRev: srcRev,
	}
}

func addFile(path, content string) *dump.Node {
	return &dump.Node{
		Path: path, Kind: dump.NodeKindFile, Action: dump.NodeActionAdd,
		HasText: true, Text: dump.Content{Bytes: []byte(content)},
	}
}

func modFile(path, content string) *dump.Node {
	return &dump.Node{
		Path: path, Kind: dump.NodeKindFile, Action: dump.NodeActionChange,
		HasText: true, Text: dump.Content{Bytes: []byte(content)},
	}
}

func delNode(path string) *dump.Node {
	return &dump.Node{Path: path, Action: dump.NodeActionDelete}
}

func propDir(path string, props map[string]string) *dump.Node {
	table := dump.Properties{}
	for k, v := range props {
		table[k] = []byte(v)
	}
	return &dump.Node{
		Path: path, Kind: dump.NodeKindDir, Action: dump.NodeActionChange,
		HasProperties: true, Properties: table,
	}
}

func TestTrunkBranchMerge(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.process(
		rev(1, "create trunk", addDir("trunk"), addFile("trunk/a.txt", "one")),
		rev(2, "branch feat", addDir("branches"), addDirFrom("branches/feat", "trunk", 1)),
		rev(3, "work on feat", modFile("branches/feat/a.txt", "two")),
		rev(4, "merge feat",
			propDir("trunk", map[string]string{"svn:mergeinfo": "/branches/feat:2-3"}),
			modFile("trunk/a.txt", "two")),
	)
	refs := f.finish()

	require.Contains(t, refs, "refs/heads/main")
	require.Contains(t, refs, "refs/heads/feat")

	merge := f.commitFor(refs, "refs/heads/main")
	require.Len(t, merge.Parents, 2, "r4 must be a merge commit")

	feat := f.commitFor(refs, "refs/heads/feat")
	// feat's tip is the merge's second parent.
	assert.Equal(t, refs["refs/heads/feat"], merge.Parents[1])
	assert.Len(t, feat.Parents, 1)
}

func TestUserBranchPathMapsToUserRef(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.process(
		rev(1, "layout",
			addDir("Proj1"),
			addDir("Proj1/users"),
			addDir("Proj1/users/branches"),
			addDir("Proj1/users/branches/alice"),
			addDir("Proj1/users/branches/alice/x"),
			addFile("Proj1/users/branches/alice/x/f.txt", "hi")),
	)
	refs := f.finish()
	assert.Contains(t, refs, "refs/heads/Proj1/users/alice/x")
}

func TestDeletedAndRevivedBranch(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.process(
		rev(1, "trunk", addDir("trunk"), addFile("trunk/a.txt", "one")),
		rev(10, "branch b", addDir("branches"), addDirFrom("branches/b", "trunk", 1)),
		rev(20, "kill b", delNode("branches/b")),
		rev(30, "revive b", addDirFrom("branches/b", "trunk", 1)),
	)
	refs := f.finish()

	require.Contains(t, refs, "refs/heads/b_deleted@r20")
	require.Contains(t, refs, "refs/heads/b")

	// The revival is fresh history from trunk, not a continuation.
	revived := f.commitFor(refs, "refs/heads/b")
	require.Len(t, revived.Parents, 1)
	assert.Equal(t, refs["refs/heads/main"], revived.Parents[0])
	assert.NotEqual(t, refs["refs/heads/b_deleted@r20"], refs["refs/heads/b"])
}

func TestSkipCommitFoldsMessage(t *testing.T) {
	pxml := &config.ProjectXML{Name: "test", SkipCommits: []config.SkipCommitXML{{Revs: "42"}}}
	f := newFixture(t, pxml, Options{})
	f.process(
		rev(41, "base", addDir("trunk"), addFile("trunk/a.txt", "one")),
		rev(42, "typo", modFile("trunk/a.txt", "one!")),
		rev(43, "fix thing", modFile("trunk/a.txt", "two")),
	)
	refs := f.finish()

	tip := f.commitFor(refs, "refs/heads/main")
	assert.True(t, strings.HasPrefix(tip.Message, "typo\n\nfix thing"), "message = %q", tip.Message)

	// The skipped revision's change must not be lost from the tree.
	tree := f.sink.Tree("refs/heads/main")
	assert.Contains(t, tree, "a.txt")
}

func TestOrphanLinking(t *testing.T) {
	f := newFixture(t, nil, Options{LinkOrphanRevs: true})
	f.process(
		rev(100, "import",
			addDir("branches"),
			addDir("branches/a"),
			addFile("branches/a/x.txt", "x"),
			addFile("branches/a/y.txt", "y"),
			addDir("branches/b"),
			addFile("branches/b/x.txt", "x"),
			addFile("branches/b/y.txt", "y"),
			addFile("branches/b/z.txt", "z")),
	)
	refs := f.finish()

	first := f.commitFor(refs, "refs/heads/a")
	second := f.commitFor(refs, "refs/heads/b")
	assert.Empty(t, first.Parents)
	require.Len(t, second.Parents, 1, "overlapping orphan roots must link")
	assert.Equal(t, refs["refs/heads/a"], second.Parents[0])
}

func TestCharacterReplaceInRefname(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.process(
		rev(1, "odd name",
			addDir("branches"),
			addDir("branches/feat x:1"),
			addFile("branches/feat x:1/f.txt", "hi")),
	)
	refs := f.finish()
	assert.Contains(t, refs, "refs/heads/feat_x.1")
}

func TestRevisionRefs(t *testing.T) {
	f := newFixture(t, nil, Options{CreateRevisionRefs: true})
	f.process(
		rev(1, "trunk", addDir("trunk"), addFile("trunk/a.txt", "one")),
		rev(2, "more", modFile("trunk/a.txt", "two")),
	)
	refs := f.finish()
	assert.Contains(t, refs, "refs/revisions/main/r1")
	assert.Contains(t, refs, "refs/revisions/main/r2")
	assert.Equal(t, refs["refs/revisions/main/r2"], refs["refs/heads/main"])
}

func TestCherryPickAnnotationOnIncompleteCoverage(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.process(
		rev(1, "trunk", addDir("trunk"), addFile("trunk/a.txt", "one")),
		rev(2, "branch", addDir("branches"), addDirFrom("branches/feat", "trunk", 1)),
		rev(3, "feat work 1", modFile("branches/feat/a.txt", "two")),
		rev(4, "feat work 2", modFile("branches/feat/a.txt", "three")),
		// Only r3 is recorded as merged: coverage of feat's history is
		// incomplete, so no merge edge, only an annotation.
		rev(5, "partial merge",
			propDir("trunk", map[string]string{"svn:mergeinfo": "/branches/feat:3"}),
			modFile("trunk/a.txt", "two")),
	)
	refs := f.finish()

	tip := f.commitFor(refs, "refs/heads/main")
	require.Len(t, tip.Parents, 1, "incomplete coverage must not create a merge edge")
	assert.Contains(t, tip.Message, "Cherry-picked-from: refs/heads/feat@r3")
}

// yesChecker answers every ancestry query positively, standing in for a
// sink-backed merge-base query.
type yesChecker struct{}

func (yesChecker) IsAncestor(a, b string) (bool, error) { return true, nil }

func TestContentlessMergeWithoutAncestryStaysACommit(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.process(
		rev(1, "trunk", addDir("trunk"), addFile("trunk/a.txt", "one")),
		rev(2, "branch", addDir("branches"), addDirFrom("branches/feat", "trunk", 1)),
		rev(3, "feat work", modFile("branches/feat/a.txt", "two")),
		// Record-only merge: mergeinfo moves but no file content does.
		rev(4, "merge feat", propDir("trunk", map[string]string{"svn:mergeinfo": "/branches/feat:2-3"})),
	)
	refs := f.finish()

	// No ancestry checker means the fast-forward precondition can't be
	// proven, so the branch keeps a real merge commit.
	tip := f.commitFor(refs, "refs/heads/main")
	require.Len(t, tip.Parents, 2)
	assert.Equal(t, refs["refs/heads/feat"], tip.Parents[1])
}

func TestContentlessMergeFastForwardsWithAncestry(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.bld.WithAncestry(yesChecker{})
	f.process(
		rev(1, "trunk", addDir("trunk"), addFile("trunk/a.txt", "one")),
		rev(2, "branch", addDir("branches"), addDirFrom("branches/feat", "trunk", 1)),
		rev(3, "feat work", modFile("branches/feat/a.txt", "two")),
		rev(4, "merge feat", propDir("trunk", map[string]string{"svn:mergeinfo": "/branches/feat:2-3"})),
	)
	refs := f.finish()

	// Tip provably an ancestor of the merge parent: pointer move only.
	assert.Equal(t, refs["refs/heads/feat"], refs["refs/heads/main"])
}

func TestIgnoreUnmergedExcludesRevsFromCoverage(t *testing.T) {
	pxml := &config.ProjectXML{
		Name:           "test",
		IgnoreUnmerged: []config.IgnoreXML{{Patterns: "version.txt"}},
	}
	f := newFixture(t, pxml, Options{})
	f.process(
		rev(1, "trunk", addDir("trunk"), addFile("trunk/a.txt", "one")),
		rev(2, "branch", addDir("branches"), addDirFrom("branches/feat", "trunk", 1)),
		rev(3, "bump version", addFile("branches/feat/version.txt", "1.1")),
		rev(4, "feat work", modFile("branches/feat/a.txt", "two")),
		// Mergeinfo skips the version bump at r3; with version.txt
		// ignorable the coverage check still passes.
		rev(5, "merge feat",
			propDir("trunk", map[string]string{"svn:mergeinfo": "/branches/feat:2,4"}),
			modFile("trunk/a.txt", "two")),
	)
	refs := f.finish()

	tip := f.commitFor(refs, "refs/heads/main")
	require.Len(t, tip.Parents, 2, "coverage must succeed once the version bump is excluded")
	assert.NotContains(t, tip.Message, "Cherry-picked-from:")
}

func TestSvnIgnoreBecomesGitignore(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.process(
		rev(1, "trunk", addDir("trunk"), addFile("trunk/a.txt", "one")),
		rev(2, "ignore", propDir("trunk", map[string]string{"svn:ignore": "*.o\nbuild"})),
	)
	refs := f.finish()
	require.Contains(t, refs, "refs/heads/main")
	tree := f.sink.Tree("refs/heads/main")
	require.Contains(t, tree, ".gitignore")
}

func TestDecorateRevisionID(t *testing.T) {
	f := newFixture(t, nil, Options{DecorateRevisionID: true})
	f.process(rev(7, "hello", addDir("trunk"), addFile("trunk/a.txt", "one")))
	refs := f.finish()

	tip := f.commitFor(refs, "refs/heads/main")
	assert.Contains(t, tip.Message, "svn-revision: r7")
}

func TestChangeIDDeterminism(t *testing.T) {
	run := func() string {
		f := newFixture(t, nil, Options{DecorateChangeID: true})
		f.process(rev(1, "hello", addDir("trunk"), addFile("trunk/a.txt", "one")))
		refs := f.finish()
		return f.commitFor(refs, "refs/heads/main").Message
	}
	first, second := run(), run()
	assert.Contains(t, first, "Change-Id: I")
	assert.Equal(t, first, second)
}

func TestSymlinkContent(t *testing.T) {
	f := newFixture(t, nil, Options{})
	link := &dump.Node{
		Path: "trunk/ln", Kind: dump.NodeKindFile, Action: dump.NodeActionAdd,
		HasText:       true,
		Text:          dump.Content{Bytes: []byte("link a.txt")},
		HasProperties: true,
		Properties:    dump.Properties{"svn:special": []byte("*")},
	}
	f.process(rev(1, "trunk", addDir("trunk"), addFile("trunk/a.txt", "one"), link))
	refs := f.finish()
	require.Contains(t, refs, "refs/heads/main")

	// The staged symlink blob holds only the target.
	targetSha, _ := f.sink.HashObject([]byte("a.txt"))
	tree := f.sink.Tree("refs/heads/main")
	assert.Equal(t, targetSha, tree["ln"])
}

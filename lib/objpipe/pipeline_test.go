package objpipe

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStageMemoizesIdenticalContent(t *testing.T) {
	sink := NewMemSink()
	calls := 0
	counting := TransformerFunc(func(path string, content []byte) ([]byte, error) {
		calls++
		return content, nil
	})
	blob := NewBlobStage(sink, 2, counting)

	ctx := context.Background()
	first, err := blob.Hash(ctx, "a.txt", []byte("same bytes"))
	require.NoError(t, err)
	second, err := blob.Hash(ctx, "b.txt", []byte("same bytes"))
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical bytes must produce identical shas")
	assert.Equal(t, 1, calls, "the transformer must not rerun for memoized content")
}

func TestBlobStageSha1MapAvoidsTransform(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sha1.map")
	sink := NewMemSink()

	cache, err := OpenSha1Map(path, 16)
	require.NoError(t, err)
	blob := NewBlobStage(sink, 1).WithCache(cache, "spec-v1")
	sha, err := blob.Hash(context.Background(), "f.c", []byte("int x;"))
	require.NoError(t, err)
	require.NoError(t, cache.Flush())

	// A second run with the same format spec reuses the cached sha
	// without running the registered transformer.
	reload, err := OpenSha1Map(path, 16)
	require.NoError(t, err)
	mangler := TransformerFunc(func(p string, c []byte) ([]byte, error) {
		t.Fatal("cached entries must not re-run transformers")
		return c, nil
	})
	blob2 := NewBlobStage(NewMemSink(), 1, mangler).WithCache(reload, "spec-v1")
	cached, err := blob2.Hash(context.Background(), "f.c", []byte("int x;"))
	require.NoError(t, err)
	assert.Equal(t, sha, cached)
}

func TestTreeStagePerBranchIndexes(t *testing.T) {
	sink := NewMemSink()
	trees := NewTreeStage(sink)
	defer trees.Close()

	shaA, _ := sink.HashObject([]byte("a"))
	shaB, _ := sink.HashObject([]byte("b"))

	t1, err := trees.Apply("refs/heads/one", []StageEntry{{Path: "f.txt", Mode: ModeRegular, Sha: shaA}})
	require.NoError(t, err)
	t2, err := trees.Apply("refs/heads/two", []StageEntry{{Path: "f.txt", Mode: ModeRegular, Sha: shaB}})
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2, "branches stage into independent indexes")

	// Same content on the second branch converges to the same tree.
	t3, err := trees.Apply("refs/heads/two", []StageEntry{{Path: "f.txt", Mode: ModeRegular, Sha: shaA}})
	require.NoError(t, err)
	assert.Equal(t, t1, t3)
}

func TestCommitStageResolvesParentsAcrossBranches(t *testing.T) {
	sink := NewMemSink()
	commits := NewCommitStage(sink)
	defer commits.Close()

	alice := Identity{Name: "alice", Email: "alice@example.com"}
	when := time.Unix(1700000000, 0).UTC()

	base := NewCommitHandle()
	commits.Submit(CommitRequest{
		Branch: "refs/heads/main", Tree: "t1",
		Author: alice, Committer: alice, AuthorTime: when, CommitterTime: when,
		Message: "base",
	}, base)

	// The merge names base as a parent before base has resolved.
	merge := NewCommitHandle()
	commits.Submit(CommitRequest{
		Branch: "refs/heads/feat", Tree: "t2", Parents: []*CommitHandle{base},
		Author: alice, Committer: alice, AuthorTime: when, CommitterTime: when,
		Message: "merge",
	}, merge)

	baseSha, err := base.Wait()
	require.NoError(t, err)
	mergeSha, err := merge.Wait()
	require.NoError(t, err)
	require.Equal(t, []string{baseSha}, sink.Commits[mergeSha].Parents)
}

func TestCommitStageChangeIDIsDeterministic(t *testing.T) {
	alice := Identity{Name: "alice", Email: "alice@example.com"}
	when := time.Unix(1700000000, 0).UTC()

	run := func() string {
		sink := NewMemSink()
		commits := NewCommitStage(sink)
		defer commits.Close()
		h := NewCommitHandle()
		commits.Submit(CommitRequest{
			Branch: "refs/heads/main", Tree: "t1",
			Author: alice, Committer: alice, AuthorTime: when, CommitterTime: when,
			Message: "change", AddChangeID: true,
		}, h)
		sha, err := h.Wait()
		require.NoError(t, err)
		return sink.Commits[sha].Message
	}

	first, second := run(), run()
	assert.Contains(t, first, "Change-Id: I")
	assert.Equal(t, first, second)
}

func TestRefStageWritesAfterAllCommits(t *testing.T) {
	sink := NewMemSink()
	refs := NewRefStage(sink)

	h := NewCommitHandle()
	refs.Add("refs/heads/main", h)
	h.Resolve("abc123", nil)

	require.NoError(t, refs.Finish())
	assert.Equal(t, "abc123", sink.Refs["refs/heads/main"])
}

func TestRefStageKeepsLatestRegistration(t *testing.T) {
	sink := NewMemSink()
	refs := NewRefStage(sink)

	old := NewCommitHandle()
	old.Resolve("old", nil)
	tip := NewCommitHandle()
	tip.Resolve("new", nil)

	refs.Add("refs/heads/main", old)
	refs.Add("refs/heads/main", tip)
	require.NoError(t, refs.Finish())
	assert.Equal(t, "new", sink.Refs["refs/heads/main"])
}

func TestRefStagePruneOnlyManagedNamespaces(t *testing.T) {
	sink := NewMemSink()
	refs := NewRefStage(sink)
	live := NewCommitHandle()
	live.Resolve("live", nil)
	refs.Add("refs/heads/keep", live)
	require.NoError(t, refs.Finish())

	var deleted []string
	existing := []string{"refs/heads/keep", "refs/heads/stale", "refs/notes/commits"}
	require.NoError(t, refs.Prune(existing, func(name string) error {
		deleted = append(deleted, name)
		return nil
	}))
	assert.Equal(t, []string{"refs/heads/stale"}, deleted)
}

package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfsone/svn2git/lib/pathtree"
)

func buildTree(t *testing.T, files map[string]string) pathtree.Tree {
	t.Helper()
	tree := pathtree.New()
	var err error
	tree, err = tree.AddDir("trunk", nil)
	require.NoError(t, err)
	for path, content := range files {
		tree, err = tree.AddFile(path, pathtree.File{Content: []byte(content)}, nil)
		require.NoError(t, err)
	}
	return tree
}

func TestCompareIdenticalTrees(t *testing.T) {
	a := buildTree(t, map[string]string{"trunk/a.txt": "one\n"})
	b := buildTree(t, map[string]string{"trunk/a.txt": "one\n"})
	diffs, err := Compare(a, b)
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestCompareReportsContentDivergence(t *testing.T) {
	ours := buildTree(t, map[string]string{"trunk/a.txt": "one\n"})
	reference := buildTree(t, map[string]string{"trunk/a.txt": "two\n"})
	diffs, err := Compare(ours, reference)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, "trunk/a.txt", diffs[0].Path)
	assert.Contains(t, diffs[0].Diff, "-two")
	assert.Contains(t, diffs[0].Diff, "+one")
}

func TestCompareReportsPresenceDivergence(t *testing.T) {
	ours := buildTree(t, map[string]string{"trunk/a.txt": "one\n"})
	reference := buildTree(t, map[string]string{"trunk/a.txt": "one\n", "trunk/b.txt": "x\n"})
	diffs, err := Compare(ours, reference)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, "trunk/b.txt", diffs[0].Path)
	assert.Equal(t, "only in reference", diffs[0].Diff)
}

func TestExtractSingleFile(t *testing.T) {
	tree := buildTree(t, map[string]string{"trunk/a.txt": "hello\n"})
	dest := t.TempDir()
	require.NoError(t, Extract(tree, "trunk/a.txt", dest))

	data, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestExtractDirectory(t *testing.T) {
	tree := buildTree(t, map[string]string{
		"trunk/a.txt": "a\n",
		"trunk/b.txt": "b\n",
	})
	dest := t.TempDir()
	require.NoError(t, Extract(tree, "trunk", dest))

	a, err := os.ReadFile(filepath.Join(dest, "trunk", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(a))
	b, err := os.ReadFile(filepath.Join(dest, "trunk", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b\n", string(b))
}

func TestSummaryYAMLRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.yml")
	s := &Summary{
		Revisions: 10,
		Commits:   7,
		Branches: []BranchLine{
			{Refname: "refs/heads/main", Path: "trunk", FirstRev: 1, Commits: 7},
		},
	}
	require.NoError(t, s.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "revisions: 10")
	assert.Contains(t, string(data), "ref: refs/heads/main")
}

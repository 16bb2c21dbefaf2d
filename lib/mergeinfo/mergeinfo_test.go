package mergeinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRangesCombinesOverlaps(t *testing.T) {
	rs, err := ParseRanges("100-200,150-250,300")
	require.NoError(t, err)
	assert.Equal(t, "100-250,300", rs.String())
}

func TestSubtractRanges(t *testing.T) {
	a := RangeSet{{Start: 100, End: 300}}
	b := RangeSet{{Start: 150, End: 200}}
	assert.Equal(t, "100-149,201-300", Subtract(a, b).String())
}

func TestInfoNormalizeDropsChildCoveredByParent(t *testing.T) {
	m, err := New("/dir:100-200\n/dir/file:100-200")
	require.NoError(t, err)
	m.Normalize()
	assert.Equal(t, RangeSet(nil), m.Get("/dir/file"))
	assert.Equal(t, "100-200", m.Get("/dir").String())
}

func TestInfoDiffIsMonotonic(t *testing.T) {
	prev, err := New("/trunk:1-10")
	require.NoError(t, err)
	cur, err := New("/trunk:1-20")
	require.NoError(t, err)

	diff := cur.Diff(prev)
	assert.Equal(t, "11-20", diff.Get("/trunk").String())
}

func TestCoverageRequiresEveryBranchRevision(t *testing.T) {
	c := Candidate{SourceBranch: "refs/heads/feat", Ranges: RangeSet{{Start: 10, End: 14}}}
	sources := fakeBranchSource{revs: map[string][]int{"refs/heads/feat": {10, 11, 12, 13, 14}}}
	assert.True(t, Coverage(sources, c, nil))

	// Merging up to r12 proposes r12 as the merge base: r13 and r14 lie
	// above it and are not required.
	c.Ranges = RangeSet{{Start: 10, End: 12}}
	assert.True(t, Coverage(sources, c, nil))

	// A gap below the merge base leaves the coverage incomplete.
	c.Ranges = RangeSet{{Start: 10, End: 11}, {Start: 13, End: 14}}
	assert.False(t, Coverage(sources, c, nil))
}

type fakeBranchSource struct {
	revs map[string][]int
}

func (f fakeBranchSource) ResolveBranch(path string) (string, string, bool) { return "", "", false }
func (f fakeBranchSource) RevisionsOnBranch(refname string) []int           { return f.revs[refname] }

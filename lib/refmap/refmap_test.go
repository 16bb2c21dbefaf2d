package refmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfsone/svn2git/lib/config"
)

func defaultMapper(t *testing.T) *Mapper {
	t.Helper()
	proj, err := config.Resolve(&config.Document{}, &config.ProjectXML{Name: "test"})
	require.NoError(t, err)
	return New(proj)
}

func TestResolveTrunkToMain(t *testing.T) {
	m := defaultMapper(t)
	res := m.Resolve("trunk", 1)
	require.Equal(t, Mapped, res.Status)
	assert.Equal(t, "refs/heads/main", res.Refname)
}

func TestResolveBranchesParentIsBlocked(t *testing.T) {
	m := defaultMapper(t)
	res := m.Resolve("branches", 1)
	assert.Equal(t, Blocked, res.Status, "the branches container itself is never a branch")

	res = m.Resolve("branches/feat", 1)
	require.Equal(t, Mapped, res.Status)
	assert.Equal(t, "refs/heads/feat", res.Refname)
}

func TestResolveUserBranch(t *testing.T) {
	m := defaultMapper(t)
	res := m.Resolve("Proj1/users/branches/alice/x", 1)
	require.Equal(t, Mapped, res.Status)
	assert.Equal(t, "refs/heads/Proj1/users/alice/x", res.Refname)
}

func TestResolveUnmapped(t *testing.T) {
	m := defaultMapper(t)
	res := m.Resolve("random/dir", 1)
	assert.Equal(t, Unmapped, res.Status)
}

func TestCollisionSuffixIsDeterministic(t *testing.T) {
	m := defaultMapper(t)
	first := m.Resolve("branches/feat x", 1)
	second := m.Resolve("branches/feat_x", 2)
	third := m.Resolve("branches/feat x", 3)

	// All three sanitize to feat_x; later claims get ordered suffixes.
	assert.Equal(t, "refs/heads/feat_x", first.Refname)
	assert.Equal(t, "refs/heads/feat_x__2", second.Refname)
	assert.Equal(t, "refs/heads/feat_x__3", third.Refname)
}

func TestCharacterReplace(t *testing.T) {
	m := defaultMapper(t)
	res := m.Resolve("branches/feat x:1", 1)
	require.Equal(t, Mapped, res.Status)
	assert.Equal(t, "refs/heads/feat_x.1", res.Refname)
}

func TestTagsGetAltRefname(t *testing.T) {
	m := defaultMapper(t)
	res := m.Resolve("tags/v1.0", 1)
	require.Equal(t, Mapped, res.Status)
	assert.Equal(t, "refs/tags/v1.0", res.Refname)
	assert.Equal(t, "refs/heads/tags/v1.0", res.AltRefname)
}

func TestDeletedRefname(t *testing.T) {
	assert.Equal(t, "refs/heads/b_deleted@r20", DeletedRefname("refs/heads/b", 20))
}

func TestReleaseAllowsReclaim(t *testing.T) {
	m := defaultMapper(t)
	first := m.Resolve("branches/dead", 1)
	require.Equal(t, "refs/heads/dead", first.Refname)

	m.Release("refs/heads/dead")
	// mimic a revival claiming the name again via a sibling path
	second := m.Resolve("branches/dead", 5)
	assert.Equal(t, "refs/heads/dead", second.Refname)
}

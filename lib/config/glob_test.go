package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternMatchCaptures(t *testing.T) {
	p, err := CompilePattern("**/branches/*", true, false)
	require.NoError(t, err)

	caps, ok := p.Match("trunk/branches/feat")
	require.True(t, ok)
	assert.Equal(t, []string{"trunk", "feat"}, caps)

	_, ok = p.Match("branches-other/feat")
	assert.False(t, ok)
}

func TestPatternDoubleStarMatchesEmpty(t *testing.T) {
	p, err := CompilePattern("**/trunk", true, false)
	require.NoError(t, err)

	_, ok := p.Match("trunk")
	assert.True(t, ok, "** must match the empty prefix")
}

func TestPatternListNegation(t *testing.T) {
	pl, err := CompilePatternList("*.txt;!secret.txt", false, true)
	require.NoError(t, err)

	_, ok := pl.Match("readme.txt")
	assert.True(t, ok)

	_, ok = pl.Match("secret.txt")
	assert.False(t, ok)
}

func TestPatternListAllNegativeImplicitMatch(t *testing.T) {
	pl, err := CompilePatternList("!*.log", false, true)
	require.NoError(t, err)

	_, ok := pl.Match("readme.txt")
	assert.True(t, ok)

	_, ok = pl.Match("debug.log")
	assert.False(t, ok)
}

func TestVarTableExpandRecursive(t *testing.T) {
	vt := NewVarTable()
	vt.Set("Base", "trunk")
	vt.Set("Full", "$Base/release")
	require.NoError(t, vt.Resolve())

	out, err := vt.Expand("**/$Full", false)
	require.NoError(t, err)
	assert.Equal(t, "**/trunk/release", out)
}

func TestVarTableCircularReference(t *testing.T) {
	vt := NewVarTable()
	vt.Set("A", "$B")
	vt.Set("B", "$A")

	err := vt.Resolve()
	assert.ErrorIs(t, err, ErrCircularVar)
}

func TestVarTableSemicolonAlternation(t *testing.T) {
	vt := NewVarTable()
	vt.Set("UserBranches", "users/branches;branches/users")
	require.NoError(t, vt.Resolve())

	out, err := vt.Expand("**/$UserBranches/*", true)
	require.NoError(t, err)
	assert.Equal(t, "**/{users/branches,branches/users}/*", out)
}

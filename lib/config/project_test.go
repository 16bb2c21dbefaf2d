package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `<Projects>
	<Default>
		<Vars>
			<MapTrunkTo>master</MapTrunkTo>
		</Vars>
		<EditMsg Pattern="JIRA-" Replace="PROJ-"/>
	</Default>
	<Project Name="widgets">
		<MapPath>
			<Path>widgets/stable/*</Path>
			<Refname>refs/heads/stable/$1</Refname>
		</MapPath>
		<UnmapPath Path="widgets/scratch"/>
		<SkipCommit Revs="10,12-14"/>
		<EmptyDirPlaceholder>.gitkeep</EmptyDirPlaceholder>
		<IgnoreUnmerged>version.txt;*.rc</IgnoreUnmerged>
	</Project>
	<Project Name="hidden" ExplicitOnly="Yes"/>
</Projects>`

func loadSample(t *testing.T) *Document {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.xml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))
	doc, err := Load(path)
	require.NoError(t, err)
	return doc
}

func TestResolveMergesDefaultVars(t *testing.T) {
	doc := loadSample(t)
	p, err := Resolve(doc, doc.Projects[0])
	require.NoError(t, err)

	// Document default overrides the built-in MapTrunkTo.
	got, err := p.Vars.Expand("$MapTrunkTo", false)
	require.NoError(t, err)
	assert.Equal(t, "master", got)
}

func TestProjectRulesPrecedeDefaults(t *testing.T) {
	doc := loadSample(t)
	p, err := Resolve(doc, doc.Projects[0])
	require.NoError(t, err)

	// The project's own MapPath sorts ahead of every inherited rule.
	require.NotEmpty(t, p.MapRules)
	assert.Equal(t, "project", p.MapRules[0].Source)
	assert.Equal(t, "widgets/stable/*", p.MapRules[0].Path.Source())
}

func TestSkipCommitRevRanges(t *testing.T) {
	doc := loadSample(t)
	p, err := Resolve(doc, doc.Projects[0])
	require.NoError(t, err)

	assert.True(t, p.SkipRevs[10])
	assert.True(t, p.SkipRevs[12])
	assert.True(t, p.SkipRevs[14])
	assert.False(t, p.SkipRevs[11])
}

func TestIgnoreUnmergedPatterns(t *testing.T) {
	doc := loadSample(t)
	p, err := Resolve(doc, doc.Projects[0])
	require.NoError(t, err)

	assert.True(t, p.IsIgnoredUnmerged("version.txt"))
	assert.True(t, p.IsIgnoredUnmerged("build.rc"))
	assert.False(t, p.IsIgnoredUnmerged("main.c"))
}

func TestExplicitOnlyFlag(t *testing.T) {
	doc := loadSample(t)
	p, err := Resolve(doc, doc.Projects[1])
	require.NoError(t, err)
	assert.True(t, p.ExplicitOnly)
}

func TestEditMessageChain(t *testing.T) {
	doc := loadSample(t)
	p, err := Resolve(doc, doc.Projects[0])
	require.NoError(t, err)

	out := p.EditMessage("widgets/stable/one", "fixes JIRA-123")
	assert.Equal(t, "fixes PROJ-123", out)
}

func TestBuiltinReplaceRules(t *testing.T) {
	p, err := Resolve(&Document{}, &ProjectXML{Name: "bare"})
	require.NoError(t, err)

	assert.Equal(t, "refs/heads/feat_x.1", p.ApplyReplace("refs/heads/feat x:1"))
}

func TestInheritDefaultMappingsNo(t *testing.T) {
	p, err := Resolve(&Document{}, &ProjectXML{Name: "bare", InheritDefaultMappings: "No"})
	require.NoError(t, err)
	assert.Empty(t, p.MapRules, "built-in trunk/branches/tags rules must be absent")
}

func TestParseBoolVocabulary(t *testing.T) {
	for _, yes := range []string{"1", "Yes", "yes", "True", "true"} {
		v, err := ParseBool(yes)
		require.NoError(t, err)
		assert.True(t, v, yes)
	}
	for _, no := range []string{"0", "No", "no", "False", "false"} {
		v, err := ParseBool(no)
		require.NoError(t, err)
		assert.False(t, v, no)
	}
	_, err := ParseBool("maybe")
	assert.Error(t, err)
}

func TestAuthorsDefaultIdentity(t *testing.T) {
	a, err := LoadAuthors("")
	require.NoError(t, err)
	id := a.Resolve("bob")
	assert.Equal(t, "bob", id.Name)
	assert.Equal(t, "bob@localhost", id.Email)
}

func TestAuthorsMapFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authors.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"alice": {"Name": "Alice Priest", "Email": "alice@example.com"}}`), 0644))
	a, err := LoadAuthors(path)
	require.NoError(t, err)
	assert.Equal(t, "Alice Priest", a.Resolve("alice").Name)
	assert.Equal(t, "alice@example.com", a.Resolve("alice").Email)
}

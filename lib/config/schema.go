package config

import (
	"encoding/xml"
	"fmt"
	"os"
)

// Document is the root of a project configuration file:
// <Projects> wrapping zero or more <Project> blocks plus one optional
// <Default> block.
type Document struct {
	XMLName  xml.Name      `xml:"Projects"`
	Default  *ProjectXML   `xml:"Default"`
	Projects []*ProjectXML `xml:"Project"`
}

// ProjectXML is one <Project>/<Default> block as parsed straight off the
// wire, before rule-resolution merges it against defaults.
type ProjectXML struct {
	Name                   string `xml:"Name,attr"`
	ExplicitOnly           string `xml:"ExplicitOnly,attr"`
	NeedsProjects          string `xml:"NeedsProjects,attr"`
	InheritDefaultMappings string `xml:"InheritDefaultMappings,attr"`

	Vars VarsXML `xml:"Vars"`

	MapPaths       []MapPathXML   `xml:"MapPath"`
	UnmapPaths     []UnmapPathXML `xml:"UnmapPath"`
	Replaces       []ReplaceXML   `xml:"Replace"`
	EditMsgs       []EditMsgXML   `xml:"EditMsg"`
	IgnoreFile     []IgnoreXML    `xml:"IgnoreFiles"`
	IgnoreUnmerged []IgnoreXML    `xml:"IgnoreUnmerged"`
	Chmods         []ChmodXML     `xml:"Chmod"`
	MapRefs        []MapRefXML    `xml:"MapRef"`

	InjectFiles          []InjectFileXML `xml:"InjectFile"`
	AddFiles             []InjectFileXML `xml:"AddFile"`
	DeletePaths          []DeletePathXML `xml:"DeletePath"`
	EmptyDirPlaceholders []string        `xml:"EmptyDirPlaceholder"`
	SkipCommits          []SkipCommitXML `xml:"SkipCommit"`
}

// VarsXML collects every <Vars> child regardless of tag name: the tag
// name is the variable name and the element text is its (unexpanded)
// value.
type VarsXML struct {
	Entries []VarXML `xml:",any"`
}

// VarXML is a single <Vars> child.
type VarXML struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// MapPathXML is one <MapPath>: the glob that selects SVN directories to
// turn into branches, the refname template, and optional alt-ref/revision-
// ref templates plus the per-mapping merge/inheritance knobs.
type MapPathXML struct {
	Path        string `xml:"Path"`
	Refname     string `xml:"Refname"`
	AltRefname  string `xml:"AltRefname"`
	RevisionRef string `xml:"RevisionRef"`

	BlockParent      string `xml:"BlockParent,attr"`
	AddTreePrefix    string `xml:"AddTreePrefix,attr"`
	InheritMergeinfo string `xml:"InheritMergeinfo,attr"`
	RecreateMerges   string `xml:"RecreateMerges,attr"`
}

// UnmapPathXML is one <UnmapPath>: a glob whose matches are never turned
// into branches, regardless of any <MapPath> that might otherwise apply.
type UnmapPathXML struct {
	Path string `xml:"Path,attr"`
}

// ReplaceXML is one character-substitution rule applied to a final
// refname: every occurrence of
// Chars becomes With.
type ReplaceXML struct {
	Chars string `xml:"Chars"`
	With  string `xml:"With"`
}

// EditMsgXML rewrites a commit message when Match (a glob against the
// branch path) succeeds; Final stops the chain from considering later
// rules.
type EditMsgXML struct {
	Match   string `xml:"Match,attr"`
	Pattern string `xml:"Pattern,attr"`
	Replace string `xml:"Replace,attr"`
	Final   string `xml:"Final,attr"`
}

// IgnoreXML is a semicolon/negation pattern list of paths to exclude from
// the generated tree.
type IgnoreXML struct {
	Patterns string `xml:",chardata"`
}

// ChmodXML sets or clears the executable bit on paths matching Match,
// independent of svn:executable.
type ChmodXML struct {
	Match      string `xml:"Match,attr"`
	Executable string `xml:"Executable,attr"`
}

// MapRefXML remaps an already-computed refname; it applies before
// <Replace>, and any collision suffix is appended after both.
type MapRefXML struct {
	From string `xml:"From,attr"`
	To   string `xml:"To,attr"`
}

// InjectFileXML materializes a literal file at Path with Content for the
// owning branch: InjectFile stages it with the branch's first commit and
// the branch index carries it into every later commit; AddFile stages it
// once, at the revision given.
type InjectFileXML struct {
	Path    string `xml:"Path,attr"`
	Content string `xml:",chardata"`
	AtRev   int    `xml:"Revision,attr"`
}

// DeletePathXML removes Path from the generated tree as of Revision,
// regardless of what the SVN history says.
type DeletePathXML struct {
	Path     string `xml:"Path,attr"`
	Revision int    `xml:"Revision,attr"`
}

// SkipCommitXML names SVN revisions whose change is folded into the next
// emitted commit on the same branch rather than becoming its own commit.
type SkipCommitXML struct {
	Revs string `xml:"Revs,attr"`
}

// parseXMLFragment unmarshals a standalone <Default>...</Default> (or any
// other root tag) into a ProjectXML; used for the embedded built-in
// defaults, which don't need a whole Document wrapper.
func parseXMLFragment(doc string) (*ProjectXML, error) {
	var p ProjectXML
	if err := xml.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("config: builtin defaults: %w", err)
	}
	return &p, nil
}

// Load parses an XML project-configuration file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &doc, nil
}

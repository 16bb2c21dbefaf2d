package config

import (
	"fmt"
	"strconv"
	"strings"
)

// builtinDefaultXML is the trunk/branches/tags/user-branches layout
// every project gets unless
// InheritDefaultMappings=No. It is parsed once, lazily, by builtinDefault.
const builtinDefaultXML = `<Default>
	<Vars>
		<Trunk>trunk</Trunk>
		<Branches>branches</Branches>
		<UserBranches>users/branches;branches/users</UserBranches>
		<Tags>tags</Tags>
		<MapTrunkTo>main</MapTrunkTo>
	</Vars>
	<MapPath>
		<Path>**/$UserBranches/*/*</Path>
		<Refname>refs/heads/$1/users/$2/$3</Refname>
	</MapPath>
	<MapPath>
		<Path>**/$Branches/*</Path>
		<Refname>refs/heads/$1/$2</Refname>
	</MapPath>
	<MapPath>
		<Path>**/$Tags/*</Path>
		<Refname>refs/tags/$1/$2</Refname>
		<AltRefname>refs/heads/$1/tags/$2</AltRefname>
	</MapPath>
	<MapPath>
		<Path>**/$Trunk</Path>
		<Refname>refs/heads/$1/$MapTrunkTo</Refname>
	</MapPath>
	<Replace>
		<Chars> </Chars>
		<With>_</With>
	</Replace>
	<Replace>
		<Chars>:</Chars>
		<With>.</With>
	</Replace>
	<Replace>
		<Chars>^</Chars>
		<With>+</With>
	</Replace>
</Default>`

var builtinDefault *ProjectXML

func builtinDefaultProject() *ProjectXML {
	if builtinDefault == nil {
		doc, err := parseBuiltinDefault()
		if err != nil {
			panic(err) // programmer error: the embedded XML literal is malformed
		}
		builtinDefault = doc
	}
	return builtinDefault
}

// MapRule is one resolved <MapPath>, or the synthetic unmap a trailing
// "/*" produces for its parent, ready for the ref mapper to evaluate
// in order.
type MapRule struct {
	Path             *Pattern
	Unmap            bool
	Refname          string
	AltRefname       string
	RevisionRef      string
	AddTreePrefix    bool
	InheritMergeinfo bool
	RecreateMerges   map[string]bool
	Source           string // "project", "default", or "builtin" for diagnostics
}

// Project is a fully resolved project configuration: rule-resolution
// ordering has already been applied, so every list here is in final
// evaluation order and every glob is already compiled against Vars.
type Project struct {
	Name          string
	ExplicitOnly  bool
	NeedsProjects []string

	Vars *VarTable

	MapRules []MapRule

	Replaces []charReplace
	EditMsgs []editMsgRule
	Ignore   *PatternList
	// Unmerged lists paths whose revisions don't count against merge
	// coverage: a source-branch revision touching only matching paths
	// may be absent from svn:mergeinfo without downgrading the merge.
	Unmerged *PatternList
	Chmods   []chmodRule
	MapRefs  []mapRefRule

	InjectFiles []InjectFileXML
	AddFiles    []InjectFileXML
	DeletePaths []DeletePathXML
	EmptyDirs   []string
	SkipRevs    map[int]bool
}

type charReplace struct{ From, To string }

type editMsgRule struct {
	match   *Pattern
	pattern string
	replace string
	final   bool
}

type chmodRule struct {
	match      *Pattern
	executable bool
}

type mapRefRule struct{ From, To string }

// Resolve builds a Project from a <Project> element, merging in the
// document's <Default> (if any) and the built-in defaults.
func Resolve(doc *Document, proj *ProjectXML) (*Project, error) {
	explicitOnly, err := BoolDefault(proj.ExplicitOnly, false)
	if err != nil {
		return nil, err
	}
	inheritDefaults, err := BoolDefault(proj.InheritDefaultMappings, true)
	if err != nil {
		return nil, err
	}

	p := &Project{
		Name:         proj.Name,
		ExplicitOnly: explicitOnly,
		SkipRevs:     map[int]bool{},
	}
	if proj.NeedsProjects != "" {
		p.NeedsProjects = strings.Split(proj.NeedsProjects, ",")
	}

	// Vars: defaults resolved first, then project Vars overwrite by
	// name. Defaults merge ahead of the project's own entries so later
	// processing overwrites.
	p.Vars = NewVarTable()
	if doc.Default != nil {
		for _, v := range doc.Default.Vars.Entries {
			p.Vars.Set(v.XMLName.Local, v.Value)
		}
	}
	if inheritDefaults {
		for _, v := range builtinDefaultProject().Vars.Entries {
			if _, exists := p.Vars.raw[v.XMLName.Local]; !exists {
				p.Vars.Set(v.XMLName.Local, v.Value)
			}
		}
	}
	for _, v := range proj.Vars.Entries {
		p.Vars.Set(v.XMLName.Local, v.Value)
	}
	if err := p.Vars.Resolve(); err != nil {
		return nil, fmt.Errorf("config: project %s: %w", p.Name, err)
	}

	// Mapping rules: project MapPath/UnmapPath (declaration order), then
	// the document's <Default> ones, then the built-ins unless disabled.
	if err := p.appendMapRules(proj, "project"); err != nil {
		return nil, err
	}
	if doc.Default != nil {
		if err := p.appendMapRules(doc.Default, "default"); err != nil {
			return nil, err
		}
	}
	if inheritDefaults {
		if err := p.appendMapRules(builtinDefaultProject(), "builtin"); err != nil {
			return nil, err
		}
	}

	// EditMsg/IgnoreFiles/Chmod/MapRef/Replace: project rules first,
	// defaults appended after. The inversion from the mapping-rule order
	// is deliberate: mappings are first-match-wins so user rules take
	// precedence, while post-processing filters fall back to defaults.
	if err := p.appendPostProcessing(proj); err != nil {
		return nil, err
	}
	if doc.Default != nil {
		if err := p.appendPostProcessing(doc.Default); err != nil {
			return nil, err
		}
	}
	if inheritDefaults {
		if err := p.appendPostProcessing(builtinDefaultProject()); err != nil {
			return nil, err
		}
	}

	p.InjectFiles = append(p.InjectFiles, proj.InjectFiles...)
	p.AddFiles = append(p.AddFiles, proj.AddFiles...)
	p.DeletePaths = append(p.DeletePaths, proj.DeletePaths...)
	p.EmptyDirs = append(p.EmptyDirs, proj.EmptyDirPlaceholders...)
	for _, sc := range proj.SkipCommits {
		for _, r := range parseRevList(sc.Revs) {
			p.SkipRevs[r] = true
		}
	}

	return p, nil
}

func (p *Project) appendMapRules(src *ProjectXML, source string) error {
	for _, mp := range src.MapPaths {
		pathSpec, err := p.Vars.Expand(mp.Path, true)
		if err != nil {
			return err
		}
		pat, err := CompilePattern(pathSpec, true, false)
		if err != nil {
			return err
		}
		blockParent, err := BoolDefault(mp.BlockParent, true)
		if err != nil {
			return err
		}
		addPrefix, _ := BoolDefault(mp.AddTreePrefix, false)
		inheritMI, _ := BoolDefault(mp.InheritMergeinfo, true)

		refname, err := p.Vars.Expand(mp.Refname, false)
		if err != nil {
			return err
		}
		alt, err := p.Vars.Expand(mp.AltRefname, false)
		if err != nil {
			return err
		}
		revRef, err := p.Vars.Expand(mp.RevisionRef, false)
		if err != nil {
			return err
		}

		p.MapRules = append(p.MapRules, MapRule{
			Path: pat, Unmap: refname == "",
			Refname: refname, AltRefname: alt, RevisionRef: revRef,
			AddTreePrefix: addPrefix, InheritMergeinfo: inheritMI,
			RecreateMerges: parseRecreateMerges(mp.RecreateMerges),
			Source:         source,
		})

		// Implicit parent block: a <Path> ending "/*" also unmaps
		// its own parent directory, so "branches/" itself never becomes a
		// branch, unless explicitly disabled.
		if blockParent && strings.HasSuffix(pathSpec, "/*") {
			parentSpec := strings.TrimSuffix(pathSpec, "/*")
			parentPat, err := CompilePattern(parentSpec, true, false)
			if err != nil {
				return err
			}
			p.MapRules = append(p.MapRules, MapRule{Path: parentPat, Unmap: true, Source: source + "-implicit-parent"})
		}
	}
	for _, up := range src.UnmapPaths {
		pathSpec, err := p.Vars.Expand(up.Path, true)
		if err != nil {
			return err
		}
		pat, err := CompilePattern(pathSpec, true, false)
		if err != nil {
			return err
		}
		p.MapRules = append(p.MapRules, MapRule{Path: pat, Unmap: true, Source: source})
	}
	return nil
}

func (p *Project) appendPostProcessing(src *ProjectXML) error {
	for _, r := range src.Replaces {
		p.Replaces = append(p.Replaces, charReplace{From: r.Chars, To: r.With})
	}
	for _, e := range src.EditMsgs {
		matchSpec, err := p.Vars.Expand(e.Match, true)
		if err != nil {
			return err
		}
		var pat *Pattern
		if matchSpec != "" {
			pat, err = CompilePattern(matchSpec, true, false)
			if err != nil {
				return err
			}
		}
		final, err := BoolDefault(e.Final, false)
		if err != nil {
			return err
		}
		p.EditMsgs = append(p.EditMsgs, editMsgRule{match: pat, pattern: e.Pattern, replace: e.Replace, final: final})
	}
	for _, ig := range src.IgnoreFile {
		pl, err := CompilePatternList(ig.Patterns, false, true)
		if err != nil {
			return err
		}
		if p.Ignore == nil {
			p.Ignore = pl
		} else {
			p.Ignore.entries = append(p.Ignore.entries, pl.entries...)
		}
	}
	for _, ig := range src.IgnoreUnmerged {
		pl, err := CompilePatternList(ig.Patterns, false, true)
		if err != nil {
			return err
		}
		if p.Unmerged == nil {
			p.Unmerged = pl
		} else {
			p.Unmerged.entries = append(p.Unmerged.entries, pl.entries...)
		}
	}
	for _, c := range src.Chmods {
		pat, err := CompilePattern(c.Match, false, true)
		if err != nil {
			return err
		}
		exec, err := BoolDefault(c.Executable, true)
		if err != nil {
			return err
		}
		p.Chmods = append(p.Chmods, chmodRule{match: pat, executable: exec})
	}
	for _, mr := range src.MapRefs {
		p.MapRefs = append(p.MapRefs, mapRefRule{From: mr.From, To: mr.To})
	}
	return nil
}

func parseRecreateMerges(s string) map[string]bool {
	out := map[string]bool{}
	if s == "" {
		return out
	}
	for _, cat := range strings.Split(s, ",") {
		out[strings.TrimSpace(cat)] = true
	}
	return out
}

func parseRevList(s string) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			lo, err1 := strconv.Atoi(bounds[0])
			hi, err2 := strconv.Atoi(bounds[1])
			if err1 == nil && err2 == nil {
				for r := lo; r <= hi; r++ {
					out = append(out, r)
				}
			}
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// ApplyReplace runs the project's character <Replace> rules over a
// refname. The replace step runs after <MapRef> remapping.
func (p *Project) ApplyReplace(refname string) string {
	for _, r := range p.Replaces {
		refname = strings.ReplaceAll(refname, r.From, r.To)
	}
	return refname
}

// ApplyMapRef remaps a computed refname if any <MapRef> rule's From
// matches exactly.
func (p *Project) ApplyMapRef(refname string) string {
	for _, mr := range p.MapRefs {
		if mr.From == refname {
			return mr.To
		}
	}
	return refname
}

// EditMessage runs the project's <EditMsg> chain against a branch path
// and the original SVN log message, stopping at the first Final match.
func (p *Project) EditMessage(branchPath, message string) string {
	for _, rule := range p.EditMsgs {
		if rule.match != nil {
			if _, ok := rule.match.Match(branchPath); !ok {
				continue
			}
		}
		if rule.pattern != "" {
			message = strings.ReplaceAll(message, rule.pattern, rule.replace)
		}
		if rule.final {
			break
		}
	}
	return message
}

// IsIgnored reports whether path matches the project's <IgnoreFiles>
// pattern list.
func (p *Project) IsIgnored(path string) bool {
	if p.Ignore == nil {
		return false
	}
	_, ok := p.Ignore.Match(path)
	return ok
}

// IsIgnoredUnmerged reports whether path matches <IgnoreUnmerged>.
func (p *Project) IsIgnoredUnmerged(path string) bool {
	if p.Unmerged == nil {
		return false
	}
	_, ok := p.Unmerged.Match(path)
	return ok
}

// ChmodExecutable reports whether a <Chmod> rule forces path's
// executable bit, returning (forced value, true) or (false, false) if no
// rule applies.
func (p *Project) ChmodExecutable(path string) (bool, bool) {
	for _, c := range p.Chmods {
		if _, ok := c.match.Match(path); ok {
			return c.executable, true
		}
	}
	return false, false
}

func parseBuiltinDefault() (*ProjectXML, error) {
	doc, err := parseXMLFragment(builtinDefaultXML)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

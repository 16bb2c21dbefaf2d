// Package refmap implements the Ref Mapper: resolving an SVN
// directory path at a given revision to a Git refname, or to Blocked/
// Unmapped, with collision-free naming and the implicit-parent-block rule.
package refmap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emirpasic/gods/sets/linkedhashset"

	"github.com/kfsone/svn2git/lib/config"
)

// Status is the outcome of resolving a path.
type Status int

const (
	// Unmapped means no <MapPath> (project, default, or built-in) claims
	// this path at all; the History Builder logs and skips it.
	Unmapped Status = iota
	// Blocked means an explicit <UnmapPath>, or an implicit parent block
	// from a sibling "/*" <MapPath>, suppresses branch creation here.
	Blocked
	// Mapped means the path resolves to a live branch refname.
	Mapped
)

// Resolution is the result of Resolve.
type Resolution struct {
	Status           Status
	Refname          string
	AltRefname       string
	RevisionRefRoot  string
	TreePrefix       string
	AddTreePrefix    bool
	InheritMergeinfo bool
	RecreateMerges   map[string]bool
	MatchedGlob      string
}

// Mapper resolves paths for a single resolved Project, tracking claimed
// refnames so a later collision gets a deterministic __2, __3... suffix
// in branch-creation order.
type Mapper struct {
	project   *config.Project
	claimed   *linkedhashset.Set
	byDesired map[string]int // desired refname -> count of claims so far
}

// New returns a Mapper for proj.
func New(proj *config.Project) *Mapper {
	return &Mapper{project: proj, claimed: linkedhashset.New(), byDesired: map[string]int{}}
}

// Resolve evaluates path against the project's resolved <MapPath>/
// <UnmapPath> rule list in order (project/default/builtin precedence
// has already been flattened into p.MapRules). The first rule whose
// glob matches wins, the same first-match-wins contract the semicolon
// pattern lists follow.
func (m *Mapper) Resolve(path string, rev int) Resolution {
	path = strings.Trim(path, "/")
	for _, rule := range m.project.MapRules {
		caps, ok := rule.Path.MatchExact(path)
		if !ok {
			continue
		}
		if rule.Unmap {
			return Resolution{Status: Blocked, MatchedGlob: rule.Path.Source()}
		}
		return m.buildMapped(rule, caps)
	}
	return Resolution{Status: Unmapped}
}

func (m *Mapper) buildMapped(rule config.MapRule, caps []string) Resolution {
	refname := substituteCaptures(rule.Refname, caps)
	refname = ensureRefsPrefix(refname)
	refname = m.project.ApplyMapRef(refname)
	refname = m.project.ApplyReplace(refname)
	refname = m.claim(refname)

	res := Resolution{
		Status:           Mapped,
		Refname:          refname,
		AddTreePrefix:    rule.AddTreePrefix,
		InheritMergeinfo: rule.InheritMergeinfo,
		RecreateMerges:   rule.RecreateMerges,
		MatchedGlob:      rule.Path.Source(),
	}
	if rule.AltRefname != "" {
		alt := ensureRefsPrefix(substituteCaptures(rule.AltRefname, caps))
		res.AltRefname = m.project.ApplyReplace(m.project.ApplyMapRef(alt))
	}
	if rule.RevisionRef != "" {
		res.RevisionRefRoot = ensureRefsPrefix(substituteCaptures(rule.RevisionRef, caps))
	}
	return res
}

// claim reserves desired, appending a "__2", "__3"... suffix if it has
// already been claimed by an earlier (distinct) branch. Suffixing
// happens after both <MapRef> and <Replace> have already run.
func (m *Mapper) claim(desired string) string {
	name := desired
	if m.claimed.Contains(name) {
		m.byDesired[desired]++
		name = desired + "__" + strconv.Itoa(m.byDesired[desired]+1)
		for m.claimed.Contains(name) {
			m.byDesired[desired]++
			name = desired + "__" + strconv.Itoa(m.byDesired[desired]+1)
		}
	}
	m.claimed.Add(name)
	return name
}

// Release frees a claimed refname so a later claim can take it again
// without a __N suffix. The History Builder releases a revival's
// collision-suffixed name when the revival takes back the base name of
// an ended branch; the ended branch's history is then written under
// a *_deleted@rN ref unless its tip was merged elsewhere.
func (m *Mapper) Release(refname string) {
	m.claimed.Remove(refname)
}

func substituteCaptures(template string, caps []string) string {
	out := template
	for i := len(caps); i >= 1; i-- {
		out = strings.ReplaceAll(out, "$"+strconv.Itoa(i), caps[i-1])
	}
	return out
}

func ensureRefsPrefix(refname string) string {
	if refname == "" {
		return refname
	}
	// An empty capture substitution (** matching nothing) leaves double
	// slashes behind; collapse before prefixing.
	for strings.Contains(refname, "//") {
		refname = strings.ReplaceAll(refname, "//", "/")
	}
	refname = strings.Trim(refname, "/")
	if strings.HasPrefix(refname, "refs/") {
		return refname
	}
	return "refs/" + refname
}

// DeletedRefname is the "ended but not absorbed" ref written when a
// branch's SVN path is deleted and its tip never merged anywhere else.
func DeletedRefname(refname string, rev int) string {
	return fmt.Sprintf("%s_deleted@r%d", refname, rev)
}

// Package config implements the glob/variable/rule-resolution engine of
// the converter: XML project configuration, the wildcard grammar used by
// <MapPath>/<UnmapPath>/<IgnoreFiles>, $-style variable substitution, and
// the precise rule-resolution ordering the History Builder depends on.
package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kfsone/svn2git/lib/log"
)

// Pattern is a compiled glob: ?, *, **, {a,b}. Compilation
// is purely syntactic -- each explicit wildcard records a capture index used
// during substitution of $1..$n in a <MapRef>/Refname template.
type Pattern struct {
	source   string
	re       *regexp.Regexp
	exact    *regexp.Regexp // without the dir/file suffix relaxation
	captures int
	// doublestarGlob is the glob text doublestar.Match evaluates as an
	// independent cross-check of the exact-form regexp verdict
	// (doublestar has no capture support, so it never drives capture
	// extraction itself).
	doublestarGlob string
}

var wildcardToken = regexp.MustCompile(`\*\*/|\*\*|\*|\?|\{[^}]*\}`)

// CompilePattern translates spec into an anchored regexp plus a doublestar
// equivalent. matchFiles alone anchors a file-only match,
// matchDirs alone forces a trailing "/" (or implies one), both set allows a
// wildcard to match either a directory or a file beneath it.
func CompilePattern(spec string, matchDirs, matchFiles bool) (*Pattern, error) {
	spec = collapseSlashes(spec)

	var buf strings.Builder
	captures := 0
	last := 0

	locs := wildcardToken.FindAllStringIndex(spec, -1)
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		buf.WriteString(regexp.QuoteMeta(spec[last:start]))
		tok := spec[start:end]
		switch {
		case tok == "**/":
			buf.WriteString(`(?:(.*)/)?`)
			captures++
		case tok == "**":
			buf.WriteString(`(.*)`)
			captures++
		case tok == "*":
			buf.WriteString(`([^/]*)`)
			captures++
		case tok == "?":
			buf.WriteString(`([^/])`)
			captures++
		case strings.HasPrefix(tok, "{"):
			// Alternation selects between fixed spellings rather than
			// matching free text, so it contributes no capture: $1..$n
			// in a refname template count only the true wildcards.
			alts := strings.Split(tok[1:len(tok)-1], ",")
			for i, a := range alts {
				alts[i] = regexp.QuoteMeta(a)
			}
			buf.WriteString("(?:" + strings.Join(alts, "|") + ")")
		}
		last = end
	}
	buf.WriteString(regexp.QuoteMeta(spec[last:]))

	core := buf.String()
	body := core
	switch {
	case matchFiles && matchDirs:
		if strings.HasSuffix(spec, "/") {
			body += `(?:.*)`
		} else {
			body += `(?:/.*)?`
		}
	case matchFiles:
		if strings.HasSuffix(spec, "/") {
			body += `(?:.*)`
		}
	case matchDirs:
		if !strings.HasSuffix(spec, "/") {
			body += `(?:/.*)?`
		}
	}

	re, err := regexp.Compile("^" + body + "$")
	if err != nil {
		return nil, fmt.Errorf("config: glob %q: %w", spec, err)
	}
	exact, err := regexp.Compile("^" + core + "$")
	if err != nil {
		return nil, fmt.Errorf("config: glob %q: %w", spec, err)
	}
	return &Pattern{source: spec, re: re, exact: exact, captures: captures, doublestarGlob: spec}, nil
}

// Match reports whether path satisfies the pattern (including the
// dir/file suffix relaxation), returning ordered capture text for
// $1..$n substitution in a refname template.
func (p *Pattern) Match(path string) (captures []string, ok bool) {
	m := p.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	return m[1:], true
}

// MatchExact is Match without the directory-suffix relaxation: the glob
// must consume the whole path. Branch creation keys off this form, so a
// rule for branches/* fires for branches/feat but never for an interior
// directory like branches/feat/src.
func (p *Pattern) MatchExact(path string) (captures []string, ok bool) {
	m := p.exact.FindStringSubmatch(path)
	ok = m != nil
	p.crossCheck(path, ok)
	if !ok {
		return nil, false
	}
	return m[1:], true
}

// crossCheck compares the exact-form regexp verdict against doublestar,
// whose grammar (?, *, **, {a,b}, full-path anchoring) coincides with
// the exact form. The regexp verdict always wins -- it carries the
// captures -- but a disagreement means the glob compiler mistranslated
// the pattern, which is worth a line in the log rather than a silent
// wrong branch mapping.
func (p *Pattern) crossCheck(path string, got bool) {
	if strings.HasSuffix(p.source, "/") {
		// A trailing slash is our dir-spelling convention; doublestar
		// reads it literally, so the grammars diverge here.
		return
	}
	if ds, err := doublestar.Match(p.doublestarGlob, path); err == nil && ds != got {
		log.Debug("glob %q: doublestar disagrees on %q (regexp=%v, doublestar=%v)",
			p.source, path, got, ds)
	}
}

// Source returns the original glob text, for diagnostics and collision
// logging.
func (p *Pattern) Source() string { return p.source }

func collapseSlashes(s string) string {
	for strings.Contains(s, "//") {
		s = strings.ReplaceAll(s, "//", "/")
	}
	return s
}

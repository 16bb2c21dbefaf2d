package config

import "strings"

// PatternList is a semicolon-separated list of globs with "!"-prefixed
// negatives: scanned left to right, the first
// positive match wins, any negative match short-circuits to no-match, and
// an all-negative list with nothing positive implicitly matches anything
// that isn't negated.
type PatternList struct {
	entries []listEntry
	allNeg  bool
}

type listEntry struct {
	negate  bool
	pattern *Pattern
}

// CompilePatternList splits spec on ";" (and the "," alias some configs
// use interchangeably), compiling each branch with the same matchDirs/
// matchFiles semantics as a single pattern.
func CompilePatternList(spec string, matchDirs, matchFiles bool) (*PatternList, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return &PatternList{}, nil
	}
	parts := splitSemicolonList(spec)
	pl := &PatternList{entries: make([]listEntry, 0, len(parts))}
	sawPositive := false
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		negate := strings.HasPrefix(part, "!")
		if negate {
			part = part[1:]
		} else {
			sawPositive = true
		}
		p, err := CompilePattern(part, matchDirs, matchFiles)
		if err != nil {
			return nil, err
		}
		pl.entries = append(pl.entries, listEntry{negate: negate, pattern: p})
	}
	pl.allNeg = !sawPositive && len(pl.entries) > 0
	return pl, nil
}

func splitSemicolonList(spec string) []string {
	raw := strings.Split(spec, ";")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		out = append(out, strings.Split(r, ",")...)
	}
	return out
}

// Match evaluates the list against path, scanning left to right.
func (pl *PatternList) Match(path string) (captures []string, ok bool) {
	if pl == nil || len(pl.entries) == 0 {
		return nil, false
	}
	for _, e := range pl.entries {
		if !e.negate {
			continue
		}
		if _, hit := e.pattern.Match(path); hit {
			return nil, false
		}
	}
	for _, e := range pl.entries {
		if e.negate {
			continue
		}
		if caps, hit := e.pattern.Match(path); hit {
			return caps, true
		}
	}
	// Nothing matched at all: an all-negative list implicitly matches
	//, since its only job is to exclude a subset of everything else.
	return nil, pl.allNeg
}

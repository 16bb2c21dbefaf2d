package mergeinfo

import (
	"sort"
	"strings"
)

// Info is the parsed svn:mergeinfo state of one directory: a mapping from
// source path to the revision ranges merged from it.
type Info struct {
	paths      map[string]RangeSet
	normalized bool
}

// New returns an empty Info, optionally seeded by parsing svnMergeinfo
// (the raw svn:mergeinfo property text).
func New(svnMergeinfo string) (*Info, error) {
	m := &Info{paths: map[string]RangeSet{}, normalized: true}
	if svnMergeinfo != "" {
		if err := m.AddString(svnMergeinfo); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AddString parses additional svn:mergeinfo text into the receiver,
// combining with whatever ranges are already recorded for each path.
func (m *Info) AddString(svnMergeinfo string) error {
	changed := false
	for _, line := range strings.Split(svnMergeinfo, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		path := line[:colon]
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		ranges, err := ParseRanges(line[colon+1:])
		if err != nil {
			return err
		}
		prev := m.paths[path]
		combined := Combine(prev, ranges)
		if !combined.Equal(prev) {
			m.paths[path] = combined
			changed = true
		}
	}
	if changed {
		m.normalized = false
	}
	return nil
}

// Get returns the ranges recorded for path (normalized to the
// trailing-slash-free, leading-slash form mergeinfo uses).
func (m *Info) Get(path string) RangeSet {
	return m.paths[normPath(path)]
}

// Paths returns every source path with recorded ranges, sorted so
// parent directories sort before their children (Normalize relies on
// this order).
func (m *Info) Paths() []string {
	out := make([]string, 0, len(m.paths))
	for p := range m.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Normalize clears ranges on a child path that are already covered by an
// ancestor's ranges: e.g. "/dir:100-200" makes
// "/dir/file:100-200" redundant.
func (m *Info) Normalize() {
	if m.normalized {
		return
	}
	paths := m.Paths()
	out := map[string]RangeSet{}
	for _, path := range paths {
		ranges := m.paths[path]
		parent := path
		for parent != "" {
			idx := strings.LastIndexByte(parent, '/')
			if idx <= 0 {
				parent = "/"
			} else {
				parent = parent[:idx]
			}
			if prevRanges, ok := out[parent]; ok {
				ranges = Subtract(ranges, prevRanges)
			}
			if parent == "/" {
				break
			}
		}
		if len(ranges) > 0 {
			out[path] = ranges
		}
	}
	m.paths = out
	m.normalized = true
}

// Diff returns the ranges newly present in m relative to prev: the
// mergeinfo delta the History Builder feeds to classification. Each
// source path's new ranges have whatever prev already recorded (walking
// up through prev's ancestor paths, matching svn's own inheritance)
// subtracted out.
func (m *Info) Diff(prev *Info) *Info {
	out := &Info{paths: map[string]RangeSet{}, normalized: m.normalized}
	for path, ranges := range m.paths {
		remaining := append(RangeSet{}, ranges...)
		parent := path
		for {
			if prevRanges, ok := prev.paths[parent]; ok {
				if prevRanges.Equal(remaining) {
					remaining = nil
					break
				}
				remaining = Subtract(remaining, prevRanges)
			}
			if parent == "/" || parent == "" {
				break
			}
			idx := strings.LastIndexByte(parent, '/')
			if idx <= 0 {
				parent = "/"
			} else {
				parent = parent[:idx]
			}
		}
		if len(remaining) > 0 {
			out.paths[path] = remaining
		}
	}
	return out
}

// IsEmpty reports whether the Info carries no recorded ranges at all.
func (m *Info) IsEmpty() bool { return len(m.paths) == 0 }

func normPath(path string) string {
	path = strings.TrimSuffix(path, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// Package mergeinfo implements the Merge Reconstructor: parsing
// svn:mergeinfo deltas between revisions, classifying each newly merged
// entry (branch_merge/file_merge/dir_copy/file_copy), checking coverage,
// and detecting fast-forwards.
package mergeinfo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Range is an inclusive revision range, as SVN writes "rev1-rev2" (or a
// bare "rev" for a single-revision range) in svn:mergeinfo.
type Range struct {
	Start, End int
}

// RangeSet is a sorted, non-overlapping list of Ranges for one source
// path.
type RangeSet []Range

// ParseRanges parses the comma-separated "rev1-rev2,rev3,..." tail of one
// svn:mergeinfo line.
func ParseRanges(s string) (RangeSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out RangeSet
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		// Mergeinfo ranges may carry a trailing "*" marking a
		// non-inheritable merge; the range bounds themselves are
		// unaffected, so it is stripped and otherwise ignored here.
		part = strings.TrimSuffix(part, "*")
		if dash := strings.IndexByte(part, '-'); dash >= 0 {
			lo, err := strconv.Atoi(part[:dash])
			if err != nil {
				return nil, fmt.Errorf("mergeinfo: bad range %q: %w", part, err)
			}
			hi, err := strconv.Atoi(part[dash+1:])
			if err != nil {
				return nil, fmt.Errorf("mergeinfo: bad range %q: %w", part, err)
			}
			out = append(out, Range{Start: lo, End: hi})
			continue
		}
		rev, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("mergeinfo: bad revision %q: %w", part, err)
		}
		out = append(out, Range{Start: rev, End: rev})
	}
	return Combine(out, nil), nil
}

// String renders a RangeSet back into SVN's textual form.
func (rs RangeSet) String() string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		if r.Start == r.End {
			parts[i] = strconv.Itoa(r.Start)
		} else {
			parts[i] = fmt.Sprintf("%d-%d", r.Start, r.End)
		}
	}
	return strings.Join(parts, ",")
}

// Combine merges two RangeSets into one sorted, overlap-coalesced set.
func Combine(a, b RangeSet) RangeSet {
	all := append(append(RangeSet{}, a...), b...)
	if len(all) == 0 {
		return nil
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Start < all[j].Start })
	out := RangeSet{all[0]}
	for _, r := range all[1:] {
		last := &out[len(out)-1]
		if r.Start <= last.End+1 {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// Subtract removes every revision covered by b from a, used both by
// Normalize (a child path's ranges minus
// whatever its parent already covers) and by coverage checking.
func Subtract(a, b RangeSet) RangeSet {
	if len(b) == 0 {
		return append(RangeSet{}, a...)
	}
	var out RangeSet
	for _, r := range a {
		cur := []Range{r}
		for _, sub := range b {
			var next []Range
			for _, c := range cur {
				next = append(next, subtractOne(c, sub)...)
			}
			cur = next
		}
		out = append(out, cur...)
	}
	return Combine(out, nil)
}

func subtractOne(r, sub Range) []Range {
	if sub.End < r.Start || sub.Start > r.End {
		return []Range{r}
	}
	var out []Range
	if sub.Start > r.Start {
		out = append(out, Range{Start: r.Start, End: sub.Start - 1})
	}
	if sub.End < r.End {
		out = append(out, Range{Start: sub.End + 1, End: r.End})
	}
	return out
}

// Covers reports whether every revision in need is present in rs --
// what the merge coverage check asks.
func Covers(rs RangeSet, need RangeSet) bool {
	return len(Subtract(need, rs)) == 0
}

// Contains reports whether rev falls within rs.
func (rs RangeSet) Contains(rev int) bool {
	for _, r := range rs {
		if rev >= r.Start && rev <= r.End {
			return true
		}
	}
	return false
}

// Equal reports whether two already-Combine'd RangeSets are identical.
func (rs RangeSet) Equal(other RangeSet) bool {
	if len(rs) != len(other) {
		return false
	}
	for i := range rs {
		if rs[i] != other[i] {
			return false
		}
	}
	return true
}

package dump

import (
	"fmt"
	"io"
)

// Revision is one whole revision: its properties (log message, author,
// date, and any custom revprops) plus the ordered list of node-records
// that change paths within it.
type Revision struct {
	Number     int
	Properties Properties
	Nodes      []*Node
}

// Author returns svn:author, if set (some revision 0s and some migrated
// repositories omit it).
func (r *Revision) Author() (string, bool) {
	return r.Properties.String("svn:author")
}

// LogMessage returns svn:log, if set.
func (r *Revision) LogMessage() (string, bool) {
	return r.Properties.String("svn:log")
}

// Date returns the raw svn:date property text (ISO-8601 with nanosecond
// precision and a "Z" suffix); parsing is left to the History Builder.
func (r *Revision) Date() (string, bool) {
	return r.Properties.String("svn:date")
}

// parseRevision reads one "Revision-number:" block through to (but not
// including) the next Revision-number header or end of stream. Returns
// (nil, io.EOF) when the stream is exhausted.
func parseRevision(r *reader) (*Revision, error) {
	if r.atEOF() {
		return nil, io.EOF
	}

	numStr, ok := r.lineAfter(revisionNumberHeader + ": ")
	if !ok {
		return nil, fmt.Errorf("%w: expected %s; got %q", ErrMalformedHeader, revisionNumberHeader, r.peek(64))
	}
	rev := &Revision{}
	if _, err := fmt.Sscanf(numStr, "%d", &rev.Number); err != nil {
		return nil, fmt.Errorf("%w: %s: invalid number %q", ErrMalformedHeader, revisionNumberHeader, numStr)
	}

	propLen := 0
	if r.hasPrefix(propContentLenHeader) {
		l, err := r.intAfter(propContentLenHeader)
		if err != nil {
			return nil, fmt.Errorf("r%d: %w", rev.Number, err)
		}
		propLen = l
	}

	if r.hasPrefix(contentLenHeader) {
		if _, err := r.intAfter(contentLenHeader); err != nil {
			return nil, fmt.Errorf("r%d: %w", rev.Number, err)
		}
	}

	if !r.newlineConsumed() {
		return nil, fmt.Errorf("%w: r%d: missing blank line after revision headers", ErrMalformedHeader, rev.Number)
	}

	props, _, err := parseProperties(r, propLen)
	if err != nil {
		return nil, fmt.Errorf("r%d: %w", rev.Number, err)
	}
	rev.Properties = props

	for {
		// Records are separated by blank lines; how many varies between
		// svnadmin versions, so eat them all.
		for r.newlineConsumed() {
		}
		if r.atEOF() || r.hasPrefix(revisionNumberHeader) {
			break
		}
		node, err := parseNode(r)
		if err != nil {
			return nil, fmt.Errorf("r%d: %w", rev.Number, err)
		}
		if node == nil {
			return nil, fmt.Errorf("%w: r%d: unexpected content %q", ErrMalformedHeader, rev.Number, r.peek(48))
		}
		rev.Nodes = append(rev.Nodes, node)
	}

	return rev, nil
}

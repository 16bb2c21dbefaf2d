package history

import (
	"fmt"
	"strings"

	"github.com/kfsone/svn2git/lib/config"
)

// buildMessage assembles a commit message from the original SVN log: the
// project's <EditMsg> chain runs first, then any skipped revisions'
// messages are prepended, then a leading-blank message gets an
// auto-generated changes summary, then decoration taglines.
func (bld *Builder) buildMessage(b *Branch, rev int, svnLog string, changes []changeLine, cherryPicks []string) string {
	msg := bld.project.EditMessage(b.Path, svnLog)

	if len(b.pendingSkip) > 0 {
		parts := append(append([]string{}, b.pendingSkip...), msg)
		msg = strings.Join(parts, "\n\n")
		b.pendingSkip = nil
	}

	// A message starting with two newlines is the author deliberately
	// leaving the subject line blank; synthesize one from the changes.
	if strings.HasPrefix(msg, "\n\n") {
		msg = summarizeChanges(changes) + msg
	}

	for _, pick := range cherryPicks {
		msg = appendParagraph(msg, "Cherry-picked-from: "+pick)
	}

	if bld.opts.DecorateRevisionID {
		msg = appendParagraph(msg, fmt.Sprintf("svn-revision: r%d", rev))
	}

	return msg
}

// summarizeChanges renders a short per-path action summary, the subject
// stand-in for deliberately blank messages.
func summarizeChanges(changes []changeLine) string {
	var buf strings.Builder
	buf.WriteString("Changes:")
	max := len(changes)
	if max > 10 {
		max = 10
	}
	for _, c := range changes[:max] {
		buf.WriteString(fmt.Sprintf("\n  %c %s", c.action, c.path))
	}
	if len(changes) > max {
		buf.WriteString(fmt.Sprintf("\n  ... and %d more", len(changes)-max))
	}
	return buf.String()
}

// appendParagraph appends line as its own trailing paragraph.
func appendParagraph(msg, line string) string {
	msg = strings.TrimRight(msg, "\n")
	if msg == "" {
		return line
	}
	return msg + "\n\n" + line
}

// changeLine is one entry of the per-commit change summary.
type changeLine struct {
	action byte // 'A', 'M', 'D'
	path   string
}

// identityFor resolves an SVN username to a commit identity through the
// authors map.
func (bld *Builder) identityFor(username string) config.Identity {
	if username == "" {
		username = "unknown"
	}
	return bld.authors.Resolve(username)
}

package history

import (
	"regexp"

	"github.com/kfsone/svn2git/lib/objpipe"
)

// svnKeyword matches an expanded SVN keyword anchor, "$Keyword: ... $",
// for the keywords subversion substitutes when svn:keywords is set on a
// file.
var svnKeyword = regexp.MustCompile(
	`\$(Id|Header|Author|LastChangedBy|Date|LastChangedDate|Rev|Revision|LastChangedRevision|URL|HeadURL):[^$\n]*\$`)

// NewKeywordTransformer returns the --replace-svn-keywords content
// transformer: expanded keyword anchors are collapsed back to their bare
// "$Keyword$" form. Git performs no keyword substitution, so leaving the
// expanded text in place would freeze a stale revision number into every
// file; collapsing is the only rewrite that is stable no matter which
// revision a blob is first hashed at, which the blob memo and the
// cross-run determinism guarantee both rely on.
func NewKeywordTransformer() objpipe.Transformer {
	return objpipe.TransformerFunc(func(path string, content []byte) ([]byte, error) {
		if !containsDollar(content) {
			return content, nil
		}
		return svnKeyword.ReplaceAllFunc(content, func(m []byte) []byte {
			end := 1
			for end < len(m) && m[end] != ':' {
				end++
			}
			return append(append([]byte{}, m[:end]...), '$')
		}), nil
	})
}

func containsDollar(content []byte) bool {
	for _, c := range content {
		if c == '$' {
			return true
		}
	}
	return false
}

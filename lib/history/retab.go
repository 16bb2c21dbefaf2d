package history

import (
	"bytes"
	"strings"

	"github.com/kfsone/svn2git/lib/objpipe"
)

// cSourceSuffixes limits retabbing to the C-family sources the
// reformatter historically targeted.
var cSourceSuffixes = []string{".c", ".h", ".cc", ".cpp", ".hpp", ".cxx", ".inl"}

// NewRetabTransformer returns the retab stage of the source reformatter:
// leading tabs in C-family files become width spaces. The full indent
// reformatter is pluggable through the same Transformer seam; retab is
// the only pass built in, and --retab-only / --no-indent-reformat select
// between it and nothing.
func NewRetabTransformer(width int) objpipe.Transformer {
	if width <= 0 {
		width = 4
	}
	spaces := strings.Repeat(" ", width)
	return objpipe.TransformerFunc(func(path string, content []byte) ([]byte, error) {
		if !isCSource(path) || !bytes.Contains(content, []byte{'\t'}) {
			return content, nil
		}
		lines := bytes.Split(content, []byte{'\n'})
		for i, line := range lines {
			n := 0
			for n < len(line) && line[n] == '\t' {
				n++
			}
			if n > 0 {
				lines[i] = append([]byte(strings.Repeat(spaces, n)), line[n:]...)
			}
		}
		return bytes.Join(lines, []byte{'\n'}), nil
	})
}

func isCSource(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range cSourceSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

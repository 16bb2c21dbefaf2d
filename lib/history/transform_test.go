package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordTransformerCollapsesExpandedAnchors(t *testing.T) {
	tr := NewKeywordTransformer()
	in := []byte("// $Id: f.c 123 2020-01-02 alice $\nint x; // $Revision: 123 $\n")
	out, err := tr.Transform("f.c", in)
	require.NoError(t, err)
	assert.Equal(t, "// $Id$\nint x; // $Revision$\n", string(out))
}

func TestKeywordTransformerLeavesBareAnchors(t *testing.T) {
	tr := NewKeywordTransformer()
	in := []byte("$Id$ and $100 dollars\n")
	out, err := tr.Transform("f.c", in)
	require.NoError(t, err)
	assert.Equal(t, string(in), string(out))
}

func TestRetabTransformerConvertsLeadingTabs(t *testing.T) {
	tr := NewRetabTransformer(4)
	in := []byte("int main() {\n\treturn 0;\n\t\t// deep\n}\n")
	out, err := tr.Transform("main.c", in)
	require.NoError(t, err)
	assert.Equal(t, "int main() {\n    return 0;\n        // deep\n}\n", string(out))
}

func TestRetabTransformerSkipsNonCFiles(t *testing.T) {
	tr := NewRetabTransformer(4)
	in := []byte("\tMakefile recipes need tabs\n")
	out, err := tr.Transform("Makefile", in)
	require.NoError(t, err)
	assert.Equal(t, string(in), string(out))
}

func TestRetabTransformerPreservesInteriorTabs(t *testing.T) {
	tr := NewRetabTransformer(4)
	in := []byte("int\tx;\n")
	out, err := tr.Transform("f.c", in)
	require.NoError(t, err)
	assert.Equal(t, "int\tx;\n", string(out))
}

func TestConvertSvnIgnoreAnchorsEntries(t *testing.T) {
	out := convertSvnIgnore("*.o\nbuild\n\n/already\n")
	assert.Equal(t, "/*.o\n/build\n/already\n", string(out))
}

func TestInsertRefSegment(t *testing.T) {
	assert.Equal(t, "refs/heads/import/main", insertRefSegment("refs/heads/main", "import"))
	assert.Equal(t, "refs/tags/import/v1", insertRefSegment("refs/tags/v1", "import"))
}

func TestBuildMessageSummaryForBlankSubject(t *testing.T) {
	f := newFixture(t, nil, Options{})
	b := &Branch{Refname: "refs/heads/main", Path: "trunk"}
	msg := f.bld.buildMessage(b, 5, "\n\ndetails below", []changeLine{{action: 'M', path: "a.txt"}}, nil)
	assert.Contains(t, msg, "Changes:")
	assert.Contains(t, msg, "M a.txt")
	assert.Contains(t, msg, "details below")
}

package dump

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDump lays a hand-assembled dump stream into a temp file.
func writeDump(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// props renders a PROPS-END block for the given ordered key/value pairs.
func props(pairs ...string) string {
	out := ""
	for i := 0; i+1 < len(pairs); i += 2 {
		k, v := pairs[i], pairs[i+1]
		out += "K " + itoa(len(k)) + "\n" + k + "\n"
		out += "V " + itoa(len(v)) + "\n" + v + "\n"
	}
	return out + "PROPS-END\n"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func revBlock(n int, propBlock string) string {
	return "Revision-number: " + itoa(n) + "\n" +
		"Prop-content-length: " + itoa(len(propBlock)) + "\n" +
		"Content-length: " + itoa(len(propBlock)) + "\n\n" +
		propBlock + "\n"
}

const dumpHeader = "SVN-fs-dump-format-version: 2\n\nUUID: 00000000-0000-0000-0000-000000000000\n\n"

func simpleDump() string {
	revProps := props("svn:author", "alice", "svn:log", "first")
	content := "hello\n"
	nodeProps := props()
	body := dumpHeader
	body += revBlock(1, revProps)
	body += "Node-path: trunk\nNode-kind: dir\nNode-action: add\n" +
		"Prop-content-length: " + itoa(len(nodeProps)) + "\n" +
		"Content-length: " + itoa(len(nodeProps)) + "\n\n" + nodeProps + "\n"
	body += "Node-path: trunk/a.txt\nNode-kind: file\nNode-action: add\n" +
		"Text-content-length: " + itoa(len(content)) + "\n" +
		"Content-length: " + itoa(len(content)) + "\n\n" + content + "\n"
	return body
}

func TestDecodeSimpleDump(t *testing.T) {
	path := writeDump(t, "simple.dump", simpleDump())
	dec, err := NewDecoder([]string{path}, false)
	require.NoError(t, err)
	defer dec.Close()

	rev, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, rev.Number)

	author, ok := rev.Author()
	require.True(t, ok)
	assert.Equal(t, "alice", author)

	require.Len(t, rev.Nodes, 2)
	assert.Equal(t, "trunk", rev.Nodes[0].Path)
	assert.Equal(t, NodeKindDir, rev.Nodes[0].Kind)
	assert.Equal(t, NodeActionAdd, rev.Nodes[0].Action)

	file := rev.Nodes[1]
	assert.Equal(t, NodeKindFile, file.Kind)
	assert.Equal(t, "hello\n", string(file.Text.Bytes))

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecodeRejectsNonDump(t *testing.T) {
	path := writeDump(t, "bogus.dump", "this is not a dump\n")
	_, err := NewDecoder([]string{path}, false)
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestDecodeRejectsCRLFTranslation(t *testing.T) {
	path := writeDump(t, "crlf.dump", "SVN-fs-dump-format-version: 2\r\n\r\n")
	_, err := NewDecoder([]string{path}, false)
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestRevisionRegressionAcrossFiles(t *testing.T) {
	first := writeDump(t, "one.dump", dumpHeader+revBlock(5, props("svn:log", "five")))
	second := writeDump(t, "two.dump", dumpHeader+revBlock(3, props("svn:log", "three")))

	dec, err := NewDecoder([]string{first, second}, false)
	require.NoError(t, err)
	defer dec.Close()

	_, err = dec.Next()
	require.NoError(t, err)
	_, err = dec.Next()
	assert.ErrorIs(t, err, ErrRevisionRegression)
}

func TestDuplicateRevisionFails(t *testing.T) {
	first := writeDump(t, "one.dump", dumpHeader+revBlock(5, props("svn:log", "five")))
	second := writeDump(t, "two.dump", dumpHeader+revBlock(5, props("svn:log", "again")))

	dec, err := NewDecoder([]string{first, second}, false)
	require.NoError(t, err)
	defer dec.Close()

	_, err = dec.Next()
	require.NoError(t, err)
	_, err = dec.Next()
	assert.ErrorIs(t, err, ErrDuplicateRevision)
}

func TestVerifyDataHashCatchesCorruption(t *testing.T) {
	content := "hello\n"
	// md5 of different content, deliberately wrong
	body := dumpHeader + revBlock(1, props("svn:log", "first"))
	body += "Node-path: a.txt\nNode-kind: file\nNode-action: add\n" +
		"Text-content-md5: 00000000000000000000000000000000\n" +
		"Text-content-length: " + itoa(len(content)) + "\n" +
		"Content-length: " + itoa(len(content)) + "\n\n" + content + "\n"
	path := writeDump(t, "corrupt.dump", body)

	dec, err := NewDecoder([]string{path}, true)
	require.NoError(t, err)
	defer dec.Close()

	_, err = dec.Next()
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestPropertyDeltaDeletions(t *testing.T) {
	block := "D 7\nsvn:eol\nPROPS-END\n"
	r := newReader([]byte(block))
	table, deletions, err := parseProperties(r, len(block))
	require.NoError(t, err)
	assert.Empty(t, table)
	assert.Equal(t, []string{"svn:eol"}, deletions)
}

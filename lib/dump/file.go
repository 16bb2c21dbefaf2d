package dump

import (
	"bytes"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// File is a single mmap'd dump stream opened from disk. Revisions are
// read lazily from the mapping; nothing is copied into the Go heap beyond
// what a caller explicitly retains (property values, node paths).
type File struct {
	Path   string
	Header *FileHeader

	region mmap.MMap
	r      *reader
}

// Open mmaps path and validates its file-header. The returned File must be
// closed when the caller is done iterating its revisions.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	region, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	if err := checkValidSource(path, region); err != nil {
		region.Unmap()
		return nil, err
	}

	r := newReader(region)
	header, err := parseFileHeader(r)
	if err != nil {
		region.Unmap()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &File{Path: path, Header: header, region: region, r: r}, nil
}

// checkValidSource rejects files that aren't SVN dumps, and dumps that
// have been mangled by a CRLF line-ending translation (a common failure
// mode when a dump is transferred through a Windows tool in text mode):
// every real line in the format is LF-terminated, so a CRLF this early
// means every subsequent length-prefixed block will be misaligned.
func checkValidSource(path string, region []byte) error {
	if !bytes.HasPrefix(region, []byte(versionHeader)) {
		return fmt.Errorf("%w: %s: not a dump stream", ErrMalformedHeader, path)
	}
	if nl := bytes.IndexByte(region, '\n'); nl > 0 && region[nl-1] == '\r' {
		return fmt.Errorf("%w: %s: looks CRLF-translated", ErrMalformedHeader, path)
	}
	return nil
}

// Next reads the next revision from the stream, returning io.EOF once
// exhausted.
func (f *File) Next() (*Revision, error) {
	return parseRevision(f.r)
}

// Close unmaps the underlying file region.
func (f *File) Close() error {
	return f.region.Unmap()
}

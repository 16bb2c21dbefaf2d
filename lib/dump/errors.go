package dump

import "errors"

var (
	// ErrMalformedHeader covers any "Key: Value" line that doesn't parse,
	// or a required header that is absent where the grammar demands one.
	ErrMalformedHeader = errors.New("malformed dump header")
	// ErrUnexpectedEOF is returned when a sized block or line runs past the
	// end of the mapped source.
	ErrUnexpectedEOF = errors.New("unexpected end of dump stream")
	// ErrRevisionRegression fires when a revision number is lower than
	// the last one seen, including across stream boundaries (an equal
	// number is ErrDuplicateRevision).
	ErrRevisionRegression = errors.New("revision number regressed")
	// ErrHashMismatch fires under --verify-data-hash when a node's
	// Text-content-md5/sha1 disagrees with the materialized content.
	ErrHashMismatch = errors.New("content hash mismatch")
	// ErrMissingField is returned by Headers lookups for an absent key.
	ErrMissingField = errors.New("missing required field")
	// ErrDuplicateRevision fires when two streams (or one stream twice)
	// present the same revision number.
	ErrDuplicateRevision = errors.New("duplicate revision number")
)

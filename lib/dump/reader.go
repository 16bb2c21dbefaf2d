package dump

import (
	"bytes"
	"fmt"
	"strconv"
)

// reader is a cursor over a byte slice, the low-level primitive the decoder
// builds every higher-level parse (headers, properties, node content) on top
// of. It never copies the backing slice; callers that need to retain bytes
// past the next read must copy them out first.
type reader struct {
	source []byte // backing slice for the whole stream (e.g. an mmap'd file)
	buffer []byte // remaining, unconsumed portion of source
}

func newReader(source []byte) *reader {
	return &reader{source: source, buffer: source}
}

// tell returns the offset of the next unread byte relative to the start of
// the stream.
func (r *reader) tell() int {
	return len(r.source) - len(r.buffer)
}

func (r *reader) atEOF() bool {
	return len(r.buffer) == 0
}

func (r *reader) length() int {
	return len(r.buffer)
}

// peek returns up to length bytes without consuming them, for error messages.
func (r *reader) peek(length int) []byte {
	if length > len(r.buffer) {
		length = len(r.buffer)
	}
	return r.buffer[:length]
}

// hasPrefix reports whether the remaining buffer begins with prefix, without
// consuming anything.
func (r *reader) hasPrefix(prefix string) bool {
	return bytes.HasPrefix(r.buffer, []byte(prefix))
}

// newlineConsumed attempts to consume a single newline at the front of the
// buffer, returning true if one was present.
func (r *reader) newlineConsumed() bool {
	if len(r.buffer) > 0 && r.buffer[0] == '\n' {
		r.buffer = r.buffer[1:]
		return true
	}
	return false
}

// expectAndConsume consumes the literal prefix if present, reporting whether
// it matched.
func (r *reader) expectAndConsume(prefix string) bool {
	if !r.hasPrefix(prefix) {
		return false
	}
	r.buffer = r.buffer[len(prefix):]
	return true
}

// peekLine returns the next line, including its trailing newline, without
// consuming it. Returns ErrUnexpectedEOF if no newline is found before the
// buffer ends.
func (r *reader) peekLine() ([]byte, error) {
	idx := bytes.IndexByte(r.buffer, '\n')
	if idx == -1 {
		return nil, ErrUnexpectedEOF
	}
	return r.buffer[:idx+1], nil
}

// lineAfter consumes prefix followed by the remainder of the line (excluding
// the newline) if the buffer begins with prefix; otherwise the buffer is
// left untouched.
func (r *reader) lineAfter(prefix string) (line string, ok bool) {
	if !bytes.HasPrefix(r.buffer, []byte(prefix)) {
		return "", false
	}
	rest := r.buffer[len(prefix):]
	nl := bytes.IndexByte(rest, '\n')
	if nl == -1 {
		line, r.buffer = string(rest), rest[len(rest):]
	} else {
		line, r.buffer = string(rest[:nl]), rest[nl+1:]
	}
	return line, true
}

// intAfter consumes "prefix: <digits>\n" and returns the parsed integer.
func (r *reader) intAfter(prefix string) (int, error) {
	str, ok := r.lineAfter(prefix + ": ")
	if !ok {
		return 0, fmt.Errorf("%w: expected %q; got %q", ErrMalformedHeader, prefix, r.peek(48))
	}
	n, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrMalformedHeader, prefix, err)
	}
	return n, nil
}

// read consumes and returns exactly length bytes.
func (r *reader) read(length int) ([]byte, error) {
	if length > len(r.buffer) {
		return nil, ErrUnexpectedEOF
	}
	data := r.buffer[:length]
	r.buffer = r.buffer[length:]
	return data, nil
}

// discard consumes length bytes without returning them.
func (r *reader) discard(length int) error {
	if length > len(r.buffer) {
		r.buffer = r.buffer[len(r.buffer):]
		return ErrUnexpectedEOF
	}
	r.buffer = r.buffer[length:]
	return nil
}

// readSized reads a pascal-style "K <len>\n<len bytes>\n" (or "V", "D")
// block as used throughout the property-data grammar.
func (r *reader) readSized(prefix byte) ([]byte, error) {
	sizeStr, ok := r.lineAfter(string(prefix) + " ")
	if !ok {
		return nil, fmt.Errorf("%w: expected %q prefix; got %q", ErrMalformedHeader, string(prefix), r.peek(48))
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %q size: %w", ErrMalformedHeader, string(prefix), err)
	}
	value, err := r.read(size)
	if err != nil {
		return nil, err
	}
	if !r.newlineConsumed() {
		return nil, fmt.Errorf("%w: after sized %q data", ErrMalformedHeader, string(prefix))
	}
	return value, nil
}

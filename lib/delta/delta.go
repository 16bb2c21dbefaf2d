// Package delta applies svndiff0-encoded content against a base text,
// producing the new, fully materialized version. The dump decoder
// hands back raw delta bytes verbatim; callers that need the final bytes
// of a changed file run them through Apply with the prior version of that
// path's content as the base.
package delta

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
)

var (
	// ErrBadHeader fires when the four-byte "SVN"<version> preamble is
	// missing or names an unsupported version.
	ErrBadHeader = errors.New("svndiff: bad header")
	// ErrTruncated fires when a window or instruction stream ends before
	// its declared length is satisfied.
	ErrTruncated = errors.New("svndiff: truncated delta")
	// ErrSourceOutOfRange fires when a window's source view, or a
	// COPY_SOURCE instruction within it, reaches outside the base text.
	ErrSourceOutOfRange = errors.New("svndiff: source view out of range")
	// ErrTargetOutOfRange fires when a COPY_TARGET instruction reads
	// before the start of the target view being built.
	ErrTargetOutOfRange = errors.New("svndiff: target view out of range")
	// ErrLengthMismatch fires when a decompressed window, or the
	// reconstructed target view, doesn't match its declared length.
	ErrLengthMismatch = errors.New("svndiff: length mismatch")
	// ErrBadOpcode fires on an instruction byte whose top two bits name
	// an opcode other than COPY_SOURCE/COPY_TARGET/COPY_NEW.
	ErrBadOpcode = errors.New("svndiff: unrecognized instruction opcode")
)

const (
	opCopySource = 0x00
	opCopyTarget = 0x40
	opCopyNew    = 0x80
	opMask       = 0xC0
	lenMask      = 0x3F
)

// Apply decodes an svndiff0 document (delta) against base, returning the
// reconstructed target text. base is read, never mutated; callers that
// already hold it as a []byte for the node's predecessor can pass it
// directly.
func Apply(base, delta []byte) ([]byte, error) {
	if len(delta) < 4 || delta[0] != 'S' || delta[1] != 'V' || delta[2] != 'N' {
		return nil, ErrBadHeader
	}
	version := int(delta[3])
	if version > 2 {
		return nil, fmt.Errorf("%w: version %d", ErrBadHeader, version)
	}

	r := bytes.NewReader(delta[4:])
	var out []byte

	for {
		sourceOffset, err := getIntEOFOK(r)
		if err != nil {
			return nil, err
		}
		if sourceOffset < 0 {
			break // clean end of stream
		}
		sourceViewLen, err := getInt(r)
		if err != nil {
			return nil, err
		}
		targetViewLen, err := getInt(r)
		if err != nil {
			return nil, err
		}
		instrLen, err := getInt(r)
		if err != nil {
			return nil, err
		}
		dataLen, err := getInt(r)
		if err != nil {
			return nil, err
		}

		if sourceOffset+sourceViewLen > len(base) {
			return nil, ErrSourceOutOfRange
		}

		instructions, err := getSection(r, instrLen, version)
		if err != nil {
			return nil, fmt.Errorf("instructions: %w", err)
		}
		data, err := getSection(r, dataLen, version)
		if err != nil {
			return nil, fmt.Errorf("new data: %w", err)
		}

		target, err := applyWindow(base, sourceOffset, sourceViewLen, targetViewLen, instructions, data)
		if err != nil {
			return nil, err
		}
		out = append(out, target...)
	}

	return out, nil
}

func applyWindow(base []byte, sourceOffset, sourceViewLen, targetViewLen int, instructions, data []byte) ([]byte, error) {
	instrR := bytes.NewReader(instructions)
	dataR := bytes.NewReader(data)
	target := make([]byte, 0, targetViewLen)

	for {
		opByte, err := instrR.ReadByte()
		if err != nil {
			break
		}
		opcode := opByte & opMask
		copyLen := int(opByte & lenMask)
		if copyLen == 0 {
			copyLen, err = getInt(instrR)
			if err != nil {
				return nil, err
			}
		}

		switch opcode {
		case opCopySource:
			offset, err := getInt(instrR)
			if err != nil {
				return nil, err
			}
			if offset+copyLen > sourceViewLen {
				return nil, ErrSourceOutOfRange
			}
			offset += sourceOffset
			target = append(target, base[offset:offset+copyLen]...)

		case opCopyTarget:
			offset, err := getInt(instrR)
			if err != nil {
				return nil, err
			}
			if offset >= len(target) {
				return nil, ErrTargetOutOfRange
			}
			// Copied in a loop rather than one slice append: the source
			// range can overlap the bytes still being appended, which is
			// how svndiff0 encodes run-length repeats.
			for copyLen > 0 {
				toCopy := copyLen
				if offset+toCopy > len(target) {
					toCopy = len(target) - offset
				}
				target = append(target, target[offset:offset+toCopy]...)
				copyLen -= toCopy
				offset += toCopy
			}

		case opCopyNew:
			chunk := make([]byte, copyLen)
			if _, err := io.ReadFull(dataR, chunk); err != nil {
				return nil, fmt.Errorf("%w: new data", ErrTruncated)
			}
			target = append(target, chunk...)

		default:
			return nil, fmt.Errorf("%w: 0x%02X", ErrBadOpcode, opcode)
		}
	}

	if len(target) != targetViewLen {
		return nil, fmt.Errorf("%w: target view %d != declared %d", ErrLengthMismatch, len(target), targetViewLen)
	}
	return target, nil
}

// getSection reads a version-0 raw section, or (for version 1/2) an
// original-length-prefixed compressed section and inflates it.
func getSection(r *bytes.Reader, length, version int) ([]byte, error) {
	if version == 0 {
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return buf, nil
	}

	originalLen, err := getInt(r)
	if err != nil {
		return nil, err
	}
	if length == originalLen {
		// Stored uncompressed even though the window is versioned.
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return buf, nil
	}

	compressed := make([]byte, length)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}

	var out []byte
	if version == 1 {
		zr, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("svndiff: zlib: %w", err)
		}
		defer zr.Close()
		out, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("svndiff: zlib: %w", err)
		}
	} else {
		lr := lz4.NewReader(bytes.NewReader(compressed))
		var err error
		out, err = io.ReadAll(lr)
		if err != nil {
			return nil, fmt.Errorf("svndiff: lz4: %w", err)
		}
	}

	if len(out) != originalLen {
		return nil, fmt.Errorf("%w: decompressed %d != declared %d", ErrLengthMismatch, len(out), originalLen)
	}
	return out, nil
}

// getInt reads a 7-bit-per-byte big-endian varint (high bit = continue).
func getInt(r *bytes.Reader) (int, error) {
	var num uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		num = (num << 7) | uint64(b&0x7F)
		if b&0x80 == 0 {
			return int(num), nil
		}
	}
}

// getIntEOFOK is getInt, except a clean EOF before any byte is read
// returns (-1, nil) rather than an error: that is how a window loop is
// told there are no more windows.
func getIntEOFOK(r *bytes.Reader) (int, error) {
	b, err := r.ReadByte()
	if err == io.EOF {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	if b&0x80 == 0 {
		return int(b & 0x7F), nil
	}
	var num uint64 = uint64(b & 0x7F)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		num = (num << 7) | uint64(b&0x7F)
		if b&0x80 == 0 {
			return int(num), nil
		}
	}
}

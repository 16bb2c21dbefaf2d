package delta

import "testing"

// buildVersion0Window hand-assembles a single uncompressed svndiff0 window:
// copy the whole base text from the source view, then append newData
// verbatim from the new-data section.
func buildVersion0Window(base []byte, newData []byte) []byte {
	var instr []byte
	if len(base) > 0 {
		instr = append(instr, byte(len(base))|opCopySource, 0x00)
	}
	instr = append(instr, byte(len(newData))|opCopyNew)

	doc := []byte{'S', 'V', 'N', 0}
	doc = append(doc, 0x00)                         // source offset
	doc = append(doc, byte(len(base)))              // source view length
	doc = append(doc, byte(len(base)+len(newData))) // target view length
	doc = append(doc, byte(len(instr)))             // instructions length
	doc = append(doc, byte(len(newData)))           // new data length
	doc = append(doc, instr...)
	doc = append(doc, newData...)
	return doc
}

func TestApplyCopySourceThenNew(t *testing.T) {
	base := []byte("hello")
	delta := buildVersion0Window(base, []byte(" world"))

	got, err := Apply(base, delta)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q, want %q", got, "hello world")
	}
}

func TestApplyCopyTargetRunLength(t *testing.T) {
	base := []byte("ab")
	// instructions: copy source "ab" (2 bytes, offset 0), then copy-target
	// offset 0 length 6 -- repeats "ab" three times by reading past what
	// has been appended so far, the classic svndiff0 run-length trick.
	instr := []byte{
		2 | opCopySource, 0x00,
		6 | opCopyTarget, 0x00,
	}
	doc := []byte{'S', 'V', 'N', 0}
	doc = append(doc, 0x00, 0x02, 0x08, byte(len(instr)), 0x00)
	doc = append(doc, instr...)

	got, err := Apply(base, doc)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if string(got) != "abababab"[:8] {
		t.Fatalf("got %q", got)
	}
}

func TestApplyRejectsBadHeader(t *testing.T) {
	if _, err := Apply([]byte("x"), []byte("nope")); err == nil {
		t.Fatal("expected error for non-svndiff input")
	}
}

func TestApplyRejectsSourceOutOfRange(t *testing.T) {
	base := []byte("ab")
	instr := []byte{10 | opCopySource, 0x00}
	doc := []byte{'S', 'V', 'N', 0}
	doc = append(doc, 0x00, 0x02, 0x0A, byte(len(instr)), 0x00)
	doc = append(doc, instr...)

	if _, err := Apply(base, doc); err == nil {
		t.Fatal("expected ErrSourceOutOfRange")
	}
}

package pathtree

import (
	"sort"
	"testing"
)

func TestAddGetFile(t *testing.T) {
	tr := New()
	tr, err := tr.AddDir("trunk", nil)
	if err != nil {
		t.Fatalf("AddDir: %v", err)
	}
	tr, err = tr.AddFile("trunk/README", File{Content: []byte("hi")}, nil)
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	e, ok := tr.Get("trunk/README")
	if !ok || e.Kind != KindFile || string(e.File.Content.([]byte)) != "hi" {
		t.Fatalf("unexpected entry: %+v ok=%v", e, ok)
	}
}

func TestAddFileRejectsMissingParent(t *testing.T) {
	tr := New()
	if _, err := tr.AddFile("trunk/README", File{}, nil); err == nil {
		t.Fatal("expected error for missing parent directory")
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	tr := New()
	tr, _ = tr.AddDir("trunk", nil)
	tr, _ = tr.AddFile("trunk/a.txt", File{Content: []byte("a")}, nil)
	tr2, err := tr.Delete("trunk/a.txt")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := tr2.Get("trunk/a.txt"); ok {
		t.Fatal("expected entry to be gone")
	}
	// Original snapshot is untouched.
	if _, ok := tr.Get("trunk/a.txt"); !ok {
		t.Fatal("original snapshot should still have the file")
	}
}

func TestCopyFromSharesSubtree(t *testing.T) {
	tr := New()
	tr, _ = tr.AddDir("trunk", nil)
	tr, _ = tr.AddDir("trunk/pkg", nil)
	tr, _ = tr.AddFile("trunk/pkg/a.go", File{Content: []byte("package pkg")}, nil)
	baseline := tr

	tr, _ = tr.AddDir("branches", nil)
	tr, err := tr.CopyFrom("branches/feature", baseline, "trunk")
	if err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}

	e, ok := tr.Get("branches/feature/pkg/a.go")
	if !ok || string(e.File.Content.([]byte)) != "package pkg" {
		t.Fatalf("branched file missing or wrong: %+v ok=%v", e, ok)
	}

	// Mutating the branch must not affect the original.
	tr, err = tr.ChangeFile("branches/feature/pkg/a.go", File{Content: []byte("package pkg2")}, nil)
	if err != nil {
		t.Fatalf("ChangeFile: %v", err)
	}
	orig, _ := tr.Get("trunk/pkg/a.go")
	if string(orig.File.Content.([]byte)) != "package pkg" {
		t.Fatalf("trunk copy mutated: %q", orig.File.Content)
	}
}

func TestDiffFindsAddedChangedRemoved(t *testing.T) {
	base := New()
	base, _ = base.AddDir("trunk", nil)
	base, _ = base.AddFile("trunk/a.txt", File{Content: []byte("a")}, nil)
	base, _ = base.AddFile("trunk/b.txt", File{Content: []byte("b")}, nil)

	next, _ := base.ChangeFile("trunk/a.txt", File{Content: []byte("a2")}, nil)
	next, _ = next.Delete("trunk/b.txt")
	next, _ = next.AddFile("trunk/c.txt", File{Content: []byte("c")}, nil)

	touched, err := Diff(base, next)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	sort.Strings(touched)
	want := []string{"trunk/a.txt", "trunk/b.txt", "trunk/c.txt"}
	if len(touched) != len(want) {
		t.Fatalf("touched = %v, want %v", touched, want)
	}
	for i := range want {
		if touched[i] != want[i] {
			t.Fatalf("touched = %v, want %v", touched, want)
		}
	}
}

func TestWalkOrdersByCreation(t *testing.T) {
	tr := New()
	tr, _ = tr.AddDir("trunk", nil)
	tr, _ = tr.AddFile("trunk/z.txt", File{Content: []byte("z")}, nil)
	tr, _ = tr.AddFile("trunk/a.txt", File{Content: []byte("a")}, nil)

	var order []string
	tr.Walk(func(path string, f File) error {
		order = append(order, path)
		return nil
	})
	want := []string{"trunk/z.txt", "trunk/a.txt"}
	if len(order) != len(want) || order[0] != want[0] || order[1] != want[1] {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

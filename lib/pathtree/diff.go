package pathtree

// Diff returns every file path whose entry differs between from and to
// (added, removed, or changed content/properties/executable/symlink
// bit), which is the changed-path set the History Builder needs when it
// decides what to stage into a commit. Both trees must share an
// Arena.
func Diff(from, to Tree) ([]string, error) {
	if from.arena != to.arena {
		return nil, errDifferentFamilies
	}
	var touched []string
	seen := map[string]bool{}

	if err := from.Walk(func(path string, f File) error {
		seen[path] = true
		e, ok := to.Get(path)
		if !ok || e.Kind != KindFile || !sameFile(f, e.File) {
			touched = append(touched, path)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := to.Walk(func(path string, f File) error {
		if seen[path] {
			return nil
		}
		touched = append(touched, path)
		return nil
	}); err != nil {
		return nil, err
	}

	return touched, nil
}

func sameFile(a, b File) bool {
	if a.Executable != b.Executable || a.Symlink != b.Symlink {
		return false
	}
	ab, aok := a.Content.([]byte)
	bb, bok := b.Content.([]byte)
	if aok && bok {
		return string(ab) == string(bb)
	}
	return a.Content == b.Content
}

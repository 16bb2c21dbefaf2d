package history

import (
	"fmt"
	"io"

	"github.com/kfsone/svn2git/lib/delta"
	"github.com/kfsone/svn2git/lib/dump"
	"github.com/kfsone/svn2git/lib/pathtree"
)

// Replay drains a decoder into a bare path tree with no branch
// attribution: the repository's file state as of the last revision read
// (bounded by endRev when > 0). Used to rebuild an authoritative
// reference tree for --compare-to verification.
func Replay(dec *dump.Decoder, endRev int) (pathtree.Tree, int, error) {
	tree := pathtree.New()
	snapshots := map[int]pathtree.Tree{}
	last := 0

	snapshotAt := func(rev int) pathtree.Tree {
		for r := rev; r >= 0; r-- {
			if t, ok := snapshots[r]; ok {
				return t
			}
		}
		return pathtree.New()
	}

	for {
		rev, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return tree, last, err
		}
		if endRev > 0 && rev.Number > endRev {
			break
		}

		for _, node := range rev.Nodes {
			tree, err = replayNode(tree, snapshotAt, node)
			if err != nil {
				return tree, last, fmt.Errorf("r%d: %s: %w", rev.Number, node.Path, err)
			}
		}
		snapshots[rev.Number] = tree
		last = rev.Number
	}
	return tree, last, nil
}

func replayNode(tree pathtree.Tree, snapshotAt func(int) pathtree.Tree, node *dump.Node) (pathtree.Tree, error) {
	materialize := func() ([]byte, error) {
		return materializeAgainst(tree, snapshotAt, node)
	}

	switch node.Action {
	case dump.NodeActionDelete:
		return tree.Delete(node.Path)

	case dump.NodeActionReplace:
		next, err := tree.Delete(node.Path)
		if err != nil {
			return tree, err
		}
		tree = next
		fallthrough

	case dump.NodeActionAdd:
		if node.Kind == dump.NodeKindDir {
			if node.HasCopyFrom {
				return tree.CopyFrom(node.Path, snapshotAt(node.CopyFromRev), node.CopyFromPath)
			}
			return tree.AddDir(node.Path, node.Properties)
		}
		content, err := materialize()
		if err != nil {
			return tree, err
		}
		return tree.AddFile(node.Path, fileFor(content, node.Properties), node.Properties)

	case dump.NodeActionChange:
		entry, ok := tree.Get(node.Path)
		if !ok {
			return tree, pathtree.ErrNotFound
		}
		props := mergeProps(entry.Props, node)
		if entry.Kind == pathtree.KindDir {
			return tree.SetProperties(node.Path, props)
		}
		content, err := materialize()
		if err != nil {
			return tree, err
		}
		return tree.ChangeFile(node.Path, fileFor(content, props), props)
	}
	return tree, fmt.Errorf("unhandled node action %v", node.Action)
}

// materializeAgainst is the branch-free twin of Builder.materialize.
func materializeAgainst(tree pathtree.Tree, snapshotAt func(int) pathtree.Tree, node *dump.Node) ([]byte, error) {
	var base []byte
	if node.HasCopyFrom {
		if e, ok := snapshotAt(node.CopyFromRev).Get(node.CopyFromPath); ok && e.Kind == pathtree.KindFile {
			base, _ = e.File.Content.([]byte)
		}
	} else if e, ok := tree.Get(node.Path); ok && e.Kind == pathtree.KindFile {
		base, _ = e.File.Content.([]byte)
	}
	if !node.HasText {
		return base, nil
	}
	if node.Text.IsDelta {
		return delta.Apply(base, node.Text.Bytes)
	}
	return node.Text.Bytes, nil
}

// Package report implements the run summary and the verification
// helpers that sit outside the conversion pipeline proper: --compare-to
// tree verification against a reference dump, and --extract-file
// copy-out of materialized content.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ianbruene/go-difflib/difflib"
	shutil "github.com/termie/go-shutil"
	"gopkg.in/yaml.v3"

	"github.com/kfsone/svn2git/lib/pathtree"
)

// Summary is the end-of-run accounting, written as YAML so it can feed
// scripted post-checks.
type Summary struct {
	Revisions int            `yaml:"revisions"`
	Commits   int            `yaml:"commits"`
	Branches  []BranchLine   `yaml:"branches"`
	Refs      map[string]int `yaml:"refs,omitempty"`
	Warnings  int            `yaml:"warnings,omitempty"`
}

// BranchLine is one branch's row in the summary.
type BranchLine struct {
	Refname  string `yaml:"ref"`
	Path     string `yaml:"path"`
	FirstRev int    `yaml:"first-rev"`
	Commits  int    `yaml:"commits"`
	Deleted  bool   `yaml:"deleted,omitempty"`
}

// Write renders the summary to w-like path ("" or "-" means stdout).
func (s *Summary) Write(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Difference describes one divergence found by Compare.
type Difference struct {
	Path string
	Diff string // unified diff, or "only in reference"/"only in conversion" for presence-only differences
}

// Compare walks two snapshots of the same revision (ours and one built
// from an authoritative reference dump) and reports every divergence:
// paths present on one side only, or identical paths with differing
// content, rendered as a unified diff.
func Compare(ours, reference pathtree.Tree) ([]Difference, error) {
	ourFiles, err := collect(ours)
	if err != nil {
		return nil, err
	}
	refFiles, err := collect(reference)
	if err != nil {
		return nil, err
	}

	paths := map[string]bool{}
	for p := range ourFiles {
		paths[p] = true
	}
	for p := range refFiles {
		paths[p] = true
	}
	ordered := make([]string, 0, len(paths))
	for p := range paths {
		ordered = append(ordered, p)
	}
	sort.Strings(ordered)

	var out []Difference
	for _, p := range ordered {
		mine, haveMine := ourFiles[p]
		theirs, haveTheirs := refFiles[p]
		switch {
		case !haveMine:
			out = append(out, Difference{Path: p, Diff: "only in reference"})
		case !haveTheirs:
			out = append(out, Difference{Path: p, Diff: "only in conversion"})
		case mine != theirs:
			diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
				A:        difflib.SplitLines(theirs),
				B:        difflib.SplitLines(mine),
				FromFile: "reference/" + p,
				ToFile:   "conversion/" + p,
				Context:  3,
			})
			if err != nil {
				return nil, fmt.Errorf("report: diff %s: %w", p, err)
			}
			out = append(out, Difference{Path: p, Diff: diff})
		}
	}
	return out, nil
}

func collect(tree pathtree.Tree) (map[string]string, error) {
	out := map[string]string{}
	err := tree.Walk(func(path string, f pathtree.File) error {
		content, _ := f.Content.([]byte)
		out[path] = string(content)
		return nil
	})
	return out, err
}

// Extract materializes svnPath from a snapshot onto disk at destDir: a
// file is written directly, a directory is staged and then copied over
// recursively so partially written output never lands at the final
// destination.
func Extract(tree pathtree.Tree, svnPath, destDir string) error {
	svnPath = strings.Trim(svnPath, "/")
	entry, ok := tree.Get(svnPath)
	if !ok {
		return fmt.Errorf("report: extract: %s not present in snapshot", svnPath)
	}

	if entry.Kind == pathtree.KindFile {
		content, _ := entry.File.Content.([]byte)
		target := filepath.Join(destDir, filepath.Base(svnPath))
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return err
		}
		return os.WriteFile(target, content, fileMode(entry.File))
	}

	staging, err := os.MkdirTemp("", "svn2git-extract-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	err = tree.Walk(func(path string, f pathtree.File) error {
		if path != svnPath && !strings.HasPrefix(path, svnPath+"/") {
			return nil
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path, svnPath), "/")
		target := filepath.Join(staging, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		content, _ := f.Content.([]byte)
		return os.WriteFile(target, content, fileMode(f))
	})
	if err != nil {
		return err
	}

	target := filepath.Join(destDir, filepath.Base(svnPath))
	return shutil.CopyTree(staging, target, nil)
}

func fileMode(f pathtree.File) os.FileMode {
	if f.Executable {
		return 0755
	}
	return 0644
}

// Package gitsink emits objects into a real Git repository by spawning
// the git binary: hash-object, update-index, write-tree, commit-tree and
// update-ref, with one index file per branch so branches stage
// independently.
package gitsink

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/kfsone/svn2git/lib/log"
	"github.com/kfsone/svn2git/lib/objpipe"
)

// Sink drives a target repository through the git binary. It implements
// objpipe.Sink plus the ancestry query the merge reconstructor's
// fast-forward check needs.
type Sink struct {
	// GitDir is the target repository's .git directory (or the bare
	// repository root).
	GitDir string
	// indexDir holds one index file per branch.
	indexDir string
}

// New prepares a Sink against repoPath, initialising the repository if
// it does not exist yet.
func New(repoPath string) (*Sink, error) {
	gitDir := repoPath
	if !strings.HasSuffix(repoPath, ".git") {
		gitDir = filepath.Join(repoPath, ".git")
	}
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		if out, err := exec.Command("git", "init", "--bare", gitDir).CombinedOutput(); err != nil {
			return nil, fmt.Errorf("gitsink: init %s: %v: %s", gitDir, err, out)
		}
	}
	indexDir, err := os.MkdirTemp("", "svn2git-index-")
	if err != nil {
		return nil, fmt.Errorf("gitsink: %w", err)
	}
	return &Sink{GitDir: gitDir, indexDir: indexDir}, nil
}

// Close removes the per-branch index scratch space.
func (s *Sink) Close() error {
	return os.RemoveAll(s.indexDir)
}

// indexFile maps a refname to its private index file.
func (s *Sink) indexFile(branch string) string {
	safe := strings.NewReplacer("/", "_", ":", "_").Replace(branch)
	return filepath.Join(s.indexDir, safe+".idx")
}

// run executes one git command with extra environment, returning stdout.
func (s *Sink) run(stdin []byte, extraEnv []string, args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Env = append(os.Environ(), "GIT_DIR="+s.GitDir)
	cmd.Env = append(cmd.Env, extraEnv...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug("git %s", shellquote.Join(args...))
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("gitsink: git %s: %v: %s",
			shellquote.Join(args...), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// HashObject writes content as a blob and returns its sha.
func (s *Sink) HashObject(content []byte) (string, error) {
	out, err := s.run(content, nil, "hash-object", "-w", "--stdin")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Stage records one index entry for branch.
func (s *Sink) Stage(branch, path string, mode objpipe.FileMode, sha string, remove bool) error {
	env := []string{"GIT_INDEX_FILE=" + s.indexFile(branch)}
	if remove {
		_, err := s.run(nil, env, "update-index", "--force-remove", "--", path)
		return err
	}
	_, err := s.run(nil, env, "update-index", "--add",
		"--cacheinfo", fmt.Sprintf("%s,%s,%s", mode, sha, path))
	return err
}

// WriteTree flushes branch's index into a tree object.
func (s *Sink) WriteTree(branch string) (string, error) {
	env := []string{"GIT_INDEX_FILE=" + s.indexFile(branch)}
	out, err := s.run(nil, env, "write-tree")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Commit creates a commit object for tree with the given parents.
func (s *Sink) Commit(tree string, parents []string, author, committer objpipe.Identity,
	authorTime, committerTime time.Time, message string) (string, error) {
	args := []string{"commit-tree", tree}
	for _, p := range parents {
		args = append(args, "-p", p)
	}
	env := []string{
		"GIT_AUTHOR_NAME=" + author.Name,
		"GIT_AUTHOR_EMAIL=" + author.Email,
		"GIT_AUTHOR_DATE=" + authorTime.Format(time.RFC3339),
		"GIT_COMMITTER_NAME=" + committer.Name,
		"GIT_COMMITTER_EMAIL=" + committer.Email,
		"GIT_COMMITTER_DATE=" + committerTime.Format(time.RFC3339),
	}
	out, err := s.run([]byte(message), env, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// UpdateRef points refname at sha, asserting prevSha when non-empty.
func (s *Sink) UpdateRef(refname, sha, prevSha string) error {
	args := []string{"update-ref", refname, sha}
	if prevSha != "" {
		args = append(args, prevSha)
	}
	_, err := s.run(nil, nil, args...)
	return err
}

// DeleteRef removes refname, for --prune-refs.
func (s *Sink) DeleteRef(refname string) error {
	_, err := s.run(nil, nil, "update-ref", "-d", refname)
	return err
}

// ListRefs returns every refname currently in the target repository.
func (s *Sink) ListRefs() ([]string, error) {
	out, err := s.run(nil, nil, "for-each-ref", "--format=%(refname)")
	if err != nil {
		return nil, err
	}
	var refs []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			refs = append(refs, line)
		}
	}
	return refs, nil
}

// IsAncestor reports whether commit a is an ancestor of commit b.
func (s *Sink) IsAncestor(a, b string) (bool, error) {
	cmd := exec.Command("git", "merge-base", "--is-ancestor", a, b)
	cmd.Env = append(os.Environ(), "GIT_DIR="+s.GitDir)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exit *exec.ExitError
	if errors.As(err, &exit) && exit.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("gitsink: merge-base: %w", err)
}

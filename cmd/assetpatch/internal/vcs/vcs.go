// Package vcs reports whether the project's working copy has uncommitted
// changes. The check is advisory; callers log its result and carry on.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrGitNotFound is returned when no git executable is on PATH.
var ErrGitNotFound = errors.New("git binary not found")

// Checker reports working-copy cleanliness.
type Checker interface {
	Clean(ctx context.Context) (bool, error)
}

// Git checks a working tree with "git status --porcelain".
type Git struct {
	dir string
}

// NewGit returns a checker targeting the given directory.
func NewGit(dir string) *Git {
	return &Git{dir: dir}
}

// Run executes a git command targeting this directory and returns stdout.
// Stderr is included in the error on failure.
func (g *Git) Run(ctx context.Context, args ...string) (string, error) {
	bin, err := exec.LookPath("git")
	if err != nil {
		return "", ErrGitNotFound
	}

	fullArgs := append([]string{"-C", g.dir}, args...)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, fullArgs...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), g.dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Changes returns the paths git reports as modified, added or untracked.
func (g *Git) Changes(ctx context.Context) ([]string, error) {
	out, err := g.Run(ctx, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	return ParsePorcelain(out), nil
}

// Clean implements Checker.
func (g *Git) Clean(ctx context.Context) (bool, error) {
	changes, err := g.Changes(ctx)
	if err != nil {
		return false, err
	}
	return len(changes) == 0, nil
}

// ParsePorcelain extracts paths from "git status --porcelain" (v1) output.
// Renames report the destination path.
func ParsePorcelain(out string) []string {
	var paths []string
	for line := range strings.SplitSeq(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 4 {
			continue
		}
		p := line[3:]
		if _, to, ok := strings.Cut(p, " -> "); ok {
			p = to
		}
		paths = append(paths, strings.Trim(p, `"`))
	}
	return paths
}

// Static is a Checker with a fixed answer.
type Static struct {
	IsClean bool
	Err     error
}

// Clean implements Checker.
func (s Static) Clean(context.Context) (bool, error) {
	return s.IsClean, s.Err
}

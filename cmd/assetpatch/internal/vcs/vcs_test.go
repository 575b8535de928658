package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"
)

func TestParsePorcelain(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want []string
	}{
		{"empty", "", nil},
		{"modified", " M res/x.png\n", []string{"res/x.png"}},
		{"untracked and added", "?? src/new.lua\nA  res/a.png\n", []string{"src/new.lua", "res/a.png"}},
		{"rename", "R  old.lua -> new.lua\n", []string{"new.lua"}},
		{"quoted", "?? \"res/with space.png\"\n", []string{"res/with space.png"}},
		{"crlf", " M a.txt\r\n", []string{"a.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParsePorcelain(tt.out); !slices.Equal(got, tt.want) {
				t.Errorf("ParsePorcelain(%q) = %v, want %v", tt.out, got, tt.want)
			}
		})
	}
}

func TestStatic(t *testing.T) {
	clean, err := Static{IsClean: true}.Clean(context.Background())
	if !clean || err != nil {
		t.Errorf("Static.Clean() = %v, %v", clean, err)
	}
}

func gitInit(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	cmd := exec.Command("git", "init", "-q", dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git init: %v: %s", err, out)
	}
	return dir
}

func TestGitClean(t *testing.T) {
	dir := gitInit(t)
	g := NewGit(dir)

	clean, err := g.Clean(context.Background())
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if !clean {
		t.Error("fresh repository should be clean")
	}

	if err := os.WriteFile(filepath.Join(dir, "x.png"), []byte("AA"), 0o644); err != nil {
		t.Fatal(err)
	}

	clean, err = g.Clean(context.Background())
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if clean {
		t.Error("untracked file should make the working copy dirty")
	}

	changes, err := g.Changes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(changes, []string{"x.png"}) {
		t.Errorf("Changes() = %v", changes)
	}
}

func TestGitNotARepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))

	if _, err := NewGit(dir).Clean(context.Background()); err == nil {
		t.Error("Clean() expected error outside a repository")
	}
}

func TestGitMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	if _, err := NewGit(".").Clean(context.Background()); err != ErrGitNotFound {
		t.Errorf("Clean() error = %v, want ErrGitNotFound", err)
	}
}

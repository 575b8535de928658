package luac_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/luac"
)

func TestFindBinary_SiblingBinary(t *testing.T) {
	tmpDir := t.TempDir()

	selfPath := filepath.Join(tmpDir, "assetpatch")
	cocosPath := filepath.Join(tmpDir, "cocos")

	if err := os.WriteFile(selfPath, []byte("fake"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cocosPath, []byte("fake"), 0o755); err != nil {
		t.Fatal(err)
	}

	c := luac.NewCocosCompiler(luac.WithExecutablePath(selfPath))
	got, err := c.FindBinary()
	if err != nil {
		t.Fatalf("FindBinary() error = %v", err)
	}
	if got != cocosPath {
		t.Errorf("FindBinary() = %q, want %q", got, cocosPath)
	}
}

func TestFindBinary_ConfiguredPathWins(t *testing.T) {
	tmpDir := t.TempDir()

	selfPath := filepath.Join(tmpDir, "assetpatch")
	configured := filepath.Join(tmpDir, "tools", "cocos2d")
	for _, p := range []string{selfPath, filepath.Join(tmpDir, "cocos"), configured} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("fake"), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	c := luac.NewCocosCompiler(luac.WithExecutablePath(selfPath), luac.WithBinaryPath(configured))
	got, err := c.FindBinary()
	if err != nil {
		t.Fatalf("FindBinary() error = %v", err)
	}
	if got != configured {
		t.Errorf("FindBinary() = %q, want %q", got, configured)
	}
}

func TestFindBinary_ConfiguredPathMissing(t *testing.T) {
	c := luac.NewCocosCompiler(luac.WithBinaryPath(filepath.Join(t.TempDir(), "nope")))
	_, err := c.FindBinary()
	if !errors.Is(err, luac.ErrCompilerNotFound) {
		t.Errorf("FindBinary() error = %v, want ErrCompilerNotFound", err)
	}
}

func TestFindBinary_NotFound(t *testing.T) {
	tmpDir := t.TempDir()
	selfPath := filepath.Join(tmpDir, "assetpatch")
	if err := os.WriteFile(selfPath, []byte("fake"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", tmpDir+string(os.PathListSeparator)+filepath.Join(tmpDir, "bin"))

	c := luac.NewCocosCompiler(luac.WithExecutablePath(filepath.Join(tmpDir, "sub", "assetpatch")))
	_, err := c.FindBinary()
	if !errors.Is(err, luac.ErrCompilerNotFound) {
		t.Errorf("FindBinary() error = %v, want ErrCompilerNotFound", err)
	}
}

func TestArgs(t *testing.T) {
	tests := []struct {
		name string
		opts []luac.Option
		want []string
	}{
		{
			name: "plain",
			want: []string{"luacompile", "-s", "D", "-d", "D", "--disable-compile", "-e"},
		},
		{
			name: "with key and sign",
			opts: []luac.Option{luac.WithEncryption("k3y", "S1GN")},
			want: []string{"luacompile", "-s", "D", "-d", "D", "--disable-compile", "-e", "-k", "k3y", "-b", "S1GN"},
		},
		{
			name: "key only",
			opts: []luac.Option{luac.WithEncryption("k3y", "")},
			want: []string{"luacompile", "-s", "D", "-d", "D", "--disable-compile", "-e", "-k", "k3y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := luac.NewCocosCompiler(tt.opts...).Args("D", "D")
			if !slices.Equal(got, tt.want) {
				t.Errorf("Args() = %v, want %v", got, tt.want)
			}
		})
	}
}

// writeScript creates an executable shell script standing in for cocos.
func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(dir, "cocos")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCompile_RunsBinary(t *testing.T) {
	tmpDir := t.TempDir()
	argsFile := filepath.Join(tmpDir, "args.txt")
	bin := writeScript(t, tmpDir, `echo "$@" > `+argsFile)

	c := luac.NewCocosCompiler(luac.WithBinaryPath(bin))
	if err := c.Compile(context.Background(), "stage", "stage"); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	want := "luacompile -s stage -d stage --disable-compile -e"
	if got := strings.TrimSpace(string(data)); got != want {
		t.Errorf("compiler args = %q, want %q", got, want)
	}
}

func TestCompile_FailureIncludesStderr(t *testing.T) {
	tmpDir := t.TempDir()
	bin := writeScript(t, tmpDir, "echo 'syntax error in main.lua' >&2\nexit 3")

	c := luac.NewCocosCompiler(luac.WithBinaryPath(bin))
	err := c.Compile(context.Background(), "stage", "stage")
	if err == nil {
		t.Fatal("Compile() expected error")
	}
	if !strings.Contains(err.Error(), "syntax error in main.lua") {
		t.Errorf("error %q should include compiler stderr", err)
	}
}

// Package luac runs the cocos script compiler over a staging tree and swaps
// every Lua source for its compiled sibling.
package luac

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/albertocavalcante/assetpatch/internal/log"
)

// ErrCompilerNotFound is returned when the cocos binary cannot be located.
var ErrCompilerNotFound = errors.New("cocos binary not found")

// BinaryName is the compiler executable looked up next to assetpatch and on PATH.
const BinaryName = "cocos"

// Compiler compiles every script under srcDir into dstDir.
type Compiler interface {
	Compile(ctx context.Context, srcDir, dstDir string) error
}

// CocosCompiler invokes "cocos luacompile".
type CocosCompiler struct {
	binaryPath     string // explicitly configured compiler
	executablePath string // path to assetpatch executable (for finding sibling)
	encryptKey     string
	encryptSign    string
}

// Option configures a CocosCompiler.
type Option func(*CocosCompiler)

// WithBinaryPath sets an explicit compiler path, skipping lookup.
func WithBinaryPath(path string) Option {
	return func(c *CocosCompiler) {
		c.binaryPath = path
	}
}

// WithExecutablePath sets the path to the assetpatch executable.
// Used primarily for testing.
func WithExecutablePath(path string) Option {
	return func(c *CocosCompiler) {
		c.executablePath = path
	}
}

// WithEncryption passes -k/-b to the compiler. Empty values are ignored.
func WithEncryption(key, sign string) Option {
	return func(c *CocosCompiler) {
		c.encryptKey = key
		c.encryptSign = sign
	}
}

// NewCocosCompiler creates a compiler with the given options.
func NewCocosCompiler(opts ...Option) *CocosCompiler {
	c := &CocosCompiler{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FindBinary locates the compiler using the following search order:
// 1. Configured path
// 2. Sibling binary (cocos next to assetpatch)
// 3. PATH lookup
func (c *CocosCompiler) FindBinary() (string, error) {
	if c.binaryPath != "" {
		if fileExists(c.binaryPath) {
			return c.binaryPath, nil
		}
		return "", fmt.Errorf("%w: %s", ErrCompilerNotFound, c.binaryPath)
	}

	exe := c.executablePath
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return "", fmt.Errorf("failed to get executable path: %w", err)
		}
	}

	if sibling := filepath.Join(filepath.Dir(exe), BinaryName); fileExists(sibling) {
		return sibling, nil
	}

	if path, err := exec.LookPath(BinaryName); err == nil {
		return path, nil
	}

	return "", ErrCompilerNotFound
}

// Args returns the luacompile argument list for the given directories.
func (c *CocosCompiler) Args(srcDir, dstDir string) []string {
	args := []string{"luacompile", "-s", srcDir, "-d", dstDir, "--disable-compile", "-e"}
	if c.encryptKey != "" {
		args = append(args, "-k", c.encryptKey)
	}
	if c.encryptSign != "" {
		args = append(args, "-b", c.encryptSign)
	}
	return args
}

// Compile implements Compiler. The compiler's stderr is included in the error.
func (c *CocosCompiler) Compile(ctx context.Context, srcDir, dstDir string) error {
	bin, err := c.FindBinary()
	if err != nil {
		return err
	}

	args := c.Args(srcDir, dstDir)
	log.Component("luac").Debug("running compiler", "binary", bin, "args", args)

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s luacompile: %w: %s", BinaryName, err, msg)
		}
		return fmt.Errorf("%s luacompile: %w", BinaryName, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CompileFunc adapts a function to the Compiler interface.
type CompileFunc func(ctx context.Context, srcDir, dstDir string) error

// Compile implements Compiler.
func (f CompileFunc) Compile(ctx context.Context, srcDir, dstDir string) error {
	return f(ctx, srcDir, dstDir)
}

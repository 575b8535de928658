package luac

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/albertocavalcante/assetpatch/internal/log"
)

// ScriptExt is the extension of scripts replaced by their compiled form.
const ScriptExt = ".lua"

// IsScript reports whether a file name has the script extension. A dotfile
// named exactly ".lua" has no extension and is not a script.
func IsScript(name string) bool {
	return filepath.Ext(name) == ScriptExt && name != ScriptExt
}

// CompiledSuffix is appended to a script path by the compiler.
const CompiledSuffix = "c"

// ErrMissingCompiled is returned when a script has no compiled sibling after compiling.
var ErrMissingCompiled = errors.New("compiled script missing")

// Transformer compiles a tree in place and swaps scripts for compiled output.
type Transformer struct {
	compiler Compiler
}

// NewTransformer creates a Transformer around a compiler.
func NewTransformer(c Compiler) *Transformer {
	return &Transformer{compiler: c}
}

// Apply compiles dir onto itself, then replaces each script with its
// compiled sibling under the original name. It returns the number of
// scripts replaced.
func (t *Transformer) Apply(ctx context.Context, dir string) (int, error) {
	if err := t.compiler.Compile(ctx, dir, dir); err != nil {
		return 0, err
	}

	scripts, err := findScripts(ctx, dir)
	if err != nil {
		return 0, err
	}

	for _, script := range scripts {
		if err := swap(script); err != nil {
			return 0, err
		}
	}

	log.Component("luac").Debug("replaced scripts", "dir", dir, "count", len(scripts))
	return len(scripts), nil
}

func findScripts(ctx context.Context, dir string) ([]string, error) {
	var scripts []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return err
		}
		if d.IsDir() || !IsScript(d.Name()) {
			return nil
		}
		scripts = append(scripts, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return scripts, nil
}

func swap(script string) error {
	compiled := script + CompiledSuffix
	if _, err := os.Stat(compiled); err != nil {
		return fmt.Errorf("%w: %s", ErrMissingCompiled, compiled)
	}
	if err := os.Remove(script); err != nil {
		return fmt.Errorf("failed to remove %s: %w", script, err)
	}
	if err := os.Rename(compiled, script); err != nil {
		return fmt.Errorf("failed to rename %s: %w", compiled, err)
	}
	return nil
}

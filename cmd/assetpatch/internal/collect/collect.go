// Package collect enumerates the asset files under a set of source roots.
//
// Results are grouped per root because relative paths, used both as
// manifest keys and archive entry names, are computed against the file's
// own root rather than a common base.
package collect

import (
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/manifest"
)

// File is one collected regular file.
type File struct {
	// Path is the file location on disk (root joined with Rel).
	Path string
	// Rel is the slash-separated path relative to the root.
	Rel string
}

// Group holds the files found beneath a single root.
type Group struct {
	Root  string
	Files []File
}

// Collection is the ordered list of per-root groups, in root order.
type Collection []Group

// Len returns the total number of files across all groups.
func (c Collection) Len() int {
	n := 0
	for _, g := range c {
		n += len(g.Files)
	}
	return n
}

// Refs flattens the collection into hash references, in root order.
// A later root's file overrides an earlier one with the same relative path.
func (c Collection) Refs() []manifest.FileRef {
	refs := make([]manifest.FileRef, 0, c.Len())
	for _, g := range c {
		for _, f := range g.Files {
			refs = append(refs, manifest.FileRef{Rel: f.Rel, Path: f.Path})
		}
	}
	return refs
}

// Collect walks each root and returns every regular file the predicate keeps.
// Symlinks are followed for both files and directories; a directory link
// that points back at one of its own ancestors is skipped. A root may itself
// be a symlink. A nil predicate keeps everything.
func Collect(ctx context.Context, roots []string, keep Predicate) (Collection, error) {
	if keep == nil {
		keep = All()
	}

	out := make(Collection, 0, len(roots))
	for _, root := range roots {
		w := &walker{ctx: ctx, keep: keep, ancestors: make(map[string]bool)}
		if err := w.walk(root, ""); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}
		slices.SortFunc(w.files, func(a, b File) int {
			return cmp.Compare(a.Rel, b.Rel)
		})
		out = append(out, Group{Root: root, Files: w.files})
	}
	return out, nil
}

type walker struct {
	ctx  context.Context
	keep Predicate
	// ancestors holds the resolved paths of the directories being walked.
	ancestors map[string]bool
	files     []File
	dirs      []string
}

// Dirs returns root and every directory beneath it, following directory
// symlinks the same way Collect does.
func Dirs(ctx context.Context, root string) ([]string, error) {
	w := &walker{ctx: ctx, keep: func(string) bool { return false }, ancestors: make(map[string]bool)}
	if err := w.walk(root, ""); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return w.dirs, nil
}

// walk lists dir, whose path relative to the root is rel ("" for the root).
// Paths are built from the configured root so File.Path stays beneath it.
func (w *walker) walk(dir, rel string) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	if w.ancestors[resolved] {
		return nil
	}
	w.ancestors[resolved] = true
	defer delete(w.ancestors, resolved)
	w.dirs = append(w.dirs, dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		childRel := e.Name()
		if rel != "" {
			childRel = rel + "/" + e.Name()
		}

		mode := e.Type()
		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				continue // dangling
			}
			mode = info.Mode().Type()
		}

		switch {
		case mode.IsDir():
			if err := w.walk(path, childRel); err != nil {
				return err
			}
		case mode.IsRegular():
			if w.keep(childRel) {
				w.files = append(w.files, File{Path: path, Rel: childRel})
			}
		}
	}
	return nil
}

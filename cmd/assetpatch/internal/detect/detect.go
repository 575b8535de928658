// Package detect inspects a directory to propose an assetpatch layout.
//
// Detection is deterministic: given the same directory contents it always
// proposes the same roots in the same order.
package detect

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/luac"
)

// CandidateRoots are the directories considered as source roots, in order.
var CandidateRoots = []string{"src", "res", "script"}

// ProjectMarker identifies a cocos project directory.
const ProjectMarker = ".cocos-project.json"

// ManifestName is the current-state manifest file name.
const ManifestName = "VERSION.json"

// Layout is a proposed project configuration.
type Layout struct {
	// Roots are the candidate roots present in the directory.
	Roots []string
	// Manifest is the proposed current-state manifest path, relative to the directory.
	Manifest string
	// Cocos reports whether the cocos project marker was found.
	Cocos bool
	// Scripts is the number of Lua scripts under the roots.
	Scripts int
	// Files is the number of regular files under the roots.
	Files int
}

// Project detects the layout of dir.
func Project(dir string) (Layout, error) {
	var layout Layout

	for _, name := range CandidateRoots {
		info, err := os.Stat(filepath.Join(dir, name))
		if err == nil && info.IsDir() {
			layout.Roots = append(layout.Roots, name)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, ProjectMarker)); err == nil {
		layout.Cocos = true
	}

	layout.Manifest = manifestFor(layout.Roots)

	for _, root := range layout.Roots {
		err := filepath.WalkDir(filepath.Join(dir, root), func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			layout.Files++
			if luac.IsScript(d.Name()) {
				layout.Scripts++
			}
			return nil
		})
		if err != nil {
			return Layout{}, err
		}
	}

	return layout, nil
}

// manifestFor places the manifest in res when present, otherwise in the
// last detected root, otherwise at the default location.
func manifestFor(roots []string) string {
	for _, r := range roots {
		if r == "res" {
			return path.Join("res", ManifestName)
		}
	}
	if len(roots) > 0 {
		return path.Join(roots[len(roots)-1], ManifestName)
	}
	return path.Join("res", ManifestName)
}

// Package manifest models the versioned file-hash manifest (VERSION.json):
// hashing, comparison, version bumping, diffing and persistence.
package manifest

import (
	"fmt"
	"maps"
)

// Manifest is the versioned record of one build's assets.
// Field order keeps the JSON keys sorted.
type Manifest struct {
	// Major is the externally controlled version (cpp_version). Never bumped here.
	Major int `json:"cpp_version"`
	// Files maps root-relative, slash-separated paths to content hashes.
	Files map[string]string `json:"files"`
	// Minor is bumped by exactly one whenever Files (or Major) change.
	Minor int `json:"version"`
}

// Build constructs an unbumped candidate manifest. The files map is copied.
func Build(files map[string]string, major, previousMinor int) Manifest {
	return Manifest{
		Major: major,
		Files: cloneFiles(files),
		Minor: previousMinor,
	}
}

// Equal reports whether a and b agree on Major, Minor and every file entry.
func Equal(a, b Manifest) bool {
	return a.Major == b.Major &&
		a.Minor == b.Minor &&
		maps.Equal(a.Files, b.Files)
}

// Bump returns a copy of m with Minor incremented.
func (m Manifest) Bump() Manifest {
	return Manifest{
		Major: m.Major,
		Files: cloneFiles(m.Files),
		Minor: m.Minor + 1,
	}
}

// Next compares a candidate against the previous manifest and returns the
// manifest to persist: the candidate itself when equal, otherwise bumped.
func Next(previous, candidate Manifest) (Manifest, bool) {
	if Equal(previous, candidate) {
		return candidate, false
	}
	return candidate.Bump(), true
}

// Len returns the number of file entries.
func (m Manifest) Len() int {
	return len(m.Files)
}

// VersionString formats the version pair as "major.minor".
func (m Manifest) VersionString() string {
	return fmt.Sprintf("%d.%d", m.Major, m.Minor)
}

func cloneFiles(files map[string]string) map[string]string {
	if files == nil {
		return map[string]string{}
	}
	return maps.Clone(files)
}

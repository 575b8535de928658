package manifest

import (
	"path"
	"slices"
)

// ChangeSet represents the differences between two manifests' file entries.
type ChangeSet struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Deleted  []string `json:"deleted"`
}

// NewChangeSet creates an empty ChangeSet.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		Added:    []string{},
		Modified: []string{},
		Deleted:  []string{},
	}
}

// Diff compares file entries. The receiver is the "old" state, other the "new".
// Version numbers are not part of the ChangeSet; see Equal for full comparison.
func (m Manifest) Diff(other Manifest) *ChangeSet {
	cs := NewChangeSet()

	for rel, newHash := range other.Files {
		oldHash, exists := m.Files[rel]
		if !exists {
			cs.Added = append(cs.Added, rel)
			continue
		}
		if oldHash != newHash {
			cs.Modified = append(cs.Modified, rel)
		}
	}

	for rel := range m.Files {
		if _, exists := other.Files[rel]; !exists {
			cs.Deleted = append(cs.Deleted, rel)
		}
	}

	cs.sort()
	return cs
}

// IsEmpty returns true if there are no changes.
func (cs *ChangeSet) IsEmpty() bool {
	if cs == nil {
		return true
	}
	return len(cs.Added) == 0 && len(cs.Modified) == 0 && len(cs.Deleted) == 0
}

// TotalChanges returns the total number of changed files.
func (cs *ChangeSet) TotalChanges() int {
	if cs == nil {
		return 0
	}
	return len(cs.Added) + len(cs.Modified) + len(cs.Deleted)
}

// AffectedDirs returns sorted unique directories containing changes.
func (cs *ChangeSet) AffectedDirs() []string {
	if cs == nil {
		return nil
	}

	dirs := make(map[string]struct{})
	for _, group := range [][]string{cs.Added, cs.Modified, cs.Deleted} {
		for _, rel := range group {
			dirs[path.Dir(rel)] = struct{}{}
		}
	}

	result := make([]string, 0, len(dirs))
	for dir := range dirs {
		result = append(result, dir)
	}
	slices.Sort(result)
	return result
}

// sort sorts all slices for deterministic output.
func (cs *ChangeSet) sort() {
	if cs == nil {
		return
	}
	slices.Sort(cs.Added)
	slices.Sort(cs.Modified)
	slices.Sort(cs.Deleted)
}

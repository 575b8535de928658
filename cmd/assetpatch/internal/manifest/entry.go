package manifest

import "fmt"

// FileRef names one file to hash: Rel is the manifest key, Path the file on disk.
type FileRef struct {
	Rel  string
	Path string
}

// Collision records a relative path produced by more than one source root.
// The later reference wins in the hashed mapping.
type Collision struct {
	Rel      string
	Previous string // path that was overwritten
	Winner   string // path whose hash was kept
}

// HashFiles hashes every reference and keys the result by relative path.
// Duplicate relative paths overwrite earlier ones and are reported as collisions.
// The first read failure aborts hashing; the returned error wraps the
// underlying *fs.PathError so callers can recover the offending path.
func HashFiles(h Hasher, refs []FileRef) (map[string]string, []Collision, error) {
	files := make(map[string]string, len(refs))
	seen := make(map[string]string, len(refs))
	var collisions []Collision

	for _, ref := range refs {
		sum, err := h.HashFile(ref.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("hash %s: %w", ref.Rel, err)
		}
		if prev, ok := seen[ref.Rel]; ok {
			collisions = append(collisions, Collision{Rel: ref.Rel, Previous: prev, Winner: ref.Path})
		}
		seen[ref.Rel] = ref.Path
		files[ref.Rel] = sum
	}

	return files, collisions, nil
}

package collect

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MetadataMarker is the OS metadata file name excluded wherever it appears in a path.
const MetadataMarker = ".DS_Store"

// Predicate reports whether a file should be collected. rel is the
// slash-separated path relative to its root.
type Predicate func(rel string) bool

// All combines predicates; a file is kept only if every predicate keeps it.
func All(preds ...Predicate) Predicate {
	return func(rel string) bool {
		for _, p := range preds {
			if p != nil && !p(rel) {
				return false
			}
		}
		return true
	}
}

// NotMetadata drops any path containing the OS metadata marker.
func NotMetadata() Predicate {
	return func(rel string) bool {
		return !strings.Contains(rel, MetadataMarker)
	}
}

// NotNamed drops files whose base name equals name (e.g. the manifest file itself).
func NotNamed(name string) Predicate {
	return func(rel string) bool {
		return path.Base(rel) != name
	}
}

// NotMatching drops files matching any doublestar glob pattern.
// Patterns are validated up front.
func NotMatching(patterns []string) (Predicate, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return func(rel string) bool {
		for _, p := range patterns {
			if doublestar.MatchUnvalidated(p, rel) {
				return false
			}
		}
		return true
	}, nil
}

// DefaultFilter builds the standard exclusion predicate: the metadata
// marker, the manifest file name, and any extra glob patterns.
func DefaultFilter(manifestName string, exclude []string) (Predicate, error) {
	globs, err := NotMatching(exclude)
	if err != nil {
		return nil, err
	}
	return All(NotMetadata(), NotNamed(manifestName), globs), nil
}

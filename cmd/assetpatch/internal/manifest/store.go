package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/albertocavalcante/assetpatch/pkg/util"
)

// LatestName is the fixed name of the latest-pointer manifest.
const LatestName = "LATEST.json"

// ErrManifestNotFound is returned by Load when the current-state file is absent.
// There is no bootstrap: run "assetpatch init" to seed one.
var ErrManifestNotFound = errors.New("manifest not found")

// VersionedName returns the version-stamped manifest file name.
func VersionedName(major, minor int) string {
	return fmt.Sprintf("VERSION-%d.%d.json", major, minor)
}

// Store defines the interface for manifest persistence.
type Store interface {
	CurrentPath() string
	LatestPath() string
	Load() (Manifest, error)
	Exists() bool
	SaveCurrent(m Manifest) error
	SaveVersioned(m Manifest) (string, error)
	PromoteLatest(versionedPath string) error
}

var _ Store = (*JSONStore)(nil)

// JSONStore persists manifests as sorted, indented JSON files.
type JSONStore struct {
	current   string // current-state file, e.g. res/VERSION.json
	outputDir string // receives VERSION-M.m.json and LATEST.json
}

// NewJSONStore creates a store for the given current-state file and output directory.
func NewJSONStore(currentPath, outputDir string) *JSONStore {
	return &JSONStore{
		current:   currentPath,
		outputDir: outputDir,
	}
}

// CurrentPath returns the current-state manifest path.
func (s *JSONStore) CurrentPath() string {
	return s.current
}

// LatestPath returns the latest-pointer manifest path.
func (s *JSONStore) LatestPath() string {
	return filepath.Join(s.outputDir, LatestName)
}

// diskManifest mirrors Manifest with pointers so missing keys are detectable.
type diskManifest struct {
	Major *int              `json:"cpp_version"`
	Files map[string]string `json:"files"`
	Minor *int              `json:"version"`
}

// Load reads the current-state manifest. A missing file yields ErrManifestNotFound.
func (s *JSONStore) Load() (Manifest, error) {
	data, err := os.ReadFile(s.current)
	if errors.Is(err, fs.ErrNotExist) {
		return Manifest{}, fmt.Errorf("%w: %s", ErrManifestNotFound, s.current)
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Decode(data)
}

// Exists returns true if the current-state file exists.
func (s *JSONStore) Exists() bool {
	_, err := os.Stat(s.current)
	return err == nil
}

// SaveCurrent overwrites the current-state manifest atomically.
func (s *JSONStore) SaveCurrent(m Manifest) error {
	return save(s.current, m)
}

// SaveVersioned writes VERSION-<major>.<minor>.json and returns its path.
// The path is returned even when the write fails.
func (s *JSONStore) SaveVersioned(m Manifest) (string, error) {
	path := filepath.Join(s.outputDir, VersionedName(m.Major, m.Minor))
	return path, save(path, m)
}

// PromoteLatest copies a version-stamped manifest over LATEST.json.
func (s *JSONStore) PromoteLatest(versionedPath string) error {
	if err := util.CopyFileAtomic(versionedPath, s.LatestPath()); err != nil {
		return fmt.Errorf("failed to update %s: %w", LatestName, err)
	}
	return nil
}

// Encode renders m with sorted keys, two-space indentation and no HTML escaping.
func Encode(m Manifest) ([]byte, error) {
	if m.Files == nil {
		m.Files = map[string]string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a persisted manifest. Both version keys are required.
func Decode(data []byte) (Manifest, error) {
	var dm diskManifest
	if err := json.Unmarshal(data, &dm); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if dm.Minor == nil {
		return Manifest{}, errors.New(`failed to parse manifest: missing "version"`)
	}
	if dm.Major == nil {
		return Manifest{}, errors.New(`failed to parse manifest: missing "cpp_version"`)
	}

	files := dm.Files
	if files == nil {
		files = map[string]string{}
	}
	return Manifest{Major: *dm.Major, Files: files, Minor: *dm.Minor}, nil
}

func save(path string, m Manifest) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	if err := util.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}

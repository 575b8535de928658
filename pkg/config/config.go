// Package config provides configuration management for assetpatch.
// It supports multi-layer configuration with precedence:
//  1. Built-in defaults (lowest priority)
//  2. Global user config (~/.config/assetpatch/config.toml)
//  3. Project config (.assetpatch/config.toml or assetpatch.toml)
//  4. Environment variables (ASSETPATCH_*)
//  5. CLI flags (highest priority)
package config

import "slices"

// Hash algorithm names accepted by HashConfig.Algorithm.
const (
	AlgorithmCRC32  = "crc32"
	AlgorithmXXHash = "xxhash"
)

// Config is the main configuration struct for assetpatch.
type Config struct {
	// Sources configures which directories are scanned.
	Sources SourcesConfig `toml:"sources"`

	// Manifest configures the persisted manifest files.
	Manifest ManifestConfig `toml:"manifest"`

	// Hash configures the content hasher.
	Hash HashConfig `toml:"hash"`

	// Pack configures archive packaging.
	Pack PackConfig `toml:"pack"`

	// Compiler configures the external script compiler.
	Compiler CompilerConfig `toml:"compiler"`

	// VCS configures the working-copy status check.
	VCS VCSConfig `toml:"vcs"`
}

// SourcesConfig lists the roots to scan and extra exclusions.
type SourcesConfig struct {
	// Roots are the directories to scan, relative to the working directory.
	Roots []string `toml:"roots,omitempty"`

	// Exclude are doublestar glob patterns matched against root-relative paths.
	Exclude []string `toml:"exclude,omitempty"`
}

// ManifestConfig holds manifest file locations.
type ManifestConfig struct {
	// Path is the current-state manifest (default res/VERSION.json).
	// Its base name is also excluded from scanning.
	Path string `toml:"path,omitempty"`

	// OutputDir receives VERSION-M.m.json, LATEST.json and the archives.
	OutputDir string `toml:"output_dir,omitempty"`

	// Major overrides the carried-over major version when non-nil.
	Major *int `toml:"major"`
}

// HashConfig selects the content hash algorithm.
type HashConfig struct {
	// Algorithm is "crc32" (default) or "xxhash".
	Algorithm string `toml:"algorithm,omitempty"`
}

// PackConfig holds packaging settings.
type PackConfig struct {
	// Enabled controls whether an archive is produced after hashing.
	Enabled *bool `toml:"enabled"`

	// StagingDir is the scratch directory used to assemble the archive.
	StagingDir string `toml:"staging_dir,omitempty"`

	// KeepStaging leaves the staging directory on disk after packing.
	KeepStaging *bool `toml:"keep_staging"`
}

// CompilerConfig holds external script compiler settings.
type CompilerConfig struct {
	// Path is the cocos console binary. Empty means sibling lookup, then PATH.
	Path string `toml:"path,omitempty"`

	// EncryptKey and EncryptSign are passed as -k / -b when set.
	EncryptKey  string `toml:"encrypt_key,omitempty"`
	EncryptSign string `toml:"encrypt_sign,omitempty"`
}

// VCSConfig controls the advisory git status check.
type VCSConfig struct {
	// Check enables the working-copy cleanliness check.
	Check *bool `toml:"check"`
}

// NewConfig creates a new Config with built-in defaults.
func NewConfig() *Config {
	trueVal := true
	falseVal := false
	return &Config{
		Sources: SourcesConfig{
			Roots:   []string{"src", "res"},
			Exclude: []string{},
		},
		Manifest: ManifestConfig{
			Path:      "res/VERSION.json",
			OutputDir: ".",
		},
		Hash: HashConfig{
			Algorithm: AlgorithmCRC32,
		},
		Pack: PackConfig{
			Enabled:     &trueVal,
			StagingDir:  ".assets",
			KeepStaging: &falseVal,
		},
		Compiler: CompilerConfig{},
		VCS: VCSConfig{
			Check: &trueVal,
		},
	}
}

// PackEnabled reports whether packaging runs after hashing.
func (c *Config) PackEnabled() bool {
	return c.Pack.Enabled == nil || *c.Pack.Enabled
}

// KeepStaging reports whether the staging directory survives a pack.
func (c *Config) KeepStaging() bool {
	return c.Pack.KeepStaging != nil && *c.Pack.KeepStaging
}

// VCSCheckEnabled reports whether the git status check runs.
func (c *Config) VCSCheckEnabled() bool {
	return c.VCS.Check == nil || *c.VCS.Check
}

// AddRoots appends roots not already configured, preserving order.
func (c *Config) AddRoots(roots ...string) {
	for _, r := range roots {
		if !slices.Contains(c.Sources.Roots, r) {
			c.Sources.Roots = append(c.Sources.Roots, r)
		}
	}
}

// Merge merges another config into this one (other takes precedence).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// A file that lists roots replaces the defaults; exclusions accumulate.
	if len(other.Sources.Roots) > 0 {
		c.Sources.Roots = slices.Clone(other.Sources.Roots)
	}
	if len(other.Sources.Exclude) > 0 {
		c.Sources.Exclude = append(c.Sources.Exclude, other.Sources.Exclude...)
	}

	if other.Manifest.Path != "" {
		c.Manifest.Path = other.Manifest.Path
	}
	if other.Manifest.OutputDir != "" {
		c.Manifest.OutputDir = other.Manifest.OutputDir
	}
	if other.Manifest.Major != nil {
		c.Manifest.Major = other.Manifest.Major
	}

	if other.Hash.Algorithm != "" {
		c.Hash.Algorithm = other.Hash.Algorithm
	}

	if other.Pack.Enabled != nil {
		c.Pack.Enabled = other.Pack.Enabled
	}
	if other.Pack.StagingDir != "" {
		c.Pack.StagingDir = other.Pack.StagingDir
	}
	if other.Pack.KeepStaging != nil {
		c.Pack.KeepStaging = other.Pack.KeepStaging
	}

	if other.Compiler.Path != "" {
		c.Compiler.Path = other.Compiler.Path
	}
	if other.Compiler.EncryptKey != "" {
		c.Compiler.EncryptKey = other.Compiler.EncryptKey
	}
	if other.Compiler.EncryptSign != "" {
		c.Compiler.EncryptSign = other.Compiler.EncryptSign
	}

	if other.VCS.Check != nil {
		c.VCS.Check = other.VCS.Check
	}
}

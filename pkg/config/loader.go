package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the name of the project-level config file.
const ConfigFileName = "assetpatch.toml"

// ConfigDirName is the name of the project-level config directory.
const ConfigDirName = ".assetpatch"

// GlobalConfigDir is the name of the global config directory inside user's config.
const GlobalConfigDir = "assetpatch"

// workspaceMarkers stop the upward search for a project config.
var workspaceMarkers = []string{".git", ".cocos-project.json"}

// LoadFrom loads configuration starting from a specific directory.
// Missing files are skipped; a file that exists but does not parse is an error.
func LoadFrom(dir string) (*Config, error) {
	cfg := NewConfig()

	// Layer 2: Global user config
	if path := GetGlobalConfigPath(); path != "" {
		globalCfg, err := loadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Merge(globalCfg)
	}

	// Layer 3: Project config
	projectCfg, err := loadProjectConfigFrom(dir)
	if err != nil {
		return nil, err
	}
	cfg.Merge(projectCfg)

	// Layer 4: Environment variables
	if err := applyEnvironmentVariables(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadProjectConfigFrom looks for project configuration starting from the given directory.
func loadProjectConfigFrom(dir string) (*Config, error) {
	current := dir
	for {
		for _, candidate := range GetProjectConfigPaths(current) {
			cfg, err := loadConfigFile(candidate)
			if err != nil {
				return nil, err
			}
			if cfg != nil {
				return cfg, nil
			}
		}

		// Stop at filesystem root or workspace root
		if isWorkspaceRoot(current) {
			break
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return nil, nil
}

// isWorkspaceRoot checks if the directory is a project root (has .git or a cocos project file).
func isWorkspaceRoot(dir string) bool {
	for _, marker := range workspaceMarkers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// loadConfigFile loads a configuration from a TOML file.
// Returns nil, nil when the file does not exist.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in config %s", undecoded[0].String(), path)
	}

	return &cfg, nil
}

// applyEnvironmentVariables applies ASSETPATCH_* environment variables to the config.
func applyEnvironmentVariables(cfg *Config) error {
	// ASSETPATCH_SOURCES: comma-separated list of roots (replaces configured roots)
	if roots := os.Getenv("ASSETPATCH_SOURCES"); roots != "" {
		cfg.Sources.Roots = splitAndTrim(roots)
	}
	if excl := os.Getenv("ASSETPATCH_EXCLUDE"); excl != "" {
		cfg.Sources.Exclude = append(cfg.Sources.Exclude, splitAndTrim(excl)...)
	}

	if v := os.Getenv("ASSETPATCH_MANIFEST"); v != "" {
		cfg.Manifest.Path = v
	}
	if v := os.Getenv("ASSETPATCH_OUTPUT_DIR"); v != "" {
		cfg.Manifest.OutputDir = v
	}
	if v := os.Getenv("ASSETPATCH_CPP_VERSION"); v != "" {
		major, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ASSETPATCH_CPP_VERSION %q: %w", v, err)
		}
		cfg.Manifest.Major = &major
	}

	if v := os.Getenv("ASSETPATCH_HASH_ALGORITHM"); v != "" {
		cfg.Hash.Algorithm = v
	}

	applyBoolEnv("ASSETPATCH_PACK", &cfg.Pack.Enabled)
	applyBoolEnv("ASSETPATCH_KEEP_STAGING", &cfg.Pack.KeepStaging)
	if v := os.Getenv("ASSETPATCH_STAGING_DIR"); v != "" {
		cfg.Pack.StagingDir = v
	}

	if v := os.Getenv("ASSETPATCH_COCOS"); v != "" {
		cfg.Compiler.Path = v
	}
	if v := os.Getenv("ASSETPATCH_ENCRYPT_KEY"); v != "" {
		cfg.Compiler.EncryptKey = v
	}
	if v := os.Getenv("ASSETPATCH_ENCRYPT_SIGN"); v != "" {
		cfg.Compiler.EncryptSign = v
	}

	applyBoolEnv("ASSETPATCH_VCS_CHECK", &cfg.VCS.Check)
	return nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// applyBoolEnv applies a boolean environment variable to a pointer.
func applyBoolEnv(envVar string, target **bool) {
	if v := os.Getenv(envVar); v != "" {
		v = strings.ToLower(v)
		if v == "true" || v == "1" || v == "yes" {
			t := true
			*target = &t
		} else if v == "false" || v == "0" || v == "no" {
			f := false
			*target = &f
		}
	}
}

// GetGlobalConfigPath returns the path to the global config file.
func GetGlobalConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, GlobalConfigDir, "config.toml")
}

// GetProjectConfigPaths returns potential project config paths for a given directory.
func GetProjectConfigPaths(dir string) []string {
	return []string{
		filepath.Join(dir, ConfigDirName, "config.toml"),
		filepath.Join(dir, ConfigFileName),
	}
}

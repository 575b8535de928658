// Package pipeline runs one end-to-end asset versioning pass:
// collect, hash and compare against the previous manifest, persist, and
// optionally pack.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/collect"
	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/luac"
	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/manifest"
	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/pack"
	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/vcs"
	"github.com/albertocavalcante/assetpatch/internal/log"
	"github.com/albertocavalcante/assetpatch/pkg/config"
	"github.com/albertocavalcante/assetpatch/pkg/util"
)

// State is the last stage a run reached.
type State int

const (
	StateInit State = iota
	StateCollected
	StateHashed
	StatePacked
	StateSkipped
	StateDone
)

var stateNames = [...]string{"init", "collected", "hashed", "packed", "skipped", "done"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options configures a run.
type Options struct {
	// Dir is the project directory; relative config paths resolve against it.
	// Empty means the current working directory.
	Dir string

	// Config is the merged configuration. Nil means config.NewConfig().
	Config *config.Config

	// Compiler overrides the cocos compiler built from Config.
	Compiler luac.Compiler

	// VCS overrides the git checker built from Config.
	VCS vcs.Checker
}

// RunContext is the state threaded between stages. Each stage returns an
// updated copy; none mutates its input.
type RunContext struct {
	Dir      string
	Config   *config.Config
	Roots    []string // resolved source roots
	Store    manifest.Store
	Hasher   manifest.Hasher
	Filter   collect.Predicate
	Files    collect.Collection
	Previous manifest.Manifest
	Final    manifest.Manifest
	Changed  bool
	Changes  *manifest.ChangeSet
}

// Result reports the outcome of a run.
type Result struct {
	State     State
	Previous  manifest.Manifest
	Manifest  manifest.Manifest
	Changed   bool
	Changes   *manifest.ChangeSet
	Files     int
	Versioned string       // path of VERSION-M.m.json
	Latest    string       // path of LATEST.json
	Archive   *pack.Result // nil unless packed
}

// Run executes the full pipeline. Failures abort at the current state and
// are returned as *Error; the returned Result is never nil.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := log.Component("pipeline")
	res := &Result{State: StateInit}

	rc, err := Prepare(opts)
	if err != nil {
		return res, err
	}
	if err := validateRoots(rc); err != nil {
		return res, err
	}

	if rc.Config.VCSCheckEnabled() {
		checkWorkingCopy(ctx, opts.VCS, rc.Dir)
	}

	rc, err = loadPrevious(rc)
	if err != nil {
		return res, err
	}
	res.Previous = rc.Previous

	rc, err = collectFiles(ctx, rc)
	if err != nil {
		return res, err
	}
	res.State = StateCollected
	res.Files = rc.Files.Len()

	rc, err = hash(rc)
	if err != nil {
		return res, err
	}
	res.Manifest, res.Changed, res.Changes = rc.Final, rc.Changed, rc.Changes

	res.Versioned, res.Latest, err = persist(rc)
	if err != nil {
		return res, err
	}
	res.State = StateHashed

	if rc.Config.PackEnabled() {
		res.Archive, err = packFiles(ctx, rc, opts.Compiler)
		if err != nil {
			return res, err
		}
		res.State = StatePacked
	} else {
		logger.Debug("packaging disabled")
		res.State = StateSkipped
	}

	if rc.Changed {
		logger.Info("manifest updated", "version", rc.Final.VersionString(),
			"added", len(rc.Changes.Added), "modified", len(rc.Changes.Modified), "deleted", len(rc.Changes.Deleted))
	} else {
		logger.Info("nothing to update", "version", rc.Final.VersionString())
	}
	logger.Info("hash finished", "files", res.Files)
	res.State = StateDone
	return res, nil
}

// Status computes what Run would produce without writing anything, running
// the compiler, or checking the working copy.
func Status(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{State: StateInit}

	rc, err := Prepare(opts)
	if err != nil {
		return res, err
	}
	if err := validateRoots(rc); err != nil {
		return res, err
	}
	rc, err = loadPrevious(rc)
	if err != nil {
		return res, err
	}
	res.Previous = rc.Previous

	rc, err = collectFiles(ctx, rc)
	if err != nil {
		return res, err
	}
	res.State = StateCollected
	res.Files = rc.Files.Len()

	rc, err = hash(rc)
	if err != nil {
		return res, err
	}
	res.Manifest, res.Changed, res.Changes = rc.Final, rc.Changed, rc.Changes
	res.State = StateHashed
	return res, nil
}

// Seed writes an initial current-state manifest with no files and minor
// version 0. An existing manifest is kept unless force is set.
func Seed(opts Options, major int, force bool) (string, error) {
	rc, err := Prepare(opts)
	if err != nil {
		return "", err
	}
	path := rc.Store.CurrentPath()
	if rc.Store.Exists() && !force {
		return path, newError(KindConfiguration, path, errors.New("manifest already exists (use --force to overwrite)"))
	}
	if err := rc.Store.SaveCurrent(manifest.Build(nil, major, 0)); err != nil {
		return path, newError(KindManifestWrite, path, err)
	}
	log.Component("pipeline").Info("seeded manifest", "path", path, "cpp_version", major)
	return path, nil
}

// Prepare validates configuration and resolves paths without touching
// project files.
func Prepare(opts Options) (RunContext, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}

	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return RunContext{}, newError(KindConfiguration, "", err)
		}
		dir = wd
	}

	if len(cfg.Sources.Roots) == 0 {
		return RunContext{}, newError(KindConfiguration, "", errors.New("no source roots configured"))
	}
	roots := make([]string, 0, len(cfg.Sources.Roots))
	for _, r := range cfg.Sources.Roots {
		roots = append(roots, resolve(dir, r))
	}

	hasher, err := manifest.NewHasher(cfg.Hash.Algorithm)
	if err != nil {
		return RunContext{}, newError(KindConfiguration, "", err)
	}

	manifestPath := resolve(dir, cfg.Manifest.Path)
	filter, err := collect.DefaultFilter(filepath.Base(manifestPath), cfg.Sources.Exclude)
	if err != nil {
		return RunContext{}, newError(KindConfiguration, "", err)
	}

	return RunContext{
		Dir:    dir,
		Config: cfg,
		Roots:  roots,
		Store:  manifest.NewJSONStore(manifestPath, resolve(dir, cfg.Manifest.OutputDir)),
		Hasher: hasher,
		Filter: filter,
	}, nil
}

func checkWorkingCopy(ctx context.Context, checker vcs.Checker, dir string) {
	if checker == nil {
		checker = vcs.NewGit(dir)
	}
	clean, err := checker.Clean(ctx)
	switch {
	case err != nil:
		log.Component("vcs").Warn("unable to check working copy", "error", err)
	case !clean:
		log.Component("vcs").Error("working copy is not clean")
	}
}

func validateRoots(rc RunContext) error {
	for _, root := range rc.Roots {
		info, err := os.Stat(root)
		if err != nil {
			return newError(KindConfiguration, root, errors.New("source directory does not exist"))
		}
		if !info.IsDir() {
			return newError(KindConfiguration, root, errors.New("source path is not a directory"))
		}
	}
	return nil
}

func loadPrevious(rc RunContext) (RunContext, error) {
	prev, err := rc.Store.Load()
	if err != nil {
		return rc, newError(KindManifestLoad, rc.Store.CurrentPath(), err)
	}
	rc.Previous = prev
	return rc, nil
}

func collectFiles(ctx context.Context, rc RunContext) (RunContext, error) {
	files, err := collect.Collect(ctx, rc.Roots, rc.Filter)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return rc, newError(KindOther, "", ctxErr)
		}
		return rc, fileReadError("", err)
	}
	log.Component("pipeline").Debug("collected files", "roots", rc.Roots, "count", files.Len())
	rc.Files = files
	return rc, nil
}

func hash(rc RunContext) (RunContext, error) {
	logger := log.Component("pipeline")

	files, collisions, err := manifest.HashFiles(rc.Hasher, rc.Files.Refs())
	if err != nil {
		return rc, fileReadError("", err)
	}
	for _, c := range collisions {
		logger.Warn("relative path found in more than one root; later root wins",
			"path", c.Rel, "ignored", c.Previous, "used", c.Winner)
	}

	major := rc.Previous.Major
	if rc.Config.Manifest.Major != nil {
		major = *rc.Config.Manifest.Major
	}

	candidate := manifest.Build(files, major, rc.Previous.Minor)
	rc.Final, rc.Changed = manifest.Next(rc.Previous, candidate)
	rc.Changes = rc.Previous.Diff(rc.Final)

	if log.Verbosity() >= log.VerbosityDebug {
		for _, p := range rc.Changes.Added {
			logger.Debug("added", "path", p)
		}
		for _, p := range rc.Changes.Modified {
			logger.Debug("modified", "path", p)
		}
		for _, p := range rc.Changes.Deleted {
			logger.Debug("deleted", "path", p)
		}
	}
	return rc, nil
}

// persist writes the version-stamped and latest manifests on every run, and
// the current-state manifest only when something changed.
func persist(rc RunContext) (string, string, error) {
	versioned, err := rc.Store.SaveVersioned(rc.Final)
	if err != nil {
		return "", "", newError(KindManifestWrite, versioned, err)
	}
	if err := rc.Store.PromoteLatest(versioned); err != nil {
		return versioned, "", newError(KindManifestWrite, rc.Store.LatestPath(), err)
	}
	if rc.Changed {
		if err := rc.Store.SaveCurrent(rc.Final); err != nil {
			return versioned, rc.Store.LatestPath(), newError(KindManifestWrite, rc.Store.CurrentPath(), err)
		}
	}
	return versioned, rc.Store.LatestPath(), nil
}

func packFiles(ctx context.Context, rc RunContext, compiler luac.Compiler) (*pack.Result, error) {
	cfg := rc.Config
	staging := rc.StagingDir()
	if err := checkStaging(staging, rc); err != nil {
		return nil, err
	}

	if compiler == nil {
		opts := []luac.Option{luac.WithEncryption(cfg.Compiler.EncryptKey, cfg.Compiler.EncryptSign)}
		if cfg.Compiler.Path != "" {
			opts = append(opts, luac.WithBinaryPath(resolve(rc.Dir, cfg.Compiler.Path)))
		}
		compiler = luac.NewCocosCompiler(opts...)
	}

	p := pack.New(pack.Options{
		StagingDir:  staging,
		OutputDir:   rc.OutputDir(),
		KeepStaging: cfg.KeepStaging(),
	}, compiler)

	res, err := p.Pack(ctx, rc.Files, rc.Final)
	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		return nil, newError(KindOther, "", ctx.Err())
	case errors.Is(err, pack.ErrTransform):
		return nil, newError(KindExternalTool, staging, err)
	case errors.Is(err, pack.ErrStaging):
		return nil, fileReadError(staging, err)
	default:
		return nil, newError(KindArchiveWrite, pack.ArchiveName(rc.Final.Major, rc.Final.Minor), err)
	}
}

// checkStaging refuses staging directories that would wipe project content.
func checkStaging(staging string, rc RunContext) error {
	protected := append(slices.Clone(rc.Roots), rc.Dir, rc.OutputDir())
	for _, p := range protected {
		if filepath.Clean(p) == filepath.Clean(staging) || isWithin(p, staging) {
			return newError(KindConfiguration, staging, fmt.Errorf("staging directory overlaps %s", p))
		}
	}
	return nil
}

// outputPatterns match the files written to the output directory.
var outputPatterns = []string{"VERSION-*.json", manifest.LatestName, "PATCH-*.zip", pack.LatestArchive}

// OutputDir returns the resolved directory for versioned manifests and archives.
func (rc RunContext) OutputDir() string {
	return resolve(rc.Dir, rc.Config.Manifest.OutputDir)
}

// StagingDir returns the resolved staging directory.
func (rc RunContext) StagingDir() string {
	return resolve(rc.Dir, rc.Config.Pack.StagingDir)
}

// IsOutput reports whether path is something a run writes: an atomic-write
// temp file, anything under the staging directory, or a versioned or latest
// manifest or archive in the output directory. The current-state manifest is
// left to the collect filter.
func (rc RunContext) IsOutput(path string) bool {
	name := filepath.Base(path)
	if util.IsTempFile(name) {
		return true
	}
	if staging := rc.StagingDir(); staging != "" {
		if filepath.Clean(path) == filepath.Clean(staging) || isWithin(path, staging) {
			return true
		}
	}
	if filepath.Dir(filepath.Clean(path)) != filepath.Clean(rc.OutputDir()) {
		return false
	}
	for _, pattern := range outputPatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// isWithin reports whether child is strictly inside parent.
func isWithin(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

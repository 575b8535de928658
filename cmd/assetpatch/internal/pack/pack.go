// Package pack stages collected assets, compiles scripts, and writes the
// versioned patch archive.
package pack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/collect"
	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/luac"
	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/manifest"
	"github.com/albertocavalcante/assetpatch/internal/log"
	"github.com/albertocavalcante/assetpatch/pkg/util"
)

// LatestArchive is the fixed name of the latest-pointer archive.
const LatestArchive = "LATEST.zip"

// DefaultStagingDir is the staging directory used when none is configured.
const DefaultStagingDir = ".assets"

// Stage errors. Pack wraps every failure with one of these.
var (
	ErrStaging   = errors.New("failed to stage assets")
	ErrTransform = errors.New("script transform failed")
	ErrArchive   = errors.New("failed to write archive")
)

// entryTime is stamped on every archive entry so identical inputs give
// byte-identical archives. It is the earliest time the zip format encodes.
var entryTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// ArchiveName returns the version-stamped archive file name.
func ArchiveName(major, minor int) string {
	return fmt.Sprintf("PATCH-%d.%d.zip", major, minor)
}

// Options configures a Packager.
type Options struct {
	// StagingDir is removed and recreated on every Pack.
	StagingDir string
	// OutputDir receives the archive and LATEST.zip.
	OutputDir string
	// KeepStaging leaves the staging tree on disk after Pack returns.
	KeepStaging bool
	// Level is the deflate level; zero selects flate.DefaultCompression.
	Level int
}

// Result describes a written archive.
type Result struct {
	Archive string // path of PATCH-M.m.zip
	Latest  string // path of LATEST.zip
	Entries int
	Scripts int
}

// Packager builds patch archives.
type Packager struct {
	opts        Options
	transformer *luac.Transformer
}

// New creates a Packager that compiles scripts with compiler.
func New(opts Options, compiler luac.Compiler) *Packager {
	if opts.StagingDir == "" {
		opts.StagingDir = DefaultStagingDir
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.Level == 0 {
		opts.Level = flate.DefaultCompression
	}
	return &Packager{
		opts:        opts,
		transformer: luac.NewTransformer(compiler),
	}
}

// StagingDir returns the staging directory path.
func (p *Packager) StagingDir() string {
	return p.opts.StagingDir
}

// Pack copies the collection into staging, transforms scripts, writes the
// archive for m's version and copies it over LATEST.zip. A failure before
// the final copy leaves any existing LATEST.zip untouched.
func (p *Packager) Pack(ctx context.Context, files collect.Collection, m manifest.Manifest) (*Result, error) {
	logger := log.Component("pack")
	staging := p.opts.StagingDir

	if err := os.RemoveAll(staging); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStaging, err)
	}
	if !p.opts.KeepStaging {
		defer func() {
			if err := os.RemoveAll(staging); err != nil {
				logger.Warn("failed to remove staging directory", "dir", staging, "error", err)
			}
		}()
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStaging, err)
	}

	entries, err := stage(ctx, staging, files)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStaging, err)
	}
	logger.Debug("staged assets", "dir", staging, "files", len(entries))

	scripts, err := p.transformer.Apply(ctx, staging)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransform, err)
	}

	archive := filepath.Join(p.opts.OutputDir, ArchiveName(m.Major, m.Minor))
	if err := p.writeArchive(archive, staging, entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchive, err)
	}

	latest := filepath.Join(p.opts.OutputDir, LatestArchive)
	if err := util.CopyFileAtomic(archive, latest); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchive, err)
	}

	logger.Info("wrote archive", "path", archive, "entries", len(entries), "scripts", scripts)
	return &Result{
		Archive: archive,
		Latest:  latest,
		Entries: len(entries),
		Scripts: scripts,
	}, nil
}

// stage copies every file to staging/<rel> in root order and returns the
// sorted unique relative paths.
func stage(ctx context.Context, staging string, files collect.Collection) ([]string, error) {
	rels := make([]string, 0, files.Len())
	for _, g := range files {
		for _, f := range g.Files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			dst := filepath.Join(staging, filepath.FromSlash(f.Rel))
			if err := util.CopyFile(f.Path, dst); err != nil {
				return nil, err
			}
			rels = append(rels, f.Rel)
		}
	}
	return util.SortedUnique(rels), nil
}

func (p *Packager) writeArchive(path, staging string, entries []string) error {
	return util.WriteAtomic(path, 0o644, func(out io.Writer) error {
		zw := zip.NewWriter(out)
		zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(w, p.opts.Level)
		})

		for _, rel := range entries {
			if err := addFile(zw, filepath.Join(staging, filepath.FromSlash(rel)), rel); err != nil {
				_ = zw.Close()
				return err
			}
		}
		return zw.Close()
	})
}

// addFile adds a file to the zip archive
func addFile(zw *zip.Writer, srcPath, name string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: entryTime,
	}
	header.SetMode(0o644)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, file)
	return err
}

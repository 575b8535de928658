package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/collect"
	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/pipeline"
)

// DefaultDebounce is used when Config.Debounce is not positive.
const DefaultDebounce = 500 * time.Millisecond

// RunFunc performs one pipeline pass.
type RunFunc func(ctx context.Context) (*pipeline.Result, error)

// Config configures the watcher.
type Config struct {
	// Roots are the resolved source directories to watch.
	Roots []string
	// Filter drops paths the collector would skip (manifest, metadata, excludes).
	Filter collect.Predicate
	// Ignore drops absolute paths the pipeline itself writes, such as temp
	// files, staging content and output manifests.
	Ignore   func(path string) bool
	Debounce time.Duration
	Run      RunFunc

	Writer  io.Writer
	Verbose bool
	NoColor bool
	JSON    bool
}

// Watcher watches source roots and re-runs the pipeline on change.
type Watcher struct {
	config    Config
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	logger    *Logger
	ctx       context.Context

	// runMu serializes pipeline runs
	runMu sync.Mutex
}

// New creates a new watcher with the given configuration.
func New(cfg Config) (*Watcher, error) {
	if cfg.Run == nil {
		return nil, fmt.Errorf("watch: no run function configured")
	}
	if cfg.Filter == nil {
		cfg.Filter = collect.All()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		config:    cfg,
		fsWatcher: fsWatcher,
		logger: NewLogger(LoggerConfig{
			Writer:  cfg.Writer,
			Verbose: cfg.Verbose,
			NoColor: cfg.NoColor,
			JSON:    cfg.JSON,
		}),
		ctx: context.Background(),
	}, nil
}

// Run starts the watch loop. It blocks until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.ctx = ctx

	window := w.config.Debounce
	if window <= 0 {
		window = DefaultDebounce
	}
	w.debouncer = NewDebouncer(window, w.handleChanged)
	defer w.debouncer.Stop()

	for _, root := range w.config.Roots {
		if err := w.addRecursive(root); err != nil {
			return fmt.Errorf("failed to watch %s: %w", root, err)
		}
	}

	files, err := collect.Collect(ctx, w.config.Roots, w.config.Filter)
	if err != nil {
		return err
	}
	w.logger.Ready(files.Len(), w.config.Roots)

	for {
		select {
		case <-ctx.Done():
			w.logger.Shutdown()
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(err)
		}
	}
}

// addRecursive adds a directory and all subdirectories to the watcher,
// including directories reached through symlinks.
func (w *Watcher) addRecursive(root string) error {
	dirs, err := collect.Dirs(w.ctx, root)
	if err != nil {
		return err
	}
	for _, path := range dirs {
		if err := w.fsWatcher.Add(path); err != nil {
			if isWatchLimitError(err) {
				return fmt.Errorf("inotify watch limit reached for %s: %w\n"+
					"Increase limit with: sudo sysctl fs.inotify.max_user_watches=524288", path, err)
			}
			if w.config.Verbose {
				w.logger.Error(fmt.Errorf("failed to watch %s: %w", path, err))
			}
		}
	}
	return nil
}

// isWatchLimitError checks if an error is due to inotify watch limits.
func isWatchLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "no space left on device") ||
		strings.Contains(errStr, "too many open files")
}

// relToRoot returns the slash-separated path of p relative to the watched
// root containing it.
func (w *Watcher) relToRoot(p string) (string, bool) {
	for _, root := range w.config.Roots {
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}

// handleEvent processes a single filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if w.config.Ignore != nil && w.config.Ignore(path) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addRecursive(path); err != nil {
				w.logger.Error(fmt.Errorf("failed to watch new directory %s: %w", path, err))
			}
			// Files copied in with the directory produce no events of their own.
			if rel, ok := w.relToRoot(path); ok {
				w.debouncer.Add(rel)
			}
			return
		}
	}

	change, ok := changeTypeOf(event)
	if !ok {
		return
	}

	rel, ok := w.relToRoot(path)
	if !ok || !w.config.Filter(rel) {
		return
	}

	w.logger.FileChanged(rel, change)
	w.debouncer.Add(rel)
}

func changeTypeOf(event fsnotify.Event) (ChangeType, bool) {
	switch {
	case event.Has(fsnotify.Create):
		return ChangeAdded, true
	case event.Has(fsnotify.Write):
		return ChangeModified, true
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		return ChangeDeleted, true
	default:
		return "", false // chmod
	}
}

// handleChanged is called when the debouncer flushes.
func (w *Watcher) handleChanged(paths []string) {
	if len(paths) == 0 {
		return
	}

	w.runMu.Lock()
	defer w.runMu.Unlock()

	if w.ctx.Err() != nil {
		return
	}

	slices.Sort(paths)
	w.logger.Running(paths)

	res, err := w.config.Run(w.ctx)
	if err != nil {
		w.logger.Error(err)
		return
	}

	archive := ""
	if res.Archive != nil {
		archive = filepath.Base(res.Archive.Archive)
	}
	w.logger.Updated(res.Manifest.VersionString(), res.Changed, archive)
}

// Stats returns the session statistics.
func (w *Watcher) Stats() Stats {
	return w.logger.Stats()
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

package watch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/manifest"
	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/pipeline"
	"github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/vcs"
	"github.com/albertocavalcante/assetpatch/pkg/config"
)

func TestIsWatchLimitError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"no space left on device", errors.New("watch /res: no space left on device"), true},
		{"too many open files", errors.New("too many open files"), true},
		{"regular error", os.ErrPermission, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := isWatchLimitError(tt.err); result != tt.expected {
				t.Errorf("isWatchLimitError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

// recorder is a RunFunc that counts invocations.
type recorder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *recorder) run(context.Context) (*pipeline.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &pipeline.Result{
		State:    pipeline.StateDone,
		Manifest: manifest.Build(nil, 1, r.calls),
		Changed:  true,
	}, nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// newTestWatcher builds a watcher with the same filter and ignore rules the
// watch command derives from the pipeline configuration.
func newTestWatcher(t *testing.T, roots []string, run RunFunc) (*Watcher, *bytes.Buffer) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Sources.Roots = roots
	rc, err := pipeline.Prepare(pipeline.Options{Dir: t.TempDir(), Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	w, err := New(Config{
		Roots:    rc.Roots,
		Filter:   rc.Filter,
		Ignore:   rc.IsOutput,
		Debounce: 20 * time.Millisecond,
		Run:      run,
		Writer:   &buf,
		NoColor:  true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	w.debouncer = NewDebouncer(time.Hour, w.handleChanged)
	return w, &buf
}

func TestNewRequiresRunFunc(t *testing.T) {
	if _, err := New(Config{Roots: []string{t.TempDir()}}); err == nil {
		t.Error("New() expected error without a run function")
	}
}

func TestRelToRoot(t *testing.T) {
	src := filepath.Join("/proj", "src")
	res := filepath.Join("/proj", "res")
	w, _ := newTestWatcher(t, []string{src, res}, (&recorder{}).run)

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{filepath.Join(src, "main.lua"), "main.lua", true},
		{filepath.Join(res, "ui", "a.png"), "ui/a.png", true},
		{res, "", false},
		{filepath.Join("/proj", "other", "x.png"), "", false},
	}

	for _, tt := range tests {
		got, ok := w.relToRoot(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("relToRoot(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHandleEventFiltersExcludedFiles(t *testing.T) {
	root := t.TempDir()
	w, _ := newTestWatcher(t, []string{root}, (&recorder{}).run)

	events := []fsnotify.Event{
		{Name: filepath.Join(root, "x.png"), Op: fsnotify.Write},
		{Name: filepath.Join(root, "VERSION.json"), Op: fsnotify.Write},
		{Name: filepath.Join(root, ".DS_Store"), Op: fsnotify.Create},
		{Name: filepath.Join(root, ".VERSION.json.assetpatch-845220257.tmp"), Op: fsnotify.Create},
		{Name: filepath.Join(root, ".VERSION.json.assetpatch-845220257.tmp"), Op: fsnotify.Rename},
		{Name: filepath.Join(root, "ui", "scratch.tmp"), Op: fsnotify.Create},
		{Name: filepath.Join(root, "y.png"), Op: fsnotify.Chmod},
		{Name: filepath.Join(root, "old.png"), Op: fsnotify.Remove},
	}
	for _, e := range events {
		w.handleEvent(e)
	}

	if n := w.debouncer.PendingCount(); n != 3 {
		t.Errorf("pending = %d, want 3 (x.png, ui/scratch.tmp, old.png)", n)
	}
}

func TestHandleEventNewDirectory(t *testing.T) {
	root := t.TempDir()
	w, _ := newTestWatcher(t, []string{root}, (&recorder{}).run)

	sub := filepath.Join(root, "ui")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	w.handleEvent(fsnotify.Event{Name: sub, Op: fsnotify.Create})

	if n := w.debouncer.PendingCount(); n != 1 {
		t.Errorf("pending = %d, want 1", n)
	}
	if !containsPath(w.fsWatcher.WatchList(), sub) {
		t.Errorf("new directory %s should be watched", sub)
	}
}

func containsPath(list []string, p string) bool {
	for _, l := range list {
		if filepath.Clean(l) == filepath.Clean(p) {
			return true
		}
	}
	return false
}

func TestHandleChangedRunsPipeline(t *testing.T) {
	rec := &recorder{}
	w, buf := newTestWatcher(t, []string{t.TempDir()}, rec.run)

	w.handleChanged([]string{"b.png", "a.png"})
	w.handleChanged(nil)

	if rec.count() != 1 {
		t.Errorf("run called %d times, want 1", rec.count())
	}
	if stats := w.Stats(); stats.RunCount != 1 || stats.UpdateCount != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if !bytes.Contains(buf.Bytes(), []byte("version 1.1")) {
		t.Errorf("output missing version: %s", buf.String())
	}
}

func TestHandleChangedReportsErrors(t *testing.T) {
	rec := &recorder{err: errors.New("compiler exploded")}
	w, buf := newTestWatcher(t, []string{t.TempDir()}, rec.run)

	w.handleChanged([]string{"main.lua"})

	if w.Stats().ErrorCount != 1 {
		t.Error("failed run should count as an error")
	}
	if !bytes.Contains(buf.Bytes(), []byte("compiler exploded")) {
		t.Errorf("output missing error: %s", buf.String())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "x.png"), []byte("AA"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, buf := newTestWatcher(t, []string{root}, (&recorder{}).run)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if !bytes.Contains(buf.Bytes(), []byte("watching 1 files")) {
		t.Errorf("ready message missing: %s", buf.String())
	}
}

func TestRunMissingRoot(t *testing.T) {
	w, _ := newTestWatcher(t, []string{filepath.Join(t.TempDir(), "missing")}, (&recorder{}).run)
	if err := w.Run(context.Background()); err == nil {
		t.Error("Run() expected error for missing root")
	}
}

func TestWatcherCloseNilFsWatcher(t *testing.T) {
	w := &Watcher{fsWatcher: nil}
	if err := w.Close(); err != nil {
		t.Errorf("Close() on nil fsWatcher error = %v", err)
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent writes and reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunIgnoresOwnManifestWrites(t *testing.T) {
	dir := t.TempDir()
	res := filepath.Join(dir, "res")
	if err := os.MkdirAll(res, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(res, "a.png"), []byte("A"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.NewConfig()
	cfg.Sources.Roots = []string{"res"}
	noPack := false
	cfg.Pack.Enabled = &noPack
	opts := pipeline.Options{Dir: dir, Config: cfg, VCS: vcs.Static{IsClean: true}}
	if _, err := pipeline.Seed(opts, 1, false); err != nil {
		t.Fatal(err)
	}
	rc, err := pipeline.Prepare(opts)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	runs := 0
	countRuns := func() int {
		mu.Lock()
		defer mu.Unlock()
		return runs
	}

	var out syncBuffer
	w, err := New(Config{
		Roots:    rc.Roots,
		Filter:   rc.Filter,
		Ignore:   rc.IsOutput,
		Debounce: 50 * time.Millisecond,
		Run: func(ctx context.Context) (*pipeline.Result, error) {
			mu.Lock()
			runs++
			mu.Unlock()
			return pipeline.Run(ctx, opts)
		},
		Writer:  &out,
		NoColor: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(res, "b.png"), []byte("B"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for countRuns() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	// Leave time for any events caused by the run's own writes to flush.
	time.Sleep(500 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if n := countRuns(); n != 1 {
		t.Errorf("one edit triggered %d runs, want 1\n%s", n, out.String())
	}
	data, err := os.ReadFile(filepath.Join(res, "VERSION.json"))
	if err != nil {
		t.Fatal(err)
	}
	m, err := manifest.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if m.VersionString() != "1.1" || len(m.Files) != 2 {
		t.Errorf("manifest = %+v, want version 1.1 with 2 files", m)
	}
}

func TestAddRecursiveFollowsSymlinkedRoot(t *testing.T) {
	base := t.TempDir()
	real := filepath.Join(base, "real")
	if err := os.MkdirAll(filepath.Join(real, "ui"), 0o755); err != nil {
		t.Fatal(err)
	}
	res := filepath.Join(base, "res")
	if err := os.Symlink(real, res); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	w, _ := newTestWatcher(t, []string{res}, (&recorder{}).run)

	if err := w.addRecursive(res); err != nil {
		t.Fatalf("addRecursive() error = %v", err)
	}
	if !containsPath(w.fsWatcher.WatchList(), filepath.Join(res, "ui")) {
		t.Errorf("watch list %v missing %s", w.fsWatcher.WatchList(), filepath.Join(res, "ui"))
	}
}

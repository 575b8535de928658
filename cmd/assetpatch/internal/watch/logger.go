package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// ChangeType is the mark printed next to a changed path.
type ChangeType string

const (
	ChangeAdded    ChangeType = "+"
	ChangeModified ChangeType = "~"
	ChangeDeleted  ChangeType = "-"
)

var ansi = map[ChangeType]string{
	ChangeAdded:    "\033[32m",
	ChangeModified: "\033[33m",
	ChangeDeleted:  "\033[31m",
}

// Stats counts what happened during a watch session.
type Stats struct {
	RunCount    int
	UpdateCount int
	ErrorCount  int
	StartTime   time.Time
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
	JSON    bool
}

// Logger writes watch progress as timestamped text or one JSON object per line.
type Logger struct {
	out     io.Writer
	color   bool
	verbose bool
	json    bool

	mu    sync.Mutex
	stats Stats
}

// event is the JSON form of every line the logger writes.
type event struct {
	Event    string   `json:"event"`
	Time     string   `json:"time,omitempty"`
	Files    *int     `json:"files,omitempty"`
	Roots    []string `json:"roots,omitempty"`
	Path     string   `json:"path,omitempty"`
	Paths    []string `json:"paths,omitempty"`
	Change   string   `json:"change,omitempty"`
	Version  string   `json:"version,omitempty"`
	Changed  *bool    `json:"changed,omitempty"`
	Archive  string   `json:"archive,omitempty"`
	Error    string   `json:"error,omitempty"`
	Runs     *int     `json:"runs,omitempty"`
	Updates  *int     `json:"updates,omitempty"`
	Errors   *int     `json:"errors,omitempty"`
	Duration string   `json:"duration,omitempty"`
}

// NewLogger creates a logger. Colors are used only when writing to a terminal.
func NewLogger(cfg LoggerConfig) *Logger {
	out := cfg.Writer
	if out == nil {
		out = os.Stdout
	}

	tty := false
	if f, ok := out.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}

	return &Logger{
		out:     out,
		color:   tty && !cfg.NoColor,
		verbose: cfg.Verbose,
		json:    cfg.JSON,
		stats:   Stats{StartTime: time.Now()},
	}
}

// Ready reports the initial scan.
func (l *Logger) Ready(fileCount int, roots []string) {
	if l.json {
		l.emit(event{Event: "ready", Files: &fileCount, Roots: roots})
		return
	}
	l.linef("assetpatch: watching %d files", fileCount)
	for _, root := range roots {
		l.linef("assetpatch: root %s", root)
	}
	l.linef("assetpatch: ready\n")
}

// FileChanged reports one filesystem change. Text output only in verbose mode.
func (l *Logger) FileChanged(path string, change ChangeType) {
	if l.json {
		l.emit(event{Event: "file_changed", Time: now(), Path: path, Change: string(change)})
		return
	}
	if l.verbose {
		l.stampf("%s %s", l.paint(string(change), change), path)
	}
}

// Running reports that a pipeline run is starting for the given paths.
func (l *Logger) Running(paths []string) {
	l.count(func(s *Stats) { s.RunCount++ })

	switch {
	case l.json:
		l.emit(event{Event: "running", Time: now(), Paths: paths})
	case len(paths) == 1:
		l.stampf("%s changed, hashing...", paths[0])
	default:
		l.stampf("%d files changed, hashing...", len(paths))
	}
}

// Updated reports a finished run. changed reports whether the minor version moved.
func (l *Logger) Updated(version string, changed bool, archive string) {
	if changed {
		l.count(func(s *Stats) { s.UpdateCount++ })
	}

	if l.json {
		l.emit(event{Event: "updated", Time: now(), Version: version, Changed: &changed, Archive: archive})
		return
	}
	if !changed {
		l.stampf("nothing to update (%s)", version)
		return
	}
	msg := fmt.Sprintf("%s version %s", l.paint("✓", ChangeAdded), version)
	if archive != "" {
		msg += ", wrote " + archive
	}
	l.stampf("%s", msg)
}

// Error reports a failed run or watcher error.
func (l *Logger) Error(err error) {
	l.count(func(s *Stats) { s.ErrorCount++ })

	if l.json {
		l.emit(event{Event: "error", Time: now(), Error: err.Error()})
		return
	}
	l.stampf("%s error: %v", l.paint("✗", ChangeDeleted), err)
}

// Shutdown prints the session summary.
func (l *Logger) Shutdown() {
	s := l.Stats()

	if l.json {
		l.emit(event{
			Event:    "shutdown",
			Runs:     &s.RunCount,
			Updates:  &s.UpdateCount,
			Errors:   &s.ErrorCount,
			Duration: time.Since(s.StartTime).String(),
		})
		return
	}
	l.linef("\nassetpatch: shutting down (%d runs, %d updates, %d errors)",
		s.RunCount, s.UpdateCount, s.ErrorCount)
}

// Stats returns a snapshot of the session counters.
func (l *Logger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func (l *Logger) count(f func(*Stats)) {
	l.mu.Lock()
	f(&l.stats)
	l.mu.Unlock()
}

func (l *Logger) paint(s string, change ChangeType) string {
	code, ok := ansi[change]
	if !l.color || !ok {
		return s
	}
	return code + s + "\033[0m"
}

func (l *Logger) emit(ev event) {
	data, err := json.Marshal(ev)
	if err != nil {
		data = []byte(`{"event":"internal_error","error":"json marshal failed"}`)
	}
	l.linef("%s", data)
}

// stampf writes a line prefixed with the wall-clock time.
func (l *Logger) stampf(format string, args ...any) {
	l.linef("[%s] "+format, append([]any{time.Now().Format("15:04:05")}, args...)...)
}

func (l *Logger) linef(format string, args ...any) {
	_, _ = fmt.Fprintf(l.out, format+"\n", args...)
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

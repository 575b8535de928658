package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

var (
	logger    atomic.Pointer[slog.Logger]
	level     *slog.LevelVar
	verbosity atomic.Int32

	outputMu sync.Mutex
	output   io.Writer = os.Stderr
	format             = "text"
)

func init() {
	// Initialize with default logger (warnings only) before Init is called
	level = new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	verbosity.Store(VerbosityWarn)
	logger.Store(slog.New(NewHandler(HandlerOptions{
		Level:  level,
		Format: format,
		Output: output,
	})))
}

// Init initializes the global logger (call once at startup).
func Init(v int, logFormat string) {
	verbosity.Store(int32(v))
	level.Set(VerbosityToLevel(v))

	outputMu.Lock()
	if logFormat != "" {
		format = logFormat
	}
	w, f := output, format
	outputMu.Unlock()

	rebuild(w, f)
}

// SetOutput redirects log output, keeping the current level and format.
// A nil writer restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	outputMu.Lock()
	output = w
	f := format
	outputMu.Unlock()

	rebuild(w, f)
}

func rebuild(w io.Writer, f string) {
	newLogger := slog.New(NewHandler(HandlerOptions{
		Level:     level,
		Format:    f,
		Output:    w,
		AddSource: Verbosity() >= VerbosityTrace,
	}))
	logger.Store(newLogger)
	slog.SetDefault(newLogger)
}

// SetVerbosity changes verbosity at runtime.
func SetVerbosity(v int) {
	verbosity.Store(int32(v))
	level.Set(VerbosityToLevel(v))
}

// RaiseVerbosity sets verbosity to v only if it is currently lower.
func RaiseVerbosity(v int) {
	if Verbosity() < v {
		SetVerbosity(v)
	}
}

// Verbosity returns the current verbosity level.
func Verbosity() int {
	return int(verbosity.Load())
}

// Logger returns the current logger instance.
func Logger() *slog.Logger {
	return logger.Load()
}

// Error logs at error level (v=0).
func Error(msg string, args ...any) {
	logger.Load().Error(msg, args...)
}

// Warn logs at warn level (v=1).
func Warn(msg string, args ...any) {
	logger.Load().Warn(msg, args...)
}

// Info logs at info level (v=2).
func Info(msg string, args ...any) {
	logger.Load().Info(msg, args...)
}

// Debug logs at debug level (v=3).
func Debug(msg string, args ...any) {
	logger.Load().Debug(msg, args...)
}

// Trace logs at trace level (v=4).
func Trace(msg string, args ...any) {
	logger.Load().Log(context.Background(), LevelTrace, msg, args...)
}

// V returns a logger that only logs if verbosity >= level.
// Usage: log.V(3).Info("detailed", "key", value)
func V(v int) *slog.Logger {
	if int(verbosity.Load()) >= v {
		return logger.Load()
	}
	return slog.New(discardHandler{})
}

// With returns a logger with additional context.
func With(args ...any) *slog.Logger {
	return logger.Load().With(args...)
}

// Component returns a logger tagged with component name.
func Component(name string) *slog.Logger {
	return logger.Load().With("component", name)
}

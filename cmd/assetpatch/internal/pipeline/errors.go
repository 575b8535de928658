package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindOther Kind = iota
	KindConfiguration
	KindManifestLoad
	KindFileRead
	KindExternalTool
	KindArchiveWrite
	KindManifestWrite
)

var kindNames = map[Kind]string{
	KindOther:         "error",
	KindConfiguration: "configuration error",
	KindManifestLoad:  "manifest load error",
	KindFileRead:      "file read error",
	KindExternalTool:  "external tool error",
	KindArchiveWrite:  "archive write error",
	KindManifestWrite: "manifest write error",
}

// String returns a human-readable kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ExitCode returns the process exit status for the kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindConfiguration:
		return 2
	case KindManifestLoad:
		return 3
	case KindFileRead:
		return 4
	case KindExternalTool:
		return 5
	case KindArchiveWrite:
		return 6
	case KindManifestWrite:
		return 7
	default:
		return 1
	}
}

// Error is a classified pipeline failure.
type Error struct {
	Kind Kind
	Path string // offending file or directory, if known
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

func newError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// fileReadError classifies err as a read failure, recovering the path from
// a wrapped *fs.PathError when present.
func fileReadError(fallback string, err error) *Error {
	path := fallback
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		path = pathErr.Path
	}
	return newError(KindFileRead, path, err)
}

// KindOf returns the kind of err, or KindOther if err is not a pipeline error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindOther
}

// ExitCode maps err to a process exit status. A nil error maps to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}

package taskfile

import (
	"errors"
	"fmt"
)

// ErrNotATaskFile is returned for files without a remote_id in their
// frontmatter. Callers treat it as a skip.
var ErrNotATaskFile = errors.New("not a task file")

// ErrNoFreePath is returned when every disambiguated file name is taken.
var ErrNoFreePath = errors.New("no free file name")

// Error is a failed task file operation.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Err: err}
}

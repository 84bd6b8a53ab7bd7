package runner

import (
	"errors"
	"fmt"
)

// ErrBrokenPipe is wrapped when the tool stopped reading file names before
// all of them were written.
var ErrBrokenPipe = errors.New("broken pipe: tool exited before reading all file names")

// ToolExecutionError reports a failed tag tool run. The destination file is
// never modified when this error is returned.
type ToolExecutionError struct {
	Executable string
	// Op is the failing step: prepare, start, feed, run, concat or publish.
	Op string
	// ExitCode is the tool's exit status, or -1 if it did not exit normally.
	ExitCode int
	Err      error
}

func (e *ToolExecutionError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("%s exited with status %d", e.Executable, e.ExitCode)
	}
	if e.Executable == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Executable, e.Op, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

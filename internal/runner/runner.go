// Package runner invokes the external tag generator and publishes its
// output atomically.
//
// The tool always writes to a temporary file. Only a successful run is
// renamed over the destination, so readers of a tags file see either the
// previous or the new content, never a partial write.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// Invocation describes one tool run.
type Invocation struct {
	Executable string
	Args       []string
	FinalPath  string
	TempPath   string
	// Files, when non-nil, is streamed to the tool's standard input as
	// newline-terminated paths.
	Files iter.Seq[string]
}

// CommandLine returns the argument vector the tool is started with.
func (inv Invocation) CommandLine() []string {
	argv := make([]string, 0, len(inv.Args)+3)
	argv = append(argv, inv.Executable, "-o", inv.TempPath)
	return append(argv, inv.Args...)
}

// Runner runs tag tools. The zero value discards the tool's standard output
// and forwards its standard error to os.Stderr.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	// Env is appended to the current environment of the tool.
	Env []string
	// Timeout bounds a single run; zero waits indefinitely.
	Timeout time.Duration
}

// Run executes inv and publishes its output. On any failure the temporary
// file is removed, FinalPath is left untouched and a *ToolExecutionError
// is returned.
func (r *Runner) Run(ctx context.Context, inv Invocation) error {
	if err := prepare(inv.TempPath, inv.FinalPath); err != nil {
		return &ToolExecutionError{Executable: inv.Executable, Op: "prepare", ExitCode: -1, Err: err}
	}
	if err := r.execute(ctx, inv); err != nil {
		removeTemp(inv.TempPath)
		return err
	}
	if err := Publish(inv.TempPath, inv.FinalPath); err != nil {
		removeTemp(inv.TempPath)
		return &ToolExecutionError{Executable: inv.Executable, Op: "publish", ExitCode: -1, Err: err}
	}
	slog.Debug("published tags file", "path", inv.FinalPath)
	return nil
}

func (r *Runner) execute(ctx context.Context, inv Invocation) error {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	runCtx := ctx
	ctx, cancel := context.WithCancel(runCtx)
	defer cancel()

	fail := func(op string, err error) error {
		return &ToolExecutionError{Executable: inv.Executable, Op: op, ExitCode: -1, Err: err}
	}

	// Truncate-or-create so a stale temp file from a crashed run is never
	// published by a tool that writes nothing.
	out, err := os.OpenFile(inv.TempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fail("prepare", err)
	}
	if err := out.Close(); err != nil {
		return fail("prepare", err)
	}

	argv := inv.CommandLine()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdin io.WriteCloser
	if inv.Files != nil {
		if stdin, err = cmd.StdinPipe(); err != nil {
			return fail("start", err)
		}
	}

	slog.Debug("running tag tool", "argv", argv)
	if err := cmd.Start(); err != nil {
		return fail("start", err)
	}

	var g errgroup.Group
	if stdin != nil {
		g.Go(func() error {
			n, err := feed(stdin, inv.Files)
			if err != nil {
				cancel()
				return err
			}
			slog.Debug("fed file names", "count", n)
			return nil
		})
	}

	waitErr := cmd.Wait()
	feedErr := g.Wait()

	var exitErr *exec.ExitError
	switch {
	case errors.As(waitErr, &exitErr) && exitErr.ExitCode() > 0:
		return &ToolExecutionError{Executable: inv.Executable, Op: "run", ExitCode: exitErr.ExitCode(), Err: waitErr}
	case runCtx.Err() != nil && (waitErr != nil || feedErr != nil):
		return fail("run", fmt.Errorf("%w: %w", runCtx.Err(), errors.Join(waitErr, feedErr)))
	case feedErr != nil:
		return fail("feed", feedErr)
	case waitErr != nil:
		return fail("run", waitErr)
	}
	return nil
}

// feed writes every path followed by a newline and closes w.
func feed(w io.WriteCloser, files iter.Seq[string]) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0
	for path := range files {
		if _, err := bw.WriteString(path); err != nil {
			_ = w.Close()
			return n, pipeError(err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			_ = w.Close()
			return n, pipeError(err)
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		_ = w.Close()
		return n, pipeError(err)
	}
	if err := w.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return n, pipeError(err)
	}
	return n, nil
}

func pipeError(err error) error {
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrBrokenPipe, err)
	}
	return err
}

func prepare(paths ...string) error {
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", p, err)
		}
	}
	return nil
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove temporary tags file", "path", path, "error", err)
	}
}

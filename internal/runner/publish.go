package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
)

// Publish atomically replaces finalPath with tempPath. The temporary file
// is synced first so a crash after the rename cannot expose an empty file.
//
// When the two paths are on different filesystems the content is copied to
// a hidden file beside finalPath and renamed from there, which keeps the
// replacement atomic.
func Publish(tempPath, finalPath string) error {
	if err := syncFile(tempPath); err != nil {
		return err
	}
	err := os.Rename(tempPath, finalPath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	slog.Debug("temp dir is on another filesystem, copying", "from", tempPath, "to", finalPath)
	if err := publishCopy(tempPath, finalPath); err != nil {
		return err
	}
	return os.Remove(tempPath)
}

func publishCopy(src, finalPath string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(finalPath), "."+filepath.Base(finalPath)+".*")
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}

	if _, err := io.Copy(tmp, in); err != nil {
		return cleanup(err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		return cleanup(err)
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return cleanup(err)
	}
	return nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Concat writes the concatenation of sources to tempPath and publishes it
// to finalPath. It is used for a flattened master tags file, which needs
// no tool run.
func (r *Runner) Concat(ctx context.Context, sources []string, finalPath, tempPath string) error {
	fail := func(op string, err error) error {
		return &ToolExecutionError{Op: op, ExitCode: -1, Err: err}
	}
	if err := prepare(tempPath, finalPath); err != nil {
		return fail("prepare", err)
	}
	if err := concat(ctx, sources, tempPath); err != nil {
		removeTemp(tempPath)
		return fail("concat", err)
	}
	if err := Publish(tempPath, finalPath); err != nil {
		removeTemp(tempPath)
		return fail("publish", err)
	}
	return nil
}

func concat(ctx context.Context, sources []string, tempPath string) error {
	out, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			_ = out.Close()
			return err
		}
		if err := appendFile(out, src); err != nil {
			_ = out.Close()
			return fmt.Errorf("reading %s: %w", src, err)
		}
	}
	return out.Close()
}

func appendFile(w io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(w, in)
	return err
}

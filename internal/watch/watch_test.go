package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/update-etags/internal/config"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
	fired chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan struct{}, 16)}
}

func (r *recorder) onChange(_ context.Context, changed []string) error {
	r.mu.Lock()
	r.calls = append(r.calls, changed)
	r.mu.Unlock()
	r.fired <- struct{}{}
	return nil
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func project(t *testing.T) config.ProjectSpec {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	return config.ProjectSpec{
		Name:       "proj",
		SourcePath: root,
		FileTypes:  []string{"*.py"},
		SkipDirs:   []string{".git"},
	}
}

func start(t *testing.T, cfg Config) {
	t.Helper()
	w, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errCh)
	})
}

func TestDebounceCoalescesEvents(t *testing.T) {
	t.Parallel()
	p := project(t)
	rec := newRecorder()
	start(t, Config{
		Projects: []config.ProjectSpec{p},
		Debounce: 150 * time.Millisecond,
		OnChange: rec.onChange,
	})

	for _, name := range []string{"a.py", "b.py", "c.py"} {
		require.NoError(t, os.WriteFile(filepath.Join(p.SourcePath, name), []byte("x = 1\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-rec.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	time.Sleep(300 * time.Millisecond)

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	for _, name := range []string{"a.py", "b.py", "c.py"} {
		assert.Contains(t, calls[0], filepath.Join(p.SourcePath, name))
	}
}

func TestIgnoresUnmatchedAndSkippedPaths(t *testing.T) {
	t.Parallel()
	p := project(t)
	rec := newRecorder()
	start(t, Config{
		Projects: []config.ProjectSpec{p},
		Debounce: 50 * time.Millisecond,
		OnChange: rec.onChange,
	})

	require.NoError(t, os.WriteFile(filepath.Join(p.SourcePath, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(p.SourcePath, ".git", "hook.py"), []byte("x"), 0o644))

	select {
	case <-rec.fired:
		t.Fatalf("unexpected callback: %v", rec.snapshot())
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatchesNewDirectories(t *testing.T) {
	t.Parallel()
	p := project(t)
	rec := newRecorder()
	start(t, Config{
		Projects: []config.ProjectSpec{p},
		Debounce: 100 * time.Millisecond,
		OnChange: rec.onChange,
	})

	sub := filepath.Join(p.SourcePath, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	select {
	case <-rec.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for directory callback")
	}

	file := filepath.Join(sub, "mod.py")
	require.NoError(t, os.WriteFile(file, []byte("x = 1\n"), 0o644))
	select {
	case <-rec.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for file callback")
	}

	calls := rec.snapshot()
	assert.Contains(t, calls[len(calls)-1], file)
}

func TestProjectsWithoutSourceIgnored(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Projects: []config.ProjectSpec{{Name: "empty"}}})
	require.NoError(t, err)
	assert.Empty(t, w.fsw.WatchList())
	require.NoError(t, w.fsw.Close())
}

func TestRunTwice(t *testing.T) {
	t.Parallel()
	p := project(t)

	w, err := New(Config{Projects: []config.ProjectSpec{p}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))
	assert.Error(t, w.Run(ctx))
}

func TestSkipped(t *testing.T) {
	t.Parallel()
	p := project(t)
	w := &Watcher{}

	assert.True(t, w.skipped(p, filepath.Join(p.SourcePath, ".git")))
	assert.True(t, w.skipped(p, filepath.Join(p.SourcePath, ".git", "x.py")))
	assert.False(t, w.skipped(p, filepath.Join(p.SourcePath, "main.py")))
	// A file named like a skip-dir is not itself skipped.
	assert.False(t, w.skipped(p, filepath.Join(p.SourcePath, "src", ".git")))
}

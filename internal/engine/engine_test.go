package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/update-etags/internal/config"
	"github.com/phobologic/update-etags/internal/runner"
	"github.com/phobologic/update-etags/internal/testutil"
)

func TestMain(m *testing.M) {
	testutil.MaybeRunFakeTool()
	os.Exit(m.Run())
}

type call struct {
	inv     runner.Invocation
	files   []string
	sources []string
}

type recordingRunner struct {
	calls []call
	fail  map[string]error
}

func (r *recordingRunner) Run(_ context.Context, inv runner.Invocation) error {
	c := call{inv: inv}
	if inv.Files != nil {
		c.files = slices.Collect(inv.Files)
	}
	r.calls = append(r.calls, c)
	return r.fail[filepath.Base(inv.FinalPath)]
}

func (r *recordingRunner) Concat(_ context.Context, sources []string, finalPath, tempPath string) error {
	r.calls = append(r.calls, call{
		inv:     runner.Invocation{FinalPath: finalPath, TempPath: tempPath},
		sources: sources,
	})
	return r.fail[filepath.Base(finalPath)]
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func loadConfig(t *testing.T, text string) *config.Config {
	t.Helper()
	raw, err := config.Parse(strings.NewReader(text))
	require.NoError(t, err)
	cfg, err := config.Resolve(raw)
	require.NoError(t, err)
	return cfg
}

func sampleConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	root := tempDir(t)
	writeFile(t, root, "src/a/main.py", "")
	writeFile(t, root, "src/a/skip/keep.py", "")
	writeFile(t, root, "src/a/notes.txt", "")
	writeFile(t, root, "src/b/lib.c", "")

	cfg := loadConfig(t, `
tags-dir: `+root+`/tags
skip-dirs: ["skip"]
projects:
  - name: A
    path: `+root+`/src/a
    file-types: ["*.py"]
  - name: B
    path: `+root+`/src/b
  - name: C
`)
	return cfg, root
}

func TestUpdateAllOrderAndArguments(t *testing.T) {
	t.Parallel()

	cfg, root := sampleConfig(t)
	rec := &recordingRunner{}

	results, err := New(rec).UpdateAll(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, rec.calls, 4)

	a, b, c, master := rec.calls[0], rec.calls[1], rec.calls[2], rec.calls[3]

	assert.Equal(t, filepath.Join(root, "tags", "A"), a.inv.FinalPath)
	assert.Equal(t, filepath.Join(root, "tags", "temp", "A"), a.inv.TempPath)
	assert.Equal(t, []string{filepath.Join(root, "src", "a", "main.py")}, a.files)
	assert.Equal(t, []string{"-"}, a.inv.Args)
	assert.Equal(t, "etags", a.inv.Executable)

	assert.Equal(t, []string{filepath.Join(root, "src", "b", "lib.c")}, b.files)

	assert.Nil(t, c.inv.Files, "a project without a path gets no file stream")

	assert.Nil(t, master.inv.Files)
	assert.Equal(t, filepath.Join(root, "tags", "TAGS"), master.inv.FinalPath)
	assert.Equal(t, []string{
		"--include", filepath.Join(root, "tags", "A"),
		"--include", filepath.Join(root, "tags", "B"),
		"--include", filepath.Join(root, "tags", "C"),
	}, master.inv.Args)

	require.Len(t, results, 4)
	for _, r := range results {
		assert.Equal(t, StatusUpdated, r.Status, r.Project)
	}
	assert.True(t, results[3].Master)
}

func TestUpdateAllContinuesAfterFailureAndSkipsMaster(t *testing.T) {
	t.Parallel()

	cfg, _ := sampleConfig(t)
	boom := errors.New("boom")
	rec := &recordingRunner{fail: map[string]error{"A": boom}}

	results, err := New(rec).UpdateAll(context.Background(), cfg)
	require.Error(t, err)

	require.Len(t, rec.calls, 3, "B and C still run, master does not")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrMasterSkipped)

	var pe *ProjectError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "A", pe.Project)
	assert.Contains(t, err.Error(), "project A: boom")

	require.Len(t, results, 4)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, StatusUpdated, results[1].Status)
	assert.Equal(t, StatusSkipped, results[3].Status)
}

func TestUpdateAllMasterFailure(t *testing.T) {
	t.Parallel()

	cfg, _ := sampleConfig(t)
	rec := &recordingRunner{fail: map[string]error{"TAGS": errors.New("include failed")}}

	results, err := New(rec).UpdateAll(context.Background(), cfg)
	require.Error(t, err)

	var pe *ProjectError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "TAGS", pe.Project)
	assert.Equal(t, StatusFailed, results[3].Status)
}

func TestUpdateAllNoMaster(t *testing.T) {
	t.Parallel()

	cfg, _ := sampleConfig(t)
	rec := &recordingRunner{}
	e := New(rec)
	e.NoMaster = true

	results, err := e.UpdateAll(context.Background(), cfg)
	require.NoError(t, err)
	assert.Len(t, rec.calls, 3)
	assert.Len(t, results, 3)
}

func TestUpdateAllFlattenedMaster(t *testing.T) {
	t.Parallel()

	root := tempDir(t)
	cfg := loadConfig(t, `
tags-dir: `+root+`
projects:
  - name: A
  - name: B
master:
  name: ALL
  flatten: true
`)
	rec := &recordingRunner{}
	_, err := New(rec).UpdateAll(context.Background(), cfg)
	require.NoError(t, err)

	master := rec.calls[2]
	assert.Equal(t, []string{filepath.Join(root, "A"), filepath.Join(root, "B")}, master.sources)
	assert.Equal(t, filepath.Join(root, "ALL"), master.inv.FinalPath)
}

func TestUpdateAllCancelled(t *testing.T) {
	t.Parallel()

	cfg, _ := sampleConfig(t)
	rec := &recordingRunner{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(rec).UpdateAll(ctx, cfg)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.calls)
}

func TestUpdateAllEndToEnd(t *testing.T) {
	t.Parallel()

	cfg, root := sampleConfig(t)
	exe, env := testutil.FakeTool(testutil.ModeOK)
	cfg.Master.Executable = exe
	for i := range cfg.Projects {
		cfg.Projects[i].Executable = exe
	}

	e := New(&runner.Runner{Env: env})
	_, err := e.UpdateAll(context.Background(), cfg)
	require.NoError(t, err)

	tagsA, err := os.ReadFile(filepath.Join(root, "tags", "A"))
	require.NoError(t, err)
	assert.Equal(t, "args: -\nfile: "+filepath.Join(root, "src", "a", "main.py")+"\n", string(tagsA))

	master, err := os.ReadFile(filepath.Join(root, "tags", "TAGS"))
	require.NoError(t, err)
	assert.Contains(t, string(master), string(tagsA))
	assert.Contains(t, string(master), "file: "+filepath.Join(root, "src", "b", "lib.c"))

	entries, err := os.ReadDir(filepath.Join(root, "tags", "temp"))
	require.NoError(t, err)
	assert.Empty(t, entries, "temp dir must be empty after a run")

	// A second run over an unchanged tree produces identical files.
	_, err = e.UpdateAll(context.Background(), cfg)
	require.NoError(t, err)
	again, err := os.ReadFile(filepath.Join(root, "tags", "TAGS"))
	require.NoError(t, err)
	assert.Equal(t, master, again)
}

func TestUpdateAllEndToEndFailure(t *testing.T) {
	t.Parallel()

	cfg, root := sampleConfig(t)
	okExe, env := testutil.FakeTool(testutil.ModeOK)
	cfg.Master.Executable = okExe
	for i := range cfg.Projects {
		cfg.Projects[i].Executable = okExe
	}
	cfg.Projects[1].Executable = filepath.Join(root, "missing-etags")

	_, err := New(&runner.Runner{Env: env}).UpdateAll(context.Background(), cfg)
	require.Error(t, err)

	assert.FileExists(t, filepath.Join(root, "tags", "A"))
	assert.NoFileExists(t, filepath.Join(root, "tags", "B"))
	assert.FileExists(t, filepath.Join(root, "tags", "C"))
	assert.NoFileExists(t, filepath.Join(root, "tags", "TAGS"))
	assert.NoFileExists(t, filepath.Join(root, "tags", "temp", "B"))
}

// tempDir returns a symlink-free temp dir so paths compare equal after
// normalization.
func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

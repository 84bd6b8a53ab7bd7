package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/update-etags/internal/config"
)

func TestGenerateStarter(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	content, err := generateStarter([]string{filepath.Join(dir, "api"), filepath.Join(dir, "other", "api")})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(content, "# update-etags configuration."))

	raw, err := config.Parse(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, raw.Projects, 2)
	assert.Equal(t, "api", raw.Projects[0].Name)
	assert.Equal(t, "api-2", raw.Projects[1].Name)
	assert.Equal(t, filepath.Join(dir, "other", "api"), *raw.Projects[1].Path)
	assert.Equal(t, starterFileTypes, raw.Projects[0].FileTypes)
	require.NotNil(t, raw.Master)
	assert.Equal(t, config.DefaultMasterName, raw.Master.Name)
}

func TestInitDryRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")

	stdout, _, err := execute(t, "init", "--dry-run", "--dir", dir, path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "path: "+dir)
	assert.NoFileExists(t, path)
}

func TestInitWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")

	_, stderr, err := execute(t, "init", "--dir", dir, path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "wrote configuration")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Projects, 1)
	assert.Equal(t, filepath.Base(dir), cfg.Projects[0].Name)
}

func TestInitRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keep: me\n"), 0o644))

	_, _, err := execute(t, "init", "--dir", dir, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep: me\n", string(data))

	_, _, err = execute(t, "init", "--force", "--dir", dir, path)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "projects:")
}

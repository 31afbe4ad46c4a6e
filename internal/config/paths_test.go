package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaths(t *testing.T) {
	root := t.TempDir()

	paths, err := NewPaths(PathsConfig{RootDir: root, ReportsDir: "out"})
	require.NoError(t, err)

	assert.Equal(t, root, paths.RootDir)
	assert.Equal(t, filepath.Join(root, DefaultDataDir), paths.DataDir)
	assert.Equal(t, filepath.Join(root, "out"), paths.ReportsDir)
	assert.Equal(t, filepath.Join(root, DefaultLogsDir), paths.LogsDir)
	assert.Equal(t, filepath.Join(root, "out", "ranking.csv"), paths.GetReportPath("ranking.csv"))
	assert.Equal(t, filepath.Join(root, "data", "x.csv"), paths.Resolve("data/x.csv"))
	assert.Equal(t, "/abs/x.csv", paths.Resolve("/abs/x.csv"))
}

func TestNewPaths_AbsoluteEntriesPassThrough(t *testing.T) {
	abs := t.TempDir()
	paths, err := NewPaths(PathsConfig{RootDir: ".", LogsDir: abs})
	require.NoError(t, err)
	assert.Equal(t, abs, paths.LogsDir)
}

func TestPaths_EnsureDirectories(t *testing.T) {
	root := t.TempDir()
	paths, err := NewPaths(PathsConfig{RootDir: root})
	require.NoError(t, err)

	require.NoError(t, paths.EnsureDirectories())

	for _, dir := range []string{paths.DataDir, paths.ReportsDir, paths.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	assert.True(t, FileExists(paths.ReportsDir))
	assert.False(t, FileExists(filepath.Join(root, "missing")))
}

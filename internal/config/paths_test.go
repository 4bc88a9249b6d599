package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPathsLayout(t *testing.T) {
	t.Run("resolves absolute layout", func(t *testing.T) {
		layout, err := GetPaths()
		require.NoError(t, err)
		require.NotNil(t, layout)

		assert.True(t, filepath.IsAbs(layout.ExecutableDir))
		assert.True(t, filepath.IsAbs(layout.SamplesDir))
		assert.True(t, filepath.IsAbs(layout.LogsDir))
		assert.True(t, filepath.IsAbs(layout.LogFile))

		// Derived directories hang off the executable location.
		assert.Equal(t, filepath.Join(layout.ExecutableDir, DefaultSamplesDir), layout.SamplesDir)
		assert.Equal(t, filepath.Join(layout.ExecutableDir, DefaultLogsDir), layout.LogsDir)
		assert.Equal(t, filepath.Join(layout.LogsDir, "app.log"), layout.LogFile)
	})

	t.Run("stable across calls", func(t *testing.T) {
		first, err := GetPaths()
		require.NoError(t, err)

		second, err := GetPaths()
		require.NoError(t, err)

		assert.Equal(t, first.ExecutableDir, second.ExecutableDir)
		assert.Equal(t, first.SamplesDir, second.SamplesDir)
		assert.Equal(t, first.LogsDir, second.LogsDir)
	})
}

func TestGetSamplePath(t *testing.T) {
	layout, err := GetPaths()
	require.NoError(t, err)

	got := layout.GetSamplePath("river.csv")
	assert.Equal(t, filepath.Join(layout.SamplesDir, "river.csv"), got)
}

func TestEnsureDirectoriesCreates(t *testing.T) {
	root := t.TempDir()
	layout := &Paths{
		ExecutableDir: root,
		SamplesDir:    filepath.Join(root, "samples"),
		LogsDir:       filepath.Join(root, "logs"),
		LogFile:       filepath.Join(root, "logs", "app.log"),
	}

	require.NoError(t, layout.EnsureDirectories())

	for _, d := range []string{layout.SamplesDir, layout.LogsDir} {
		info, err := os.Stat(d)
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir())
	}

	// Second call is a no-op
	assert.NoError(t, layout.EnsureDirectories())
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths locates everything the app reads or writes on disk. All of it
// lives next to the binary, never under the working directory, so
// launching from a shortcut or a service manager behaves the same.
type Paths struct {
	ExecutableDir string
	SamplesDir    string
	LogsDir       string
	LogFile       string
}

// GetPaths resolves the executable location and derives the data
// directories from it.
func GetPaths() (*Paths, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	// A symlinked binary should anchor paths at its real location
	exePath, err = filepath.EvalSymlinks(exePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	exeDir := filepath.Dir(exePath)
	logsDir := filepath.Join(exeDir, DefaultLogsDir)

	return &Paths{
		ExecutableDir: exeDir,
		SamplesDir:    filepath.Join(exeDir, DefaultSamplesDir),
		LogsDir:       logsDir,
		LogFile:       filepath.Join(logsDir, "app.log"),
	}, nil
}

// EnsureDirectories creates the samples and logs directories when
// missing. Safe to call repeatedly.
func (ps *Paths) EnsureDirectories() error {
	for _, d := range []string{ps.SamplesDir, ps.LogsDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", d, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", d))
	}
	return nil
}

// GetSamplePath returns the on-disk path of a bundled sample dataset.
func (ps *Paths) GetSamplePath(filename string) string {
	return filepath.Join(ps.SamplesDir, filename)
}

// LogPathResolution writes the resolved directory layout to the log,
// for diagnosing a binary launched from an unexpected place.
func (ps *Paths) LogPathResolution() {
	slog.Default().Info("Path resolution summary",
		slog.Group("directories",
			slog.String("executable", ps.ExecutableDir),
			slog.String("samples", ps.SamplesDir),
			slog.String("logs", ps.LogsDir),
		))
}

package files

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/k-laffite/water-quality-visualizer/internal/config"
)

// Manager is the application's access point to the sample dataset library.
// It composes a Discovery for the read side and adds seeding of bundled
// datasets on the write side.
type Manager struct {
	paths     *config.Paths
	discovery *Discovery
}

// NewManager creates a manager over the sample directory from paths.
func NewManager(paths *config.Paths) *Manager {
	return &Manager{
		paths:     paths,
		discovery: NewDiscovery(paths.SamplesDir),
	}
}

// Samples exposes the discovery view of the sample directory.
func (m *Manager) Samples() *Discovery {
	return m.discovery
}

// ListSamples returns the datasets available for loading, oldest first.
func (m *Manager) ListSamples() ([]FileInfo, error) {
	return m.discovery.List()
}

// ReadSample resolves name inside the sample directory and returns its
// contents.
func (m *Manager) ReadSample(name string) ([]byte, error) {
	path, err := m.discovery.Resolve(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sample %s: %w", name, err)
	}

	slog.Debug("Read sample dataset",
		slog.String("name", name),
		slog.Int("bytes", len(data)))

	return data, nil
}

// SeedSamples writes the given bundled datasets into the sample directory,
// skipping any that already exist so user edits survive restarts. It
// returns the number of datasets written.
func (m *Manager) SeedSamples(datasets map[string][]byte) (int, error) {
	if len(datasets) == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(m.paths.SamplesDir, 0755); err != nil {
		return 0, fmt.Errorf("create sample directory: %w", err)
	}

	// Deterministic order keeps logs and partial-failure behavior stable.
	names := make([]string, 0, len(datasets))
	for name := range datasets {
		names = append(names, name)
	}
	sort.Strings(names)

	seeded := 0
	for _, name := range names {
		if err := ValidateSampleName(name); err != nil {
			return seeded, err
		}

		path := m.paths.GetSamplePath(name)
		if _, err := os.Stat(path); err == nil {
			continue
		}

		if err := os.WriteFile(path, datasets[name], 0644); err != nil {
			return seeded, fmt.Errorf("seed sample %s: %w", name, err)
		}

		slog.Info("Seeded sample dataset",
			slog.String("name", name),
			slog.Int("bytes", len(datasets[name])))
		seeded++
	}

	return seeded, nil
}

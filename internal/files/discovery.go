package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Supported sample dataset extensions.
const (
	SampleExtCSV  = ".csv"
	SampleExtXLSX = ".xlsx"
)

var (
	// ErrNotFound reports that no sample with the requested name exists.
	ErrNotFound = errors.New("sample not found")

	// ErrInvalidName reports a sample name that is empty, hidden, contains
	// path separators or parent references, or carries an unsupported
	// extension.
	ErrInvalidName = errors.New("invalid sample name")
)

// FileInfo describes a discovered sample dataset.
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery lists and resolves sample datasets inside a single directory.
// Names handed to Resolve never escape that directory: separators, parent
// references, and hidden files are all rejected before any path is built.
type Discovery struct {
	dir string
}

// NewDiscovery creates a discovery rooted at the given sample directory.
func NewDiscovery(dir string) *Discovery {
	return &Discovery{dir: dir}
}

// Dir returns the directory this discovery reads from.
func (d *Discovery) Dir() string {
	return d.dir
}

// List returns the sample datasets in the directory sorted by modification
// time, oldest first. Entries with equal times sort by name so the order is
// stable. A missing directory yields an empty list rather than an error.
func (d *Discovery) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sample directory: %w", err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !supportedExt(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(d.dir, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name < files[j].Name
		}
		return files[i].ModTime.Before(files[j].ModTime)
	})

	return files, nil
}

// Resolve maps a bare sample name to its path inside the directory. The
// name is validated before any filesystem access, so a crafted name cannot
// reach files outside the sample directory.
func (d *Discovery) Resolve(name string) (string, error) {
	if err := ValidateSampleName(name); err != nil {
		return "", err
	}

	path := filepath.Join(d.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("stat sample %s: %w", name, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return path, nil
}

// ValidateSampleName rejects names that are empty, hidden, contain path
// separators or parent references, or carry an unsupported extension.
func ValidateSampleName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`),
		strings.Contains(name, ".."),
		name != filepath.Base(name):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !supportedExt(name) {
		return fmt.Errorf("%w: unsupported extension %q", ErrInvalidName, filepath.Ext(name))
	}
	return nil
}

// IsWorkbook reports whether name refers to an xlsx workbook rather than
// CSV text.
func IsWorkbook(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == SampleExtXLSX
}

func supportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case SampleExtCSV, SampleExtXLSX:
		return true
	}
	return false
}

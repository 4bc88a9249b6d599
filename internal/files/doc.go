// Package files manages the bundled sample dataset library.
//
// This package contains two main components:
//
// Discovery: Lists the .csv and .xlsx datasets inside the sample directory
// and resolves bare sample names to paths. Resolution is traversal-safe:
// names containing separators, parent references, or unsupported extensions
// are rejected before any filesystem access.
//
// Manager: Wraps a Discovery with the application paths and adds seeding of
// bundled datasets into the sample directory at startup. Existing files are
// never overwritten, so user edits to seeded samples survive restarts.
//
// Example usage:
//
//	manager := files.NewManager(paths)
//
//	// Make the bundled datasets available for loading
//	seeded, err := manager.SeedSamples(bundled)
//
//	// List what can be loaded
//	samples, err := manager.ListSamples()
//
//	// Read one by name
//	data, err := manager.ReadSample("river_readings.csv")
package files

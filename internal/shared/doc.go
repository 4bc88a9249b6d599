// Package shared provides utilities used across the water quality
// visualizer that do not belong to any specific domain or
// architectural layer.
//
// # Structure
//
// The package currently holds one component:
//
//   - testutil: testing utilities shared by package tests
//
// # Usage Guidelines
//
// This package should only contain:
//
//  1. Test utilities used by multiple packages
//  2. Generic helpers with no domain-specific logic
//
// It should NOT contain business logic or circular dependencies with
// other internal packages.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//   - CSV and Excel workbook fixtures for parser and service tests
//   - A buffered slog handler with assertion helpers, so tests can
//     verify structured log output without touching global state
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, handler := testutil.NewTestLogger(t)
//	    svc := NewService(logger)
//
//	    svc.Do()
//
//	    testutil.AssertLogContains(t, handler, slog.LevelInfo, "done")
//	}
package shared

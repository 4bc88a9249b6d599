// Package contracts carries the definitions shared between the server
// and its clients: the application version, the versioned request
// types under api/v1, and the websocket event payloads under events.
package contracts

import "fmt"

const (
	// Version is the current version of the application
	Version = "0.1.0"

	// APIVersion is the version of the HTTP and WebSocket API
	APIVersion = "v1"
)

// GetVersionString returns a formatted version string
func GetVersionString() string {
	return fmt.Sprintf("Water Quality Visualizer v%s", Version)
}

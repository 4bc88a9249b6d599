// Package config loads and validates the application configuration for
// the water quality visualizer. It merges several sources into one
// typed tree and exposes the on-disk layout the rest of the code
// builds on.
//
// # Configuration Sources
//
// Values are resolved by layering, where later sources win:
//
//	1. Struct tag defaults
//	2. A config.yaml file, when one is present
//	3. Environment variables
//
// # Environment Variables
//
// Every variable is namespaced under the WQV_ prefix:
//
//	WQV_SERVER_PORT=8080
//	WQV_LOGGING_LEVEL=info
//	WQV_LIMITS_MAX_UPLOAD_BYTES=10485760
//	WQV_PATHS_SAMPLES_DIR=samples
//
// # Path Management
//
// The Paths type anchors every file the app touches at the executable
// location rather than the working directory:
//
//	layout, err := config.GetPaths()
//	samplePath := layout.GetSamplePath("river.csv")
//
// # Usage
//
// Load the configuration once at startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

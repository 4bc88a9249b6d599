// Package app assembles and runs the water quality visualizer server.
//
// NewApplication performs the whole startup sequence: it loads
// configuration, brings up logging and OpenTelemetry, resolves the
// runtime directories, seeds the bundled sample datasets, constructs
// the service graph, and binds the chi router to an http.Server. Every
// failure during startup is returned to the caller; nothing in this
// package calls os.Exit.
//
// # Running
//
// A binary normally hands control to Run, which starts the server and
// blocks until SIGINT, SIGTERM, or a listener failure:
//
//	application, err := app.NewApplication(frontendFS, samplesFS)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Shutdown drains in-flight HTTP requests within the configured
// timeout, closes websocket clients through the hub, flushes the
// telemetry providers, and releases the log file last.
//
// # Routing
//
// The router keeps /ws outside the main middleware group because the
// websocket upgrade cannot run behind handlers that wrap the
// ResponseWriter. The JSON API lives under /api, Prometheus scrapes
// under /metrics, and the embedded frontend claims everything else.
package app

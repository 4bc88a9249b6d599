package config

import "time"

// Application constants for the water quality visualizer
const (
	// Upload Limits
	DefaultMaxUploadBytes = 10 * 1024 * 1024 // 10MB
	// UploadEnvelopeSlack pads body caps above the dataset cap so a
	// full-size upload still fits with multipart framing around it.
	UploadEnvelopeSlack = 64 << 10

	// Chart Settings
	DefaultChartBins = 10
	MinChartBins     = 1
	MaxChartBins     = 100

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// HTTP Server
	DefaultServerPort      = 8080
	DefaultMaxHeaderBytes  = 1 << 20 // 1 MiB
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 60 * time.Second
	DefaultAllowedOrigin   = "http://localhost:8080"

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// File Paths (relative to executable)
	DefaultSamplesDir = "samples"
	DefaultLogsDir    = "logs"

	// Sample dataset discovery
	SampleExtCSV  = ".csv"
	SampleExtXLSX = ".xlsx"

	// Log Settings
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultLogFilePath = "logs/app.log"

	// WebSocket Buffer Sizes
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024
)

// API endpoints (internal)
const (
	APIBasePath       = "/api"
	HealthEndpoint    = "/api/health"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)

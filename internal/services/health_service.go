package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/k-laffite/water-quality-visualizer/internal/config"
	"github.com/k-laffite/water-quality-visualizer/internal/files"
	"github.com/k-laffite/water-quality-visualizer/pkg/contracts"
)

// ClientCounter reports how many websocket clients are connected.
type ClientCounter interface {
	ClientCount() int
}

// HubMetricsProvider is satisfied by hubs that track traffic counters
// beyond the plain client count. The detailed health payload includes
// those counters when the hub offers them.
type HubMetricsProvider interface {
	GetHubMetrics() map[string]any
}

// DatasetInfoProvider exposes metadata for the current dataset.
type DatasetInfoProvider interface {
	Meta(ctx context.Context) (*Meta, error)
}

// HealthService answers the liveness, readiness, and stats probes.
type HealthService struct {
	version   string
	buildTime string
	buildID   string
	paths     *config.Paths
	samples   *files.Manager
	hub       ClientCounter
	datasets  DatasetInfoProvider
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus is the wire shape of every probe response.
type HealthStatus struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Runtime   map[string]any `json:"runtime,omitempty"`
	Services  map[string]any `json:"services,omitempty"`
}

// ServiceHealth reports one subsystem inside a readiness response.
type ServiceHealth struct {
	// Status is either "ready" or "not_ready".
	Status string `json:"status"`

	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats is the payload of the stats endpoint.
type SystemStats struct {
	UptimeSeconds float64 `json:"uptime_seconds"`

	SampleFiles int   `json:"sample_files"`
	SampleBytes int64 `json:"sample_bytes"`
	DatasetRows int   `json:"dataset_rows"`

	WebSocketClients int `json:"websocket_clients"`

	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// NewHealthService wires a health service without build metadata.
func NewHealthService(version string, paths *config.Paths, samples *files.Manager, hub ClientCounter, datasets DatasetInfoProvider, log *slog.Logger) *HealthService {
	return NewHealthServiceWithBuildInfo(version, "", "", paths, samples, hub, datasets, log)
}

// NewHealthServiceWithBuildInfo wires a health service that reports the
// given build time and ID alongside the version.
func NewHealthServiceWithBuildInfo(version, buildTime, buildID string, paths *config.Paths, samples *files.Manager, hub ClientCounter, datasets DatasetInfoProvider, log *slog.Logger) *HealthService {
	if log == nil {
		log = slog.Default()
	}

	log.Info("HealthService initialized", slog.String("version", version),
		slog.String("build_id", buildID), slog.String("build_time", buildTime))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		buildID:   buildID,
		paths:     paths,
		samples:   samples,
		hub:       hub,
		datasets:  datasets,
		startTime: time.Now(),
		logger:    log,
	}
}

// HealthCheck reports the basic process-is-up status.
func (s *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	s.logger.Debug("Health check served",
		slog.String("uptime", time.Since(s.startTime).String()),
		slog.String("version", s.version))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   s.version,
	}
}

// ReadinessCheck probes each subsystem and reports not_ready if any of
// them is.
func (s *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	subsystems := map[string]any{
		"websocket": s.checkWebSocketHealth(),
		"samples":   s.checkSamplesHealth(),
		"dataset":   s.checkDatasetHealth(ctx),
	}

	overall := "ready"
	for _, svc := range subsystems {
		if sh, ok := svc.(ServiceHealth); ok && sh.Status != "ready" {
			overall = "not_ready"
			break
		}
	}

	return HealthStatus{
		Status:    overall,
		Timestamp: time.Now(),
		Version:   s.version,
		Services:  subsystems,
	}
}

// LivenessCheck reports the process runtime vitals.
func (s *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	vitals := map[string]any{
		"uptime":     time.Since(s.startTime).Seconds(),
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
	}

	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   s.version,
		Runtime:   vitals,
	}
}

// Version reports version and build details for the version endpoint.
func (s *HealthService) Version() map[string]any {
	now := time.Now()
	info := map[string]any{
		"version":      s.version,
		"api_version":  contracts.APIVersion,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       now.Sub(s.startTime).Seconds(),
		"start_time":   s.startTime.Format(time.RFC3339),
		"current_time": now.Format(time.RFC3339),
	}

	if s.buildTime != "" {
		info["build_time"] = s.buildTime
	}
	if s.buildID != "" {
		info["build_id"] = s.buildID
	}

	return info
}

// SystemStats returns system statistics. Sample counts are best effort;
// an unreadable sample directory reports zero rather than failing the
// stats endpoint.
func (s *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	stats := SystemStats{
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}

	if s.samples != nil {
		if found, err := s.samples.ListSamples(); err == nil {
			stats.SampleFiles = len(found)
			for _, f := range found {
				stats.SampleBytes += f.Size
			}
		}
	}

	if s.datasets != nil {
		if meta, err := s.datasets.Meta(ctx); err == nil {
			stats.DatasetRows = meta.Rows
		}
	}

	if s.hub != nil {
		stats.WebSocketClients = s.hub.ClientCount()
	}

	return stats, nil
}

func (s *HealthService) checkWebSocketHealth() ServiceHealth {
	if s.hub == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "websocket hub not initialized",
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", s.hub.ClientCount()),
		Uptime:  time.Since(s.startTime).String(),
	}
}

// checkSamplesHealth checks the sample library. A missing directory is
// still ready: it only means no bundled datasets are available.
func (s *HealthService) checkSamplesHealth() ServiceHealth {
	if s.samples == nil || s.paths == nil {
		return ServiceHealth{
			Status:  "ready",
			Message: "no sample library configured",
		}
	}

	if _, err := os.Stat(s.paths.SamplesDir); os.IsNotExist(err) {
		return ServiceHealth{
			Status:  "ready",
			Message: fmt.Sprintf("sample directory not present: %s", s.paths.SamplesDir),
		}
	} else if err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("sample directory not accessible: %v", err),
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "sample library is healthy",
	}
}

// checkDatasetHealth checks the dataset service. An empty slot is
// still ready: the server starts without a dataset and waits for an
// upload.
func (s *HealthService) checkDatasetHealth(ctx context.Context) ServiceHealth {
	if s.datasets == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "dataset service not initialized",
		}
	}

	meta, err := s.datasets.Meta(ctx)
	if err != nil {
		return ServiceHealth{
			Status:  "ready",
			Message: "no dataset loaded",
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("dataset %q loaded: %d rows", meta.Name, meta.Rows),
	}
}

// GetDetailedHealth bundles every probe into one payload for the
// diagnostics endpoint. Hubs that expose traffic counters contribute a
// websocket section.
func (s *HealthService) GetDetailedHealth(ctx context.Context) map[string]any {
	stats, _ := s.SystemStats(ctx)

	detail := map[string]any{
		"health":    s.HealthCheck(ctx),
		"readiness": s.ReadinessCheck(ctx),
		"liveness":  s.LivenessCheck(ctx),
		"stats":     stats,
	}

	if hm, ok := s.hub.(HubMetricsProvider); ok {
		detail["websocket"] = hm.GetHubMetrics()
	}

	return detail
}

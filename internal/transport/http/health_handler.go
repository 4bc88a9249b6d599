package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/k-laffite/water-quality-visualizer/internal/services"
)

// HealthHandler exposes the health, readiness, and liveness probes
// plus the version endpoint.
type HealthHandler struct {
	health *services.HealthService
	logger *slog.Logger
}

// NewHealthHandler wires the probe endpoints to the health service.
func NewHealthHandler(svc *services.HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		health: svc,
		logger: logger.With(slog.String("component", "health_handler")),
	}
}

// Routes returns the health check routes
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.HealthCheck)
	r.Get("/ready", h.ReadinessCheck)
	r.Get("/live", h.LivenessCheck)
	r.Get("/stats", h.SystemStats)
	r.Get("/detailed", h.DetailedHealth)

	return r
}

// HealthCheck reports basic process health on GET /api/health.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.health.HealthCheck(r.Context()))
}

// ReadinessCheck reports whether the API can serve dataset traffic.
// A not-ready service answers 503 so load balancers drain it.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := h.health.ReadinessCheck(r.Context())
	if status.Status != "ready" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, status)
}

// LivenessCheck answers as long as the process is running.
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.health.LivenessCheck(r.Context()))
}

// SystemStats reports runtime, dataset, and connection counters.
func (h *HealthHandler) SystemStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.health.SystemStats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "System stats collection failed", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": err.Error()})
		return
	}

	render.JSON(w, r, map[string]interface{}{"status": "success", "data": stats})
}

// DetailedHealth aggregates the other probes into one payload.
func (h *HealthHandler) DetailedHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.health.GetDetailedHealth(r.Context()))
}

// Version reports the running build's version information.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.health.Version())
}

package app

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"github.com/k-laffite/water-quality-visualizer/internal/config"
	apierrors "github.com/k-laffite/water-quality-visualizer/internal/errors"
	"github.com/k-laffite/water-quality-visualizer/internal/files"
	"github.com/k-laffite/water-quality-visualizer/internal/infrastructure"
	custommiddleware "github.com/k-laffite/water-quality-visualizer/internal/middleware"
	"github.com/k-laffite/water-quality-visualizer/internal/services"
	handlers "github.com/k-laffite/water-quality-visualizer/internal/transport/http"
	"github.com/k-laffite/water-quality-visualizer/internal/validation"
	ws "github.com/k-laffite/water-quality-visualizer/internal/websocket"
	"github.com/k-laffite/water-quality-visualizer/pkg/contracts"
)

// AppName is the human-facing product name used in logs and probes.
const AppName = "Water Quality Visualizer"

var (
	// BuildTime is the process start time in RFC3339, reported by the
	// version endpoints.
	BuildTime = time.Now().UTC().Format(time.RFC3339)

	// BuildID is a short fingerprint of the version and build date.
	BuildID = computeBuildID()
)

func computeBuildID() string {
	sum := sha256.Sum256([]byte(contracts.Version + time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", sum)[:12]
}

// Application owns every long-lived component of the server process and
// wires them together at startup.
type Application struct {
	Config           *config.Config
	Paths            *config.Paths
	Router           *chi.Mux
	Server           *http.Server
	WebSocketHub     *ws.Hub
	DatasetService   *services.DatasetService
	HealthService    *services.HealthService
	Logger           *slog.Logger
	Services         *ServiceContainer
	OTelProviders    *infrastructure.OTelProviders
	RuntimeCollector *infrastructure.RuntimeCollector
	FrontendFS       fs.FS
	SamplesFS        fs.FS
}

// ServiceContainer groups the services the transport layer depends on.
type ServiceContainer struct {
	Dataset   *services.DatasetService
	Health    *services.HealthService
	WebSocket *ws.Hub
	Samples   *files.Manager
	Uploads   *validation.UploadValidator
}

// NewApplication builds a fully wired application. frontendFS carries
// the embedded web UI and samplesFS the bundled sample datasets; either
// may be nil.
func NewApplication(frontendFS, samplesFS fs.FS) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	log, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	log.Info(AppName+" starting", slog.String("version", contracts.Version))

	// Paths must exist before the logger's file sink or the sample
	// library touch them.
	p, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	if err := p.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("create directories: %w", err)
	}
	p.LogPathResolution()

	providers, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         p,
		Logger:        log,
		OTelProviders: providers,
		FrontendFS:    frontendFS,
		SamplesFS:     samplesFS,
	}

	if err := app.wireServices(); err != nil {
		return nil, fmt.Errorf("initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// wireServices constructs the service graph in dependency order:
// the hub first (the dataset service broadcasts through it), then the
// sample library, upload validation, and metrics, and finally the
// dataset and health services on top of them.
func (app *Application) wireServices() error {
	hub := ws.NewHub(app.Config.WebSocket, app.Logger)
	hub.Start()
	app.WebSocketHub = hub

	samples := files.NewManager(app.Paths)
	if app.SamplesFS != nil {
		seeded, err := app.seedBundledSamples(samples)
		if err != nil {
			app.Logger.Warn("Failed to seed bundled samples", slog.String("error", err.Error()))
		} else if seeded > 0 {
			app.Logger.Info("Seeded bundled samples", slog.Int("count", seeded))
		}
	}

	uploads := validation.NewUploadValidator(app.Config.Limits.MaxUploadBytes, app.Logger)

	// Both metric sets are optional; a failed meter leaves them nil and
	// the services carry on without instrumentation.
	datasetMetrics, err := infrastructure.CreateDatasetMetrics(app.OTelProviders.Meter)
	if err != nil {
		app.Logger.Warn("Failed to create dataset metrics", slog.String("error", err.Error()))
		datasetMetrics = nil
	}

	runtimeCollector, err := infrastructure.NewRuntimeCollector(
		app.OTelProviders.Meter,
		infrastructure.DefaultRuntimeMetricsInterval,
	)
	if err != nil {
		app.Logger.Warn("Failed to create runtime metrics collector", slog.String("error", err.Error()))
		runtimeCollector = nil
	}
	app.RuntimeCollector = runtimeCollector

	dataset := services.NewDatasetService(samples, uploads, hub, datasetMetrics, app.Logger)
	app.DatasetService = dataset

	health := services.NewHealthServiceWithBuildInfo(
		contracts.Version,
		BuildTime,
		BuildID,
		app.Paths,
		samples,
		hub,
		dataset,
		app.Logger,
	)
	app.HealthService = health

	app.Services = &ServiceContainer{
		Dataset:   dataset,
		Health:    health,
		WebSocket: hub,
		Samples:   samples,
		Uploads:   uploads,
	}

	return nil
}

// seedBundledSamples copies the embedded sample datasets into the
// sample directory so they survive into ListSamples.
func (app *Application) seedBundledSamples(manager *files.Manager) (int, error) {
	datasets := make(map[string][]byte)

	err := fs.WalkDir(app.SamplesFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		if ext := strings.ToLower(filepath.Ext(path)); ext != ".csv" && ext != ".xlsx" {
			return nil
		}

		data, err := fs.ReadFile(app.SamplesFS, path)
		if err != nil {
			return fmt.Errorf("read bundled sample %s: %w", path, err)
		}
		datasets[filepath.Base(path)] = data
		return nil
	})
	if err != nil {
		return 0, err
	}

	return manager.SeedSamples(datasets)
}

// setupRouter assembles the route tree. The websocket endpoint is
// registered before the main group because the upgrade breaks under
// middleware that wraps the ResponseWriter.
func (app *Application) setupRouter() {
	r := chi.NewRouter()

	// Safe ahead of the upgrade: neither touches the ResponseWriter.
	r.Use(custommiddleware.RequestID)
	r.Use(custommiddleware.RealIP)

	r.With(custommiddleware.WebSocketTraceMiddleware(app.Logger)).HandleFunc(config.WebSocketEndpoint, app.serveWebSocket)

	// Everything else runs under the full chain.
	r.Group(func(r chi.Router) {
		otelmw, err := custommiddleware.NewOTelMiddleware(app.OTelProviders)
		if err != nil {
			app.Logger.Error("OpenTelemetry middleware unavailable", slog.String("error", err.Error()))
		} else {
			r.Use(otelmw.Handler)
			r.Use(custommiddleware.DatasetMetricsMiddleware(otelmw.Metrics()))
		}

		r.Use(custommiddleware.StructuredLogger(app.Logger))
		r.Use(custommiddleware.Recoverer(app.Logger))
		r.Use(custommiddleware.Compress(5))

		// The embedded frontend needs inline scripts and websocket
		// connections allowed.
		secureHeaders := custommiddleware.DefaultSecureHeaders()
		secureHeaders.DevMode = app.isDevelopmentMode()
		r.Use(secureHeaders.Handler)

		r.Use(custommiddleware.CORS(app.getCORSConfig()))

		if app.Config.Security.RateLimit.Enabled {
			r.Use(custommiddleware.NewRateLimiter(
				app.Config.Security.RateLimit.RPS,
				app.Config.Security.RateLimit.Burst,
				app.Logger,
			).Handler)
		}

		app.mountAPIRoutes(r)
		app.setupFrontendRoutes(r)
	})

	// Scrapes skip logging, compression, and CORS.
	if app.OTelProviders.PrometheusHandler != nil {
		r.Handle(config.MetricsEndpoint, app.OTelProviders.PrometheusHandler)
	}

	app.Router = r
}

// mountAPIRoutes hangs the JSON API under /api.
func (app *Application) mountAPIRoutes(r chi.Router) {
	r.Route(config.APIBasePath, func(api chi.Router) {
		errorHandler := apierrors.NewErrorHandler(app.Logger, app.Config.Logging.Development)

		api.Use(render.SetContentType(render.ContentTypeJSON))
		api.Use(custommiddleware.Timeout(app.Config.Server.RequestTimeout, app.Logger))

		// Oversized bodies and malformed JSON are rejected before any
		// handler parses them.
		api.Use(custommiddleware.NewValidationMiddleware(app.Logger, errorHandler, app.Config.Limits.MaxUploadBytes).ValidateRequest)

		healthHandler := handlers.NewHealthHandler(app.HealthService, app.Logger)
		api.Mount("/health", healthHandler.Routes())
		api.Get("/version", healthHandler.Version)

		// The dataset handler owns /dataset and /samples.
		datasetHandler := handlers.NewDatasetHandler(app.DatasetService, app.Services.Uploads, app.Logger, errorHandler)
		api.Mount("/", datasetHandler.Routes())

		api.Post("/client-logs", handlers.NewClientLogHandler(app.Logger, errorHandler).Handle)
	})
}

// setupFrontendRoutes serves the embedded web UI for everything the API
// and the metrics endpoint do not claim.
func (app *Application) setupFrontendRoutes(r chi.Router) {
	if app.FrontendFS == nil {
		app.Logger.Warn("Frontend filesystem not available, serving API only")
		return
	}

	frontendHandler := handlers.NewFrontendHandler(app.FrontendFS, app.Logger)
	r.Handle("/*", frontendHandler.Handler())
}

// getCORSConfig builds the CORS policy. The server's own origins are
// always allowed; development adds the usual frontend dev server ports
// and production adds whatever Security.AllowedOrigins configures.
func (app *Application) getCORSConfig() custommiddleware.CORSConfig {
	dev := app.isDevelopmentMode()

	cfg := custommiddleware.CORSConfig{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           app.Logger,
	}

	cfg.AllowedOrigins = []string{
		fmt.Sprintf("http://localhost:%d", app.Config.Server.Port),
		fmt.Sprintf("http://127.0.0.1:%d", app.Config.Server.Port),
	}
	switch {
	case dev:
		cfg.AllowedOrigins = append(cfg.AllowedOrigins,
			"http://localhost:3000",
			"http://127.0.0.1:3000")
	case app.Config.Security.EnableCORS && len(app.Config.Security.AllowedOrigins) > 0:
		cfg.AllowedOrigins = append(cfg.AllowedOrigins, app.Config.Security.AllowedOrigins...)
	}

	app.Logger.Info("CORS policy assembled",
		slog.Bool("development", dev),
		slog.Any("allowed_origins", cfg.AllowedOrigins))

	return cfg
}

// isDevelopmentMode reports whether development conveniences are on.
// Environment variables win over the config flag.
func (app *Application) isDevelopmentMode() bool {
	if os.Getenv("ENVIRONMENT") == "development" || os.Getenv("GO_ENV") == "development" {
		return true
	}
	return app.Config.Logging.Development
}

// createServer binds the router to the configured listen address.
func (app *Application) createServer() {
	app.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", app.Config.Server.Port),
		Handler:      app.Router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}
}

// Start brings the HTTP server up along with the background helpers. A
// listener failure cancels ctx so Run can unwind.
func (app *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	app.Logger.InfoContext(ctx, "Starting server", slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("level", app.Config.Logging.Level), slog.Int("port", app.Config.Server.Port))

	app.Logger.InfoContext(ctx, "Runtime directories",
		slog.String("samples_dir", app.Paths.SamplesDir),
		slog.String("logs_dir", app.Paths.LogsDir),
		slog.String("executable_dir", app.Paths.ExecutableDir))

	go func() {
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.ErrorContext(ctx, "HTTP server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := app.performStartupHealthCheck(ctx); err != nil {
		app.Logger.WarnContext(ctx, "Startup checks reported warnings", slog.String("warnings", err.Error()))
	}

	if app.RuntimeCollector != nil {
		go app.RuntimeCollector.Start(ctx)
	}

	app.Logger.InfoContext(ctx, "Application ready",
		slog.String("address", fmt.Sprintf("http://localhost:%d", app.Config.Server.Port)))

	go app.openBrowserWhenReady(ctx)

	return nil
}

// openBrowserWhenReady polls the health endpoint and opens the default
// browser once the server answers. When no launcher works it prints the
// address to the console instead.
func (app *Application) openBrowserWhenReady(ctx context.Context) {
	url := fmt.Sprintf("http://localhost:%d", app.Config.Server.Port)
	healthURL := url + config.HealthEndpoint
	client := &http.Client{Timeout: config.DefaultHTTPTimeout}

	const (
		maxAttempts  = 10
		pollInterval = 500 * time.Millisecond
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			app.Logger.Info("Browser launch abandoned, application is shutting down")
			return
		default:
		}

		resp, err := client.Get(healthURL)
		if err != nil || resp.StatusCode != http.StatusOK {
			if resp != nil {
				resp.Body.Close()
			}
			time.Sleep(pollInterval)
			continue
		}
		resp.Body.Close()

		app.Logger.Info("Server ready, launching browser",
			slog.String("url", url),
			slog.Int("attempts", attempt))

		if err := launchBrowser(url); err != nil {
			app.Logger.Error("Browser launch failed",
				slog.String("url", url),
				slog.String("error", err.Error()))
			fmt.Printf("\n========================================\n%s is running!\nPlease open your browser and navigate to:\n  %s\n========================================\n\n",
				contracts.GetVersionString(), url)
			return
		}

		app.Logger.Info("Browser opened", slog.String("url", url))
		return
	}

	app.Logger.Error("Server never became ready, skipping browser launch",
		slog.String("url", url),
		slog.Int("attempts", maxAttempts))
}

// Stop shuts the server and every background component down in order.
// The log file closes last so shutdown itself still gets logged.
func (app *Application) Stop(ctx context.Context) error {
	app.Logger.InfoContext(ctx, "Application stopping")

	stopCtx, cancel := context.WithTimeout(ctx, app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := app.Server.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	app.WebSocketHub.Stop()
	if app.RuntimeCollector != nil {
		app.RuntimeCollector.Stop()
	}

	if app.OTelProviders != nil {
		if err := app.OTelProviders.Shutdown(stopCtx); err != nil {
			app.Logger.ErrorContext(ctx, "OpenTelemetry shutdown failed", slog.String("error", err.Error()))
		}
	}

	app.Logger.InfoContext(ctx, "Shutdown complete")

	if err := infrastructure.CloseLogFile(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
	}

	return nil
}

// Run starts the application and blocks until an interrupt arrives or
// the server fails, then shuts everything down.
func (app *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)

	if err := app.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-interrupts:
		app.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		app.Logger.InfoContext(ctx, "Shutting down after server error")
	}

	return app.Stop(context.Background())
}

// serveWebSocket upgrades the connection and hands it to the hub. The
// request ID doubles as the client's trace ID.
func (app *Application) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	traceID := r.Header.Get("X-Request-ID")
	if traceID == "" {
		traceID = infrastructure.GenerateTraceID()
	}

	ctx := infrastructure.WithTraceID(r.Context(), traceID)
	app.Logger.InfoContext(ctx, "WebSocket upgrade requested", slog.String("host", r.Host),
		slog.String("remote_addr", r.RemoteAddr), slog.String("origin", r.Header.Get("Origin")))

	up := websocket.Upgrader{
		ReadBufferSize:  app.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: app.Config.WebSocket.WriteBufferSize,
		CheckOrigin: func(req *http.Request) bool {
			return app.allowWebSocketOrigin(ctx, req.Header.Get("Origin"))
		},
		Error: func(_ http.ResponseWriter, _ *http.Request, status int, reason error) {
			app.Logger.ErrorContext(ctx, "WebSocket upgrade error",
				slog.Int("status", status), slog.String("reason", reason.Error()))
		},
	}

	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		app.Logger.ErrorContext(ctx, "WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	app.Logger.InfoContext(ctx, "WebSocket connection established",
		slog.String("request_id", traceID), slog.String("remote_addr", r.RemoteAddr))

	ws.ServeWSWithTrace(app.WebSocketHub, conn, traceID)
}

// allowWebSocketOrigin applies the CORS origin list to websocket
// upgrades. Absent origins (same-origin and non-browser clients) and
// development mode are always allowed.
func (app *Application) allowWebSocketOrigin(ctx context.Context, origin string) bool {
	if origin == "" || app.isDevelopmentMode() {
		return true
	}
	for _, allowed := range app.getCORSConfig().AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	app.Logger.WarnContext(ctx, "WebSocket origin rejected", slog.String("origin", origin))
	return false
}

// performStartupHealthCheck probes the directories the server must be
// able to write to and reports any that fail.
func (app *Application) performStartupHealthCheck(ctx context.Context) error {
	dirs := map[string]string{
		"Samples": app.Paths.SamplesDir,
		"Logs":    app.Paths.LogsDir,
	}

	var warnings []string
	for name, dir := range dirs {
		probe := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(probe, []byte("probe"), 0644); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory %s is not writable", name, dir))
			continue
		}
		os.Remove(probe)
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup checks: %s", strings.Join(warnings, "; "))
	}

	app.Logger.InfoContext(ctx, "Startup checks passed")
	return nil
}

// launchBrowser asks the OS to open url, trying each platform launcher
// in turn with a short pause between rounds.
func launchBrowser(url string) error {
	var lastErr error

	for round := 0; round < 3; round++ {
		if round > 0 {
			time.Sleep(time.Duration(round) * time.Second)
		}

		for _, m := range browserLaunchers(url) {
			launch := exec.Command(m.cmd, m.args...)
			if err := launch.Start(); err != nil {
				lastErr = err
				slog.Warn("Browser launcher failed",
					slog.String("error", err.Error()),
					slog.String("method", m.name))
				continue
			}

			// The launcher exits once the URL is handed off; reap it.
			go launch.Wait()

			time.Sleep(250 * time.Millisecond)
			return nil
		}
	}

	return fmt.Errorf("no browser launcher succeeded: %w", lastErr)
}

type launcher struct {
	name string
	cmd  string
	args []string
}

func browserLaunchers(url string) []launcher {
	switch runtime.GOOS {
	case "windows":
		return []launcher{
			{name: "start_command", cmd: "cmd", args: []string{"/c", "start", "", url}},
			{name: "rundll32", cmd: "rundll32", args: []string{"url.dll,FileProtocolHandler", url}},
		}
	case "darwin":
		return []launcher{
			{name: "open", cmd: "open", args: []string{url}},
		}
	default:
		return []launcher{
			{name: "xdg-open", cmd: "xdg-open", args: []string{url}},
			{name: "sensible-browser", cmd: "sensible-browser", args: []string{url}},
		}
	}
}

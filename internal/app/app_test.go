package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-laffite/water-quality-visualizer/internal/config"
	"github.com/k-laffite/water-quality-visualizer/internal/files"
	"github.com/k-laffite/water-quality-visualizer/internal/infrastructure"
	"github.com/k-laffite/water-quality-visualizer/internal/shared/testutil"
	"github.com/k-laffite/water-quality-visualizer/pkg/contracts"
)

const appTestCSV = `site,ph,reading
River A,7.1,1
Well B,6.8,2
Lake C,7.4,3
Spring D,7.0,4
`

// testFrontendFS builds a minimal embedded UI for router tests.
func testFrontendFS() fs.FS {
	return fstest.MapFS{
		"index.html": {Data: []byte("<!DOCTYPE html><html><body>Water Quality Visualizer</body></html>")},
		"app.js":     {Data: []byte("console.log('charts');")},
	}
}

type testAppOption func(*Application)

func withFrontend(frontend fs.FS) testAppOption {
	return func(a *Application) { a.FrontendFS = frontend }
}

func withProductionConfig() testAppOption {
	return func(a *Application) { a.Config.Logging.Development = false }
}

// newTestApplication wires a complete application against temporary
// directories and disabled telemetry exporters. It skips NewApplication
// so tests stay independent of process-global logger and exporter state.
func newTestApplication(t *testing.T, opts ...testAppOption) *Application {
	t.Helper()

	dir := t.TempDir()
	paths := &config.Paths{
		ExecutableDir: dir,
		SamplesDir:    filepath.Join(dir, "samples"),
		LogsDir:       filepath.Join(dir, "logs"),
		LogFile:       filepath.Join(dir, "logs", "app.log"),
	}
	require.NoError(t, paths.EnsureDirectories())

	cfg := config.Default()
	cfg.Security.RateLimit.Enabled = false

	logger, _ := testutil.NewTestLogger(t)
	providers, err := infrastructure.InitializeOTel(&infrastructure.OTelConfig{
		ServiceName:    infrastructure.ServiceName,
		ServiceVersion: contracts.Version,
		Environment:    "test",
		TraceExporter:  "none",
		MetricExporter: "none",
	}, logger)
	require.NoError(t, err)

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
	}
	for _, opt := range opts {
		opt(app)
	}

	require.NoError(t, app.wireServices())
	t.Cleanup(app.WebSocketHub.Stop)

	app.setupRouter()
	app.createServer()

	return app
}

func doRequest(t *testing.T, app *Application, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestNewApplicationBootstrap(t *testing.T) {
	cases := []struct {
		name      string
		port      string
		wantErr   bool
		errSubstr string
	}{
		{
			name:      "invalid port fails config validation",
			port:      "-1",
			wantErr:   true,
			errSubstr: "config validation failed",
		},
		{
			name: "full initialization",
			port: "18409",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("WQV_SERVER_PORT", tc.port)
			t.Setenv("WQV_LOGGING_LEVEL", "error")
			t.Setenv("WQV_LOGGING_OUTPUT", "console")

			frontend := testFrontendFS()
			app, err := NewApplication(frontend, nil)

			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errSubstr)
				assert.Nil(t, app)
				return
			}

			require.NoError(t, err)
			t.Cleanup(app.WebSocketHub.Stop)

			assert.NotNil(t, app.Config)
			assert.NotNil(t, app.Paths)
			assert.NotNil(t, app.Logger)
			assert.NotNil(t, app.Router)
			assert.NotNil(t, app.Server)
			assert.NotNil(t, app.WebSocketHub)
			assert.NotNil(t, app.DatasetService)
			assert.NotNil(t, app.HealthService)
			assert.NotNil(t, app.Services)
			assert.NotNil(t, app.RuntimeCollector)
			assert.Equal(t, frontend, app.FrontendFS)
			assert.Equal(t, 18409, app.Config.Server.Port)
		})
	}
}

func TestApplicationServiceContainer(t *testing.T) {
	app := newTestApplication(t)

	require.NotNil(t, app.Services)
	assert.Same(t, app.DatasetService, app.Services.Dataset)
	assert.Same(t, app.HealthService, app.Services.Health)
	assert.Same(t, app.WebSocketHub, app.Services.WebSocket)
	assert.NotNil(t, app.Services.Samples)
	assert.NotNil(t, app.Services.Uploads)
}

func TestApplicationSeedBundledSamples(t *testing.T) {
	samplesFS := fstest.MapFS{
		"samples/river.csv": &fstest.MapFile{Data: []byte(appTestCSV)},
		"samples/lab.xlsx":  &fstest.MapFile{Data: []byte("workbook bytes")},
		"samples/deep/well.csv": &fstest.MapFile{
			Data: []byte("site,reading\nWell B,2\n"),
		},
		"samples/README.md": &fstest.MapFile{Data: []byte("not a dataset")},
	}

	dir := t.TempDir()
	manager := files.NewManager(&config.Paths{
		ExecutableDir: dir,
		SamplesDir:    filepath.Join(dir, "samples"),
	})

	app := &Application{SamplesFS: samplesFS}

	seeded, err := app.seedBundledSamples(manager)
	require.NoError(t, err)
	assert.Equal(t, 3, seeded)

	infos, err := manager.ListSamples()
	require.NoError(t, err)

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.ElementsMatch(t, []string{"river.csv", "lab.xlsx", "well.csv"}, names)

	// Reseeding must not clobber datasets already on disk.
	seeded, err = app.seedBundledSamples(manager)
	require.NoError(t, err)
	assert.Zero(t, seeded)
}

func TestApplicationRouterAPI(t *testing.T) {
	app := newTestApplication(t)

	t.Run("health endpoint", func(t *testing.T) {
		rec := doRequest(t, app, http.MethodGet, "/api/health", "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var status map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "ok", status["status"])

		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	})

	t.Run("version endpoint", func(t *testing.T) {
		rec := doRequest(t, app, http.MethodGet, "/api/version", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), contracts.Version)
	})

	t.Run("dataset upload and columns", func(t *testing.T) {
		rec := doRequest(t, app, http.MethodPost, "/api/dataset?name=field.csv", "text/csv", appTestCSV)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"rows":4`)

		rec = doRequest(t, app, http.MethodGet, "/api/dataset/columns", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"ph"`)
	})

	t.Run("unknown api path yields problem json", func(t *testing.T) {
		rec := doRequest(t, app, http.MethodGet, "/api/definitely-not-a-route", "", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Not Found")
	})
}

func TestApplicationRouterFrontend(t *testing.T) {
	app := newTestApplication(t, withFrontend(testFrontendFS()))

	t.Run("serves index at root", func(t *testing.T) {
		rec := doRequest(t, app, http.MethodGet, "/", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Water Quality Visualizer")
	})

	t.Run("serves static assets", func(t *testing.T) {
		rec := doRequest(t, app, http.MethodGet, "/app.js", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "charts")
	})

	t.Run("unknown path falls back to the app shell", func(t *testing.T) {
		rec := doRequest(t, app, http.MethodGet, "/charts/histogram", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Water Quality Visualizer")
		assert.Contains(t, rec.Header().Get("Cache-Control"), "no-cache")
	})

	t.Run("api misses are not rewritten to the shell", func(t *testing.T) {
		rec := doRequest(t, app, http.MethodGet, "/api/missing", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestApplicationRouterWithoutFrontend(t *testing.T) {
	app := newTestApplication(t)

	rec := doRequest(t, app, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplicationCORSPreflight(t *testing.T) {
	app := newTestApplication(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestApplicationWebSocket(t *testing.T) {
	app := newTestApplication(t)

	server := httptest.NewServer(app.Router)
	defer server.Close()

	t.Run("upgrade registers a hub client", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

		require.Eventually(t, func() bool {
			return app.WebSocketHub.ClientCount() == 1
		}, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
		require.NoError(t, conn.Close())

		require.Eventually(t, func() bool {
			return app.WebSocketHub.ClientCount() == 0
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("plain GET is rejected", func(t *testing.T) {
		rec := doRequest(t, app, http.MethodGet, "/ws", "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestApplicationGetCORSConfig(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("GO_ENV", "")

	t.Run("development adds the dev server origins", func(t *testing.T) {
		app := newTestApplication(t)

		cfg := app.getCORSConfig()
		assert.Contains(t, cfg.AllowedOrigins, "http://localhost:3000")
		assert.Contains(t, cfg.AllowedOrigins, fmt.Sprintf("http://localhost:%d", app.Config.Server.Port))
		assert.Contains(t, cfg.ExposedHeaders, "X-Request-ID")
		assert.True(t, cfg.AllowCredentials)
		assert.Equal(t, 300, cfg.MaxAge)
	})

	t.Run("production keeps the configured origins only", func(t *testing.T) {
		app := newTestApplication(t, withProductionConfig())
		app.Config.Security.AllowedOrigins = []string{"https://water.example.com"}
		app.Config.Security.EnableCORS = true

		cfg := app.getCORSConfig()
		assert.NotContains(t, cfg.AllowedOrigins, "http://localhost:3000")
		assert.Contains(t, cfg.AllowedOrigins, "https://water.example.com")
	})
}

func TestApplicationIsDevelopmentMode(t *testing.T) {
	cases := []struct {
		name        string
		environment string
		goEnv       string
		development bool
		want        bool
	}{
		{name: "ENVIRONMENT variable wins", environment: "development", want: true},
		{name: "GO_ENV variable wins", goEnv: "development", want: true},
		{name: "config development flag", development: true, want: true},
		{name: "production by default", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ENVIRONMENT", tc.environment)
			t.Setenv("GO_ENV", tc.goEnv)

			app := &Application{Config: config.Default()}
			app.Config.Logging.Development = tc.development

			assert.Equal(t, tc.want, app.isDevelopmentMode())
		})
	}
}

func TestApplicationCreateServer(t *testing.T) {
	app := newTestApplication(t)

	require.NotNil(t, app.Server)
	assert.Equal(t, fmt.Sprintf(":%d", app.Config.Server.Port), app.Server.Addr)
	assert.Equal(t, app.Router, app.Server.Handler)
	assert.Equal(t, app.Config.Server.ReadTimeout, app.Server.ReadTimeout)
	assert.Equal(t, app.Config.Server.WriteTimeout, app.Server.WriteTimeout)
	assert.Equal(t, app.Config.Server.IdleTimeout, app.Server.IdleTimeout)
}

func TestApplicationStop(t *testing.T) {
	app := newTestApplication(t)

	require.NoError(t, app.Stop(context.Background()))
	assert.Zero(t, app.WebSocketHub.ClientCount())
}

func TestApplicationPerformStartupHealthCheck(t *testing.T) {
	t.Run("writable directories pass", func(t *testing.T) {
		app := newTestApplication(t)
		assert.NoError(t, app.performStartupHealthCheck(context.Background()))
	})

	t.Run("missing directory reports a warning", func(t *testing.T) {
		app := newTestApplication(t)
		app.Paths.SamplesDir = filepath.Join(app.Paths.ExecutableDir, "gone", "samples")

		err := app.performStartupHealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Samples directory not writable")
	})
}

func TestBuildMetadata(t *testing.T) {
	assert.Regexp(t, "^[0-9a-f]{12}$", BuildID)

	_, err := time.Parse(time.RFC3339, BuildTime)
	assert.NoError(t, err)
}

func TestBrowserLaunchers(t *testing.T) {
	launchers := browserLaunchers("http://localhost:8080")
	require.NotEmpty(t, launchers)

	for _, l := range launchers {
		assert.NotEmpty(t, l.name)
		assert.NotEmpty(t, l.cmd)
		assert.Contains(t, l.args, "http://localhost:8080")
	}
}

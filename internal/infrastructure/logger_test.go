package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/k-laffite/water-quality-visualizer/internal/config"
)

// newFileLogger points the package logger at a temp file and returns
// the logger, the file path, and a drain function that closes the file
// and returns everything written so far.
func newFileLogger(t *testing.T, level string) (*slog.Logger, string, func() []byte) {
	t.Helper()
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	logFile := filepath.Join(t.TempDir(), "test.log")
	logger, err := InitializeLogger(config.LoggingConfig{
		Level:    level,
		Format:   "json",
		Output:   "both",
		FilePath: logFile,
	})
	if err != nil {
		t.Fatalf("InitializeLogger: %v", err)
	}

	drain := func() []byte {
		// Close before reading so Windows can open the file
		CloseLogFile()
		out, err := os.ReadFile(logFile)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return out
	}
	return logger, logFile, drain
}

// lastLogEntry parses the final JSON line of captured log output.
func lastLogEntry(t *testing.T, out []byte) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	return entry
}

func TestInitializeLoggerWritesJSON(t *testing.T) {
	logger, logFile, drain := newFileLogger(t, "info")

	if logger == nil {
		t.Fatal("InitializeLogger returned nil logger")
	}
	if _, err := os.Stat(logFile); err != nil {
		t.Errorf("log file missing: %v", err)
	}

	logger.Info("pipeline ready", "source", "csv")

	entry := lastLogEntry(t, drain())
	if entry["msg"] != "pipeline ready" {
		t.Errorf("msg = %v, want %q", entry["msg"], "pipeline ready")
	}
	if entry["source"] != "csv" {
		t.Errorf("source = %v, want %q", entry["source"], "csv")
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", entry["level"])
	}
}

func TestLoggerWithContextInjectsTraceID(t *testing.T) {
	_, _, drain := newFileLogger(t, "debug")

	ctx := WithTraceID(context.Background(), "wqv-trace-123")
	LoggerWithContext(ctx).InfoContext(ctx, "test with trace")

	entry := lastLogEntry(t, drain())
	if entry["trace_id"] != "wqv-trace-123" {
		t.Errorf("trace_id = %v, want wqv-trace-123", entry["trace_id"])
	}
}

func TestLogLevelMapping(t *testing.T) {
	cases := []struct {
		level string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"error", "ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			logger, _, drain := newFileLogger(t, tc.level)

			switch tc.level {
			case "debug":
				logger.Debug("probe")
			case "info":
				logger.Info("probe")
			case "warn":
				logger.Warn("probe")
			case "error":
				logger.Error("probe")
			}

			entry := lastLogEntry(t, drain())
			if entry["level"] != tc.want {
				t.Errorf("level = %v, want %s", entry["level"], tc.want)
			}
		})
	}
}

func TestTraceIDContextRoundTrip(t *testing.T) {
	newFileLogger(t, "info")

	traceID := GenerateTraceID()
	if traceID == "" {
		t.Error("GenerateTraceID returned empty string")
	}

	ctx := WithTraceID(context.Background(), traceID)

	if got := GetTraceID(EnsureTraceID(ctx)); got != traceID {
		t.Errorf("EnsureTraceID changed existing trace ID: got %q", got)
	}

	fresh := GetTraceID(EnsureTraceID(context.Background()))
	if fresh == "" {
		t.Error("EnsureTraceID left the context without a trace ID")
	}
	if fresh == traceID {
		t.Error("EnsureTraceID reused a trace ID across contexts")
	}
}

func TestTraceHandlerPreservesInjection(t *testing.T) {
	var buf bytes.Buffer

	// Derived loggers keep injecting trace_id after With.
	base := &traceHandler{Handler: slog.NewJSONHandler(&buf, nil)}
	logger := slog.New(base).With("component", "parser")

	ctx := WithTraceID(context.Background(), "trace-456")
	logger.InfoContext(ctx, "parsed", "rows", 4)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}

	if entry["component"] != "parser" {
		t.Errorf("component = %v, want parser", entry["component"])
	}
	if entry["trace_id"] != "trace-456" {
		t.Errorf("trace_id = %v, want trace-456", entry["trace_id"])
	}
	if entry["rows"] != float64(4) {
		t.Errorf("rows = %v, want 4", entry["rows"])
	}
}

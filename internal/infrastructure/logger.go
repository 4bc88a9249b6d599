package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/k-laffite/water-quality-visualizer/internal/config"
)

var (
	defaultLogger *slog.Logger
	initOnce      sync.Once

	// activeLogFile is the file handle behind "file"/"both" output,
	// kept so shutdown can close it.
	activeLogFile   *os.File
	activeLogFileMu sync.Mutex
)

// contextKey keeps this package's context values collision-free.
type contextKey string

// TraceIDContextKey carries the request trace ID through contexts.
const TraceIDContextKey contextKey = "trace_id"

// InitializeLogger builds the process-wide slog logger from the logging
// section of the configuration and installs it as the slog default.
// Later calls return the logger from the first call. Records are always
// JSON, so whatever ships the logs never has to sniff the format.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var err error
	initOnce.Do(func() {
		defaultLogger, err = buildLogger(cfg)
		if defaultLogger != nil {
			slog.SetDefault(defaultLogger)
		}
	})
	return defaultLogger, err
}

// GetLogger returns the process-wide logger, or slog's default when
// InitializeLogger has not run yet.
func GetLogger() *slog.Logger {
	if defaultLogger == nil {
		return slog.Default()
	}
	return defaultLogger
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{AddSource: true, Level: levelFrom(cfg.Level)}

	var w io.Writer = os.Stdout
	output := strings.ToLower(cfg.Output)
	if output == "file" || output == "both" {
		f, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		activeLogFile = f
		w = f
		if output == "both" {
			w = io.MultiWriter(os.Stdout, f)
		}
	}

	// Every record passes through traceHandler so trace_id correlation
	// needs no per-call-site discipline.
	return slog.New(&traceHandler{Handler: slog.NewJSONHandler(w, opts)}), nil
}

// traceHandler decorates records with the trace ID found in the
// context, when there is one.
type traceHandler struct {
	slog.Handler
}

func (th *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if tid := GetTraceID(ctx); tid != "" {
		r.AddAttrs(slog.String("trace_id", tid))
	}
	return th.Handler.Handle(ctx, r)
}

func (th *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: th.Handler.WithAttrs(attrs)}
}

func (th *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: th.Handler.WithGroup(name)}
}

// levelFrom maps a config string to a slog level, defaulting to Info
// for anything unrecognized.
func levelFrom(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithTraceID returns a context carrying the given trace ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, id)
}

// GetTraceID returns the trace ID stored in the context, or "".
func GetTraceID(ctx context.Context) string {
	if tid, ok := ctx.Value(TraceIDContextKey).(string); ok {
		return tid
	}
	return ""
}

// CloseLogFile closes the log file opened by InitializeLogger, if any.
// Called at the tail of graceful shutdown and between tests.
func CloseLogFile() error {
	activeLogFileMu.Lock()
	defer activeLogFileMu.Unlock()

	if activeLogFile == nil {
		return nil
	}
	err := activeLogFile.Close()
	activeLogFile = nil
	return err
}

// ResetLoggerForTesting clears the global logger state. Test use only.
func ResetLoggerForTesting() {
	CloseLogFile()
	defaultLogger = nil
	initOnce = sync.Once{}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}

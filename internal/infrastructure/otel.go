package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/k-laffite/water-quality-visualizer/pkg/contracts"
)

const (
	ServiceName = "water-quality-visualizer"
	MeterName   = "wqv"
)

// OTelConfig selects which exporters run and how traces are sampled.
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// OTelProviders bundles the live tracer and meter plus the Prometheus
// scrape handler when metrics are on.
type OTelProviders struct {
	TracerProvider    *sdktrace.TracerProvider
	MeterProvider     *sdkmetric.MeterProvider
	Tracer            trace.Tracer
	Meter             metric.Meter
	PrometheusHandler http.Handler
	Logger            *slog.Logger
}

// DefaultOTelConfig enables both exporters with full sampling, suitable
// for development.
func DefaultOTelConfig() *OTelConfig {
	env := "development"
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		env = v
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: contracts.Version,
		Environment:    env,
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  true,
		SampleRatio:    1.0,
	}
}

// InitializeOTel builds tracing and metrics providers per cfg and wires
// the global propagators. A nil cfg gets the defaults.
func InitializeOTel(cfg *OTelConfig, log *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()

	log.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName), slog.String("version", cfg.ServiceVersion),
		slog.Bool("tracing_enabled", cfg.EnableTracing), slog.Bool("metrics_enabled", cfg.EnableMetrics),
		slog.String("environment", cfg.Environment))

	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion), semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", instanceID()))

	// No-op instruments stand in until an exporter replaces them, so
	// disabled telemetry never leaves nil Tracer or Meter behind.
	op := &OTelProviders{
		Logger: log,
		Tracer: tracenoop.NewTracerProvider().Tracer(MeterName),
		Meter:  metricnoop.NewMeterProvider().Meter(MeterName),
	}

	if cfg.EnableTracing {
		if err := op.startTracing(ctx, cfg, res); err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
	}
	if cfg.EnableMetrics {
		if err := op.startMetrics(ctx, cfg, res); err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
	}

	prop := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	otel.SetTextMapPropagator(prop)

	log.InfoContext(ctx, "OpenTelemetry ready")
	return op, nil
}

func (op *OTelProviders) startTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource) error {
	if cfg.TraceExporter == "none" {
		return nil
	}
	if cfg.TraceExporter != "stdout" {
		return fmt.Errorf("unknown trace exporter %q", cfg.TraceExporter)
	}

	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("create stdout exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res), sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)))
	op.TracerProvider = tp
	op.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)

	op.Logger.InfoContext(ctx, "Tracing initialized",
		slog.Float64("sample_ratio", cfg.SampleRatio), slog.String("exporter", cfg.TraceExporter))
	return nil
}

func (op *OTelProviders) startMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource) error {
	if cfg.MetricExporter == "none" {
		return nil
	}
	if cfg.MetricExporter != "prometheus" {
		return fmt.Errorf("unknown metric exporter %q", cfg.MetricExporter)
	}

	exp, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(exp))
	op.MeterProvider = mp
	op.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
	op.PrometheusHandler = promhttp.Handler()
	otel.SetMeterProvider(mp)

	op.Logger.InfoContext(ctx, "Metrics initialized", slog.String("exporter", cfg.MetricExporter))
	return nil
}

// Shutdown flushes and stops whichever providers were started.
func (op *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if op.TracerProvider != nil {
		errs = append(errs, op.TracerProvider.Shutdown(ctx))
	}
	if op.MeterProvider != nil {
		errs = append(errs, op.MeterProvider.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("opentelemetry shutdown: %w", err)
	}

	op.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// DatasetMetrics holds every instrument the app records against.
type DatasetMetrics struct {
	// HTTP instruments
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Dataset instruments
	ParsesTotal    metric.Int64Counter
	ParseFailures  metric.Int64Counter
	ParseDuration  metric.Float64Histogram
	RowsLoaded     metric.Int64Counter
	LinesSkipped   metric.Int64Counter
	StatsComputed  metric.Int64Counter
	ChartsBuilt    metric.Int64Counter
	ExportsTotal   metric.Int64Counter
	FiltersApplied metric.Int64Counter
}

// CreateDatasetMetrics registers every instrument on meter. The first
// registration error aborts the whole set.
func CreateDatasetMetrics(meter metric.Meter) (*DatasetMetrics, error) {
	var err error

	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	seconds := func(name, desc string) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
		return h
	}
	upDown := func(name, desc string) metric.Int64UpDownCounter {
		if err != nil {
			return nil
		}
		var u metric.Int64UpDownCounter
		u, err = meter.Int64UpDownCounter(name, metric.WithDescription(desc))
		return u
	}

	m := &DatasetMetrics{
		HTTPRequestsTotal:   counter("http_requests_total", "Total number of HTTP requests"),
		HTTPRequestDuration: seconds("http_request_duration_seconds", "HTTP request duration in seconds"),
		HTTPActiveRequests:  upDown("http_active_requests", "Number of active HTTP requests"),
		ParsesTotal:         counter("dataset_parses_total", "Total number of dataset parse attempts"),
		ParseFailures:       counter("dataset_parse_failures_total", "Total number of rejected dataset uploads"),
		ParseDuration:       seconds("dataset_parse_duration_seconds", "Dataset parse duration in seconds"),
		RowsLoaded:          counter("dataset_rows_loaded_total", "Total number of rows loaded into datasets"),
		LinesSkipped:        counter("dataset_lines_skipped_total", "Total number of input lines skipped for width mismatch"),
		StatsComputed:       counter("dataset_stats_computed_total", "Total number of column statistics computations"),
		ChartsBuilt:         counter("dataset_charts_built_total", "Total number of chart payloads built"),
		ExportsTotal:        counter("dataset_exports_total", "Total number of CSV exports"),
		FiltersApplied:      counter("dataset_filters_applied_total", "Total number of range filters applied"),
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordParseMetrics records the outcome of one dataset parse attempt.
func RecordParseMetrics(ctx context.Context, metrics *DatasetMetrics, format string, duration time.Duration, rows, skipped int, err error) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("format", format)}
	metrics.ParsesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	status := "success"
	if err != nil {
		status = "failure"
		metrics.ParseFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	metrics.ParseDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(append(attrs, attribute.String("status", status))...))

	if err == nil {
		metrics.RowsLoaded.Add(ctx, int64(rows), metric.WithAttributes(attrs...))
		if skipped > 0 {
			metrics.LinesSkipped.Add(ctx, int64(skipped), metric.WithAttributes(attrs...))
		}
	}
}

func instanceID() string {
	hostname, _ := os.Hostname()
	return hostname + "-" + strconv.FormatInt(time.Now().Unix(), 10)
}

// TraceIDFromContext returns the active span's trace ID, or "" when the
// context carries no valid span.
func TraceIDFromContext(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// AddSpanEvent attaches a named event to the current span, converting
// the map values to typed attributes.
func AddSpanEvent(ctx context.Context, name string, fields map[string]any) {
	sp := trace.SpanFromContext(ctx)
	if !sp.IsRecording() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, spanAttr(k, v))
	}
	sp.AddEvent(name, trace.WithAttributes(attrs...))
}

func spanAttr(k string, v any) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(k, val)
	case int:
		return attribute.Int(k, val)
	case int64:
		return attribute.Int64(k, val)
	case float64:
		return attribute.Float64(k, val)
	case bool:
		return attribute.Bool(k, val)
	default:
		return attribute.String(k, fmt.Sprint(val))
	}
}

// RecordError marks the current span failed and records err on it.
func RecordError(ctx context.Context, err error, opts ...trace.EventOption) {
	sp := trace.SpanFromContext(ctx)
	if !sp.IsRecording() {
		return
	}

	sp.RecordError(err, opts...)
	sp.SetStatus(codes.Error, err.Error())
}

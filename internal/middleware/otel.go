package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/k-laffite/water-quality-visualizer/internal/infrastructure"
)

// datasetMetricsKey is the context key under which request-scoped
// dataset metrics are stored.
const datasetMetricsKey contextKey = "dataset-metrics"

// OTelMiddleware wraps each HTTP request in a server span and feeds
// the dataset metric instruments.
type OTelMiddleware struct {
	tracer  trace.Tracer
	metrics *infrastructure.DatasetMetrics
	logger  *slog.Logger
}

// NewOTelMiddleware builds the middleware on the given providers.
func NewOTelMiddleware(p *infrastructure.OTelProviders) (*OTelMiddleware, error) {
	metrics, err := infrastructure.CreateDatasetMetrics(p.Meter)
	if err != nil {
		return nil, fmt.Errorf("create dataset metrics: %w", err)
	}

	return &OTelMiddleware{
		tracer:  p.Tracer,
		metrics: metrics,
		logger:  p.Logger,
	}, nil
}

// Metrics exposes the instruments created for this middleware so the
// rest of the application records against the same set.
func (mw *OTelMiddleware) Metrics() *infrastructure.DatasetMetrics {
	return mw.metrics
}

// Handler wraps each request in a server span, counts and times it,
// and emits one completion log line carrying the trace ID.
func (mw *OTelMiddleware) Handler(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		// Continue a caller's trace when the headers carry one
		propagator := otel.GetTextMapPropagator()
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		method, path := r.Method, r.URL.Path
		ip := clientIP(r)
		ua := r.UserAgent()
		spanAttrs := []attribute.KeyValue{
			semconv.HTTPRequestMethodKey.String(method),
			semconv.HTTPRouteKey.String(path),
			semconv.URLSchemeKey.String(r.URL.Scheme),
			semconv.ServerAddressKey.String(r.Host),
			semconv.UserAgentOriginalKey.String(ua),
			semconv.HTTPRequestBodySizeKey.Int64(r.ContentLength),
			semconv.ClientAddressKey.String(ip),
		}
		ctx, span := mw.tracer.Start(ctx, method+" "+path,
			trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(spanAttrs...))
		defer span.End()

		// The span's trace ID doubles as the log correlation ID
		ctx = infrastructure.WithTraceID(ctx, span.SpanContext().TraceID().String())
		r = r.WithContext(ctx)

		cw := &captureWriter{ResponseWriter: w, statusCode: http.StatusOK}

		mw.metrics.HTTPActiveRequests.Add(ctx, 1)
		defer mw.metrics.HTTPActiveRequests.Add(ctx, -1)

		start := time.Now()
		next.ServeHTTP(cw, r)
		elapsed := time.Since(start)

		route := routePattern(r)
		reqAttrs := metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("route", route),
			attribute.Int("status_code", cw.statusCode),
		)
		mw.metrics.HTTPRequestsTotal.Add(ctx, 1, reqAttrs)
		mw.metrics.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), reqAttrs)

		span.SetAttributes(
			semconv.HTTPResponseStatusCodeKey.Int(cw.statusCode),
			semconv.HTTPResponseBodySizeKey.Int64(cw.bytesWritten),
			attribute.Float64("http.request.duration", elapsed.Seconds()),
		)
		if cw.statusCode >= 400 {
			span.SetStatus(codes.Error, http.StatusText(cw.statusCode))
		}

		mw.logger.InfoContext(ctx, "HTTP request completed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("route", route),
			slog.Int("status_code", cw.statusCode),
			slog.Duration("duration", elapsed),
			slog.String("user_agent", ua),
			slog.String("remote_addr", ip),
			slog.Int64("bytes_written", cw.bytesWritten),
			slog.String("trace_id", infrastructure.GetTraceID(ctx)),
		)
	}
	return http.HandlerFunc(fn)
}

// captureWriter records the status and body size for the span and the
// completion log.
type captureWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (c *captureWriter) WriteHeader(code int) {
	c.statusCode = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	n, err := c.ResponseWriter.Write(b)
	c.bytesWritten += int64(n)
	return n, err
}

// routePattern prefers chi's parameterized pattern over the raw path
// so metric labels stay low-cardinality.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// WebSocketTraceMiddleware spans WebSocket upgrade requests. Upgrades
// bypass the regular HTTP middleware stack, so they get their own
// tracer.
func WebSocketTraceMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	tracer := otel.Tracer(infrastructure.MeterName + ".websocket")

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			method := r.Method
			wsAttrs := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(method),
				semconv.HTTPRouteKey.String("/ws"),
				attribute.String("connection.type", "websocket"),
				attribute.String("origin", origin),
				attribute.String("sec_websocket_protocol", r.Header.Get("Sec-WebSocket-Protocol")),
			}
			ctx, span := tracer.Start(r.Context(), "websocket.upgrade",
				trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(wsAttrs...))
			defer span.End()

			sc := span.SpanContext()
			ctx = infrastructure.WithTraceID(ctx, sc.TraceID().String())
			r = r.WithContext(ctx)

			log.InfoContext(ctx, "WebSocket upgrade attempt",
				slog.String("origin", origin),
				slog.String("trace_id", sc.TraceID().String()),
			)

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

// DatasetMetricsMiddleware stores the dataset instruments in the
// request context so handlers record without holding a reference.
func DatasetMetricsMiddleware(metrics *infrastructure.DatasetMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), datasetMetricsKey, metrics)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

// GetDatasetMetricsFromContext returns the instruments stored by
// DatasetMetricsMiddleware, or nil.
func GetDatasetMetricsFromContext(ctx context.Context) *infrastructure.DatasetMetrics {
	if metrics, ok := ctx.Value(datasetMetricsKey).(*infrastructure.DatasetMetrics); ok {
		return metrics
	}
	return nil
}

// RecordStatsMetrics records one column statistics computation.
func RecordStatsMetrics(ctx context.Context, column string) {
	if metrics := GetDatasetMetricsFromContext(ctx); metrics != nil {
		metrics.StatsComputed.Add(ctx, 1,
			metric.WithAttributes(attribute.String("column", column)),
		)
	}

	infrastructure.AddSpanEvent(ctx, "dataset.stats.computed", map[string]any{
		"column": column,
	})
}

// RecordChartMetrics records one chart payload build.
func RecordChartMetrics(ctx context.Context, chartType string, points int) {
	if metrics := GetDatasetMetricsFromContext(ctx); metrics != nil {
		metrics.ChartsBuilt.Add(ctx, 1,
			metric.WithAttributes(attribute.String("chart_type", chartType)),
		)
	}

	infrastructure.AddSpanEvent(ctx, "dataset.chart.built", map[string]any{
		"chart_type": chartType,
		"points":     points,
	})
}

// RecordFilterMetrics records one range filter application.
func RecordFilterMetrics(ctx context.Context, column string, matched int) {
	if metrics := GetDatasetMetricsFromContext(ctx); metrics != nil {
		metrics.FiltersApplied.Add(ctx, 1,
			metric.WithAttributes(attribute.String("column", column)),
		)
	}

	infrastructure.AddSpanEvent(ctx, "dataset.filter.applied", map[string]any{
		"column":  column,
		"matched": matched,
	})
}

// RecordExportMetrics records one dataset export.
func RecordExportMetrics(ctx context.Context, target string, rows int) {
	if metrics := GetDatasetMetricsFromContext(ctx); metrics != nil {
		metrics.ExportsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("target", target)),
		)
	}

	infrastructure.AddSpanEvent(ctx, "dataset.export.completed", map[string]any{
		"target": target,
		"rows":   rows,
	})
}

// clientIP returns the caller address, honoring proxy headers.
func clientIP(r *http.Request) string {
	for _, h := range []string{"X-Forwarded-For", "X-Real-IP"} {
		if ip := r.Header.Get(h); ip != "" {
			return ip
		}
	}
	return r.RemoteAddr
}

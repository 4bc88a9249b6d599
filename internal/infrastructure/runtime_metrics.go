package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// DefaultRuntimeMetricsInterval is how often the collector samples the
// Go runtime when no interval is configured.
const DefaultRuntimeMetricsInterval = 30 * time.Second

// RuntimeMetrics records Go runtime health through the OTel meter so
// the /metrics endpoint exposes process behavior alongside the dataset
// counters.
type RuntimeMetrics struct {
	goroutines metric.Int64Gauge
	heapBytes  metric.Int64Gauge
	sysBytes   metric.Int64Gauge
	uptime     metric.Float64Gauge
	gcTotal    metric.Int64Counter
	gcPause    metric.Float64Histogram
}

// NewRuntimeMetrics creates the runtime instruments on the given meter.
func NewRuntimeMetrics(meter metric.Meter) (*RuntimeMetrics, error) {
	goroutines, err := meter.Int64Gauge(
		"runtime_goroutines",
		metric.WithDescription("Live goroutine count"),
	)
	if err != nil {
		return nil, err
	}

	heapBytes, err := meter.Int64Gauge(
		"runtime_heap_bytes",
		metric.WithDescription("Bytes of allocated heap objects"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	sysBytes, err := meter.Int64Gauge(
		"runtime_sys_bytes",
		metric.WithDescription("Bytes of memory obtained from the OS"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	uptime, err := meter.Float64Gauge(
		"runtime_uptime_seconds",
		metric.WithDescription("Seconds since the process started"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	gcTotal, err := meter.Int64Counter(
		"runtime_gc_total",
		metric.WithDescription("Completed garbage collection cycles"),
	)
	if err != nil {
		return nil, err
	}

	pauses, err := meter.Float64Histogram(
		"runtime_gc_pause_seconds",
		metric.WithDescription("Most recent garbage collection pause"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &RuntimeMetrics{
		goroutines: goroutines,
		heapBytes:  heapBytes,
		sysBytes:   sysBytes,
		uptime:     uptime,
		gcTotal:    gcTotal,
		gcPause:    pauses,
	}, nil
}

// RuntimeSnapshot holds one sample of runtime statistics.
type RuntimeSnapshot struct {
	Goroutines  int
	HeapBytes   int64
	SysBytes    int64
	GCCount     uint32
	LastGCPause time.Duration
	Uptime      time.Duration
	Timestamp   time.Time
}

// RuntimeCollector samples the Go runtime on a fixed interval and
// records the readings. Start blocks until the context is cancelled or
// Stop is called.
type RuntimeCollector struct {
	metrics   *RuntimeMetrics
	startTime time.Time
	interval  time.Duration

	mu     sync.Mutex
	lastGC uint32

	stopOnce sync.Once
	quit     chan struct{}
}

// NewRuntimeCollector creates a collector recording through the given
// meter. A non-positive interval falls back to the default.
func NewRuntimeCollector(meter metric.Meter, interval time.Duration) (*RuntimeCollector, error) {
	metrics, err := NewRuntimeMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime metrics: %w", err)
	}

	if interval <= 0 {
		interval = DefaultRuntimeMetricsInterval
	}

	return &RuntimeCollector{
		metrics:   metrics,
		startTime: time.Now(),
		interval:  interval,
		quit:      make(chan struct{}),
	}, nil
}

// Start runs the collection loop. An initial sample is taken before
// the first tick so short-lived processes still report.
func (rc *RuntimeCollector) Start(ctx context.Context) {
	logger := LoggerWithContext(ctx).With(slog.String("component", "runtime_metrics"))
	logger.Debug("Runtime metrics collection started",
		slog.Duration("interval", rc.interval))
	defer logger.Debug("Runtime metrics collection stopped")

	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	rc.collect(ctx)

	for {
		select {
		case <-ticker.C:
			rc.collect(ctx)
		case <-rc.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the collection loop. Safe to call more than once.
func (rc *RuntimeCollector) Stop() {
	rc.stopOnce.Do(func() {
		close(rc.quit)
	})
}

// Snapshot takes an immediate sample, records it, and returns it.
func (rc *RuntimeCollector) Snapshot(ctx context.Context) RuntimeSnapshot {
	return rc.collect(ctx)
}

func (rc *RuntimeCollector) collect(ctx context.Context) RuntimeSnapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	snapshot := RuntimeSnapshot{
		Goroutines:  runtime.NumGoroutine(),
		HeapBytes:   int64(ms.Alloc),
		SysBytes:    int64(ms.Sys),
		GCCount:     ms.NumGC,
		LastGCPause: time.Duration(ms.PauseNs[(ms.NumGC+255)%256]),
		Uptime:      time.Since(rc.startTime),
		Timestamp:   time.Now(),
	}

	rc.metrics.goroutines.Record(ctx, int64(snapshot.Goroutines))
	rc.metrics.heapBytes.Record(ctx, snapshot.HeapBytes)
	rc.metrics.sysBytes.Record(ctx, snapshot.SysBytes)
	rc.metrics.uptime.Record(ctx, snapshot.Uptime.Seconds())

	// The counter advances by the cycles completed since the last
	// sample, so restarts of the loop never double count.
	rc.mu.Lock()
	delta := int64(snapshot.GCCount - rc.lastGC)
	rc.lastGC = snapshot.GCCount
	rc.mu.Unlock()

	if delta > 0 {
		rc.metrics.gcTotal.Add(ctx, delta)
		if snapshot.LastGCPause > 0 {
			rc.metrics.gcPause.Record(ctx, snapshot.LastGCPause.Seconds())
		}
	}

	return snapshot
}

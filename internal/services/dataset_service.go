package services

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/k-laffite/water-quality-visualizer/internal/analysis"
	"github.com/k-laffite/water-quality-visualizer/internal/config"
	"github.com/k-laffite/water-quality-visualizer/internal/exporter"
	"github.com/k-laffite/water-quality-visualizer/internal/files"
	"github.com/k-laffite/water-quality-visualizer/internal/infrastructure"
	"github.com/k-laffite/water-quality-visualizer/internal/tabular"
	"github.com/k-laffite/water-quality-visualizer/internal/validation"
	apiv1 "github.com/k-laffite/water-quality-visualizer/pkg/contracts/api/v1"
	"github.com/k-laffite/water-quality-visualizer/pkg/contracts/events"
)

// Default names for uploads that arrive without one.
const (
	defaultCSVName      = "upload.csv"
	defaultWorkbookName = "upload.xlsx"
)

// DatasetNotifier pushes dataset lifecycle events to connected clients.
type DatasetNotifier interface {
	BroadcastDatasetLoadedWithTrace(snapshot events.DatasetSnapshot, traceID string)
	BroadcastDatasetRejectedWithTrace(rejection events.DatasetRejection, traceID string)
}

// Dataset is one successfully parsed table plus its load diagnostics.
// Datasets are immutable after construction; the service swaps the
// current pointer and never mutates a published one.
type Dataset struct {
	Name        string
	Fingerprint string
	Table       tabular.Table
	Skipped     []tabular.SkippedLine
	BlankLines  int
	LoadedAt    time.Time
}

// Meta describes the current dataset for the metadata endpoint.
type Meta struct {
	Name         string                `json:"name"`
	Fingerprint  string                `json:"fingerprint"`
	Rows         int                   `json:"rows"`
	Columns      int                   `json:"columns"`
	Numeric      []string              `json:"numeric"`
	SkippedLines []tabular.SkippedLine `json:"skipped_lines"`
	BlankLines   int                   `json:"blank_lines"`
	LoadedAt     time.Time             `json:"loaded_at"`
}

// ColumnsInfo lists all column names plus the numeric subset.
type ColumnsInfo struct {
	Columns []string `json:"columns"`
	Numeric []string `json:"numeric"`
}

// ColumnReport pairs the basic aggregates of one numeric column with its
// distribution profile. Profile is nil when the column has too few
// values for quartiles.
type ColumnReport struct {
	Column  string              `json:"column"`
	Stats   tabular.ColumnStats `json:"stats"`
	Profile *analysis.Profile   `json:"profile,omitempty"`
}

// FilterResult carries the rows matched by an inclusive range filter.
type FilterResult struct {
	Column  string        `json:"column"`
	Min     float64       `json:"min"`
	Max     float64       `json:"max"`
	Matched int           `json:"matched"`
	Rows    []tabular.Row `json:"rows"`
}

// SampleInfo describes one loadable sample dataset.
type SampleInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// ChartPayload is the chart-ready response; exactly one of the shape
// fields is set, matching Type.
type ChartPayload struct {
	Type      string          `json:"type"`
	Histogram *HistogramChart `json:"histogram,omitempty"`
	Scatter   *ScatterChart   `json:"scatter,omitempty"`
	Line      *LineChart      `json:"line,omitempty"`
	Box       *BoxChart       `json:"box,omitempty"`
}

// HistogramChart is the bucketed distribution of one numeric column.
type HistogramChart struct {
	Column  string            `json:"column"`
	Bins    int               `json:"bins"`
	Count   int               `json:"count"`
	Buckets []analysis.Bucket `json:"buckets"`
}

// ScatterPoint is one paired observation.
type ScatterPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ScatterChart pairs two numeric columns row by row. R and Trend are
// omitted when the pairing is too short or has no variation.
type ScatterChart struct {
	XColumn string              `json:"x_column"`
	YColumn string              `json:"y_column"`
	Points  []ScatterPoint      `json:"points"`
	R       *float64            `json:"r,omitempty"`
	Trend   *analysis.TrendLine `json:"trend,omitempty"`
}

// LineChart is the row-ordered numeric series of one column, optionally
// labeled by a second column.
type LineChart struct {
	YColumn string    `json:"y_column"`
	XColumn string    `json:"x_column,omitempty"`
	Labels  []string  `json:"labels,omitempty"`
	Values  []float64 `json:"values"`
}

// BoxChart is the five-number summary of one numeric column with its
// IQR outliers. Median follows the column statistics rule, not the
// averaged variant.
type BoxChart struct {
	Column   string    `json:"column"`
	Count    int       `json:"count"`
	Min      float64   `json:"min"`
	Q1       float64   `json:"q1"`
	Median   float64   `json:"median"`
	Q3       float64   `json:"q3"`
	Max      float64   `json:"max"`
	Outliers []float64 `json:"outliers"`
}

// DatasetService owns the current dataset. Loads parse first and swap
// the pointer only on success, so a failed upload never clobbers what
// users are looking at. All reads go through the same RWMutex.
type DatasetService struct {
	parser    *tabular.Parser
	samples   *files.Manager
	validator *validation.UploadValidator
	notifier  DatasetNotifier
	metrics   *infrastructure.DatasetMetrics
	logger    *slog.Logger

	mu      sync.RWMutex
	current *Dataset
}

// NewDatasetService creates the dataset service. notifier and metrics
// may be nil; samples may be nil when no sample library is configured.
func NewDatasetService(samples *files.Manager, validator *validation.UploadValidator, notifier DatasetNotifier, metrics *infrastructure.DatasetMetrics, logger *slog.Logger) *DatasetService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "dataset_service"))
	if validator == nil {
		validator = validation.NewUploadValidator(0, logger)
	}

	return &DatasetService{
		parser:    tabular.NewParser(logger),
		samples:   samples,
		validator: validator,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
	}
}

// Load parses CSV text and makes it the current dataset. The previous
// dataset survives any failure. A leading UTF-8 BOM is stripped so
// Excel exports and our own BOM-prefixed downloads re-ingest cleanly.
func (s *DatasetService) Load(ctx context.Context, name, content string) (*Meta, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultCSVName
	}

	content = strings.TrimPrefix(content, "\uFEFF")
	raw := []byte(content)

	// Empty input is the parser's call: it owns that failure mode and
	// its sentinel.
	if len(raw) > 0 {
		if err := s.validator.ValidateSize(int64(len(raw))); err != nil {
			s.reject(ctx, name, err)
			return nil, err
		}
		if err := s.validator.ValidateCSVText(raw); err != nil {
			s.reject(ctx, name, err)
			return nil, err
		}
	}

	start := time.Now()
	result, err := s.parser.Parse(ctx, content)
	return s.completeLoad(ctx, name, "csv", raw, result, err, time.Since(start))
}

// LoadWorkbook parses the first sheet of an XLSX workbook and makes it
// the current dataset.
func (s *DatasetService) LoadWorkbook(ctx context.Context, name string, data []byte) (*Meta, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultWorkbookName
	}

	if len(data) > 0 {
		if err := s.validator.ValidateSize(int64(len(data))); err != nil {
			s.reject(ctx, name, err)
			return nil, err
		}
	}

	start := time.Now()
	result, err := s.parser.ParseWorkbook(ctx, bytes.NewReader(data))
	return s.completeLoad(ctx, name, "xlsx", data, result, err, time.Since(start))
}

// LoadSample loads a bundled dataset by bare name. Invalid names map to
// the same not-found error as missing ones so callers cannot probe the
// filesystem through the sample endpoint.
func (s *DatasetService) LoadSample(ctx context.Context, name string) (*Meta, error) {
	if s.samples == nil {
		return nil, fmt.Errorf("%w: no sample library configured", ErrSampleNotFound)
	}

	data, err := s.samples.ReadSample(name)
	if err != nil {
		if errors.Is(err, files.ErrNotFound) || errors.Is(err, files.ErrInvalidName) {
			s.logger.WarnContext(ctx, "Sample lookup failed",
				slog.String("name", name),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %s", ErrSampleNotFound, name)
		}
		return nil, fmt.Errorf("read sample: %w", err)
	}

	if files.IsWorkbook(name) {
		return s.LoadWorkbook(ctx, name, data)
	}
	return s.Load(ctx, name, string(data))
}

// ListSamples returns the loadable sample datasets, oldest first.
func (s *DatasetService) ListSamples(ctx context.Context) ([]SampleInfo, error) {
	if s.samples == nil {
		return []SampleInfo{}, nil
	}

	found, err := s.samples.ListSamples()
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}

	samples := make([]SampleInfo, 0, len(found))
	for _, f := range found {
		samples = append(samples, SampleInfo{
			Name:     f.Name,
			Size:     f.Size,
			Modified: f.ModTime,
		})
	}

	s.logger.DebugContext(ctx, "Listed sample datasets", slog.Int("count", len(samples)))
	return samples, nil
}

// Meta returns metadata for the current dataset.
func (s *DatasetService) Meta(ctx context.Context) (*Meta, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}
	return metaFor(ds), nil
}

// Columns returns all column names plus the numeric subset.
func (s *DatasetService) Columns(ctx context.Context) (*ColumnsInfo, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}
	return &ColumnsInfo{
		Columns: ds.Table.ColumnNames(),
		Numeric: numericNames(ds.Table),
	}, nil
}

// Stats computes summary statistics for one column.
func (s *DatasetService) Stats(ctx context.Context, column string) (*tabular.ColumnStats, error) {
	if strings.TrimSpace(column) == "" {
		return nil, fmt.Errorf("%w: column is required", ErrInvalidInput)
	}

	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}
	if !ds.Table.HasColumn(column) {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}

	stats, ok := ds.Table.ColumnStats(column)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoNumericData, column)
	}

	s.logger.DebugContext(ctx, "Computed column statistics",
		slog.String("column", column),
		slog.Int("count", stats.Count))
	return &stats, nil
}

// Summary computes statistics and the distribution profile for every
// numeric column concurrently. Results keep the table's column order.
func (s *DatasetService) Summary(ctx context.Context) ([]ColumnReport, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}

	numeric := ds.Table.NumericColumnNames()
	reports := make([]ColumnReport, len(numeric))

	g, gctx := errgroup.WithContext(ctx)
	for i, column := range numeric {
		i, column := i, column
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			stats, ok := ds.Table.ColumnStats(column)
			if !ok {
				// Unreachable: the column is in the numeric set.
				return fmt.Errorf("%w: %s", ErrNoNumericData, column)
			}

			report := ColumnReport{Column: column, Stats: stats}
			if profile, err := analysis.ProfileColumn(ds.Table.NumericColumn(column)); err == nil {
				report.Profile = &profile
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "Computed dataset summary",
		slog.Int("columns", len(reports)))
	return reports, nil
}

// Filter returns the rows whose value in the named column falls inside
// the inclusive [min, max] range.
func (s *DatasetService) Filter(ctx context.Context, column string, min, max float64) (*FilterResult, error) {
	if strings.TrimSpace(column) == "" {
		return nil, fmt.Errorf("%w: column is required", ErrInvalidInput)
	}
	if min > max {
		return nil, fmt.Errorf("%w: min %.6g greater than max %.6g", ErrInvalidInput, min, max)
	}

	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}
	if !ds.Table.HasColumn(column) {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}

	rows := ds.Table.FilterByRange(column, min, max)
	if rows == nil {
		rows = []tabular.Row{}
	}

	s.logger.DebugContext(ctx, "Applied range filter",
		slog.String("column", column),
		slog.Int("matched", len(rows)))

	return &FilterResult{
		Column:  column,
		Min:     min,
		Max:     max,
		Matched: len(rows),
		Rows:    rows,
	}, nil
}

// Chart builds the chart-ready payload for one request.
func (s *DatasetService) Chart(ctx context.Context, req apiv1.ChartRequest) (*ChartPayload, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}

	payload := &ChartPayload{Type: req.Type}
	switch req.Type {
	case "histogram":
		payload.Histogram, err = s.histogramChart(ds.Table, req)
	case "scatter":
		payload.Scatter, err = s.scatterChart(ds.Table, req)
	case "line":
		payload.Line, err = s.lineChart(ds.Table, req)
	case "box":
		payload.Box, err = s.boxChart(ds.Table, req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidChartType, req.Type)
	}
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "Built chart payload",
		slog.String("type", req.Type))
	return payload, nil
}

// ExportCSV writes the current table as a BOM-prefixed CSV download and
// returns its metadata for the response headers.
func (s *DatasetService) ExportCSV(ctx context.Context, w io.Writer) (*Meta, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}

	if err := exporter.WriteTable(w, ds.Table, exporter.WriteOptions{BOMPrefix: true}); err != nil {
		return nil, fmt.Errorf("export table: %w", err)
	}

	s.logger.InfoContext(ctx, "Exported dataset as CSV",
		slog.String("name", ds.Name),
		slog.Int("rows", ds.Table.RowCount()))
	return metaFor(ds), nil
}

// ExportStatsCSV writes the per-column statistics of the current table
// as a BOM-prefixed CSV download.
func (s *DatasetService) ExportStatsCSV(ctx context.Context, w io.Writer) (*Meta, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}

	var summaries []exporter.ColumnSummary
	for _, column := range ds.Table.NumericColumnNames() {
		if stats, ok := ds.Table.ColumnStats(column); ok {
			summaries = append(summaries, exporter.ColumnSummary{Column: column, Stats: stats})
		}
	}

	if err := exporter.WriteStats(w, summaries, exporter.WriteOptions{BOMPrefix: true}); err != nil {
		return nil, fmt.Errorf("export stats: %w", err)
	}

	s.logger.InfoContext(ctx, "Exported column statistics as CSV",
		slog.String("name", ds.Name),
		slog.Int("columns", len(summaries)))
	return metaFor(ds), nil
}

// completeLoad finishes both load paths: metrics, rejection broadcast on
// failure, and the swap plus loaded broadcast on success.
func (s *DatasetService) completeLoad(ctx context.Context, name, format string, raw []byte, result *tabular.ParseResult, parseErr error, duration time.Duration) (*Meta, error) {
	rows, skipped := 0, 0
	if result != nil {
		rows = result.Table.RowCount()
		skipped = len(result.Skipped)
	}
	infrastructure.RecordParseMetrics(ctx, s.metrics, format, duration, rows, skipped, parseErr)

	if parseErr != nil {
		s.reject(ctx, name, parseErr)
		return nil, parseErr
	}

	ds := &Dataset{
		Name:        name,
		Fingerprint: fingerprint(raw),
		Table:       result.Table,
		Skipped:     result.Skipped,
		BlankLines:  result.BlankLines,
		LoadedAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	s.current = ds
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Dataset loaded",
		slog.String("name", ds.Name),
		slog.String("fingerprint", ds.Fingerprint),
		slog.String("format", format),
		slog.Int("rows", rows),
		slog.Int("columns", ds.Table.ColumnCount()),
		slog.Int("skipped", skipped),
		slog.Duration("duration", duration))

	if s.notifier != nil {
		s.notifier.BroadcastDatasetLoadedWithTrace(snapshotFor(ds), infrastructure.GetTraceID(ctx))
	}
	return metaFor(ds), nil
}

// reject logs a failed load and pushes the rejection to clients.
func (s *DatasetService) reject(ctx context.Context, name string, err error) {
	s.logger.WarnContext(ctx, "Dataset rejected",
		slog.String("name", name),
		slog.String("error", err.Error()))
	if s.notifier != nil {
		s.notifier.BroadcastDatasetRejectedWithTrace(events.DatasetRejection{
			Name:   name,
			Reason: err.Error(),
		}, infrastructure.GetTraceID(ctx))
	}
}

// dataset returns the current dataset or ErrNoDataset. Published
// datasets are immutable, so the pointer stays valid after the lock is
// released even if a load swaps in a new one.
func (s *DatasetService) dataset() (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoDataset
	}
	return s.current, nil
}

func (s *DatasetService) histogramChart(table tabular.Table, req apiv1.ChartRequest) (*HistogramChart, error) {
	column := firstNonEmpty(req.X, req.Y)
	if column == "" {
		return nil, fmt.Errorf("%w: histogram requires a column", ErrInvalidInput)
	}

	bins := req.Bins
	if bins == 0 {
		bins = config.DefaultChartBins
	}
	if bins < config.MinChartBins || bins > config.MaxChartBins {
		return nil, fmt.Errorf("%w: bins must be between %d and %d", ErrInvalidInput, config.MinChartBins, config.MaxChartBins)
	}

	if !table.HasColumn(column) {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}
	values := table.NumericColumn(column)
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoNumericData, column)
	}

	buckets, err := analysis.Histogram(values, bins)
	if err != nil {
		return nil, fmt.Errorf("histogram: %w", err)
	}

	return &HistogramChart{
		Column:  column,
		Bins:    len(buckets),
		Count:   len(values),
		Buckets: buckets,
	}, nil
}

func (s *DatasetService) scatterChart(table tabular.Table, req apiv1.ChartRequest) (*ScatterChart, error) {
	if req.X == "" || req.Y == "" {
		return nil, fmt.Errorf("%w: scatter requires x and y columns", ErrInvalidInput)
	}
	for _, column := range []string{req.X, req.Y} {
		if !table.HasColumn(column) {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
		}
	}

	// Pair row by row; a row contributes only when both cells are
	// numeric.
	var xs, ys []float64
	var points []ScatterPoint
	for _, row := range table.Rows() {
		xv, okx := row[req.X].Number()
		yv, oky := row[req.Y].Number()
		if !okx || !oky {
			continue
		}
		xs = append(xs, xv)
		ys = append(ys, yv)
		points = append(points, ScatterPoint{X: xv, Y: yv})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no paired numeric values in %s and %s", ErrNoNumericData, req.X, req.Y)
	}

	chart := &ScatterChart{
		XColumn: req.X,
		YColumn: req.Y,
		Points:  points,
	}
	if r, err := analysis.Pearson(xs, ys); err == nil {
		chart.R = &r
	}
	if trend, err := analysis.Trend(xs, ys); err == nil {
		chart.Trend = &trend
	}
	return chart, nil
}

func (s *DatasetService) lineChart(table tabular.Table, req apiv1.ChartRequest) (*LineChart, error) {
	if req.Y == "" {
		return nil, fmt.Errorf("%w: line requires a y column", ErrInvalidInput)
	}
	if !table.HasColumn(req.Y) {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, req.Y)
	}
	if req.X != "" && !table.HasColumn(req.X) {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, req.X)
	}

	// Labels align with the surviving values, so rows whose y cell is
	// not numeric drop their label too.
	var values []float64
	var labels []string
	for _, row := range table.Rows() {
		v, ok := row[req.Y].Number()
		if !ok {
			continue
		}
		values = append(values, v)
		if req.X != "" {
			labels = append(labels, row[req.X].Text())
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoNumericData, req.Y)
	}

	return &LineChart{
		YColumn: req.Y,
		XColumn: req.X,
		Labels:  labels,
		Values:  values,
	}, nil
}

func (s *DatasetService) boxChart(table tabular.Table, req apiv1.ChartRequest) (*BoxChart, error) {
	column := firstNonEmpty(req.X, req.Y)
	if column == "" {
		return nil, fmt.Errorf("%w: box requires a column", ErrInvalidInput)
	}
	if !table.HasColumn(column) {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}

	values := table.NumericColumn(column)
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoNumericData, column)
	}

	stats, _ := table.ColumnStats(column)
	chart := &BoxChart{
		Column: column,
		Count:  len(values),
		Min:    stats.Min,
		Median: stats.Median,
		Max:    stats.Max,
		Q1:     stats.Median,
		Q3:     stats.Median,
	}

	// Quartiles need at least two values; a singleton box collapses to
	// its median.
	if profile, err := analysis.ProfileColumn(values); err == nil {
		chart.Q1 = profile.Q1
		chart.Q3 = profile.Q3
		chart.Outliers = profile.Outliers
	}
	if chart.Outliers == nil {
		chart.Outliers = []float64{}
	}
	return chart, nil
}

func metaFor(ds *Dataset) *Meta {
	skipped := ds.Skipped
	if skipped == nil {
		skipped = []tabular.SkippedLine{}
	}
	return &Meta{
		Name:         ds.Name,
		Fingerprint:  ds.Fingerprint,
		Rows:         ds.Table.RowCount(),
		Columns:      ds.Table.ColumnCount(),
		Numeric:      numericNames(ds.Table),
		SkippedLines: skipped,
		BlankLines:   ds.BlankLines,
		LoadedAt:     ds.LoadedAt,
	}
}

func snapshotFor(ds *Dataset) events.DatasetSnapshot {
	return events.DatasetSnapshot{
		Name:         ds.Name,
		Fingerprint:  ds.Fingerprint,
		Rows:         ds.Table.RowCount(),
		Columns:      ds.Table.ColumnCount(),
		Numeric:      numericNames(ds.Table),
		SkippedLines: len(ds.Skipped),
		BlankLines:   ds.BlankLines,
		LoadedAt:     ds.LoadedAt,
	}
}

// fingerprint derives the dataset identity from the raw upload bytes:
// the first 8 bytes of a BLAKE2b-256 digest, hex encoded. Identical
// uploads therefore share a fingerprint, which doubles as the ETag.
func fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func numericNames(t tabular.Table) []string {
	names := t.NumericColumnNames()
	if names == nil {
		return []string{}
	}
	return names
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

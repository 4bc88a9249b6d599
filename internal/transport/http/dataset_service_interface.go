package http

import (
	"context"
	"io"

	"github.com/k-laffite/water-quality-visualizer/internal/services"
	"github.com/k-laffite/water-quality-visualizer/internal/tabular"
	apiv1 "github.com/k-laffite/water-quality-visualizer/pkg/contracts/api/v1"
)

// DatasetServiceInterface defines the interface for dataset operations
type DatasetServiceInterface interface {
	Load(ctx context.Context, name, content string) (*services.Meta, error)
	LoadWorkbook(ctx context.Context, name string, data []byte) (*services.Meta, error)
	LoadSample(ctx context.Context, name string) (*services.Meta, error)
	ListSamples(ctx context.Context) ([]services.SampleInfo, error)
	Meta(ctx context.Context) (*services.Meta, error)
	Columns(ctx context.Context) (*services.ColumnsInfo, error)
	Stats(ctx context.Context, column string) (*tabular.ColumnStats, error)
	Summary(ctx context.Context) ([]services.ColumnReport, error)
	Filter(ctx context.Context, column string, min, max float64) (*services.FilterResult, error)
	Chart(ctx context.Context, req apiv1.ChartRequest) (*services.ChartPayload, error)
	ExportCSV(ctx context.Context, w io.Writer) (*services.Meta, error)
	ExportStatsCSV(ctx context.Context, w io.Writer) (*services.Meta, error)
}

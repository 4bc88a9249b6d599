package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/k-laffite/water-quality-visualizer/internal/tabular"
)

// utf8BOM helps Excel recognize a download as UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// statsHeader is the column order of the statistics export, matching the
// JSON field order of tabular.ColumnStats.
var statsHeader = []string{"column", "count", "min", "max", "mean", "median", "stdev"}

// WriteOptions configures CSV export behavior.
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// ColumnSummary pairs a column name with its statistics for export.
type ColumnSummary struct {
	Column string
	Stats  tabular.ColumnStats
}

// WriteTable writes the table as CSV: one header record, then one record
// per row in source order. Cells are written in their Text form, and
// encoding/csv quotes any field containing commas, quotes, or newlines
// with the doubled-quote escape, so the output re-parses into an
// identical table.
func WriteTable(w io.Writer, table tabular.Table, opts WriteOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	headers := table.ColumnNames()
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i, row := range table.Rows() {
		record := make([]string, len(headers))
		for j, h := range headers {
			record[j] = row[h].Text()
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteStats writes one record per column summary in the given order.
// Count is written as an integer; every other quantity carries the
// two-decimal display form, so 13.4 appears as 13.40.
func WriteStats(w io.Writer, summaries []ColumnSummary, opts WriteOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(statsHeader); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for _, s := range summaries {
		record := []string{
			s.Column,
			formatInt(int64(s.Stats.Count)),
			formatFloat(s.Stats.Min),
			formatFloat(s.Stats.Max),
			formatFloat(s.Stats.Mean),
			formatFloat(s.Stats.Median),
			formatFloat(s.Stats.Stdev),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write stats for column %s: %w", s.Column, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

package tabular

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseWorkbook reads the first sheet of an XLSX workbook and runs it
// through the same header, coercion and diagnostics pipeline as CSV
// text, with the same failure sentinels.
//
// Sheet rows arrive as cell slices, so no field splitting applies. Two
// workbook-specific allowances: leading all-blank rows before the
// header are skipped, and rows shorter than the header are padded with
// empty cells, because the format omits trailing blanks. Rows longer
// than the header are still width mismatches and are skipped.
func (p *Parser) ParseWorkbook(ctx context.Context, r io.Reader) (*ParseResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyInput
	}
	sheet := sheets[0]

	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	headerIdx := -1
	for i, cells := range raw {
		if !rowIsBlank(cells) {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return nil, ErrEmptyInput
	}

	headers := make([]string, len(raw[headerIdx]))
	for i, cell := range raw[headerIdx] {
		headers[i] = strings.TrimSpace(cell)
	}
	if len(headers) == 0 {
		return nil, ErrNoHeaders
	}

	result := &ParseResult{LineCount: len(raw)}
	rows := make([]Row, 0, len(raw)-headerIdx-1)

	for i := headerIdx + 1; i < len(raw); i++ {
		rowNo := i + 1
		cells := raw[i]
		if rowIsBlank(cells) {
			result.BlankLines++
			continue
		}

		if len(cells) > len(headers) {
			p.logger.WarnContext(ctx, "Skipping sheet row wider than header",
				slog.String("sheet", sheet),
				slog.Int("row", rowNo),
				slog.Int("cells", len(cells)),
				slog.Int("headers", len(headers)))
			result.Skipped = append(result.Skipped, SkippedLine{
				Number:     rowNo,
				FieldCount: len(cells),
			})
			continue
		}

		row := make(Row, len(headers))
		for j, h := range headers {
			field := ""
			if j < len(cells) {
				field = strings.TrimSpace(cells[j])
			}
			row[h] = coerceField(field)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrNoData
	}

	result.Table = NewTable(headers, rows)
	p.logger.InfoContext(ctx, "Parsed workbook sheet",
		slog.String("sheet", sheet),
		slog.Int("rows", len(rows)),
		slog.Int("columns", len(headers)),
		slog.Int("skipped", len(result.Skipped)))
	return result, nil
}

func rowIsBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

package tabular

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Parse failure sentinels. Each is fatal to the attempt: the caller
// receives no table, partial or otherwise.
var (
	// ErrEmptyInput means the input was empty or whitespace-only.
	ErrEmptyInput = errors.New("input is empty or whitespace-only")

	// ErrNoHeaders means the header line yielded zero fields.
	ErrNoHeaders = errors.New("header line has no fields")

	// ErrNoData means every data line was blank or width-mismatched,
	// leaving zero rows. An all-rows-invalid input is a failed parse,
	// not an empty table.
	ErrNoData = errors.New("no valid data rows")
)

// SkippedLine records one data line dropped because its field count did
// not match the header count.
type SkippedLine struct {
	// Number is the 1-based physical line (or sheet row) in the input.
	Number int `json:"number"`
	// FieldCount is how many fields the line produced.
	FieldCount int `json:"field_count"`
}

// ParseResult bundles the parsed table with per-call diagnostics. The
// diagnostics exist so the presentation layer can warn about skipped
// lines; they never make a parse fail.
type ParseResult struct {
	Table      Table
	LineCount  int // physical lines scanned, header included
	BlankLines int
	Skipped    []SkippedLine
}

// Parser converts raw CSV text into tables. It holds no table state;
// every call returns a fresh result.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser. A nil logger falls back to slog.Default.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		logger: logger.With(slog.String("component", "tabular.parser")),
	}
}

// Parse converts CSV text into a Table.
//
// The whole input is trimmed, then split on newline characters. The
// first line is the header row. Each later line that trims to empty is
// skipped silently; a line whose field count differs from the header
// count is skipped with a warning and recorded in the result; every
// surviving field is coerced per ParseNumber and keyed by its header.
func (p *Parser) Parse(ctx context.Context, text string) (*ParseResult, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyInput
	}

	lines := strings.Split(trimmed, "\n")
	headers := splitLine(lines[0])
	if len(headers) == 0 {
		return nil, ErrNoHeaders
	}

	result := &ParseResult{LineCount: len(lines)}
	rows := make([]Row, 0, len(lines)-1)

	for i, line := range lines[1:] {
		lineNo := i + 2
		if strings.TrimSpace(line) == "" {
			result.BlankLines++
			continue
		}

		fields := splitLine(line)
		if len(fields) != len(headers) {
			p.logger.WarnContext(ctx, "Skipping row with mismatched field count",
				slog.Int("line", lineNo),
				slog.Int("fields", len(fields)),
				slog.Int("headers", len(headers)))
			result.Skipped = append(result.Skipped, SkippedLine{
				Number:     lineNo,
				FieldCount: len(fields),
			})
			continue
		}

		row := make(Row, len(headers))
		for j, h := range headers {
			row[h] = coerceField(fields[j])
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrNoData
	}

	result.Table = NewTable(headers, rows)
	p.logger.InfoContext(ctx, "Parsed tabular input",
		slog.Int("rows", len(rows)),
		slog.Int("columns", len(headers)),
		slog.Int("skipped", len(result.Skipped)),
		slog.Int("blank", result.BlankLines))
	return result, nil
}

// splitLine splits one physical line into trimmed fields.
//
// Single accumulator, single inside-quotes flag: a quote toggles the
// flag unless it is the first of a "" pair inside quotes, which emits
// one literal quote; a comma outside quotes ends the field; everything
// else is appended verbatim. The final accumulator is always pushed, so
// every line yields at least one field. Quoted fields never span lines.
func splitLine(line string) []string {
	var fields []string
	var buf strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				buf.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case ch == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(buf.String()))
			buf.Reset()
		default:
			buf.WriteByte(ch)
		}
	}
	fields = append(fields, strings.TrimSpace(buf.String()))
	return fields
}

// coerceField decides number vs string for one trimmed field. The empty
// string never coerces; it stays the string "".
func coerceField(s string) Cell {
	if v, ok := ParseNumber(s); ok {
		return NumberCell(v)
	}
	return StringCell(s)
}

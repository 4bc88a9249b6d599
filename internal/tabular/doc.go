// Package tabular converts raw measurement data into typed tables and
// derives per-column summary statistics. It is the core of the water
// quality visualizer: everything above it (HTTP handlers, websocket
// events, exports) is presentation plumbing around this package.
//
// # Architecture
//
// The package is organized into three main components:
//
// 1. Parser: turns CSV text (or the first sheet of an XLSX workbook)
// into an immutable Table of coerced cells
// 2. Table: ordered headers plus ordered records, with column accessors
// and range filtering
// 3. Statistics: on-demand count/min/max/mean/median/stdev over the
// numeric cells of a column
//
// # Usage
//
// Basic parsing example:
//
//	parser := tabular.NewParser(logger)
//	result, err := parser.Parse(ctx, csvText)
//	if err != nil {
//	    // tabular.ErrEmptyInput, tabular.ErrNoHeaders or tabular.ErrNoData
//	}
//	stats, ok := result.Table.ColumnStats("pH")
//
// # Dialect
//
// The accepted CSV dialect is comma-delimited with double-quote quoting
// and "" as the escaped quote inside a quoted field. Every field is
// trimmed. Quoted fields do not span physical lines; an embedded newline
// inside quotes is a documented limitation, not a bug.
//
// # Coercion
//
// A trimmed field becomes a number only when it matches the explicit
// numeric-literal grammar in this package (optional sign, integer or
// decimal, optional exponent). Everything else, including the empty
// string, stays a string cell. The permissive forms strconv accepts on
// top of that grammar (Inf, NaN, hex floats, digit separators) are
// deliberately rejected so the same inputs coerce identically everywhere.
//
// # Error Handling
//
// Parse failures are fatal and leave no partial table: empty input,
// a header line with no fields, and inputs where no data row survives
// each map to a sentinel error. Per-row problems are not errors: a row
// whose field count does not match the header count is skipped and
// reported in the ParseResult diagnostics, and parsing continues.
package tabular

package tabular

import (
	"encoding/json"
	"strconv"
)

// Cell is a single parsed field: either a float64 or the trimmed source
// string. The zero value is the empty string cell.
type Cell struct {
	num     float64
	str     string
	numeric bool
}

// NumberCell returns a numeric cell holding v.
func NumberCell(v float64) Cell {
	return Cell{num: v, numeric: true}
}

// StringCell returns a string cell holding s.
func StringCell(s string) Cell {
	return Cell{str: s}
}

// IsNumber reports whether the cell coerced to a number.
func (c Cell) IsNumber() bool {
	return c.numeric
}

// Number returns the numeric value; ok is false for string cells.
func (c Cell) Number() (float64, bool) {
	if !c.numeric {
		return 0, false
	}
	return c.num, true
}

// Text returns the string value; numeric cells format with the shortest
// representation that round-trips.
func (c Cell) Text() string {
	if c.numeric {
		return strconv.FormatFloat(c.num, 'g', -1, 64)
	}
	return c.str
}

// String implements fmt.Stringer.
func (c Cell) String() string {
	return c.Text()
}

// MarshalJSON emits a JSON number for numeric cells and a JSON string
// otherwise, matching the number|string cell model.
func (c Cell) MarshalJSON() ([]byte, error) {
	if c.numeric {
		return json.Marshal(c.num)
	}
	return json.Marshal(c.str)
}

// Row maps every header of its table to one cell.
type Row map[string]Cell

// Table is the parser's output: ordered column names plus ordered
// records. A Table is a value; each successful parse builds a fresh one
// and no operation mutates it after construction.
type Table struct {
	headers []string
	rows    []Row
}

// NewTable builds a table directly from headers and rows. Callers that
// assemble tables by hand (tests, exports) are responsible for rows
// keyed consistently with headers; Parse always satisfies that.
func NewTable(headers []string, rows []Row) Table {
	return Table{headers: headers, rows: rows}
}

// ColumnNames returns all headers in parse order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.headers))
	copy(names, t.headers)
	return names
}

// NumericColumnNames returns the headers, in original order, whose
// column holds at least one numeric cell. A single numeric cell is
// enough even when every other cell in the column is a string.
func (t Table) NumericColumnNames() []string {
	var names []string
	for _, h := range t.headers {
		for _, row := range t.rows {
			if row[h].IsNumber() {
				names = append(names, h)
				break
			}
		}
	}
	return names
}

// HasColumn reports whether name is one of the table's headers.
func (t Table) HasColumn(name string) bool {
	for _, h := range t.headers {
		if h == name {
			return true
		}
	}
	return false
}

// RowCount returns the number of records.
func (t Table) RowCount() int {
	return len(t.rows)
}

// ColumnCount returns the number of headers.
func (t Table) ColumnCount() int {
	return len(t.headers)
}

// Rows returns the records in source order. The returned slice is a
// copy; the row maps themselves are shared and treated as read-only.
func (t Table) Rows() []Row {
	rows := make([]Row, len(t.rows))
	copy(rows, t.rows)
	return rows
}

// Column returns the cells of one column in row order; ok is false when
// the header does not exist.
func (t Table) Column(name string) ([]Cell, bool) {
	if !t.HasColumn(name) {
		return nil, false
	}
	cells := make([]Cell, len(t.rows))
	for i, row := range t.rows {
		cells[i] = row[name]
	}
	return cells, true
}

// NumericColumn returns the numeric values of one column in row order.
// String cells are excluded, never treated as zero. An unknown column
// yields an empty slice, the same as a column with no numeric cells.
func (t Table) NumericColumn(name string) []float64 {
	var values []float64
	for _, row := range t.rows {
		if v, ok := row[name].Number(); ok {
			values = append(values, v)
		}
	}
	return values
}

// FilterByRange returns the rows whose cell in the named column is
// numeric and within [min, max] inclusive, preserving source order.
// Rows with a string cell in that column are excluded.
func (t Table) FilterByRange(name string, min, max float64) []Row {
	var matched []Row
	for _, row := range t.rows {
		v, ok := row[name].Number()
		if !ok {
			continue
		}
		if v >= min && v <= max {
			matched = append(matched, row)
		}
	}
	return matched
}

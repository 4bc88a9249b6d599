package testutil

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// Canned CSV inputs shared by parser, service, and handler tests.
const (
	// ValidCSV is a small well-formed water quality table. Every row has
	// three fields and both ph and temperature parse as numbers.
	ValidCSV = `site,ph,temperature
Station A,7.2,18.5
Station B,6.9,17.0
Station C,7.4,19.1
Station D,7.0,18.0
`

	// MessyCSV mixes blank lines, quoted fields, and a row with the wrong
	// field count. Line 5 has four fields and must be skipped.
	MessyCSV = `site,ph,notes

"Station A",7.2,"clear water"
"Station, B",6.9,"high turbidity, retest"
Station C,7.4,extra,field
Station D,"7.0","says ""fine"""
`

	// HeaderOnlyCSV parses headers but carries no data rows.
	HeaderOnlyCSV = `site,ph,temperature
`

	// NonNumericCSV has no numeric cells at all.
	NonNumericCSV = `site,status
Station A,ok
Station B,flagged
`
)

// SequenceCSV builds a single numeric column named value holding 1..n.
func SequenceCSV(n int) string {
	var b strings.Builder
	b.WriteString("value\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d\n", i)
	}
	return b.String()
}

// WorkbookBytes builds an xlsx workbook in memory with the given rows on
// the first sheet. Row values may be strings or numbers.
func WorkbookBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell coordinates: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set sheet row: %v", err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// ValidWorkbook builds an xlsx rendition of ValidCSV.
func ValidWorkbook(t *testing.T) []byte {
	t.Helper()
	return WorkbookBytes(t, [][]interface{}{
		{"site", "ph", "temperature"},
		{"Station A", 7.2, 18.5},
		{"Station B", 6.9, 17.0},
		{"Station C", 7.4, 19.1},
		{"Station D", 7.0, 18.0},
	})
}

package tabular

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// TestParseWorkbook exercises the full sheet pipeline: a leading blank
// row before the header, numeric and string cells, an interior blank
// row, a short row padded with empty cells and a wide row skipped with
// a diagnostic.
func TestParseWorkbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	// Row 1 left unset so the header sits below a blank row.
	if err := f.SetSheetRow(sheet, "A2", &[]interface{}{"site", " ph", "temp "}); err != nil {
		t.Fatalf("write header row: %v", err)
	}
	if err := f.SetSheetRow(sheet, "A3", &[]interface{}{"Station A", 7.2, 18}); err != nil {
		t.Fatalf("write data row: %v", err)
	}
	// Row 4 left unset to form an interior blank row.
	if err := f.SetSheetRow(sheet, "A5", &[]interface{}{"Station B", "6.9"}); err != nil {
		t.Fatalf("write short row: %v", err)
	}
	if err := f.SetSheetRow(sheet, "A6", &[]interface{}{"Station C", 7.0, 16, "extra"}); err != nil {
		t.Fatalf("write wide row: %v", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("serialize workbook: %v", err)
	}

	res, err := NewParser(nil).ParseWorkbook(context.Background(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ParseWorkbook returned error: %v", err)
	}

	wantHeaders := []string{"site", "ph", "temp"}
	if got := res.Table.ColumnNames(); len(got) != len(wantHeaders) {
		t.Fatalf("headers mismatch: want %v, got %v", wantHeaders, got)
	} else {
		for i, h := range wantHeaders {
			if got[i] != h {
				t.Errorf("header %d: want %q, got %q", i, h, got[i])
			}
		}
	}

	if res.Table.RowCount() != 2 {
		t.Fatalf("expected 2 rows, got %d", res.Table.RowCount())
	}
	if res.BlankLines != 1 {
		t.Errorf("expected 1 blank row, got %d", res.BlankLines)
	}
	if len(res.Skipped) != 1 {
		t.Fatalf("expected 1 skipped row, got %d", len(res.Skipped))
	}
	if res.Skipped[0].Number != 6 || res.Skipped[0].FieldCount != 4 {
		t.Errorf("skipped diagnostic mismatch: got %+v", res.Skipped[0])
	}

	rows := res.Table.Rows()

	if rows[0]["site"].Text() != "Station A" {
		t.Errorf("row 0 site: got %q", rows[0]["site"].Text())
	}
	if v, ok := rows[0]["ph"].Number(); !ok || v != 7.2 {
		t.Errorf("row 0 ph: want numeric 7.2, got %v (numeric=%v)", v, ok)
	}
	if v, ok := rows[0]["temp"].Number(); !ok || v != 18 {
		t.Errorf("row 0 temp: want numeric 18, got %v (numeric=%v)", v, ok)
	}

	// The short row keeps its parsed cells and gains an empty string
	// cell for the missing trailing column.
	if v, ok := rows[1]["ph"].Number(); !ok || v != 6.9 {
		t.Errorf("row 1 ph: want numeric 6.9, got %v (numeric=%v)", v, ok)
	}
	if cell := rows[1]["temp"]; cell.IsNumber() || cell.Text() != "" {
		t.Errorf("row 1 temp: want empty string cell, got %v", cell)
	}

	numeric := res.Table.NumericColumnNames()
	if len(numeric) != 2 || numeric[0] != "ph" || numeric[1] != "temp" {
		t.Errorf("numeric columns: want [ph temp], got %v", numeric)
	}
}

func TestParseWorkbookEmpty(t *testing.T) {
	f := excelize.NewFile()
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("serialize workbook: %v", err)
	}

	_, err = NewParser(nil).ParseWorkbook(context.Background(), bytes.NewReader(buf.Bytes()))
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestParseWorkbookHeaderOnly(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"site", "ph"}); err != nil {
		t.Fatalf("write header row: %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("serialize workbook: %v", err)
	}

	_, err = NewParser(nil).ParseWorkbook(context.Background(), bytes.NewReader(buf.Bytes()))
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestParseWorkbookCorruptInput(t *testing.T) {
	_, err := NewParser(nil).ParseWorkbook(context.Background(), strings.NewReader("not a workbook"))
	if err == nil {
		t.Fatal("expected error for non-XLSX input")
	}
	if errors.Is(err, ErrEmptyInput) || errors.Is(err, ErrNoData) {
		t.Fatalf("corrupt input must not map to a content sentinel, got %v", err)
	}
}

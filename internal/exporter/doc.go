// Package exporter renders datasets and column statistics as CSV
// downloads.
//
// This package contains two writers:
//
// WriteTable: The current table, header first, cells in their display
// form. Fields containing commas, quotes, or newlines are quoted with
// the doubled-quote escape, so exported output re-parses into an
// identical table.
//
// WriteStats: One record per column summary with count as an integer and
// every other quantity formatted to exactly two decimal places, plus an
// optional UTF-8 BOM for Excel compatibility.
//
// Example usage:
//
//	var buf bytes.Buffer
//	err := exporter.WriteTable(&buf, table, exporter.WriteOptions{})
//
//	err = exporter.WriteStats(w, summaries, exporter.WriteOptions{BOMPrefix: true})
package exporter

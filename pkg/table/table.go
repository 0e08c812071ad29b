// Package table parses uploaded sales CSVs into an in-memory table and
// computes summary metrics over them. Everything in here is pure: callers own
// all IO and persistence.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Table is a parsed CSV file: a header plus rows of raw string cells. Cells
// stay untyped; numeric interpretation happens at calculation time so that a
// bad cell spoils one value, not the whole file.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Read parses CSV content. Every row must match the header width (same
// strictness as the csv package default). A file without a header row is an
// error; a header with zero data rows is not.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make([]string, len(header))
	for i, c := range header {
		cols[i] = strings.TrimSpace(c)
	}
	t := &Table{Columns: cols}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+2, err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// ColumnIndex returns the position of a named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Records converts rows into column->cell maps for JSON output. Always
// returns a non-nil slice so an empty table serializes as [] and not null.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// Filter returns the rows whose Product cell contains query,
// case-insensitively. An empty query keeps every row in stored order. Rows
// with an empty Product cell never match a non-empty query, and a table
// without a Product column matches nothing.
func (t *Table) Filter(query string) *Table {
	out := &Table{Columns: t.Columns, Rows: [][]string{}}
	if query == "" {
		out.Rows = append(out.Rows, t.Rows...)
		return out
	}
	idx := t.ColumnIndex(ColumnProduct)
	if idx < 0 {
		return out
	}
	q := strings.ToLower(query)
	for _, row := range t.Rows {
		if idx >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[idx])
		if cell == "" {
			continue
		}
		if strings.Contains(strings.ToLower(cell), q) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// cellFloat parses a numeric cell. Empty, non-numeric and NaN cells count as
// missing and are excluded from sums, means and extrema. ParseFloat accepts
// the literal "NaN", which would otherwise poison every reduction it touches.
func cellFloat(row []string, idx int) (float64, bool) {
	if idx >= len(row) {
		return 0, false
	}
	s := strings.TrimSpace(row[idx])
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

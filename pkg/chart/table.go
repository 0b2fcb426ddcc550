package chart

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Table is a parsed CSV: a header row and string cells. Rows are padded to
// the header width.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadOptions controls CSV loading.
type ReadOptions struct {
	// MaxRows caps the number of data rows. Larger tables are sampled
	// deterministically with Seed, keeping the original row order.
	MaxRows int
	Seed    uint64
}

// ReadCSV loads a CSV file. Files that are not valid UTF-8 are decoded as
// Latin-1. Fully empty rows and columns are dropped.
func ReadCSV(path string, opts ReadOptions) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseCSV(data, opts)
}

// ParseCSV parses CSV bytes the same way ReadCSV does.
func ParseCSV(data []byte, opts ReadOptions) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode latin-1: %w", err)
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse row %d: %w", len(rows)+2, err)
		}
		row := make([]string, len(header))
		copy(row, rec)
		rows = append(rows, row)
	}

	t := &Table{Header: header, Rows: rows}
	t.dropEmpty()
	if len(t.Rows) == 0 || len(t.Header) == 0 {
		return nil, ErrEmptyTable
	}
	if opts.MaxRows > 0 && len(t.Rows) > opts.MaxRows {
		t.Rows = sampleRows(t.Rows, opts.MaxRows, opts.Seed)
	}
	return t, nil
}

func (t *Table) dropEmpty() {
	kept := t.Rows[:0]
	for _, row := range t.Rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				kept = append(kept, row)
				break
			}
		}
	}
	t.Rows = kept

	var cols []int
	for c := range t.Header {
		for _, row := range t.Rows {
			if strings.TrimSpace(row[c]) != "" {
				cols = append(cols, c)
				break
			}
		}
	}
	if len(cols) == len(t.Header) {
		return
	}
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = t.Header[c]
	}
	for i, row := range t.Rows {
		nr := make([]string, len(cols))
		for j, c := range cols {
			nr[j] = row[c]
		}
		t.Rows[i] = nr
	}
	t.Header = header
}

func sampleRows(rows [][]string, n int, seed uint64) [][]string {
	rng := rand.New(rand.NewPCG(seed, seed))
	idx := rng.Perm(len(rows))[:n]
	sort.Ints(idx)
	out := make([][]string, n)
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

// ColumnIndex resolves a column by header name (case-insensitive) or by a
// 0-based integer index.
func (t *Table) ColumnIndex(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	for i, h := range t.Header {
		if h == ref {
			return i, nil
		}
	}
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), ref) {
			return i, nil
		}
	}
	if i, err := strconv.Atoi(ref); err == nil && i >= 0 && i < len(t.Header) {
		return i, nil
	}
	return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, ref)
}

// Column returns all cells of column c.
func (t *Table) Column(c int) []string {
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[c]
	}
	return out
}

// IsNumeric reports whether every non-empty cell of column c parses as a
// plain number and at least one does.
func (t *Table) IsNumeric(c int) bool {
	seen := false
	for _, row := range t.Rows {
		cell := strings.TrimSpace(row[c])
		if cell == "" {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

// NumericColumns lists numeric column indexes in header order.
func (t *Table) NumericColumns() []int {
	var out []int
	for c := range t.Header {
		if t.IsNumeric(c) {
			out = append(out, c)
		}
	}
	return out
}

// CategoricalColumns lists non-numeric column indexes in header order.
func (t *Table) CategoricalColumns() []int {
	var out []int
	for c := range t.Header {
		if !t.IsNumeric(c) {
			out = append(out, c)
		}
	}
	return out
}

// ParseNumber coerces cells like "1,234" or "12.5%" to a float.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "%", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

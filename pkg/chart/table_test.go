package chart

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV_DropsEmptyRowsAndColumns(t *testing.T) {
	data := []byte("Country,Empty,Value\nA,,10\n,,\nB,,5\n")

	table, err := ParseCSV(data, ReadOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Country", "Value"}, table.Header)
	assert.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"B", "5"}, table.Rows[1])
}

func TestParseCSV_Latin1Fallback(t *testing.T) {
	// "Côte" in ISO-8859-1
	data := []byte("Country,Value\nC\xf4te,3\n")

	table, err := ParseCSV(data, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Côte", table.Rows[0][0])
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV([]byte(""), ReadOptions{})
	assert.ErrorIs(t, err, ErrEmptyTable)

	_, err = ParseCSV([]byte("a,b\n,\n"), ReadOptions{})
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestParseCSV_MaxRowsKeepsOrder(t *testing.T) {
	data := []byte("n\n1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n")

	table, err := ParseCSV(data, ReadOptions{MaxRows: 4, Seed: 42})
	require.NoError(t, err)
	require.Len(t, table.Rows, 4)

	prev := 0.0
	for _, row := range table.Rows {
		v, ok := ParseNumber(row[0])
		require.True(t, ok)
		assert.Greater(t, v, prev)
		prev = v
	}

	again, err := ParseCSV(data, ReadOptions{MaxRows: 4, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, table.Rows, again.Rows)
}

func TestReadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("\xef\xbb\xbfName,Count\nx,1\n"), 0644))

	table, err := ReadCSV(path, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Name", table.Header[0])

	_, err = ReadCSV(filepath.Join(t.TempDir(), "missing.csv"), ReadOptions{})
	assert.Error(t, err)
}

func TestColumnIndex(t *testing.T) {
	table := &Table{Header: []string{"Country", "Value"}}

	tests := []struct {
		ref     string
		want    int
		wantErr bool
	}{
		{"Country", 0, false},
		{"value", 1, false},
		{"1", 1, false},
		{"2", -1, true},
		{"Missing", -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := table.ColumnIndex(tt.ref)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrColumnNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColumnTypes(t *testing.T) {
	table := &Table{
		Header: []string{"Name", "Count", "Share"},
		Rows: [][]string{
			{"a", "1", "10%"},
			{"b", "", "20%"},
			{"c", "3.5", "70%"},
		},
	}
	assert.Equal(t, []int{1}, table.NumericColumns())
	assert.Equal(t, []int{0, 2}, table.CategoricalColumns())
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1,234", 1234, true},
		{" 12.5% ", 12.5, true},
		{"-3", -3, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"NaN", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

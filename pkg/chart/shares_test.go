package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countryTable() *Table {
	return &Table{
		Header: []string{"Country", "Value"},
		Rows: [][]string{
			{"A", "10"}, {"B", "5"}, {"C", "1"}, {"D", "0.5"}, {"E", "0.2"},
		},
	}
}

func TestPrepareShares_OtherThreshold(t *testing.T) {
	cats, err := PrepareShares(countryTable(), ShareOptions{
		LabelColumn:    "Country",
		ValueColumn:    "Value",
		OtherThreshold: 0.1,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D", OtherLabel}, Labels(cats))
	assert.InDelta(t, 10/16.7, cats[0].Value, 1e-9)
	assert.InDelta(t, 0.2/16.7, cats[4].Value, 1e-9)
	assert.InDelta(t, 1.0, Total(cats), 1e-9)
	for i := 1; i < len(cats); i++ {
		assert.GreaterOrEqual(t, cats[i-1].Value, cats[i].Value)
	}
}

func TestPrepareShares_TopN(t *testing.T) {
	cats, err := PrepareShares(countryTable(), ShareOptions{
		LabelColumn: "0",
		ValueColumn: "1",
		TopN:        2,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", OtherLabel}, Labels(cats))
	assert.InDelta(t, 1.7/16.7, cats[2].Value, 1e-9)
}

func TestPrepareShares_TopNAndThresholdShareOneOther(t *testing.T) {
	cats, err := PrepareShares(countryTable(), ShareOptions{
		LabelColumn:    "Country",
		ValueColumn:    "Value",
		TopN:           4,
		OtherThreshold: 0.3,
	})
	require.NoError(t, err)

	others := 0
	for _, c := range cats {
		if c.Label == OtherLabel {
			others++
		}
	}
	assert.Equal(t, 1, others)
	assert.InDelta(t, 1.0, Total(cats), 1e-9)
}

func TestPrepareShares_Percentages(t *testing.T) {
	table := &Table{
		Header: []string{"Option", "Share"},
		Rows:   [][]string{{"Yes", "60%"}, {"No", "0.3"}, {"Unsure", "10"}},
	}
	cats, err := PrepareShares(table, ShareOptions{
		LabelColumn:      "Option",
		ValueColumn:      "Share",
		ValuesArePercent: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Yes", "No", "Unsure"}, Labels(cats))
	assert.InDelta(t, 0.6, cats[0].Value, 1e-9)
}

func TestPrepareShares_Errors(t *testing.T) {
	_, err := PrepareShares(countryTable(), ShareOptions{LabelColumn: "Nope", ValueColumn: "Value"})
	assert.ErrorIs(t, err, ErrColumnNotFound)

	zero := &Table{Header: []string{"L", "V"}, Rows: [][]string{{"a", "0"}, {"b", "x"}}}
	_, err = PrepareShares(zero, ShareOptions{LabelColumn: "L", ValueColumn: "V"})
	assert.ErrorIs(t, err, ErrNonPositiveTotal)
}

func TestPrepareShares_DropEmptyLabels(t *testing.T) {
	table := &Table{Header: []string{"L", "V"}, Rows: [][]string{{"a", "1"}, {"", "3"}}}

	cats, err := PrepareShares(table, ShareOptions{LabelColumn: "L", ValueColumn: "V"})
	require.NoError(t, err)
	assert.Len(t, cats, 2)

	cats, err = PrepareShares(table, ShareOptions{LabelColumn: "L", ValueColumn: "V", DropEmptyLabels: true})
	require.NoError(t, err)
	assert.Equal(t, []Category{{"a", 1}}, cats)
}

package chart

import (
	"fmt"
	"strings"
)

// ShareOptions configures PrepareShares.
type ShareOptions struct {
	LabelColumn      string  `json:"labels" mapstructure:"labels"`
	ValueColumn      string  `json:"values" mapstructure:"values"`
	ValuesArePercent bool    `json:"values_are_percent" mapstructure:"values_are_percent"`
	TopN             int     `json:"topn" mapstructure:"topn"`
	OtherThreshold   float64 `json:"other_threshold" mapstructure:"other_threshold"`
	DropEmptyLabels  bool    `json:"dropna_labels" mapstructure:"dropna_labels"`
}

// PrepareShares turns a label/value table into pie shares that sum to 1,
// sorted by share descending.
//
// TopN keeps the N largest categories and folds the rest into "Other".
// OtherThreshold is relative to an even split: with N categories a slice is
// folded when its share is below OtherThreshold/N.
func PrepareShares(t *Table, opts ShareOptions) ([]Category, error) {
	lc, err := t.ColumnIndex(opts.LabelColumn)
	if err != nil {
		return nil, fmt.Errorf("label column: %w", err)
	}
	vc, err := t.ColumnIndex(opts.ValueColumn)
	if err != nil {
		return nil, fmt.Errorf("value column: %w", err)
	}

	var labels []string
	var values []float64
	for _, row := range t.Rows {
		label := strings.TrimSpace(row[lc])
		if label == "" && opts.DropEmptyLabels {
			continue
		}
		v, ok := ParseNumber(row[vc])
		if !ok {
			continue
		}
		if opts.ValuesArePercent && v > 1.0000001 {
			v /= 100
		}
		labels = append(labels, label)
		values = append(values, v)
	}

	cats := groupSumKeepEmpty(labels, values)
	total := Total(cats)
	if total <= 0 {
		return nil, ErrNonPositiveTotal
	}
	for i := range cats {
		cats[i].Value /= total
	}

	if opts.TopN > 0 && len(cats) > opts.TopN {
		sortDescending(cats)
		var rest float64
		for _, c := range cats[opts.TopN:] {
			rest += c.Value
		}
		cats = addOther(append([]Category(nil), cats[:opts.TopN]...), rest)
	}

	if opts.OtherThreshold > 0 {
		cutoff := opts.OtherThreshold / float64(len(cats))
		var major []Category
		var minor float64
		for _, c := range cats {
			if c.Value < cutoff && c.Label != OtherLabel {
				minor += c.Value
				continue
			}
			major = append(major, c)
		}
		cats = addOther(major, minor)
	}

	sortDescending(cats)
	return cats, nil
}

// groupSumKeepEmpty is groupSum without dropping empty labels.
func groupSumKeepEmpty(labels []string, values []float64) []Category {
	index := make(map[string]int)
	var cats []Category
	for i, label := range labels {
		j, ok := index[label]
		if !ok {
			j = len(cats)
			index[label] = j
			cats = append(cats, Category{Label: label})
		}
		cats[j].Value += values[i]
	}
	return cats
}

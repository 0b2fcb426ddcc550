package chart

import (
	"fmt"
	"sort"
	"strings"
)

// OtherLabel is the synthetic category that absorbs folded slices.
const OtherLabel = "Other"

// Category is one labeled value of a chart.
type Category struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Total sums category values.
func Total(cats []Category) float64 {
	var sum float64
	for _, c := range cats {
		sum += c.Value
	}
	return sum
}

// Labels returns the category labels in order.
func Labels(cats []Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = c.Label
	}
	return out
}

// AggregateOptions selects the columns and limits for Aggregate.
type AggregateOptions struct {
	LabelColumn   int
	ValueColumn   int // -1 when the table has no value column
	MaxCategories int
	MinCategories int
}

// DefaultAggregateOptions returns the pie defaults: at most 10 slices, at least 3.
func DefaultAggregateOptions() AggregateOptions {
	return AggregateOptions{
		ValueColumn:   -1,
		MaxCategories: 10,
		MinCategories: 3,
	}
}

// Aggregate groups a table into at most MaxCategories pie slices. The value
// column is summed per label when it carries information; otherwise label
// frequencies are counted. Non-positive groups are dropped and the tail beyond
// MaxCategories-1 is folded into "Other".
func Aggregate(t *Table, opts AggregateOptions) ([]Category, error) {
	if opts.MaxCategories <= 0 {
		opts.MaxCategories = 10
	}

	labels := t.Column(opts.LabelColumn)

	var values []float64
	if opts.ValueColumn >= 0 && opts.ValueColumn < len(t.Header) && opts.ValueColumn != opts.LabelColumn {
		values = make([]float64, len(labels))
		for i, cell := range t.Column(opts.ValueColumn) {
			values[i], _ = ParseNumber(cell)
		}
		if !informative(values) {
			values = nil
		}
	}

	cats := groupSum(labels, values)
	cats = positive(cats)
	sortDescending(cats)
	cats = foldTail(cats, opts.MaxCategories)

	if len(cats) < opts.MinCategories {
		return nil, fmt.Errorf("%w: %d < %d", ErrTooFewCategories, len(cats), opts.MinCategories)
	}
	return cats, nil
}

// informative reports whether a value column should be summed rather than
// replaced by label counts.
func informative(values []float64) bool {
	var sum float64
	distinct := make(map[float64]struct{})
	for _, v := range values {
		sum += v
		distinct[v] = struct{}{}
	}
	return sum != 0 && len(distinct) > 1
}

// groupSum sums values per trimmed label in first-seen order. A nil values
// slice counts rows instead. Empty labels are ignored.
func groupSum(labels []string, values []float64) []Category {
	index := make(map[string]int)
	var cats []Category
	for i, raw := range labels {
		label := strings.TrimSpace(raw)
		if label == "" {
			continue
		}
		v := 1.0
		if values != nil {
			v = values[i]
		}
		j, ok := index[label]
		if !ok {
			j = len(cats)
			index[label] = j
			cats = append(cats, Category{Label: label})
		}
		cats[j].Value += v
	}
	return cats
}

func positive(cats []Category) []Category {
	out := cats[:0]
	for _, c := range cats {
		if c.Value > 0 {
			out = append(out, c)
		}
	}
	return out
}

func sortDescending(cats []Category) {
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].Value > cats[j].Value })
}

// foldTail keeps the first max-1 categories and sums the rest into Other.
// Input must already be sorted. An existing Other category is merged.
func foldTail(cats []Category, max int) []Category {
	if max <= 0 || len(cats) <= max {
		return cats
	}
	keep := max - 1
	var rest float64
	for _, c := range cats[keep:] {
		rest += c.Value
	}
	out := make([]Category, 0, max)
	out = append(out, cats[:keep]...)
	return addOther(out, rest)
}

func addOther(cats []Category, share float64) []Category {
	if share <= 0 {
		return cats
	}
	for i := range cats {
		if cats[i].Label == OtherLabel {
			cats[i].Value += share
			return cats
		}
	}
	return append(cats, Category{Label: OtherLabel, Value: share})
}

// BarOptions selects the columns and limits for AggregateBars.
type BarOptions struct {
	LabelColumn int
	ValueColumn int
	MaxBars     int
	MinBars     int
}

// DefaultBarOptions returns the bar defaults: the 12 largest bars, at least 3.
func DefaultBarOptions() BarOptions {
	return BarOptions{ValueColumn: -1, MaxBars: 12, MinBars: 3}
}

// AggregateBars sums the value column per label when any cell parses as a
// number and counts labels otherwise. Only positive bars are kept; the
// MaxBars largest are returned in ascending order so a horizontal chart
// draws the largest bar on top.
func AggregateBars(t *Table, opts BarOptions) ([]Category, error) {
	if opts.MaxBars <= 0 {
		opts.MaxBars = 12
	}
	labels := t.Column(opts.LabelColumn)

	var values []float64
	if opts.ValueColumn >= 0 && opts.ValueColumn < len(t.Header) && opts.ValueColumn != opts.LabelColumn {
		parsed := make([]float64, len(labels))
		found := false
		filteredLabels := make([]string, 0, len(labels))
		for i, cell := range t.Column(opts.ValueColumn) {
			v, ok := ParseNumber(cell)
			if !ok {
				continue
			}
			found = true
			parsed[len(filteredLabels)] = v
			filteredLabels = append(filteredLabels, labels[i])
		}
		if found {
			labels = filteredLabels
			values = parsed[:len(filteredLabels)]
		}
	}

	cats := positive(groupSum(labels, values))
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].Value < cats[j].Value })
	if len(cats) > opts.MaxBars {
		cats = cats[len(cats)-opts.MaxBars:]
	}
	if len(cats) < opts.MinBars {
		return nil, fmt.Errorf("%w: %d < %d", ErrTooFewCategories, len(cats), opts.MinBars)
	}
	return cats, nil
}

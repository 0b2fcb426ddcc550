package chart

import (
	"fmt"
	"strings"
)

// Kind is a chart type together with its typed parameters. The concrete
// kinds are PieKind and BarKind; consumers dispatch with a type switch.
type Kind interface {
	Name() string
	// Aggregate reduces a table to the categories this kind draws.
	Aggregate(t *Table, labelCol, valueCol int) ([]Category, error)
	isKind()
}

// PieKind draws a single-layer pie, or a ring when Donut is set.
type PieKind struct {
	Donut         bool
	RingWidth     float64 // fraction of the radius, used when Donut
	AutoPctMin    float64 // wedges below this share get no percentage label
	MaxCategories int
	MinCategories int
}

// Orientation of bar charts.
type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

// BarKind draws one bar per category with its value printed at the tip.
type BarKind struct {
	Orientation Orientation
	MaxBars     int
	MinBars     int
}

// DefaultPie returns the infographic pie: up to 10 slices, labels above 8%.
func DefaultPie() PieKind {
	return PieKind{RingWidth: 0.45, AutoPctMin: 0.08, MaxCategories: 10, MinCategories: 3}
}

// DefaultBar returns a horizontal bar chart of the 12 largest categories.
func DefaultBar() BarKind {
	return BarKind{Orientation: Horizontal, MaxBars: 12, MinBars: 3}
}

func (k PieKind) Name() string {
	if k.Donut {
		return "donut"
	}
	return "pie"
}

func (k PieKind) Aggregate(t *Table, labelCol, valueCol int) ([]Category, error) {
	return Aggregate(t, AggregateOptions{
		LabelColumn:   labelCol,
		ValueColumn:   valueCol,
		MaxCategories: k.MaxCategories,
		MinCategories: k.MinCategories,
	})
}

func (PieKind) isKind() {}

func (k BarKind) Name() string {
	if k.Orientation == Vertical {
		return "vbar"
	}
	return "hbar"
}

func (k BarKind) Aggregate(t *Table, labelCol, valueCol int) ([]Category, error) {
	cats, err := AggregateBars(t, BarOptions{
		LabelColumn: labelCol,
		ValueColumn: valueCol,
		MaxBars:     k.MaxBars,
		MinBars:     k.MinBars,
	})
	if err != nil {
		return nil, err
	}
	if k.Orientation == Vertical {
		// largest first, left to right
		for i, j := 0, len(cats)-1; i < j; i, j = i+1, j-1 {
			cats[i], cats[j] = cats[j], cats[i]
		}
	}
	return cats, nil
}

func (BarKind) isKind() {}

// ParseKind maps a kind name (pie, donut, hbar, vbar) to its default variant.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pie":
		return DefaultPie(), nil
	case "donut":
		k := DefaultPie()
		k.Donut = true
		return k, nil
	case "hbar", "bar":
		return DefaultBar(), nil
	case "vbar":
		k := DefaultBar()
		k.Orientation = Vertical
		return k, nil
	default:
		return nil, fmt.Errorf("unknown chart kind %q", name)
	}
}

// ParseKinds parses a rotation of kinds for batch generation.
func ParseKinds(names []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(names))
	for _, n := range names {
		k, err := ParseKind(n)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no chart kinds configured")
	}
	return kinds, nil
}

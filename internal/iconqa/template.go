package iconqa

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Template selects the layout of one composed image.
type Template interface {
	Name() string
	isTemplate()
}

// RowTemplate places icons left to right along the vertical center.
type RowTemplate struct{}

// ScatterTemplate places icons at random non-overlapping positions.
type ScatterTemplate struct{}

// GridTemplate tiles a fixed Rows×Cols grid.
type GridTemplate struct {
	Rows int
	Cols int
}

// AutoGridTemplate picks the grid dimensions per image.
type AutoGridTemplate struct{}

// Grid4Template is a single row of four cells with a tighter fill range and
// an optional canvas of its own.
type Grid4Template struct{}

func (RowTemplate) Name() string      { return "row" }
func (ScatterTemplate) Name() string  { return "scatter" }
func (AutoGridTemplate) Name() string { return "grid:auto" }
func (Grid4Template) Name() string    { return "grid4" }
func (g GridTemplate) Name() string   { return fmt.Sprintf("grid:%dx%d", g.Rows, g.Cols) }

func (RowTemplate) isTemplate()      {}
func (ScatterTemplate) isTemplate()  {}
func (GridTemplate) isTemplate()     {}
func (AutoGridTemplate) isTemplate() {}
func (Grid4Template) isTemplate()    {}

var gridPattern = regexp.MustCompile(`^grid:(\d+)x(\d+)$`)

// ParseTemplate parses one of row, scatter, grid4, grid:auto or grid:RxC.
func ParseTemplate(s string) (Template, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "row":
		return RowTemplate{}, nil
	case "scatter":
		return ScatterTemplate{}, nil
	case "grid4":
		return Grid4Template{}, nil
	case "grid:auto":
		return AutoGridTemplate{}, nil
	}
	m := gridPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return nil, fmt.Errorf("unknown template %q", s)
	}
	r, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("grid template %q: rows: %w", s, err)
	}
	c, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, fmt.Errorf("grid template %q: cols: %w", s, err)
	}
	if r < 1 || c < 1 {
		return nil, fmt.Errorf("grid template %q needs at least one row and column", s)
	}
	return GridTemplate{Rows: r, Cols: c}, nil
}

// ParseTemplates parses a template list. Entries may also be comma separated.
func ParseTemplates(names []string) ([]Template, error) {
	var out []Template
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			t, err := ParseTemplate(part)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no templates given")
	}
	return out, nil
}

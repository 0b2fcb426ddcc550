package iconqa

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"math/rand/v2"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Caia-Tech/caia-chartforge/internal/registry"
	"github.com/Caia-Tech/caia-chartforge/internal/render"
	"github.com/Caia-Tech/caia-chartforge/pkg/logging"
)

// Config configures an icon composition run.
type Config struct {
	PoolDir         string   `json:"pool_dir" mapstructure:"pool_dir"`
	OutputDir       string   `json:"output_dir" mapstructure:"output_dir"`
	Count           int      `json:"count" mapstructure:"count"`
	Templates       []string `json:"templates" mapstructure:"templates"`
	CanvasWidth     int      `json:"canvas_width" mapstructure:"canvas_width"`
	CanvasHeight    int      `json:"canvas_height" mapstructure:"canvas_height"`
	Grid4Width      int      `json:"grid4_width" mapstructure:"grid4_width"`
	Grid4Height     int      `json:"grid4_height" mapstructure:"grid4_height"`
	Background      string   `json:"background" mapstructure:"background"`
	Seed            uint64   `json:"seed" mapstructure:"seed"`
	RowMin          int      `json:"row_min" mapstructure:"row_min"`
	RowMax          int      `json:"row_max" mapstructure:"row_max"`
	RowGapMin       int      `json:"row_gap_min" mapstructure:"row_gap_min"`
	RowGapMax       int      `json:"row_gap_max" mapstructure:"row_gap_max"`
	ScatterMin      int      `json:"scatter_min" mapstructure:"scatter_min"`
	ScatterMax      int      `json:"scatter_max" mapstructure:"scatter_max"`
	ScaleMin        float64  `json:"scale_min" mapstructure:"scale_min"`
	ScaleMax        float64  `json:"scale_max" mapstructure:"scale_max"`
	RotMin          float64  `json:"rot_min" mapstructure:"rot_min"`
	RotMax          float64  `json:"rot_max" mapstructure:"rot_max"`
	CellPad         int      `json:"cell_pad" mapstructure:"cell_pad"`
	GridKMin        int      `json:"grid_k_min" mapstructure:"grid_k_min"`
	GridKMax        int      `json:"grid_k_max" mapstructure:"grid_k_max"`
	GridMinRows     int      `json:"grid_min_rows" mapstructure:"grid_min_rows"`
	GridMaxRows     int      `json:"grid_max_rows" mapstructure:"grid_max_rows"`
	GridMinCols     int      `json:"grid_min_cols" mapstructure:"grid_min_cols"`
	GridMaxCols     int      `json:"grid_max_cols" mapstructure:"grid_max_cols"`
	GridUniformSize bool     `json:"grid_uniform_size" mapstructure:"grid_uniform_size"`
	GridUniformFill float64  `json:"grid_uniform_fill" mapstructure:"grid_uniform_fill"`
	GridBorders     bool     `json:"grid_borders" mapstructure:"grid_borders"`
}

// DefaultConfig returns a 768×256 canvas mixing all template kinds.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:       "iconqa_out",
		Count:           50,
		Templates:       []string{"row", "scatter", "grid4", "grid:auto"},
		CanvasWidth:     768,
		CanvasHeight:    256,
		Background:      "white",
		RowMin:          8,
		RowMax:          14,
		RowGapMin:       6,
		RowGapMax:       18,
		ScatterMin:      8,
		ScatterMax:      12,
		ScaleMin:        0.6,
		ScaleMax:        1.2,
		CellPad:         10,
		GridKMin:        1,
		GridKMax:        4,
		GridMinRows:     1,
		GridMaxRows:     3,
		GridMinCols:     3,
		GridMaxCols:     5,
		GridUniformFill: 0.90,
		GridBorders:     true,
	}
}

// fixPair swaps a reversed range and clamps it to the optional bounds,
// logging each correction.
func fixPair[T int | float64](logger zerolog.Logger, name string, lo, hi T, floor, ceil *T) (T, T) {
	if hi < lo {
		logger.Warn().Str("range", name).Any("from", []T{lo, hi}).Msg("Swapping reversed range")
		lo, hi = hi, lo
	}
	if floor != nil && lo < *floor {
		logger.Warn().Str("range", name).Any("low", lo).Any("clamped_to", *floor).Msg("Clamping range low")
		lo = *floor
	}
	if floor != nil && hi < *floor {
		hi = *floor
	}
	if ceil != nil && hi > *ceil {
		logger.Warn().Str("range", name).Any("high", hi).Any("clamped_to", *ceil).Msg("Clamping range high")
		hi = *ceil
	}
	return lo, hi
}

func ptr[T any](v T) *T { return &v }

// Validate checks required fields and normalizes every range.
func (c *Config) Validate() error {
	if c.PoolDir == "" {
		return fmt.Errorf("icon pool dir is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir is required")
	}
	if c.Count <= 0 {
		return fmt.Errorf("count must be positive, got %d", c.Count)
	}
	if c.CanvasWidth <= 0 || c.CanvasHeight <= 0 {
		return fmt.Errorf("invalid canvas %dx%d", c.CanvasWidth, c.CanvasHeight)
	}
	if (c.Grid4Width > 0) != (c.Grid4Height > 0) {
		return fmt.Errorf("grid4 canvas needs both width and height")
	}
	templates, err := ParseTemplates(c.Templates)
	if err != nil {
		return err
	}
	for _, t := range templates {
		if g, ok := t.(GridTemplate); ok && (g.Rows > c.CanvasHeight || g.Cols > c.CanvasWidth) {
			return fmt.Errorf("grid %dx%d does not fit a %dx%d canvas", g.Rows, g.Cols, c.CanvasWidth, c.CanvasHeight)
		}
	}
	if _, err := ParseBackground(c.Background); err != nil {
		return err
	}

	logger := logging.GetLogger("iconqa")
	c.RowMin, c.RowMax = fixPair(logger, "row count", c.RowMin, c.RowMax, ptr(1), nil)
	c.RowGapMin, c.RowGapMax = fixPair(logger, "row gap", c.RowGapMin, c.RowGapMax, ptr(0), nil)
	c.ScatterMin, c.ScatterMax = fixPair(logger, "scatter count", c.ScatterMin, c.ScatterMax, ptr(1), nil)
	c.ScaleMin, c.ScaleMax = fixPair(logger, "scale", c.ScaleMin, c.ScaleMax, ptr(0.01), nil)
	c.RotMin, c.RotMax = fixPair(logger, "rotation", c.RotMin, c.RotMax, nil, nil)
	c.GridMinRows, c.GridMaxRows = fixPair(logger, "grid rows", c.GridMinRows, c.GridMaxRows, ptr(1), nil)
	c.GridMinCols, c.GridMaxCols = fixPair(logger, "grid cols", c.GridMinCols, c.GridMaxCols, ptr(1), nil)
	c.GridKMin, c.GridKMax = fixPair(logger, "grid distinct-k", c.GridKMin, c.GridKMax, ptr(1), nil)
	if c.GridMaxRows > c.CanvasHeight || c.GridMaxCols > c.CanvasWidth {
		return fmt.Errorf("auto grid up to %dx%d does not fit a %dx%d canvas", c.GridMaxRows, c.GridMaxCols, c.CanvasWidth, c.CanvasHeight)
	}
	if c.CellPad < 0 {
		c.CellPad = 0
	}
	if c.GridUniformFill <= 0 || c.GridUniformFill > 1 {
		logger.Warn().Float64("grid_uniform_fill", c.GridUniformFill).Msg("Uniform fill outside (0, 1], using 0.9")
		c.GridUniformFill = 0.90
	}
	return nil
}

// Record is one line of metadata.jsonl.
type Record struct {
	ID         string   `json:"id"`
	Image      string   `json:"image"`
	Layout     string   `json:"layout"`
	CanvasSize [2]int   `json:"canvas_size"`
	Objects    []Object `json:"objects"`
}

// Grid fill fractions of the padded cell.
const (
	gridFillMin  = 0.85
	gridFillMax  = 0.95
	grid4FillMin = 0.82
	grid4FillMax = 0.92
)

// Composer renders icon compositions from a loaded pool.
type Composer struct {
	cfg       *Config
	icons     []Icon
	templates []Template
	bg        Background
	rng       *rand.Rand
	logger    zerolog.Logger
}

// NewComposer validates cfg and loads the icon pool.
func NewComposer(cfg *Config) (*Composer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid icon composer config: %w", err)
	}
	icons, err := LoadPool(cfg.PoolDir)
	if err != nil {
		return nil, err
	}
	return newComposer(cfg, icons), nil
}

func newComposer(cfg *Config, icons []Icon) *Composer {
	templates, _ := ParseTemplates(cfg.Templates)
	bg, _ := ParseBackground(cfg.Background)
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Composer{
		cfg:       cfg,
		icons:     icons,
		templates: templates,
		bg:        bg,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger:    logging.GetGeneratorLogger("iconqa", uuid.NewString()),
	}
}

func (c *Composer) fit() FitRange {
	return FitRange{ScaleMin: c.cfg.ScaleMin, ScaleMax: c.cfg.ScaleMax, RotMin: c.cfg.RotMin, RotMax: c.cfg.RotMax}
}

func (c *Composer) grid(rows, cols int, fillMin, fillMax float64) GridOptions {
	return GridOptions{
		Rows:        rows,
		Cols:        cols,
		CellPad:     c.cfg.CellPad,
		FillMin:     fillMin,
		FillMax:     fillMax,
		RotMin:      c.cfg.RotMin,
		RotMax:      c.cfg.RotMax,
		KMin:        c.cfg.GridKMin,
		KMax:        c.cfg.GridKMax,
		Uniform:     c.cfg.GridUniformSize,
		UniformFill: c.cfg.GridUniformFill,
		Borders:     c.cfg.GridBorders,
	}
}

// Compose draws one image with template t and returns it with its layout name.
func (c *Composer) Compose(t Template) (*image.RGBA, string, []Object) {
	w, h := c.cfg.CanvasWidth, c.cfg.CanvasHeight
	if _, ok := t.(Grid4Template); ok && c.cfg.Grid4Width > 0 {
		w, h = c.cfg.Grid4Width, c.cfg.Grid4Height
	}
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(c.bg.Color(c.rng)), image.Point{}, draw.Src)

	var objects []Object
	name := t.Name()
	switch t := t.(type) {
	case RowTemplate:
		objects = LayoutRow(c.rng, canvas, c.icons, RowOptions{
			Min: c.cfg.RowMin, Max: c.cfg.RowMax,
			GapMin: c.cfg.RowGapMin, GapMax: c.cfg.RowGapMax,
			Fit: c.fit(),
		})
	case ScatterTemplate:
		objects = LayoutScatter(c.rng, canvas, c.icons, ScatterOptions{
			Min: c.cfg.ScatterMin, Max: c.cfg.ScatterMax, Fit: c.fit(),
		})
	case Grid4Template:
		name = GridTemplate{Rows: 1, Cols: 4}.Name()
		objects = LayoutGrid(c.rng, canvas, c.icons, c.grid(1, 4, grid4FillMin, grid4FillMax))
	case GridTemplate:
		objects = LayoutGrid(c.rng, canvas, c.icons, c.grid(t.Rows, t.Cols, gridFillMin, gridFillMax))
	case AutoGridTemplate:
		g := GridTemplate{
			Rows: intBetween(c.rng, c.cfg.GridMinRows, c.cfg.GridMaxRows),
			Cols: intBetween(c.rng, c.cfg.GridMinCols, c.cfg.GridMaxCols),
		}
		name = g.Name()
		objects = LayoutGrid(c.rng, canvas, c.icons, c.grid(g.Rows, g.Cols, gridFillMin, gridFillMax))
	}
	if objects == nil {
		objects = []Object{}
	}
	return canvas, name, objects
}

// RunStats summarizes a composition run.
type RunStats struct {
	Images   int            `json:"images"`
	Objects  int            `json:"objects"`
	Layouts  map[string]int `json:"layouts"`
	Metadata string         `json:"metadata"`
}

// Run writes Count images as comp_%06d.png plus one metadata.jsonl record
// per image.
func (c *Composer) Run(ctx context.Context) (*RunStats, error) {
	metaPath := filepath.Join(c.cfg.OutputDir, "metadata.jsonl")
	meta, err := registry.Create(metaPath)
	if err != nil {
		return nil, err
	}

	c.logger.Info().Int("icons", len(c.icons)).Int("target", c.cfg.Count).
		Str("templates", strings.Join(c.cfg.Templates, ",")).Msg("Starting icon composition")

	stats := &RunStats{Layouts: map[string]int{}, Metadata: metaPath}
	err = c.run(ctx, meta, stats)
	if cerr := meta.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return stats, err
	}
	c.logger.Info().Int("images", stats.Images).Int("objects", stats.Objects).
		Str("metadata", metaPath).Msg("Icon composition finished")
	return stats, nil
}

func (c *Composer) run(ctx context.Context, meta *registry.Writer, stats *RunStats) error {
	for i := 0; i < c.cfg.Count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := c.templates[c.rng.IntN(len(c.templates))]
		canvas, layout, objects := c.Compose(t)

		name := fmt.Sprintf("comp_%06d.png", i)
		if err := render.SavePNG(filepath.Join(c.cfg.OutputDir, name), canvas); err != nil {
			return err
		}
		rec := Record{
			ID:         strings.TrimSuffix(name, ".png"),
			Image:      name,
			Layout:     layout,
			CanvasSize: [2]int{canvas.Bounds().Dx(), canvas.Bounds().Dy()},
			Objects:    objects,
		}
		if err := meta.Write(rec); err != nil {
			return fmt.Errorf("failed to write metadata: %w", err)
		}

		stats.Images++
		stats.Objects += len(objects)
		stats.Layouts[layout]++
		c.logger.Debug().Str("outcome", logging.OutcomeOK).Str("image", name).
			Str("layout", layout).Int("objects", len(objects)).Msg("Composed image")
	}
	return nil
}

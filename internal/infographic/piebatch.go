package infographic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Caia-Tech/caia-chartforge/internal/render"
	"github.com/Caia-Tech/caia-chartforge/pkg/chart"
	"github.com/Caia-Tech/caia-chartforge/pkg/logging"
)

var (
	// ErrNoInputs means no input file matched.
	ErrNoInputs = errors.New("no input files found")
	// ErrNothingValid means every input was skipped.
	ErrNothingValid = errors.New("no valid datasets to plot")
)

// PieBatchConfig configures the standalone pie/donut generator.
type PieBatchConfig struct {
	Inputs      []string           `json:"inputs" mapstructure:"inputs"`
	Shares      chart.ShareOptions `json:"shares" mapstructure:"shares"`
	Donut       bool               `json:"donut" mapstructure:"donut"`
	MinLabelPct float64            `json:"min_label_pct" mapstructure:"min_label_pct"`
	Formats     []string           `json:"fmt" mapstructure:"fmt"`
	Width       int                `json:"w" mapstructure:"w"`
	Height      int                `json:"h" mapstructure:"h"`
	OutDir      string             `json:"out" mapstructure:"out"`
	Suffix      string             `json:"suffix" mapstructure:"suffix"`
	Title       string             `json:"title" mapstructure:"title"`
	Subtitle    string             `json:"subtitle" mapstructure:"subtitle"`
}

// DefaultPieBatchConfig returns PNG output at 1200×850.
func DefaultPieBatchConfig() *PieBatchConfig {
	return &PieBatchConfig{
		MinLabelPct: 0.02,
		Formats:     []string{"png"},
		Width:       1200,
		Height:      850,
	}
}

// Validate checks formats and required columns.
func (c *PieBatchConfig) Validate() error {
	if c.Shares.LabelColumn == "" || c.Shares.ValueColumn == "" {
		return fmt.Errorf("label and value columns are required")
	}
	if len(c.Formats) == 0 {
		c.Formats = []string{"png"}
	}
	for i, f := range c.Formats {
		f = strings.ToLower(f)
		if f != "png" && f != "svg" {
			return fmt.Errorf("unsupported format %q (png, svg)", f)
		}
		c.Formats[i] = f
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid size %dx%d", c.Width, c.Height)
	}
	return nil
}

// PieBatch renders one pie chart per CSV with colors shared across the run.
type PieBatch struct {
	cfg    *PieBatchConfig
	logger zerolog.Logger
}

// NewPieBatch validates cfg.
func NewPieBatch(cfg *PieBatchConfig) (*PieBatch, error) {
	if cfg == nil {
		cfg = DefaultPieBatchConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pie config: %w", err)
	}
	return &PieBatch{cfg: cfg, logger: logging.GetLogger("pie-gen")}, nil
}

// ExpandInputs resolves glob patterns; plain paths are kept as given.
func ExpandInputs(inputs []string, logger zerolog.Logger) []string {
	var paths []string
	for _, in := range inputs {
		if !strings.ContainsAny(in, "*?[") {
			paths = append(paths, in)
			continue
		}
		matches, err := filepath.Glob(in)
		if err != nil || len(matches) == 0 {
			logger.Warn().Str("outcome", logging.OutcomeWarn).Str("pattern", in).Msg("No files matched")
			continue
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	return paths
}

type preparedPie struct {
	path string
	cats []chart.Category
}

// Run renders all inputs and returns the written files.
func (p *PieBatch) Run(ctx context.Context) ([]string, error) {
	cfg := p.cfg
	paths := ExpandInputs(cfg.Inputs, p.logger)
	if len(paths) == 0 {
		return nil, ErrNoInputs
	}

	var prepared []preparedPie
	var allLabels []string
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			p.logger.Warn().Str("outcome", logging.OutcomeWarn).Str("csv", path).Msg("Missing file")
			continue
		}
		table, err := chart.ReadCSV(path, chart.ReadOptions{})
		if err == nil {
			var cats []chart.Category
			cats, err = chart.PrepareShares(table, cfg.Shares)
			if err == nil {
				prepared = append(prepared, preparedPie{path: path, cats: cats})
				allLabels = append(allLabels, chart.Labels(cats)...)
				continue
			}
		}
		p.logger.Info().Str("outcome", logging.OutcomeSkip).Str("csv", path).Err(err).Msg("Skipped CSV")
	}
	if len(prepared) == 0 {
		return nil, ErrNothingValid
	}

	colors := chart.StableColorMap(allLabels, chart.PewPalette)
	kind := chart.PieKind{Donut: cfg.Donut, RingWidth: 0.45, AutoPctMin: cfg.MinLabelPct}

	if cfg.OutDir != "" {
		if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
			return nil, err
		}
	}

	var written []string
	for _, pp := range prepared {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		base := p.outputBase(pp.path)
		opts := render.Options{
			Width:         cfg.Width,
			Height:        cfg.Height,
			Colors:        colors.Colors(pp.cats, chart.PewPalette),
			Background:    chart.LightInk,
			Title:         p.title(pp.path),
			Subtitle:      cfg.Subtitle,
			PercentRadius: 0.75,
			WedgeEdges:    true,
		}
		for _, format := range cfg.Formats {
			out := base + "." + format
			if err := writePie(out, format, kind, pp.cats, opts); err != nil {
				p.logger.Error().Str("outcome", logging.OutcomeError).Str("output", out).Err(err).Msg("Failed to write chart")
				continue
			}
			written = append(written, out)
			p.logger.Info().Str("outcome", logging.OutcomeOK).Str("output", out).Msg("Saved chart")
		}
	}
	return written, nil
}

func (p *PieBatch) outputBase(csvPath string) string {
	stem := strings.TrimSuffix(filepath.Base(csvPath), filepath.Ext(csvPath))
	dir := filepath.Dir(csvPath)
	if p.cfg.OutDir != "" {
		dir = p.cfg.OutDir
	}
	return filepath.Join(dir, stem+p.cfg.Suffix)
}

func (p *PieBatch) title(csvPath string) string {
	if p.cfg.Title != "" {
		return p.cfg.Title
	}
	return chart.TitleFromStem(strings.TrimSuffix(filepath.Base(csvPath), filepath.Ext(csvPath)))
}

func writePie(path, format string, kind chart.PieKind, cats []chart.Category, opts render.Options) error {
	switch format {
	case "svg":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := render.WritePieSVG(f, kind, cats, opts); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	default:
		img, err := render.Render(kind, cats, opts)
		if err != nil {
			return err
		}
		return render.SavePNG(path, img)
	}
}

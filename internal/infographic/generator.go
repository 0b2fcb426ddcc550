package infographic

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Caia-Tech/caia-chartforge/internal/render"
	"github.com/Caia-Tech/caia-chartforge/pkg/chart"
	"github.com/Caia-Tech/caia-chartforge/pkg/logging"
)

// GeneratorConfig configures a batch infographic run.
type GeneratorConfig struct {
	InputRoot         string        `json:"input_root" mapstructure:"input_root"`
	OutputDir         string        `json:"output_dir" mapstructure:"output_dir"`
	Count             int           `json:"count" mapstructure:"count"`
	MaxRows           int           `json:"max_rows" mapstructure:"max_rows"`
	Seed              uint64        `json:"seed" mapstructure:"seed"`
	ScanMultiplier    int           `json:"scan_multiplier" mapstructure:"scan_multiplier"`
	Kinds             []string      `json:"kinds" mapstructure:"kinds"`
	Source            string        `json:"source" mapstructure:"source"`
	ManifestPath      string        `json:"manifest_path" mapstructure:"manifest_path"`
	ConversationsPath string        `json:"conversations_path" mapstructure:"conversations_path"`
	ASCIILabels       bool          `json:"ascii_labels" mapstructure:"ascii_labels"`
	Canvas            *CanvasConfig `json:"canvas" mapstructure:"canvas"`
}

// DefaultGeneratorConfig alternates pies and horizontal bars.
func DefaultGeneratorConfig() *GeneratorConfig {
	return &GeneratorConfig{
		InputRoot:      "datasets",
		OutputDir:      "ChartQA",
		Count:          20,
		MaxRows:        300,
		Seed:           42,
		ScanMultiplier: 200,
		Kinds:          []string{"pie", "hbar"},
		Source:         "AutoGen",
		ASCIILabels:    true,
		Canvas:         DefaultCanvasConfig(),
	}
}

// Validate checks the configuration and fills derived paths.
func (c *GeneratorConfig) Validate() error {
	if c.InputRoot == "" {
		return fmt.Errorf("input root is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir is required")
	}
	if c.Count <= 0 {
		return fmt.Errorf("count must be positive, got %d", c.Count)
	}
	if c.ScanMultiplier <= 0 {
		c.ScanMultiplier = 200
	}
	if c.ManifestPath == "" {
		c.ManifestPath = filepath.Join(c.OutputDir, "metadata.json")
	}
	if c.Canvas == nil {
		c.Canvas = DefaultCanvasConfig()
	}
	if err := c.Canvas.Validate(); err != nil {
		return err
	}
	if _, err := chart.ParseKinds(c.Kinds); err != nil {
		return err
	}
	return nil
}

// Skip reasons counted by a run.
const (
	SkipReadError   = "read_error_or_empty"
	SkipNoLabel     = "no_label_col"
	SkipTooFew      = "too_few_categories"
	SkipRenderError = "render_error"
	SkipOther       = "other"
)

// ManifestItem pairs an image with its OCR text.
type ManifestItem struct {
	Image string `json:"image"`
	OCR   string `json:"ocr"`
}

// Turn is one message of a conversation record.
type Turn struct {
	From  string `json:"from"`
	Value string `json:"value"`
}

// Conversation is a VLM training record.
type Conversation struct {
	ID            string `json:"id"`
	Image         string `json:"image"`
	Conversations []Turn `json:"conversations"`
}

// RunStats summarizes a batch run.
type RunStats struct {
	Generated int            `json:"generated"`
	Scanned   int            `json:"scanned"`
	Skipped   map[string]int `json:"skipped"`
	Items     []ManifestItem `json:"-"`
}

// Generator renders infographics from a tree of CSV files.
type Generator struct {
	cfg      *GeneratorConfig
	kinds    []chart.Kind
	faces    *render.Faces
	composer *Composer
	logger   zerolog.Logger
}

// NewGenerator validates cfg and prepares fonts.
func NewGenerator(cfg *GeneratorConfig) (*Generator, error) {
	if cfg == nil {
		cfg = DefaultGeneratorConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}
	kinds, _ := chart.ParseKinds(cfg.Kinds)
	faces, err := render.DefaultFaces()
	if err != nil {
		return nil, err
	}
	return &Generator{
		cfg:      cfg,
		kinds:    kinds,
		faces:    faces,
		composer: NewComposer(cfg.Canvas, faces),
		logger:   logging.GetGeneratorLogger("infographic", uuid.NewString()),
	}, nil
}

// FindCSVs lists CSV files under root in lexical order.
func FindCSVs(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

// Run generates up to Count images, cycling through the CSV files. It stops
// after Count*ScanMultiplier attempts.
func (g *Generator) Run(ctx context.Context) (*RunStats, error) {
	cfg := g.cfg
	csvs, err := FindCSVs(cfg.InputRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", cfg.InputRoot, err)
	}
	if len(csvs) == 0 {
		return nil, fmt.Errorf("no CSV files found under %s", cfg.InputRoot)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, err
	}
	g.logger.Info().Int("csv_files", len(csvs)).Int("target", cfg.Count).Msg("Starting infographic generation")

	stats := &RunStats{Items: []ManifestItem{}, Skipped: map[string]int{
		SkipReadError: 0, SkipNoLabel: 0, SkipTooFew: 0, SkipRenderError: 0, SkipOther: 0,
	}}
	limit := cfg.Count * cfg.ScanMultiplier
	attempts := 0
	for len(stats.Items) < cfg.Count && attempts < limit {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		path := csvs[attempts%len(csvs)]
		attempts++

		kind := g.kinds[len(stats.Items)%len(g.kinds)]
		item, reason, err := g.generateOne(path, kind, len(stats.Items))
		if reason != "" {
			stats.Skipped[reason]++
			g.logger.Info().Str("outcome", logging.OutcomeSkip).Str("csv", filepath.Base(path)).
				Str("kind", kind.Name()).Str("reason", reason).AnErr("detail", err).Msg("Skipped CSV")
			continue
		}
		stats.Items = append(stats.Items, *item)
		g.logger.Info().Str("outcome", logging.OutcomeOK).Str("image", item.Image).
			Int("done", len(stats.Items)).Msg("Saved infographic")
	}
	stats.Generated = len(stats.Items)
	stats.Scanned = attempts

	if err := writeJSON(cfg.ManifestPath, stats.Items); err != nil {
		return stats, err
	}
	if cfg.ConversationsPath != "" {
		if err := writeConversations(cfg.ConversationsPath, stats.Items); err != nil {
			return stats, err
		}
	}

	ev := g.logger.Info().Int("generated", stats.Generated).Int("iterations", attempts).
		Int("csv_files_scanned", min(attempts, len(csvs))).Str("manifest", cfg.ManifestPath)
	for reason, n := range stats.Skipped {
		ev = ev.Int("skipped_"+reason, n)
	}
	ev.Msg("Infographic generation finished")
	return stats, nil
}

// generateOne renders one CSV. A non-empty reason means the CSV was skipped.
func (g *Generator) generateOne(path string, kind chart.Kind, index int) (*ManifestItem, string, error) {
	cfg := g.cfg
	table, err := chart.ReadCSV(path, chart.ReadOptions{MaxRows: cfg.MaxRows, Seed: cfg.Seed})
	if err != nil {
		return nil, SkipReadError, err
	}

	labelCol, valueCol, ok := chooseColumns(table)
	if !ok {
		return nil, SkipNoLabel, nil
	}
	cats, err := kind.Aggregate(table, labelCol, valueCol)
	if errors.Is(err, chart.ErrTooFewCategories) {
		return nil, SkipTooFew, err
	}
	if err != nil {
		return nil, SkipOther, err
	}
	if cfg.ASCIILabels {
		for i := range cats {
			if l := chart.ASCIIOnly(cats[i].Label); l != "" {
				cats[i].Label = l
			}
		}
	}

	title, desc, err := PackageMeta(path)
	if err != nil {
		g.logger.Warn().Str("outcome", logging.OutcomeWarn).Err(err).Str("csv", path).Msg("datapackage.json read error")
	}
	fbTitle, fbSub := fallbackText(kind, table.Header[labelCol])
	text := Text{
		Title:    firstNonEmpty(title, fbTitle),
		Subtitle: firstNonEmpty(desc, fbSub),
		Source:   cfg.Source,
	}

	w, h := g.composer.ChartSize(text)
	chartImg, err := render.Render(kind, cats, render.Options{Width: w, Height: h, Faces: g.faces, PercentDecimals: 1})
	if err != nil {
		return nil, SkipRenderError, err
	}
	canvas, ocr := g.composer.Compose(chartImg, text)

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_%05d.png", base, index))
	if err := render.SavePNG(out, canvas); err != nil {
		return nil, SkipOther, err
	}
	return &ManifestItem{Image: filepath.ToSlash(out), OCR: strings.Join(ocr, "\n")}, "", nil
}

// chooseColumns picks the first non-numeric column as labels (the first
// column when all are numeric) and the first numeric column as values.
func chooseColumns(t *chart.Table) (label, value int, ok bool) {
	if len(t.Header) == 0 {
		return 0, 0, false
	}
	label = 0
	if cat := t.CategoricalColumns(); len(cat) > 0 {
		label = cat[0]
	}
	value = -1
	for _, c := range t.NumericColumns() {
		if c != label {
			value = c
			break
		}
	}
	return label, value, true
}

func fallbackText(kind chart.Kind, label string) (title, subtitle string) {
	switch k := kind.(type) {
	case chart.PieKind:
		if k.Donut {
			return label + " Distribution", "Auto-generated donut infographic"
		}
		return label + " Distribution", "Auto-generated pie infographic"
	case chart.BarKind:
		if k.Orientation == chart.Vertical {
			return label + " (Top categories)", "Auto-generated vertical bar infographic"
		}
		return label + " (Top categories)", "Auto-generated horizontal bar infographic"
	}
	return label, ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

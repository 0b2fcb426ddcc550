package curation

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Caia-Tech/caia-chartforge/internal/registry"
	"github.com/Caia-Tech/caia-chartforge/pkg/logging"
)

var (
	imageExts = []string{".png", ".jpg", ".jpeg"}
	tableExts = []string{".csv", ".tsv"}
	annExts   = []string{".json", ".jsonl"}

	imageFields = []string{"image_path", "img_path", "image", "imagefile", "image_file", "filename", "img"}
	tableFields = []string{"table_path", "table", "csv", "data_path", "datafile", "table_file"}
	imageDirs   = []string{"", "images", "imgs", "charts", "figures"}
	tableDirs   = []string{"", "tables", "csv", "data"}
)

func hasExt(p string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// FilterConfig configures the source-safety filter.
type FilterConfig struct {
	Input          string   `json:"input" mapstructure:"input"`
	Output         string   `json:"output" mapstructure:"output"`
	AllowedSources []string `json:"allowed_sources" mapstructure:"allowed_sources"`
	DryRun         bool     `json:"dry_run" mapstructure:"dry_run"`
	ManifestName   string   `json:"manifest_name" mapstructure:"manifest_name"`
}

// DefaultFilterConfig keeps OWID and OECD charts.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		AllowedSources: append([]string(nil), DefaultAllowedSources...),
		ManifestName:   "manifest_commercial_subset.csv",
	}
}

// Validate checks the configuration.
func (c *FilterConfig) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input root is required")
	}
	if c.Output == "" {
		return fmt.Errorf("output root is required")
	}
	if len(c.AllowedSources) == 0 {
		return fmt.Errorf("at least one allowed source is required")
	}
	for i, s := range c.AllowedSources {
		c.AllowedSources[i] = strings.ToLower(strings.TrimSpace(s))
	}
	if c.ManifestName == "" {
		c.ManifestName = "manifest_commercial_subset.csv"
	}
	return nil
}

// ManifestRow is one kept chart.
type ManifestRow struct {
	Source        string `json:"source"`
	AnnotationSrc string `json:"annotation_src"`
	ImageSrc      string `json:"image_src"`
	TableSrc      string `json:"table_src"`
	AnnotationDst string `json:"annotation_dst"`
	ImageDst      string `json:"image_dst"`
	TableDst      string `json:"table_dst"`
	HasTable      bool   `json:"has_table"`
}

// ManifestHeader is the column order of the manifest CSV.
var ManifestHeader = []string{
	"source",
	"annotation_src", "image_src", "table_src",
	"annotation_dst", "image_dst", "table_dst",
	"has_table",
}

// boolField writes True or False.
func boolField(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func (r ManifestRow) fields() []string {
	return []string{
		r.Source,
		r.AnnotationSrc, r.ImageSrc, r.TableSrc,
		r.AnnotationDst, r.ImageDst, r.TableDst,
		boolField(r.HasTable),
	}
}

// FilterSummary reports a filter run.
type FilterSummary struct {
	Scanned       int           `json:"scanned"`
	Kept          int           `json:"kept"`
	SkippedSource int           `json:"skipped_source"`
	Broken        int           `json:"broken"`
	Manifest      string        `json:"manifest,omitempty"`
	Rows          []ManifestRow `json:"-"`
}

// Filterer copies the charts of allowed sources into a per-source tree.
type Filterer struct {
	cfg        *FilterConfig
	classifier *SourceClassifier
	allowed    map[string]bool
	logger     zerolog.Logger
}

// NewFilterer validates cfg.
func NewFilterer(cfg *FilterConfig) (*Filterer, error) {
	if cfg == nil {
		cfg = DefaultFilterConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter config: %w", err)
	}
	allowed := make(map[string]bool)
	for _, s := range cfg.AllowedSources {
		allowed[s] = true
	}
	return &Filterer{
		cfg:        cfg,
		classifier: NewSourceClassifier(),
		allowed:    allowed,
		logger:     logging.GetCurationLogger("chartqa-filter", "filter"),
	}, nil
}

// FindAnnotations lists annotation files under root, sorted.
func FindAnnotations(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && hasExt(p, annExts) {
			out = append(out, p)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

// loadAnnotation reads a per-chart annotation. For JSONL files the first
// record is used.
func loadAnnotation(p string) (Record, error) {
	if isJSONL(p) {
		recs, err := registry.ReadAll[any](p, nil)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return Record{}, nil
		}
		m, ok := recs[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: first record is not an object", p)
		}
		return m, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: annotation is not an object", p)
	}
	return m, nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func explicitSibling(annDir string, ann Record, fields, exts []string) string {
	for _, k := range fields {
		v, ok := ann[k].(string)
		if !ok || v == "" {
			continue
		}
		p := filepath.FromSlash(v)
		if !filepath.IsAbs(p) {
			p = filepath.Join(annDir, p)
		}
		if isFile(p) && hasExt(p, exts) {
			return p
		}
	}
	return ""
}

func stemSibling(annDir, stem string, subdirs, exts []string) string {
	bases := []string{annDir}
	for d := annDir; len(bases) < 3; {
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		bases = append(bases, parent)
		d = parent
	}
	for _, base := range bases {
		for _, sub := range subdirs {
			dir := filepath.Join(base, sub)
			for _, ext := range exts {
				if p := filepath.Join(dir, stem+ext); isFile(p) {
					return p
				}
			}
		}
	}
	return ""
}

// FindSiblings locates the image and table of an annotation, first through
// explicit path fields and then by searching for the same stem in the
// annotation directory and up to two parents.
func FindSiblings(annPath string, ann Record) (image, table string) {
	dir := filepath.Dir(annPath)
	stem := strings.TrimSuffix(filepath.Base(annPath), filepath.Ext(annPath))

	image = explicitSibling(dir, ann, imageFields, imageExts)
	if image == "" {
		image = stemSibling(dir, stem, imageDirs, imageExts)
	}
	table = explicitSibling(dir, ann, tableFields, tableExts)
	if table == "" {
		table = stemSibling(dir, stem, tableDirs, tableExts)
	}
	return image, table
}

// copyUnique copies src to dst unless an identically sized file is already
// there.
func copyUnique(src, dst string, dryRun bool) error {
	if dryRun {
		return nil
	}
	if info, err := os.Stat(dst); err == nil {
		srcInfo, err := os.Stat(src)
		if err != nil {
			return err
		}
		if srcInfo.Size() == info.Size() {
			return nil
		}
	}
	return copyFile(src, dst)
}

// Run scans the input tree and copies every allowed chart.
func (f *Filterer) Run(ctx context.Context) (*FilterSummary, error) {
	cfg := f.cfg
	anns, err := FindAnnotations(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", cfg.Input, err)
	}
	if !cfg.DryRun {
		if err := os.MkdirAll(cfg.Output, 0755); err != nil {
			return nil, err
		}
	}

	sum := &FilterSummary{Scanned: len(anns)}
	seen := make(map[string]bool)
	for _, annPath := range anns {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		ann, err := loadAnnotation(annPath)
		if err != nil {
			sum.Broken++
			f.logger.Warn().Str("outcome", logging.OutcomeWarn).Err(err).Str("annotation", annPath).Msg("Failed to read annotation")
			continue
		}

		src := f.classifier.Classify(ann)
		if src == "" || !f.allowed[src] {
			sum.SkippedSource++
			f.logger.Debug().Str("outcome", logging.OutcomeSkip).Str("annotation", annPath).Str("source", src).Msg("Source not allowed")
			continue
		}

		img, tbl := FindSiblings(annPath, ann)
		if img == "" {
			sum.Broken++
			f.logger.Warn().Str("outcome", logging.OutcomeWarn).Str("annotation", annPath).Msg("No image found")
			continue
		}

		stem := strings.TrimSuffix(filepath.Base(annPath), filepath.Ext(annPath))
		key := src + "::" + stem
		if seen[key] {
			continue
		}
		seen[key] = true

		row := ManifestRow{
			Source:        src,
			AnnotationSrc: annPath,
			ImageSrc:      img,
			TableSrc:      tbl,
			AnnotationDst: filepath.Join(cfg.Output, src, "annotations", stem+strings.ToLower(filepath.Ext(annPath))),
			ImageDst:      filepath.Join(cfg.Output, src, "images", filepath.Base(img)),
			HasTable:      tbl != "",
		}
		if tbl != "" {
			row.TableDst = filepath.Join(cfg.Output, src, "tables", filepath.Base(tbl))
		}

		errAnn := copyUnique(annPath, row.AnnotationDst, cfg.DryRun)
		errImg := copyUnique(img, row.ImageDst, cfg.DryRun)
		if tbl != "" {
			if err := copyUnique(tbl, row.TableDst, cfg.DryRun); err != nil {
				f.logger.Warn().Str("outcome", logging.OutcomeWarn).Err(err).Str("table", tbl).Msg("Table copy failed")
			}
		}
		if errAnn != nil || errImg != nil {
			sum.Broken++
			f.logger.Warn().Str("outcome", logging.OutcomeError).AnErr("annotation_err", errAnn).AnErr("image_err", errImg).
				Str("annotation", annPath).Msg("Copy failed")
			continue
		}
		sum.Kept++
		sum.Rows = append(sum.Rows, row)
		f.logger.Debug().Str("outcome", logging.OutcomeOK).Str("source", src).Str("annotation", annPath).Msg("Kept chart")
	}

	if !cfg.DryRun {
		sum.Manifest = filepath.Join(cfg.Output, cfg.ManifestName)
		rows := make([][]string, 0, len(sum.Rows))
		for _, r := range sum.Rows {
			rows = append(rows, r.fields())
		}
		if err := writeCSV(sum.Manifest, ManifestHeader, rows); err != nil {
			return sum, fmt.Errorf("failed to write manifest: %w", err)
		}
	}

	f.logger.Info().Str("input", cfg.Input).Str("output", cfg.Output).
		Strs("allowed", cfg.AllowedSources).Int("scanned", sum.Scanned).Int("kept", sum.Kept).
		Int("skipped_source", sum.SkippedSource).Int("broken", sum.Broken).Msg("Filter finished")
	return sum, nil
}

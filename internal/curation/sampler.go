package curation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/Caia-Tech/caia-chartforge/pkg/logging"
)

// ErrNoRecords is returned when no input yielded a usable annotation.
var ErrNoRecords = errors.New("no valid records found")

// SamplerConfig configures an equitable sampling run.
type SamplerConfig struct {
	Inputs     []string `json:"inputs" mapstructure:"inputs"`
	Target     int      `json:"target" mapstructure:"target"`
	PathField  string   `json:"path_field" mapstructure:"path_field"`
	Top        int      `json:"top" mapstructure:"top"`
	Tail       int      `json:"tail" mapstructure:"tail"`
	Shuffle    bool     `json:"shuffle" mapstructure:"shuffle"`
	Seed       uint64   `json:"seed" mapstructure:"seed"`
	CopyTo     string   `json:"copy_to" mapstructure:"copy_to"`
	OutAnn     string   `json:"out_ann" mapstructure:"out_ann"`
	OutCSV     string   `json:"out_csv" mapstructure:"out_csv"`
	CopyRestTo string   `json:"copy_rest_to" mapstructure:"copy_rest_to"`
	OutRestAnn string   `json:"out_rest_ann" mapstructure:"out_rest_ann"`
	OutRestCSV string   `json:"out_rest_csv" mapstructure:"out_rest_csv"`
	ImagesRoot string   `json:"images_root" mapstructure:"images_root"`
	Flat       bool     `json:"flat" mapstructure:"flat"`
	DryRun     bool     `json:"dry_run" mapstructure:"dry_run"`
}

// DefaultSamplerConfig groups by full directory path and targets 1366 images.
func DefaultSamplerConfig() *SamplerConfig {
	return &SamplerConfig{
		Inputs:     []string{"input.json"},
		Target:     1366,
		PathField:  "image",
		Seed:       42,
		CopyTo:     "picked_images",
		OutAnn:     "picked_annotations.json",
		CopyRestTo: "remainder_images",
		OutRestAnn: "remainder_annotations.json",
	}
}

// Validate checks the configuration.
func (c *SamplerConfig) Validate() error {
	if len(c.Inputs) == 0 {
		c.Inputs = []string{"input.json"}
	}
	if c.Target < 0 {
		return fmt.Errorf("target must not be negative, got %d", c.Target)
	}
	if c.PathField == "" {
		return fmt.Errorf("path field is required")
	}
	if c.Top > 0 && c.Tail > 0 {
		return fmt.Errorf("top and tail grouping are mutually exclusive")
	}
	if c.Top < 0 || c.Tail < 0 {
		return fmt.Errorf("top/tail must not be negative")
	}
	if c.CopyTo == "" || c.CopyRestTo == "" || c.OutAnn == "" || c.OutRestAnn == "" {
		return fmt.Errorf("selected and remainder outputs are required")
	}
	return nil
}

// EquitableTake allocates target items across groups as evenly as possible.
// Every group first gets min(target/G, size); the remainder plus the
// shortfall of small groups is then handed out one item at a time in
// round-robin order among groups that still have items.
func EquitableTake(groups map[string][]string, target int) map[string][]string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	selected := make(map[string][]string, len(keys))
	for _, k := range keys {
		selected[k] = nil
	}
	if len(keys) == 0 || target <= 0 {
		return selected
	}

	base := target / len(keys)
	toAlloc := target % len(keys)
	spare := make(map[string][]string, len(keys))
	for _, k := range keys {
		items := groups[k]
		take := min(base, len(items))
		selected[k] = append([]string(nil), items[:take]...)
		spare[k] = items[take:]
		toAlloc += base - take
	}

	ring := append([]string(nil), keys...)
	for toAlloc > 0 && len(ring) > 0 {
		k := ring[0]
		ring = ring[1:]
		if len(spare[k]) == 0 {
			continue
		}
		selected[k] = append(selected[k], spare[k][0])
		spare[k] = spare[k][1:]
		toAlloc--
		ring = append(ring, k)
	}
	return selected
}

// GroupSummary reports one group of a sampling run.
type GroupSummary struct {
	Group     string `json:"group"`
	Selected  int    `json:"selected"`
	Available int    `json:"available"`
}

// SampleSummary reports a sampling run.
type SampleSummary struct {
	Records         int            `json:"records"`
	Groups          []GroupSummary `json:"groups"`
	Selected        int            `json:"selected"`
	Remainder       int            `json:"remainder"`
	CopiedSelected  int            `json:"copied_selected"`
	MissingSelected int            `json:"missing_selected"`
	CopiedRest      int            `json:"copied_rest"`
	MissingRest     int            `json:"missing_rest"`
}

// Sampler picks an equitable subset of annotated images and splits the
// dataset into selected and remainder parts.
type Sampler struct {
	cfg    *SamplerConfig
	logger zerolog.Logger
}

// NewSampler validates cfg.
func NewSampler(cfg *SamplerConfig) (*Sampler, error) {
	if cfg == nil {
		cfg = DefaultSamplerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sampler config: %w", err)
	}
	return &Sampler{cfg: cfg, logger: logging.GetCurationLogger("sampler", "select")}, nil
}

func (s *Sampler) loadAll() []Record {
	var all []Record
	for _, in := range s.cfg.Inputs {
		recs, err := LoadRecords(in)
		if err != nil {
			s.logger.Warn().Str("outcome", logging.OutcomeWarn).Err(err).Str("input", in).Msg("Skipping annotation file")
			continue
		}
		all = append(all, recs...)
	}
	return all
}

func (s *Sampler) imagePath(r Record) (string, bool) {
	p, ok := r[s.cfg.PathField].(string)
	if !ok || len(p) == 0 {
		return "", false
	}
	return NormPath(p), true
}

// Run performs the selection, copies both parts and writes their annotations.
func (s *Sampler) Run(ctx context.Context) (*SampleSummary, error) {
	cfg := s.cfg
	records := s.loadAll()
	if len(records) == 0 {
		return nil, fmt.Errorf("%w in %v", ErrNoRecords, cfg.Inputs)
	}

	groupOf := make(map[string]string)
	groups := make(map[string][]string)
	for _, r := range records {
		p, ok := s.imagePath(r)
		if !ok {
			continue
		}
		g := GroupKey(p, cfg.Top, cfg.Tail)
		if g == "" {
			continue
		}
		groupOf[p] = g
		groups[g] = append(groups[g], p)
	}

	for g, items := range groups {
		items = dedupeSorted(items)
		if cfg.Shuffle {
			rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
			rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		}
		groups[g] = items
	}

	picked := EquitableTake(groups, cfg.Target)
	selectedSet := make(map[string]bool)
	var selected, rest []string
	for _, items := range picked {
		for _, p := range items {
			selectedSet[p] = true
			selected = append(selected, p)
		}
	}
	for _, items := range groups {
		for _, p := range items {
			if !selectedSet[p] {
				rest = append(rest, p)
			}
		}
	}
	sort.Strings(selected)
	sort.Strings(rest)
	restSet := make(map[string]bool, len(rest))
	for _, p := range rest {
		restSet[p] = true
	}

	sum := &SampleSummary{Records: len(records), Selected: len(selected), Remainder: len(rest)}
	var err error
	if sum.CopiedSelected, sum.MissingSelected, err = s.copyImages(ctx, selected, cfg.CopyTo, groupOf); err != nil {
		return sum, err
	}
	if sum.CopiedRest, sum.MissingRest, err = s.copyImages(ctx, rest, cfg.CopyRestTo, groupOf); err != nil {
		return sum, err
	}

	var selRecs, restRecs []Record
	for _, r := range records {
		p, ok := s.imagePath(r)
		if !ok {
			continue
		}
		switch {
		case selectedSet[p]:
			selRecs = append(selRecs, r)
		case restSet[p]:
			restRecs = append(restRecs, r)
		}
	}
	if err := WriteRecords(cfg.OutAnn, selRecs); err != nil {
		return sum, fmt.Errorf("failed to write selected annotations: %w", err)
	}
	if err := WriteRecords(cfg.OutRestAnn, restRecs); err != nil {
		return sum, fmt.Errorf("failed to write remainder annotations: %w", err)
	}
	if err := s.writeList(cfg.OutCSV, selected, groupOf); err != nil {
		return sum, err
	}
	if err := s.writeList(cfg.OutRestCSV, rest, groupOf); err != nil {
		return sum, err
	}

	keys := make([]string, 0, len(groups))
	for g := range groups {
		keys = append(keys, g)
	}
	sort.Strings(keys)
	for _, g := range keys {
		gs := GroupSummary{Group: g, Selected: len(picked[g]), Available: len(groups[g])}
		sum.Groups = append(sum.Groups, gs)
		s.logger.Info().Str("group", g).Int("selected", gs.Selected).Int("available", gs.Available).Msg("Group allocation")
	}
	s.logger.Info().Int("groups", len(keys)).Int("selected", sum.Selected).Int("target", cfg.Target).
		Int("remainder", sum.Remainder).
		Int("copied_selected", sum.CopiedSelected).Int("missing_selected", sum.MissingSelected).
		Int("copied_rest", sum.CopiedRest).Int("missing_rest", sum.MissingRest).
		Bool("dry_run", cfg.DryRun).Msg("Sampling finished")
	return sum, nil
}

func dedupeSorted(items []string) []string {
	sort.Strings(items)
	out := items[:0]
	for i, p := range items {
		if i == 0 || p != items[i-1] {
			out = append(out, p)
		}
	}
	return out
}

// resolveSource finds the file for an annotation path, trying it as given
// and then under the images root.
func resolveSource(p, root string) (string, bool) {
	local := filepath.FromSlash(p)
	if info, err := os.Stat(local); err == nil && info.Mode().IsRegular() {
		abs, err := filepath.Abs(local)
		return abs, err == nil
	}
	if root != "" && !filepath.IsAbs(local) {
		cand := filepath.Join(root, local)
		if info, err := os.Stat(cand); err == nil && info.Mode().IsRegular() {
			abs, err := filepath.Abs(cand)
			return abs, err == nil
		}
	}
	return "", false
}

func (s *Sampler) copyImages(ctx context.Context, paths []string, dest string, groupOf map[string]string) (int, int, error) {
	copied, missing := 0, 0
	if !s.cfg.DryRun {
		if err := os.MkdirAll(dest, 0755); err != nil {
			return 0, 0, err
		}
	}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return copied, missing, err
		}
		src, ok := resolveSource(p, s.cfg.ImagesRoot)
		if !ok {
			missing++
			s.logger.Debug().Str("outcome", logging.OutcomeSkip).Str("image", p).Msg("Image not found")
			continue
		}
		dir := dest
		if g := groupOf[p]; g != "" && !s.cfg.Flat {
			dir = filepath.Join(dest, filepath.FromSlash(g))
		}
		if s.cfg.DryRun {
			copied++
			continue
		}
		if err := copyFile(src, filepath.Join(dir, filepath.Base(src))); err != nil {
			missing++
			s.logger.Warn().Str("outcome", logging.OutcomeError).Err(err).Str("image", p).Msg("Copy failed")
			continue
		}
		copied++
	}
	return copied, missing, nil
}

func (s *Sampler) writeList(p string, images []string, groupOf map[string]string) error {
	if p == "" {
		return nil
	}
	rows := make([][]string, 0, len(images))
	for _, img := range images {
		rows = append(rows, []string{img, groupOf[img]})
	}
	return writeCSV(p, []string{"image", "group"}, rows)
}

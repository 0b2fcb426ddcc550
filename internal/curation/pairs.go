package curation

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Caia-Tech/caia-chartforge/pkg/chart"
	"github.com/Caia-Tech/caia-chartforge/pkg/logging"
)

// PairConfig configures MatchOneToOne.
type PairConfig struct {
	SourceDir      string `json:"source_dir" mapstructure:"source_dir"`
	DestDir        string `json:"dest_dir" mapstructure:"dest_dir"`
	CSVPath        string `json:"csv_path" mapstructure:"csv_path"`
	OutputCSV      string `json:"output_csv" mapstructure:"output_csv"`
	FilenameColumn string `json:"filename_column" mapstructure:"filename_column"`
	Suffix         string `json:"suffix" mapstructure:"suffix"`
	SkipReport     string `json:"skip_report" mapstructure:"skip_report"`
	NoSkipReport   bool   `json:"no_skip_report" mapstructure:"no_skip_report"`
}

// DefaultPairConfig matches "*base.png" files against a "filename" column.
func DefaultPairConfig() *PairConfig {
	return &PairConfig{FilenameColumn: "filename", Suffix: "base.png"}
}

// Validate checks the configuration and derives the skip report path.
func (c *PairConfig) Validate() error {
	if c.SourceDir == "" || c.DestDir == "" {
		return fmt.Errorf("source and destination dirs are required")
	}
	if c.CSVPath == "" || c.OutputCSV == "" {
		return fmt.Errorf("input and output CSV paths are required")
	}
	if c.FilenameColumn == "" {
		c.FilenameColumn = "filename"
	}
	if c.SkipReport == "" && !c.NoSkipReport {
		c.SkipReport = strings.TrimSuffix(c.OutputCSV, filepath.Ext(c.OutputCSV)) + "_skip_report.csv"
	}
	return nil
}

// Skip phases of a pairing run.
const (
	PhaseSourceScan = "source_scan"
	PhaseCSVMatch   = "csv_match"
	PhaseCopy       = "copy"
)

// PairSkip explains why a file was left out.
type PairSkip struct {
	Filename string `json:"filename"`
	Phase    string `json:"phase"`
	Reason   string `json:"reason"`
	Details  string `json:"details"`
}

// PairSummary reports a pairing run.
type PairSummary struct {
	Occurrences int        `json:"occurrences"`
	Unique      int        `json:"unique"`
	Candidates  int        `json:"candidates"`
	Copied      int        `json:"copied"`
	Skips       []PairSkip `json:"skips"`
}

func normName(name string) string {
	return strings.ToLower(strings.TrimSpace(filepath.Base(NormPath(name))))
}

// MatchOneToOne copies every image whose base name is unique in the source
// tree and appears in exactly one CSV row, then writes the matching rows so
// images and rows stay in 1:1 correspondence.
func MatchOneToOne(ctx context.Context, cfg *PairConfig) (*PairSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.GetCurationLogger("chart-pairs", "match")
	suffix := strings.ToLower(cfg.Suffix)

	sources := make(map[string][]string)
	sum := &PairSummary{}
	err := filepath.WalkDir(cfg.SourceDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), suffix) {
			sum.Occurrences++
			n := normName(d.Name())
			sources[n] = append(sources[n], p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", cfg.SourceDir, err)
	}
	sum.Unique = len(sources)

	table, err := chart.ReadCSV(cfg.CSVPath, chart.ReadOptions{})
	if err != nil {
		return nil, err
	}
	col, err := table.ColumnIndex(cfg.FilenameColumn)
	if err != nil {
		return nil, fmt.Errorf("csv has no %q column (have %v): %w", cfg.FilenameColumn, table.Header, err)
	}
	rowsOf := make(map[string][]int)
	for i, row := range table.Rows {
		n := normName(row[col])
		rowsOf[n] = append(rowsOf[n], i)
	}

	names := make([]string, 0, len(sources))
	for n := range sources {
		names = append(names, n)
	}
	sort.Strings(names)

	var candidates []string
	for _, n := range names {
		paths := sources[n]
		if len(paths) != 1 {
			sum.Skips = append(sum.Skips, PairSkip{
				Filename: n, Phase: PhaseSourceScan,
				Reason:  fmt.Sprintf("duplicate basename in source (%d occurrences)", len(paths)),
				Details: strings.Join(paths, " | "),
			})
			continue
		}
		switch c := len(rowsOf[n]); {
		case c == 0:
			sum.Skips = append(sum.Skips, PairSkip{Filename: n, Phase: PhaseCSVMatch, Reason: "missing in CSV (0 rows)"})
		case c > 1:
			sum.Skips = append(sum.Skips, PairSkip{Filename: n, Phase: PhaseCSVMatch, Reason: fmt.Sprintf("multiple rows in CSV (%d rows)", c)})
		default:
			candidates = append(candidates, n)
		}
	}
	sum.Candidates = len(candidates)

	var kept [][]string
	for _, n := range candidates {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		src := sources[n][0]
		if err := copyFile(src, filepath.Join(cfg.DestDir, filepath.Base(src))); err != nil {
			sum.Skips = append(sum.Skips, PairSkip{Filename: n, Phase: PhaseCopy, Reason: "copy_failed", Details: err.Error()})
			logger.Warn().Str("outcome", logging.OutcomeError).Err(err).Str("image", src).Msg("Copy failed")
			continue
		}
		kept = append(kept, table.Rows[rowsOf[n][0]])
	}
	sum.Copied = len(kept)

	if err := writeCSV(cfg.OutputCSV, table.Header, kept); err != nil {
		return sum, fmt.Errorf("failed to write %s: %w", cfg.OutputCSV, err)
	}
	if cfg.SkipReport != "" {
		rows := make([][]string, 0, len(sum.Skips))
		for _, s := range sum.Skips {
			rows = append(rows, []string{s.Filename, s.Phase, s.Reason, s.Details})
		}
		if err := writeCSV(cfg.SkipReport, []string{"filename", "phase", "reason", "details"}, rows); err != nil {
			return sum, err
		}
	}

	logger.Info().Int("occurrences", sum.Occurrences).Int("unique", sum.Unique).
		Int("candidates", sum.Candidates).Int("copied", sum.Copied).Int("skipped", len(sum.Skips)).
		Str("output_csv", cfg.OutputCSV).Msg("Pairing finished")
	return sum, nil
}

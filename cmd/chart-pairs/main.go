// Command chart-pairs copies the images named in a CSV column that occur
// exactly once in a source tree, writing the matched rows and a skip report.
package main

import (
	"context"

	"github.com/Caia-Tech/caia-chartforge/internal/curation"
	"github.com/Caia-Tech/caia-chartforge/pkg/pipeline"
	"github.com/rs/zerolog/log"
)

func main() {
	defaults := curation.DefaultPairConfig()
	cmd := pipeline.NewCommand("chart-pairs", "pairs")
	fs := cmd.Flags
	fs.String("source-dir", "", "tree searched for images")
	fs.String("dest-dir", "", "directory the matched images are copied to")
	fs.String("csv-path", "", "CSV naming the wanted images")
	fs.String("output-csv", "", "matched rows are written here")
	fs.String("filename-column", defaults.FilenameColumn, "CSV column holding image names")
	fs.String("suffix", defaults.Suffix, "suffix appended to copied file names")
	fs.String("skip-report", "", "skip report path")
	fs.Bool("no-skip-report", false, "do not write a skip report")

	cmd.Main(func(ctx context.Context, config *pipeline.ForgeConfig) int {
		summary, err := curation.MatchOneToOne(ctx, config.Pairs)
		if err != nil {
			log.Error().Err(err).Msg("Pairing failed")
			return pipeline.ExitConfig
		}
		log.Info().
			Int("occurrences", summary.Occurrences).
			Int("unique", summary.Unique).
			Int("candidates", summary.Candidates).
			Int("copied", summary.Copied).
			Int("skipped", len(summary.Skips)).
			Msg("Pairing finished")
		if summary.Copied == 0 {
			return pipeline.ExitNothingValid
		}
		return pipeline.ExitOK
	})
}

// Command chartqa-filter keeps the charts of license-safe sources and
// mirrors them into a per-source tree with a manifest CSV.
package main

import (
	"context"

	"github.com/Caia-Tech/caia-chartforge/internal/curation"
	"github.com/Caia-Tech/caia-chartforge/pkg/pipeline"
	"github.com/rs/zerolog/log"
)

func main() {
	defaults := curation.DefaultFilterConfig()
	cmd := pipeline.NewCommand("chartqa-filter", "filter")
	fs := cmd.Flags
	fs.String("input", "", "directory scanned for annotation JSON files")
	fs.String("out", "", "output directory")
	fs.StringSlice("allowed-sources", defaults.AllowedSources, "sources to keep")
	fs.Bool("dry-run", false, "report without copying")
	fs.String("manifest-name", defaults.ManifestName, "manifest CSV file name")
	cmd.Alias("out", "filter.output")

	cmd.Main(func(ctx context.Context, config *pipeline.ForgeConfig) int {
		filterer, err := curation.NewFilterer(config.Filter)
		if err != nil {
			log.Error().Err(err).Msg("Invalid configuration")
			return pipeline.ExitConfig
		}
		summary, err := filterer.Run(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Filtering failed")
			return pipeline.ExitConfig
		}
		log.Info().
			Int("scanned", summary.Scanned).
			Int("kept", summary.Kept).
			Int("skipped_source", summary.SkippedSource).
			Int("broken", summary.Broken).
			Str("manifest", summary.Manifest).
			Msg("Filtering finished")
		if summary.Scanned == 0 {
			return pipeline.ExitNoInput
		}
		return pipeline.ExitOK
	})
}

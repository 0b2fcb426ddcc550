// Command infographic-gen renders captioned chart infographics from a tree
// of CSV datasets and writes an OCR manifest next to them.
package main

import (
	"context"

	"github.com/Caia-Tech/caia-chartforge/internal/infographic"
	"github.com/Caia-Tech/caia-chartforge/pkg/pipeline"
	"github.com/rs/zerolog/log"
)

func main() {
	defaults := infographic.DefaultGeneratorConfig()
	cmd := pipeline.NewCommand("infographic-gen", "infographic")
	fs := cmd.Flags
	fs.String("input-root", defaults.InputRoot, "directory scanned recursively for CSV files")
	fs.String("out", defaults.OutputDir, "output directory for images and metadata.json")
	fs.Int("count", defaults.Count, "number of infographics to generate")
	fs.Int("max-rows", defaults.MaxRows, "rows sampled per CSV")
	fs.Uint64("seed", defaults.Seed, "row sampling seed (0 for random)")
	fs.StringSlice("kinds", defaults.Kinds, "chart kinds cycled in order (pie, donut, hbar, vbar)")
	fs.String("source", defaults.Source, "fallback source line")
	fs.String("conversations-path", "", "also write conversation records to this JSONL file")
	fs.Bool("ascii-labels", defaults.ASCIILabels, "fold category labels to ASCII")
	cmd.Alias("out", "infographic.output_dir")

	cmd.Main(func(ctx context.Context, config *pipeline.ForgeConfig) int {
		gen, err := infographic.NewGenerator(config.Infographic)
		if err != nil {
			log.Error().Err(err).Msg("Invalid configuration")
			return pipeline.ExitConfig
		}
		stats, err := gen.Run(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Generation failed")
			return pipeline.ExitNoInput
		}
		log.Info().
			Int("generated", stats.Generated).
			Int("scanned", stats.Scanned).
			Interface("skipped", stats.Skipped).
			Msg("Infographic generation finished")
		if stats.Generated == 0 {
			return pipeline.ExitNothingValid
		}
		return pipeline.ExitOK
	})
}

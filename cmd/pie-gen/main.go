// Command pie-gen renders one pie or donut chart per CSV file with colors
// kept consistent across the whole run.
package main

import (
	"context"
	"errors"

	"github.com/Caia-Tech/caia-chartforge/internal/infographic"
	"github.com/Caia-Tech/caia-chartforge/pkg/pipeline"
	"github.com/rs/zerolog/log"
)

func main() {
	defaults := infographic.DefaultPieBatchConfig()
	cmd := pipeline.NewCommand("pie-gen", "pie")
	fs := cmd.Flags
	fs.StringSlice("inputs", nil, "CSV files or glob patterns")
	fs.String("labels", "", "label column")
	fs.String("values", "", "value column")
	fs.Bool("percent", false, "values are already percentages")
	fs.Int("topn", 0, "keep the N largest categories and fold the rest into Other")
	fs.Float64("other-threshold", 0, "fold categories whose share is below this fraction")
	fs.Bool("dropna-labels", false, "drop rows with an empty label")
	fs.Bool("donut", defaults.Donut, "draw a donut instead of a pie")
	fs.Float64("min-label-pct", defaults.MinLabelPct, "hide wedge labels below this share")
	fs.StringSlice("fmt", defaults.Formats, "output formats (png, svg)")
	fs.Int("w", defaults.Width, "image width")
	fs.Int("h", defaults.Height, "image height")
	fs.String("out", "", "output directory (defaults to each CSV's directory)")
	fs.String("suffix", "", "file name suffix before the extension")
	fs.String("title", "", "title override")
	fs.String("subtitle", "", "subtitle")
	cmd.Alias("labels", "pie.shares.labels")
	cmd.Alias("values", "pie.shares.values")
	cmd.Alias("percent", "pie.shares.values_are_percent")
	cmd.Alias("topn", "pie.shares.topn")
	cmd.Alias("other-threshold", "pie.shares.other_threshold")
	cmd.Alias("dropna-labels", "pie.shares.dropna_labels")

	cmd.Main(func(ctx context.Context, config *pipeline.ForgeConfig) int {
		if args := cmd.Flags.Args(); len(args) > 0 {
			config.Pie.Inputs = append(config.Pie.Inputs, args...)
		}
		batch, err := infographic.NewPieBatch(config.Pie)
		if err != nil {
			log.Error().Err(err).Msg("Invalid configuration")
			return pipeline.ExitConfig
		}
		written, err := batch.Run(ctx)
		switch {
		case errors.Is(err, infographic.ErrNoInputs):
			log.Error().Err(err).Msg("Nothing to plot")
			return pipeline.ExitNoInput
		case errors.Is(err, infographic.ErrNothingValid):
			log.Error().Err(err).Msg("Nothing to plot")
			return pipeline.ExitNothingValid
		case err != nil:
			log.Error().Err(err).Msg("Pie generation failed")
			return pipeline.ExitConfig
		}
		log.Info().Int("files", len(written)).Msg("Pie generation finished")
		return pipeline.ExitOK
	})
}

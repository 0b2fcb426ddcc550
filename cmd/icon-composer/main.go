// Command icon-composer lays out icons from a pool into row, scatter and
// grid compositions with bounding-box metadata.
package main

import (
	"context"
	"errors"

	"github.com/Caia-Tech/caia-chartforge/internal/iconqa"
	"github.com/Caia-Tech/caia-chartforge/pkg/pipeline"
	"github.com/rs/zerolog/log"
)

func main() {
	defaults := iconqa.DefaultConfig()
	cmd := pipeline.NewCommand("icon-composer", "iconqa")
	fs := cmd.Flags
	fs.String("pool", "", "directory of icon images")
	fs.String("out", defaults.OutputDir, "output directory")
	fs.Int("count", defaults.Count, "number of compositions")
	fs.StringSlice("templates", defaults.Templates, "templates: row, scatter, grid4, grid:RxC, grid:auto")
	fs.Int("canvas-width", defaults.CanvasWidth, "canvas width")
	fs.Int("canvas-height", defaults.CanvasHeight, "canvas height")
	fs.String("background", defaults.Background, "white, random, #RRGGBB or a color name")
	fs.Uint64("seed", 0, "random seed (0 for random)")
	fs.Float64("scale-min", defaults.ScaleMin, "minimum icon scale")
	fs.Float64("scale-max", defaults.ScaleMax, "maximum icon scale")
	fs.Float64("rot-min", defaults.RotMin, "minimum rotation in degrees")
	fs.Float64("rot-max", defaults.RotMax, "maximum rotation in degrees")
	fs.Bool("grid-uniform-size", defaults.GridUniformSize, "same icon size in every grid cell")
	fs.Bool("grid-borders", defaults.GridBorders, "draw grid cell borders")
	cmd.Alias("pool", "iconqa.pool_dir")
	cmd.Alias("out", "iconqa.output_dir")

	cmd.Main(func(ctx context.Context, config *pipeline.ForgeConfig) int {
		composer, err := iconqa.NewComposer(config.IconQA)
		if err != nil {
			log.Error().Err(err).Msg("Failed to set up composer")
			if errors.Is(err, iconqa.ErrNoIcons) {
				return pipeline.ExitNoInput
			}
			return pipeline.ExitConfig
		}
		stats, err := composer.Run(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Composition failed")
			return pipeline.ExitConfig
		}
		log.Info().
			Int("images", stats.Images).
			Int("objects", stats.Objects).
			Interface("layouts", stats.Layouts).
			Str("metadata", stats.Metadata).
			Msg("Icon composition finished")
		return pipeline.ExitOK
	})
}

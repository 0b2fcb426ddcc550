// Command sampler picks an equitable per-group subset of annotated images
// and splits a dataset into selected and remainder parts.
package main

import (
	"context"
	"errors"

	"github.com/Caia-Tech/caia-chartforge/internal/curation"
	"github.com/Caia-Tech/caia-chartforge/pkg/pipeline"
	"github.com/rs/zerolog/log"
)

func main() {
	defaults := curation.DefaultSamplerConfig()
	cmd := pipeline.NewCommand("sampler", "sampler")
	fs := cmd.Flags
	fs.StringSlice("inputs", defaults.Inputs, "annotation files (JSON array or JSONL)")
	fs.Int("target", defaults.Target, "number of images to select")
	fs.String("path-field", defaults.PathField, "record field holding the image path")
	fs.Int("top", 0, "group by the first N directory segments")
	fs.Int("tail", 0, "group by the last N directory segments")
	fs.Bool("shuffle", false, "shuffle each group before taking")
	fs.Uint64("seed", defaults.Seed, "shuffle seed")
	fs.String("copy-to", defaults.CopyTo, "copy selected images here")
	fs.String("out-ann", defaults.OutAnn, "write selected annotations here")
	fs.String("out-csv", "", "write image,group rows of the selection here")
	fs.String("copy-rest-to", defaults.CopyRestTo, "copy the remaining images here")
	fs.String("out-rest-ann", defaults.OutRestAnn, "write remaining annotations here")
	fs.String("out-rest-csv", "", "write image,group rows of the remainder here")
	fs.String("images-root", "", "resolve relative image paths against this directory")
	fs.Bool("flat", false, "do not preserve group directories when copying")
	fs.Bool("dry-run", false, "report without copying")

	cmd.Main(func(ctx context.Context, config *pipeline.ForgeConfig) int {
		if args := cmd.Flags.Args(); len(args) > 0 && !cmd.Changed("inputs") {
			config.Sampler.Inputs = args
		}
		sampler, err := curation.NewSampler(config.Sampler)
		if err != nil {
			log.Error().Err(err).Msg("Invalid configuration")
			return pipeline.ExitConfig
		}
		summary, err := sampler.Run(ctx)
		if errors.Is(err, curation.ErrNoRecords) {
			log.Error().Err(err).Msg("Nothing to sample")
			return pipeline.ExitNoInput
		}
		if err != nil {
			log.Error().Err(err).Msg("Sampling failed")
			return pipeline.ExitConfig
		}
		log.Info().
			Int("records", summary.Records).
			Int("groups", len(summary.Groups)).
			Int("selected", summary.Selected).
			Int("remainder", summary.Remainder).
			Int("missing_selected", summary.MissingSelected).
			Msg("Sampling finished")
		return pipeline.ExitOK
	})
}

// Command vlm-cleaner strips prompt boilerplate and markers from the model
// responses stored in a JSON or JSONL dataset.
package main

import (
	"context"

	"github.com/Caia-Tech/caia-chartforge/internal/processing"
	"github.com/Caia-Tech/caia-chartforge/pkg/pipeline"
	"github.com/rs/zerolog/log"
)

func main() {
	defaults := processing.DefaultCleanerConfig()
	cmd := pipeline.NewCommand("vlm-cleaner", "cleaner")
	fs := cmd.Flags
	fs.String("input", defaults.Input, "JSON or JSONL file to clean")
	fs.String("output", "", "output path (default <input>_cleaned.<ext>)")
	fs.Bool("jsonl", false, "treat the input as JSONL")
	fs.StringSlice("extra-phrases", nil, "additional boilerplate prefix regexes")
	fs.String("phrase-file", "", "file with one boilerplate regex per line")
	fs.StringSlice("only-keys", defaults.OnlyKeys, "keys whose string values are cleaned")
	fs.Bool("keep-markers", false, "keep Question:/Options: markers")
	fs.Bool("keep-answer", false, "keep Answer: segments")
	fs.Bool("keep-hint-lines", false, "keep Hint: lines")
	fs.Bool("normalize", false, "apply NFC and drop zero-width characters")
	fs.Bool("strict-mode", false, "fail on the first rule error")

	cmd.Main(func(ctx context.Context, config *pipeline.ForgeConfig) int {
		if args := cmd.Flags.Args(); len(args) > 0 && !cmd.Changed("input") {
			config.Cleaner.Input = args[0]
		}
		cleaner, err := processing.NewResponseCleaner(config.Cleaner)
		if err != nil {
			log.Error().Err(err).Msg("Invalid configuration")
			return pipeline.ExitConfig
		}
		result, err := cleaner.CleanFile(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Cleaning failed")
			return pipeline.ExitNoInput
		}
		log.Info().
			Str("output", result.Output).
			Int("records", result.Records).
			Int("values", result.Values).
			Int("changed", result.Changed).
			Int("passthrough", result.Passthrough).
			Interface("rule_hits", result.RuleHits).
			Dur("took", result.ProcessingTime).
			Msg("Cleaning finished")
		return pipeline.ExitOK
	})
}

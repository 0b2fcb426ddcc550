package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Outcome values attached to per-item log lines.
const (
	OutcomeOK    = "ok"
	OutcomeSkip  = "skip"
	OutcomeWarn  = "warn"
	OutcomeError = "error"
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `json:"level" mapstructure:"level"`             // debug, info, warn, error
	Format     string `json:"format" mapstructure:"format"`           // json, pretty
	OutputFile string `json:"output_file" mapstructure:"output_file"` // optional log file
	Console    bool   `json:"console" mapstructure:"console"`         // also log to stderr
}

// DefaultLogConfig returns the CLI defaults: human-readable output on stderr, no file.
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:   "info",
		Format:  "pretty",
		Console: true,
	}
}

// SetupLogger configures the global logger
func SetupLogger(config *LogConfig) error {
	if config == nil {
		config = DefaultLogConfig()
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer

	if config.Console {
		if config.Format == "pretty" {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: time.Kitchen,
			})
		} else {
			writers = append(writers, os.Stderr)
		}
	}

	if config.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0755); err != nil {
			return err
		}
		logFile, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		writers = append(writers, logFile)
	}

	switch len(writers) {
	case 0:
		log.Logger = zerolog.Nop()
	case 1:
		log.Logger = zerolog.New(writers[0]).With().Timestamp().Logger()
	default:
		log.Logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
	}

	log.Debug().
		Str("level", config.Level).
		Str("format", config.Format).
		Str("output_file", config.OutputFile).
		Msg("Logger initialized")

	return nil
}

// GetLogger returns a contextual logger
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// GetGeneratorLogger returns a logger for a dataset generator run
func GetGeneratorLogger(generator, run string) zerolog.Logger {
	return log.With().
		Str("generator", generator).
		Str("run", run).
		Logger()
}

// GetCurationLogger returns a logger for curation tools (sampler, filter, cleaner)
func GetCurationLogger(tool, stage string) zerolog.Logger {
	return log.With().
		Str("tool", tool).
		Str("stage", stage).
		Logger()
}

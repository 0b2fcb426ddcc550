package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Caia-Tech/caia-chartforge/internal/api"
	"github.com/Caia-Tech/caia-chartforge/internal/curation"
	"github.com/Caia-Tech/caia-chartforge/internal/iconqa"
	"github.com/Caia-Tech/caia-chartforge/internal/infographic"
	"github.com/Caia-Tech/caia-chartforge/internal/processing"
	"github.com/Caia-Tech/caia-chartforge/internal/scraping"
	"github.com/Caia-Tech/caia-chartforge/pkg/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// CHARTFORGE_SCRAPER_CONCURRENCY.
const EnvPrefix = "CHARTFORGE"

// Profiles accepted by LoadOptions.Profile.
const (
	ProfileDefault     = ""
	ProfileDevelopment = "development"
	ProfileProduction  = "production"
)

// ForgeConfig holds the configuration of every chartforge tool. Each
// command reads the whole tree and uses its own section.
type ForgeConfig struct {
	Logging     *logging.LogConfig           `json:"logging" mapstructure:"logging"`
	Infographic *infographic.GeneratorConfig `json:"infographic" mapstructure:"infographic"`
	Pie         *infographic.PieBatchConfig  `json:"pie" mapstructure:"pie"`
	IconQA      *iconqa.Config               `json:"iconqa" mapstructure:"iconqa"`
	Sampler     *curation.SamplerConfig      `json:"sampler" mapstructure:"sampler"`
	Filter      *curation.FilterConfig       `json:"filter" mapstructure:"filter"`
	Pairs       *curation.PairConfig         `json:"pairs" mapstructure:"pairs"`
	Cleaner     *processing.CleanerConfig    `json:"cleaner" mapstructure:"cleaner"`
	Scraper     *scraping.ScraperConfig      `json:"scraper" mapstructure:"scraper"`
	Server      *api.ServerConfig            `json:"server" mapstructure:"server"`
}

// DefaultForgeConfig returns a complete default configuration
func DefaultForgeConfig() *ForgeConfig {
	return &ForgeConfig{
		Logging:     logging.DefaultLogConfig(),
		Infographic: infographic.DefaultGeneratorConfig(),
		Pie:         infographic.DefaultPieBatchConfig(),
		IconQA:      iconqa.DefaultConfig(),
		Sampler:     curation.DefaultSamplerConfig(),
		Filter:      curation.DefaultFilterConfig(),
		Pairs:       curation.DefaultPairConfig(),
		Cleaner:     processing.DefaultCleanerConfig(),
		Scraper:     scraping.DefaultScraperConfig(),
		Server:      api.DefaultServerConfig(),
	}
}

// ProductionForgeConfig logs JSON lines to a file and keeps stderr quiet.
func ProductionForgeConfig() *ForgeConfig {
	config := DefaultForgeConfig()

	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Logging.Console = false
	config.Logging.OutputFile = "logs/chartforge.log"

	config.Scraper.RespectRobots = true
	config.Scraper.Resume = true

	return config
}

// DevelopmentForgeConfig returns development configuration
func DevelopmentForgeConfig() *ForgeConfig {
	config := DefaultForgeConfig()

	config.Logging.Level = "debug"
	config.Logging.Format = "pretty"
	config.Logging.Console = true

	config.Scraper.Concurrency = 2
	config.Cleaner.StrictMode = true

	return config
}

// LoadOptions controls where Load looks for overrides.
type LoadOptions struct {
	// Path is an explicit config file. When empty, chartforge.{yaml,json,toml}
	// in the working directory is used if present.
	Path    string
	Profile string

	// Flags bind to <Section>.<flag_name> with dashes turned into
	// underscores. Aliases map a flag name to a full key for flags that
	// do not follow that layout. Flags without a matching key are ignored.
	Flags   *pflag.FlagSet
	Section string
	Aliases map[string]string
}

// Load builds a ForgeConfig from, in rising precedence: the profile
// defaults, the config file, CHARTFORGE_* environment variables and
// flags the user actually set.
func Load(opts LoadOptions) (*ForgeConfig, error) {
	config, err := profileConfig(opts.Profile)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	known, err := setDefaults(v, config)
	if err != nil {
		return nil, fmt.Errorf("failed to register defaults: %w", err)
	}

	if err := readConfigFile(v, opts.Path); err != nil {
		return nil, err
	}

	if opts.Flags != nil {
		if err := bindFlags(v, known, opts); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return config, nil
}

func profileConfig(profile string) (*ForgeConfig, error) {
	switch profile {
	case ProfileDefault:
		return DefaultForgeConfig(), nil
	case ProfileDevelopment:
		return DevelopmentForgeConfig(), nil
	case ProfileProduction:
		return ProductionForgeConfig(), nil
	default:
		return nil, fmt.Errorf("unknown config profile %q", profile)
	}
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
		log.Debug().Str("path", path).Msg("Config file loaded")
		return nil
	}

	v.SetConfigName("chartforge")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Debug().Msg("No config file found, using defaults and environment")
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	log.Debug().Str("path", v.ConfigFileUsed()).Msg("Config file loaded")
	return nil
}

// setDefaults registers every leaf of config as a viper default so that
// environment variables resolve for keys absent from the config file.
func setDefaults(v *viper.Viper, config *ForgeConfig) (map[string]bool, error) {
	data, err := json.Marshal(config)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}

	known := make(map[string]bool)
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, value := range node {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := value.(map[string]any); ok {
				walk(key, child)
				continue
			}
			known[key] = true
			if value != nil {
				v.SetDefault(key, value)
			}
		}
	}
	walk("", tree)
	return known, nil
}

func bindFlags(v *viper.Viper, known map[string]bool, opts LoadOptions) error {
	var bindErr error
	opts.Flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		key, ok := opts.Aliases[f.Name]
		if !ok {
			if opts.Section == "" {
				return
			}
			key = opts.Section + "." + strings.ReplaceAll(f.Name, "-", "_")
		}
		if !known[key] {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("failed to bind flag --%s: %w", f.Name, err)
		}
	})
	return bindErr
}

// LoggingFlags registers the logging flags shared by every command.
func LoggingFlags(fs *pflag.FlagSet) map[string]string {
	defaults := logging.DefaultLogConfig()
	fs.String("log-level", defaults.Level, "log level (debug, info, warn, error)")
	fs.String("log-format", defaults.Format, "log format (pretty, json)")
	fs.String("log-file", defaults.OutputFile, "also append logs to this file")
	return map[string]string{
		"log-level":  "logging.level",
		"log-format": "logging.format",
		"log-file":   "logging.output_file",
	}
}

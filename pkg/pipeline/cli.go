package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Caia-Tech/caia-chartforge/pkg/logging"
	"github.com/spf13/pflag"
)

// Process exit codes shared by the chartforge commands.
const (
	ExitOK           = 0
	ExitConfig       = 1 // bad flags, bad config or setup failure
	ExitNoInput      = 2 // nothing matched the input arguments
	ExitNothingValid = 3 // inputs existed but every one was skipped
)

// Command is the flag and config front-end of one chartforge tool.
type Command struct {
	Name    string
	Section string
	Flags   *pflag.FlagSet

	aliases map[string]string
}

// NewCommand returns a command whose flags bind to the given ForgeConfig
// section. --config, --profile and the logging flags are registered.
func NewCommand(name, section string) *Command {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "config file (yaml, json or toml)")
	fs.String("profile", ProfileDefault, "config profile (development, production)")
	return &Command{
		Name:    name,
		Section: section,
		Flags:   fs,
		aliases: LoggingFlags(fs),
	}
}

// Alias binds a flag to a full config key outside the command's section
// layout, e.g. "labels" to "pie.shares.labels".
func (c *Command) Alias(flag, key string) {
	c.aliases[flag] = key
}

// Changed reports whether the user set the flag.
func (c *Command) Changed(flag string) bool {
	return c.Flags.Changed(flag)
}

// Parse parses args, loads the layered config and configures logging.
// pflag.ErrHelp is returned unchanged when --help was given.
func (c *Command) Parse(args []string) (*ForgeConfig, error) {
	if err := c.Flags.Parse(args); err != nil {
		return nil, err
	}

	path, _ := c.Flags.GetString("config")
	profile, _ := c.Flags.GetString("profile")
	config, err := Load(LoadOptions{
		Path:    path,
		Profile: profile,
		Flags:   c.Flags,
		Section: c.Section,
		Aliases: c.aliases,
	})
	if err != nil {
		return nil, err
	}

	if err := logging.SetupLogger(config.Logging); err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return config, nil
}

// Main runs fn with a context cancelled on SIGINT/SIGTERM and exits with
// the code it returns. Parse errors exit with ExitConfig, --help with 0.
func (c *Command) Main(fn func(ctx context.Context, config *ForgeConfig) int) {
	config, err := c.Parse(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(ExitOK)
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", c.Name, err)
		os.Exit(ExitConfig)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := fn(ctx, config)
	stop()
	os.Exit(code)
}

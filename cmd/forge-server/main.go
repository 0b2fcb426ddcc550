// Command forge-server serves generated manifests and images for review
// and renders pie charts on request.
package main

import (
	"context"

	"github.com/Caia-Tech/caia-chartforge/internal/api"
	"github.com/Caia-Tech/caia-chartforge/pkg/pipeline"
	"github.com/rs/zerolog/log"
)

func main() {
	defaults := api.DefaultServerConfig()
	cmd := pipeline.NewCommand("forge-server", "server")
	fs := cmd.Flags
	fs.String("host", defaults.Host, "listen host")
	fs.Int("port", defaults.Port, "listen port")
	fs.String("data-root", defaults.DataRoot, "directory holding manifests and images")
	fs.Bool("enable-cors", defaults.EnableCORS, "send permissive CORS headers")
	fs.Int("page-size", defaults.PageSize, "default records per manifest page")

	cmd.Main(func(ctx context.Context, config *pipeline.ForgeConfig) int {
		server, err := api.NewServer(config.Server)
		if err != nil {
			log.Error().Err(err).Msg("Invalid configuration")
			return pipeline.ExitConfig
		}
		if err := server.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Server stopped with error")
			return pipeline.ExitConfig
		}
		return pipeline.ExitOK
	})
}

// Command owid-scraper walks the Our World in Data catalog and downloads
// the PNG or SVG export of every Grapher chart it finds.
package main

import (
	"context"
	"time"

	"github.com/Caia-Tech/caia-chartforge/internal/scraping"
	"github.com/Caia-Tech/caia-chartforge/pkg/pipeline"
	"github.com/rs/zerolog/log"
)

func main() {
	defaults := scraping.DefaultScraperConfig()
	cmd := pipeline.NewCommand("owid-scraper", "scraper")
	fs := cmd.Flags
	fs.String("out", defaults.OutDir, "output directory for images and registry.jsonl")
	fs.StringSlice("urls", nil, "content pages to scan instead of the catalog")
	fs.String("catalog-url", defaults.CatalogURL, "paginated catalog listing")
	fs.String("base-url", defaults.BaseURL, "site root used to absolutize links")
	fs.String("format", defaults.Format, "export format (png, svg)")
	fs.Int("concurrency", defaults.Concurrency, "concurrent downloads (1-8)")
	fs.Float64("sleep", defaults.Delay.Seconds(), "seconds between requests to one host")
	fs.Duration("timeout", defaults.Timeout, "per-request timeout")
	fs.Int("retries", defaults.Retries, "attempts on 429, 5xx and transport errors")
	fs.Duration("backoff", defaults.Backoff, "linear backoff step between attempts")
	fs.Int("max-catalog-pages", 0, "stop after this many catalog pages (0 for no limit)")
	fs.Bool("resume", defaults.Resume, "skip charts already in the registry (--resume=false starts over)")
	fs.Bool("no-robots", false, "do not consult robots.txt")
	fs.String("user-agent", defaults.UserAgent, "User-Agent header")
	fs.StringSlice("allowed-domains", nil, "only fetch from these hosts")
	fs.Int64("host-error-threshold", defaults.HostErrorThreshold, "consecutive errors before a host is paused")
	fs.Duration("host-backoff", defaults.HostBackoff, "pause per error once a host is over the threshold")
	fs.Duration("host-max-backoff", defaults.HostMaxBackoff, "longest pause for a failing host")
	cmd.Alias("out", "scraper.out_dir")

	cmd.Main(func(ctx context.Context, config *pipeline.ForgeConfig) int {
		cfg := config.Scraper
		if cmd.Changed("sleep") {
			seconds, _ := cmd.Flags.GetFloat64("sleep")
			cfg.Delay = time.Duration(seconds * float64(time.Second))
		}
		if noRobots, _ := cmd.Flags.GetBool("no-robots"); noRobots {
			cfg.RespectRobots = false
		}

		scraper, err := scraping.NewScraper(cfg)
		if err != nil {
			log.Error().Err(err).Msg("Invalid configuration")
			return pipeline.ExitConfig
		}
		stats, err := scraper.Run(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Scrape failed")
			return pipeline.ExitConfig
		}
		log.Info().
			Int("catalog_pages", stats.CatalogPages).
			Int("targets", stats.Targets).
			Int("charts", stats.Charts).
			Int("downloaded", stats.Downloaded).
			Int("exists", stats.Exists).
			Int("failed", stats.Failed).
			Str("registry", cfg.RegistryPath()).
			Msg("Scrape finished")
		if stats.Charts == 0 {
			return pipeline.ExitNoInput
		}
		return pipeline.ExitOK
	})
}

package scraping

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/Caia-Tech/caia-chartforge/internal/registry"
	"github.com/Caia-Tech/caia-chartforge/pkg/logging"
	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ScraperConfig holds OWID scraper settings
type ScraperConfig struct {
	CatalogURL      string        `json:"catalog_url" mapstructure:"catalog_url"`
	URLs            []string      `json:"urls" mapstructure:"urls"` // content pages scanned directly, skipping the catalog
	BaseURL         string        `json:"base_url" mapstructure:"base_url"`
	OutDir          string        `json:"out_dir" mapstructure:"out_dir"`
	Format          string        `json:"format" mapstructure:"format"`
	Concurrency     int           `json:"concurrency" mapstructure:"concurrency"`
	Delay           time.Duration `json:"delay" mapstructure:"delay"`
	Timeout         time.Duration `json:"timeout" mapstructure:"timeout"`
	Retries         int           `json:"retries" mapstructure:"retries"`
	Backoff         time.Duration `json:"backoff" mapstructure:"backoff"`
	MaxCatalogPages int           `json:"max_catalog_pages" mapstructure:"max_catalog_pages"` // 0 stops on empty pages only
	Resume          bool          `json:"resume" mapstructure:"resume"`
	RespectRobots   bool          `json:"respect_robots" mapstructure:"respect_robots"`
	UserAgent       string        `json:"user_agent" mapstructure:"user_agent"`
	AllowedDomains  []string      `json:"allowed_domains" mapstructure:"allowed_domains"`

	HostErrorThreshold int64         `json:"host_error_threshold" mapstructure:"host_error_threshold"`
	HostBackoff        time.Duration `json:"host_backoff" mapstructure:"host_backoff"`
	HostMaxBackoff     time.Duration `json:"host_max_backoff" mapstructure:"host_max_backoff"`
}

// DefaultScraperConfig returns default scraper configuration
func DefaultScraperConfig() *ScraperConfig {
	return &ScraperConfig{
		CatalogURL:    DefaultBaseURL + "/data?topics=Poverty+and+Economic+Development~Migration",
		BaseURL:       DefaultBaseURL,
		OutDir:        "charts_owid",
		Format:        "png",
		Concurrency:   4,
		Delay:         250 * time.Millisecond,
		Timeout:       45 * time.Second,
		Retries:       3,
		Backoff:       2 * time.Second,
		Resume:        true,
		RespectRobots: true,
		UserAgent:     DefaultUserAgent,

		HostErrorThreshold: 3,
		HostBackoff:        30 * time.Second,
		HostMaxBackoff:     5 * time.Minute,
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *ScraperConfig) Validate() error {
	if c.CatalogURL == "" && len(c.URLs) == 0 {
		return errors.New("catalog URL or page URLs required")
	}
	if c.BaseURL == "" {
		return errors.New("base URL is required")
	}
	if c.OutDir == "" {
		return errors.New("output dir is required")
	}
	if c.Format != "png" && c.Format != "svg" {
		return fmt.Errorf("format must be png or svg, got %q", c.Format)
	}
	if c.Concurrency < 1 || c.Concurrency > 8 {
		return fmt.Errorf("concurrency must be between 1 and 8, got %d", c.Concurrency)
	}
	if c.Retries < 1 {
		return fmt.Errorf("retries must be at least 1, got %d", c.Retries)
	}
	if c.Delay < 0 || c.Backoff < 0 {
		return errors.New("delay and backoff must not be negative")
	}
	return nil
}

// RegistryPath is the JSONL registry inside the output dir.
func (c *ScraperConfig) RegistryPath() string {
	return filepath.Join(c.OutDir, "registry.jsonl")
}

// ImageDir is where exported charts are written.
func (c *ScraperConfig) ImageDir() string {
	return filepath.Join(c.OutDir, "images")
}

// ScrapeStats summarizes a run.
type ScrapeStats struct {
	CatalogPages int `json:"catalog_pages"`
	Targets      int `json:"targets"`
	Charts       int `json:"charts"`
	Downloaded   int `json:"downloaded"`
	Exists       int `json:"exists"`
	Failed       int `json:"failed"`
}

// Scraper walks an OWID data catalog and downloads every Grapher chart
// embedded in the listed pages.
type Scraper struct {
	cfg     *ScraperConfig
	fetcher *Fetcher
	logger  zerolog.Logger
	charts  atomic.Int64
}

// NewScraper creates a scraper from a validated config.
func NewScraper(cfg *ScraperConfig) (*Scraper, error) {
	if cfg == nil {
		cfg = DefaultScraperConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scraper config: %w", err)
	}

	var compliance *ComplianceEngine
	if cfg.RespectRobots || len(cfg.AllowedDomains) > 0 {
		cc := DefaultComplianceConfig()
		cc.RespectRobotsTxt = cfg.RespectRobots
		cc.UserAgent = cfg.UserAgent
		cc.AllowedDomains = cfg.AllowedDomains
		compliance = NewComplianceEngine(cc, nil)
	}

	fetcher := NewFetcher(&FetcherConfig{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		Retries:   cfg.Retries,
		Backoff:   cfg.Backoff,
		Delay:     cfg.Delay,

		HostErrorThreshold: cfg.HostErrorThreshold,
		HostBackoff:        cfg.HostBackoff,
		HostMaxBackoff:     cfg.HostMaxBackoff,
	}, compliance)

	return &Scraper{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logging.GetGeneratorLogger("owid-scraper", uuid.NewString()),
	}, nil
}

// Run crawls the catalog, then scans target pages with bounded concurrency.
// Per-chart failures are recorded in the registry and do not stop the run.
func (s *Scraper) Run(ctx context.Context) (*ScrapeStats, error) {
	if err := os.MkdirAll(s.cfg.ImageDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	reg, err := registry.Open(s.cfg.RegistryPath(), s.cfg.Resume)
	if err != nil {
		return nil, err
	}
	defer reg.Close()

	stats := &ScrapeStats{}
	targets := s.cfg.URLs
	if len(targets) == 0 {
		var pages int
		targets, pages = s.crawlCatalog(ctx)
		stats.CatalogPages = pages
	}
	stats.Targets = len(targets)
	s.logger.Info().Int("targets", len(targets)).Msg("Scanning target pages")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, page := range targets {
		g.Go(func() error {
			s.processPage(gctx, reg, page)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := reg.Counts()
	stats.Charts = int(s.charts.Load())
	stats.Downloaded = counts[registry.StatusOK]
	stats.Exists = counts[registry.StatusExists]
	stats.Failed = counts[registry.StatusError]
	s.logger.Info().
		Int("downloaded", stats.Downloaded).
		Int("exists", stats.Exists).
		Int("failed", stats.Failed).
		Msg("Scrape completed")
	return stats, nil
}

// crawlCatalog paginates until a 404/410, a failed page, two consecutive
// empty pages or the page cap.
func (s *Scraper) crawlCatalog(ctx context.Context) ([]string, int) {
	var targets []string
	seen := make(map[string]bool)
	emptyStreak := 0
	pages := 0

	for page := 1; s.cfg.MaxCatalogPages <= 0 || page <= s.cfg.MaxCatalogPages; page++ {
		pageURL, err := CatalogPageURL(s.cfg.CatalogURL, page)
		if err != nil {
			s.logger.Error().Err(err).Str("outcome", logging.OutcomeError).Msg("Invalid catalog URL")
			break
		}
		body, err := s.fetcher.Get(ctx, pageURL)
		if err != nil {
			if !IsGone(err) {
				s.logger.Warn().Err(err).Str("url", pageURL).Str("outcome", logging.OutcomeWarn).Msg("Catalog page failed")
			}
			break
		}
		pages++

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			s.logger.Warn().Err(err).Str("url", pageURL).Str("outcome", logging.OutcomeWarn).Msg("Unparseable catalog page")
			break
		}
		links := ExtractCatalogLinks(s.cfg.BaseURL, doc)
		s.logger.Info().Int("page", page).Int("links", len(links)).Msg("Catalog page scanned")

		for _, l := range links {
			if !seen[l] {
				seen[l] = true
				targets = append(targets, l)
			}
		}
		if len(links) == 0 {
			emptyStreak++
		} else {
			emptyStreak = 0
		}
		if emptyStreak >= 2 {
			break
		}
	}
	return targets, pages
}

func (s *Scraper) processPage(ctx context.Context, reg *registry.Registry, pageURL string) {
	body, err := s.fetcher.Get(ctx, pageURL)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Str("page", pageURL).Str("outcome", logging.OutcomeWarn).Msg("Page fetch failed")
		}
		return
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		s.logger.Warn().Err(err).Str("page", pageURL).Str("outcome", logging.OutcomeWarn).Msg("Unparseable page")
		return
	}
	meta := ParsePageMeta(body)

	for _, src := range ExtractGrapherIframes(s.cfg.BaseURL, doc) {
		if ctx.Err() != nil {
			return
		}
		ref, err := NewChartRef(pageURL, src, s.cfg.Format)
		if err != nil {
			s.logger.Warn().Err(err).Str("iframe", src).Str("outcome", logging.OutcomeSkip).Msg("Bad iframe URL")
			continue
		}
		s.charts.Add(1)
		s.download(ctx, reg, ref, meta)
	}
}

func (s *Scraper) download(ctx context.Context, reg *registry.Registry, ref ChartRef, meta PageMeta) {
	rec := registry.Record{
		PageURL:     ref.PageURL,
		VisURL:      ref.IframeSrc,
		ExportURL:   ref.ExportURL,
		Output:      filepath.Join(s.cfg.ImageDir(), ref.Filename),
		Title:       meta.Title,
		Description: meta.Description,
	}

	if !reg.Claim(ref.ExportURL) {
		rec.Status = registry.StatusExists
		s.appendRecord(reg, rec)
		return
	}
	if _, err := os.Stat(rec.Output); err == nil && s.cfg.Resume {
		rec.Status = registry.StatusExists
		s.appendRecord(reg, rec)
		return
	}

	data, err := s.fetcher.Get(ctx, ref.ExportURL)
	if err == nil {
		err = os.WriteFile(rec.Output, data, 0644)
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		rec.Status = registry.StatusError
		rec.Error = err.Error()
		s.logger.Warn().Err(err).Str("export_url", ref.ExportURL).Str("outcome", logging.OutcomeError).Msg("Chart download failed")
		s.appendRecord(reg, rec)
		return
	}

	rec.Status = registry.StatusOK
	s.logger.Info().Str("file", ref.Filename).Str("page", ref.PageURL).Str("outcome", logging.OutcomeOK).Msg("Saved chart")
	s.appendRecord(reg, rec)
}

func (s *Scraper) appendRecord(reg *registry.Registry, rec registry.Record) {
	if err := reg.Append(rec); err != nil {
		s.logger.Error().Err(err).Str("outcome", logging.OutcomeError).Msg("Registry write failed")
	}
}

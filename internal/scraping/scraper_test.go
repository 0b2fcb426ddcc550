package scraping

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Caia-Tech/caia-chartforge/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type owidFixture struct {
	srv          *httptest.Server
	blockedHits  atomic.Int32
	catalogPages atomic.Int32
}

func newOWIDFixture(t *testing.T) *owidFixture {
	t.Helper()
	f := &owidFixture{}
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /blocked\n")
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		f.catalogPages.Add(1)
		if r.URL.Query().Get("page") == "" {
			fmt.Fprint(w, `<html><body><main>
				<a href="/poverty">Poverty</a>
				<a href="/migration">Migration</a>
				<a href="/blocked">Blocked</a>
				<a href="/data?page=2">Next</a>
			</main></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body><main></main></body></html>`)
	})
	mux.HandleFunc("/poverty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Poverty</title><meta name="description" content="Poverty charts"></head><body>
			<iframe src="/grapher/gdp?tab=chart"></iframe>
			<iframe src="/grapher/life?country=USA"></iframe>
		</body></html>`)
	})
	mux.HandleFunc("/migration", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Migration</title></head><body>
			<iframe src="/grapher/gdp?tab=chart"></iframe>
			<iframe src="/grapher/broken"></iframe>
		</body></html>`)
	})
	mux.HandleFunc("/blocked", func(w http.ResponseWriter, r *http.Request) {
		f.blockedHits.Add(1)
	})
	mux.HandleFunc("/grapher/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/grapher/gdp.png", "/grapher/life.png":
			assert.Equal(t, "png", r.URL.Query().Get("download-format"))
			fmt.Fprint(w, "PNGDATA")
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *owidFixture) config(out string) *ScraperConfig {
	cfg := DefaultScraperConfig()
	cfg.CatalogURL = f.srv.URL + "/data"
	cfg.BaseURL = f.srv.URL
	cfg.OutDir = out
	cfg.Concurrency = 2
	cfg.Delay = 0
	cfg.Retries = 2
	cfg.Backoff = time.Millisecond
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestScraper_Run(t *testing.T) {
	fx := newOWIDFixture(t)
	out := t.TempDir()

	s, err := NewScraper(fx.config(out))
	require.NoError(t, err)
	stats, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.CatalogPages)
	assert.Equal(t, 3, stats.Targets)
	assert.Equal(t, 4, stats.Charts)
	assert.Equal(t, 2, stats.Downloaded)
	assert.Equal(t, 1, stats.Exists)
	assert.Equal(t, 1, stats.Failed)
	assert.Zero(t, fx.blockedHits.Load())

	gdp := filepath.Join(out, "images", ChartFilename("gdp", "tab=chart", "png"))
	data, err := os.ReadFile(gdp)
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))

	recs, err := registry.ReadAll[registry.Record](filepath.Join(out, "registry.jsonl"), nil)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	for _, rec := range recs {
		if rec.VisURL == fx.srv.URL+"/grapher/life?country=USA" {
			assert.Equal(t, registry.StatusOK, rec.Status)
			assert.Equal(t, "Poverty", rec.Title)
			assert.Equal(t, "Poverty charts", rec.Description)
		}
		if rec.Status == registry.StatusError {
			assert.Contains(t, rec.ExportURL, "/grapher/broken.png")
			assert.NotEmpty(t, rec.Error)
		}
	}

	// second run resumes: finished charts become exists, the failed one is retried
	s, err = NewScraper(fx.config(out))
	require.NoError(t, err)
	stats, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Downloaded)
	assert.Equal(t, 3, stats.Exists)
	assert.Equal(t, 1, stats.Failed)
}

func TestScraper_DirectURLs(t *testing.T) {
	fx := newOWIDFixture(t)
	cfg := fx.config(t.TempDir())
	cfg.URLs = []string{fx.srv.URL + "/poverty"}
	cfg.Format = "png"

	s, err := NewScraper(cfg)
	require.NoError(t, err)
	stats, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fx.catalogPages.Load())
	assert.Equal(t, 2, stats.Downloaded)
}

func TestScraperConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultScraperConfig().Validate())

	cfg := DefaultScraperConfig()
	cfg.Format = "gif"
	assert.Error(t, cfg.Validate())

	cfg = DefaultScraperConfig()
	cfg.Concurrency = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultScraperConfig()
	cfg.CatalogURL = ""
	assert.Error(t, cfg.Validate())
}

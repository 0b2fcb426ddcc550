package scraping

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Caia-Tech/caia-chartforge/pkg/ratelimit"
	"github.com/rs/zerolog/log"
)

// DefaultUserAgent identifies the scraper to servers.
const DefaultUserAgent = "CAIA-ChartForge/1.0 (+https://caia.tech/bot)"

// maxBody bounds a downloaded page or chart.
const maxBody = 64 << 20

// FetcherConfig holds HTTP client settings
type FetcherConfig struct {
	UserAgent string        `json:"user_agent" mapstructure:"user_agent"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
	Retries   int           `json:"retries" mapstructure:"retries"`
	Backoff   time.Duration `json:"backoff" mapstructure:"backoff"` // multiplied by the attempt number
	Delay     time.Duration `json:"delay" mapstructure:"delay"`     // minimum spacing per host

	// A host failing more than HostErrorThreshold times in a row is paused
	// for errors*HostBackoff, at most HostMaxBackoff. Zero keeps the limiter defaults.
	HostErrorThreshold int64         `json:"host_error_threshold" mapstructure:"host_error_threshold"`
	HostBackoff        time.Duration `json:"host_backoff" mapstructure:"host_backoff"`
	HostMaxBackoff     time.Duration `json:"host_max_backoff" mapstructure:"host_max_backoff"`
}

// DefaultFetcherConfig returns default fetcher configuration
func DefaultFetcherConfig() *FetcherConfig {
	return &FetcherConfig{
		UserAgent: DefaultUserAgent,
		Timeout:   45 * time.Second,
		Retries:   3,
		Backoff:   2 * time.Second,
		Delay:     250 * time.Millisecond,

		HostErrorThreshold: 3,
		HostBackoff:        30 * time.Second,
		HostMaxBackoff:     5 * time.Minute,
	}
}

// StatusError is a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.Code)
}

// IsGone reports whether err is a 404 or 410 response.
func IsGone(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusNotFound || se.Code == http.StatusGone
	}
	return false
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Fetcher performs polite GET requests: per-host spacing, optional
// robots.txt checks and a fixed number of retries with linear backoff.
type Fetcher struct {
	config     *FetcherConfig
	client     *http.Client
	limiter    *ratelimit.HostLimiter
	compliance *ComplianceEngine
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a fetcher. compliance may be nil to skip robots checks.
func NewFetcher(config *FetcherConfig, compliance *ComplianceEngine) *Fetcher {
	if config == nil {
		config = DefaultFetcherConfig()
	}
	if config.Retries < 1 {
		config.Retries = 1
	}
	limiter := ratelimit.NewHostLimiter(config.Delay)
	if config.HostErrorThreshold > 0 && config.HostBackoff > 0 {
		maxBackoff := config.HostMaxBackoff
		if maxBackoff < config.HostBackoff {
			maxBackoff = config.HostBackoff
		}
		limiter.SetBackoff(config.HostErrorThreshold, config.HostBackoff, maxBackoff)
	}
	return &Fetcher{
		config:     config,
		client:     &http.Client{Timeout: config.Timeout},
		limiter:    limiter,
		compliance: compliance,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get fetches rawURL and returns its body.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	host := u.Host

	if f.compliance != nil {
		delay, err := f.compliance.Allow(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if delay > f.config.Delay {
			f.limiter.SetInterval(host, delay)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= f.config.Retries; attempt++ {
		if err := f.limiter.Wait(ctx, host); err != nil {
			return nil, err
		}

		body, code, err := f.do(ctx, rawURL)
		switch {
		case err == nil && code >= 200 && code < 300:
			f.limiter.RecordSuccess(host)
			return body, nil
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		default:
			lastErr = &StatusError{URL: rawURL, Code: code}
			if !retryable(code) {
				return nil, lastErr
			}
		}

		f.limiter.RecordError(host)
		if attempt < f.config.Retries {
			log.Debug().Err(lastErr).Str("url", rawURL).Int("attempt", attempt).Msg("Retrying request")
			if err := f.sleep(ctx, f.config.Backoff*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", f.config.Retries, lastErr)
}

func (f *Fetcher) do(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// Stats exposes per-host request counters.
func (f *Fetcher) Stats() map[string]ratelimit.HostStats {
	return f.limiter.GetStats()
}

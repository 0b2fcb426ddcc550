// Package scraping downloads OWID Grapher charts listed in a data catalog.
package scraping

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"
)

// ErrNotAllowed is returned for URLs blocked by robots.txt or the domain lists.
var ErrNotAllowed = errors.New("fetch not allowed")

// ComplianceConfig configures compliance checking behavior
type ComplianceConfig struct {
	RespectRobotsTxt bool          `json:"respect_robots_txt" mapstructure:"respect_robots_txt"`
	CacheTimeout     time.Duration `json:"cache_timeout" mapstructure:"cache_timeout"`
	UserAgent        string        `json:"user_agent" mapstructure:"user_agent"`
	AllowedDomains   []string      `json:"allowed_domains" mapstructure:"allowed_domains"` // empty allows every domain
	DeniedDomains    []string      `json:"denied_domains" mapstructure:"denied_domains"`
}

// DefaultComplianceConfig returns default compliance configuration
func DefaultComplianceConfig() *ComplianceConfig {
	return &ComplianceConfig{
		RespectRobotsTxt: true,
		CacheTimeout:     24 * time.Hour,
		UserAgent:        DefaultUserAgent,
	}
}

// ComplianceResult represents the result of a compliance check
type ComplianceResult struct {
	URL             string        `json:"url"`
	Domain          string        `json:"domain"`
	Allowed         bool          `json:"allowed"`
	RobotsCompliant bool          `json:"robots_compliant"`
	CrawlDelay      time.Duration `json:"crawl_delay"`
	Restrictions    []string      `json:"restrictions"`
	CheckedAt       time.Time     `json:"checked_at"`
}

type robotsEntry struct {
	data      *robotstxt.RobotsData // nil when robots.txt was unreachable
	fetchedAt time.Time
}

// ComplianceEngine checks URLs against domain lists and cached robots.txt files.
type ComplianceEngine struct {
	config      *ComplianceConfig
	client      *http.Client
	robotsMu    sync.RWMutex
	robotsCache map[string]*robotsEntry
}

// NewComplianceEngine creates a new compliance engine
func NewComplianceEngine(config *ComplianceConfig, client *http.Client) *ComplianceEngine {
	if config == nil {
		config = DefaultComplianceConfig()
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &ComplianceEngine{
		config:      config,
		client:      client,
		robotsCache: make(map[string]*robotsEntry),
	}
}

// CheckCompliance reports whether targetURL may be fetched.
func (ce *ComplianceEngine) CheckCompliance(ctx context.Context, targetURL string) (*ComplianceResult, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	domain := parsed.Hostname()

	result := &ComplianceResult{
		URL:             targetURL,
		Domain:          domain,
		RobotsCompliant: true,
		Restrictions:    make([]string, 0),
		CheckedAt:       time.Now(),
	}

	if len(ce.config.AllowedDomains) > 0 && !matchDomain(domain, ce.config.AllowedDomains) {
		result.Restrictions = append(result.Restrictions, "Domain not in allow list")
		return result, nil
	}
	if matchDomain(domain, ce.config.DeniedDomains) {
		result.Restrictions = append(result.Restrictions, "Domain is denied")
		return result, nil
	}

	if ce.config.RespectRobotsTxt {
		robots := ce.robotsFor(ctx, parsed)
		if robots != nil {
			group := robots.FindGroup(ce.config.UserAgent)
			result.RobotsCompliant = group.Test(pathWithQuery(parsed))
			result.CrawlDelay = group.CrawlDelay
		}
		if !result.RobotsCompliant {
			result.Restrictions = append(result.Restrictions, "Blocked by robots.txt")
		}
	}

	result.Allowed = result.RobotsCompliant
	log.Debug().
		Str("url", targetURL).
		Bool("allowed", result.Allowed).
		Dur("crawl_delay", result.CrawlDelay).
		Msg("Compliance check completed")
	return result, nil
}

// Allow is CheckCompliance reduced to an error: nil or ErrNotAllowed.
func (ce *ComplianceEngine) Allow(ctx context.Context, targetURL string) (time.Duration, error) {
	res, err := ce.CheckCompliance(ctx, targetURL)
	if err != nil {
		return 0, err
	}
	if !res.Allowed {
		return 0, fmt.Errorf("%s: %w (%s)", targetURL, ErrNotAllowed, strings.Join(res.Restrictions, "; "))
	}
	return res.CrawlDelay, nil
}

// robotsFor returns the cached robots.txt of u's origin, fetching it when
// missing or stale. An unreachable robots.txt allows everything.
func (ce *ComplianceEngine) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	origin := u.Scheme + "://" + u.Host

	ce.robotsMu.RLock()
	entry, ok := ce.robotsCache[origin]
	ce.robotsMu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < ce.config.CacheTimeout {
		return entry.data
	}

	data, err := ce.fetchRobots(ctx, origin+"/robots.txt")
	if err != nil {
		log.Debug().Err(err).Str("origin", origin).Msg("Could not fetch robots.txt, assuming allowed")
	}

	ce.robotsMu.Lock()
	ce.robotsCache[origin] = &robotsEntry{data: data, fetchedAt: time.Now()}
	ce.robotsMu.Unlock()
	return data
}

func (ce *ComplianceEngine) fetchRobots(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", ce.config.UserAgent)

	resp, err := ce.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, err
	}
	// 4xx allows all, 5xx disallows all
	return robotstxt.FromStatusAndBytes(resp.StatusCode, body)
}

func pathWithQuery(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

// matchDomain reports whether host equals or is a subdomain of any entry.
func matchDomain(host string, domains []string) bool {
	host = strings.ToLower(host)
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(d, "."))
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

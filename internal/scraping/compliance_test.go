package scraping

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func robotsServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fetches.Add(1)
			w.WriteHeader(status)
			fmt.Fprint(w, body)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &fetches
}

func TestComplianceEngine_Robots(t *testing.T) {
	srv, fetches := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private\nCrawl-delay: 2\n")
	ce := NewComplianceEngine(nil, srv.Client())
	ctx := context.Background()

	res, err := ce.CheckCompliance(ctx, srv.URL+"/private/page")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Restrictions, "Blocked by robots.txt")

	res, err = ce.CheckCompliance(ctx, srv.URL+"/public")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2*time.Second, res.CrawlDelay)

	assert.Equal(t, int32(1), fetches.Load(), "robots.txt is cached per origin")

	_, err = ce.Allow(ctx, srv.URL+"/private")
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestComplianceEngine_MissingRobotsAllows(t *testing.T) {
	srv, _ := robotsServer(t, http.StatusNotFound, "")
	ce := NewComplianceEngine(nil, srv.Client())

	delay, err := ce.Allow(context.Background(), srv.URL+"/anything")
	require.NoError(t, err)
	assert.Zero(t, delay)
}

func TestComplianceEngine_DomainLists(t *testing.T) {
	ce := NewComplianceEngine(&ComplianceConfig{AllowedDomains: []string{"ourworldindata.org"}}, nil)
	ctx := context.Background()

	res, err := ce.CheckCompliance(ctx, "https://example.com/x")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = ce.CheckCompliance(ctx, "https://www.ourworldindata.org/x")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	ce = NewComplianceEngine(&ComplianceConfig{DeniedDomains: []string{".statista.com"}}, nil)
	res, err = ce.CheckCompliance(ctx, "https://de.statista.com/chart")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Restrictions, "Domain is denied")
}

func TestMatchDomain(t *testing.T) {
	assert.True(t, matchDomain("OECD.org", []string{"oecd.org"}))
	assert.True(t, matchDomain("data.oecd.org", []string{"oecd.org"}))
	assert.False(t, matchDomain("notoecd.org", []string{"oecd.org"}))
}

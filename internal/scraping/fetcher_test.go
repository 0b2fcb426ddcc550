package scraping

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFetcherConfig() *FetcherConfig {
	return &FetcherConfig{UserAgent: "test-agent", Timeout: 5 * time.Second, Retries: 3, Backoff: time.Millisecond}
}

func TestFetcher_RetriesTransientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.UserAgent())
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	body, err := NewFetcher(testFetcherConfig(), nil).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetcher_GoneIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	_, err := NewFetcher(testFetcherConfig(), nil).Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, IsGone(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetcher_GivesUp(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := NewFetcher(testFetcherConfig(), nil)
	_, err := f.Get(context.Background(), srv.URL)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, int32(3), hits.Load())
	assert.False(t, IsGone(err))

	for _, st := range f.Stats() {
		assert.Equal(t, int64(3), st.RequestCount)
		assert.Equal(t, int64(3), st.ErrorCount)
	}
}

func TestFetcher_HostBackoffFromConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testFetcherConfig()
	cfg.Retries = 2
	cfg.HostErrorThreshold = 1
	cfg.HostBackoff = time.Hour
	cfg.HostMaxBackoff = 2 * time.Hour

	f := NewFetcher(cfg, nil)
	_, err := f.Get(context.Background(), srv.URL)
	require.Error(t, err)

	stats := f.Stats()
	require.Len(t, stats, 1)
	for _, st := range stats {
		assert.Equal(t, int64(2), st.ErrorCount)
		assert.True(t, st.InBackoff)
		assert.WithinDuration(t, time.Now().Add(2*time.Hour), st.BackoffUntil, time.Minute)
	}

	// the default threshold of 3 keeps the host available after two errors
	f = NewFetcher(testFetcherConfig(), nil)
	f.config.Retries = 2
	_, err = f.Get(context.Background(), srv.URL)
	require.Error(t, err)
	for _, st := range f.Stats() {
		assert.False(t, st.InBackoff)
	}
}

func TestFetcher_ComplianceDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL)
	}))
	defer srv.Close()

	ce := NewComplianceEngine(&ComplianceConfig{DeniedDomains: []string{"127.0.0.1"}}, nil)
	_, err := NewFetcher(testFetcherConfig(), ce).Get(context.Background(), srv.URL+"/page")
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestFetcher_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testFetcherConfig()
	cfg.Backoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewFetcher(cfg, nil).Get(ctx, srv.URL)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

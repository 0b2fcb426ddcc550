package ratelimit

import (
	"context"
	"sync"
	"time"
)

// HostLimiter spaces requests per host and backs off a host after repeated errors.
// Hosts are registered lazily with the default interval.
type HostLimiter struct {
	mu              sync.Mutex
	defaultInterval time.Duration
	errorThreshold  int64
	backoffStep     time.Duration
	maxBackoff      time.Duration
	hosts           map[string]*hostState
	now             func() time.Time
}

type hostState struct {
	minInterval     time.Duration
	lastRequestTime time.Time
	backoffUntil    time.Time
	requestCount    int64
	errorCount      int64
}

// HostStats contains statistics for a host
type HostStats struct {
	RequestCount    int64
	ErrorCount      int64
	LastRequestTime time.Time
	InBackoff       bool
	BackoffUntil    time.Time
}

// NewHostLimiter creates a limiter that waits at least interval between two
// requests to the same host.
func NewHostLimiter(interval time.Duration) *HostLimiter {
	return &HostLimiter{
		defaultInterval: interval,
		errorThreshold:  3,
		backoffStep:     30 * time.Second,
		maxBackoff:      5 * time.Minute,
		hosts:           make(map[string]*hostState),
		now:             time.Now,
	}
}

// SetInterval overrides the spacing for one host.
func (r *HostLimiter) SetInterval(host string, interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state(host).minInterval = interval
}

// SetBackoff tunes the error backoff: after threshold consecutive errors a host
// is paused for errorCount*step, capped at max.
func (r *HostLimiter) SetBackoff(threshold int64, step, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorThreshold = threshold
	r.backoffStep = step
	r.maxBackoff = max
}

func (r *HostLimiter) state(host string) *hostState {
	s, ok := r.hosts[host]
	if !ok {
		s = &hostState{minInterval: r.defaultInterval}
		r.hosts[host] = s
	}
	return s
}

// Wait blocks until it's safe to make a request to host.
func (r *HostLimiter) Wait(ctx context.Context, host string) error {
	for {
		r.mu.Lock()
		s := r.state(host)
		now := r.now()

		var wait time.Duration
		if now.Before(s.backoffUntil) {
			wait = s.backoffUntil.Sub(now)
		} else if since := now.Sub(s.lastRequestTime); since < s.minInterval {
			wait = s.minInterval - since
		}

		if wait <= 0 {
			// Reserve the slot before releasing the lock so concurrent callers queue up.
			s.lastRequestTime = now
			s.requestCount++
			r.mu.Unlock()
			return nil
		}
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// RecordError records an error and potentially triggers backoff
func (r *HostLimiter) RecordError(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.state(host)
	s.errorCount++

	if s.errorCount > r.errorThreshold {
		backoff := time.Duration(s.errorCount) * r.backoffStep
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
		s.backoffUntil = r.now().Add(backoff)
	}
}

// RecordSuccess resets the error count for a host
func (r *HostLimiter) RecordSuccess(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.hosts[host]; ok {
		s.errorCount = 0
	}
}

// GetStats returns statistics for all hosts seen so far
func (r *HostLimiter) GetStats() map[string]HostStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	stats := make(map[string]HostStats, len(r.hosts))
	for host, s := range r.hosts {
		stats[host] = HostStats{
			RequestCount:    s.requestCount,
			ErrorCount:      s.errorCount,
			LastRequestTime: s.lastRequestTime,
			InBackoff:       now.Before(s.backoffUntil),
			BackoffUntil:    s.backoffUntil,
		}
	}
	return stats
}

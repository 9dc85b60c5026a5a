// Package ratelimit paces outbound fetches with one token bucket per host,
// so a sweep never hammers a single tournament site no matter how many of
// its pages rank into the walk queue.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/refhq/sourcescout/internal/metrics"
)

// Config holds the per-host pacing knobs. RPS <= 0 disables pacing entirely.
type Config struct {
	RPS   float64
	Burst int
}

// Limiter hands out fetch tokens per host. Buckets are created lazily on
// first contact with a host and kept for the process lifetime.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	perHost rate.Limit
	burst   int
}

// New builds a Limiter from cfg.
func New(cfg Config) *Limiter {
	perHost := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		perHost = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		perHost: perHost,
		burst:   burst,
	}
}

// Wait blocks until the host behind rawURL has a token available, or the
// context ends. Waits above a millisecond are recorded per host.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := hostOf(rawURL)

	l.mu.Lock()
	bucket, ok := l.buckets[host]
	if !ok {
		bucket = rate.NewLimiter(l.perHost, l.burst)
		l.buckets[host] = bucket
	}
	l.mu.Unlock()

	start := time.Now()
	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("politeness wait for %s: %w", host, err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, waited)
	}
	return nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

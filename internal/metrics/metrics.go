// Package metrics exposes Prometheus collectors for the enrichment service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesFetchedTotal          *prometheus.CounterVec
	fetchErrorsTotal           *prometheus.CounterVec
	sweepRunsTotal             *prometheus.CounterVec
	candidatesStagedTotal      *prometheus.CounterVec
	reviewAppliesTotal         *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_pages_fetched_total",
				Help: "Total number of pages fetched during sweeps, labeled by site.",
			},
			[]string{"site"},
		)

		fetchErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_fetch_errors_total",
				Help: "Total number of classified fetch failures, labeled by error kind.",
			},
			[]string{"kind"},
		)

		sweepRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_sweep_runs_total",
				Help: "Total number of sweep runs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		candidatesStagedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_candidates_staged_total",
				Help: "Total number of candidates staged, labeled by kind.",
			},
			[]string{"kind"},
		)

		reviewAppliesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_review_applies_total",
				Help: "Total number of review apply calls, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scout_ratelimit_delay_seconds",
				Help:    "Time spent waiting on the per-host politeness limiter, labeled by host.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePageFetched counts one successful page fetch.
func ObservePageFetched(site string) {
	pagesFetchedTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveFetchError counts one classified fetch failure.
func ObserveFetchError(kind string) {
	fetchErrorsTotal.WithLabelValues(kind).Inc()
}

// ObserveSweepRun counts one finished sweep run.
func ObserveSweepRun(status string) {
	sweepRunsTotal.WithLabelValues(status).Inc()
}

// ObserveCandidatesStaged adds staged candidates for a kind.
func ObserveCandidatesStaged(kind string, n int) {
	if n > 0 {
		candidatesStagedTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveReviewApply counts one review apply call.
func ObserveReviewApply(outcome string) {
	reviewAppliesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records how long a fetch waited for a politeness token.
func ObserveRateLimitDelay(host string, d time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(SanitizeSite(host)).Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

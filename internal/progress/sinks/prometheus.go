package sinks

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/refhq/sourcescout/internal/progress"
)

var (
	sweepsStarted    prometheus.Counter
	sweepsCompleted  *prometheus.CounterVec
	sweepsRunning    prometheus.Gauge
	sweepRuntime     *prometheus.HistogramVec
	walkFetches      *prometheus.CounterVec
	walkBytes        *prometheus.CounterVec
	walkFetchLatency *prometheus.HistogramVec
	targetsProcessed *prometheus.CounterVec

	registerOnce sync.Once
)

func registerCollectors() {
	registerOnce.Do(func() {
		sweepsStarted = promauto.NewCounter(prometheus.CounterOpts{
			Name: "scout_sweeps_started_total",
			Help: "Sweep runs started.",
		})
		sweepsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_sweeps_completed_total",
			Help: "Sweep runs completed, labeled by result.",
		}, []string{"result"})
		sweepsRunning = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "scout_sweeps_running",
			Help: "Sweep runs currently in flight.",
		})
		sweepRuntime = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scout_sweep_runtime_seconds",
			Help:    "Wall time per completed sweep, labeled by result.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"result"})
		walkFetches = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_walk_fetches_total",
			Help: "Page fetches during walks, labeled by site and status class.",
		}, []string{"site", "status_class"})
		walkBytes = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_walk_bytes_total",
			Help: "Bytes downloaded during walks, labeled by site.",
		}, []string{"site"})
		walkFetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scout_walk_fetch_duration_seconds",
			Help:    "Fetch latency during walks, labeled by site and status class.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"site", "status_class"})
		targetsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_walk_targets_total",
			Help: "Targets finished during walks, labeled by site.",
		}, []string{"site"})
	})
}

// PrometheusSink projects the progress stream onto Prometheus collectors.
// The collectors are package-level so repeated sink construction (tests,
// restarts inside one process) never re-registers them.
type PrometheusSink struct {
	tracker *runTracker
}

// NewPrometheusSink registers the collectors on first use.
func NewPrometheusSink() *PrometheusSink {
	registerCollectors()
	return &PrometheusSink{tracker: newRunTracker()}
}

// Consume folds the batch into the collectors.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart, progress.StageRunDone, progress.StageRunError:
			s.runEvent(evt)
		case progress.StageFetchDone:
			fetchEvent(evt)
		case progress.StageTargetDone:
			targetsProcessed.WithLabelValues(siteLabel(evt.Site)).Inc()
		}
	}
	return nil
}

func (s *PrometheusSink) runEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		sweepsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			sweepsRunning.Inc()
		}
		return
	case progress.StageRunDone:
		sweepsCompleted.WithLabelValues("success").Inc()
		if evt.Dur > 0 {
			sweepRuntime.WithLabelValues("success").Observe(evt.Dur.Seconds())
		}
	case progress.StageRunError:
		sweepsCompleted.WithLabelValues("error").Inc()
		if evt.Dur > 0 {
			sweepRuntime.WithLabelValues("error").Observe(evt.Dur.Seconds())
		}
	}
	if s.tracker.finish(evt.RunID) {
		sweepsRunning.Dec()
	}
}

func fetchEvent(evt progress.Event) {
	site := siteLabel(evt.Site)
	class := string(evt.StatusClass)
	if class == "" {
		class = string(progress.StatusOther)
	}
	walkFetches.WithLabelValues(site, class).Inc()
	if evt.Bytes > 0 {
		walkBytes.WithLabelValues(site).Add(float64(evt.Bytes))
	}
	if evt.Dur > 0 {
		walkFetchLatency.WithLabelValues(site, class).Observe(evt.Dur.Seconds())
	}
}

func siteLabel(site string) string {
	if site == "" {
		return "unknown"
	}
	return site
}

// Close implements progress.Sink.
func (s *PrometheusSink) Close(context.Context) error { return nil }

// runTracker keeps the running gauge honest across duplicate or replayed
// lifecycle events for the same run.
type runTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[string]struct{})}
}

func (t *runTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) finish(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}

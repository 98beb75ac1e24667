package instrument

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/eventreduce/pkg/reactive"
)

// MetricsConfig configures the Prometheus engine hooks.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "eventreduce").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus engine hooks.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "eventreduce",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics records engine activity as Prometheus metrics.
// It implements reactive.Hooks.
//
// Metrics collected:
//   - eventreduce_notifications_total: subscriber notifications by cell kind
//   - eventreduce_invalidations_total: derivations marked dirty
//   - eventreduce_recomputes_total: formula runs by status
//   - eventreduce_recompute_duration_seconds: formula run duration
//   - eventreduce_cycles_total: cyclic dependencies detected
//   - eventreduce_reductions_total: events folded by reductions, by changed
//   - eventreduce_watcher_runs_total: watcher computations
//   - eventreduce_watcher_sources: cells read per watcher run
//   - eventreduce_watcher_invalidations_total: watcher callbacks fired
//   - eventreduce_reactions_total: reactions executed by scheduler flushes
//   - eventreduce_reaction_flush_duration_seconds: flush duration
//
// Example:
//
//	restore := reactive.SetHooks(instrument.NewMetrics(
//	    instrument.WithNamespace("myapp"),
//	))
//	defer restore()
//
//	http.Handle("/metrics", promhttp.Handler())
type Metrics struct {
	notifications         *prometheus.CounterVec
	invalidations         prometheus.Counter
	recomputes            *prometheus.CounterVec
	recomputeDuration     prometheus.Histogram
	cycles                prometheus.Counter
	reductions            *prometheus.CounterVec
	watcherRuns           prometheus.Counter
	watcherSources        prometheus.Histogram
	watcherInvalidations  prometheus.Counter
	reactions             prometheus.Counter
	reactionFlushDuration prometheus.Histogram
}

var _ reactive.Hooks = (*Metrics)(nil)

// NewMetrics registers the engine metrics and returns hooks updating them.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of subscriber notifications by cell kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		invalidations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "invalidations_total",
			Help:        "Total number of derivations marked dirty",
			ConstLabels: config.ConstLabels,
		}),

		recomputes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "recomputes_total",
			Help:        "Total number of derivation formula runs",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		recomputeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "recompute_duration_seconds",
			Help:        "Derivation formula run duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		cycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cycles_total",
			Help:        "Total number of cyclic dependencies detected",
			ConstLabels: config.ConstLabels,
		}),

		reductions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reductions_total",
			Help:        "Total number of events folded into reductions",
			ConstLabels: config.ConstLabels,
		}, []string{"changed"}),

		watcherRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "watcher_runs_total",
			Help:        "Total number of watcher computations",
			ConstLabels: config.ConstLabels,
		}),

		watcherSources: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "watcher_sources",
			Help:        "Number of cells read per watcher run",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),

		watcherInvalidations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "watcher_invalidations_total",
			Help:        "Total number of watcher callbacks fired",
			ConstLabels: config.ConstLabels,
		}),

		reactions: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reactions_total",
			Help:        "Total number of reactions executed by scheduler flushes",
			ConstLabels: config.ConstLabels,
		}),

		reactionFlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reaction_flush_duration_seconds",
			Help:        "Scheduler flush duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),
	}
}

// Notified implements reactive.Hooks.
func (m *Metrics) Notified(cell reactive.Observable, n int) {
	if n == 0 {
		return
	}
	m.notifications.WithLabelValues(cell.Kind().String()).Add(float64(n))
}

// Invalidated implements reactive.Hooks.
func (m *Metrics) Invalidated(reactive.Observable) {
	m.invalidations.Inc()
}

// Recomputed implements reactive.Hooks.
func (m *Metrics) Recomputed(_ reactive.Observable, _ time.Time, d time.Duration, err error) {
	m.recomputeDuration.Observe(d.Seconds())
	if err == nil {
		m.recomputes.WithLabelValues("success").Inc()
		return
	}
	m.recomputes.WithLabelValues("error").Inc()
	var ce *reactive.CyclicDependencyError
	// Only count the innermost frame of a cycle.
	if errors.As(err, &ce) && len(ce.Path) == 2 {
		m.cycles.Inc()
	}
}

// Reduced implements reactive.Hooks.
func (m *Metrics) Reduced(_ reactive.Observable, _ string, changed bool) {
	m.reductions.WithLabelValues(strconv.FormatBool(changed)).Inc()
}

// WatcherRun implements reactive.Hooks.
func (m *Metrics) WatcherRun(_ *reactive.Watcher, sources int, _ time.Time, _ time.Duration) {
	m.watcherRuns.Inc()
	m.watcherSources.Observe(float64(sources))
}

// WatcherInvalidated implements reactive.Hooks.
func (m *Metrics) WatcherInvalidated(*reactive.Watcher) {
	m.watcherInvalidations.Inc()
}

// ReactionsFlushed implements reactive.Hooks.
func (m *Metrics) ReactionsFlushed(n int, _ time.Time, d time.Duration) {
	m.reactions.Add(float64(n))
	m.reactionFlushDuration.Observe(d.Seconds())
}

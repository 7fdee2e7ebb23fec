package pages

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Navigation outcomes reported in metrics.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "toolsite").
	Namespace string

	// Subsystem is the metrics subsystem (default: "pages").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for render duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus collectors.
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
		Namespace: "toolsite",
		Subsystem: "pages",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the navigation collectors. A nil *Metrics records nothing.
type Metrics struct {
	navigations    *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	scrollResets   prometheus.Counter
	liveSessions   prometheus.Gauge
}

// NewMetrics creates and registers the collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	factory := promauto.With(cfg.Registry)

	return &Metrics{
		navigations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "navigations_total",
			Help:        "Total number of navigations dispatched, by view and outcome",
			ConstLabels: cfg.ConstLabels,
		}, []string{"view", "outcome"}),

		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "render_duration_seconds",
			Help:        "Time spent mounting and rendering a view",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"view"}),

		scrollResets: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "scroll_resets_total",
			Help:        "Total number of scroll resets issued",
			ConstLabels: cfg.ConstLabels,
		}),

		liveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "live_sessions",
			Help:        "Number of connected live navigation sessions",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

func (m *Metrics) observeNavigation(view, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.navigations.WithLabelValues(view, outcome).Inc()
	m.renderDuration.WithLabelValues(view).Observe(d.Seconds())
}

func (m *Metrics) observeScrollReset() {
	if m == nil {
		return
	}
	m.scrollResets.Inc()
}

func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.liveSessions.Inc()
}

func (m *Metrics) sessionClosed() {
	if m == nil {
		return
	}
	m.liveSessions.Dec()
}

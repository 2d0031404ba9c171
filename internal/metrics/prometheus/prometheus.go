package prometheus

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/slok/inflight/internal/model"
)

const namespace = "inflight"

// RecorderConfig is the configuration for the Prometheus outcome recorder.
type RecorderConfig struct {
	Registerer prometheus.Registerer
}

func (c *RecorderConfig) defaults() error {
	if c.Registerer == nil {
		c.Registerer = prometheus.DefaultRegisterer
	}
	return nil
}

// Recorder measures the outcomes of the finished units of work.
type Recorder struct {
	outcomes      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	retryAttempts *prometheus.HistogramVec
}

// NewRecorder returns a new Prometheus outcome recorder with its metrics registered.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := &Recorder{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Total number of finished units of work by terminal status.",
		}, []string{"kind", "category", "status"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outcome_duration_seconds",
			Help:      "Duration of the finished units of work in seconds.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"kind", "category"}),

		retryAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retry_attempts",
			Help:      "Attempts used by the finished retryable operations.",
			Buckets:   []float64{1, 2, 3, 4, 5, 7, 10},
		}, []string{"category", "status"}),
	}

	for _, c := range []prometheus.Collector{r.outcomes, r.duration, r.retryAttempts} {
		if err := cfg.Registerer.Register(c); err != nil {
			return nil, fmt.Errorf("could not register metrics: %w", err)
		}
	}

	return r, nil
}

// Record measures an outcome.
func (r *Recorder) Record(_ context.Context, o model.Outcome) error {
	kind := string(o.Kind)
	category := string(o.Category)

	r.outcomes.WithLabelValues(kind, category, o.Status).Inc()
	r.duration.WithLabelValues(kind, category).Observe(o.Duration().Seconds())
	if o.Kind == model.OutcomeKindRetry {
		r.retryAttempts.WithLabelValues(category, o.Status).Observe(float64(o.Attempts))
	}

	return nil
}

// OverlaySource returns the live operation overlay.
type OverlaySource interface {
	Overlay() model.OverlaySnapshot
}

// DashboardSource returns the live retry dashboard.
type DashboardSource interface {
	Dashboard() model.DashboardSnapshot
}

// StateCollector exposes the live state of the in-flight work as gauges, the values are
// read from the sources at scrape time.
type StateCollector struct {
	overlay   OverlaySource
	dashboard DashboardSource

	activeOperations *prometheus.Desc
	globalProgress   *prometheus.Desc
	pendingRetries   *prometheus.Desc
}

var _ prometheus.Collector = &StateCollector{}

// NewStateCollector returns a new live state collector, any of the sources can be nil.
func NewStateCollector(overlay OverlaySource, dashboard DashboardSource) *StateCollector {
	return &StateCollector{
		overlay:   overlay,
		dashboard: dashboard,

		activeOperations: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_operations"),
			"Number of active operations.",
			nil, nil,
		),
		globalProgress: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "global_progress"),
			"Aggregated progress percentage of the active operations.",
			nil, nil,
		),
		pendingRetries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "pending_retries"),
			"Number of pending retryable operations.",
			[]string{"category"}, nil,
		),
	}
}

func (c *StateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeOperations
	ch <- c.globalProgress
	ch <- c.pendingRetries
}

func (c *StateCollector) Collect(ch chan<- prometheus.Metric) {
	if c.overlay != nil {
		snap := c.overlay.Overlay()
		ch <- prometheus.MustNewConstMetric(c.activeOperations, prometheus.GaugeValue, float64(len(snap.Operations)))
		ch <- prometheus.MustNewConstMetric(c.globalProgress, prometheus.GaugeValue, snap.GlobalProgress)
	}

	if c.dashboard != nil {
		stats := c.dashboard.Dashboard().Stats
		for _, cat := range model.Categories() {
			ch <- prometheus.MustNewConstMetric(c.pendingRetries, prometheus.GaugeValue, float64(stats.CategoryStats[cat]), string(cat))
		}
	}
}

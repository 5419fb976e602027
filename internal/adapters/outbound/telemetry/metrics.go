// Package telemetry carries the run's metrics and trace exporters.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vibeheal"

// Recorder implements domain.FixRecorder on a private Prometheus registry.
// A CLI run is short-lived, so metrics are written to a textfile for the
// node exporter instead of being scraped.
type Recorder struct {
	registry   *prometheus.Registry
	fixes      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	commits    prometheus.Counter
	iterations prometheus.Counter
	remaining  prometheus.Gauge
}

// NewRecorder registers the fix metrics. tool is attached as a constant label.
func NewRecorder(tool string) *Recorder {
	labels := prometheus.Labels{"tool": tool}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fixes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "fix",
				Name:        "attempts_total",
				Help:        "Fix attempts by outcome",
				ConstLabels: labels,
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "fix",
				Name:        "duration_seconds",
				Help:        "Duration of single fix attempts",
				ConstLabels: labels,
				Buckets:     prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5m
			},
			[]string{"outcome"},
		),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "fix",
			Name:        "commits_total",
			Help:        "Commits created for successful fixes",
			ConstLabels: labels,
		}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "cleanup",
			Name:        "iterations_total",
			Help:        "Cleanup loop iterations run",
			ConstLabels: labels,
		}),
		remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "cleanup",
			Name:        "issues_observed",
			Help:        "Fixable issues seen by the latest cleanup analysis",
			ConstLabels: labels,
		}),
	}
	r.registry.MustRegister(r.fixes, r.duration, r.commits, r.iterations, r.remaining)
	return r
}

func (r *Recorder) ObserveFix(outcome string, d time.Duration) {
	r.fixes.WithLabelValues(outcome).Inc()
	r.duration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (r *Recorder) ObserveCommit() { r.commits.Inc() }

func (r *Recorder) ObserveIteration(observed int) {
	r.iterations.Inc()
	r.remaining.Set(float64(observed))
}

// Registry exposes the underlying registry for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteTextfile writes the metrics in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

// Package metrics holds the Prometheus collectors recorded by the fetcher and
// the worker pool. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pricebench"

// Metrics groups every collector the benchmark records.
type Metrics struct {
	LookupDuration *prometheus.HistogramVec
	LookupFailures *prometheus.CounterVec
	PoolActive     prometheus.Gauge
	PoolQueued     prometheus.Gauge
	PoolTasks      prometheus.Counter
}

// New registers the collectors with reg. Passing a fresh registry per run
// keeps runs independent.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LookupDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "Time taken by a single provider price lookup.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 1.5, 2, 5},
		}, []string{"strategy", "provider"}),
		LookupFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_failures_total",
			Help:      "Provider price lookups that failed.",
		}, []string{"strategy", "provider"}),
		PoolActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "active_workers",
			Help:      "Workers currently running a task.",
		}),
		PoolQueued: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "queued_tasks",
			Help:      "Tasks waiting for a free worker.",
		}),
		PoolTasks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_total",
			Help:      "Tasks executed by the pool.",
		}),
	}
}

// ObserveLookup records one lookup for strategy and provider.
func (m *Metrics) ObserveLookup(strategy, provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.LookupDuration.WithLabelValues(strategy, provider).Observe(d.Seconds())
	if err != nil {
		m.LookupFailures.WithLabelValues(strategy, provider).Inc()
	}
}

// TaskQueued records a task entering the pool queue.
func (m *Metrics) TaskQueued() {
	if m == nil {
		return
	}
	m.PoolQueued.Inc()
}

// TaskStarted moves a task from the queue to a worker.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.PoolQueued.Dec()
	m.PoolActive.Inc()
}

// TaskFinished records a worker becoming free.
func (m *Metrics) TaskFinished() {
	if m == nil {
		return
	}
	m.PoolActive.Dec()
	m.PoolTasks.Inc()
}

package lp

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"
)

// Metrics holds the solver collectors. Create one per registry.
type Metrics struct {
	solves   *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     *prometheus.GaugeVec
}

// NewMetrics creates the solver collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optiplan",
			Name:      "solves_total",
			Help:      "Completed solves by backend and solution status.",
		}, []string{"backend", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optiplan",
			Name:      "solve_failures_total",
			Help:      "Solves that returned an error instead of a solution.",
		}, []string{"backend"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "optiplan",
			Name:      "solve_duration_seconds",
			Help:      "Wall-clock time of a single solve.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"backend"}),
		size: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "optiplan",
			Name:      "model_size",
			Help:      "Size of the last model solved, by model name and dimension.",
		}, []string{"model", "dimension"}),
	}
	reg.MustRegister(m.solves, m.failures, m.duration, m.size)
	return m
}

// Instrument wraps s so that every solve is counted, timed and logged.
func (m *Metrics) Instrument(s Solver) Solver {
	return &instrumented{next: s, metrics: m}
}

type instrumented struct {
	next    Solver
	metrics *Metrics
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Solve(ctx context.Context, model *Model) (*Solution, error) {
	backend := i.next.Name()
	i.metrics.size.WithLabelValues(model.Name, "columns").Set(float64(model.NumVars()))
	i.metrics.size.WithLabelValues(model.Name, "rows").Set(float64(model.NumConstraints()))

	start := time.Now()
	sol, err := i.next.Solve(ctx, model)
	elapsed := time.Since(start)
	i.metrics.duration.WithLabelValues(backend).Observe(elapsed.Seconds())

	if err != nil {
		i.metrics.failures.WithLabelValues(backend).Inc()
		klog.ErrorS(err, "Solve failed", "backend", backend, "model", model.Name)
		return nil, err
	}
	i.metrics.solves.WithLabelValues(backend, sol.Status.String()).Inc()
	klog.V(2).InfoS("Solve finished", "backend", backend, "model", model.Name,
		"status", sol.Status, "objective", sol.Objective, "relaxed", sol.Relaxed, "elapsed", elapsed)
	return sol, nil
}

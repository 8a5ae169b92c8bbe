// Package observability exposes Prometheus metrics for moderation runs.
package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/debemdeboas/locs-review/internal/workflow"
)

// Collector bundles the moderation metrics. It satisfies workflow.Recorder
// and lets the queue report its size.
type Collector struct {
	gatherer prometheus.Gatherer

	Steps    *prometheus.CounterVec
	Runs     *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Pending  prometheus.Gauge
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil. Registering twice returns the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	steps, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_steps_total",
		Help: "Workflow steps by action, step and outcome.",
	}, []string{"action", "step", "outcome"}), "moderation_steps_total")
	if err != nil {
		return nil, err
	}

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_runs_total",
		Help: "Finished approve/reject invocations by action and result.",
	}, []string{"action", "result"}), "moderation_runs_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moderation_run_duration_seconds",
		Help:    "Approve/reject latency in seconds.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"action"}), "moderation_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	pending, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "moderation_queue_pending",
		Help: "Items currently held by the moderation queue.",
	}), "moderation_queue_pending")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer: gatherer,
		Steps:    steps,
		Runs:     runs,
		Duration: duration,
		Pending:  pending,
	}, nil
}

func (c *Collector) StepDone(action workflow.Action, step workflow.Step, outcome workflow.Outcome) {
	if c == nil {
		return
	}
	c.Steps.WithLabelValues(string(action), string(step), outcome.String()).Inc()
}

func (c *Collector) RunDone(action workflow.Action, err error, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Runs.WithLabelValues(string(action), Result(err)).Inc()
	c.Duration.WithLabelValues(string(action)).Observe(elapsed.Seconds())
}

// SetPending records the queue length.
func (c *Collector) SetPending(n int) {
	if c == nil {
		return
	}
	c.Pending.Set(float64(n))
}

func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Result maps a workflow error onto a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case workflow.IsValidation(err):
		return "invalid"
	case errors.Is(err, workflow.ErrInconsistentState):
		return "inconsistent_state"
	case errors.Is(err, workflow.ErrCleanupIncomplete):
		return "cleanup_incomplete"
	default:
		return "error"
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

// Package metrics provides engine-level metrics recording: attempts,
// validation layers, tool executions, and run outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives engine lifecycle observations. Implementations must be
// safe for concurrent use; the engine calls them from every execution.
type Recorder interface {
	// ObserveAttempt records one completed attempt and whether it passed validation.
	ObserveAttempt(agent string, attempt int, success bool)
	// ObserveValidationLayer records the outcome of one validation stage.
	ObserveValidationLayer(agent, layer, kind string, success bool)
	// ObserveToolExecution records one dispatched tool call.
	ObserveToolExecution(agent, tool string, isError bool, duration time.Duration)
	// ObserveRun records a finished execution with its terminal outcome
	// (success, exhausted, cancelled, projection_failed).
	ObserveRun(agent, outcome string, attempts int, duration time.Duration)
}

// NoopRecorder discards all observations.
type NoopRecorder struct{}

// Nop returns a recorder that discards all observations.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveAttempt does nothing.
func (n *NoopRecorder) ObserveAttempt(_ string, _ int, _ bool) {}

// ObserveValidationLayer does nothing.
func (n *NoopRecorder) ObserveValidationLayer(_, _, _ string, _ bool) {}

// ObserveToolExecution does nothing.
func (n *NoopRecorder) ObserveToolExecution(_, _ string, _ bool, _ time.Duration) {}

// ObserveRun does nothing.
func (n *NoopRecorder) ObserveRun(_, _ string, _ int, _ time.Duration) {}

// PrometheusRecorder implements Recorder with Prometheus metrics.
type PrometheusRecorder struct {
	attemptsTotal   *prometheus.CounterVec
	validationTotal *prometheus.CounterVec
	toolTotal       *prometheus.CounterVec
	toolDuration    *prometheus.HistogramVec
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	attemptsPerRun  *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a Prometheus recorder registered against reg.
// Passing nil uses the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_attempts_total",
				Help: "Total attempts by agent and validation outcome",
			},
			[]string{"agent", "status"},
		),
		validationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_validation_layers_total",
				Help: "Validation layer outcomes by agent, layer, and kind",
			},
			[]string{"agent", "layer", "kind", "status"},
		),
		toolTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_tool_executions_total",
				Help: "Tool executions by agent, tool, and outcome",
			},
			[]string{"agent", "tool", "status"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_tool_duration_seconds",
				Help:    "Duration of tool handler executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent", "tool"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_runs_total",
				Help: "Finished executions by agent and terminal outcome",
			},
			[]string{"agent", "outcome"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_run_duration_seconds",
				Help:    "Duration of executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent"},
		),
		attemptsPerRun: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_attempts_per_run",
				Help:    "Attempts consumed per finished execution",
				Buckets: []float64{1, 2, 3, 4, 5, 7, 10},
			},
			[]string{"agent"},
		),
	}
}

// ObserveAttempt records one completed attempt.
func (p *PrometheusRecorder) ObserveAttempt(agent string, _ int, success bool) {
	p.attemptsTotal.WithLabelValues(agent, statusLabel(success)).Inc()
}

// ObserveValidationLayer records the outcome of one validation stage.
func (p *PrometheusRecorder) ObserveValidationLayer(agent, layer, kind string, success bool) {
	p.validationTotal.WithLabelValues(agent, layer, kind, statusLabel(success)).Inc()
}

// ObserveToolExecution records one dispatched tool call.
func (p *PrometheusRecorder) ObserveToolExecution(agent, tool string, isError bool, duration time.Duration) {
	p.toolTotal.WithLabelValues(agent, tool, statusLabel(!isError)).Inc()
	p.toolDuration.WithLabelValues(agent, tool).Observe(duration.Seconds())
}

// ObserveRun records a finished execution.
func (p *PrometheusRecorder) ObserveRun(agent, outcome string, attempts int, duration time.Duration) {
	p.runsTotal.WithLabelValues(agent, outcome).Inc()
	p.runDuration.WithLabelValues(agent).Observe(duration.Seconds())
	p.attemptsPerRun.WithLabelValues(agent).Observe(float64(attempts))
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// Package metrics provides metrics recording for model client operations.
package metrics

import (
	"time"
)

// RunProvider provides access to execution identity for metrics labeling.
type RunProvider interface {
	// GetRunID returns the current run identifier.
	GetRunID() string
	// GetAgentName returns the name of the executing agent definition.
	GetAgentName() string
}

// Recorder defines the interface for recording model request metrics.
type Recorder interface {
	// ObserveRequest records metrics for a completed model request.
	ObserveRequest(
		model, runID, agent string,
		promptTokens, completionTokens int,
		cost float64,
		success bool,
		errorType string,
		duration time.Duration,
	)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveRequest does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveRequest(
	_, _, _ string,
	_, _ int,
	_ float64,
	_ bool,
	_ string,
	_ time.Duration,
) {
	// No-op
}

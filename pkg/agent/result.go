package agent

import (
	"time"

	"agentexec/pkg/agent/agenterrors"
	"agentexec/pkg/llm"
)

// ValidationLayerOutcome describes one validation stage for observability.
// It does not persist beyond the metadata of the call that produced it.
type ValidationLayerOutcome struct {
	// Name is the layer name: "schema" for the schema layer, otherwise the
	// validator's declared name.
	Name string `json:"name"`
	// Kind is "schema" or "custom".
	Kind string `json:"kind"`
	// Success reports whether the layer passed.
	Success bool `json:"success"`
	// Error holds the failure message when Success is false.
	Error string `json:"error,omitempty"`
}

// Layer kinds.
const (
	LayerKindSchema = "schema"
	LayerKindCustom = "custom"
)

// Metadata accumulates observability data for one execution call. It travels
// with both success and failure results.
type Metadata struct {
	// RunID uniquely identifies this execution call.
	RunID string `json:"run_id"`
	// StartTime is when Execute was entered.
	StartTime time.Time `json:"start_time"`
	// Duration is total wall time of the call.
	Duration time.Duration `json:"duration"`
	// ModelCalls counts backend completions made.
	ModelCalls int `json:"model_calls"`
	// Usage accumulates token counts across all backend calls.
	Usage llm.Usage `json:"usage"`
	// ValidationLayers holds the layer outcomes of the final attempt.
	ValidationLayers []ValidationLayerOutcome `json:"validation_layers,omitempty"`
	// CallbackErrors records panics recovered from caller-supplied callbacks.
	CallbackErrors []string `json:"callback_errors,omitempty"`
}

// ExecutionResult is the success value of Execute.
type ExecutionResult[R, A any] struct {
	// Output is the validated candidate payload from the output tool.
	Output map[string]any
	// Attempts is the attempt number that succeeded.
	Attempts int
	// Metadata carries run observability data.
	Metadata Metadata
	// StateProjection is the value computed by the definition's projection
	// function, when one is configured.
	StateProjection any
	// FinalState is the terminal state triple.
	FinalState State[R, A]
}

// ExecutionError is the failure value of Execute.
type ExecutionError struct {
	// Errors holds the terminal engine errors (usually one).
	Errors []*agenterrors.Error
	// Metadata carries run observability data up to the failure.
	Metadata Metadata
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if len(e.Errors) == 0 {
		return "execution failed"
	}
	return e.Errors[0].Error()
}

// Unwrap exposes the first underlying engine error.
func (e *ExecutionError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[0]
}

// Has reports whether the failure contains an error of the given kind.
func (e *ExecutionError) Has(kind agenterrors.Kind) bool {
	for _, err := range e.Errors {
		if err.Kind == kind {
			return true
		}
	}
	return false
}

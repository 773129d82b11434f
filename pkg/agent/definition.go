// Package agent implements the execution engine: definition validation and
// freezing, three-tier execution state, reducer-style tool dispatch, and the
// bounded retry/validation loop that drives a model backend until a valid
// output is produced or attempts are exhausted.
//
// Type parameters R and A are the caller's run state and attempt state. Run
// state persists across retry attempts within one execution; attempt state is
// recomputed at the start of every attempt. Both must be JSON-serializable:
// snapshots handed to tool handlers are isolated by JSON round-trip, so
// unexported fields or non-JSON types would silently be dropped.
package agent

import (
	"context"

	"agentexec/pkg/metrics"
	"agentexec/pkg/tools"
)

// ExecutionContext carries framework-owned, read-only counters. Handlers and
// prompt functions receive it by value and cannot affect the engine's copy.
type ExecutionContext struct {
	// Attempt is the current attempt number, 1-based. Zero before the first
	// attempt starts.
	Attempt int `json:"attempt"`
	// MaxAttempts is the configured attempt budget for this execution.
	MaxAttempts int `json:"max_attempts"`
	// Iteration is the current tool-calling iteration within the attempt, 1-based.
	Iteration int `json:"iteration"`
}

// State is the snapshot handed to tool handlers: both user state tiers plus
// the read-only context.
type State[R, A any] struct {
	Run     R
	Attempt A
	Context ExecutionContext
}

// Reduction is the only channel by which a tool handler affects subsequent
// state: the returned run/attempt pair becomes the state for the next tool
// call, and ToolResult is surfaced to the model.
type Reduction[R, A any] struct {
	Run        R
	Attempt    A
	ToolResult string
}

// HelperToolHandler transforms state in response to a schema-valid tool call.
// Handlers must be pure with respect to external I/O and must not retain the
// snapshot they are given; a returned error becomes tool-result feedback for
// the model, never a terminal failure.
type HelperToolHandler[R, A any] func(st State[R, A], input map[string]any) (*Reduction[R, A], error)

// HelperTool declares a model-invocable operation with a schema-validated
// input and a reducer handler.
type HelperTool[R, A any] struct {
	Name        string
	Description string
	InputSchema tools.InputSchema
	Handler     HelperToolHandler[R, A]
}

// ReflectionHandler optionally gates the output tool. On success the returned
// preview text goes back to the model as a tool result; on error the message
// goes back as correction feedback. Either way the sub-loop continues.
type ReflectionHandler func(candidate map[string]any) (string, error)

// OutputTool declares the tool whose payload is the candidate final result.
type OutputTool struct {
	Name        string
	Description string
	Reflection  ReflectionHandler
}

// SystemPromptFunc produces the system prompt for an attempt.
type SystemPromptFunc func(ctx context.Context, input any, ec ExecutionContext) (string, error)

// UserPromptFunc produces the user prompt; computed once on the first attempt
// and preserved verbatim in the conversation history.
type UserPromptFunc func(ctx context.Context, input any) (string, error)

// ErrorPromptFunc produces the retry feedback prompt from the failing
// validation error.
type ErrorPromptFunc func(ctx context.Context, validationErr string, ec ExecutionContext) (string, error)

// Prompts groups the prompt-generating functions. System and User are
// required; a nil Error falls back to a built-in feedback template.
type Prompts struct {
	System SystemPromptFunc
	User   UserPromptFunc
	Error  ErrorPromptFunc
}

// ModelConfig holds the model parameters for backend calls.
type ModelConfig struct {
	Name        string
	MaxTokens   int
	Temperature float32
}

// CustomValidator is one named stage in the validation pipeline. Validators
// run in declared order after the schema layer; the first failure
// short-circuits the rest.
type CustomValidator struct {
	Name     string
	Validate func(output map[string]any) error
}

// Validation configures the output validation pipeline and the loop bounds.
type Validation struct {
	// OutputSchema is a JSON Schema document (any JSON-shaped value) the
	// candidate output must satisfy. Required.
	OutputSchema any
	// Validators run in order after the schema layer.
	Validators []CustomValidator
	// MaxAttempts bounds the retry loop. Must be >= 1.
	MaxAttempts int
	// MaxToolIterations bounds the tool-calling sub-loop per attempt.
	// Zero means the engine default.
	MaxToolIterations int
}

// Observability configures optional logging and metrics. Neither affects
// control flow.
type Observability struct {
	// Verbose enables debug logging of prompts and state transitions.
	Verbose bool
	// Metrics receives engine lifecycle observations; nil disables recording.
	Metrics metrics.Recorder
}

// InitRunFunc computes the initial run state from the execution input.
type InitRunFunc[R any] func(input any) R

// InitAttemptFunc computes the attempt state at the start of every attempt
// from the input, the current run state, and the updated context. It must be
// deterministic: the same inputs always produce the same initial state.
type InitAttemptFunc[R, A any] func(input any, run R, ec ExecutionContext) A

// ProjectFunc computes an externally-visible value from terminal state.
type ProjectFunc[R, A any] func(st State[R, A]) (any, error)

// Definition is the declarative agent configuration handed to Define. The
// caller's copy is never retained: Define deep-copies everything it needs, so
// later mutation of a Definition cannot affect a validated Agent.
type Definition[R, A any] struct {
	Name        string
	Description string
	Model       ModelConfig
	Prompts     Prompts
	OutputTool  OutputTool
	HelperTools []HelperTool[R, A]
	Validation  Validation
	Observe     Observability

	// InitRun computes initial run state; nil leaves the zero value.
	InitRun InitRunFunc[R]
	// InitAttempt computes attempt state at each attempt start; nil leaves
	// the zero value.
	InitAttempt InitAttemptFunc[R, A]
	// Project computes the final state projection; nil skips projection.
	Project ProjectFunc[R, A]
}

package agent

import (
	"fmt"
)

// Callbacks is the optional observability surface for one execution call.
// All callbacks are synchronous and fire-and-forget: a panic inside any of
// them is recovered, recorded into Metadata.CallbackErrors, and never
// interrupts execution. Cancellation fires neither OnSuccess nor OnFailure.
type Callbacks struct {
	// OnAttemptStart fires at the start of each attempt.
	OnAttemptStart func(attempt, maxAttempts int)
	// OnValidationFailure fires when an attempt's candidate fails validation.
	OnValidationFailure func(attempt int, layer ValidationLayerOutcome)
	// OnValidationLayerStart fires before each validation stage runs.
	OnValidationLayerStart func(name, kind string)
	// OnValidationLayerComplete fires after each validation stage.
	OnValidationLayerComplete func(outcome ValidationLayerOutcome)
	// OnToolCall fires before a tool call is dispatched.
	OnToolCall func(name string, input map[string]any)
	// OnToolResult fires after a tool call resolves.
	OnToolResult func(name, result string, isError bool)
	// OnSuccess fires once when validation passes.
	OnSuccess func(output map[string]any, attempts int)
	// OnFailure fires once on terminal failure (exhaustion or projection failure).
	OnFailure func(errs []error)
}

// fire runs fn, recovering any panic into the metadata. A nil fn is a no-op.
func fire(meta *Metadata, name string, fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			meta.CallbackErrors = append(meta.CallbackErrors,
				fmt.Sprintf("%s: %v", name, r))
		}
	}()
	fn()
}

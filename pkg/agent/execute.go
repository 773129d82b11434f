package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agentexec/pkg/agent/agenterrors"
	"agentexec/pkg/contextmgr"
	"agentexec/pkg/llm"
	"agentexec/pkg/llm/llmerrors"
	"agentexec/pkg/tools"
)

// Phases tag where in the attempt lifecycle a cancellation was observed.
const (
	PhasePromptGeneration = "prompt_generation"
	PhaseCompletion       = "completion"
	PhaseIteration        = "iteration"
	PhaseErrorFeedback    = "error_feedback"
)

// Run outcomes for metrics.
const (
	outcomeSuccess          = "success"
	outcomeExhausted        = "exhausted"
	outcomeCancelled        = "cancelled"
	outcomeProjectionFailed = "projection_failed"
)

// ExecuteOptions parameterizes one execution call.
type ExecuteOptions struct {
	// Input is the opaque execution input passed to prompt functions and
	// state initializers.
	Input any
	// Client is the backend the engine drives. Required.
	Client llm.Client
	// MaxAttemptsOverride replaces the definition's attempt budget for this
	// call when > 0.
	MaxAttemptsOverride int
	// Callbacks optionally observes lifecycle events for this call.
	Callbacks *Callbacks
}

// Execute runs the agent against a backend until a candidate output passes
// validation, the attempt budget is exhausted, or ctx is cancelled. A failed
// run returns a *ExecutionError; errors of other types indicate caller misuse
// or a non-serializable state value.
//
// Execute holds no state on the Agent itself, so one Agent may serve any
// number of concurrent calls.
func (a *Agent[R, A]) Execute(ctx context.Context, opts ExecuteOptions) (*ExecutionResult[R, A], error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("agent %s: execute requires a backend client", a.name)
	}

	maxAttempts := a.validation.MaxAttempts
	if opts.MaxAttemptsOverride > 0 {
		maxAttempts = opts.MaxAttemptsOverride
	}

	meta := Metadata{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}
	cbs := opts.Callbacks

	// An already-signalled context never reaches the backend.
	if err := ctx.Err(); err != nil {
		return nil, a.cancelled(&meta, 0, PhasePromptGeneration, err)
	}

	st := a.newRunState(opts.Input, maxAttempts)
	cm := contextmgr.NewContextManager()

	for st.ec.Attempt < maxAttempts {
		if err := a.beginAttempt(st, opts.Input); err != nil {
			return nil, err
		}
		attempt := st.ec.Attempt
		a.logger.Debug("attempt %d/%d starting", attempt, maxAttempts)

		if cbs != nil {
			fire(&meta, "OnAttemptStart", func() {
				if cbs.OnAttemptStart != nil {
					cbs.OnAttemptStart(attempt, maxAttempts)
				}
			})
		}

		if err := ctx.Err(); err != nil {
			return nil, a.cancelled(&meta, attempt, PhasePromptGeneration, err)
		}

		// The system prompt is rebuilt every attempt and rides out-of-band
		// of the transcript, so prompt functions see the current context.
		systemPrompt, err := a.buildSystemPrompt(ctx, opts.Input, st.ec)
		if err != nil {
			return nil, err
		}

		// The conversation itself is monotonic: the user prompt enters once,
		// every later attempt appends to the same transcript.
		if attempt == 1 {
			if err := a.seedConversation(ctx, cm, opts.Input); err != nil {
				return nil, err
			}
		}

		candidate, failure, err := a.runToolLoop(ctx, st, cm, systemPrompt, opts.Client, cbs, &meta)
		if err != nil {
			return nil, err
		}

		if candidate != nil {
			layers, failedLayer := a.validate(candidate, cbs, &meta)
			meta.ValidationLayers = layers

			if failedLayer == nil {
				a.metrics.ObserveAttempt(a.name, attempt, true)
				return a.succeed(st, candidate, attempt, &meta, cbs)
			}

			if cbs != nil {
				fl := *failedLayer
				fire(&meta, "OnValidationFailure", func() {
					if cbs.OnValidationFailure != nil {
						cbs.OnValidationFailure(attempt, fl)
					}
				})
			}
			failure = fmt.Sprintf("validation layer %q failed: %s", failedLayer.Name, failedLayer.Error)
		}

		a.metrics.ObserveAttempt(a.name, attempt, false)
		a.logger.Debug("attempt %d failed: %s", attempt, failure)

		if attempt >= maxAttempts {
			return nil, a.exhausted(&meta, attempt, maxAttempts, failure, cbs)
		}

		if err := ctx.Err(); err != nil {
			return nil, a.cancelled(&meta, attempt, PhaseErrorFeedback, err)
		}
		feedback, err := a.errorFeedback(ctx, failure, st.ec)
		if err != nil {
			return nil, err
		}
		cm.AddUserMessage(feedback)
	}

	// Unreachable with maxAttempts >= 1, which Define guarantees.
	return nil, a.exhausted(&meta, st.ec.Attempt, maxAttempts, "no attempts were made", cbs)
}

// buildSystemPrompt regenerates the system prompt for the current attempt.
func (a *Agent[R, A]) buildSystemPrompt(ctx context.Context, input any, ec ExecutionContext) (string, error) {
	if a.prompts.System == nil {
		return "", nil
	}
	system, err := a.prompts.System(ctx, input, ec)
	if err != nil {
		return "", fmt.Errorf("system prompt: %w", err)
	}
	return system, nil
}

// seedConversation computes the user prompt and installs it as the first
// conversation turn.
func (a *Agent[R, A]) seedConversation(ctx context.Context, cm *contextmgr.ContextManager, input any) error {
	if a.prompts.User == nil {
		return fmt.Errorf("agent %s: a user prompt function is required", a.name)
	}
	user, err := a.prompts.User(ctx, input)
	if err != nil {
		return fmt.Errorf("user prompt: %w", err)
	}
	cm.AddUserMessage(user)
	if a.observe.Verbose {
		a.logger.Info("conversation seeded: %d messages, %d tokens", cm.Len(), cm.CountTokens())
	}
	return nil
}

// runToolLoop drives the bounded tool-calling sub-loop for one attempt.
// It returns the recorded candidate output (nil if none) and, when the
// attempt failed without a candidate, the failure text for retry feedback.
// The error return is terminal: cancellation, a non-retryable backend error,
// or an engine fault.
func (a *Agent[R, A]) runToolLoop(ctx context.Context, st *runState[R, A], cm *contextmgr.ContextManager, systemPrompt string, client llm.Client, cbs *Callbacks, meta *Metadata) (candidate map[string]any, failure string, err error) {
	maxIterations := a.validation.MaxToolIterations

	for iter := 1; iter <= maxIterations; iter++ {
		st.ec.Iteration = iter

		phase := PhaseIteration
		if iter == 1 {
			phase = PhaseCompletion
		}
		if cerr := ctx.Err(); cerr != nil {
			return nil, "", a.cancelled(meta, st.ec.Attempt, phase, cerr)
		}

		msgs := cm.Messages()
		if systemPrompt != "" {
			msgs = append([]llm.CompletionMessage{llm.NewSystemMessage(systemPrompt)}, msgs...)
		}
		req := llm.CompletionRequest{
			Messages:    msgs,
			Tools:       a.toolDefs,
			ToolChoice:  llm.ToolChoiceAuto,
			MaxTokens:   a.model.MaxTokens,
			Temperature: a.model.Temperature,
		}

		meta.ModelCalls++
		resp, cerr := client.Complete(ctx, req)
		if cerr != nil {
			if ctx.Err() != nil {
				return nil, "", a.cancelled(meta, st.ec.Attempt, phase, ctx.Err())
			}
			// Transport failures are the client's business (adapters and
			// middleware classify them); the retry budget covers invalid
			// output, not broken backends.
			return nil, "", fmt.Errorf("backend call failed (%s): %w",
				llmerrors.TypeOf(cerr), cerr)
		}
		meta.Usage.InputTokens += resp.Usage.InputTokens
		meta.Usage.OutputTokens += resp.Usage.OutputTokens

		cm.AddAssistantMessage(resp.Content, resp.ToolCalls)

		if len(resp.ToolCalls) == 0 {
			if candidate != nil {
				// Conversation wound down after a reflected candidate.
				return candidate, "", nil
			}
			return nil, fmt.Sprintf("the model responded without calling any tool; the output tool %q was not called", a.output.Name), nil
		}

		out, derr := a.dispatchToolCalls(st, resp.ToolCalls, cbs, meta)
		if derr != nil {
			return nil, "", derr
		}
		if len(out.results) > 0 {
			cm.AddToolResults(out.results)
		}
		if out.candidate != nil {
			candidate = out.candidate
		}
		if out.terminal {
			return candidate, "", nil
		}
	}

	if candidate != nil {
		return candidate, "", nil
	}
	return nil, fmt.Sprintf("the tool iteration limit (%d) was reached before the output tool %q was called", maxIterations, a.output.Name), nil
}

// validate runs the candidate through the schema layer and then each custom
// validator in declared order, short-circuiting at the first failure.
func (a *Agent[R, A]) validate(candidate map[string]any, cbs *Callbacks, meta *Metadata) (layers []ValidationLayerOutcome, failed *ValidationLayerOutcome) {
	runLayer := func(name, kind string, check func() error) *ValidationLayerOutcome {
		if cbs != nil {
			fire(meta, "OnValidationLayerStart", func() {
				if cbs.OnValidationLayerStart != nil {
					cbs.OnValidationLayerStart(name, kind)
				}
			})
		}
		outcome := ValidationLayerOutcome{Name: name, Kind: kind, Success: true}
		if err := check(); err != nil {
			outcome.Success = false
			outcome.Error = err.Error()
		}
		a.metrics.ObserveValidationLayer(a.name, name, kind, outcome.Success)
		if cbs != nil {
			oc := outcome
			fire(meta, "OnValidationLayerComplete", func() {
				if cbs.OnValidationLayerComplete != nil {
					cbs.OnValidationLayerComplete(oc)
				}
			})
		}
		layers = append(layers, outcome)
		if !outcome.Success {
			return &layers[len(layers)-1]
		}
		return nil
	}

	if f := runLayer(LayerKindSchema, LayerKindSchema, func() error {
		return tools.ValidatePayload(a.outputSchema, candidate)
	}); f != nil {
		return layers, f
	}

	for _, v := range a.validation.Validators {
		v := v
		if f := runLayer(v.Name, LayerKindCustom, func() error {
			return v.Validate(candidate)
		}); f != nil {
			return layers, f
		}
	}
	return layers, nil
}

// succeed finalizes a validated run: projection, callbacks, metrics.
func (a *Agent[R, A]) succeed(st *runState[R, A], candidate map[string]any, attempt int, meta *Metadata, cbs *Callbacks) (*ExecutionResult[R, A], error) {
	final, err := st.snapshot()
	if err != nil {
		return nil, err
	}

	var projection any
	if a.project != nil {
		projection, err = a.runProjection(final)
		if err != nil {
			perr := &ExecutionError{
				Errors: []*agenterrors.Error{agenterrors.NewWithContext(
					agenterrors.KindStateProjectionFailed,
					fmt.Sprintf("state projection failed: %v", err),
					map[string]any{"attempt": attempt},
				)},
			}
			a.finish(meta)
			perr.Metadata = *meta
			if cbs != nil {
				fire(meta, "OnFailure", func() {
					if cbs.OnFailure != nil {
						cbs.OnFailure([]error{perr.Errors[0]})
					}
				})
				perr.Metadata.CallbackErrors = meta.CallbackErrors
			}
			a.metrics.ObserveRun(a.name, outcomeProjectionFailed, attempt, meta.Duration)
			return nil, perr
		}
	}

	if cbs != nil {
		fire(meta, "OnSuccess", func() {
			if cbs.OnSuccess != nil {
				cbs.OnSuccess(candidate, attempt)
			}
		})
	}
	a.finish(meta)
	a.metrics.ObserveRun(a.name, outcomeSuccess, attempt, meta.Duration)
	a.logger.Debug("run %s succeeded on attempt %d", meta.RunID, attempt)

	return &ExecutionResult[R, A]{
		Output:          candidate,
		Attempts:        attempt,
		Metadata:        *meta,
		StateProjection: projection,
		FinalState:      final,
	}, nil
}

// runProjection invokes the projection function with panic isolation.
func (a *Agent[R, A]) runProjection(final State[R, A]) (projection any, err error) {
	defer func() {
		if r := recover(); r != nil {
			projection = nil
			err = fmt.Errorf("projection panicked: %v", r)
		}
	}()
	return a.project(final)
}

// errorFeedback produces the retry message appended to the conversation after
// a failed attempt.
func (a *Agent[R, A]) errorFeedback(ctx context.Context, failure string, ec ExecutionContext) (string, error) {
	if a.prompts.Error != nil {
		feedback, err := a.prompts.Error(ctx, failure, ec)
		if err != nil {
			return "", fmt.Errorf("error prompt: %w", err)
		}
		return feedback, nil
	}
	return fmt.Sprintf(
		"The previous output was rejected: %s\n\nCorrect the problem and submit again by calling the %q tool.",
		failure, a.output.Name), nil
}

// exhausted builds the terminal attempt-budget failure.
func (a *Agent[R, A]) exhausted(meta *Metadata, attempts, maxAttempts int, failure string, cbs *Callbacks) *ExecutionError {
	eerr := &ExecutionError{
		Errors: []*agenterrors.Error{agenterrors.NewWithContext(
			agenterrors.KindMaxAttemptsExceeded,
			fmt.Sprintf("no valid output after %d attempts: %s", attempts, failure),
			map[string]any{"attempts": attempts, "max_attempts": maxAttempts},
		)},
	}
	if cbs != nil {
		fire(meta, "OnFailure", func() {
			if cbs.OnFailure != nil {
				cbs.OnFailure([]error{eerr.Errors[0]})
			}
		})
	}
	a.finish(meta)
	eerr.Metadata = *meta
	a.metrics.ObserveRun(a.name, outcomeExhausted, attempts, meta.Duration)
	a.logger.Debug("run %s exhausted after %d attempts", meta.RunID, attempts)
	return eerr
}

// cancelled builds the terminal cancellation failure. Neither OnSuccess nor
// OnFailure fires for a cancelled run.
func (a *Agent[R, A]) cancelled(meta *Metadata, attempt int, phase string, cause error) *ExecutionError {
	a.finish(meta)
	a.metrics.ObserveRun(a.name, outcomeCancelled, attempt, meta.Duration)
	a.logger.Debug("run %s cancelled during %s (attempt %d)", meta.RunID, phase, attempt)
	return &ExecutionError{
		Errors: []*agenterrors.Error{agenterrors.NewWithContext(
			agenterrors.KindExecutionCancelled,
			fmt.Sprintf("execution cancelled during %s: %v", phase, cause),
			map[string]any{"phase": phase, "attempt": attempt},
		)},
		Metadata: *meta,
	}
}

func (a *Agent[R, A]) finish(meta *Metadata) {
	meta.Duration = time.Since(meta.StartTime)
}

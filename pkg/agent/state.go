package agent

import (
	"encoding/json"
	"fmt"
)

// deepCopyState round-trips a user state value through JSON to produce a
// structurally independent copy. This is what keeps a handler that retains
// and later mutates a snapshot from corrupting the engine's working state.
func deepCopyState[T any](v T) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("state is not JSON-serializable: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("state does not round-trip: %w", err)
	}
	return out, nil
}

// runState is the engine's mutable working triple for one execution call.
// Never shared across calls; Execute constructs a fresh one each time.
type runState[R, A any] struct {
	run     R
	attempt A
	ec      ExecutionContext
}

// newRunState builds the initial state triple from the definition's
// initializers. The attempt tier stays at its zero value until the first
// attempt begins.
func (a *Agent[R, A]) newRunState(input any, maxAttempts int) *runState[R, A] {
	st := &runState[R, A]{
		ec: ExecutionContext{MaxAttempts: maxAttempts},
	}
	if a.initRun != nil {
		st.run = a.initRun(input)
	}
	return st
}

// beginAttempt advances the context to the next attempt and deterministically
// reinitializes the attempt tier from (input, current run state, context).
// The run tier is carried forward untouched.
func (a *Agent[R, A]) beginAttempt(st *runState[R, A], input any) error {
	st.ec.Attempt++
	st.ec.Iteration = 0

	var attempt A
	if a.initAttempt != nil {
		runCopy, err := deepCopyState(st.run)
		if err != nil {
			return err
		}
		attempt = a.initAttempt(input, runCopy, st.ec)
	}
	st.attempt = attempt
	return nil
}

// snapshot produces an isolated State value safe to hand to user code.
func (st *runState[R, A]) snapshot() (State[R, A], error) {
	run, err := deepCopyState(st.run)
	if err != nil {
		return State[R, A]{}, err
	}
	attempt, err := deepCopyState(st.attempt)
	if err != nil {
		return State[R, A]{}, err
	}
	return State[R, A]{Run: run, Attempt: attempt, Context: st.ec}, nil
}

// adopt installs a handler's reduction as the working state. The reduction's
// values are themselves copied so a handler that kept its returned state
// cannot mutate the engine's copy afterwards.
func (st *runState[R, A]) adopt(red *Reduction[R, A]) error {
	run, err := deepCopyState(red.Run)
	if err != nil {
		return err
	}
	attempt, err := deepCopyState(red.Attempt)
	if err != nil {
		return err
	}
	st.run = run
	st.attempt = attempt
	return nil
}

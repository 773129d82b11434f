package agent

import (
	"fmt"
	"time"

	"agentexec/pkg/llm"
	"agentexec/pkg/tools"
)

// dispatchOutcome is what one round of tool dispatch produced.
type dispatchOutcome struct {
	// results are the tool results to feed back, in call order.
	results []llm.ToolResult
	// candidate is the recorded output-tool payload, if any.
	candidate map[string]any
	// terminal reports that a bare output-tool call (no reflection handler)
	// ended the sub-loop immediately.
	terminal bool
}

// dispatchToolCalls resolves every tool call from one model response, in the
// order the model emitted them. State mutations apply sequentially so call
// N+1 observes the state produced by call N. Handler errors and panics become
// tool-result feedback; the pre-call state stays authoritative and nothing
// escapes to the caller.
func (a *Agent[R, A]) dispatchToolCalls(st *runState[R, A], calls []llm.ToolCall, cbs *Callbacks, meta *Metadata) (*dispatchOutcome, error) {
	out := &dispatchOutcome{}

	for i := range calls {
		call := &calls[i]
		if cbs != nil {
			fire(meta, "OnToolCall", func() {
				if cbs.OnToolCall != nil {
					cbs.OnToolCall(call.Name, call.Parameters)
				}
			})
		}

		if call.Name == a.output.Name {
			candidate, _ := deepCopyJSONValue(call.Parameters).(map[string]any)

			if a.output.Reflection == nil {
				// Terminal candidate: the sub-loop ends here. The call still
				// gets a result so a retry transcript never carries an
				// unresolved tool_use (API requirement: every tool_use must
				// have a tool_result).
				out.candidate = candidate
				out.terminal = true
				a.emitToolResult(out, call, "output received", false, cbs, meta)
				for j := i + 1; j < len(calls); j++ {
					a.emitToolResult(out, &calls[j],
						"not executed: the final output was already submitted", true, cbs, meta)
				}
				a.logger.Debug("output tool %s called, sub-loop terminal", a.output.Name)
				return out, nil
			}

			result, isErr := a.reflectCandidate(candidate)
			if !isErr {
				out.candidate = candidate
			}
			a.emitToolResult(out, call, result, isErr, cbs, meta)
			continue
		}

		if idx, ok := a.helperIndex[call.Name]; ok {
			result, isErr, err := a.runHelper(st, &a.helpers[idx], call)
			if err != nil {
				return nil, err
			}
			a.emitToolResult(out, call, result, isErr, cbs, meta)
			continue
		}

		a.emitToolResult(out, call,
			fmt.Sprintf("unknown tool %q: available tools are the configured helpers and %q", call.Name, a.output.Name),
			true, cbs, meta)
	}

	return out, nil
}

// runHelper validates the call payload against the helper's schema and, when
// valid, applies the reducer. The returned error is an engine fault (state
// not serializable), not a handler failure.
func (a *Agent[R, A]) runHelper(st *runState[R, A], helper *HelperTool[R, A], call *llm.ToolCall) (result string, isError bool, err error) {
	start := time.Now()
	defer func() {
		a.metrics.ObserveToolExecution(a.name, helper.Name, isError, time.Since(start))
	}()

	if schema := a.helperSchemas[helper.Name]; schema != nil {
		if verr := tools.ValidatePayload(schema, call.Parameters); verr != nil {
			return fmt.Sprintf("invalid input for tool %q: %v", helper.Name, verr), true, nil
		}
	}

	snap, serr := st.snapshot()
	if serr != nil {
		return "", true, serr
	}

	red, herr := invokeHandler(helper.Handler, snap, call.Parameters)
	if herr != nil {
		// Handler error or panic: feedback to the model, pre-call state
		// remains authoritative.
		a.logger.Debug("tool %s failed: %v", helper.Name, herr)
		return fmt.Sprintf("tool %q failed: %v", helper.Name, herr), true, nil
	}

	if err := st.adopt(red); err != nil {
		return "", true, err
	}
	return red.ToolResult, false, nil
}

// invokeHandler calls a reducer with panic isolation. A panic is downgraded
// to an error so it can travel back to the model as tool-result feedback.
func invokeHandler[R, A any](handler HelperToolHandler[R, A], snap State[R, A], input map[string]any) (red *Reduction[R, A], err error) {
	defer func() {
		if r := recover(); r != nil {
			red = nil
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	inputCopy, _ := deepCopyJSONValue(input).(map[string]any)
	red, err = handler(snap, inputCopy)
	if err == nil && red == nil {
		err = fmt.Errorf("handler returned no reduction")
	}
	return red, err
}

// reflectCandidate runs the output tool's reflection handler with panic
// isolation. Returns the tool-result text and whether it is an error.
func (a *Agent[R, A]) reflectCandidate(candidate map[string]any) (result string, isError bool) {
	defer func() {
		if r := recover(); r != nil {
			result = fmt.Sprintf("reflection failed: %v", r)
			isError = true
		}
	}()

	preview, err := a.output.Reflection(candidate)
	if err != nil {
		return err.Error(), true
	}
	return preview, false
}

func (a *Agent[R, A]) emitToolResult(out *dispatchOutcome, call *llm.ToolCall, result string, isError bool, cbs *Callbacks, meta *Metadata) {
	out.results = append(out.results, llm.ToolResult{
		ToolCallID: call.ID,
		Content:    result,
		IsError:    isError,
	})
	if cbs != nil {
		fire(meta, "OnToolResult", func() {
			if cbs.OnToolResult != nil {
				cbs.OnToolResult(call.Name, result, isError)
			}
		})
	}
}

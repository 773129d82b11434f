package metrics

import (
	"context"
	"time"

	"agentexec/pkg/config"
	"agentexec/pkg/llm"
	"agentexec/pkg/llm/llmerrors"
	"agentexec/pkg/logx"
	"agentexec/pkg/tokens"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// UsageExtractor is a function that extracts token usage from a request and response.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor prefers backend-reported usage and falls back to local
// token counting when the backend did not report any.
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
		return resp.Usage.InputTokens, resp.Usage.OutputTokens
	}

	var promptText string
	for i := range req.Messages {
		promptText += req.Messages[i].Content + "\n"
	}
	return tokens.CountSimple(promptText), tokens.CountSimple(resp.Content)
}

// Middleware returns a middleware function that records metrics for model requests.
// It tracks request latency, token usage, cost, success/failure rates, and error types.
func Middleware(recorder Recorder, usageExtractor UsageExtractor, runProvider RunProvider, logger *logx.Logger) llm.Middleware {
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}

	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				model := next.GetModelName()

				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				var cost float64
				if err == nil {
					promptTokens, completionTokens = usageExtractor(req, resp)
					cost = requestCost(model, promptTokens, completionTokens)
				}

				errorType := ""
				if err != nil {
					errorType = llmerrors.TypeOf(err).String()
				}

				var runID, agent string
				if runProvider != nil {
					runID = runProvider.GetRunID()
					agent = runProvider.GetAgentName()
				}

				recorder.ObserveRequest(
					model,
					runID,
					agent,
					promptTokens,
					completionTokens,
					cost,
					err == nil,
					errorType,
					duration,
				)

				if logger != nil {
					status := statusSuccess
					if err != nil {
						status = statusError
					}
					logger.Debug("model request: model=%s run=%s agent=%s tokens=%d+%d status=%s duration=%dms",
						model, runID, agent, promptTokens, completionTokens, status, duration.Milliseconds())
				}

				return resp, err //nolint:wrapcheck // Middleware passes through errors unchanged
			},
			next.GetModelName,
		)
	}
}

// requestCost computes the USD cost of a request from the model registry.
// Unknown models cost zero.
func requestCost(model string, promptTokens, completionTokens int) float64 {
	info, known := config.GetModelInfo(model)
	if !known {
		return 0
	}
	return float64(promptTokens)*info.InputCPM/1e6 + float64(completionTokens)*info.OutputCPM/1e6
}
